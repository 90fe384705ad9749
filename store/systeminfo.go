package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ragstore/engine/internal/ragerr"
)

// SystemInfoPatch is a partial update to SystemInfo; nil fields are
// left untouched, matching the "partial update; unspecified fields
// retained" contract of spec §4.1.
type SystemInfoPatch struct {
	Mode                  *Mode
	ModelName             *string
	ModelType             *ModelType
	ModelDimensions       *int
	ModelVersion          *string
	SupportedContentTypes []ContentType
	RerankingStrategy     *RerankingStrategy
	RerankingModel        *string
}

// validateSystemInfo enforces the consistency rule of spec §3: mode,
// modelType, dimensions and supportedContentTypes must agree (e.g.
// clip implies 512 dimensions and an "image" entry).
func validateSystemInfo(info SystemInfo) error {
	switch info.Mode {
	case ModeText, ModeMultimodal:
	default:
		return fmt.Errorf("%w: unknown mode %q", ragerr.ErrInvalidConfig, info.Mode)
	}
	switch info.ModelType {
	case ModelTypeSentenceTransformer, ModelTypeCLIP:
	default:
		return fmt.Errorf("%w: unknown model type %q", ragerr.ErrInvalidConfig, info.ModelType)
	}
	switch info.RerankingStrategy {
	case RerankCrossEncoder, RerankTextDerived, RerankDisabled:
	default:
		return fmt.Errorf("%w: unknown reranking strategy %q", ragerr.ErrInvalidConfig, info.RerankingStrategy)
	}
	if info.ModelDimensions <= 0 {
		return fmt.Errorf("%w: model dimensions must be positive", ragerr.ErrInvalidConfig)
	}
	if info.ModelType == ModelTypeCLIP {
		if info.ModelDimensions != 512 {
			return fmt.Errorf("%w: clip requires 512 dimensions, got %d", ragerr.ErrInvalidConfig, info.ModelDimensions)
		}
		if !hasContentType(info.SupportedContentTypes, ContentImage) {
			return fmt.Errorf("%w: clip requires image in supportedContentTypes", ragerr.ErrInvalidConfig)
		}
	}
	if info.Mode == ModeMultimodal && info.ModelType != ModelTypeCLIP {
		return fmt.Errorf("%w: multimodal mode requires a clip model", ragerr.ErrInvalidConfig)
	}
	if info.Mode == ModeText && info.ModelType == ModelTypeCLIP {
		return fmt.Errorf("%w: text mode cannot use a clip model", ragerr.ErrInvalidConfig)
	}
	return nil
}

func hasContentType(types []ContentType, want ContentType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

// GetSystemInfo reads the singleton system_info row. Returns
// ErrNotFound if ingestion has never run.
func (s *Store) GetSystemInfo(ctx context.Context) (*SystemInfo, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var info SystemInfo
	var mode, modelType, rerank, contentTypesJSON string
	var modelVersion, rerankModel sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT mode, model_name, model_type, model_dimensions, model_version,
		       supported_content_types, reranking_strategy, reranking_model,
		       created_at, updated_at
		FROM system_info WHERE id = 1
	`).Scan(&mode, &info.ModelName, &modelType, &info.ModelDimensions, &modelVersion,
		&contentTypesJSON, &rerank, &rerankModel, &info.CreatedAt, &info.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ragerr.Wrap("get_system_info", ragerr.KindStore, ragerr.ErrNotFound)
	}
	if err != nil {
		return nil, ragerr.Wrap("get_system_info", ragerr.KindStore, err)
	}

	info.Mode = Mode(mode)
	info.ModelType = ModelType(modelType)
	info.RerankingStrategy = RerankingStrategy(rerank)
	info.ModelVersion = modelVersion.String
	info.RerankingModel = rerankModel.String

	// If persisted supportedContentTypes fails to parse, per spec
	// §4.8 we must not surface the corruption to callers — return the
	// canonical default's content types rather than an error.
	var types []ContentType
	if err := json.Unmarshal([]byte(contentTypesJSON), &types); err != nil {
		types = DefaultSystemInfo().SupportedContentTypes
	}
	info.SupportedContentTypes = types

	return &info, nil
}

// SetSystemInfo writes SystemInfo for the first time, or applies a
// partial patch to the existing row if one exists already.
func (s *Store) SetSystemInfo(ctx context.Context, patch SystemInfoPatch) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	existing, err := s.GetSystemInfo(ctx)
	if err != nil && !errors.Is(err, ragerr.ErrNotFound) {
		return err
	}

	info := DefaultSystemInfo()
	if existing != nil {
		info = *existing
	}

	if patch.Mode != nil {
		info.Mode = *patch.Mode
	}
	if patch.ModelName != nil {
		info.ModelName = *patch.ModelName
	}
	if patch.ModelType != nil {
		info.ModelType = *patch.ModelType
	}
	if patch.ModelDimensions != nil {
		info.ModelDimensions = *patch.ModelDimensions
	}
	if patch.ModelVersion != nil {
		info.ModelVersion = *patch.ModelVersion
	}
	if patch.SupportedContentTypes != nil {
		info.SupportedContentTypes = patch.SupportedContentTypes
	}
	if patch.RerankingStrategy != nil {
		info.RerankingStrategy = *patch.RerankingStrategy
	}
	if patch.RerankingModel != nil {
		info.RerankingModel = *patch.RerankingModel
	}

	if err := validateSystemInfo(info); err != nil {
		return ragerr.Wrap("set_system_info", ragerr.KindConfiguration, err)
	}

	typesJSON, err := json.Marshal(info.SupportedContentTypes)
	if err != nil {
		return ragerr.Wrap("set_system_info", ragerr.KindStore, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO system_info (id, mode, model_name, model_type, model_dimensions, model_version,
		                         supported_content_types, reranking_strategy, reranking_model,
		                         created_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode,
			model_name = excluded.model_name,
			model_type = excluded.model_type,
			model_dimensions = excluded.model_dimensions,
			model_version = excluded.model_version,
			supported_content_types = excluded.supported_content_types,
			reranking_strategy = excluded.reranking_strategy,
			reranking_model = excluded.reranking_model,
			updated_at = CURRENT_TIMESTAMP
	`, string(info.Mode), info.ModelName, string(info.ModelType), info.ModelDimensions, info.ModelVersion,
		string(typesJSON), string(info.RerankingStrategy), info.RerankingModel)
	if err != nil {
		return ragerr.Wrap("set_system_info", ragerr.KindStore, err)
	}
	return nil
}

// StoredModelInfo is the minimal (name, dimensions) pair of the
// persisted model identity. The Index Manager reads GetSystemInfo
// directly on open rather than this type.
type StoredModelInfo struct {
	ModelName  string
	Dimensions int
}

// GetStoredModelInfo returns just the model identity fields.
func (s *Store) GetStoredModelInfo(ctx context.Context) (*StoredModelInfo, error) {
	info, err := s.GetSystemInfo(ctx)
	if err != nil {
		return nil, err
	}
	return &StoredModelInfo{ModelName: info.ModelName, Dimensions: info.ModelDimensions}, nil
}

// SetStoredModelInfo updates just the model identity fields, used
// after a rebuild switches to a new model.
func (s *Store) SetStoredModelInfo(ctx context.Context, modelName string, dimensions int) error {
	return s.SetSystemInfo(ctx, SystemInfoPatch{ModelName: &modelName, ModelDimensions: &dimensions})
}
