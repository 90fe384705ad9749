// Package config resolves the engine's configuration from, in
// increasing priority: built-in defaults, an optional ragstore.toml
// file, a .env overlay, and CLI flags/environment variables (spec
// §6).
//
// Grounded on pkg/core/embedding.go's Config/DefaultConfig() pattern
// for in-process defaults in the teacher repo; the outer parsing
// surface adds BurntSushi/toml for ragstore.toml (grounded on
// Dirstral-dir2mcp's TOML config loading) and joho/godotenv for .env
// overlay (grounded on manifold/Dirstral-dir2mcp's dotenv use).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/ragstore/engine/internal/ragerr"
)

// Config is the full set of knobs the engine reads at startup.
type Config struct {
	DBPath    string `toml:"db_path"`
	IndexDir  string `toml:"index_dir"`
	ChunkSize int    `toml:"chunk_size"`

	ChunkOverlap       int `toml:"chunk_overlap"`
	EmbeddingBatchSize int `toml:"embedding_batch_size"`

	Mode                  string `toml:"mode"`
	RerankingStrategy     string `toml:"reranking_strategy"`
	EmbedderCacheSize     int    `toml:"embedder_cache_size"`

	Preprocessing Preprocessing `toml:"-"`
}

// Preprocessing is the YAML-configurable override block named in
// SPEC_FULL.md's domain stack section, kept separate from the TOML
// body since it is commonly hand-edited and benefits from YAML's
// block-style readability for lists.
type Preprocessing struct {
	StripHTML      bool     `yaml:"strip_html"`
	LowercaseText  bool     `yaml:"lowercase_text"`
	ExcludeGlobs   []string `yaml:"exclude_globs"`
}

// DefaultConfig matches DefaultChunkConfig/DefaultSystemInfo's
// defaults so a fresh install behaves identically whether driven by
// config file or left untouched.
func DefaultConfig() Config {
	return Config{
		DBPath:             "ragstore.db",
		IndexDir:           ".ragstore",
		ChunkSize:          512,
		ChunkOverlap:       64,
		EmbeddingBatchSize: 32,
		Mode:               "text",
		RerankingStrategy:  "cross-encoder",
		EmbedderCacheSize:  4,
	}
}

// Load resolves a Config starting from DefaultConfig, applying
// tomlPath if it exists, then a .env file in the same directory if
// present, then process environment variables prefixed RAGSTORE_.
// CLI flags are applied by the caller afterward (cmd/ragctl), which
// is why Load never touches pflag.
func Load(tomlPath string) (Config, error) {
	cfg := DefaultConfig()

	if tomlPath != "" {
		if _, err := os.Stat(tomlPath); err == nil {
			if _, err := toml.DecodeFile(tomlPath, &cfg); err != nil {
				return Config{}, ragerr.WrapItem("config_load", tomlPath, ragerr.KindConfiguration, err)
			}
			envPath := filepath.Join(filepath.Dir(tomlPath), ".env")
			if _, err := os.Stat(envPath); err == nil {
				if err := godotenv.Load(envPath); err != nil {
					return Config{}, ragerr.WrapItem("config_load", envPath, ragerr.KindConfiguration, err)
				}
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, ragerr.Wrap("config_load", ragerr.KindConfiguration, err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RAGSTORE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("RAGSTORE_INDEX_DIR"); v != "" {
		cfg.IndexDir = v
	}
	if v := os.Getenv("RAGSTORE_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("RAGSTORE_RERANKING_STRATEGY"); v != "" {
		cfg.RerankingStrategy = v
	}
}

// Validate fails loudly on configuration that cannot possibly work,
// per spec §7's "configuration errors are fatal and actionable".
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%w: db_path must not be empty", ragerr.ErrInvalidConfig)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", ragerr.ErrInvalidConfig)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size)", ragerr.ErrInvalidConfig)
	}
	switch c.Mode {
	case "text", "multimodal":
	default:
		return fmt.Errorf("%w: unknown mode %q", ragerr.ErrInvalidConfig, c.Mode)
	}
	switch c.RerankingStrategy {
	case "cross-encoder", "text-derived", "disabled":
	default:
		return fmt.Errorf("%w: unknown reranking_strategy %q", ragerr.ErrInvalidConfig, c.RerankingStrategy)
	}
	return nil
}
