// Command ragctl is the CLI front end for the retrieval engine:
// init, ingest, search, reset, and stats, each a thin cobra command
// wired to the library packages (store, indexmgr, embedder, mode,
// ingest, search, kb).
//
// Grounded on cmd/sqvect/main.go's cobra command tree and
// flag-binding style in the teacher repo.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ragstore/engine/embedder"
	"github.com/ragstore/engine/indexmgr"
	"github.com/ragstore/engine/ingest"
	"github.com/ragstore/engine/internal/config"
	"github.com/ragstore/engine/internal/logging"
	"github.com/ragstore/engine/internal/ragerr"
	"github.com/ragstore/engine/kb"
	"github.com/ragstore/engine/mode"
	"github.com/ragstore/engine/search"
	"github.com/ragstore/engine/store"
	"github.com/spf13/cobra"
)

var (
	dbPath     string
	indexDir   string
	cfgPath    string
	verbose    bool
	forceModel bool
)

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "CLI for the local-first retrieval engine",
	Long:  `ragctl manages a local document store, vector index, and search pipeline.`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new knowledge base",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		modeFlag, _ := cmd.Flags().GetString("mode")
		dims, _ := cmd.Flags().GetInt("dimensions")

		st, err := store.Open(ctx, dbPath)
		if err != nil {
			return err
		}
		defer st.Close()

		modelType := "sentence-transformer"
		modelName := "sentence-transformers/all-MiniLM-L6-v2"
		if modeFlag == "multimodal" {
			modelType = "clip"
			modelName = "clip-vit-base-patch32"
			dims = 512
		} else if dims == 0 {
			dims = 384
		}

		m := storeMode(modeFlag)
		mt := storeModelType(modelType)
		strat := store.RerankCrossEncoder
		contentTypes := []store.ContentType{store.ContentText}
		if modeFlag == "multimodal" {
			contentTypes = append(contentTypes, store.ContentImage)
		}
		if err := st.SetSystemInfo(ctx, store.SystemInfoPatch{
			Mode: &m, ModelType: &mt, ModelName: &modelName, ModelDimensions: &dims,
			SupportedContentTypes: contentTypes, RerankingStrategy: &strat,
		}); err != nil {
			return err
		}

		fmt.Printf("knowledge base initialized at %s (mode=%s, dimensions=%d)\n", dbPath, modeFlag, dims)
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Ingest a file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		watch, _ := cmd.Flags().GetBool("watch")

		p, cleanup, err := buildPipeline(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if watch {
			return p.Watch(ctx, args[0], ingest.DefaultWatchOptions())
		}

		result, err := p.IngestPath(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("documents=%d chunks=%d embeddings=%d errors=%d (%dms)\n",
			result.DocumentsProcessed, result.ChunksCreated, result.EmbeddingsGenerated,
			len(result.DocumentErrors)+len(result.EmbeddingErrors), result.ProcessingTimeMs)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		topK, _ := cmd.Flags().GetInt("top-k")
		outputJSON, _ := cmd.Flags().GetBool("json")
		rerank, _ := cmd.Flags().GetBool("rerank")
		contentType, _ := cmd.Flags().GetString("content-type")

		st, err := store.Open(ctx, dbPath)
		if err != nil {
			return err
		}
		defer st.Close()

		info := mode.Detect(ctx, st, logging.NewStd())
		registry := embedder.NewRegistry(4, logging.NewStd())
		defer registry.Close()
		resolved, err := mode.Build(ctx, info, registry)
		if err != nil {
			return err
		}

		idx := indexmgr.New(st, indexDir, info.ModelDimensions, logging.NewStd())
		if err := idx.Initialize(ctx, indexmgr.InitOptions{SkipModelCheck: forceModel}); err != nil {
			return err
		}
		defer idx.Close(ctx)

		engine := search.New(idx, st, resolved.Embedder, resolved.Reranker, logging.NewStd())
		results, err := engine.Search(ctx, args[0], topK, search.Options{
			Rerank:      rerank,
			ContentType: store.ContentType(contentType),
		})
		if err != nil {
			return err
		}

		if outputJSON {
			data, _ := json.MarshalIndent(results, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		for i, r := range results {
			fmt.Printf("%d. [%.3f] %s (%s)\n    %s\n", i+1, r.Similarity, r.DocumentTitle, r.DocumentSource, truncate(r.Content, 120))
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the knowledge base without deleting any file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		preserveInfo, _ := cmd.Flags().GetBool("preserve-system-info")

		st, err := store.Open(ctx, dbPath)
		if err != nil {
			return err
		}
		defer st.Close()

		info := mode.Detect(ctx, st, logging.NewStd())
		idx := indexmgr.New(st, indexDir, info.ModelDimensions, logging.NewStd())
		if err := idx.Initialize(ctx, indexmgr.InitOptions{SkipModelCheck: true}); err != nil {
			return err
		}
		defer idx.Close(ctx)

		manager := kb.New(st, idx, dbPath+".lock", logging.NewStd())
		result, err := manager.Reset(ctx, store.ResetOptions{PreserveSystemInfo: preserveInfo}, info.ModelDimensions)
		if err != nil {
			return err
		}
		fmt.Printf("reset complete: documents=%d chunks=%d (%dms)\n",
			result.Database.DocumentsDeleted, result.Database.ChunksDeleted, result.TotalTimeMs)
		for _, w := range result.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		outputJSON, _ := cmd.Flags().GetBool("json")

		st, err := store.Open(ctx, dbPath)
		if err != nil {
			return err
		}
		defer st.Close()

		info := mode.Detect(ctx, st, logging.NewStd())
		idx := indexmgr.New(st, indexDir, info.ModelDimensions, logging.NewStd())
		if err := idx.Initialize(ctx, indexmgr.InitOptions{SkipModelCheck: true}); err != nil {
			return err
		}
		defer idx.Close(ctx)

		chunkCount, err := st.CountChunks(ctx)
		if err != nil {
			return err
		}
		idxStats, err := idx.GetStats(ctx)
		if err != nil {
			return err
		}

		if outputJSON {
			data, _ := json.MarshalIndent(map[string]any{
				"mode": info.Mode, "model": info.ModelName, "dimensions": info.ModelDimensions,
				"chunks": chunkCount, "vectors": idxStats.VectorCount,
			}, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("mode=%s model=%s dimensions=%d chunks=%d vectors=%d\n",
			info.Mode, info.ModelName, info.ModelDimensions, chunkCount, idxStats.VectorCount)
		return nil
	},
}

func buildPipeline(ctx context.Context) (*ingest.Pipeline, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return nil, nil, err
	}

	info := mode.Detect(ctx, st, logging.NewStd())
	registry := embedder.NewRegistry(cfg.EmbedderCacheSize, logging.NewStd())
	resolved, err := mode.Build(ctx, info, registry)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	if err := st.SetSystemInfo(ctx, store.SystemInfoPatch{
		Mode: &resolved.Info.Mode, ModelName: &resolved.Info.ModelName, ModelType: &resolved.Info.ModelType,
		ModelDimensions: &resolved.Info.ModelDimensions, SupportedContentTypes: resolved.Info.SupportedContentTypes,
		RerankingStrategy: &resolved.Info.RerankingStrategy,
	}); err != nil {
		st.Close()
		return nil, nil, err
	}

	idx := indexmgr.New(st, indexDir, resolved.Info.ModelDimensions, logging.NewStd())
	if err := idx.Initialize(ctx, indexmgr.InitOptions{SkipModelCheck: forceModel}); err != nil {
		registry.Close()
		st.Close()
		return nil, nil, err
	}

	pipelineCfg := ingest.Config{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap, EmbeddingBatchSize: cfg.EmbeddingBatchSize}
	p := ingest.New(st, idx, resolved.Embedder, pipelineCfg, nil, logging.NewStd())

	cleanup := func() {
		_ = p.Cleanup(context.Background())
		registry.Close()
		_ = st.Close()
	}
	return p, cleanup, nil
}

func storeMode(s string) store.Mode {
	if s == "multimodal" {
		return store.ModeMultimodal
	}
	return store.ModeText
}

func storeModelType(s string) store.ModelType {
	if s == "clip" {
		return store.ModelTypeCLIP
	}
	return store.ModelTypeSentenceTransformer
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// exitCode maps an engine error to the process exit code spec §6 names:
// invalid arguments=2, configuration=3, file not found=4, store=5,
// model=6, index=7, permission=8. File-not-found and permission are
// detected on the innermost wrapped error rather than Kind, since both
// can occur underneath any Kind (a store open, an index load, and a
// content read can all hit a missing or unreadable path). A Kind with
// no dedicated slot in the spec's table — content, search, or no
// *ragerr.Error at all — falls back to invalid arguments, the CLI's
// catch-all for "this call was not well-formed".
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	cause := rootCause(err)
	if os.IsNotExist(cause) {
		return 4
	}
	if os.IsPermission(cause) {
		return 8
	}
	switch ragerr.KindOf(err) {
	case ragerr.KindConfiguration:
		return 3
	case ragerr.KindStore:
		return 5
	case ragerr.KindModel:
		return 6
	case ragerr.KindIndex:
		return 7
	default:
		return 2
	}
}

// rootCause follows Unwrap to the innermost error, the form
// os.IsNotExist/os.IsPermission recognize.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "ragstore.db", "Metadata database path")
	rootCmd.PersistentFlags().StringVar(&indexDir, "index-dir", ".ragstore", "Vector index directory")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to ragstore.toml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&forceModel, "force-rebuild", false, "Skip the model-identity check on open")

	initCmd.Flags().String("mode", "text", "Mode: text or multimodal")
	initCmd.Flags().Int("dimensions", 0, "Vector dimensions (0 for mode default)")

	ingestCmd.Flags().Bool("watch", false, "Watch the path and re-ingest changed files")

	searchCmd.Flags().Int("top-k", 10, "Number of results")
	searchCmd.Flags().Bool("json", false, "Output as JSON")
	searchCmd.Flags().Bool("rerank", false, "Rerank results with the configured reranker")
	searchCmd.Flags().String("content-type", "", "Restrict results to a content type (text or image)")

	resetCmd.Flags().Bool("preserve-system-info", false, "Keep the persisted mode/model identity")

	statsCmd.Flags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(initCmd, ingestCmd, searchCmd, resetCmd, statsCmd)
}

func main() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}
