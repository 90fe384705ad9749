package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsBadChunking(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkOverlap = cfg.ChunkSize
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "bogus"
	require.Error(t, cfg.Validate())
}

func TestLoadFromTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ragstore.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path = "custom.db"
chunk_size = 256
chunk_overlap = 32
mode = "multimodal"
reranking_strategy = "text-derived"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "custom.db", cfg.DBPath)
	require.Equal(t, 256, cfg.ChunkSize)
	require.Equal(t, "multimodal", cfg.Mode)
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().DBPath, cfg.DBPath)
}

func TestLoadPreprocessingMissingFileIsNotError(t *testing.T) {
	p, err := LoadPreprocessing(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.False(t, p.StripHTML)
}

func TestLoadPreprocessingParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preprocessing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strip_html: true\nlowercase_text: true\nexclude_globs:\n  - \"*.png\"\n"), 0o644))

	p, err := LoadPreprocessing(path)
	require.NoError(t, err)
	require.True(t, p.StripHTML)
	require.Equal(t, []string{"*.png"}, p.ExcludeGlobs)
}
