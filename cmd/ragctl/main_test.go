package main

import (
	"os"
	"testing"

	"github.com/ragstore/engine/internal/ragerr"
	"github.com/stretchr/testify/require"
)

func TestExitCodeMapsKindsToSpecExitCodes(t *testing.T) {
	require.Equal(t, 0, exitCode(nil))
	require.Equal(t, 3, exitCode(ragerr.Wrap("op", ragerr.KindConfiguration, ragerr.ErrInvalidConfig)))
	require.Equal(t, 5, exitCode(ragerr.Wrap("op", ragerr.KindStore, ragerr.ErrStoreClosed)))
	require.Equal(t, 6, exitCode(ragerr.Wrap("op", ragerr.KindModel, ragerr.ErrModelMismatch)))
	require.Equal(t, 7, exitCode(ragerr.Wrap("op", ragerr.KindIndex, ragerr.ErrIndexUnavailable)))
	require.Equal(t, 2, exitCode(ragerr.Wrap("op", ragerr.KindContent, ragerr.ErrContentNotFound)))
	require.Equal(t, 2, exitCode(ragerr.Wrap("op", ragerr.KindSearch, ragerr.ErrDesynchronized)))
	require.Equal(t, 2, exitCode(ragerr.ErrNotFound))
}

func TestExitCodeDetectsFileNotFoundAndPermissionUnderAnyKind(t *testing.T) {
	_, statErr := os.Stat("/nonexistent/path/that/does/not/exist")
	require.Equal(t, 4, exitCode(ragerr.WrapItem("op", "/nonexistent/path/that/does/not/exist", ragerr.KindStore, statErr)))

	permErr := &os.PathError{Op: "open", Path: "x", Err: os.ErrPermission}
	require.Equal(t, 8, exitCode(ragerr.Wrap("op", ragerr.KindIndex, permErr)))
}

func TestRootCommandTreeWired(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"init", "ingest", "search", "reset", "stats"} {
		require.True(t, names[want], "missing command %q", want)
	}
}

func TestStoreModeAndModelTypeHelpers(t *testing.T) {
	require.Equal(t, "multimodal", string(storeMode("multimodal")))
	require.Equal(t, "text", string(storeMode("text")))
	require.Equal(t, "clip", string(storeModelType("clip")))
	require.Equal(t, "sentence-transformer", string(storeModelType("sentence-transformer")))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "hello", truncate("hello", 10))
	require.Equal(t, "he...", truncate("hello", 2))
}
