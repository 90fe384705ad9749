package vectorindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkerAddAndSearch(t *testing.T) {
	ctx := context.Background()
	w := NewWorker(DefaultConfig(3), nil)
	defer w.Cleanup(ctx)

	require.NoError(t, w.AddVector(ctx, 1, []float32{1, 0, 0}))
	require.NoError(t, w.AddVector(ctx, 2, []float32{0, 1, 0}))

	labels, _, err := w.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, labels)

	count, err := w.GetCurrentCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestWorkerAddVectorsBatch(t *testing.T) {
	ctx := context.Background()
	w := NewWorker(DefaultConfig(2), nil)
	defer w.Cleanup(ctx)

	labels := []uint64{1, 2, 3}
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	require.NoError(t, w.AddVectors(ctx, labels, vectors))

	count, err := w.GetCurrentCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestWorkerSaveLoadIndex(t *testing.T) {
	ctx := context.Background()
	w := NewWorker(DefaultConfig(2), nil)
	require.NoError(t, w.AddVector(ctx, 1, []float32{1, 0}))

	path := filepath.Join(t.TempDir(), "index.gob")
	require.NoError(t, w.SaveIndex(ctx, path))
	require.NoError(t, w.Cleanup(ctx))

	_, err := os.Stat(path)
	require.NoError(t, err)

	w2 := NewWorker(DefaultConfig(2), nil)
	defer w2.Cleanup(ctx)
	require.NoError(t, w2.LoadIndex(ctx, path))
	count, err := w2.GetCurrentCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestWorkerResetClearsWithoutFileDeletion(t *testing.T) {
	ctx := context.Background()
	w := NewWorker(DefaultConfig(2), nil)
	defer w.Cleanup(ctx)
	require.NoError(t, w.AddVector(ctx, 1, []float32{1, 0}))
	require.NoError(t, w.Reset(ctx))
	count, err := w.GetCurrentCount(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestWorkerCleanupRejectsFurtherCalls(t *testing.T) {
	ctx := context.Background()
	w := NewWorker(DefaultConfig(2), nil)
	require.NoError(t, w.Cleanup(ctx))

	err := w.AddVector(ctx, 1, []float32{1, 0})
	require.Error(t, err)
}

func TestWorkerReinitChangesDimensions(t *testing.T) {
	ctx := context.Background()
	w := NewWorker(DefaultConfig(2), nil)
	defer w.Cleanup(ctx)
	require.NoError(t, w.AddVector(ctx, 1, []float32{1, 0}))
	require.Equal(t, 2, w.Dimensions())

	require.NoError(t, w.Reinit(ctx, DefaultConfig(5)))
	require.Equal(t, 5, w.Dimensions())

	count, err := w.GetCurrentCount(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, w.AddVector(ctx, 1, []float32{1, 0, 0, 0, 0}))
	err = w.AddVector(ctx, 2, []float32{1, 0})
	require.Error(t, err)
}

func TestWorkerFIFOOrdering(t *testing.T) {
	ctx := context.Background()
	w := NewWorker(DefaultConfig(2), nil)
	defer w.Cleanup(ctx)

	for i := uint64(1); i <= 50; i++ {
		require.NoError(t, w.AddVector(ctx, i, []float32{float32(i), 0}))
	}
	count, err := w.GetCurrentCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 50, count)
}
