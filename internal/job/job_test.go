package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeCachePruner struct {
	cutoff int64
	err    error
}

func (f *fakeCachePruner) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

type fakeHistoryPruner struct {
	cutoff int64
}

func (f *fakeHistoryPruner) DeleteFinishedBefore(ctx context.Context, cutoffMillis int64) (int64, error) {
	f.cutoff = cutoffMillis
	return 1, nil
}

func TestEmbeddingCacheCleanupCutoff(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	pruner := &fakeCachePruner{}
	j := NewEmbeddingCacheCleanupJob(pruner, 0)
	j.now = func() time.Time { return now }
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.AddDate(0, 0, -30).Unix(), pruner.cutoff)

	pruner.err = errors.New("db down")
	require.Error(t, j.Run(context.Background()))
	require.NoError(t, NewEmbeddingCacheCleanupJob(nil, 1).Run(context.Background()))
}

func TestSyncHistoryCleanupCutoff(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	pruner := &fakeHistoryPruner{}
	j := NewSyncHistoryCleanupJob(pruner, 48*time.Hour)
	j.now = func() time.Time { return now }
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.Add(-48*time.Hour).UnixMilli(), pruner.cutoff)
	require.Equal(t, "sync_history_cleanup", j.Name())
}
