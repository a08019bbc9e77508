package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type syncHistoryPruner interface {
	DeleteFinishedBefore(ctx context.Context, cutoffMillis int64) (int64, error)
}

// SyncHistoryCleanupJob removes terminal sync runs past retention. Active runs
// are never touched.
type SyncHistoryCleanupJob struct {
	runs   syncHistoryPruner
	maxAge time.Duration
	now    func() time.Time
}

func NewSyncHistoryCleanupJob(runs syncHistoryPruner, maxAge time.Duration) *SyncHistoryCleanupJob {
	return &SyncHistoryCleanupJob{runs: runs, maxAge: maxAge, now: time.Now}
}

func (j *SyncHistoryCleanupJob) Name() string {
	return "sync_history_cleanup"
}

func (j *SyncHistoryCleanupJob) Run(ctx context.Context) error {
	if j.runs == nil {
		return nil
	}
	maxAge := j.maxAge
	if maxAge <= 0 {
		maxAge = 90 * 24 * time.Hour
	}
	cutoff := j.now().Add(-maxAge).UnixMilli()
	deleted, err := j.runs.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("sync history pruned", zap.Int64("deleted", deleted))
	return nil
}
