package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docindex/internal/config"
	"github.com/xxxsen/docindex/internal/model"
	appErr "github.com/xxxsen/docindex/internal/pkg/errors"
	"github.com/xxxsen/docindex/internal/service"
)

type syncSubmitter interface {
	SyncFromSource(ctx context.Context, versionID string, src model.SourceDescriptor) (*service.SyncFuture, error)
}

// ScheduledSyncJob submits every configured target and waits for the runs, so
// the scheduler does not start a new tick while targets are still syncing.
type ScheduledSyncJob struct {
	sync    syncSubmitter
	targets []config.SyncTarget
}

func NewScheduledSyncJob(sync syncSubmitter, targets []config.SyncTarget) *ScheduledSyncJob {
	return &ScheduledSyncJob{sync: sync, targets: targets}
}

func (j *ScheduledSyncJob) Name() string {
	return "scheduled_sync"
}

func (j *ScheduledSyncJob) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	futures := make([]*service.SyncFuture, 0, len(j.targets))
	var errs []error
	for _, t := range j.targets {
		future, err := j.sync.SyncFromSource(ctx, t.VersionID, model.SourceDescriptor{
			Owner:    t.Owner,
			Repo:     t.Repo,
			DocsPath: t.DocsPath,
			Ref:      t.Ref,
		})
		if err != nil {
			if appErr.IsConflict(err) {
				logger.Info("target already syncing, skipped", zap.String("version_id", t.VersionID))
				continue
			}
			errs = append(errs, fmt.Errorf("submit %s: %w", t.VersionID, err))
			continue
		}
		futures = append(futures, future)
	}
	failed := 0
	for _, f := range futures {
		run, err := f.Wait(ctx)
		if err != nil {
			return errors.Join(append(errs, err)...)
		}
		if run.Status == model.SyncStatusFailed {
			failed++
			logger.Warn("scheduled sync failed", zap.String("version_id", run.VersionID), zap.String("error", run.ErrorMessage))
		}
	}
	logger.Info("scheduled sync round finished", zap.Int("targets", len(j.targets)),
		zap.Int("submitted", len(futures)), zap.Int("failed", failed))
	return errors.Join(errs...)
}
