package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/docindex/internal/config"
	"github.com/xxxsen/docindex/internal/handler"
	"github.com/xxxsen/docindex/internal/job"
	"github.com/xxxsen/docindex/internal/middleware"
	"github.com/xxxsen/docindex/internal/model"
	"github.com/xxxsen/docindex/internal/schedule"
)

func runServer(ctx context.Context, cfg *config.Config) error {
	logger := logutil.GetLogger(ctx)
	logger.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.Int("sync_workers", cfg.Sync.Workers),
		zap.Int("embedding_providers", len(cfg.Embedding.Providers)),
	)

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.syncSvc.RecoverInterrupted(ctx); err != nil {
		return fmt.Errorf("recover interrupted runs: %w", err)
	}
	if err := a.syncSvc.Start(ctx); err != nil {
		return fmt.Errorf("start sync workers: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.CacheCleanup.MaxAgeDays), cfg.CacheCleanup.Cron); err != nil {
		return fmt.Errorf("schedule embedding cache cleanup: %w", err)
	}
	historyAge := time.Duration(cfg.CacheCleanup.SyncHistoryDays) * 24 * time.Hour
	if err := scheduler.AddJob(job.NewSyncHistoryCleanupJob(a.syncRuns, historyAge), cfg.CacheCleanup.Cron); err != nil {
		return fmt.Errorf("schedule sync history cleanup: %w", err)
	}
	if cfg.Sync.ScheduleEnabled && len(cfg.Sync.Targets) > 0 {
		if err := scheduler.AddJob(job.NewScheduledSyncJob(a.syncSvc, cfg.Sync.Targets), cfg.Sync.Cron); err != nil {
			return fmt.Errorf("schedule sync: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Sync:           handler.NewSyncHandler(a.syncSvc),
		Search:         handler.NewSearchHandler(a.searchSvc),
		SyncRateWindow: time.Duration(cfg.HTTP.SyncRateLimitMs) * time.Millisecond,
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.HTTP.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logger.Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("server stopping...")
	return nil
}

// runOnce syncs a single target without the http server and waits for the
// terminal run.
func runOnce(ctx context.Context, cfg *config.Config, versionID string, src model.SourceDescriptor) error {
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.syncSvc.Start(ctx); err != nil {
		return err
	}
	future, err := a.syncSvc.SyncFromSource(ctx, versionID, src)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("run_id", future.RunID), zap.String("version_id", versionID))
	logger.Info("sync accepted")
	run, err := future.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for run %s: %w", future.RunID, err)
	}
	logger.Info("sync finished",
		zap.String("status", string(run.Status)),
		zap.Int("documents_processed", run.DocumentsProcessed),
		zap.Int("chunks_created", run.ChunksCreated),
	)
	if run.Status != model.SyncStatusSuccess {
		return fmt.Errorf("sync run %s failed: %s", run.ID, run.ErrorMessage)
	}
	return nil
}
