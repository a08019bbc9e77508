package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/docindex/internal/model"
	"github.com/xxxsen/docindex/internal/pkg/dbutil"
	appErr "github.com/xxxsen/docindex/internal/pkg/errors"
)

var syncRunFields = []string{"id", "version_id", "status", "source", "started_at", "completed_at", "documents_processed", "chunks_created", "error_message"}

type SyncRunRepo struct {
	db *sql.DB
}

func NewSyncRunRepo(db *sql.DB) *SyncRunRepo {
	return &SyncRunRepo{db: db}
}

// Create inserts a PENDING run. The partial unique index on active runs turns
// a concurrent second run for the same version into ErrConflict.
func (r *SyncRunRepo) Create(ctx context.Context, run *model.SyncRun) error {
	data := map[string]interface{}{
		"id":                  run.ID,
		"version_id":          run.VersionID,
		"status":              string(run.Status),
		"source":              run.Source,
		"started_at":          run.StartedAt,
		"completed_at":        run.CompletedAt,
		"documents_processed": run.DocumentsProcessed,
		"chunks_created":      run.ChunksCreated,
		"error_message":       run.ErrorMessage,
	}
	sqlStr, args, err := builder.BuildInsert("sync_runs", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *SyncRunRepo) MarkRunning(ctx context.Context, id string) error {
	where := map[string]interface{}{
		"id":     id,
		"status": string(model.SyncStatusPending),
	}
	update := map[string]interface{}{
		"status": string(model.SyncStatusRunning),
	}
	return r.update(ctx, where, update)
}

// Complete writes the terminal state; it only applies to a run that is still active.
func (r *SyncRunRepo) Complete(ctx context.Context, run *model.SyncRun) error {
	where := map[string]interface{}{
		"id":        run.ID,
		"status in": []string{string(model.SyncStatusPending), string(model.SyncStatusRunning)},
	}
	update := map[string]interface{}{
		"status":              string(run.Status),
		"completed_at":        run.CompletedAt,
		"documents_processed": run.DocumentsProcessed,
		"chunks_created":      run.ChunksCreated,
		"error_message":       run.ErrorMessage,
	}
	return r.update(ctx, where, update)
}

// FailActive closes every run left active by a previous process.
func (r *SyncRunRepo) FailActive(ctx context.Context, message string, completedAt int64) (int64, error) {
	where := map[string]interface{}{
		"status in": []string{string(model.SyncStatusPending), string(model.SyncStatusRunning)},
	}
	update := map[string]interface{}{
		"status":        string(model.SyncStatusFailed),
		"completed_at":  completedAt,
		"error_message": message,
	}
	sqlStr, args, err := builder.BuildUpdate("sync_runs", where, update)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SyncRunRepo) update(ctx context.Context, where, update map[string]interface{}) error {
	sqlStr, args, err := builder.BuildUpdate("sync_runs", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *SyncRunRepo) GetByID(ctx context.Context, id string) (*model.SyncRun, error) {
	runs, err := r.list(ctx, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, appErr.ErrNotFound
	}
	return runs[0], nil
}

func (r *SyncRunRepo) Latest(ctx context.Context, versionID string) (*model.SyncRun, error) {
	runs, err := r.List(ctx, versionID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, appErr.ErrNotFound
	}
	return runs[0], nil
}

// List returns the most recent runs first; an empty versionID lists all versions.
func (r *SyncRunRepo) List(ctx context.Context, versionID string, limit int) ([]*model.SyncRun, error) {
	where := map[string]interface{}{
		"_orderby": "started_at desc",
	}
	if versionID != "" {
		where["version_id"] = versionID
	}
	if limit > 0 {
		where["_limit"] = []uint{0, uint(limit)}
	}
	return r.list(ctx, where)
}

func (r *SyncRunRepo) list(ctx context.Context, where map[string]interface{}) ([]*model.SyncRun, error) {
	sqlStr, args, err := builder.BuildSelect("sync_runs", where, syncRunFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	runs := []*model.SyncRun{}
	for rows.Next() {
		var run model.SyncRun
		var status string
		if err := rows.Scan(&run.ID, &run.VersionID, &status, &run.Source, &run.StartedAt, &run.CompletedAt,
			&run.DocumentsProcessed, &run.ChunksCreated, &run.ErrorMessage); err != nil {
			return nil, err
		}
		run.Status = model.SyncStatus(status)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// DeleteFinishedBefore prunes terminal runs that completed before cutoffMillis.
func (r *SyncRunRepo) DeleteFinishedBefore(ctx context.Context, cutoffMillis int64) (int64, error) {
	where := map[string]interface{}{
		"status in":      []string{string(model.SyncStatusSuccess), string(model.SyncStatusFailed)},
		"completed_at <": cutoffMillis,
	}
	sqlStr, args, err := builder.BuildDelete("sync_runs", where)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
