package service

import (
	"context"

	"github.com/xxxsen/docindex/internal/model"
)

// SyncFuture resolves to the terminal record of an accepted sync run.
type SyncFuture struct {
	RunID string
	done  chan struct{}
	run   *model.SyncRun
}

func newSyncFuture(runID string) *SyncFuture {
	return &SyncFuture{RunID: runID, done: make(chan struct{})}
}

func (f *SyncFuture) resolve(run *model.SyncRun) {
	f.run = run
	close(f.done)
}

func (f *SyncFuture) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the run is terminal or ctx ends. Giving up on the wait
// does not stop the run.
func (f *SyncFuture) Wait(ctx context.Context) (*model.SyncRun, error) {
	select {
	case <-f.done:
		return f.run, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CompletedSyncFuture returns a future that is already resolved to run.
func CompletedSyncFuture(run *model.SyncRun) *SyncFuture {
	f := newSyncFuture(run.ID)
	f.resolve(run)
	return f
}
