package repo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docindex/internal/model"
	appErr "github.com/xxxsen/docindex/internal/pkg/errors"
	"github.com/xxxsen/docindex/internal/pkg/timeutil"
	"github.com/xxxsen/docindex/internal/repo"
	"github.com/xxxsen/docindex/internal/testutil"
)

func newDoc(versionID, path, title, content string) *model.Document {
	now := timeutil.NowUnix()
	return &model.Document{
		ID:          uuid.NewString(),
		VersionID:   versionID,
		Title:       title,
		Path:        path,
		Content:     content,
		ContentHash: "hash-" + path,
		DocType:     "markdown",
		Ctime:       now,
		Mtime:       now,
	}
}

func TestDocumentRepoCRUDAndSearch(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	docs := repo.NewDocumentRepo(db)
	versionID := "repo-test-" + uuid.NewString()

	install := newDoc(versionID, "docs/install.md", "Installation", "Run the installer and configure the proxy settings.")
	usage := newDoc(versionID, "docs/usage.md", "Usage", "Call the client with a context.")
	require.NoError(t, docs.Create(ctx, install))
	require.NoError(t, docs.Create(ctx, usage))
	require.ErrorIs(t, docs.Create(ctx, newDoc(versionID, "docs/install.md", "dup", "dup")), appErr.ErrConflict)

	fetched, err := docs.GetByVersionAndPath(ctx, versionID, "docs/install.md")
	require.NoError(t, err)
	require.Equal(t, install.ID, fetched.ID)
	require.Equal(t, "Installation", fetched.Title)

	_, err = docs.GetByVersionAndPath(ctx, "other-"+versionID, "docs/install.md")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	count, err := docs.CountByVersion(ctx, versionID)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	hits, err := docs.FullTextSearch(ctx, versionID, "installer proxy", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, install.ID, hits[0].Document.ID)
	require.Greater(t, hits[0].Rank, float64(0))

	hits, err = docs.FullTextSearch(ctx, "other-"+versionID, "installer", 10)
	require.NoError(t, err)
	require.Empty(t, hits)

	listed, err := docs.ListByIDs(ctx, []string{usage.ID, uuid.NewString()})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, docs.Delete(ctx, install.ID))
	_, err = docs.GetByVersionAndPath(ctx, versionID, "docs/install.md")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestCodeExampleRepoListByVersion(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	docs := repo.NewDocumentRepo(db)
	examples := repo.NewCodeExampleRepo(db)
	versionID := "repo-test-" + uuid.NewString()

	doc := newDoc(versionID, "docs/a.md", "A", "a")
	require.NoError(t, docs.Create(ctx, doc))
	now := timeutil.NowUnix()
	require.NoError(t, examples.CreateBatch(ctx, []*model.CodeExample{
		{ID: uuid.NewString(), DocumentID: doc.ID, Language: "go", Code: "fmt.Println(1)", Ctime: now},
		{ID: uuid.NewString(), DocumentID: doc.ID, Language: "bash", Code: "ls", Ctime: now},
	}))

	all, err := examples.ListByVersion(ctx, versionID, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)

	goOnly, err := examples.ListByVersion(ctx, versionID, "Go", 10)
	require.NoError(t, err)
	require.Len(t, goOnly, 1)
	require.Equal(t, "go", goOnly[0].Language)

	require.NoError(t, docs.Delete(ctx, doc.ID))
	byDoc, err := examples.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Empty(t, byDoc)
}

func TestSyncRunRepoLifecycle(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	runs := repo.NewSyncRunRepo(db)
	versionID := "repo-test-" + uuid.NewString()

	run := &model.SyncRun{
		ID:        uuid.NewString(),
		VersionID: versionID,
		Status:    model.SyncStatusPending,
		Source:    "local:/tmp/docs",
		StartedAt: timeutil.NowUnixMilli(),
	}
	require.NoError(t, runs.Create(ctx, run))

	second := *run
	second.ID = uuid.NewString()
	require.ErrorIs(t, runs.Create(ctx, &second), appErr.ErrConflict)

	require.NoError(t, runs.MarkRunning(ctx, run.ID))
	fetched, err := runs.GetByID(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, model.SyncStatusRunning, fetched.Status)

	run.Status = model.SyncStatusSuccess
	run.CompletedAt = 1000
	run.DocumentsProcessed = 4
	run.ChunksCreated = 9
	require.NoError(t, runs.Complete(ctx, run))

	latest, err := runs.Latest(ctx, versionID)
	require.NoError(t, err)
	require.Equal(t, run.ID, latest.ID)
	require.Equal(t, model.SyncStatusSuccess, latest.Status)
	require.Equal(t, 9, latest.ChunksCreated)

	second.StartedAt = run.StartedAt + 1
	require.NoError(t, runs.Create(ctx, &second))
	listed, err := runs.List(ctx, versionID, 10)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, second.ID, listed[0].ID)

	deleted, err := runs.DeleteFinishedBefore(ctx, 1001)
	require.NoError(t, err)
	require.GreaterOrEqual(t, deleted, int64(1))
	_, err = runs.GetByID(ctx, run.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = runs.GetByID(ctx, second.ID)
	require.NoError(t, err)

	second.Status = model.SyncStatusFailed
	second.CompletedAt = timeutil.NowUnixMilli()
	second.ErrorMessage = "interrupted"
	require.NoError(t, runs.Complete(ctx, &second))
	second.Status = model.SyncStatusSuccess
	require.ErrorIs(t, runs.Complete(ctx, &second), appErr.ErrNotFound)
	failed, err := runs.GetByID(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, model.SyncStatusFailed, failed.Status)
	require.Equal(t, "interrupted", failed.ErrorMessage)
}
