package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xxxsen/docindex/internal/model"
	"github.com/xxxsen/docindex/internal/pkg/dbutil"
	"github.com/xxxsen/docindex/internal/repo"
	"github.com/xxxsen/docindex/internal/vectorstore"
)

type syncRunStore interface {
	Create(ctx context.Context, run *model.SyncRun) error
	MarkRunning(ctx context.Context, id string) error
	Complete(ctx context.Context, run *model.SyncRun) error
	FailActive(ctx context.Context, message string, completedAt int64) (int64, error)
	GetByID(ctx context.Context, id string) (*model.SyncRun, error)
	Latest(ctx context.Context, versionID string) (*model.SyncRun, error)
	List(ctx context.Context, versionID string, limit int) ([]*model.SyncRun, error)
}

// documentIndex is the persistence side of ingestion. Replace swaps the
// previous document of a path for a new one atomically.
type documentIndex interface {
	GetByVersionAndPath(ctx context.Context, versionID, path string) (*model.Document, error)
	Replace(ctx context.Context, previous, doc *model.Document, chunks []*model.IndexedChunk, examples []*model.CodeExample) error
}

type textEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type pgDocumentIndex struct {
	db       *sql.DB
	docs     *repo.DocumentRepo
	examples *repo.CodeExampleRepo
	store    *vectorstore.PgVectorStore
}

func (x *pgDocumentIndex) GetByVersionAndPath(ctx context.Context, versionID, path string) (*model.Document, error) {
	return x.docs.GetByVersionAndPath(ctx, versionID, path)
}

// Replace deletes previous (cascading its chunks and examples) and writes doc
// with its chunks and examples in one transaction.
func (x *pgDocumentIndex) Replace(ctx context.Context, previous, doc *model.Document,
	chunks []*model.IndexedChunk, examples []*model.CodeExample) error {
	return dbutil.WithTx(ctx, x.db, func(tx *sql.Tx) error {
		docs := x.docs.WithTx(tx)
		if previous != nil {
			if err := docs.Delete(ctx, previous.ID); err != nil {
				return fmt.Errorf("delete previous document: %w", err)
			}
		}
		if err := docs.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := x.store.Upsert(ctx, tx, chunks); err != nil {
			return err
		}
		return x.examples.WithTx(tx).CreateBatch(ctx, examples)
	})
}
