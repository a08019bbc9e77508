package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/docindex/internal/model"
	"github.com/xxxsen/docindex/internal/pkg/dbutil"
	appErr "github.com/xxxsen/docindex/internal/pkg/errors"
)

var documentFields = []string{"id", "version_id", "title", "path", "content", "content_hash", "doc_type", "ctime", "mtime"}

type DocumentRepo struct {
	db dbutil.Executor
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// WithTx returns a copy of the repo bound to tx.
func (r *DocumentRepo) WithTx(tx *sql.Tx) *DocumentRepo {
	return &DocumentRepo{db: tx}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":           doc.ID,
		"version_id":   doc.VersionID,
		"title":        doc.Title,
		"path":         doc.Path,
		"content":      doc.Content,
		"content_hash": doc.ContentHash,
		"doc_type":     doc.DocType,
		"ctime":        doc.Ctime,
		"mtime":        doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
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

// Delete removes the document; chunks and code examples follow by cascade.
func (r *DocumentRepo) Delete(ctx context.Context, docID string) error {
	where := map[string]interface{}{
		"id": docID,
	}
	sqlStr, args, err := builder.BuildDelete("documents", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *DocumentRepo) GetByVersionAndPath(ctx context.Context, versionID, path string) (*model.Document, error) {
	where := map[string]interface{}{
		"version_id": versionID,
		"path":       path,
	}
	docs, err := r.list(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, appErr.ErrNotFound
	}
	return docs[0], nil
}

func (r *DocumentRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.Document, error) {
	if len(ids) == 0 {
		return []*model.Document{}, nil
	}
	where := map[string]interface{}{
		"id in": ids,
	}
	return r.list(ctx, where)
}

func (r *DocumentRepo) CountByVersion(ctx context.Context, versionID string) (int, error) {
	sqlStr, args := dbutil.Finalize("SELECT COUNT(1) FROM documents WHERE version_id = ?", []interface{}{versionID})
	var count int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DocumentRepo) list(ctx context.Context, where map[string]interface{}) ([]*model.Document, error) {
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var doc model.Document
	if err := row.Scan(&doc.ID, &doc.VersionID, &doc.Title, &doc.Path, &doc.Content, &doc.ContentHash, &doc.DocType, &doc.Ctime, &doc.Mtime); err != nil {
		return nil, err
	}
	return &doc, nil
}

type DocumentHit struct {
	Document *model.Document
	Rank     float64
}

// FullTextSearch ranks documents of one version against query using the
// weighted title/content tsvector.
func (r *DocumentRepo) FullTextSearch(ctx context.Context, versionID, query string, limit int) ([]*DocumentHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*DocumentHit{}, nil
	}
	sqlStr := `SELECT ` + strings.Join(documentFields, ", ") + `, ts_rank(search_vector, plainto_tsquery('english', ?)) AS rank
		FROM documents
		WHERE version_id = ? AND search_vector @@ plainto_tsquery('english', ?)
		ORDER BY rank DESC, path ASC
		LIMIT ?`
	sqlStr, args := dbutil.Finalize(sqlStr, []interface{}{query, versionID, query, limit})
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	hits := make([]*DocumentHit, 0, limit)
	for rows.Next() {
		var doc model.Document
		var rank float64
		if err := rows.Scan(&doc.ID, &doc.VersionID, &doc.Title, &doc.Path, &doc.Content, &doc.ContentHash, &doc.DocType, &doc.Ctime, &doc.Mtime, &rank); err != nil {
			return nil, err
		}
		hits = append(hits, &DocumentHit{Document: &doc, Rank: rank})
	}
	return hits, rows.Err()
}
