package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/docindex/internal/model"
	"github.com/xxxsen/docindex/internal/pkg/dbutil"
)

type CodeExampleRepo struct {
	db dbutil.Executor
}

func NewCodeExampleRepo(db *sql.DB) *CodeExampleRepo {
	return &CodeExampleRepo{db: db}
}

func (r *CodeExampleRepo) WithTx(tx *sql.Tx) *CodeExampleRepo {
	return &CodeExampleRepo{db: tx}
}

func (r *CodeExampleRepo) CreateBatch(ctx context.Context, items []*model.CodeExample) error {
	if len(items) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		data = append(data, map[string]interface{}{
			"id":          item.ID,
			"document_id": item.DocumentID,
			"language":    item.Language,
			"code":        item.Code,
			"description": item.Description,
			"ctime":       item.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("code_examples", data)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *CodeExampleRepo) ListByDocument(ctx context.Context, documentID string) ([]*model.CodeExample, error) {
	where := map[string]interface{}{
		"document_id": documentID,
		"_orderby":    "ctime asc",
	}
	sqlStr, args, err := builder.BuildSelect("code_examples", where, []string{"id", "document_id", "language", "code", "description", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.query(ctx, sqlStr, args)
}

// ListByVersion returns code examples of a version, optionally narrowed to one language.
func (r *CodeExampleRepo) ListByVersion(ctx context.Context, versionID, language string, limit int) ([]*model.CodeExample, error) {
	sqlStr := `SELECT c.id, c.document_id, c.language, c.code, c.description, c.ctime
		FROM code_examples c JOIN documents d ON d.id = c.document_id
		WHERE d.version_id = ?`
	args := []interface{}{versionID}
	if language != "" {
		sqlStr += ` AND lower(c.language) = lower(?)`
		args = append(args, language)
	}
	sqlStr += ` ORDER BY d.path ASC, c.ctime ASC LIMIT ?`
	args = append(args, limit)
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.query(ctx, sqlStr, args)
}

func (r *CodeExampleRepo) query(ctx context.Context, sqlStr string, args []interface{}) ([]*model.CodeExample, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*model.CodeExample
	for rows.Next() {
		var item model.CodeExample
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.Language, &item.Code, &item.Description, &item.Ctime); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}
