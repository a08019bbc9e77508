package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docindex/internal/ai"
	"github.com/xxxsen/docindex/internal/model"
	"github.com/xxxsen/docindex/internal/pkg/dbutil"
)

const storeName = "pgvector-document-chunks"

// Record is an input row for Add. Metadata must carry the owning document id
// under model.MetaDocumentID.
type Record struct {
	ID       string
	Text     string
	Metadata model.Metadata
}

type SearchRequest struct {
	Query               string
	TopK                int
	SimilarityThreshold float64
	Filter              *Expression
}

type PgVectorStore struct {
	db        *sql.DB
	embedder  ai.IEmbedder
	dims      int
	batchSize int

	efSearch      int
	iterativeScan string
}

const (
	minEFSearch = 40
	maxEFSearch = 1000
	efPerResult = 10
)

var iterativeScanModes = map[string]bool{"": true, "off": true, "relaxed_order": true, "strict_order": true}

func NewPgVectorStore(db *sql.DB, embedder ai.IEmbedder, dims, batchSize int) *PgVectorStore {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &PgVectorStore{db: db, embedder: embedder, dims: dims, batchSize: batchSize}
}

// SetHNSWTuning sets the ef_search floor and the hnsw.iterative_scan mode used
// by SimilaritySearch. iterativeScan needs pgvector 0.8; empty leaves the
// server default.
func (s *PgVectorStore) SetHNSWTuning(efSearch int, iterativeScan string) error {
	iterativeScan = strings.ToLower(strings.TrimSpace(iterativeScan))
	if !iterativeScanModes[iterativeScan] {
		return fmt.Errorf("unknown hnsw iterative scan mode %q", iterativeScan)
	}
	s.efSearch = efSearch
	s.iterativeScan = iterativeScan
	return nil
}

// efSearchFor sizes the HNSW candidate list. A jsonpath filter is applied
// after the index scan, so the list must stay well above topK or filtered
// searches come back short.
func efSearchFor(topK, floor int) int {
	ef := topK * efPerResult
	if ef < floor {
		ef = floor
	}
	if ef < minEFSearch {
		ef = minEFSearch
	}
	if ef > maxEFSearch {
		ef = maxEFSearch
	}
	return ef
}

func (s *PgVectorStore) Name() string {
	return storeName
}

func (s *PgVectorStore) Dimensions() int {
	return s.dims
}

// EmbedTexts embeds texts in batches and checks every vector against the
// store width.
func (s *PgVectorStore) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := ai.BatchEmbed(ctx, s.embedder, texts, ai.TaskTypeDocument, s.batchSize)
	if err != nil {
		return nil, err
	}
	for i, vec := range vectors {
		if len(vec) != s.dims {
			return nil, fmt.Errorf("embedding %d has dimension %d, store expects %d", i, len(vec), s.dims)
		}
	}
	return vectors, nil
}

// Add embeds all records in one pass and upserts them in a single transaction.
// Records without an id get a generated one. The ids are returned in input order.
func (s *PgVectorStore) Add(ctx context.Context, records []Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	texts := make([]string, 0, len(records))
	for _, rec := range records {
		texts = append(texts, rec.Text)
	}
	vectors, err := s.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed records: %w", err)
	}
	chunks := make([]*model.IndexedChunk, 0, len(records))
	ids := make([]string, 0, len(records))
	for i, rec := range records {
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		meta := cloneMetadata(rec.Metadata)
		documentID := meta.String(model.MetaDocumentID)
		if documentID == "" {
			return nil, fmt.Errorf("record %d: metadata %s is required", i, model.MetaDocumentID)
		}
		tokens := ai.EstimateTokens(rec.Text)
		meta[model.MetaTokenCount] = tokens
		chunks = append(chunks, &model.IndexedChunk{
			ID:         id,
			DocumentID: documentID,
			ChunkIndex: meta.Int(model.MetaChunkIndex),
			Content:    rec.Text,
			Embedding:  vectors[i],
			TokenCount: tokens,
			Metadata:   meta,
		})
		ids = append(ids, id)
	}
	err = dbutil.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.Upsert(ctx, tx, chunks)
	})
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Debug("vector store records added", zap.Int("count", len(ids)))
	return ids, nil
}

// Upsert writes already embedded chunks through exec, which may be a transaction.
func (s *PgVectorStore) Upsert(ctx context.Context, exec dbutil.Executor, chunks []*model.IndexedChunk) error {
	const query = `
		INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding, token_count, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			token_count = EXCLUDED.token_count,
			metadata = EXCLUDED.metadata
	`
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		var embedding interface{}
		if c.Embedding != nil {
			if len(c.Embedding) != s.dims {
				return fmt.Errorf("chunk %s has dimension %d, store expects %d", c.ID, len(c.Embedding), s.dims)
			}
			embedding = pgvector.NewVector(c.Embedding)
		}
		meta, err := json.Marshal(nonNilMetadata(c.Metadata))
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		if _, err := exec.ExecContext(ctx, query, c.ID, c.DocumentID, c.ChunkIndex, c.Content, embedding, c.TokenCount, string(meta)); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

func (s *PgVectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	return err
}

// DeleteByFilter removes every chunk whose metadata satisfies filter.
func (s *PgVectorStore) DeleteByFilter(ctx context.Context, filter *Expression) (int64, error) {
	if filter == nil {
		return 0, nil
	}
	predicate, err := Compile(filter)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE metadata @@ $1::jsonpath`, predicate)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SimilaritySearch ranks stored chunks by cosine similarity to the query.
func (s *PgVectorStore) SimilaritySearch(ctx context.Context, req SearchRequest) ([]*model.ScoredChunk, error) {
	if strings.TrimSpace(req.Query) == "" || req.TopK <= 0 {
		return []*model.ScoredChunk{}, nil
	}
	predicate, err := Compile(req.Filter)
	if err != nil {
		return nil, err
	}
	queryVec, err := s.embedder.Embed(ctx, req.Query, ai.TaskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVec) != s.dims {
		return nil, fmt.Errorf("query embedding has dimension %d, store expects %d", len(queryVec), s.dims)
	}
	vec := pgvector.NewVector(queryVec)
	sqlStr := `SELECT id, document_id, chunk_index, content, token_count, metadata, created_at, 1 - (embedding <=> ?) AS similarity
		FROM document_chunks
		WHERE embedding IS NOT NULL`
	args := []interface{}{vec}
	if predicate != "" {
		sqlStr += ` AND metadata @@ CAST(? AS jsonpath)`
		args = append(args, predicate)
	}
	sqlStr += ` AND 1 - (embedding <=> ?) >= ?
		ORDER BY embedding <=> ? ASC
		LIMIT ?`
	args = append(args, vec, req.SimilarityThreshold, vec, req.TopK)
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var out []*model.ScoredChunk
	err = dbutil.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearchFor(req.TopK, s.efSearch))); err != nil {
			return fmt.Errorf("set hnsw.ef_search: %w", err)
		}
		if s.iterativeScan != "" {
			if _, err := tx.ExecContext(ctx, "SET LOCAL hnsw.iterative_scan = "+s.iterativeScan); err != nil {
				return fmt.Errorf("set hnsw.iterative_scan: %w", err)
			}
		}
		rows, err := tx.QueryContext(ctx, sqlStr, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = make([]*model.ScoredChunk, 0, req.TopK)
		for rows.Next() {
			var item model.ScoredChunk
			var meta []byte
			if err := rows.Scan(&item.ID, &item.DocumentID, &item.ChunkIndex, &item.Content, &item.TokenCount, &meta, &item.CreatedAt, &item.Similarity); err != nil {
				return err
			}
			if err := decodeMetadata(meta, &item.Metadata); err != nil {
				return err
			}
			out = append(out, &item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByDocument returns the stored chunks of one document in chunk order.
func (s *PgVectorStore) ListByDocument(ctx context.Context, documentID string) ([]*model.IndexedChunk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, document_id, chunk_index, content, embedding, token_count, metadata, created_at
		FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.IndexedChunk
	for rows.Next() {
		var item model.IndexedChunk
		var embedding *pgvector.Vector
		var meta []byte
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.ChunkIndex, &item.Content, &embedding, &item.TokenCount, &meta, &item.CreatedAt); err != nil {
			return nil, err
		}
		if embedding != nil {
			item.Embedding = embedding.Slice()
		}
		if err := decodeMetadata(meta, &item.Metadata); err != nil {
			return nil, err
		}
		out = append(out, &item)
	}
	return out, rows.Err()
}

func decodeMetadata(raw []byte, dst *model.Metadata) error {
	if len(raw) == 0 {
		*dst = model.Metadata{}
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	return nil
}

func cloneMetadata(m model.Metadata) model.Metadata {
	out := make(model.Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func nonNilMetadata(m model.Metadata) model.Metadata {
	if m == nil {
		return model.Metadata{}
	}
	return m
}
