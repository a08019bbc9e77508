package vectorstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docindex/internal/model"
	"github.com/xxxsen/docindex/internal/repo"
	"github.com/xxxsen/docindex/internal/testutil"
)

func newTestStore(t *testing.T) (*PgVectorStore, *sql.DB, *testutil.HashEmbedder, func()) {
	conn, cleanup := testutil.OpenTestDB(t)
	embedder := &testutil.HashEmbedder{Dims: testutil.EmbeddingDims}
	return NewPgVectorStore(conn, embedder, testutil.EmbeddingDims, 2), conn, embedder, cleanup
}

func createDocument(t *testing.T, conn *sql.DB, versionID string) string {
	t.Helper()
	now := time.Now().Unix()
	doc := &model.Document{
		ID:        uuid.NewString(),
		VersionID: versionID,
		Title:     "Guide",
		Path:      "docs/" + uuid.NewString() + ".md",
		Ctime:     now,
		Mtime:     now,
	}
	require.NoError(t, repo.NewDocumentRepo(conn).Create(context.Background(), doc))
	return doc.ID
}

func TestStoreAddAndSearch(t *testing.T) {
	store, conn, _, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()
	versionID := uuid.NewString()
	docID := createDocument(t, conn, versionID)

	ids, err := store.Add(ctx, []Record{
		{Text: "configure the http server port", Metadata: model.Metadata{model.MetaDocumentID: docID, model.MetaVersionID: versionID, model.MetaChunkIndex: 0}},
		{Text: "database connection pooling", Metadata: model.Metadata{model.MetaDocumentID: docID, model.MetaVersionID: versionID, model.MetaChunkIndex: 1}},
		{Text: "logging levels and sinks", Metadata: model.Metadata{model.MetaDocumentID: docID, model.MetaVersionID: versionID, model.MetaChunkIndex: 2}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	hits, err := store.SimilaritySearch(ctx, SearchRequest{
		Query:  "configure the http server port",
		TopK:   3,
		Filter: Eq(model.MetaVersionID, versionID),
	})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, ids[0], hits[0].ID)
	require.InDelta(t, 1.0, hits[0].Similarity, 1e-5)
	for i := 1; i < len(hits); i++ {
		require.GreaterOrEqual(t, hits[i-1].Similarity, hits[i].Similarity)
	}

	other, err := store.SimilaritySearch(ctx, SearchRequest{Query: "configure", TopK: 3, Filter: Eq(model.MetaVersionID, "other")})
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestStoreAddOverwritesSameID(t *testing.T) {
	store, conn, _, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docID := createDocument(t, conn, uuid.NewString())
	id := uuid.NewString()

	_, err := store.Add(ctx, []Record{{ID: id, Text: "first text", Metadata: model.Metadata{model.MetaDocumentID: docID}}})
	require.NoError(t, err)
	_, err = store.Add(ctx, []Record{{ID: id, Text: "second text here", Metadata: model.Metadata{model.MetaDocumentID: docID}}})
	require.NoError(t, err)

	var count int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(1) FROM document_chunks WHERE id = $1`, id).Scan(&count))
	require.Equal(t, 1, count)
	chunks, err := store.ListByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, "second text here", chunks[0].Content)
	require.Len(t, chunks[0].Embedding, testutil.EmbeddingDims)
}

func TestStoreBlankQuerySkipsEmbedding(t *testing.T) {
	embedder := &testutil.HashEmbedder{}
	store := NewPgVectorStore(nil, embedder, testutil.EmbeddingDims, 0)
	hits, err := store.SimilaritySearch(context.Background(), SearchRequest{Query: "   ", TopK: 5})
	require.NoError(t, err)
	require.Empty(t, hits)
	require.Equal(t, 0, embedder.Calls())
}

func TestStoreNoopOnEmptyInput(t *testing.T) {
	store := NewPgVectorStore(nil, &testutil.HashEmbedder{}, testutil.EmbeddingDims, 0)
	ids, err := store.Add(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, ids)
	require.NoError(t, store.Delete(context.Background(), nil))
	n, err := store.DeleteByFilter(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, "pgvector-document-chunks", store.Name())
}

func TestStoreRejectsWrongDimension(t *testing.T) {
	store := NewPgVectorStore(nil, &testutil.HashEmbedder{Dims: 4}, 8, 0)
	_, err := store.Add(context.Background(), []Record{{Text: "x", Metadata: model.Metadata{model.MetaDocumentID: "d"}}})
	require.ErrorContains(t, err, "dimension")
}

func TestStoreDeleteByIDsAndFilter(t *testing.T) {
	store, conn, _, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()
	versionID := uuid.NewString()
	docID := createDocument(t, conn, versionID)

	ids, err := store.Add(ctx, []Record{
		{Text: "alpha", Metadata: model.Metadata{model.MetaDocumentID: docID, model.MetaVersionID: versionID, model.MetaChunkIndex: 0, "section": `quote"and\slash`}},
		{Text: "beta", Metadata: model.Metadata{model.MetaDocumentID: docID, model.MetaVersionID: versionID, model.MetaChunkIndex: 1}},
		{Text: "gamma", Metadata: model.Metadata{model.MetaDocumentID: docID, model.MetaVersionID: versionID, model.MetaChunkIndex: 2}},
	})
	require.NoError(t, err)

	n, err := store.DeleteByFilter(ctx, And(Eq(model.MetaVersionID, versionID), Eq("section", `quote"and\slash`)))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	require.NoError(t, store.Delete(ctx, []string{ids[1]}))
	chunks, err := store.ListByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, ids[2], chunks[0].ID)

	n, err = store.DeleteByFilter(ctx, And(Eq(model.MetaVersionID, versionID), Gte(model.MetaChunkIndex, 2)))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestEFSearchFor(t *testing.T) {
	require.Equal(t, 40, efSearchFor(1, 0))
	require.Equal(t, 100, efSearchFor(10, 0))
	require.Equal(t, 200, efSearchFor(10, 200))
	require.Equal(t, 1000, efSearchFor(500, 0))
	require.Equal(t, 1000, efSearchFor(5, 5000))
}

func TestSetHNSWTuningValidatesMode(t *testing.T) {
	store := NewPgVectorStore(nil, nil, 3, 0)
	require.NoError(t, store.SetHNSWTuning(0, " Relaxed_Order "))
	require.Equal(t, "relaxed_order", store.iterativeScan)
	require.NoError(t, store.SetHNSWTuning(100, ""))
	require.Error(t, store.SetHNSWTuning(0, "fast"))
	require.Equal(t, 100, store.efSearch)
}

func TestStoreFilteredSearchFillsTopK(t *testing.T) {
	store, conn, _, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()
	noiseVersion := uuid.NewString()
	noiseDoc := createDocument(t, conn, noiseVersion)
	var noise []Record
	for i := 0; i < 60; i++ {
		noise = append(noise, Record{
			Text:     "configure the http server port",
			Metadata: model.Metadata{model.MetaDocumentID: noiseDoc, model.MetaVersionID: noiseVersion, model.MetaChunkIndex: i},
		})
	}
	_, err := store.Add(ctx, noise)
	require.NoError(t, err)

	versionID := uuid.NewString()
	docID := createDocument(t, conn, versionID)
	_, err = store.Add(ctx, []Record{
		{Text: "http server port settings", Metadata: model.Metadata{model.MetaDocumentID: docID, model.MetaVersionID: versionID, model.MetaChunkIndex: 0}},
		{Text: "tuning the server", Metadata: model.Metadata{model.MetaDocumentID: docID, model.MetaVersionID: versionID, model.MetaChunkIndex: 1}},
		{Text: "ports and listeners", Metadata: model.Metadata{model.MetaDocumentID: docID, model.MetaVersionID: versionID, model.MetaChunkIndex: 2}},
	})
	require.NoError(t, err)

	hits, err := store.SimilaritySearch(ctx, SearchRequest{
		Query:               "configure the http server port",
		TopK:                3,
		SimilarityThreshold: -1,
		Filter:              Eq(model.MetaVersionID, versionID),
	})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for _, h := range hits {
		require.Equal(t, docID, h.DocumentID)
	}
}
