package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docindex/internal/model"
	"github.com/xxxsen/docindex/internal/repo"
	"github.com/xxxsen/docindex/internal/vectorstore"
)

type fakeLexical struct {
	hits   []*repo.DocumentHit
	docs   map[string]*model.Document
	lookup [][]string
}

func (f *fakeLexical) FullTextSearch(ctx context.Context, versionID, query string, limit int) ([]*repo.DocumentHit, error) {
	if len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func (f *fakeLexical) ListByIDs(ctx context.Context, ids []string) ([]*model.Document, error) {
	f.lookup = append(f.lookup, ids)
	var out []*model.Document
	for _, id := range ids {
		if d, ok := f.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeChunks struct {
	hits []*model.ScoredChunk
	reqs []vectorstore.SearchRequest
}

func (f *fakeChunks) SimilaritySearch(ctx context.Context, req vectorstore.SearchRequest) ([]*model.ScoredChunk, error) {
	f.reqs = append(f.reqs, req)
	return f.hits, nil
}

func scored(id, docID string, sim float64) *model.ScoredChunk {
	return &model.ScoredChunk{
		IndexedChunk: model.IndexedChunk{ID: id, DocumentID: docID, Content: "chunk " + id},
		Similarity:   sim,
	}
}

func TestFuseRRFScores(t *testing.T) {
	const k = 60.0
	lexical := []*model.SearchResult{{DocumentID: "a"}, {DocumentID: "b"}, {DocumentID: "c"}}
	semantic := []*model.SearchResult{{DocumentID: "d"}, {DocumentID: "e"}, {DocumentID: "a"}}
	fused := FuseRRF(k, lexical, semantic)
	require.Len(t, fused, 5)
	require.Equal(t, "a", fused[0].DocumentID)
	require.InDelta(t, 1/(k+1)+1/(k+3), fused[0].Score, 1e-12)
	scores := map[string]float64{}
	for _, r := range fused {
		scores[r.DocumentID] = r.Score
	}
	require.InDelta(t, 1/(k+2), scores["b"], 1e-12)
	require.InDelta(t, 1/(k+1), scores["d"], 1e-12)
	for i := 1; i < len(fused); i++ {
		require.GreaterOrEqual(t, fused[i-1].Score, fused[i].Score)
	}
}

func TestFuseRRFDedupesWithinList(t *testing.T) {
	semantic := []*model.SearchResult{
		{DocumentID: "a", ChunkID: "a1"},
		{DocumentID: "a", ChunkID: "a2"},
		{DocumentID: "b", ChunkID: "b1"},
	}
	fused := FuseRRF(60, semantic)
	require.Len(t, fused, 2)
	require.Equal(t, "a1", fused[0].ChunkID)
	require.InDelta(t, 1.0/62, fused[1].Score, 1e-12)
}

func TestFuseRRFDeterministicTies(t *testing.T) {
	fused := FuseRRF(60, []*model.SearchResult{{DocumentID: "z"}}, []*model.SearchResult{{DocumentID: "y"}})
	require.Equal(t, "y", fused[0].DocumentID)
	require.Equal(t, "z", fused[1].DocumentID)
}

func TestLexicalTruncatesContent(t *testing.T) {
	long := strings.Repeat("字", 600)
	lex := &fakeLexical{hits: []*repo.DocumentHit{{Document: &model.Document{ID: "d1", Title: "T", Path: "p.md", Content: long}, Rank: 0.5}}}
	svc := NewSearchService(lex, &fakeChunks{}, nil, SearchOptions{})
	out, err := svc.Lexical(context.Background(), "v1", "query", 5)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, strings.Repeat("字", 500)+"...", out[0].Content)
	require.Equal(t, 0.5, out[0].Score)
}

func TestSemanticScopesByVersionAndDropsUnknownDocuments(t *testing.T) {
	lex := &fakeLexical{docs: map[string]*model.Document{
		"d1": {ID: "d1", Title: "Doc 1", Path: "docs/1.md"},
	}}
	chunks := &fakeChunks{hits: []*model.ScoredChunk{
		scored("c1", "d1", 0.9),
		scored("c2", "ghost", 0.8),
		scored("c3", "d1", 0.7),
	}}
	svc := NewSearchService(lex, chunks, nil, SearchOptions{SimilarityThreshold: 0.3})
	out, err := svc.Semantic(context.Background(), "v1", "how to configure", 3)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "c1", out[0].ChunkID)
	require.Equal(t, "Doc 1", out[0].Title)
	require.Equal(t, "c3", out[1].ChunkID)

	require.Len(t, lex.lookup, 1)
	require.ElementsMatch(t, []string{"d1", "ghost"}, lex.lookup[0])
	require.Len(t, chunks.reqs, 1)
	require.Equal(t, 0.3, chunks.reqs[0].SimilarityThreshold)
	predicate, err := vectorstore.Compile(chunks.reqs[0].Filter)
	require.NoError(t, err)
	require.Contains(t, predicate, `"v1"`)
}

func TestBlankQueryReturnsEmpty(t *testing.T) {
	chunks := &fakeChunks{}
	svc := NewSearchService(&fakeLexical{}, chunks, nil, SearchOptions{})
	for _, mode := range []model.SearchMode{model.SearchModeLexical, model.SearchModeSemantic, model.SearchModeHybrid} {
		out, err := svc.Search(context.Background(), "v1", "  ", mode, 5)
		require.NoError(t, err)
		require.Empty(t, out)
	}
	require.Empty(t, chunks.reqs)
	_, err := svc.Search(context.Background(), "v1", "q", "fuzzy", 5)
	require.Error(t, err)
}

func TestHybridMergesByDocument(t *testing.T) {
	docs := map[string]*model.Document{
		"d1": {ID: "d1", Title: "One", Path: "1.md", Content: "one"},
		"d2": {ID: "d2", Title: "Two", Path: "2.md", Content: "two"},
		"d3": {ID: "d3", Title: "Three", Path: "3.md", Content: "three"},
	}
	lex := &fakeLexical{
		docs: docs,
		hits: []*repo.DocumentHit{{Document: docs["d1"], Rank: 0.9}, {Document: docs["d2"], Rank: 0.1}},
	}
	chunks := &fakeChunks{hits: []*model.ScoredChunk{scored("c3", "d3", 0.95), scored("c2", "d2", 0.9)}}
	svc := NewSearchService(lex, chunks, nil, SearchOptions{RRFK: 60})
	out, err := svc.Hybrid(context.Background(), "v1", "query", 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "d2", out[0].DocumentID)
	require.InDelta(t, 1.0/62+1.0/62, out[0].Score, 1e-12)
	require.Equal(t, 2*2, chunks.reqs[0].TopK)
}
