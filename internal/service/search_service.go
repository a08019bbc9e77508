package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/docindex/internal/model"
	appErr "github.com/xxxsen/docindex/internal/pkg/errors"
	"github.com/xxxsen/docindex/internal/repo"
	"github.com/xxxsen/docindex/internal/vectorstore"
)

const (
	DefaultRRFK        = 60
	maxSnippetChars    = 500
	maxSearchLimit     = 100
	hybridPoolMultiple = 2
)

type lexicalIndex interface {
	FullTextSearch(ctx context.Context, versionID, query string, limit int) ([]*repo.DocumentHit, error)
	ListByIDs(ctx context.Context, ids []string) ([]*model.Document, error)
}

type chunkSearcher interface {
	SimilaritySearch(ctx context.Context, req vectorstore.SearchRequest) ([]*model.ScoredChunk, error)
}

type codeExampleLister interface {
	ListByVersion(ctx context.Context, versionID, language string, limit int) ([]*model.CodeExample, error)
}

type SearchOptions struct {
	RRFK                float64
	SimilarityThreshold float64
	DefaultLimit        int
}

type SearchService struct {
	docs     lexicalIndex
	chunks   chunkSearcher
	examples codeExampleLister
	opts     SearchOptions
}

func NewSearchService(docs lexicalIndex, chunks chunkSearcher, examples codeExampleLister, opts SearchOptions) *SearchService {
	if opts.RRFK <= 0 {
		opts.RRFK = DefaultRRFK
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	return &SearchService{docs: docs, chunks: chunks, examples: examples, opts: opts}
}

func (s *SearchService) Search(ctx context.Context, versionID, query string, mode model.SearchMode, limit int) ([]*model.SearchResult, error) {
	switch mode {
	case model.SearchModeLexical:
		return s.Lexical(ctx, versionID, query, limit)
	case model.SearchModeSemantic:
		return s.Semantic(ctx, versionID, query, limit)
	case model.SearchModeHybrid, "":
		return s.Hybrid(ctx, versionID, query, limit)
	}
	return nil, fmt.Errorf("unknown search mode %q: %w", mode, appErr.ErrInvalid)
}

// Lexical ranks whole documents of a version by full text relevance.
func (s *SearchService) Lexical(ctx context.Context, versionID, query string, limit int) ([]*model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []*model.SearchResult{}, nil
	}
	hits, err := s.docs.FullTextSearch(ctx, versionID, query, s.limit(limit))
	if err != nil {
		return nil, err
	}
	out := make([]*model.SearchResult, 0, len(hits))
	for _, hit := range hits {
		out = append(out, &model.SearchResult{
			DocumentID: hit.Document.ID,
			Title:      hit.Document.Title,
			Path:       hit.Document.Path,
			Content:    truncateRunes(hit.Document.Content, maxSnippetChars),
			Score:      hit.Rank,
		})
	}
	return out, nil
}

// Semantic finds the closest chunks of a version and attaches their documents.
// Chunks whose document cannot be resolved are dropped.
func (s *SearchService) Semantic(ctx context.Context, versionID, query string, limit int) ([]*model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []*model.SearchResult{}, nil
	}
	chunks, err := s.chunks.SimilaritySearch(ctx, vectorstore.SearchRequest{
		Query:               query,
		TopK:                s.limit(limit),
		SimilarityThreshold: s.opts.SimilarityThreshold,
		Filter:              vectorstore.Eq(model.MetaVersionID, versionID),
	})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []*model.SearchResult{}, nil
	}
	ids := make([]string, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.DocumentID]; ok {
			continue
		}
		seen[c.DocumentID] = struct{}{}
		ids = append(ids, c.DocumentID)
	}
	docs, err := s.docs.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	out := make([]*model.SearchResult, 0, len(chunks))
	dropped := 0
	for _, c := range chunks {
		doc, ok := byID[c.DocumentID]
		if !ok {
			dropped++
			continue
		}
		out = append(out, &model.SearchResult{
			DocumentID: doc.ID,
			ChunkID:    c.ID,
			Title:      doc.Title,
			Path:       doc.Path,
			Content:    c.Content,
			Score:      c.Similarity,
			ChunkIndex: c.ChunkIndex,
		})
	}
	if dropped > 0 {
		logutil.GetLogger(ctx).Debug("dropped chunks without document", zap.Int("count", dropped))
	}
	return out, nil
}

// Hybrid runs both searches concurrently and merges them with reciprocal rank fusion.
func (s *SearchService) Hybrid(ctx context.Context, versionID, query string, limit int) ([]*model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []*model.SearchResult{}, nil
	}
	limit = s.limit(limit)
	pool := limit * hybridPoolMultiple
	var lexical, semantic []*model.SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexical, err = s.Lexical(gctx, versionID, query, pool)
		return err
	})
	g.Go(func() error {
		var err error
		semantic, err = s.Semantic(gctx, versionID, query, pool)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	fused := FuseRRF(s.opts.RRFK, lexical, semantic)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	logutil.GetLogger(ctx).Debug("hybrid search fused",
		zap.Int("lexical", len(lexical)), zap.Int("semantic", len(semantic)), zap.Int("fused", len(fused)))
	return fused, nil
}

func (s *SearchService) CodeExamples(ctx context.Context, versionID, language string, limit int) ([]*model.CodeExample, error) {
	if s.examples == nil {
		return []*model.CodeExample{}, nil
	}
	return s.examples.ListByVersion(ctx, versionID, strings.ToLower(strings.TrimSpace(language)), s.limit(limit))
}

func (s *SearchService) limit(limit int) int {
	if limit <= 0 {
		return s.opts.DefaultLimit
	}
	if limit > maxSearchLimit {
		return maxSearchLimit
	}
	return limit
}

type fusedEntry struct {
	result   *model.SearchResult
	score    float64
	bestRank int
}

// FuseRRF merges ranked lists by document. Each list contributes 1/(k+rank)
// for the first occurrence of a document; later occurrences in the same list
// are ignored. The kept result is the one with the best rank, the earlier list
// winning ties.
func FuseRRF(k float64, lists ...[]*model.SearchResult) []*model.SearchResult {
	entries := make(map[string]*fusedEntry)
	for _, list := range lists {
		rank := 0
		seen := make(map[string]struct{}, len(list))
		for _, item := range list {
			if item == nil {
				continue
			}
			if _, ok := seen[item.DocumentID]; ok {
				continue
			}
			seen[item.DocumentID] = struct{}{}
			rank++
			contribution := 1.0 / (k + float64(rank))
			e, ok := entries[item.DocumentID]
			if !ok {
				entries[item.DocumentID] = &fusedEntry{result: item, score: contribution, bestRank: rank}
				continue
			}
			e.score += contribution
			if rank < e.bestRank {
				e.result, e.bestRank = item, rank
			}
		}
	}
	ordered := make([]*fusedEntry, 0, len(entries))
	for _, e := range entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.bestRank != b.bestRank {
			return a.bestRank < b.bestRank
		}
		return a.result.DocumentID < b.result.DocumentID
	})
	out := make([]*model.SearchResult, 0, len(ordered))
	for _, e := range ordered {
		item := *e.result
		item.Score = e.score
		out = append(out, &item)
	}
	return out
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
