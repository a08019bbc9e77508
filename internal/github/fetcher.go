package github

import (
	"context"
	"fmt"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docindex/internal/model"
	appErr "github.com/xxxsen/docindex/internal/pkg/errors"
)

type RawDownloader interface {
	GetRaw(ctx context.Context, owner, repo, path, ref string) (string, error)
}

// ContentFetcher runs strategies in ascending priority and keeps the first
// non-empty result.
type ContentFetcher struct {
	strategies []Strategy
	raw        RawDownloader
}

func NewContentFetcher(raw RawDownloader, strategies ...Strategy) *ContentFetcher {
	sorted := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s != nil {
			sorted = append(sorted, s)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &ContentFetcher{strategies: sorted, raw: raw}
}

func (f *ContentFetcher) Strategies() []Strategy {
	return f.strategies
}

func (f *ContentFetcher) Fetch(ctx context.Context, owner, repo, docsPath, ref string) (*model.FetchResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("owner", owner), zap.String("repo", repo), zap.String("ref", ref))
	exhausted := &appErr.FetchExhaustedError{}
	for _, s := range f.strategies {
		if !s.Supports(owner, repo, ref) {
			logger.Debug("strategy does not support source", zap.String("strategy", s.Name()))
			continue
		}
		exhausted.Attempted = append(exhausted.Attempted, s.Name())
		res, err := s.Fetch(ctx, owner, repo, docsPath, ref)
		if err != nil {
			logger.Warn("strategy failed", zap.String("strategy", s.Name()), zap.Error(err))
			exhausted.Causes = append(exhausted.Causes, fmt.Errorf("%s: %w", s.Name(), err))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if res.Empty() {
			logger.Info("strategy returned no files", zap.String("strategy", s.Name()))
			continue
		}
		res.StrategyUsed = s.Name()
		logger.Info("fetched documentation tree", zap.String("strategy", s.Name()), zap.Int("files", len(res.Files)))
		return res, nil
	}
	return nil, exhausted
}

// GetFileContent prefers content the strategy already downloaded.
func (f *ContentFetcher) GetFileContent(ctx context.Context, res *model.FetchResult, owner, repo, path, ref string) (string, error) {
	if content, ok := res.Preloaded(path); ok {
		return content, nil
	}
	if f.raw == nil {
		return "", fmt.Errorf("no raw downloader for %s", path)
	}
	return f.raw.GetRaw(ctx, owner, repo, path, ref)
}
