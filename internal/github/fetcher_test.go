package github

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docindex/internal/model"
	appErr "github.com/xxxsen/docindex/internal/pkg/errors"
)

type fakeStrategy struct {
	name      string
	priority  int
	supported bool
	result    *model.FetchResult
	err       error
	calls     *[]string
}

func (s *fakeStrategy) Priority() int { return s.priority }
func (s *fakeStrategy) Name() string  { return s.name }
func (s *fakeStrategy) Supports(owner, repo, ref string) bool {
	return s.supported
}
func (s *fakeStrategy) Fetch(ctx context.Context, owner, repo, docsPath, ref string) (*model.FetchResult, error) {
	*s.calls = append(*s.calls, s.name)
	return s.result, s.err
}

type fakeRaw struct {
	calls int
}

func (r *fakeRaw) GetRaw(ctx context.Context, owner, repo, path, ref string) (string, error) {
	r.calls++
	return "raw:" + path, nil
}

func oneFile(path string) *model.FetchResult {
	return &model.FetchResult{Files: []model.RepoFile{{Name: path, Path: path, Kind: model.FileKindFile}}}
}

func TestFetcherOrdersByPriorityAndStopsAtFirstSuccess(t *testing.T) {
	var calls []string
	f := NewContentFetcher(nil,
		&fakeStrategy{name: "contents", priority: 3, supported: true, result: oneFile("c.md"), calls: &calls},
		&fakeStrategy{name: "tree", priority: 2, supported: true, result: oneFile("t.md"), calls: &calls},
		&fakeStrategy{name: "archive", priority: 1, supported: false, result: oneFile("a.md"), calls: &calls},
	)
	require.Equal(t, "archive", f.Strategies()[0].Name())
	res, err := f.Fetch(context.Background(), "o", "r", "docs", "main")
	require.NoError(t, err)
	require.Equal(t, "tree", res.StrategyUsed)
	require.Equal(t, []string{"tree"}, calls)
}

func TestFetcherContinuesPastEmptyAndErrors(t *testing.T) {
	var calls []string
	f := NewContentFetcher(nil,
		&fakeStrategy{name: "archive", priority: 1, supported: true, err: errors.New("boom"), calls: &calls},
		&fakeStrategy{name: "tree", priority: 2, supported: true, result: &model.FetchResult{}, calls: &calls},
		&fakeStrategy{name: "contents", priority: 3, supported: true, result: oneFile("c.md"), calls: &calls},
	)
	res, err := f.Fetch(context.Background(), "o", "r", "docs", "main")
	require.NoError(t, err)
	require.Equal(t, "contents", res.StrategyUsed)
	require.Equal(t, []string{"archive", "tree", "contents"}, calls)
}

func TestFetcherExhausted(t *testing.T) {
	var calls []string
	f := NewContentFetcher(nil,
		&fakeStrategy{name: "archive", priority: 1, supported: false, calls: &calls},
		&fakeStrategy{name: "tree", priority: 2, supported: true, calls: &calls},
		&fakeStrategy{name: "contents", priority: 3, supported: true, err: errors.New("boom"), calls: &calls},
	)
	_, err := f.Fetch(context.Background(), "o", "r", "docs", "main")
	require.Error(t, err)
	require.True(t, appErr.IsFetchExhausted(err))
	var exhausted *appErr.FetchExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, []string{"tree", "contents"}, exhausted.Attempted)
	require.Contains(t, err.Error(), "tree")
	require.Contains(t, err.Error(), "contents")
}

func TestFetcherGetFileContentPrefersPreloaded(t *testing.T) {
	raw := &fakeRaw{}
	f := NewContentFetcher(raw)
	res := &model.FetchResult{
		Files:            []model.RepoFile{{Path: "docs/a.md"}, {Path: "docs/b.md"}},
		PreloadedContent: map[string]string{"docs/a.md": "preloaded"},
	}
	ctx := context.Background()
	content, err := f.GetFileContent(ctx, res, "o", "r", "docs/a.md", "v1")
	require.NoError(t, err)
	require.Equal(t, "preloaded", content)
	require.Equal(t, 0, raw.calls)

	content, err = f.GetFileContent(ctx, res, "o", "r", "docs/b.md", "v1")
	require.NoError(t, err)
	require.Equal(t, "raw:docs/b.md", content)
	require.Equal(t, 1, raw.calls)
}
