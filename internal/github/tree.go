package github

import (
	"context"
	"errors"
	"path"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docindex/internal/model"
)

const TreeStrategyName = "tree"

// TreeStrategy lists the whole repository with one recursive tree call.
type TreeStrategy struct {
	client   *Client
	priority int
}

func NewTreeStrategy(client *Client, priority int) *TreeStrategy {
	return &TreeStrategy{client: client, priority: priority}
}

func (s *TreeStrategy) Priority() int {
	return s.priority
}

func (s *TreeStrategy) Name() string {
	return TreeStrategyName
}

func (s *TreeStrategy) Supports(owner, repo, ref string) bool {
	return true
}

func (s *TreeStrategy) Fetch(ctx context.Context, owner, repo, docsPath, ref string) (*model.FetchResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("strategy", s.Name()), zap.String("owner", owner),
		zap.String("repo", repo), zap.String("ref", ref))
	tree, err := s.client.GetTree(ctx, owner, repo, ref)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			logger.Warn("tree listing declined", zap.Int("status", se.StatusCode))
			return nil, nil
		}
		return nil, err
	}
	if tree.Truncated {
		logger.Warn("tree listing truncated, cannot guarantee completeness", zap.Int("entries", len(tree.Tree)))
		return nil, nil
	}
	docsPath = normalizeDocsPath(docsPath)
	var files []model.RepoFile
	for _, entry := range tree.Tree {
		if entry.Type != "blob" || !underPath(entry.Path, docsPath) || !IsDocFile(entry.Path) {
			continue
		}
		files = append(files, model.RepoFile{
			Name:      path.Base(entry.Path),
			Path:      entry.Path,
			Sha:       entry.Sha,
			SizeBytes: entry.Size,
			Kind:      model.FileKindFile,
		})
	}
	if len(files) == 0 {
		logger.Info("tree has no documentation under path", zap.String("path", docsPath))
		return nil, nil
	}
	logger.Info("tree listed", zap.Int("files", len(files)))
	return &model.FetchResult{Files: files}, nil
}
