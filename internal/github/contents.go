package github

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xxxsen/docindex/internal/config"
	"github.com/xxxsen/docindex/internal/model"
)

const ContentsStrategyName = "contents"

var (
	errBudgetExhausted = errors.New("request budget exhausted")
	errRetryExhausted  = errors.New("rate limit retries exhausted")
)

type ContentsOptions struct {
	Delay              time.Duration
	MaxRequestsPerSync int
	RetryCount         int
	RetryDelay         time.Duration
	RateLimitWait      time.Duration
}

func ContentsOptionsFromConfig(cfg config.ContentsConfig) ContentsOptions {
	return ContentsOptions{
		Delay:              time.Duration(cfg.DelayMs) * time.Millisecond,
		MaxRequestsPerSync: cfg.MaxRequestsPerSync,
		RetryCount:         cfg.RetryCount,
		RetryDelay:         time.Duration(cfg.RetryDelayMs) * time.Millisecond,
		RateLimitWait:      time.Duration(cfg.RateLimitWaitMs) * time.Millisecond,
	}
}

// ContentsStrategy walks the tree one directory per request. It always
// supports a source and is the last resort of the chain.
type ContentsStrategy struct {
	client   *Client
	priority int
	opts     ContentsOptions
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewContentsStrategy(client *Client, priority int, opts ContentsOptions) *ContentsStrategy {
	return &ContentsStrategy{client: client, priority: priority, opts: opts, sleep: sleepContext}
}

func (s *ContentsStrategy) Priority() int {
	return s.priority
}

func (s *ContentsStrategy) Name() string {
	return ContentsStrategyName
}

func (s *ContentsStrategy) Supports(owner, repo, ref string) bool {
	return true
}

type listingRun struct {
	owner, repo, ref string
	requests         int
	limiter          *rate.Limiter
}

func (s *ContentsStrategy) Fetch(ctx context.Context, owner, repo, docsPath, ref string) (*model.FetchResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("strategy", s.Name()), zap.String("owner", owner),
		zap.String("repo", repo), zap.String("ref", ref))
	run := &listingRun{owner: owner, repo: repo, ref: ref}
	if s.opts.Delay > 0 {
		run.limiter = rate.NewLimiter(rate.Every(s.opts.Delay), 1)
	}
	root := normalizeDocsPath(docsPath)
	queue := []string{root}
	var files []model.RepoFile
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]
		entries, err := s.list(ctx, run, dir)
		if err != nil {
			var se *StatusError
			switch {
			case errors.Is(err, errBudgetExhausted), errors.Is(err, errRetryExhausted):
				logger.Warn("directory listing declined", zap.String("dir", dir), zap.Int("requests", run.requests), zap.Error(err))
				return nil, nil
			case IsNotFound(err) && dir != root:
				logger.Warn("directory vanished during listing", zap.String("dir", dir))
				continue
			case errors.As(err, &se):
				logger.Warn("directory listing declined", zap.String("dir", dir), zap.Int("status", se.StatusCode))
				return nil, nil
			}
			return nil, err
		}
		for _, entry := range entries {
			switch entry.Type {
			case "dir":
				queue = append(queue, entry.Path)
			case "file":
				if !IsDocFile(entry.Path) {
					continue
				}
				files = append(files, model.RepoFile{
					Name:        entry.Name,
					Path:        entry.Path,
					Sha:         entry.Sha,
					SizeBytes:   entry.Size,
					Kind:        model.FileKindFile,
					DownloadURL: entry.DownloadURL,
				})
			}
		}
	}
	if len(files) == 0 {
		logger.Info("directory listing found no documentation", zap.String("path", root))
		return nil, nil
	}
	logger.Info("directory listing finished", zap.Int("files", len(files)), zap.Int("requests", run.requests))
	return &model.FetchResult{Files: files}, nil
}

func (s *ContentsStrategy) list(ctx context.Context, run *listingRun, dir string) ([]ContentEntry, error) {
	for attempt := 0; ; attempt++ {
		if s.opts.MaxRequestsPerSync > 0 && run.requests >= s.opts.MaxRequestsPerSync {
			return nil, errBudgetExhausted
		}
		if run.limiter != nil {
			if err := run.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		run.requests++
		entries, err := s.client.ListContents(ctx, run.owner, run.repo, dir, run.ref)
		if err == nil {
			return entries, nil
		}
		if !IsRateLimited(err) {
			return nil, err
		}
		if attempt >= s.opts.RetryCount {
			return nil, fmt.Errorf("%w: %v", errRetryExhausted, err)
		}
		wait := s.backoff(err, attempt)
		logutil.GetLogger(ctx).Warn("rate limited, backing off", zap.String("dir", dir),
			zap.Int("attempt", attempt+1), zap.Duration("wait", wait))
		if err := s.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// backoff doubles the retry delay per attempt, honours Retry-After, and never
// exceeds the configured rate limit wait.
func (s *ContentsStrategy) backoff(err error, attempt int) time.Duration {
	wait := s.opts.RetryDelay << attempt
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		wait = se.RetryAfter
	}
	if s.opts.RateLimitWait > 0 && wait > s.opts.RateLimitWait {
		wait = s.opts.RateLimitWait
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
