package github

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docindex/internal/model"
)

const (
	ArchiveStrategyName = "archive"

	maxArchiveEntryBytes = 8 << 20
)

var versionTagPattern = regexp.MustCompile(`^v?\d+(\.\d+)*([-+._]?[0-9A-Za-z][0-9A-Za-z.+-]*)?$`)

// ArchiveCache keeps downloaded tag archives; tags are immutable so entries never expire.
type ArchiveCache interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Store(ctx context.Context, key string, data []byte) error
}

type ArchiveStrategy struct {
	client   *Client
	priority int
	maxBytes int64
	cache    ArchiveCache
}

func NewArchiveStrategy(client *Client, priority int, maxBytes int64, cache ArchiveCache) *ArchiveStrategy {
	return &ArchiveStrategy{client: client, priority: priority, maxBytes: maxBytes, cache: cache}
}

func (s *ArchiveStrategy) Priority() int {
	return s.priority
}

func (s *ArchiveStrategy) Name() string {
	return ArchiveStrategyName
}

// Supports accepts only version-like tags such as v1.2.3 or 2.0.0-rc1.
func (s *ArchiveStrategy) Supports(owner, repo, ref string) bool {
	return IsVersionTag(ref)
}

func IsVersionTag(ref string) bool {
	return versionTagPattern.MatchString(strings.TrimSpace(ref))
}

func (s *ArchiveStrategy) Fetch(ctx context.Context, owner, repo, docsPath, ref string) (*model.FetchResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("strategy", s.Name()), zap.String("owner", owner),
		zap.String("repo", repo), zap.String("ref", ref))
	data, err := s.loadArchive(ctx, owner, repo, ref)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			logger.Warn("archive download declined", zap.Int("status", se.StatusCode))
			return nil, nil
		}
		return nil, err
	}
	files, contents, err := extractDocs(data, normalizeDocsPath(docsPath))
	if err != nil {
		logger.Warn("archive unpack failed", zap.Error(err))
		return nil, nil
	}
	if len(files) == 0 {
		logger.Info("archive contains no documentation under path", zap.String("path", docsPath))
		return nil, nil
	}
	logger.Info("archive unpacked", zap.Int("files", len(files)), zap.Int("bytes", len(data)))
	return &model.FetchResult{Files: files, PreloadedContent: contents}, nil
}

func (s *ArchiveStrategy) loadArchive(ctx context.Context, owner, repo, ref string) ([]byte, error) {
	key := fmt.Sprintf("archives/%s/%s/%s.tar.gz", owner, repo, ref)
	logger := logutil.GetLogger(ctx).With(zap.String("key", key))
	if s.cache != nil {
		data, ok, err := s.cache.Load(ctx, key)
		if err != nil {
			logger.Warn("archive cache load failed", zap.Error(err))
		} else if ok {
			logger.Debug("archive cache hit")
			return data, nil
		}
	}
	data, err := s.client.DownloadArchive(ctx, owner, repo, ref, s.maxBytes)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Store(ctx, key, data); err != nil {
			logger.Warn("archive cache store failed", zap.Error(err))
		}
	}
	return data, nil
}

// extractDocs unpacks a GitHub source tarball. Entries are rooted in a single
// "<repo>-<ref>/" directory which is stripped.
func extractDocs(data []byte, docsPath string) ([]model.RepoFile, map[string]string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	var files []model.RepoFile
	contents := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := stripRoot(hdr.Name)
		if name == "" || !underPath(name, docsPath) || !IsDocFile(name) {
			continue
		}
		if hdr.Size > maxArchiveEntryBytes {
			continue
		}
		body, err := io.ReadAll(io.LimitReader(tr, maxArchiveEntryBytes))
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", name, err)
		}
		files = append(files, model.RepoFile{
			Name:      path.Base(name),
			Path:      name,
			SizeBytes: int64(len(body)),
			Kind:      model.FileKindFile,
		})
		contents[name] = string(body)
	}
	return files, contents, nil
}

func stripRoot(name string) string {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	idx := strings.Index(name, "/")
	if idx < 0 {
		return ""
	}
	return name[idx+1:]
}
