package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/docindex/internal/pkg/errors"
)

const (
	DefaultMaxFileBytes = 1 << 20
	DefaultPattern      = "**/*"
)

var skipDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	"node_modules": {},
	"vendor":       {},
}

type File struct {
	Path    string
	Content string
	Size    int64
}

// Reader reads documentation trees from the local filesystem.
type Reader struct {
	maxFileBytes int64
}

func NewReader(maxFileBytes int64) *Reader {
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	return &Reader{maxFileBytes: maxFileBytes}
}

// ListFiles returns slash separated paths relative to root that match pattern.
func (r *Reader) ListFiles(ctx context.Context, root, pattern string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("directory %s does not exist: %w", root, appErr.ErrNotFound)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", root, appErr.ErrInvalid)
	}
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx)
	var out []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skip unreadable path", zap.String("path", p), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip && p != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !Match(pattern, rel) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if fi.Size() > r.maxFileBytes {
			logger.Warn("skip oversized file", zap.String("path", rel), zap.Int64("size", fi.Size()))
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Reader) ReadDirectory(ctx context.Context, root, pattern string) ([]File, error) {
	paths, err := r.ListFiles(ctx, root, pattern)
	if err != nil {
		return nil, err
	}
	files := make([]File, 0, len(paths))
	for _, rel := range paths {
		f, err := r.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			logutil.GetLogger(ctx).Warn("read file failed", zap.String("path", rel), zap.Error(err))
			continue
		}
		f.Path = rel
		files = append(files, *f)
	}
	return files, nil
}

func (r *Reader) ReadFile(p string) (*File, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file %s does not exist: %w", p, appErr.ErrNotFound)
		}
		return nil, err
	}
	return &File{Path: filepath.ToSlash(filepath.Base(p)), Content: string(data), Size: int64(len(data))}, nil
}

// Match applies a doublestar glob to a slash separated relative path. "*"
// stays within one segment, "**" spans directories and "{a,b}" alternates.
func Match(pattern, rel string) bool {
	ok, err := doublestar.Match(pattern, rel)
	return err == nil && ok
}
