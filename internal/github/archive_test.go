package github

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryArchiveCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memoryArchiveCache) Load(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[key]
	return data, ok, nil
}

func (c *memoryArchiveCache) Store(ctx context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	c.data[key] = data
	return nil
}

func TestArchiveSupportsVersionTagsOnly(t *testing.T) {
	s := NewArchiveStrategy(nil, 1, 0, nil)
	for _, ref := range []string{"v1.2.3", "1.0", "2.0.0-rc1", "v3.1.0.RELEASE", "10"} {
		require.True(t, s.Supports("o", "r", ref), ref)
	}
	for _, ref := range []string{"main", "develop", "feature/x", "", "release-1.0"} {
		require.False(t, s.Supports("o", "r", ref), ref)
	}
}

func TestArchiveFetchExtractsDocs(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"widgets-1.0.0/README.md":           "root readme",
		"widgets-1.0.0/docs/intro.md":       "# Intro",
		"widgets-1.0.0/docs/api/index.adoc": "= API",
		"widgets-1.0.0/docs/logo.png":       "png",
		"widgets-1.0.0/src/main.go":         "package main",
	})
	var downloads atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/archive/acme/widgets/archive/refs/tags/v1.0.0.tar.gz", r.URL.Path)
		downloads.Add(1)
		_, _ = w.Write(archive)
	}))
	cache := &memoryArchiveCache{}
	s := NewArchiveStrategy(client, 1, 1<<20, cache)

	res, err := s.Fetch(context.Background(), "acme", "widgets", "docs", "v1.0.0")
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Files, 2)
	content, ok := res.Preloaded("docs/intro.md")
	require.True(t, ok)
	require.Equal(t, "# Intro", content)
	_, ok = res.Preloaded("docs/api/index.adoc")
	require.True(t, ok)
	_, ok = res.Preloaded("README.md")
	require.False(t, ok)

	_, err = s.Fetch(context.Background(), "acme", "widgets", "docs", "v1.0.0")
	require.NoError(t, err)
	require.Equal(t, int32(1), downloads.Load())
	require.Contains(t, cache.data, "archives/acme/widgets/v1.0.0.tar.gz")
}

func TestArchiveFetchAbsentOnMissingTag(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	s := NewArchiveStrategy(client, 1, 0, nil)
	res, err := s.Fetch(context.Background(), "acme", "widgets", "docs", "v9.9.9")
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestArchiveFetchAbsentOnCorruptArchive(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a gzip stream"))
	}))
	s := NewArchiveStrategy(client, 1, 0, nil)
	res, err := s.Fetch(context.Background(), "acme", "widgets", "docs", "v1.0.0")
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestStripRoot(t *testing.T) {
	require.Equal(t, "docs/a.md", stripRoot("repo-1.0/docs/a.md"))
	require.Equal(t, "", stripRoot("repo-1.0"))
	require.Equal(t, "a.md", stripRoot("./repo/a.md"))
}
