package filestore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docindex/internal/config"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir()}})
	require.NoError(t, err)
	require.Equal(t, "local", store.Type())
	ctx := context.Background()

	payload := []byte("archive-bytes")
	require.NoError(t, store.Save(ctx, "archives/owner/repo/v1.0.0.tar.gz", bytes.NewReader(payload), int64(len(payload))))
	rc, err := store.Open(ctx, "archives/owner/repo/v1.0.0.tar.gz")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestLocalStoreMissingKey(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, err := store.Open(context.Background(), "archives/none.tar.gz")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	err := store.Save(context.Background(), "../escape", bytes.NewReader(nil), 0)
	require.Error(t, err)
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(config.FileStoreConfig{Type: "ftp"})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "s3", Data: map[string]interface{}{"bucket": "b"}})
	require.Error(t, err)
}

func TestBuildEndpoint(t *testing.T) {
	require.Equal(t, "https://s3.example.com", buildEndpoint("s3.example.com", true))
	require.Equal(t, "http://minio:9000", buildEndpoint("http://minio:9000/", false))
}
