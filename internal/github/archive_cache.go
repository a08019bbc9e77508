package github

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/xxxsen/docindex/internal/filestore"
)

type storeArchiveCache struct {
	store filestore.Store
}

// NewStoreArchiveCache keeps archives in a file store.
func NewStoreArchiveCache(store filestore.Store) ArchiveCache {
	if store == nil {
		return nil
	}
	return &storeArchiveCache{store: store}
}

func (c *storeArchiveCache) Load(ctx context.Context, key string) ([]byte, bool, error) {
	rc, err := c.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *storeArchiveCache) Store(ctx context.Context, key string, data []byte) error {
	return c.store.Save(ctx, key, bytes.NewReader(data), int64(len(data)))
}
