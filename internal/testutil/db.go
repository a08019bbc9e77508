package testutil

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/xxxsen/docindex/internal/config"
	"github.com/xxxsen/docindex/internal/db"
)

// EmbeddingDims is the vector width used by database backed tests.
const EmbeddingDims = 8

func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	port := 5432
	if v := os.Getenv("TEST_DB_PORT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			port = parsed
		}
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     envOr("TEST_DB_USER", "docindex"),
		Password: envOr("TEST_DB_PASSWORD", "docindex_pass"),
		DBName:   envOr("TEST_DB_NAME", "docindex_test"),
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn, EmbeddingDims); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// HashEmbedder derives a deterministic vector from the words of a text, so
// texts sharing words land close together.
type HashEmbedder struct {
	Dims  int
	calls atomic.Int64
}

func (h *HashEmbedder) Calls() int {
	return int(h.calls.Load())
}

func (h *HashEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	h.calls.Add(1)
	return h.vector(text), nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	h.calls.Add(1)
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, h.vector(text))
	}
	return out, nil
}

func (h *HashEmbedder) ModelName() string {
	return "hash-test"
}

func (h *HashEmbedder) vector(text string) []float32 {
	dims := h.Dims
	if dims <= 0 {
		dims = EmbeddingDims
	}
	vec := make([]float32, dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		sum := sha256.Sum256([]byte(word))
		idx := binary.BigEndian.Uint32(sum[:4]) % uint32(dims)
		vec[idx] += 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
