package model

import "time"

type Chunk struct {
	Index      int    `json:"index"`
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
}

// Well known metadata keys attached to every indexed chunk.
const (
	MetaVersionID     = "versionId"
	MetaDocumentID    = "documentId"
	MetaChunkIndex    = "chunkIndex"
	MetaTokenCount    = "tokenCount"
	MetaDocumentTitle = "documentTitle"
	MetaDocumentPath  = "documentPath"
)

type Metadata map[string]interface{}

func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

// Int reads numeric values that may have been decoded from JSON as float64.
func (m Metadata) Int(key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

type IndexedChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	TokenCount int       `json:"token_count"`
	Metadata   Metadata  `json:"metadata"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScoredChunk is a similarity search hit.
type ScoredChunk struct {
	IndexedChunk
	Similarity float64 `json:"similarity"`
}
