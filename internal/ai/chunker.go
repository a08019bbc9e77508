package ai

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/docindex/internal/model"
)

const (
	DefaultMaxChunkChars = 1000
	DefaultOverlapChars  = 200

	paragraphSeparator = "\n\n"
)

var paragraphSplitter = regexp.MustCompile(`\n[ \t]*\n`)

type Chunker struct {
	maxChunkChars int
	overlapChars  int
}

// NewChunker builds a chunker whose sizes are measured in characters (runes).
func NewChunker(maxChunkChars, overlapChars int) *Chunker {
	maxChunkChars, overlapChars = normalizeSizes(maxChunkChars, overlapChars)
	return &Chunker{maxChunkChars: maxChunkChars, overlapChars: overlapChars}
}

func (c *Chunker) Chunk(text string) []model.Chunk {
	return ChunkText(text, c.maxChunkChars, c.overlapChars)
}

func normalizeSizes(maxChunkChars, overlapChars int) (int, int) {
	if maxChunkChars <= 0 {
		maxChunkChars = DefaultMaxChunkChars
	}
	if overlapChars <= 0 {
		overlapChars = DefaultOverlapChars
	}
	if overlapChars >= maxChunkChars {
		overlapChars = maxChunkChars / 5
	}
	return maxChunkChars, overlapChars
}

// ChunkText splits text on blank lines and packs paragraphs into chunks of at
// most maxChunkChars. Each chunk after the first starts with the trailing
// overlapChars of its predecessor. A paragraph longer than maxChunkChars is
// emitted whole as its own chunk.
func ChunkText(text string, maxChunkChars, overlapChars int) []model.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	maxChunkChars, overlapChars = normalizeSizes(maxChunkChars, overlapChars)
	if utf8.RuneCountInString(text) <= maxChunkChars {
		return []model.Chunk{newChunk(0, text)}
	}

	var (
		chunks  []model.Chunk
		current string
	)
	emit := func() {
		if current == "" {
			return
		}
		chunks = append(chunks, newChunk(len(chunks), current))
	}
	for _, para := range splitParagraphs(text) {
		paraLen := utf8.RuneCountInString(para)
		if current == "" {
			current = para
			continue
		}
		if utf8.RuneCountInString(current)+len(paragraphSeparator)+paraLen <= maxChunkChars {
			current += paragraphSeparator + para
			continue
		}
		emit()
		seedLen := overlapChars
		if room := maxChunkChars - paraLen - len(paragraphSeparator); room < seedLen {
			seedLen = room
		}
		seed := ""
		if seedLen > 0 {
			seed = strings.TrimLeft(tailRunes(current, seedLen), " \t\n")
		}
		if seed == "" {
			current = para
			continue
		}
		current = seed + paragraphSeparator + para
	}
	emit()
	return chunks
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := paragraphSplitter.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s
	}
	skip := count - n
	for i := range s {
		if skip == 0 {
			return s[i:]
		}
		skip--
	}
	return ""
}

func newChunk(index int, content string) model.Chunk {
	return model.Chunk{Index: index, Content: content, TokenCount: EstimateTokens(content)}
}

// EstimateTokens counts roughly four ASCII characters per token inside each
// whitespace separated field and one token per non-ASCII rune.
func EstimateTokens(text string) int {
	count := 0
	for _, field := range strings.Fields(text) {
		ascii := 0
		for _, r := range field {
			if r > 127 {
				count++
				continue
			}
			ascii++
		}
		count += (ascii + 3) / 4
	}
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}
