package parser

import (
	"path"
	"strings"
)

type CodeBlock struct {
	Language    string
	Code        string
	Description string
}

// Parsed is the outcome of parsing one document. Content is the text that
// gets chunked; for markup formats that convert to text it is the converted
// body, otherwise the raw input.
type Parsed struct {
	Title      string
	Content    string
	CodeBlocks []CodeBlock
}

type Parser interface {
	Supports(filePath string) bool
	Parse(raw, filePath string) (*Parsed, error)
	DocType() string
}

type Registry struct {
	parsers []Parser
}

func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// Default registers every built-in format.
func Default() *Registry {
	return NewRegistry(
		NewMarkdownParser(),
		NewHTMLParser(),
		NewAsciiDocParser(),
		NewRstParser(),
		NewTextParser(),
	)
}

// Find returns the first parser that accepts filePath.
func (r *Registry) Find(filePath string) (Parser, bool) {
	for _, p := range r.parsers {
		if p.Supports(filePath) {
			return p, true
		}
	}
	return nil, false
}

func (r *Registry) Supports(filePath string) bool {
	_, ok := r.Find(filePath)
	return ok
}

func hasExt(filePath string, exts ...string) bool {
	ext := strings.ToLower(path.Ext(filePath))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// titleFromPath is the base name without extension.
func titleFromPath(filePath string) string {
	base := path.Base(strings.ReplaceAll(filePath, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// emptyParsed keeps the path title for blank files so they stay listable.
func emptyParsed(filePath string) *Parsed {
	return &Parsed{Title: titleFromPath(filePath)}
}
