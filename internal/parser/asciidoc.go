package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bytesparadise/libasciidoc"
	"github.com/bytesparadise/libasciidoc/pkg/configuration"
	"golang.org/x/net/html"
)

type AsciiDocParser struct{}

func NewAsciiDocParser() *AsciiDocParser {
	return &AsciiDocParser{}
}

func (p *AsciiDocParser) Supports(filePath string) bool {
	return hasExt(filePath, ".adoc", ".asciidoc")
}

func (p *AsciiDocParser) DocType() string {
	return "asciidoc"
}

// Parse renders the document to HTML with libasciidoc and extracts text and
// listing blocks from the rendered body. The title is the "= Title" header.
func (p *AsciiDocParser) Parse(raw, filePath string) (*Parsed, error) {
	if strings.TrimSpace(raw) == "" {
		return emptyParsed(filePath), nil
	}
	var buf bytes.Buffer
	cfg := configuration.NewConfiguration(configuration.WithFilename(filePath))
	meta, err := libasciidoc.Convert(strings.NewReader(raw), &buf, cfg)
	if err != nil {
		return nil, fmt.Errorf("render asciidoc: %w", err)
	}
	root, err := html.Parse(&buf)
	if err != nil {
		return nil, fmt.Errorf("read rendered asciidoc: %w", err)
	}
	w := &htmlWalker{}
	w.walk(root)
	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = w.firstH1
	}
	if title == "" {
		title = titleFromPath(filePath)
	}
	return &Parsed{
		Title:      title,
		Content:    strings.Join(w.blocks, "\n\n"),
		CodeBlocks: w.code,
	}, nil
}
