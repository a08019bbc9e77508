package parser

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

type MarkdownParser struct {
	md goldmark.Markdown
}

func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

func (p *MarkdownParser) Supports(filePath string) bool {
	return hasExt(filePath, ".md", ".markdown")
}

func (p *MarkdownParser) DocType() string {
	return "markdown"
}

// Parse takes the first level one heading as title and collects fenced code
// blocks, describing each with the paragraph right before it.
func (p *MarkdownParser) Parse(raw, filePath string) (*Parsed, error) {
	if strings.TrimSpace(raw) == "" {
		return emptyParsed(filePath), nil
	}
	source := []byte(raw)
	doc := p.md.Parser().Parse(text.NewReader(source))

	out := &Parsed{Content: raw}
	var lastParagraph string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			if n.Level == 1 && out.Title == "" {
				out.Title = strings.TrimSpace(extractText(n, source))
			}
			lastParagraph = ""
		case *ast.Paragraph:
			lastParagraph = extractText(n, source)
		case *ast.FencedCodeBlock:
			var sb strings.Builder
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				sb.Write(line.Value(source))
			}
			out.CodeBlocks = append(out.CodeBlocks, CodeBlock{
				Language:    strings.ToLower(string(n.Language(source))),
				Code:        strings.TrimRight(sb.String(), "\n"),
				Description: lastParagraph,
			})
			lastParagraph = ""
		default:
			lastParagraph = ""
		}
	}
	if out.Title == "" {
		out.Title = titleFromPath(filePath)
	}
	return out, nil
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.CodeSpan:
			for c := t.FirstChild(); c != nil; c = c.NextSibling() {
				if seg, ok := c.(*ast.Text); ok {
					sb.Write(seg.Segment.Value(source))
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
