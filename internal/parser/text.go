package parser

import (
	"strings"
)

type TextParser struct{}

func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) Supports(filePath string) bool {
	return hasExt(filePath, ".txt")
}

func (p *TextParser) DocType() string {
	return "text"
}

func (p *TextParser) Parse(raw, filePath string) (*Parsed, error) {
	if strings.TrimSpace(raw) == "" {
		return emptyParsed(filePath), nil
	}
	title := firstLine(raw)
	if title == "" {
		title = titleFromPath(filePath)
	}
	return &Parsed{Title: title, Content: raw}, nil
}

// RstParser handles reStructuredText. Titles are the first line followed by
// an adornment line; code comes from "code-block" and "code" directives.
type RstParser struct{}

func NewRstParser() *RstParser {
	return &RstParser{}
}

func (p *RstParser) Supports(filePath string) bool {
	return hasExt(filePath, ".rst")
}

func (p *RstParser) DocType() string {
	return "rst"
}

func (p *RstParser) Parse(raw, filePath string) (*Parsed, error) {
	if strings.TrimSpace(raw) == "" {
		return emptyParsed(filePath), nil
	}
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	out := &Parsed{Content: raw}
	var paragraph []string
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if out.Title == "" && trimmed != "" && !isAdornment(trimmed) && i+1 < len(lines) && isAdornment(strings.TrimSpace(lines[i+1])) {
			out.Title = trimmed
			i++
			paragraph = nil
			continue
		}
		if lang, ok := codeDirective(trimmed); ok {
			start := i + 1
			// skip directive options and the blank separator
			for start < len(lines) && (strings.TrimSpace(lines[start]) == "" || strings.HasPrefix(strings.TrimSpace(lines[start]), ":")) {
				start++
			}
			end := start
			for end < len(lines) && (strings.TrimSpace(lines[end]) == "" || isIndented(lines[end])) {
				end++
			}
			code := dedent(lines[start:end])
			if code != "" {
				out.CodeBlocks = append(out.CodeBlocks, CodeBlock{
					Language:    lang,
					Code:        code,
					Description: strings.Join(paragraph, " "),
				})
			}
			paragraph = nil
			i = end - 1
			continue
		}
		if trimmed == "" {
			continue
		}
		if i > 0 && strings.TrimSpace(lines[i-1]) == "" {
			paragraph = nil
		}
		if !isAdornment(trimmed) {
			paragraph = append(paragraph, trimmed)
		}
	}
	if out.Title == "" {
		out.Title = titleFromPath(filePath)
	}
	return out, nil
}

func codeDirective(line string) (string, bool) {
	for _, prefix := range []string{".. code-block::", ".. code::", ".. sourcecode::"} {
		if strings.HasPrefix(line, prefix) {
			return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, prefix))), true
		}
	}
	return "", false
}

func isAdornment(line string) bool {
	if len(line) < 3 {
		return false
	}
	ch := line[0]
	if !strings.ContainsRune("=-~^\"'`#*+_:.", rune(ch)) {
		return false
	}
	return strings.Count(line, string(ch)) == len(line)
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
}

func dedent(lines []string) string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	indent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if len(l) >= indent && indent > 0 {
			l = l[indent:]
		}
		out = append(out, strings.TrimRight(l, " \t"))
	}
	return strings.Join(out, "\n")
}

func firstLine(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}
