package parser

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type HTMLParser struct{}

func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

func (p *HTMLParser) Supports(filePath string) bool {
	return hasExt(filePath, ".html", ".htm")
}

func (p *HTMLParser) DocType() string {
	return "html"
}

// Parse converts the page body to markdown-like text. The title comes from
// <title>, then the first <h1>.
func (p *HTMLParser) Parse(raw, filePath string) (*Parsed, error) {
	if strings.TrimSpace(raw) == "" {
		return emptyParsed(filePath), nil
	}
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, err
	}
	w := &htmlWalker{}
	w.walk(root)
	title := w.title
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

type htmlWalker struct {
	title     string
	firstH1   string
	blocks    []string
	code      []CodeBlock
	lastBlock string
}

func (w *htmlWalker) walk(n *html.Node) {
	if n.Type != html.ElementNode {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c)
		}
		return
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript:
		return
	case atom.Title:
		if w.title == "" {
			w.title = collapseSpace(nodeText(n))
		}
		return
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		txt := collapseSpace(nodeText(n))
		if txt == "" {
			return
		}
		if n.DataAtom == atom.H1 && w.firstH1 == "" {
			w.firstH1 = txt
		}
		level := int(n.Data[1] - '0')
		w.add(strings.Repeat("#", level) + " " + txt)
		w.lastBlock = ""
		return
	case atom.P:
		txt := collapseSpace(nodeText(n))
		w.add(txt)
		w.lastBlock = txt
		return
	case atom.Li:
		w.add("- " + collapseSpace(nodeText(n)))
		return
	case atom.Pre:
		code := strings.Trim(nodeText(n), "\n")
		lang := ""
		if c := findChild(n, atom.Code); c != nil {
			lang = codeLanguage(c)
		}
		if strings.TrimSpace(code) == "" {
			return
		}
		w.code = append(w.code, CodeBlock{Language: lang, Code: code, Description: w.lastBlock})
		w.add("```" + lang + "\n" + code + "\n```")
		w.lastBlock = ""
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *htmlWalker) add(block string) {
	if strings.TrimSpace(block) == "" || strings.TrimSpace(block) == "-" {
		return
	}
	w.blocks = append(w.blocks, block)
}

// codeLanguage reads "language-x" or "lang-x" from the class attribute.
func codeLanguage(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, cls := range strings.Fields(attr.Val) {
			for _, prefix := range []string{"language-", "lang-"} {
				if strings.HasPrefix(cls, prefix) {
					return strings.ToLower(strings.TrimPrefix(cls, prefix))
				}
			}
		}
	}
	return ""
}

func findChild(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			return
		}
		if node.Type == html.ElementNode && (node.DataAtom == atom.Script || node.DataAtom == atom.Style) {
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
