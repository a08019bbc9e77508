package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryFindsFirstMatch(t *testing.T) {
	reg := Default()
	cases := map[string]string{
		"docs/readme.md":      "markdown",
		"DOCS/README.MD":      "markdown",
		"docs/a.markdown":     "markdown",
		"docs/page.htm":       "html",
		"docs/guide.adoc":     "asciidoc",
		"docs/guide.asciidoc": "asciidoc",
		"docs/index.rst":      "rst",
		"docs/notes.txt":      "text",
	}
	for path, docType := range cases {
		p, ok := reg.Find(path)
		require.True(t, ok, path)
		require.Equal(t, docType, p.DocType(), path)
	}
	require.False(t, reg.Supports("docs/logo.png"))
}

func TestMarkdownParse(t *testing.T) {
	raw := "# Getting Started\n\nInstall the tool first.\n\n```Java\npublic class Hello {}\n```\n\n## More\n\n```javascript\nconsole.log(1)\n```\n"
	out, err := NewMarkdownParser().Parse(raw, "docs/start.md")
	require.NoError(t, err)
	require.Equal(t, "Getting Started", out.Title)
	require.Equal(t, raw, out.Content)
	require.Len(t, out.CodeBlocks, 2)
	require.Equal(t, "java", out.CodeBlocks[0].Language)
	require.Equal(t, "public class Hello {}", out.CodeBlocks[0].Code)
	require.Equal(t, "Install the tool first.", out.CodeBlocks[0].Description)
	require.Equal(t, "javascript", out.CodeBlocks[1].Language)
	require.Empty(t, out.CodeBlocks[1].Description)
}

func TestMarkdownTitleFallsBackToFileName(t *testing.T) {
	out, err := NewMarkdownParser().Parse("## Section 1\n\ntext\n", "docs/my-document.md")
	require.NoError(t, err)
	require.Equal(t, "my-document", out.Title)
}

func TestParsersHandleEmptyInput(t *testing.T) {
	cases := map[string]Parser{
		"docs/getting-started.md":   NewMarkdownParser(),
		"docs/getting-started.html": NewHTMLParser(),
		"docs/getting-started.adoc": NewAsciiDocParser(),
		"docs/getting-started.rst":  NewRstParser(),
		"docs/getting-started.txt":  NewTextParser(),
	}
	for filePath, p := range cases {
		out, err := p.Parse("  \n\t\n", filePath)
		require.NoError(t, err, p.DocType())
		require.Equal(t, "getting-started", out.Title, p.DocType())
		require.Empty(t, out.Content)
		require.Empty(t, out.CodeBlocks)
	}
}

func TestHTMLParse(t *testing.T) {
	raw := `<!DOCTYPE html><html><head><title>Getting Started Guide</title><style>p{}</style></head>
<body><h1>Welcome</h1><p>Run this:</p>
<pre><code class="hljs language-java">
System.out.println("hi");
</code></pre>
<ul><li>Item 1</li><li>Item 2</li></ul>
<pre><code class="lang-python">print("hello")</code></pre>
</body></html>`
	out, err := NewHTMLParser().Parse(raw, "docs/page.html")
	require.NoError(t, err)
	require.Equal(t, "Getting Started Guide", out.Title)
	require.Len(t, out.CodeBlocks, 2)
	require.Equal(t, "java", out.CodeBlocks[0].Language)
	require.Equal(t, `System.out.println("hi");`, out.CodeBlocks[0].Code)
	require.Equal(t, "Run this:", out.CodeBlocks[0].Description)
	require.Equal(t, "python", out.CodeBlocks[1].Language)
	require.Contains(t, out.Content, "# Welcome")
	require.Contains(t, out.Content, "- Item 2")
	require.NotContains(t, out.Content, "p{}")
}

func TestHTMLTitleFromH1(t *testing.T) {
	out, err := NewHTMLParser().Parse("<html><body><h1>My Document</h1><p>Content here.</p></body></html>", "x.html")
	require.NoError(t, err)
	require.Equal(t, "My Document", out.Title)
}

func TestAsciiDocParse(t *testing.T) {
	raw := `= User Guide
:toc:

Configure the client like this.

[source,java]
----
Client c = new Client();
c.start();
----

[source]
----
plain
----
`
	out, err := NewAsciiDocParser().Parse(raw, "docs/guide.adoc")
	require.NoError(t, err)
	require.Equal(t, "User Guide", out.Title)
	require.Len(t, out.CodeBlocks, 2)
	require.Equal(t, "java", out.CodeBlocks[0].Language)
	require.Equal(t, "Client c = new Client();\nc.start();", out.CodeBlocks[0].Code)
	require.Equal(t, "Configure the client like this.", out.CodeBlocks[0].Description)
	require.Equal(t, "", out.CodeBlocks[1].Language)
}

func TestAsciiDocRenderedBody(t *testing.T) {
	raw := `= Operators
:toc:

Compare values.

[source,go]
----
if a < b && c > d {
	return
}
----
`
	out, err := NewAsciiDocParser().Parse(raw, "docs/ops.adoc")
	require.NoError(t, err)
	require.Equal(t, "Operators", out.Title)
	require.Len(t, out.CodeBlocks, 1)
	require.Equal(t, "go", out.CodeBlocks[0].Language)
	require.Equal(t, "if a < b && c > d {\n\treturn\n}", out.CodeBlocks[0].Code)
	require.Equal(t, "Compare values.", out.CodeBlocks[0].Description)
	require.Contains(t, out.Content, "Compare values.")
	require.NotContains(t, out.Content, ":toc:")
}

func TestRstParse(t *testing.T) {
	raw := `Quickstart
==========

Start the server.

.. code-block:: Python
   :linenos:

   import app
   app.run()

Done.
`
	out, err := NewRstParser().Parse(raw, "docs/quick.rst")
	require.NoError(t, err)
	require.Equal(t, "Quickstart", out.Title)
	require.Len(t, out.CodeBlocks, 1)
	require.Equal(t, "python", out.CodeBlocks[0].Language)
	require.Equal(t, "import app\napp.run()", out.CodeBlocks[0].Code)
	require.Equal(t, "Start the server.", out.CodeBlocks[0].Description)
}

func TestTextParseUsesFirstLine(t *testing.T) {
	out, err := NewTextParser().Parse("\n  Release notes  \nbody", "notes.txt")
	require.NoError(t, err)
	require.Equal(t, "Release notes", out.Title)
}
