package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/docindex/internal/pkg/errors"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestMatch(t *testing.T) {
	require.True(t, Match("*.md", "a.md"))
	require.False(t, Match("*.md", "docs/a.md"))
	require.True(t, Match("**/*.md", "a.md"))
	require.True(t, Match("**/*.md", "docs/api/ref.md"))
	require.False(t, Match("**/*.md", "docs/api/ref.txt"))
	require.True(t, Match("docs/**/*.adoc", "docs/x/y/z.adoc"))
	require.True(t, Match("**/*", "any/thing"))
	require.True(t, Match("**/*.{md,adoc}", "docs/b.adoc"))
	require.False(t, Match("**/*.{md,adoc}", "docs/c.rst"))
}

func TestReadDirectoryRecursive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/intro.md", "# Intro")
	writeFile(t, root, "docs/api/reference.md", "# API Reference")
	writeFile(t, root, "readme.txt", "README")
	writeFile(t, root, ".git/HEAD.md", "ref")
	writeFile(t, root, "vendor/lib/x.md", "vendored")

	files, err := NewReader(0).ReadDirectory(context.Background(), root, "**/*.md")
	require.NoError(t, err)
	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	require.ElementsMatch(t, []string{"docs/intro.md", "docs/api/reference.md"}, paths)
	for _, f := range files {
		if f.Path == "docs/intro.md" {
			require.Equal(t, "# Intro", f.Content)
			require.Equal(t, int64(7), f.Size)
		}
	}
}

func TestReadDirectorySkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.md", "ok")
	writeFile(t, root, "big.md", strings.Repeat("x", 64))
	files, err := NewReader(32).ReadDirectory(context.Background(), root, "*.md")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "small.md", files[0].Path)
}

func TestReadDirectoryMissingRoot(t *testing.T) {
	_, err := NewReader(0).ReadDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), "*.md")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestReadDirectoryNoMatches(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "file.txt", "not markdown")
	files, err := NewReader(0).ReadDirectory(context.Background(), root, "*.md")
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestListFilesBracePattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/a.md", "# A")
	writeFile(t, root, "docs/b.adoc", "= B")
	writeFile(t, root, "docs/c.txt", "c")
	files, err := NewReader(0).ListFiles(context.Background(), root, "**/*.{md,adoc}")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"docs/a.md", "docs/b.adoc"}, files)
}

func TestReadDirectoryInvalidPattern(t *testing.T) {
	_, err := NewReader(0).ListFiles(context.Background(), t.TempDir(), "[")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
