package github

import (
	"context"
	"path"
	"strings"

	"github.com/xxxsen/docindex/internal/model"
)

// Strategy lists a documentation tree. Fetch returns a nil result when the
// strategy has nothing to offer for the source; errors are kept for faults
// the strategy could not classify.
type Strategy interface {
	Priority() int
	Name() string
	Supports(owner, repo, ref string) bool
	Fetch(ctx context.Context, owner, repo, docsPath, ref string) (*model.FetchResult, error)
}

var docExtensions = map[string]struct{}{
	".md":       {},
	".markdown": {},
	".adoc":     {},
	".asciidoc": {},
	".html":     {},
	".htm":      {},
	".txt":      {},
	".rst":      {},
}

func IsDocFile(p string) bool {
	_, ok := docExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

func normalizeDocsPath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "." {
		return ""
	}
	return p
}

// underPath reports whether file lies at or below dir; an empty dir matches all.
func underPath(file, dir string) bool {
	if dir == "" {
		return true
	}
	return file == dir || strings.HasPrefix(file, dir+"/")
}
