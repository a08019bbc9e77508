package model

type FileKind string

const (
	FileKindFile FileKind = "file"
	FileKindDir  FileKind = "dir"
)

// RepoFile is a repository entry reported by a fetch strategy. Path is
// repository relative and always uses forward slashes.
type RepoFile struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Sha         string   `json:"sha"`
	SizeBytes   int64    `json:"size_bytes"`
	Kind        FileKind `json:"kind"`
	DownloadURL string   `json:"download_url,omitempty"`
}

func (f RepoFile) IsFile() bool {
	return f.Kind == FileKindFile
}

type FetchResult struct {
	Files            []RepoFile        `json:"files"`
	PreloadedContent map[string]string `json:"-"`
	StrategyUsed     string            `json:"strategy_used"`
}

func (r *FetchResult) Empty() bool {
	return r == nil || len(r.Files) == 0
}

// Preloaded returns content already fetched for path, if any.
func (r *FetchResult) Preloaded(path string) (string, bool) {
	if r == nil || r.PreloadedContent == nil {
		return "", false
	}
	content, ok := r.PreloadedContent[path]
	return content, ok
}

// SourceDescriptor identifies a remote documentation tree.
type SourceDescriptor struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	DocsPath string `json:"docs_path"`
	Ref      string `json:"ref"`
}
