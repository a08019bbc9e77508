package model

// Document is one indexed source file within a version.
type Document struct {
	ID          string `json:"id"`
	VersionID   string `json:"version_id"`
	Title       string `json:"title"`
	Path        string `json:"path"`
	Content     string `json:"content"`
	ContentHash string `json:"content_hash"`
	DocType     string `json:"doc_type"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}

type CodeExample struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Language    string `json:"language"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Ctime       int64  `json:"ctime"`
}
