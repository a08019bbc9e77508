package model

type SyncStatus string

const (
	SyncStatusPending SyncStatus = "PENDING"
	SyncStatusRunning SyncStatus = "RUNNING"
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusFailed  SyncStatus = "FAILED"
)

func (s SyncStatus) Terminal() bool {
	return s == SyncStatusSuccess || s == SyncStatusFailed
}

type SyncRun struct {
	ID                 string     `json:"id"`
	VersionID          string     `json:"version_id"`
	Status             SyncStatus `json:"status"`
	Source             string     `json:"source"`
	StartedAt          int64      `json:"started_at"`
	CompletedAt        int64      `json:"completed_at,omitempty"`
	DocumentsProcessed int        `json:"documents_processed"`
	ChunksCreated      int        `json:"chunks_created"`
	ErrorMessage       string     `json:"error_message,omitempty"`
}
