package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docindex/internal/model"
	"github.com/xxxsen/docindex/internal/pkg/errcode"
	"github.com/xxxsen/docindex/internal/pkg/response"
	"github.com/xxxsen/docindex/internal/service"
)

type syncRunner interface {
	SyncFromSource(ctx context.Context, versionID string, src model.SourceDescriptor) (*service.SyncFuture, error)
	SyncFromLocal(ctx context.Context, versionID, rootDir, pattern string) (*service.SyncFuture, error)
	GetSyncRun(ctx context.Context, id string) (*model.SyncRun, error)
	LatestSyncRun(ctx context.Context, versionID string) (*model.SyncRun, error)
	ListSyncRuns(ctx context.Context, versionID string, limit int) ([]*model.SyncRun, error)
}

type SyncHandler struct {
	sync syncRunner
}

func NewSyncHandler(sync syncRunner) *SyncHandler {
	return &SyncHandler{sync: sync}
}

type syncRequest struct {
	VersionID string `json:"version_id"`
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
	DocsPath  string `json:"docs_path"`
	Ref       string `json:"ref"`
	Async     bool   `json:"async"`
}

type localSyncRequest struct {
	VersionID string `json:"version_id"`
	RootDir   string `json:"root_dir"`
	Pattern   string `json:"pattern"`
	Async     bool   `json:"async"`
}

type acceptedResponse struct {
	RunID  string           `json:"run_id"`
	Status model.SyncStatus `json:"status"`
}

func (h *SyncHandler) Sync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	future, err := h.sync.SyncFromSource(c.Request.Context(), req.VersionID, model.SourceDescriptor{
		Owner:    strings.TrimSpace(req.Owner),
		Repo:     strings.TrimSpace(req.Repo),
		DocsPath: strings.Trim(strings.TrimSpace(req.DocsPath), "/"),
		Ref:      strings.TrimSpace(req.Ref),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	h.respond(c, future, req.Async)
}

func (h *SyncHandler) SyncLocal(c *gin.Context) {
	var req localSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	future, err := h.sync.SyncFromLocal(c.Request.Context(), req.VersionID, req.RootDir, req.Pattern)
	if err != nil {
		handleError(c, err)
		return
	}
	h.respond(c, future, req.Async)
}

func (h *SyncHandler) respond(c *gin.Context, future *service.SyncFuture, async bool) {
	if async {
		response.Success(c, acceptedResponse{RunID: future.RunID, Status: model.SyncStatusPending})
		return
	}
	run, err := future.Wait(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, run)
}

func (h *SyncHandler) GetRun(c *gin.Context) {
	run, err := h.sync.GetSyncRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, run)
}

// VersionStatus returns the latest run plus recent history for a version.
func (h *SyncHandler) VersionStatus(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		response.Errorf(c, errcode.ErrInvalid, "invalid limit %q", c.Query("limit"))
		return
	}
	ctx := c.Request.Context()
	versionID := c.Param("id")
	latest, err := h.sync.LatestSyncRun(ctx, versionID)
	if err != nil {
		handleError(c, err)
		return
	}
	runs, err := h.sync.ListSyncRuns(ctx, versionID, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"latest": latest,
		"runs":   runs,
	})
}
