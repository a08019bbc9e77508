package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docindex/internal/model"
	"github.com/xxxsen/docindex/internal/pkg/errcode"
	"github.com/xxxsen/docindex/internal/pkg/response"
)

type searcher interface {
	Search(ctx context.Context, versionID, query string, mode model.SearchMode, limit int) ([]*model.SearchResult, error)
	CodeExamples(ctx context.Context, versionID, language string, limit int) ([]*model.CodeExample, error)
}

type SearchHandler struct {
	search searcher
}

func NewSearchHandler(search searcher) *SearchHandler {
	return &SearchHandler{search: search}
}

func (h *SearchHandler) Search(c *gin.Context) {
	versionID := strings.TrimSpace(c.Query("version_id"))
	if versionID == "" {
		response.Error(c, errcode.ErrInvalid, "version_id is required")
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		response.Errorf(c, errcode.ErrInvalid, "invalid limit %q", c.Query("limit"))
		return
	}
	mode := model.SearchMode(strings.ToLower(strings.TrimSpace(c.Query("mode"))))
	results, err := h.search.Search(c.Request.Context(), versionID, c.Query("q"), mode, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	if results == nil {
		results = []*model.SearchResult{}
	}
	response.Success(c, results)
}

func (h *SearchHandler) CodeExamples(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		response.Errorf(c, errcode.ErrInvalid, "invalid limit %q", c.Query("limit"))
		return
	}
	examples, err := h.search.CodeExamples(c.Request.Context(), c.Param("id"), strings.TrimSpace(c.Query("language")), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	if examples == nil {
		examples = []*model.CodeExample{}
	}
	response.Success(c, examples)
}
