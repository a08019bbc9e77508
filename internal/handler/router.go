package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docindex/internal/middleware"
)

type RouterDeps struct {
	Sync           *SyncHandler
	Search         *SearchHandler
	SyncRateWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.Use(middleware.RequestID())

	syncGroup := api.Group("/sync")
	syncGroup.Use(middleware.RateLimit(deps.SyncRateWindow))
	syncGroup.POST("", deps.Sync.Sync)
	syncGroup.POST("/local", deps.Sync.SyncLocal)
	api.GET("/sync/:id", deps.Sync.GetRun)
	api.GET("/versions/:id/sync", deps.Sync.VersionStatus)

	api.GET("/search", deps.Search.Search)
	api.GET("/versions/:id/code-examples", deps.Search.CodeExamples)
}
