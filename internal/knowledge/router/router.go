// Package router 提供知识库服务的路由注册。
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/knowledge-x/internal/knowledge/handler"
)

// Register 将知识库路由注册到 gin 引擎。
func Register(engine *gin.Engine, h *handler.KnowledgeHandler) {
	logger.Info("Registering knowledge routes...")

	engine.GET("/healthz", h.Healthz)

	v1 := engine.Group("/v1")
	kb := v1.Group("/kb")
	{
		kb.POST("/ingest", h.Ingest)
		kb.POST("/ingest/directory", h.IngestDirectory)
		kb.POST("/query", h.Query)
		kb.GET("/stats", h.Stats)
		kb.GET("/collections", h.Collections)
	}

	logger.Info("Knowledge HTTP routes registered")
}
