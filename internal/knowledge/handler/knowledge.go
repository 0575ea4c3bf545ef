// Package handler 提供知识库服务的 HTTP 处理器。
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/knowledge-x/internal/knowledge/biz"
	"github.com/kart-io/knowledge-x/internal/model"
	"github.com/kart-io/knowledge-x/internal/pkg/httputils"
	apierrors "github.com/kart-io/knowledge-x/pkg/utils/errors"
)

// KnowledgeHandler 处理知识库的摄取、查询与统计请求。
type KnowledgeHandler struct {
	service biz.Service
}

// NewKnowledgeHandler 创建新的 KnowledgeHandler。
func NewKnowledgeHandler(service biz.Service) *KnowledgeHandler {
	return &KnowledgeHandler{service: service}
}

// Ingest 摄取单个文档并写入向量库。
// POST /v1/kb/ingest
func (h *KnowledgeHandler) Ingest(c *gin.Context) {
	var req model.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, apierrors.ErrKBInvalidRequest.WithMessage(err.Error()), nil)
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), &req)
	if err != nil {
		logger.Errorw("ingest failed", "file", req.Meta.FileName, "error", err.Error())
		httputils.WriteResponse(c, err, nil)
		return
	}

	httputils.WriteResponse(c, nil, result)
}

// IngestDirectory 批量摄取目录下的文档。
// POST /v1/kb/ingest/directory
func (h *KnowledgeHandler) IngestDirectory(c *gin.Context) {
	var req model.IngestDirectoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, apierrors.ErrKBInvalidRequest.WithMessage(err.Error()), nil)
		return
	}

	result, err := h.service.IngestDirectory(c.Request.Context(), &req)
	if err != nil {
		logger.Errorw("directory ingest failed", "directory", req.Directory, "error", err.Error())
		httputils.WriteResponse(c, err, nil)
		return
	}

	httputils.WriteResponse(c, nil, result)
}

// Query 路由并执行一次知识库查询。
// POST /v1/kb/query
func (h *KnowledgeHandler) Query(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, apierrors.ErrKBInvalidRequest.WithMessage(err.Error()), nil)
		return
	}

	resp, err := h.service.Query(c.Request.Context(), &req)
	if err != nil {
		logger.Errorw("query failed", "question", req.Question, "error", err.Error())
		httputils.WriteResponse(c, err, nil)
		return
	}

	httputils.WriteResponse(c, nil, resp)
}

// Stats 返回各集合的行数与文件状态统计。
// GET /v1/kb/stats
func (h *KnowledgeHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		logger.Errorw("stats failed", "error", err.Error())
		httputils.WriteResponse(c, err, nil)
		return
	}

	httputils.WriteResponse(c, nil, stats)
}

// Collections 返回全部集合描述，供 Agent 选择检索目标。
// GET /v1/kb/collections
func (h *KnowledgeHandler) Collections(c *gin.Context) {
	httputils.WriteResponse(c, nil, h.service.Collections(c.Request.Context()))
}

// Healthz 健康检查。
// GET /healthz
func (h *KnowledgeHandler) Healthz(c *gin.Context) {
	httputils.WriteResponse(c, nil, map[string]string{
		"status":  "ok",
		"service": "knowledge-server",
	})
}
