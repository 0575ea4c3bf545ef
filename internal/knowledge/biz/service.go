package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kart-io/knowledge-x/internal/knowledge/store"
	"github.com/kart-io/knowledge-x/internal/model"
)

// CollectionStat 单个集合的统计信息。
type CollectionStat struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	RowCount    int64  `json:"row_count"`
}

// KnowledgeStats 知识库整体统计。
type KnowledgeStats struct {
	Collections []CollectionStat          `json:"collections"`
	Files       map[model.FileState]int64 `json:"files,omitempty"`
}

// FileStatsProvider 提供文件登记表的状态统计。
type FileStatsProvider interface {
	CountByState(ctx context.Context) (map[model.FileState]int64, error)
}

// Service 知识库业务门面。
type Service interface {
	Ingest(ctx context.Context, req *model.IngestRequest) (*model.IngestResult, error)
	IngestDirectory(ctx context.Context, req *model.IngestDirectoryRequest) (*model.DirectoryIngestResult, error)
	Query(ctx context.Context, req *model.QueryRequest) (*model.QueryResponse, error)
	Stats(ctx context.Context) (*KnowledgeStats, error)
	Collections(ctx context.Context) []*store.CollectionDescriptor
}

type knowledgeService struct {
	orchestrator *Orchestrator
	router       *QueryRouter
	generator    *Generator
	cache        *QueryCache
	registry     *store.Registry
	vectors      store.VectorStore
	fileStats    FileStatsProvider
}

var _ Service = (*knowledgeService)(nil)

// NewService 组装知识库业务门面。generator、cache、fileStats 均可为 nil，
// 对应能力自动退化。
func NewService(
	orchestrator *Orchestrator,
	router *QueryRouter,
	generator *Generator,
	cache *QueryCache,
	registry *store.Registry,
	vectors store.VectorStore,
	fileStats FileStatsProvider,
) Service {
	return &knowledgeService{
		orchestrator: orchestrator,
		router:       router,
		generator:    generator,
		cache:        cache,
		registry:     registry,
		vectors:      vectors,
		fileStats:    fileStats,
	}
}

func (s *knowledgeService) Ingest(ctx context.Context, req *model.IngestRequest) (*model.IngestResult, error) {
	return s.orchestrator.Ingest(ctx, req)
}

func (s *knowledgeService) IngestDirectory(ctx context.Context, req *model.IngestDirectoryRequest) (*model.DirectoryIngestResult, error) {
	return s.orchestrator.IngestDirectory(ctx, req)
}

func (s *knowledgeService) Query(ctx context.Context, req *model.QueryRequest) (*model.QueryResponse, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, req); err == nil && cached != nil {
			cached.Cached = true
			return cached, nil
		}
	}

	resp, err := s.router.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.WithAnswer && s.generator != nil {
		answer, err := s.generator.Generate(ctx, req.Question, resp.Hits)
		if err != nil {
			// 回答生成失败不影响检索结果
			logger.Warnw("answer generation failed", "error", err.Error())
			resp.Warnings = append(resp.Warnings, "answer generation failed: "+err.Error())
		} else {
			resp.Answer = answer
		}
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, req, resp)
	}
	return resp, nil
}

func (s *knowledgeService) Stats(ctx context.Context) (*KnowledgeStats, error) {
	stats := &KnowledgeStats{}

	for _, desc := range s.registry.List() {
		cs := CollectionStat{
			Name:        desc.Name,
			Description: desc.Description,
			Enabled:     desc.Enabled,
		}
		if desc.Enabled {
			if st, err := s.vectors.Stats(ctx, desc.Name); err == nil {
				cs.RowCount = st.RowCount
			} else {
				logger.Warnw("failed to read collection stats",
					"collection", desc.Name, "error", err.Error())
			}
		}
		stats.Collections = append(stats.Collections, cs)
	}

	if s.fileStats != nil {
		counts, err := s.fileStats.CountByState(ctx)
		if err != nil {
			logger.Warnw("failed to read file state counts", "error", err.Error())
		} else {
			stats.Files = counts
		}
	}
	return stats, nil
}

func (s *knowledgeService) Collections(_ context.Context) []*store.CollectionDescriptor {
	return s.registry.List()
}
