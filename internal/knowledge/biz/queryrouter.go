package biz

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/knowledge-x/internal/knowledge/store"
	"github.com/kart-io/knowledge-x/internal/model"
	"github.com/kart-io/knowledge-x/pkg/llm"
	apierrors "github.com/kart-io/knowledge-x/pkg/utils/errors"
)

// QueryRouterConfig 查询路由配置。
type QueryRouterConfig struct {
	// TopK 未指定时的默认结果数。
	TopK int
	// Timeout 两路后端共享的执行超时。
	Timeout time.Duration
	// VectorPriority 归并同分时向量结果优先。
	VectorPriority bool
	// DefaultCollection 请求未指定集合时的默认集合。
	DefaultCollection string
}

// QueryRouter 按分类结果将问题分发到向量检索与关系库查询，
// 两路并发执行后归并。单路故障降级返回，双路故障才报错。
type QueryRouter struct {
	classifier *Classifier
	embedder   llm.EmbeddingProvider
	vectors    store.VectorStore
	relational store.RelationalConnector
	registry   *store.Registry
	cfg        QueryRouterConfig
}

// NewQueryRouter 创建查询路由器。relational 可为 nil，
// 此时关系路退化为不可用后端。
func NewQueryRouter(
	classifier *Classifier,
	embedder llm.EmbeddingProvider,
	vectors store.VectorStore,
	relational store.RelationalConnector,
	registry *store.Registry,
	cfg QueryRouterConfig,
) *QueryRouter {
	if cfg.DefaultCollection == "" {
		cfg.DefaultCollection = "kb_documents"
	}
	return &QueryRouter{
		classifier: classifier,
		embedder:   embedder,
		vectors:    vectors,
		relational: relational,
		registry:   registry,
		cfg:        cfg,
	}
}

type branchResult struct {
	source string
	hits   []model.QueryHit
	err    error
}

// Execute 执行一次查询。返回的 QueryResponse 不含生成的回答，
// 回答生成由上层按需追加。
func (r *QueryRouter) Execute(ctx context.Context, req *model.QueryRequest) (*model.QueryResponse, error) {
	started := time.Now()

	if strings.TrimSpace(req.Question) == "" {
		return nil, apierrors.ErrKBInvalidRequest.WithMessage("question is required")
	}

	topK := req.TopK
	if topK <= 0 {
		topK = r.cfg.TopK
	}

	filter, err := buildFilter(req)
	if err != nil {
		return nil, err
	}

	route := r.classifier.Classify(ctx, req.Question)

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	needVector := route != model.RouteRelational
	needRelational := route != model.RouteVector

	resCh := make(chan branchResult, 2)
	pending := 0

	if needVector {
		pending++
		go func() {
			hits, err := r.vectorLookup(ctx, req, topK, filter)
			resCh <- branchResult{source: "vector", hits: hits, err: err}
		}()
	}
	if needRelational {
		pending++
		go func() {
			hits, err := r.relationalLookup(ctx, req, topK)
			resCh <- branchResult{source: "relational", hits: hits, err: err}
		}()
	}

	var vecHits, relHits []model.QueryHit
	var vecErr, relErr error
	for ; pending > 0; pending-- {
		select {
		case <-ctx.Done():
			return nil, apierrors.ErrKBQueryTimeout.WithCause(ctx.Err())
		case br := <-resCh:
			if br.source == "vector" {
				vecHits, vecErr = br.hits, br.err
			} else {
				relHits, relErr = br.hits, br.err
			}
		}
	}

	resp := &model.QueryResponse{Route: route}

	switch route {
	case model.RouteVector:
		if vecErr != nil {
			if !backendFailure(vecErr) {
				return nil, vecErr
			}
			// 向量路后端故障时改走关系路兜底，而不是整个查询失败
			relHits, relErr = r.relationalLookup(ctx, req, topK)
			if relErr != nil {
				return nil, apierrors.ErrKBNoBackendAvailable.WithMessagef(
					"vector: %v; relational: %v", vecErr, relErr)
			}
			resp.Degraded = true
			resp.Warnings = append(resp.Warnings, "vector backend unavailable: "+vecErr.Error())
			logger.Warnw("vector backend degraded, serving relational results", "error", vecErr.Error())
			resp.Hits = r.merge(nil, relHits, topK)
			break
		}
		resp.Hits = r.merge(vecHits, nil, topK)
	case model.RouteRelational:
		if relErr != nil {
			if !backendFailure(relErr) {
				return nil, relErr
			}
			vecHits, vecErr = r.vectorLookup(ctx, req, topK, filter)
			if vecErr != nil {
				return nil, apierrors.ErrKBNoBackendAvailable.WithMessagef(
					"vector: %v; relational: %v", vecErr, relErr)
			}
			resp.Degraded = true
			resp.Warnings = append(resp.Warnings, "relational backend unavailable: "+relErr.Error())
			logger.Warnw("relational backend degraded, serving vector results", "error", relErr.Error())
			resp.Hits = r.merge(vecHits, nil, topK)
			break
		}
		resp.Hits = r.merge(nil, relHits, topK)
	default:
		if vecErr != nil && relErr != nil {
			return nil, apierrors.ErrKBNoBackendAvailable.WithMessagef(
				"vector: %v; relational: %v", vecErr, relErr)
		}
		if vecErr != nil {
			resp.Degraded = true
			resp.Warnings = append(resp.Warnings, "vector backend unavailable: "+vecErr.Error())
			logger.Warnw("vector backend degraded", "error", vecErr.Error())
		}
		if relErr != nil {
			resp.Degraded = true
			resp.Warnings = append(resp.Warnings, "relational backend unavailable: "+relErr.Error())
			logger.Warnw("relational backend degraded", "error", relErr.Error())
		}
		resp.Hits = r.merge(vecHits, relHits, topK)
	}

	resp.Count = len(resp.Hits)
	resp.ElapsedMs = time.Since(started).Milliseconds()
	return resp, nil
}

// vectorLookup 向量路：向量化问题后在目标集合做混合检索。
func (r *QueryRouter) vectorLookup(ctx context.Context, req *model.QueryRequest, topK int, filter store.FilterExpr) ([]model.QueryHit, error) {
	collection := req.Collection
	if collection == "" {
		if req.ContentType != "" {
			if desc, ok := r.registry.ForContentType(req.ContentType); ok {
				collection = desc.Name
			}
		}
		if collection == "" {
			collection = r.cfg.DefaultCollection
		}
	}
	if _, ok := r.registry.Get(collection); !ok {
		return nil, apierrors.ErrKBCollectionNotFound.WithMessagef("collection %s not found", collection)
	}

	vector, err := r.embedder.EmbedSingle(ctx, req.Question)
	if err != nil {
		return nil, apierrors.ErrKBEmbeddingFailed.WithCause(err)
	}

	records, err := r.vectors.HybridSearch(ctx, collection, vector, topK, filter)
	if err != nil {
		return nil, err
	}

	hits := make([]model.QueryHit, 0, len(records))
	for _, sr := range records {
		hits = append(hits, model.QueryHit{
			ID:            sr.Record.ID,
			Text:          sr.Record.Text,
			Score:         sr.Score,
			Source:        "vector",
			Title:         sr.Record.Content.Title,
			Department:    sr.Record.Organizational.Department,
			ContentType:   sr.Record.Content.ContentType,
			SecurityLevel: sr.Record.Compliance.SecurityLevel,
			SourceFileID:  sr.Record.Processing.SourceFileID,
			ChunkIndex:    sr.Record.Processing.ChunkIndex,
		})
	}
	return hits, nil
}

// relationalLookup 关系路：按请求条件在文件登记表做结构化查询，
// 命中按排名赋分。
func (r *QueryRouter) relationalLookup(ctx context.Context, req *model.QueryRequest, topK int) ([]model.QueryHit, error) {
	if r.relational == nil {
		return nil, apierrors.ErrKBStoreUnavailable.WithMessage("relational backend not configured")
	}

	files, err := r.relational.ListFiles(ctx, &store.FileQuery{
		Department:       req.Department,
		ContentType:      req.ContentType,
		OrganizationType: req.OrganizationType,
		UploadedBy:       req.UploadedBy,
		SecurityCeiling:  req.SecurityCeiling,
		Limit:            topK,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]model.QueryHit, 0, len(files))
	for i, f := range files {
		text := f.Title
		if text == "" {
			text = f.FileName
		}
		hits = append(hits, model.QueryHit{
			ID:            f.ID,
			Text:          text,
			Score:         1.0 / float64(i+1),
			Source:        "relational",
			Title:         f.Title,
			Department:    f.Department,
			ContentType:   f.ContentType,
			SecurityLevel: f.SecurityLevel,
			SourceFileID:  f.ID,
		})
	}
	return hits, nil
}

// merge 归并两路结果：各路最高分归一化到 1.0 后按分数降序交错，
// 同分按配置的来源优先级排序，最终截断到 topK。
func (r *QueryRouter) merge(vec, rel []model.QueryHit, topK int) []model.QueryHit {
	normalizeScores(vec)
	normalizeScores(rel)

	all := make([]model.QueryHit, 0, len(vec)+len(rel))
	all = append(all, vec...)
	all = append(all, rel...)

	priority := "vector"
	if !r.cfg.VectorPriority {
		priority = "relational"
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].Source == priority && all[j].Source != priority
	})

	if len(all) > topK {
		all = all[:topK]
	}
	return all
}

// backendFailure 判定查找错误是否属于后端故障。调用方输入问题
// （非法过滤、集合不存在等 4xx 类）原样上抛，不触发另一路兜底。
func backendFailure(err error) bool {
	return apierrors.FromError(err).HTTPStatus() >= http.StatusInternalServerError
}

func normalizeScores(hits []model.QueryHit) {
	if len(hits) == 0 {
		return
	}
	top := hits[0].Score
	for _, h := range hits[1:] {
		if h.Score > top {
			top = h.Score
		}
	}
	if top <= 0 {
		return
	}
	for i := range hits {
		hits[i].Score /= top
	}
}

// buildFilter 将请求中的过滤条件组装为过滤表达式，无条件时返回 nil。
func buildFilter(req *model.QueryRequest) (store.FilterExpr, error) {
	var exprs []store.FilterExpr
	if req.Department != "" {
		exprs = append(exprs, &store.Eq{Field: "department", Value: req.Department})
	}
	if req.ContentType != "" {
		exprs = append(exprs, &store.Eq{Field: "content_type", Value: string(req.ContentType)})
	}
	if req.OrganizationType != "" {
		exprs = append(exprs, &store.Eq{Field: "organization_type", Value: string(req.OrganizationType)})
	}
	if req.UploadedBy != "" {
		exprs = append(exprs, &store.Eq{Field: "uploaded_by", Value: req.UploadedBy})
	}
	if len(req.Tags) > 0 {
		values := make([]any, len(req.Tags))
		for i, t := range req.Tags {
			values[i] = t
		}
		exprs = append(exprs, &store.In{Field: "tags", Values: values})
	}
	if req.SecurityCeiling != "" {
		exprs = append(exprs, &store.SecurityAtMost{Ceiling: req.SecurityCeiling})
	}

	if len(exprs) == 0 {
		return nil, nil
	}
	var expr store.FilterExpr = exprs[0]
	if len(exprs) > 1 {
		expr = &store.And{Exprs: exprs}
	}
	if err := expr.Validate(); err != nil {
		return nil, err
	}
	return expr, nil
}
