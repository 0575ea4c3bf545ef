package biz

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/knowledge-x/internal/knowledge/store"
	"github.com/kart-io/knowledge-x/internal/model"
	"github.com/kart-io/knowledge-x/internal/pkg/kb/chunker"
	"github.com/kart-io/knowledge-x/internal/pkg/kb/docutil"
	"github.com/kart-io/knowledge-x/internal/pkg/kb/textutil"
	"github.com/kart-io/knowledge-x/pkg/infra/pool"
	"github.com/kart-io/knowledge-x/pkg/llm"
	apierrors "github.com/kart-io/knowledge-x/pkg/utils/errors"
)

// 目录摄入的默认扩展名。
var defaultIngestExtensions = []string{".txt", ".md"}

// FileRegistry 是摄入编排器需要的文件登记表最小接口，
// 由 store.FileStore 实现。
type FileRegistry interface {
	Save(ctx context.Context, file *model.FileRecord) error
	UpdateState(ctx context.Context, id string, state model.FileState, chunkCount int) error
	GetByHash(ctx context.Context, hash string) (*model.FileRecord, error)
}

// OrchestratorConfig 摄入流水线配置。
type OrchestratorConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// Orchestrator 驱动单个文件的完整摄入流水线：
// 提取 -> 分块 -> 逐块（向量化 -> 元数据整合 -> 写入），
// 分块之间相互隔离，单块失败不影响其余分块。
type Orchestrator struct {
	extractor  Extractor
	embedder   llm.EmbeddingProvider
	reconciler *Reconciler
	registry   *store.Registry
	vectors    store.VectorStore
	files      FileRegistry
	workers    *pool.Pool
	cfg        OrchestratorConfig
}

// NewOrchestrator 创建摄入编排器。files 可为 nil，此时不登记文件状态。
func NewOrchestrator(
	extractor Extractor,
	embedder llm.EmbeddingProvider,
	reconciler *Reconciler,
	registry *store.Registry,
	vectors store.VectorStore,
	files FileRegistry,
	workers *pool.Pool,
	cfg OrchestratorConfig,
) *Orchestrator {
	return &Orchestrator{
		extractor:  extractor,
		embedder:   embedder,
		reconciler: reconciler,
		registry:   registry,
		vectors:    vectors,
		files:      files,
		workers:    workers,
		cfg:        cfg,
	}
}

// chunkOutcome 单个分块的处理结果。
type chunkOutcome struct {
	index   int
	stored  bool
	skipped bool
	err     error
}

// Ingest 摄入单个文件。文件级错误（元数据缺失、提取失败、超限）
// 直接返回；分块级错误记入 IngestResult.Failures。
func (o *Orchestrator) Ingest(ctx context.Context, req *model.IngestRequest) (*model.IngestResult, error) {
	started := time.Now()

	if req.Meta.Department == "" {
		return nil, apierrors.ErrKBIncompleteMetadata.WithMessage("department is required")
	}

	text, err := o.extractor.Extract(ctx, req)
	if err != nil {
		return nil, err
	}

	// 内容哈希即文件 ID，同一内容重复摄入命中同一批分块
	hash := textutil.HashContent([]byte(text))
	fileID := hash

	desc, err := o.collectionFor(req.Meta.ContentType)
	if err != nil {
		return nil, err
	}

	// 整文件级去重：同内容且已完整入库的文件直接跳过
	if o.files != nil {
		if existing, err := o.files.GetByHash(ctx, hash); err == nil && existing != nil && existing.State == model.StateStored {
			logger.Infow("file already ingested, skipping",
				"file_id", fileID, "file_name", existing.FileName, "chunks", existing.ChunkCount)
			return &model.IngestResult{
				FileID:        fileID,
				Collection:    desc.Name,
				State:         model.StateStored,
				ChunksTotal:   existing.ChunkCount,
				ChunksSkipped: existing.ChunkCount,
			}, nil
		}
	}

	file := o.buildFileRecord(fileID, hash, int64(len(text)), req)
	o.saveFile(ctx, file)

	o.updateState(ctx, fileID, model.StateExtracted, 0)

	chunks, err := chunker.Split(text, o.cfg.ChunkSize, o.cfg.ChunkOverlap)
	if err != nil {
		o.updateState(ctx, fileID, model.StateFailed, 0)
		return nil, apierrors.ErrKBInvalidRequest.WithCause(err)
	}
	o.updateState(ctx, fileID, model.StateChunked, len(chunks))

	if err := o.vectors.CreateCollection(ctx, desc); err != nil {
		o.updateState(ctx, fileID, model.StateFailed, len(chunks))
		return nil, err
	}

	o.updateState(ctx, fileID, model.StateEmbedding, len(chunks))

	proc := model.ProcessingInfo{
		SourceFileID:   fileID,
		ChunkCount:     len(chunks),
		EmbeddingModel: o.embedder.Name(),
		ContentHash:    hash,
		// 纯文本提取无损，置信度恒为 1.0
		ConfidenceScore:    1.0,
		ProcessingDuration: time.Since(started).Seconds(),
		ProcessedAt:        time.Now().UTC(),
	}

	result := o.processChunks(ctx, desc.Name, file, chunks, proc)
	result.FileID = fileID
	result.Collection = desc.Name
	result.State = result.ResolveState()

	o.updateState(ctx, fileID, result.State, len(chunks))

	logger.Infow("file ingested",
		"file_id", fileID,
		"collection", desc.Name,
		"state", result.State,
		"chunks_total", result.ChunksTotal,
		"chunks_stored", result.ChunksStored,
		"chunks_skipped", result.ChunksSkipped,
		"failures", len(result.Failures))
	return result, nil
}

// IngestDirectory 递归摄入目录下的文本文件。文件之间相互隔离，
// 单个文件失败不会终止批处理。
func (o *Orchestrator) IngestDirectory(ctx context.Context, req *model.IngestDirectoryRequest) (*model.DirectoryIngestResult, error) {
	if !docutil.DirExists(req.Directory) {
		return nil, apierrors.ErrKBInvalidDirectory.WithMessagef("directory %s does not exist", req.Directory)
	}

	exts := req.Extensions
	if len(exts) == 0 {
		exts = defaultIngestExtensions
	}

	paths, err := docutil.FindFiles(req.Directory, exts)
	if err != nil {
		return nil, apierrors.ErrKBInvalidDirectory.WithCause(err)
	}

	out := &model.DirectoryIngestResult{
		Directory:  req.Directory,
		FilesTotal: len(paths),
	}

	for _, p := range paths {
		meta := req.Meta
		meta.FileName = filepath.Base(p)
		if meta.Title == "" {
			meta.Title = strings.TrimSuffix(meta.FileName, filepath.Ext(meta.FileName))
		}

		res, err := o.Ingest(ctx, &model.IngestRequest{FilePath: p, Meta: meta})
		if err != nil {
			logger.Warnw("file ingestion failed", "path", p, "error", err.Error())
			res = &model.IngestResult{
				State:    model.StateFailed,
				Failures: []model.ChunkFailure{{ChunkIndex: -1, Reason: err.Error(), Code: errnoCode(err)}},
			}
		}
		out.Results = append(out.Results, res)
	}

	return out, nil
}

// processChunks 并发处理全部分块并汇总结果。
func (o *Orchestrator) processChunks(ctx context.Context, collection string, file *model.FileRecord, chunks []chunker.Chunk, proc model.ProcessingInfo) *model.IngestResult {
	outcomes := make(chan chunkOutcome, len(chunks))
	var wg sync.WaitGroup

	for _, chunk := range chunks {
		chunk := chunk
		wg.Add(1)
		task := func() {
			defer wg.Done()
			outcomes <- o.processChunk(ctx, collection, file, chunk, proc)
		}
		if err := o.workers.Submit(task); err != nil {
			wg.Done()
			outcomes <- chunkOutcome{index: chunk.Index, err: apierrors.ErrKBIngestFailed.WithCause(err)}
		}
	}

	wg.Wait()
	close(outcomes)

	result := &model.IngestResult{ChunksTotal: len(chunks)}
	for oc := range outcomes {
		switch {
		case oc.err != nil:
			result.Failures = append(result.Failures, model.ChunkFailure{
				ChunkIndex: oc.index,
				Reason:     oc.err.Error(),
				Code:       errnoCode(oc.err),
			})
		case oc.skipped:
			result.ChunksSkipped++
		case oc.stored:
			result.ChunksStored++
		}
	}
	return result
}

// processChunk 处理单个分块：向量化、元数据整合、写入。
func (o *Orchestrator) processChunk(ctx context.Context, collection string, file *model.FileRecord, chunk chunker.Chunk, proc model.ProcessingInfo) chunkOutcome {
	if err := ctx.Err(); err != nil {
		return chunkOutcome{index: chunk.Index, err: err}
	}

	// 已入库的分块直接跳过，保证重复摄入的幂等性
	exists, err := o.vectors.HasChunk(ctx, collection, proc.SourceFileID, chunk.Index)
	if err != nil {
		return chunkOutcome{index: chunk.Index, err: err}
	}
	if exists {
		return chunkOutcome{index: chunk.Index, skipped: true}
	}

	vector, err := o.embedder.EmbedSingle(ctx, chunk.Text)
	if err != nil {
		return chunkOutcome{index: chunk.Index, err: apierrors.ErrKBEmbeddingFailed.WithCause(err)}
	}

	rec, err := o.reconciler.Reconcile(file, chunk, proc)
	if err != nil {
		return chunkOutcome{index: chunk.Index, err: err}
	}

	if _, err := o.vectors.Insert(ctx, collection, vector, rec); err != nil {
		// 并发摄入同一文件时写入方竞争，落败方按跳过计
		if errors.Is(err, apierrors.ErrKBDuplicateChunk) {
			return chunkOutcome{index: chunk.Index, skipped: true}
		}
		return chunkOutcome{index: chunk.Index, err: err}
	}
	return chunkOutcome{index: chunk.Index, stored: true}
}

// collectionFor 按内容形态解析目标集合，未启用的集合拒绝摄入。
func (o *Orchestrator) collectionFor(ct model.ContentType) (*store.CollectionDescriptor, error) {
	if ct == "" {
		ct = model.ContentDocument
	}
	desc, ok := o.registry.ForContentType(ct)
	if !ok {
		return nil, apierrors.ErrKBCollectionNotFound.WithMessagef("no collection for content type %q", ct)
	}
	if !desc.Enabled {
		return nil, apierrors.ErrKBCollectionNotFound.WithMessagef("collection %s is disabled", desc.Name)
	}
	return desc, nil
}

func (o *Orchestrator) buildFileRecord(fileID, hash string, size int64, req *model.IngestRequest) *model.FileRecord {
	meta := req.Meta
	fileName := meta.FileName
	if fileName == "" && req.FilePath != "" {
		fileName = filepath.Base(req.FilePath)
	}
	format := meta.Format
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(fileName), ".")
	}
	return &model.FileRecord{
		ID:                   fileID,
		FileName:             fileName,
		FilePath:             req.FilePath,
		Title:                meta.Title,
		Author:               meta.Author,
		ContentType:          meta.ContentType,
		Format:               format,
		Category:             meta.Category,
		Department:           meta.Department,
		Role:                 meta.Role,
		OrganizationType:     meta.OrganizationType,
		UploadedBy:           meta.UploadedBy,
		AccessGroups:         textutil.DedupStrings(meta.AccessGroups),
		SecurityLevel:        meta.SecurityLevel,
		ApprovedBy:           meta.ApprovedBy,
		ComplianceFrameworks: textutil.DedupStrings(meta.ComplianceFrameworks),
		Tags:                 textutil.DedupStrings(meta.Tags),
		Language:             meta.Language,
		FileSize:             size,
		ContentHash:          hash,
		CustomFields:         meta.CustomFields,
		State:                model.StateUploaded,
	}
}

func (o *Orchestrator) saveFile(ctx context.Context, file *model.FileRecord) {
	if o.files == nil {
		return
	}
	if err := o.files.Save(ctx, file); err != nil {
		logger.Warnw("failed to save file record", "file_id", file.ID, "error", err.Error())
	}
}

func (o *Orchestrator) updateState(ctx context.Context, fileID string, state model.FileState, chunkCount int) {
	if o.files == nil {
		return
	}
	if err := o.files.UpdateState(ctx, fileID, state, chunkCount); err != nil {
		logger.Warnw("failed to update file state",
			"file_id", fileID, "state", state, "error", err.Error())
	}
}

// errnoCode 提取结构化错误码，非结构化错误返回 0。
func errnoCode(err error) int {
	var errno *apierrors.Errno
	if errors.As(err, &errno) {
		return errno.Code
	}
	return 0
}
