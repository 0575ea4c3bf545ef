package biz

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/knowledge-x/internal/knowledge/store"
	"github.com/kart-io/knowledge-x/internal/model"
	"github.com/kart-io/knowledge-x/pkg/infra/pool"
	apierrors "github.com/kart-io/knowledge-x/pkg/utils/errors"
)

// stubEmbedder 生成确定性向量，文本包含 failMarker 时报错。
type stubEmbedder struct {
	dim        int
	failMarker string
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	if s.failMarker != "" && strings.Contains(text, s.failMarker) {
		return nil, fmt.Errorf("embedding backend rejected input")
	}
	v := make([]float32, s.dim)
	for i, r := range text {
		v[i%s.dim] += float32(r % 17)
	}
	v[0]++
	return v, nil
}

func (s *stubEmbedder) Name() string { return "stub-embedder" }

// memFileRegistry 内存文件登记表，记录状态变迁历史。
type memFileRegistry struct {
	mu     sync.Mutex
	files  map[string]*model.FileRecord
	states map[string][]model.FileState
}

func newMemFileRegistry() *memFileRegistry {
	return &memFileRegistry{
		files:  make(map[string]*model.FileRecord),
		states: make(map[string][]model.FileState),
	}
}

func (r *memFileRegistry) Save(_ context.Context, file *model.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *file
	r.files[file.ID] = &cp
	r.states[file.ID] = append(r.states[file.ID], file.State)
	return nil
}

func (r *memFileRegistry) UpdateState(_ context.Context, id string, state model.FileState, chunkCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return apierrors.ErrKBFileNotFound
	}
	f.State = state
	if chunkCount > 0 {
		f.ChunkCount = chunkCount
	}
	r.states[id] = append(r.states[id], state)
	return nil
}

func (r *memFileRegistry) GetByHash(_ context.Context, hash string) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.files {
		if f.ContentHash == hash {
			cp := *f
			return &cp, nil
		}
	}
	return nil, nil
}

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.NewPool("ingest-test", &pool.Config{Capacity: 4})
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func newTestOrchestrator(t *testing.T, files FileRegistry, failMarker string) (*Orchestrator, *store.MemoryStore) {
	t.Helper()
	vectors := store.NewMemoryStore()
	return NewOrchestrator(
		NewTextExtractor(1<<20),
		&stubEmbedder{dim: 3, failMarker: failMarker},
		NewReconciler(model.SecurityInternal),
		store.DefaultRegistry(3),
		vectors,
		files,
		newTestPool(t),
		OrchestratorConfig{ChunkSize: 40, ChunkOverlap: 0},
	), vectors
}

func ingestMeta() model.IngestMeta {
	return model.IngestMeta{
		FileName:         "notes.txt",
		Department:       "finance",
		OrganizationType: model.OrgCorporate,
		SecurityLevel:    model.SecurityInternal,
	}
}

func TestIngestStoresAllChunks(t *testing.T) {
	files := newMemFileRegistry()
	o, vectors := newTestOrchestrator(t, files, "")
	ctx := context.Background()

	content := strings.Repeat("quarterly revenue grew steadily. ", 6)
	res, err := o.Ingest(ctx, &model.IngestRequest{Content: content, Meta: ingestMeta()})
	require.NoError(t, err)

	assert.Equal(t, model.StateStored, res.State)
	assert.Equal(t, "kb_documents", res.Collection)
	assert.NotEmpty(t, res.FileID)
	assert.Greater(t, res.ChunksTotal, 1)
	assert.Equal(t, res.ChunksTotal, res.ChunksStored)
	assert.Empty(t, res.Failures)

	stats, err := vectors.Stats(ctx, "kb_documents")
	require.NoError(t, err)
	assert.Equal(t, int64(res.ChunksStored), stats.RowCount)

	// 状态机完整走到终态
	assert.Equal(t, []model.FileState{
		model.StateUploaded,
		model.StateExtracted,
		model.StateChunked,
		model.StateEmbedding,
		model.StateStored,
	}, files.states[res.FileID])
}

func TestIngestIdempotentByFileHash(t *testing.T) {
	files := newMemFileRegistry()
	o, _ := newTestOrchestrator(t, files, "")
	ctx := context.Background()

	req := &model.IngestRequest{Content: strings.Repeat("alpha beta gamma. ", 8), Meta: ingestMeta()}
	first, err := o.Ingest(ctx, req)
	require.NoError(t, err)
	require.Equal(t, model.StateStored, first.State)

	// 同内容重复摄入命中整文件去重
	second, err := o.Ingest(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.FileID, second.FileID)
	assert.Equal(t, model.StateStored, second.State)
	assert.Zero(t, second.ChunksStored)
	assert.Equal(t, first.ChunksStored, second.ChunksSkipped)
}

func TestIngestSkipsExistingChunks(t *testing.T) {
	// 不带文件登记表时去重依赖分块级 HasChunk 预检
	o, _ := newTestOrchestrator(t, nil, "")
	ctx := context.Background()

	req := &model.IngestRequest{Content: strings.Repeat("alpha beta gamma. ", 8), Meta: ingestMeta()}
	first, err := o.Ingest(ctx, req)
	require.NoError(t, err)

	second, err := o.Ingest(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.StateStored, second.State)
	assert.Zero(t, second.ChunksStored)
	assert.Equal(t, first.ChunksStored, second.ChunksSkipped)
}

func TestIngestIsolatesChunkFailures(t *testing.T) {
	files := newMemFileRegistry()
	o, _ := newTestOrchestrator(t, files, "FAILME")
	ctx := context.Background()

	content := "first section about budgets.\n\nFAILME broken section here.\n\nthird section about audits."
	res, err := o.Ingest(ctx, &model.IngestRequest{Content: content, Meta: ingestMeta()})
	require.NoError(t, err)

	assert.Equal(t, model.StatePartiallyStored, res.State)
	assert.NotEmpty(t, res.Failures)
	assert.Greater(t, res.ChunksStored, 0)
	for _, f := range res.Failures {
		assert.Equal(t, apierrors.ErrKBEmbeddingFailed.Code, f.Code)
	}
}

func TestIngestRejectsMissingDepartment(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, "")

	meta := ingestMeta()
	meta.Department = ""
	_, err := o.Ingest(context.Background(), &model.IngestRequest{Content: "text", Meta: meta})
	assert.ErrorIs(t, err, apierrors.ErrKBIncompleteMetadata)
}

func TestIngestRejectsDisabledCollection(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, "")

	meta := ingestMeta()
	meta.ContentType = model.ContentImage
	_, err := o.Ingest(context.Background(), &model.IngestRequest{Content: "caption text", Meta: meta})
	assert.ErrorIs(t, err, apierrors.ErrKBCollectionNotFound)
}

func TestIngestRejectsOversizeContent(t *testing.T) {
	vectors := store.NewMemoryStore()
	o := NewOrchestrator(
		NewTextExtractor(16),
		&stubEmbedder{dim: 3},
		NewReconciler(model.SecurityInternal),
		store.DefaultRegistry(3),
		vectors,
		nil,
		newTestPool(t),
		OrchestratorConfig{ChunkSize: 40, ChunkOverlap: 0},
	)

	_, err := o.Ingest(context.Background(), &model.IngestRequest{
		Content: strings.Repeat("x", 64),
		Meta:    ingestMeta(),
	})
	assert.ErrorIs(t, err, apierrors.ErrKBOversizeInput)
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha document body."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("beta document body."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.bin"), []byte{0x1}, 0o600))

	files := newMemFileRegistry()
	o, _ := newTestOrchestrator(t, files, "")

	meta := ingestMeta()
	meta.FileName = ""
	res, err := o.IngestDirectory(context.Background(), &model.IngestDirectoryRequest{
		Directory: dir,
		Meta:      meta,
	})
	require.NoError(t, err)

	// 默认只收 .txt/.md
	assert.Equal(t, 2, res.FilesTotal)
	require.Len(t, res.Results, 2)
	for _, r := range res.Results {
		assert.Equal(t, model.StateStored, r.State)
	}
}

func TestIngestDirectoryRejectsMissingDir(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, "")

	_, err := o.IngestDirectory(context.Background(), &model.IngestDirectoryRequest{
		Directory: "/does/not/exist",
		Meta:      ingestMeta(),
	})
	assert.ErrorIs(t, err, apierrors.ErrKBInvalidDirectory)
}
