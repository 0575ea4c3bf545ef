package biz

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/knowledge-x/internal/knowledge/store"
	"github.com/kart-io/knowledge-x/internal/model"
	"github.com/kart-io/knowledge-x/pkg/options/kb"
)

// memFileStats 内存文件状态统计。
type memFileStats struct {
	registry *memFileRegistry
}

func (m *memFileStats) CountByState(_ context.Context) (map[model.FileState]int64, error) {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()
	out := make(map[model.FileState]int64)
	for _, f := range m.registry.files {
		out[f.State]++
	}
	return out, nil
}

func newTestService(t *testing.T, chat *stubChat) (Service, *memFileRegistry) {
	t.Helper()

	registry := store.DefaultRegistry(3)
	vectors := store.NewMemoryStore()
	files := newMemFileRegistry()
	embedder := &stubEmbedder{dim: 3}

	orchestrator := NewOrchestrator(
		NewTextExtractor(1<<20),
		embedder,
		NewReconciler(model.SecurityInternal),
		registry,
		vectors,
		files,
		newTestPool(t),
		OrchestratorConfig{ChunkSize: 60, ChunkOverlap: 0},
	)

	router := NewQueryRouter(
		NewClassifier(nil, nil),
		embedder,
		vectors,
		nil,
		registry,
		QueryRouterConfig{TopK: 5, Timeout: 2 * time.Second, VectorPriority: true},
	)

	var generator *Generator
	if chat != nil {
		generator = NewGenerator(chat, kb.DefaultSystemPrompt)
	}

	svc := NewService(orchestrator, router, generator, nil, registry, vectors, &memFileStats{registry: files})
	return svc, files
}

func TestServiceIngestAndQuery(t *testing.T) {
	chat := &stubChat{reply: "patients need a final checkup before discharge"}
	svc, _ := newTestService(t, chat)
	ctx := context.Background()

	res, err := svc.Ingest(ctx, &model.IngestRequest{
		Content: "Discharge protocol: patients need a final checkup. " +
			strings.Repeat("Additional ward guidance for the nursing staff. ", 3),
		Meta: model.IngestMeta{
			FileName:         "protocol.txt",
			Title:            "Discharge Protocol",
			Department:       "cardiology",
			OrganizationType: model.OrgHealthcare,
		},
	})
	require.NoError(t, err)
	require.Equal(t, model.StateStored, res.State)

	resp, err := svc.Query(ctx, &model.QueryRequest{
		Question:   "What is the discharge protocol?",
		WithAnswer: true,
	})
	require.NoError(t, err)

	assert.Equal(t, model.RouteVector, resp.Route)
	assert.NotEmpty(t, resp.Hits)
	assert.Equal(t, chat.reply, resp.Answer)
	assert.False(t, resp.Cached)
}

func TestServiceAnswerFailureIsNonFatal(t *testing.T) {
	chat := &stubChat{err: assert.AnError}
	svc, _ := newTestService(t, chat)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, &model.IngestRequest{
		Content: "budget approval flow for corporate finance teams.",
		Meta:    model.IngestMeta{Department: "finance"},
	})
	require.NoError(t, err)

	resp, err := svc.Query(ctx, &model.QueryRequest{
		Question:   "What is the budget approval flow?",
		WithAnswer: true,
	})
	require.NoError(t, err)

	assert.Empty(t, resp.Answer)
	assert.NotEmpty(t, resp.Warnings)
	assert.NotEmpty(t, resp.Hits)
}

func TestServiceStats(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, &model.IngestRequest{
		Content: "alpha document body for statistics.",
		Meta:    model.IngestMeta{Department: "finance"},
	})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)

	require.Len(t, stats.Collections, 4)
	byName := make(map[string]CollectionStat)
	for _, c := range stats.Collections {
		byName[c.Name] = c
	}
	assert.Equal(t, int64(1), byName["kb_documents"].RowCount)
	assert.False(t, byName["kb_images"].Enabled)
	assert.Equal(t, int64(1), stats.Files[model.StateStored])
}

func TestServiceCollections(t *testing.T) {
	svc, _ := newTestService(t, nil)

	descs := svc.Collections(context.Background())
	require.Len(t, descs, 4)
	assert.Equal(t, "kb_documents", descs[0].Name)
	assert.NotEmpty(t, descs[0].Agentic.Purpose)
}
