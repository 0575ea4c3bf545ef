package biz

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/knowledge-x/internal/model"
	"github.com/kart-io/knowledge-x/pkg/options/kb"
	apierrors "github.com/kart-io/knowledge-x/pkg/utils/errors"
)

func TestGeneratorRendersPrompt(t *testing.T) {
	chat := &stubChat{reply: "  the protocol requires a final checkup.  "}
	g := NewGenerator(chat, kb.DefaultSystemPrompt)

	hits := []model.QueryHit{
		{Text: "patients must pass a final checkup", Title: "Discharge Protocol", Source: "vector"},
		{Text: "protocol.md", SourceFileID: "file-2", Source: "relational"},
	}

	answer, err := g.Generate(context.Background(), "what does discharge require?", hits)
	require.NoError(t, err)
	assert.Equal(t, "the protocol requires a final checkup.", answer)

	// 占位符全部替换，上下文带来源标注
	assert.NotContains(t, chat.lastPrompt, "{{context}}")
	assert.NotContains(t, chat.lastPrompt, "{{question}}")
	assert.Contains(t, chat.lastPrompt, "what does discharge require?")
	assert.Contains(t, chat.lastPrompt, "[1] (vector, Discharge Protocol)")
	assert.Contains(t, chat.lastPrompt, "[2] (relational, file-2)")
}

func TestGeneratorNoHits(t *testing.T) {
	chat := &stubChat{reply: "should not be called"}
	g := NewGenerator(chat, kb.DefaultSystemPrompt)

	answer, err := g.Generate(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Contains(t, answer, "No relevant documents")
	assert.Empty(t, chat.lastPrompt)
}

func TestGeneratorErrors(t *testing.T) {
	t.Run("Chat 供应商未配置", func(t *testing.T) {
		g := NewGenerator(nil, kb.DefaultSystemPrompt)
		_, err := g.Generate(context.Background(), "q", []model.QueryHit{{Text: "x"}})
		assert.ErrorIs(t, err, apierrors.ErrKBQueryFailed)
	})

	t.Run("Chat 调用失败", func(t *testing.T) {
		g := NewGenerator(&stubChat{err: fmt.Errorf("llm down")}, kb.DefaultSystemPrompt)
		_, err := g.Generate(context.Background(), "q", []model.QueryHit{{Text: "x"}})
		assert.ErrorIs(t, err, apierrors.ErrKBQueryFailed)
	})
}
