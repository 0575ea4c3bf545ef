package biz

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/knowledge-x/internal/model"
	"github.com/kart-io/knowledge-x/pkg/llm"
)

// stubChat 返回固定回复的 Chat 供应商。
type stubChat struct {
	reply      string
	err        error
	lastPrompt string
}

func (s *stubChat) Chat(_ context.Context, _ []llm.Message) (string, error) {
	return s.reply, s.err
}

func (s *stubChat) Generate(_ context.Context, prompt, _ string) (string, error) {
	s.lastPrompt = prompt
	return s.reply, s.err
}

func (s *stubChat) Name() string { return "stub-chat" }

func TestClassifierRules(t *testing.T) {
	c := NewClassifier(nil, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		question string
		want     model.RouteKind
	}{
		{"数量统计走关系库", "How many files did the finance team upload?", model.RouteRelational},
		{"Count 开头走关系库", "Count documents in cardiology", model.RouteRelational},
		{"列出文件走关系库", "请列出文件清单", model.RouteRelational},
		{"内容问题走向量", "What is the discharge protocol for cardiology?", model.RouteVector},
		{"总结类走向量", "Summarize the onboarding guide", model.RouteVector},
		{"中文内容问题走向量", "出院流程是什么", model.RouteVector},
		{"未命中规则走混合", "cardiology discharge checklist review", model.RouteHybrid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(ctx, tt.question))
		})
	}
}

func TestClassifierLLMFallback(t *testing.T) {
	ctx := context.Background()
	question := "cardiology discharge checklist review"

	t.Run("LLM 返回分类结果", func(t *testing.T) {
		chat := &stubChat{reply: "relational"}
		c := NewClassifier(nil, chat)
		assert.Equal(t, model.RouteRelational, c.Classify(ctx, question))
		assert.Contains(t, chat.lastPrompt, question)
	})

	t.Run("LLM 出错回退混合路由", func(t *testing.T) {
		c := NewClassifier(nil, &stubChat{err: fmt.Errorf("backend down")})
		assert.Equal(t, model.RouteHybrid, c.Classify(ctx, question))
	})

	t.Run("LLM 返回无法解析的内容回退混合路由", func(t *testing.T) {
		c := NewClassifier(nil, &stubChat{reply: "banana"})
		assert.Equal(t, model.RouteHybrid, c.Classify(ctx, question))
	})

	t.Run("规则命中时不调用 LLM", func(t *testing.T) {
		chat := &stubChat{reply: "vector"}
		c := NewClassifier(nil, chat)
		assert.Equal(t, model.RouteRelational, c.Classify(ctx, "how many files are stored?"))
		assert.Empty(t, chat.lastPrompt)
	})
}
