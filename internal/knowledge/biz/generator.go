package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/knowledge-x/internal/model"
	"github.com/kart-io/knowledge-x/pkg/llm"
	apierrors "github.com/kart-io/knowledge-x/pkg/utils/errors"
)

// Generator 基于检索结果生成回答。提示词模板中的
// {{context}} 与 {{question}} 占位符在生成前替换。
type Generator struct {
	chat   llm.ChatProvider
	prompt string
}

// NewGenerator 创建回答生成器。
func NewGenerator(chat llm.ChatProvider, prompt string) *Generator {
	return &Generator{chat: chat, prompt: prompt}
}

// Generate 根据问题与命中结果生成回答。无命中时直接说明未找到。
func (g *Generator) Generate(ctx context.Context, question string, hits []model.QueryHit) (string, error) {
	if g.chat == nil {
		return "", apierrors.ErrKBQueryFailed.WithMessage("chat provider not configured")
	}
	if len(hits) == 0 {
		return "No relevant documents were found for this question.", nil
	}

	rendered := strings.ReplaceAll(g.prompt, "{{context}}", buildContextBlock(hits))
	rendered = strings.ReplaceAll(rendered, "{{question}}", question)

	answer, err := g.chat.Generate(ctx, rendered, "")
	if err != nil {
		return "", apierrors.ErrKBQueryFailed.WithCause(err)
	}
	return strings.TrimSpace(answer), nil
}

// buildContextBlock 将命中结果渲染为带来源标注的上下文段落。
func buildContextBlock(hits []model.QueryHit) string {
	var b strings.Builder
	for i, h := range hits {
		source := h.Title
		if source == "" {
			source = h.SourceFileID
		}
		fmt.Fprintf(&b, "[%d] (%s, %s) %s\n\n", i+1, h.Source, source, h.Text)
	}
	return strings.TrimSpace(b.String())
}
