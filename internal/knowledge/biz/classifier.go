package biz

import (
	"context"
	"regexp"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/knowledge-x/internal/model"
	"github.com/kart-io/knowledge-x/pkg/llm"
)

// RouteRule 一条查询路由规则。关键字为小写子串匹配，
// 正则与关键字任一命中即匹配。
type RouteRule struct {
	Route    model.RouteKind
	Keywords []string
	Patterns []*regexp.Regexp
}

func (r *RouteRule) matches(question string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(question, kw) {
			return true
		}
	}
	for _, p := range r.Patterns {
		if p.MatchString(question) {
			return true
		}
	}
	return false
}

// DefaultRouteRules 返回默认路由规则，按序求值，先命中者生效。
// 统计口吻的问题走关系库，内容口吻的问题走向量检索，
// 其余走混合路由。
func DefaultRouteRules() []RouteRule {
	return []RouteRule{
		{
			Route: model.RouteRelational,
			Keywords: []string{
				"how many", "count of", "number of", "list files", "list all files",
				"recent uploads", "latest upload", "uploaded by",
				"多少", "统计", "列出文件", "最近上传",
			},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`^(count|how many)\b`),
			},
		},
		{
			Route: model.RouteVector,
			Keywords: []string{
				"what is", "what are", "how do", "how to", "why", "explain",
				"describe", "summarize", "tell me about",
				"是什么", "如何", "为什么", "总结", "介绍",
			},
		},
	}
}

// classifyPrompt LLM 兜底分类的提示词，要求只回答一个词。
const classifyPrompt = `Classify the following knowledge-base question into exactly one category.
Answer with a single word: "relational" if the question asks about file counts,
listings or upload statistics; "vector" if it asks about document content;
"hybrid" if it needs both.

Question: %s

Category:`

// Classifier 将问题分类到查询路由。规则命中即返回；
// 未命中且配置了 Chat 供应商时走 LLM 兜底，否则回退混合路由。
type Classifier struct {
	rules []RouteRule
	chat  llm.ChatProvider
}

// NewClassifier 创建查询分类器。chat 可为 nil。
func NewClassifier(rules []RouteRule, chat llm.ChatProvider) *Classifier {
	if rules == nil {
		rules = DefaultRouteRules()
	}
	return &Classifier{rules: rules, chat: chat}
}

// Classify 返回问题应走的查询路由。
func (c *Classifier) Classify(ctx context.Context, question string) model.RouteKind {
	q := strings.ToLower(strings.TrimSpace(question))

	for i := range c.rules {
		if c.rules[i].matches(q) {
			return c.rules[i].Route
		}
	}

	if c.chat != nil {
		if route, ok := c.classifyByLLM(ctx, question); ok {
			return route
		}
	}
	return model.RouteHybrid
}

func (c *Classifier) classifyByLLM(ctx context.Context, question string) (model.RouteKind, bool) {
	reply, err := c.chat.Generate(ctx, sprintfClassify(question), "")
	if err != nil {
		logger.Warnw("llm classification failed, falling back to hybrid", "error", err.Error())
		return "", false
	}

	answer := strings.ToLower(reply)
	switch {
	case strings.Contains(answer, "relational"):
		return model.RouteRelational, true
	case strings.Contains(answer, "vector"):
		return model.RouteVector, true
	case strings.Contains(answer, "hybrid"):
		return model.RouteHybrid, true
	}
	logger.Warnw("llm classification returned unknown category", "reply", reply)
	return "", false
}

func sprintfClassify(question string) string {
	return strings.Replace(classifyPrompt, "%s", question, 1)
}
