// Package llm 抽象向量化与问答生成所依赖的模型供应商。
// 知识库的 Embedding 与 Chat 可以指向不同的供应商与模型。
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// EmbeddingProvider 文本向量化供应商。
type EmbeddingProvider interface {
	// Embed 为一批文本生成向量。
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量。
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name 返回供应商名称。
	Name() string
}

// ChatProvider 对话生成供应商。
type ChatProvider interface {
	// Chat 进行多轮对话。
	Chat(ctx context.Context, messages []Message) (string, error)

	// Generate 按提示词单轮生成。
	Generate(ctx context.Context, prompt string, systemPrompt string) (string, error)

	// Name 返回供应商名称。
	Name() string
}

// Provider 同时提供 Embedding 与 Chat 的完整供应商。
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// Message 对话中的一条消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role 消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ProviderFactory 按配置映射构造供应商。
type ProviderFactory func(config map[string]any) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]ProviderFactory)
)

// RegisterProvider 注册供应商工厂，供应商包在 init 中调用。
func RegisterProvider(name string, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// NewEmbeddingProvider 按名称创建 Embedding 供应商。
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	return newProvider(name, config)
}

// NewChatProvider 按名称创建 Chat 供应商。
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	return newProvider(name, config)
}

func newProvider(name string, config map[string]any) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider %q, registered: %v", name, ListProviders())
	}
	return factory(config)
}

// ListProviders 返回已注册的供应商名称，按字典序。
func ListProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
