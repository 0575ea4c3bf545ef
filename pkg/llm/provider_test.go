package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider 注册表测试用的供应商实现。
type fakeProvider struct {
	name string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeProvider) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeProvider) Chat(_ context.Context, _ []Message) (string, error) {
	return "fake answer", nil
}

func (f *fakeProvider) Generate(_ context.Context, _ string, _ string) (string, error) {
	return "fake answer", nil
}

func TestRegisterAndLookup(t *testing.T) {
	RegisterProvider("registry-test", func(config map[string]any) (Provider, error) {
		name := "registry-test"
		if n, ok := config["name"].(string); ok {
			name = n
		}
		return &fakeProvider{name: name}, nil
	})

	t.Run("配置透传给工厂", func(t *testing.T) {
		p, err := NewEmbeddingProvider("registry-test", map[string]any{"name": "custom"})
		require.NoError(t, err)
		assert.Equal(t, "custom", p.Name())
	})

	t.Run("同一注册项可作为 Chat 供应商", func(t *testing.T) {
		p, err := NewChatProvider("registry-test", nil)
		require.NoError(t, err)

		answer, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
		require.NoError(t, err)
		assert.Equal(t, "fake answer", answer)
	})

	t.Run("未注册名称报错并列出已注册项", func(t *testing.T) {
		_, err := NewEmbeddingProvider("no-such-provider", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "registry-test")
	})

	t.Run("列表包含注册项", func(t *testing.T) {
		assert.Contains(t, ListProviders(), "registry-test")
	})
}
