// Package llm 定义模型供应商配置。服务有两份实例：
// embedding 段给向量化供应商，chat 段给问答生成供应商，
// 两段可以指向不同的供应商和模型。
package llm

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/knowledge-x/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 单个模型供应商的配置。
type ProviderOptions struct {
	// Provider 供应商名称，对应 llm.RegisterProvider 注册的工厂。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥，openai 供应商必填。
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Model 模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 单次请求超时。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 客户端层的最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization 组织 ID，openai 可选。
	Organization string `json:"organization" mapstructure:"organization"`
}

// NewProviderOptions 创建默认配置，指向本地 Ollama。
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// NewEmbeddingOptions 创建向量化供应商的默认配置。
func NewEmbeddingOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "nomic-embed-text"
	return opts
}

// NewChatOptions 创建问答供应商的默认配置。
func NewChatOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "deepseek-r1:7b"
	return opts
}

// ToConfigMap 转成供应商工厂接受的配置 map。
// embed_model 和 chat_model 都填 Model，工厂只取自己关心的键。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"embed_model":  o.Model,
		"chat_model":   o.Model,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"organization": o.Organization,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
// Callers pass a prefix such as "embedding" or "chat" to namespace the flags.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (ollama, openai).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "LLM model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "LLM request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "LLM maximum number of retries.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "LLM organization ID (optional).")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("base-url is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("api-key is required for openai provider"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	return errs
}

// Complete completes the LLM provider options with defaults.
func (o *ProviderOptions) Complete() error {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	return nil
}
