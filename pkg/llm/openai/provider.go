// Package openai 对接 OpenAI 及兼容其 API 的推理服务
// （Azure OpenAI、LocalAI 等），base_url 可指向任意兼容端点。
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/knowledge-x/pkg/llm"
	"github.com/kart-io/knowledge-x/pkg/utils/httpclient"
	jsonutil "github.com/kart-io/knowledge-x/pkg/utils/json"
)

const ProviderName = "openai"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config OpenAI 供应商配置。生成参数为零值时不随请求下发，
// 由服务端取默认值。
type Config struct {
	// BaseURL API 基础地址，可指向兼容服务
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	// APIKey API 密钥，必填
	APIKey string `json:"api_key" mapstructure:"api_key"`
	// EmbedModel 向量化模型
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`
	// ChatModel 对话模型
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`
	// Timeout 请求超时
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	// MaxRetries 最大重试次数
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
	// Organization 组织 ID，可选
	Organization string `json:"organization" mapstructure:"organization"`

	// Temperature 随机性，0.0-2.0
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	// TopP 核采样阈值，0.0-1.0
	TopP float64 `json:"top_p" mapstructure:"top_p"`
	// MaxTokens 最大生成 token 数
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`
	// FrequencyPenalty 频率惩罚，-2.0-2.0
	FrequencyPenalty float64 `json:"frequency_penalty" mapstructure:"frequency_penalty"`
	// PresencePenalty 存在惩罚，-2.0-2.0
	PresencePenalty float64 `json:"presence_penalty" mapstructure:"presence_penalty"`
	// Stop 停止序列
	Stop []string `json:"stop" mapstructure:"stop"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		EmbedModel: "text-embedding-3-small",
		ChatModel:  "gpt-4o-mini",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// Provider OpenAI 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider 从配置 map 创建供应商。api_key 缺失时报错。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v > 0 {
		cfg.MaxRetries = v
	}
	if v, ok := configMap["organization"].(string); ok && v != "" {
		cfg.Organization = v
	}
	if v, ok := configMap["temperature"].(float64); ok {
		cfg.Temperature = v
	}
	if v, ok := configMap["top_p"].(float64); ok {
		cfg.TopP = v
	}
	if v, ok := configMap["max_tokens"].(int); ok {
		cfg.MaxTokens = v
	}
	if v, ok := configMap["frequency_penalty"].(float64); ok {
		cfg.FrequencyPenalty = v
	}
	if v, ok := configMap["presence_penalty"].(float64); ok {
		cfg.PresencePenalty = v
	}
	if v, ok := configMap["stop"]; ok {
		// 配置文件解析出 []interface{}，代码直传是 []string
		switch val := v.(type) {
		case []string:
			cfg.Stop = val
		case []interface{}:
			for _, item := range val {
				if s, ok := item.(string); ok {
					cfg.Stop = append(cfg.Stop, s)
				}
			}
		}
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api_key is required")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) postJSON(ctx context.Context, path string, reqBody, respBody any) error {
	body, err := jsonutil.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	if p.config.Organization != "" {
		req.Header.Set("OpenAI-Organization", p.config.Organization)
	}

	return p.client.DoJSON(req, respBody)
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed 为一批文本生成向量，结果按请求顺序排列。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	err := p.postJSON(ctx, "/embeddings", embeddingRequest{
		Model: p.config.EmbedModel,
		Input: texts,
	}, &resp)
	if err != nil {
		return nil, err
	}

	// 服务端可能乱序返回，按 index 归位
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(embeddings) {
			embeddings[d.Index] = d.Embedding
		}
	}
	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("未返回向量嵌入")
	}
	return embeddings[0], nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Stream           bool          `json:"stream"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	Temperature      float64       `json:"temperature,omitempty"`
	TopP             float64       `json:"top_p,omitempty"`
	FrequencyPenalty float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64       `json:"presence_penalty,omitempty"`
	Stop             []string      `json:"stop,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// buildChatRequest 组装对话请求并附上配置的生成参数。
func (p *Provider) buildChatRequest(messages []llm.Message) chatRequest {
	chatMessages := make([]chatMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = chatMessage{Role: string(msg.Role), Content: msg.Content}
	}

	req := chatRequest{
		Model:    p.config.ChatModel,
		Messages: chatMessages,
		Stream:   false,
		Stop:     p.config.Stop,
	}
	if p.config.MaxTokens > 0 {
		req.MaxTokens = p.config.MaxTokens
	}
	if p.config.Temperature > 0 {
		req.Temperature = p.config.Temperature
	}
	if p.config.TopP > 0 {
		req.TopP = p.config.TopP
	}
	if p.config.FrequencyPenalty != 0 {
		req.FrequencyPenalty = p.config.FrequencyPenalty
	}
	if p.config.PresencePenalty != 0 {
		req.PresencePenalty = p.config.PresencePenalty
	}
	return req
}

func (p *Provider) complete(ctx context.Context, messages []llm.Message) (string, error) {
	var resp chatResponse
	if err := p.postJSON(ctx, "/chat/completions", p.buildChatRequest(messages), &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("未返回响应内容")
	}
	return resp.Choices[0].Message.Content, nil
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return p.complete(ctx, messages)
}

// Generate 按提示词单轮生成，systemPrompt 为空时省略 system 消息。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	var messages []llm.Message
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	return p.complete(ctx, messages)
}
