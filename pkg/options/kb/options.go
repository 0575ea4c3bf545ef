// Package kb provides knowledge base pipeline configuration options.
package kb

import (
	"fmt"

	"github.com/kart-io/knowledge-x/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains knowledge base pipeline configuration.
type Options struct {
	// ChunkSize 分块大小（字符数）。
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap 相邻分块重叠字符数。
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK 检索返回的结果数量。
	TopK int `json:"top-k" mapstructure:"top-k"`

	// EmbeddingDim 向量维度。
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// MaxFileSize 单文件大小上限（字节）。
	MaxFileSize int64 `json:"max-file-size" mapstructure:"max-file-size"`

	// DefaultSecurityLevel 元数据缺失时使用的安全级别。
	DefaultSecurityLevel string `json:"default-security-level" mapstructure:"default-security-level"`

	// VectorPriority 合并结果时同分情况下向量结果优先。
	VectorPriority bool `json:"vector-priority" mapstructure:"vector-priority"`

	// Workers 摄入流水线并发 worker 数量。
	Workers int `json:"workers" mapstructure:"workers"`

	// SystemPrompt 回答生成的系统提示词。
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`
}

// DefaultSystemPrompt is the default system prompt for answer generation.
const DefaultSystemPrompt = `You are a helpful assistant that answers questions based on the provided context.
Use the following context to answer the question. If you cannot find the answer in the context, say so.
Always cite the source documents when providing information.

Context:
{{context}}

Question: {{question}}

Answer:`

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:            500,
		ChunkOverlap:         50,
		TopK:                 5,
		EmbeddingDim:         1536,
		MaxFileSize:          10 << 20, // 10 MiB
		DefaultSecurityLevel: "internal",
		VectorPriority:       true,
		Workers:              8,
		SystemPrompt:         DefaultSystemPrompt,
	}
}

// AddFlags adds flags for knowledge base options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.IntVar(&o.ChunkSize, p+"kb.chunk-size", o.ChunkSize, "Size of text chunks in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"kb.chunk-overlap", o.ChunkOverlap, "Overlap between adjacent chunks in characters.")
	fs.IntVar(&o.TopK, p+"kb.top-k", o.TopK, "Number of results from retrieval.")
	fs.IntVar(&o.EmbeddingDim, p+"kb.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.Int64Var(&o.MaxFileSize, p+"kb.max-file-size", o.MaxFileSize, "Maximum ingestable file size in bytes.")
	fs.StringVar(&o.DefaultSecurityLevel, p+"kb.default-security-level", o.DefaultSecurityLevel, "Security level applied when metadata omits one.")
	fs.BoolVar(&o.VectorPriority, p+"kb.vector-priority", o.VectorPriority, "Prefer vector results over relational results on equal score.")
	fs.IntVar(&o.Workers, p+"kb.workers", o.Workers, "Number of concurrent ingestion workers.")
}

// Validate validates the knowledge base options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("chunk-overlap must not be negative"))
	}
	if o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk-overlap must be smaller than chunk-size"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding-dim must be positive"))
	}
	if o.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("max-file-size must be positive"))
	}
	if o.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive"))
	}
	return errs
}

// Complete completes the knowledge base options with defaults.
func (o *Options) Complete() error {
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	return nil
}
