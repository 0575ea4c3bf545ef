// Package options contains flags and options for initializing the knowledge server.
package options

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/knowledge-x/internal/knowledge"
	appopts "github.com/kart-io/knowledge-x/pkg/options/app"
	cacheopts "github.com/kart-io/knowledge-x/pkg/options/cache"
	kbopts "github.com/kart-io/knowledge-x/pkg/options/kb"
	llmopts "github.com/kart-io/knowledge-x/pkg/options/llm"
	logopts "github.com/kart-io/knowledge-x/pkg/options/logger"
	milvusopts "github.com/kart-io/knowledge-x/pkg/options/milvus"
	postgresopts "github.com/kart-io/knowledge-x/pkg/options/postgres"
	httpopts "github.com/kart-io/knowledge-x/pkg/options/server/http"
)

var _ appopts.CliOptions = (*ServerOptions)(nil)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// PostgresOptions contains the file registry database configuration.
	PostgresOptions *postgresopts.Options `json:"postgres" mapstructure:"postgres"`

	// MilvusOptions contains Milvus database configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// KBOptions contains knowledge base pipeline configuration.
	KBOptions *kbopts.Options `json:"kb" mapstructure:"kb"`

	// CacheOptions contains query cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		PostgresOptions:  postgresopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		KBOptions:        kbopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
		ShutdownTimeout:  30 * time.Second,
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss appopts.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.PostgresOptions.AddFlags(fss.FlagSet("postgres"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat")
	o.KBOptions.AddFlags(fss.FlagSet("kb"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))

	// misc flags
	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.LogOptions.Complete(); err != nil {
		return err
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.KBOptions.Complete(); err != nil {
		return fmt.Errorf("kb: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate())
	errs = append(errs, o.PostgresOptions.Validate()...)
	errs = append(errs, o.MilvusOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.KBOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)

	return utilerrors.NewAggregate(errs)
}

// Config builds a knowledge.Config based on ServerOptions.
func (o *ServerOptions) Config() (*knowledge.Config, error) {
	return &knowledge.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		PostgresOptions:  o.PostgresOptions,
		MilvusOptions:    o.MilvusOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		KBOptions:        o.KBOptions,
		CacheOptions:     o.CacheOptions,
		ShutdownTimeout:  o.ShutdownTimeout,
	}, nil
}
