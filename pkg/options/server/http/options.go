// Package http 定义知识服务 HTTP 监听配置。
package http

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/knowledge-x/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options HTTP 服务配置。
type Options struct {
	// Addr 监听地址。
	Addr string `json:"addr" mapstructure:"addr"`

	// ReadTimeout 读取完整请求的超时。
	ReadTimeout time.Duration `json:"read-timeout" mapstructure:"read-timeout"`

	// WriteTimeout 写响应的超时。摄入接口同步返回 202，
	// 真正的处理在后台 worker 里，不受这个超时约束。
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`

	// IdleTimeout Keep-Alive 连接的空闲超时。
	IdleTimeout time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
}

// NewOptions 创建默认配置，监听 :8084。
func NewOptions() *Options {
	return &Options{
		Addr:         ":8084",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// AddFlags adds flags for HTTP options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, options.Join(prefixes...)+"http.addr", o.Addr, "Specify the HTTP server bind address and port.")
	fs.DurationVar(&o.ReadTimeout, options.Join(prefixes...)+"http.read-timeout", o.ReadTimeout, "Timeout for reading the entire request.")
	fs.DurationVar(&o.WriteTimeout, options.Join(prefixes...)+"http.write-timeout", o.WriteTimeout, "Timeout before timing out writes of the response.")
	fs.DurationVar(&o.IdleTimeout, options.Join(prefixes...)+"http.idle-timeout", o.IdleTimeout, "Maximum amount of time to wait for the next request.")
}

// Validate validates the HTTP options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Addr == "" {
		errs = append(errs, fmt.Errorf("http.addr cannot be empty"))
	}
	if o.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.read-timeout must be positive"))
	}
	if o.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.write-timeout must be positive"))
	}
	if o.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.idle-timeout must be positive"))
	}
	return errs
}

// Complete completes the HTTP options with defaults.
func (o *Options) Complete() error {
	return nil
}
