// Package milvusopts 定义 Milvus 向量库的连接配置。
package milvusopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/knowledge-x/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options Milvus 客户端配置。
type Options struct {
	// Enabled 是否启用 Milvus 后端。
	// 关闭时服务退回内存向量库，适合本地开发和测试。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Address 服务地址（host:port）。
	Address string `json:"address" mapstructure:"address"`

	// Database 数据库名。
	Database string `json:"database" mapstructure:"database"`

	// Username 认证用户名。
	Username string `json:"username" mapstructure:"username"`

	// Password 认证密码。
	Password string `json:"password" mapstructure:"password"`

	// Timeout 连接和单次操作的超时。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// PoolSize 连接池大小。
	PoolSize int `json:"pool-size" mapstructure:"pool-size"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		Enabled:  true,
		Address:  "localhost:19530",
		Database: "default",
		Timeout:  30 * time.Second,
		PoolSize: 10,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, options.Join(prefixes...)+"milvus.enabled", o.Enabled, "Enable the Milvus vector store backend.")
	fs.StringVar(&o.Address, options.Join(prefixes...)+"milvus.address", o.Address, "Milvus server address (host:port).")
	fs.StringVar(&o.Database, options.Join(prefixes...)+"milvus.database", o.Database, "Milvus database name.")
	fs.StringVar(&o.Username, options.Join(prefixes...)+"milvus.username", o.Username, "Milvus username for authentication.")
	fs.StringVar(&o.Password, options.Join(prefixes...)+"milvus.password", o.Password, "Milvus password for authentication.")
	fs.DurationVar(&o.Timeout, options.Join(prefixes...)+"milvus.timeout", o.Timeout, "Connection and operation timeout.")
	fs.IntVar(&o.PoolSize, options.Join(prefixes...)+"milvus.pool-size", o.PoolSize, "Connection pool size.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Enabled {
		if o.Address == "" {
			errs = append(errs, fmt.Errorf("milvus address is required"))
		}
		if o.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("milvus timeout must be positive"))
		}
	}
	return errs
}
