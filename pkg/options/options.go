// Package options 定义各配置段共用的 IOptions 约定。
// 每个关注点（http、milvus、kb 等）一个子包，命令行入口把它们聚合成
// 分组的 FlagSet。
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join 把前缀用 "." 拼接成 flag 名前缀，如 Join("embedding") + "model"
// 得到 "embedding.model"。无前缀时返回空串。
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}

// IOptions 是每个配置段要实现的最小接口。
type IOptions interface {
	// Validate 校验配置，返回所有发现的问题而不是第一个。
	Validate() []error

	// AddFlags 把本段的 flag 注册到 fs，prefixes 用于命名空间隔离。
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}
