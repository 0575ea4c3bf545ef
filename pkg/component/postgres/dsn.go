package postgres

import (
	"fmt"
	"strings"

	postgresopts "github.com/kart-io/knowledge-x/pkg/options/postgres"
)

// BuildDSN 把配置拼成 key=value 形式的 PostgreSQL DSN。
// 密码经过转义，含空格或引号的密码不会破坏 DSN 解析。
func BuildDSN(opts *postgresopts.Options) string {
	if opts == nil {
		return ""
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		opts.Host,
		opts.Port,
		opts.Username,
		escapeDSNValue(opts.Password),
		opts.Database,
		opts.SSLMode,
	)
}

// escapeDSNValue 转义 DSN 的单个值：含空格、单引号或反斜杠时
// 用单引号包裹，内部的单引号双写、反斜杠双写。
func escapeDSNValue(value string) string {
	if value == "" {
		return "''"
	}
	if !strings.ContainsAny(value, " '\\") {
		return value
	}

	escaped := strings.ReplaceAll(value, "'", "''")
	escaped = strings.ReplaceAll(escaped, "\\", "\\\\")
	return "'" + escaped + "'"
}
