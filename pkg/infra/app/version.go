package app

import "github.com/kart-io/version"

// GetVersion 返回构建时注入的版本号，供日志初始字段使用。
func GetVersion() string {
	return version.Get().GitVersion
}
