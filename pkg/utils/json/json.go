// Package json 统一 JSON 编解码入口。amd64/arm64 上走 sonic，
// 其余架构回退标准库，调用方不感知差异。
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

var (
	// Marshal 将 v 编码为 JSON。
	Marshal func(v interface{}) ([]byte, error)

	// Unmarshal 将 JSON 解码到 v。
	Unmarshal func(data []byte, v interface{}) error

	// NewEncoder 创建面向 w 的流式编码器。
	NewEncoder func(w io.Writer) Encoder

	// NewDecoder 创建面向 r 的流式解码器。
	NewDecoder func(r io.Reader) Decoder

	usingSonic bool
)

// Encoder 流式 JSON 编码器。
type Encoder interface {
	Encode(v interface{}) error
}

// Decoder 流式 JSON 解码器。
type Decoder interface {
	Decode(v interface{}) error
}

func init() {
	// sonic 只支持 amd64/arm64
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		api := sonic.ConfigDefault
		Marshal = api.Marshal
		Unmarshal = api.Unmarshal
		NewEncoder = func(w io.Writer) Encoder { return api.NewEncoder(w) }
		NewDecoder = func(r io.Reader) Decoder { return api.NewDecoder(r) }
		usingSonic = true
		return
	}

	Marshal = stdjson.Marshal
	Unmarshal = stdjson.Unmarshal
	NewEncoder = func(w io.Writer) Encoder { return stdjson.NewEncoder(w) }
	NewDecoder = func(r io.Reader) Decoder { return stdjson.NewDecoder(r) }
}

// IsUsingSonic 报告当前是否由 sonic 承担编解码。
func IsUsingSonic() bool {
	return usingSonic
}
