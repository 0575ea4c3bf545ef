// Package httpclient 是模型供应商共用的 HTTP 客户端：
// 5xx 和网络错误按线性退避重试，并自动向下游传播 W3C Trace Context。
package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	jsonutil "github.com/kart-io/knowledge-x/pkg/utils/json"
)

const retryBaseDelay = 500 * time.Millisecond

// Client 包装 http.Client，附带重试与追踪注入。
type Client struct {
	httpClient *http.Client
	maxRetries int
}

// NewClient 创建客户端。maxRetries 为 0 时只发一次请求。
func NewClient(timeout time.Duration, maxRetries int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

// DoRequest 发送请求。5xx 响应和传输层错误会重试，4xx 原样返回。
// 请求体会先读入内存以便重试时重发，模型调用的请求体都很小。
func (c *Client) DoRequest(req *http.Request) (*http.Response, error) {
	c.injectTraceContext(req)

	var rewind func() io.ReadCloser
	if req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("读取请求体失败: %w", err)
		}
		_ = req.Body.Close()
		rewind = func() io.ReadCloser { return io.NopCloser(bytes.NewReader(raw)) }
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if rewind != nil {
			req.Body = rewind()
		}

		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode >= http.StatusInternalServerError:
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("server error, status code %d", resp.StatusCode)
		default:
			return resp, nil
		}

		if attempt < c.maxRetries {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(time.Duration(attempt+1) * retryBaseDelay):
			}
		}
	}
	return nil, lastErr
}

// DoJSON 发送请求并把响应体解码到 v，状态码 >= 400 视为失败。
func (c *Client) DoJSON(req *http.Request, v interface{}) error {
	resp, err := c.DoRequest(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, string(body))
	}

	if v != nil {
		if err := jsonutil.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("解码响应失败: %w", err)
		}
	}
	return nil
}

// injectTraceContext 把当前 Span 的追踪上下文注入请求头。
// 无 Span、无传播器或请求为 nil 时静默跳过，不影响请求发送。
func (c *Client) injectTraceContext(req *http.Request) {
	if req == nil || req.Context() == nil {
		return
	}
	propagator := otel.GetTextMapPropagator()
	if propagator == nil {
		return
	}
	propagator.Inject(req.Context(), propagation.HeaderCarrier(req.Header))
}
