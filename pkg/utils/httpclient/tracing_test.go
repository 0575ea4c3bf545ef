package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func newTestTracer(t *testing.T) trace.Tracer {
	t.Helper()
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer("httpclient-test")
}

func TestInjectTraceContext(t *testing.T) {
	tracer := newTestTracer(t)
	client := NewClient(10*time.Second, 0)

	t.Run("活跃 Span 注入 traceparent 头", func(t *testing.T) {
		ctx, span := tracer.Start(context.Background(), "embed-call")
		defer span.End()

		req := httptest.NewRequest(http.MethodPost, "http://model-gateway/v1/embeddings", nil)
		req = req.WithContext(ctx)
		client.injectTraceContext(req)

		traceparent := req.Header.Get("traceparent")
		require.NotEmpty(t, traceparent)
		// W3C 格式 version-trace_id-parent_id-flags 至少 55 字符
		assert.GreaterOrEqual(t, len(traceparent), 55)
	})

	t.Run("无 Span 不注入", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "http://model-gateway/health", nil)
		client.injectTraceContext(req)
		assert.Empty(t, req.Header.Get("traceparent"))
	})

	t.Run("nil 请求不崩溃", func(t *testing.T) {
		assert.NotPanics(t, func() { client.injectTraceContext(nil) })
	})
}

func TestDoRequestPropagatesTraceContext(t *testing.T) {
	tracer := newTestTracer(t)

	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, span := tracer.Start(context.Background(), "chat-call")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	client := NewClient(10*time.Second, 0)
	resp, err := client.DoRequest(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	// 下游服务应看到同一条 trace
	require.NotEmpty(t, received)
	assert.GreaterOrEqual(t, len(received), 55)
}
