package response

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/knowledge-x/pkg/utils/errors"
)

func TestSuccess(t *testing.T) {
	resp := Success(map[string]int{"chunks_created": 12})
	defer Release(resp)

	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "success", resp.Message)
	assert.Equal(t, http.StatusOK, resp.HTTPStatus())
	assert.Equal(t, map[string]int{"chunks_created": 12}, resp.Data)
}

func TestErr(t *testing.T) {
	t.Run("携带 Errno 的错误码和状态码", func(t *testing.T) {
		resp := Err(errors.ErrKBCollectionNotFound)
		defer Release(resp)

		assert.Equal(t, errors.ErrKBCollectionNotFound.Code, resp.Code)
		assert.Equal(t, http.StatusNotFound, resp.HTTPStatus())
		assert.Nil(t, resp.Data)
	})

	t.Run("nil Errno 视为成功", func(t *testing.T) {
		resp := Err(nil)
		defer Release(resp)

		assert.Equal(t, 0, resp.Code)
		assert.Equal(t, http.StatusOK, resp.HTTPStatus())
	})
}

func TestHTTPStatusFallback(t *testing.T) {
	t.Run("未注册错误码按类别推断", func(t *testing.T) {
		// CategoryRequest 段里挑一个没注册过的码
		code := errors.MakeCode(errors.ServiceKnowledge, errors.CategoryRequest, 999)
		resp := &Response{Code: code, Message: "bad input"}
		assert.Equal(t, http.StatusBadRequest, resp.HTTPStatus())
	})

	t.Run("已设置的 HTTPCode 优先", func(t *testing.T) {
		resp := &Response{Code: 1, HTTPCode: http.StatusTeapot}
		assert.Equal(t, http.StatusTeapot, resp.HTTPStatus())
	})
}

func TestReleaseResetsFields(t *testing.T) {
	resp := Acquire()
	resp.Code = 404
	resp.HTTPCode = http.StatusNotFound
	resp.Message = "collection not found"
	resp.Data = "payload"
	resp.RequestID = "req-123"
	resp.Timestamp = 123456789

	Release(resp)

	assert.Zero(t, resp.Code)
	assert.Zero(t, resp.HTTPCode)
	assert.Empty(t, resp.Message)
	assert.Nil(t, resp.Data)
	assert.Empty(t, resp.RequestID)
	assert.Zero(t, resp.Timestamp)

	require.NotPanics(t, func() { Release(nil) })
}

func TestPoolConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for g := 0; g < 32; g++ {
		wg.Add(1)
		go func(code int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				resp := Success(code)
				_ = resp.HTTPStatus()
				Release(resp)
			}
		}(g)
	}
	wg.Wait()
}
