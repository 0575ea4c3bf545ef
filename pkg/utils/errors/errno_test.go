package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeCode(t *testing.T) {
	tests := []struct {
		name     string
		service  int
		category int
		sequence int
		want     int
	}{
		{"通用请求错误", ServiceCommon, CategoryRequest, 1, 1001},
		{"知识库输入错误", ServiceKnowledge, CategoryRequest, 2, 2101002},
		{"知识库网络错误", ServiceKnowledge, CategoryNetwork, 2, 2110002},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MakeCode(tt.service, tt.category, tt.sequence))

			service, category, sequence := ParseCode(tt.want)
			assert.Equal(t, tt.service, service)
			assert.Equal(t, tt.category, category)
			assert.Equal(t, tt.sequence, sequence)
		})
	}
}

func TestErrnoWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ErrKBStoreUnavailable.WithCause(cause)

	// WithCause 不修改原始 Errno
	require.NotSame(t, ErrKBStoreUnavailable, err)
	assert.Equal(t, ErrKBStoreUnavailable.Code, err.Code)
	assert.ErrorIs(t, err, ErrKBStoreUnavailable)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestErrnoIsMatchesByCode(t *testing.T) {
	wrapped := ErrKBInvalidFilter.WithMessage("unknown field: foo")
	assert.True(t, errors.Is(wrapped, ErrKBInvalidFilter))
	assert.False(t, errors.Is(wrapped, ErrKBSchemaConflict))
}

func TestHTTPMapping(t *testing.T) {
	assert.Equal(t, 400, ErrKBOversizeInput.HTTPStatus())
	assert.Equal(t, 409, ErrKBDuplicateChunk.HTTPStatus())
	assert.Equal(t, 503, ErrKBNoBackendAvailable.HTTPStatus())
	assert.Equal(t, 504, ErrKBQueryTimeout.HTTPStatus())
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	e := FromError(ErrKBEmbeddingFailed)
	assert.Equal(t, ErrKBEmbeddingFailed.Code, e.Code)

	// 包装后的 Errno 也能还原
	wrapped := fmt.Errorf("ingest chunk 3: %w", ErrKBEmbeddingFailed)
	assert.Equal(t, ErrKBEmbeddingFailed.Code, FromError(wrapped).Code)

	plain := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	assert.Panics(t, func() {
		Register(New(ErrKBInvalidRequest.Code, 400, 3, "dup", ""))
	})
}

func TestCategoryClassification(t *testing.T) {
	assert.True(t, IsClientError(ErrKBInvalidFilter.Code))
	assert.True(t, IsClientError(ErrKBSchemaConflict.Code))
	assert.True(t, IsServerError(ErrKBStoreUnavailable.Code))
	assert.False(t, IsServerError(ErrKBEmptyContent.Code))
}
