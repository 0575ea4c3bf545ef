package biz

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/kart-io/knowledge-x/internal/model"
	apierrors "github.com/kart-io/knowledge-x/pkg/utils/errors"
)

// Extractor 从摄入请求中提取纯文本。
type Extractor interface {
	Extract(ctx context.Context, req *model.IngestRequest) (string, error)
}

// 直接按文本读取的扩展名。
var textExtensions = map[string]struct{}{
	".txt":      {},
	".md":       {},
	".markdown": {},
	".text":     {},
	".csv":      {},
	".json":     {},
	".log":      {},
}

// TextExtractor 处理纯文本类文件。超限文件与空内容在这一层拦截，
// 不进入分块流程。
type TextExtractor struct {
	maxSize int64
}

var _ Extractor = (*TextExtractor)(nil)

// NewTextExtractor 创建文本提取器，maxSize 为单文件字节上限。
func NewTextExtractor(maxSize int64) *TextExtractor {
	return &TextExtractor{maxSize: maxSize}
}

// Extract 返回请求的纯文本内容。优先使用内联 Content，
// 否则按 FilePath 读取文件。
func (e *TextExtractor) Extract(_ context.Context, req *model.IngestRequest) (string, error) {
	var text string
	switch {
	case req.Content != "":
		if e.maxSize > 0 && int64(len(req.Content)) > e.maxSize {
			return "", apierrors.ErrKBOversizeInput.WithMessagef(
				"content is %d bytes, limit is %d", len(req.Content), e.maxSize)
		}
		text = req.Content
	case req.FilePath != "":
		if err := e.checkExtension(req.FilePath); err != nil {
			return "", err
		}
		info, err := os.Stat(req.FilePath)
		if err != nil {
			return "", apierrors.ErrKBFileNotFound.WithCause(err)
		}
		if e.maxSize > 0 && info.Size() > e.maxSize {
			return "", apierrors.ErrKBOversizeInput.WithMessagef(
				"file %s is %d bytes, limit is %d", req.FilePath, info.Size(), e.maxSize)
		}
		data, err := os.ReadFile(req.FilePath)
		if err != nil {
			return "", apierrors.ErrKBExtractionFailed.WithCause(err)
		}
		text = string(data)
	default:
		return "", apierrors.ErrKBInvalidRequest.WithMessage("either file_path or content is required")
	}

	if strings.TrimSpace(text) == "" {
		return "", apierrors.ErrKBEmptyContent
	}
	return text, nil
}

func (e *TextExtractor) checkExtension(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := textExtensions[ext]; !ok {
		return apierrors.ErrKBExtractionFailed.WithMessagef("unsupported file type %q", ext)
	}
	return nil
}
