package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/knowledge-x/internal/model"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(1536)

	names := r.Names()
	assert.Equal(t, []string{"kb_documents", "kb_images", "kb_audio", "kb_video"}, names)

	for _, d := range r.List() {
		assert.Equal(t, 1536, d.Dimension)
		assert.NotEmpty(t, d.Agentic.Purpose)
		assert.NotEmpty(t, d.Agentic.BestFor)
	}

	// 图像集合默认关闭
	enabled := r.Enabled()
	require.Len(t, enabled, 3)
	for _, d := range enabled {
		assert.NotEqual(t, "kb_images", d.Name)
	}
}

func TestRegistryForContentType(t *testing.T) {
	r := DefaultRegistry(8)

	tests := []struct {
		name string
		ct   model.ContentType
		want string
	}{
		{"文档", model.ContentDocument, "kb_documents"},
		{"结构化数据共用文档集合", model.ContentStructured, "kb_documents"},
		{"图像", model.ContentImage, "kb_images"},
		{"音频", model.ContentAudio, "kb_audio"},
		{"视频", model.ContentVideo, "kb_video"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := r.ForContentType(tt.ct)
			require.True(t, ok)
			assert.Equal(t, tt.want, d.Name)
		})
	}

	_, ok := r.ForContentType("hologram")
	assert.False(t, ok)
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]*CollectionDescriptor{
		{Name: "a", ContentTypes: []model.ContentType{model.ContentDocument}, Dimension: 8},
		{Name: "a", ContentTypes: []model.ContentType{model.ContentImage}, Dimension: 8},
	})
	assert.Error(t, err)

	// 同一内容形态只能归属一个集合
	_, err = NewRegistry([]*CollectionDescriptor{
		{Name: "a", ContentTypes: []model.ContentType{model.ContentDocument}, Dimension: 8},
		{Name: "b", ContentTypes: []model.ContentType{model.ContentDocument}, Dimension: 8},
	})
	assert.Error(t, err)
}

func TestNewRegistryValidatesDescriptors(t *testing.T) {
	_, err := NewRegistry([]*CollectionDescriptor{
		{Name: "", ContentTypes: []model.ContentType{model.ContentDocument}, Dimension: 8},
	})
	assert.Error(t, err)

	_, err = NewRegistry([]*CollectionDescriptor{
		{Name: "a", ContentTypes: []model.ContentType{"bogus"}, Dimension: 8},
	})
	assert.Error(t, err)

	_, err = NewRegistry([]*CollectionDescriptor{
		{Name: "a", ContentTypes: []model.ContentType{model.ContentDocument}, Dimension: 0},
	})
	assert.Error(t, err)

	_, err = NewRegistry([]*CollectionDescriptor{
		{Name: "a", Dimension: 8},
	})
	assert.Error(t, err)
}
