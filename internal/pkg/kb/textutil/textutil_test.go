package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{"相同向量", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"正交向量", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"相反向量", []float32{1, 2}, []float32{-1, -2}, -1.0},
		{"长度不等", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
		{"空向量", []float32{}, []float32{}, 0.0},
		{"零向量", []float32{0, 0}, []float32{1, 2}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestNormalizeCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, NormalizeCosineSimilarity(1.0), 1e-9)
	assert.InDelta(t, 0.5, NormalizeCosineSimilarity(0.0), 1e-9)
	assert.InDelta(t, 0.0, NormalizeCosineSimilarity(-1.0), 1e-9)
}

func TestHashContent(t *testing.T) {
	h1 := HashContent([]byte("hello"))
	h2 := HashContent([]byte("hello"))
	h3 := HashContent([]byte("world"))

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
	assert.Equal(t, h1, HashString("hello"))
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"短于上限", "abc", 10, "abc"},
		{"等于上限", "abc", 3, "abc"},
		{"超过上限", "abcdef", 3, "abc"},
		{"中文按字符截断", "知识库检索", 3, "知识库"},
		{"上限为零", "abc", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TruncateString(tt.input, tt.maxLen))
		})
	}
}

func TestDedupStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, DedupStrings([]string{"a", "b", "a", "c", "b"}))
	assert.Equal(t, []string{"x"}, DedupStrings([]string{"", "x", ""}))
	assert.Nil(t, DedupStrings(nil))
}
