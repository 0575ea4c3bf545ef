// Package chunker 将文档文本切分为带偏移量的重叠分块。
//
// 偏移量以 Unicode 字符（rune）计，EndOffset 为开区间。
// 切分优先在段落、句子边界收尾，找不到边界时硬切。
package chunker

import "fmt"

// Chunk 是一个带定位信息的文本分块。
type Chunk struct {
	Text        string `json:"text"`
	Index       int    `json:"chunk_index"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// 边界分隔符，按优先级排列。
var separators = []string{"\n\n", ". ", "! ", "? ", "\n", " "}

// Split 将文本切分为重叠分块。
//
// chunkSize 为分块最大字符数，overlap 为相邻分块的重叠字符数。
// 空文本返回空结果；chunkSize 或 overlap 非法时报错。
func Split(text string, chunkSize, overlap int) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("overlap must be non-negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("overlap %d must be smaller than chunk size %d", overlap, chunkSize)
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []Chunk{{Text: text, Index: 0, StartOffset: 0, EndOffset: len(runes)}}, nil
	}

	var chunks []Chunk
	start := 0
	for {
		end := start + chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			// 在窗口后半段回溯寻找自然边界，避免产生过小的分块。
			// 边界收尾后下一块起点必须仍在本块起点之后，否则下一块会被
			// 本块完全包含、实际重叠偏离配置值，此时放弃边界改为硬切。
			if b := findBoundary(runes, start+chunkSize/2, end); b > 0 && b-overlap > start {
				end = b
			}
		}

		chunks = append(chunks, Chunk{
			Text:        string(runes[start:end]),
			Index:       len(chunks),
			StartOffset: start,
			EndOffset:   end,
		})

		if end == len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			// 保证前进，极端参数下退化为逐字符推进
			next = start + 1
		}
		start = next
	}

	return chunks, nil
}

// findBoundary 返回窗口 [min, max) 内优先级最高的边界结束位置。
// 未找到返回 0。
func findBoundary(runes []rune, min, max int) int {
	for _, sep := range separators {
		sepRunes := []rune(sep)
		if p := lastIndexRunes(runes, sepRunes, min, max); p >= 0 {
			return p + len(sepRunes)
		}
	}
	return 0
}

// lastIndexRunes 在 runes[min:max) 中查找 sep 的最后一次出现，
// 要求整个 sep 落在窗口内。未找到返回 -1。
func lastIndexRunes(runes, sep []rune, min, max int) int {
	for i := max - len(sep); i >= min; i-- {
		if i < 0 {
			break
		}
		match := true
		for j := range sep {
			if runes[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
