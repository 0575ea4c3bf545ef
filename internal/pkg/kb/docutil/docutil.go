// Package docutil 提供文档文件处理相关的工具函数。
package docutil

import (
	"os"
	"path/filepath"
	"strings"
)

// FindFiles 在目录中递归查找匹配指定扩展名的文件。
// extensions 是文件扩展名列表，如 []string{".md", ".txt"}。
func FindFiles(dir string, extensions []string) ([]string, error) {
	var files []string
	extMap := make(map[string]bool)
	for _, ext := range extensions {
		extMap[strings.ToLower(ext)] = true
	}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			ext := strings.ToLower(filepath.Ext(path))
			if len(extMap) == 0 || extMap[ext] {
				files = append(files, path)
			}
		}
		return nil
	})

	return files, err
}

// ReadFileContent 读取文件内容。
func ReadFileContent(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// FileExists 检查文件是否存在。
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirExists 检查目录是否存在。
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
