// Package store 提供知识库的向量存储与关系存储实现。
package store
