// Package biz 实现知识库的业务逻辑：摄入编排、元数据整合、
// 查询分类与路由、回答生成与查询缓存。
package biz
