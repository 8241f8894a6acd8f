package models

import "errors"

var (
	// ErrUnsupportedFormat 不支持的文件格式
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrInvalidConfiguration 切分参数非法
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrEmbeddingFailure 向量化调用失败
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrEmptyInput 规范化后没有任何内容
	ErrEmptyInput = errors.New("empty input")
)
