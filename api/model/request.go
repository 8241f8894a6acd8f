package model

import (
	"mime/multipart"
)

// IngestRequest 文档切分请求
// 除文件外的字段均可省略，省略时使用服务端配置
type IngestRequest struct {
	File            *multipart.FileHeader `form:"file" binding:"required"`                         // 文件对象
	Strategy        string                `form:"strategy" binding:"omitempty"`                    // fixed、recursive、semantic
	LengthUnit      string                `form:"length_unit" binding:"omitempty"`                 // chars 或 tokens
	ChunkSize       *int                  `form:"chunk_size" binding:"omitempty"`                  // 固定/递归切分块大小
	ChunkOverlap    *int                  `form:"chunk_overlap" binding:"omitempty"`               // 固定/递归切分重叠
	MinChunkSize    *int                  `form:"min_chunk_size" binding:"omitempty"`              // 语义切分最小块
	MaxChunkSize    *int                  `form:"max_chunk_size" binding:"omitempty"`              // 语义切分最大块
	ThresholdType   string                `form:"breakpoint_threshold_type" binding:"omitempty"`   // 断点阈值类型
	ThresholdAmount *float64              `form:"breakpoint_threshold_amount" binding:"omitempty"` // 断点阈值参数
	BufferSize      *int                  `form:"buffer_size" binding:"omitempty"`                 // 语义窗口半径
	AddStartIndex   *bool                 `form:"add_start_index" binding:"omitempty"`             // 是否记录起始位置
}

// ArtifactRequest 产物下载请求
type ArtifactRequest struct {
	ID string `uri:"id" binding:"required,uuid"` // 产物ID
}
