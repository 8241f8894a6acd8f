package model

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status     string   `json:"status"`     // ok
	Strategies []string `json:"strategies"` // 可用的切分策略
	Embedder   string   `json:"embedder"`   // 语义切分使用的模型，未配置时为空
	Formats    []string `json:"formats"`    // 支持的文件扩展名
}

// 产物响应头
const (
	HeaderArtifactID = "X-Artifact-ID"
	HeaderChunkCount = "X-Chunk-Count"
	HeaderStrategy   = "X-Chunk-Strategy"
)

// ContentTypeJSONL JSONL产物的MIME类型
const ContentTypeJSONL = "application/jsonl"
