package models

// ChunkRecord JSONL产物中的一行
// 字段顺序即序列化顺序，不可调整
type ChunkRecord struct {
	ID       int                    `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}
