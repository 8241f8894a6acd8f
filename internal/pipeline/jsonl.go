package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fyerfyer/doc-ingest/internal/models"
)

// Encode 每条记录写一行JSON
// 字段顺序固定为 id、content、metadata，元数据键按字典序输出
func Encode(w io.Writer, records []models.ChunkRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if r.Metadata == nil {
			r.Metadata = map[string]interface{}{}
		}
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode record %d: %w", r.ID, err)
		}
	}
	return nil
}

// Marshal 渲染完整的JSONL产物
func Marshal(records []models.ChunkRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
