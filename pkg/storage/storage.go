package storage

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound 指定ID的文件不存在
var ErrNotFound = errors.New("file not found")

// FileInfo 文件元数据结构
type FileInfo struct {
	ID       string    // 文件唯一标识符
	Name     string    // 原始文件名
	Size     int64     // 文件大小(字节)
	MimeType string    // 文件MIME类型(可选)
	Path     string    // 内部存储路径(实现相关)
	ModTime  time.Time // 最后修改时间
}

// Storage 文件存储接口
// 上传暂存区和JSONL产物都通过该接口读写，可以有不同实现(本地文件系统、MinIO等)
type Storage interface {
	// Save 保存文件并返回文件信息，写入是原子的
	Save(reader io.Reader, filename string) (FileInfo, error)

	// Get 获取文件内容
	Get(id string) (io.ReadCloser, error)

	// Delete 删除文件
	Delete(id string) error

	// List 列出所有文件
	List() ([]FileInfo, error)

	// Exists 检查文件是否存在
	Exists(id string) (bool, error)

	// Purge 删除修改时间早于 now-olderThan 的文件，返回删除数量
	Purge(olderThan time.Duration) (int, error)
}

// idFromName 从存储文件名中提取ID
func idFromName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// getMimeType 根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jsonl":
		return "application/jsonl"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".csv":
		return "text/csv"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	default:
		return "application/octet-stream"
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
