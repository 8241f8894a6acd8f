package document

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fyerfyer/doc-ingest/internal/models"
)

// Extractor 文档抽取器接口
// 负责将不同格式的文档转换为带元数据的文本段
type Extractor interface {
	// Extract 读取文件并返回有序的文本段
	Extract(filePath string) ([]Segment, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型，按页产出文本段
	PDF ContentType = "pdf"
	// DOCX Word文档
	DOCX ContentType = "docx"
	// PlainText 纯文本类型
	PlainText ContentType = "txt"
	// CSV 逗号分隔表格
	CSV ContentType = "csv"
	// XLS 旧版Excel表格
	XLS ContentType = "xls"
	// XLSX Excel表格
	XLSX ContentType = "xlsx"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// UnsupportedFormatError 不支持的文件扩展名
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %s", e.Ext)
}

// Is 与 models.ErrUnsupportedFormat 等价
func (e *UnsupportedFormatError) Is(target error) bool {
	return target == models.ErrUnsupportedFormat
}

// Segment 抽取后的文本段
// PDF每页一个，其余格式整份文档一个
type Segment struct {
	Content  string                 // 文本内容
	Metadata map[string]interface{} // 元数据（source、page等）
}

// CloneMetadata 返回元数据的浅拷贝
func (s Segment) CloneMetadata() map[string]interface{} {
	out := make(map[string]interface{}, len(s.Metadata))
	for k, v := range s.Metadata {
		out[k] = v
	}
	return out
}

// ExtractorFactory 抽取器工厂函数，根据文件扩展名创建对应的抽取器
func ExtractorFactory(filePath string) (Extractor, error) {
	contentType := DetectContentType(filePath)

	switch contentType {
	case PDF:
		return NewPDFExtractor(), nil
	case DOCX:
		return NewDocxExtractor(), nil
	case PlainText:
		return NewPlainTextExtractor(), nil
	case CSV:
		return NewCSVExtractor(), nil
	case XLS:
		return NewXLSExtractor(), nil
	case XLSX:
		return NewXLSXExtractor(), nil
	default:
		return nil, &UnsupportedFormatError{Ext: extOf(filePath)}
	}
}

// DetectContentType 根据文件扩展名检测内容类型（大小写不敏感）
func DetectContentType(filePath string) ContentType {
	switch extOf(filePath) {
	case "pdf":
		return PDF
	case "docx":
		return DOCX
	case "txt":
		return PlainText
	case "csv":
		return CSV
	case "xls":
		return XLS
	case "xlsx":
		return XLSX
	default:
		return Unknown
	}
}

// SupportedFormats 返回支持的扩展名
func SupportedFormats() []string {
	return []string{string(PDF), string(DOCX), string(PlainText), string(CSV), string(XLS), string(XLSX)}
}

// IsSupported 判断文件名是否为支持的格式
func IsSupported(filename string) bool {
	return DetectContentType(filename) != Unknown
}

// CheckSupported 不支持的扩展名返回 *UnsupportedFormatError
func CheckSupported(filePath string) error {
	if !IsSupported(filePath) {
		return &UnsupportedFormatError{Ext: extOf(filePath)}
	}
	return nil
}

// Load 按扩展名选择抽取器并读取文件
func Load(filePath string) ([]Segment, error) {
	extractor, err := ExtractorFactory(filePath)
	if err != nil {
		return nil, err
	}
	return extractor.Extract(filePath)
}

func extOf(filePath string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")
}

func sourceMetadata(filePath string) map[string]interface{} {
	return map[string]interface{}{"source": filePath}
}
