package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// PlainTextExtractor 纯文本抽取器，整份文件产出一个文本段
type PlainTextExtractor struct{}

// NewPlainTextExtractor 创建一个新的纯文本抽取器
func NewPlainTextExtractor() Extractor {
	return &PlainTextExtractor{}
}

// Extract 读取纯文本文件
func (p *PlainTextExtractor) Extract(filePath string) ([]Segment, error) {
	content, err := readText(filePath)
	if err != nil {
		return nil, err
	}
	return []Segment{{Content: content, Metadata: sourceMetadata(filePath)}}, nil
}

// readText 读取文件并统一转换为UTF-8
func readText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read text file: %v", err)
	}
	return decodeText(data)
}

// decodeText 非UTF-8内容按探测到的编码转码
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}

	enc, name, _ := charset.DetermineEncoding(data, mimetype.Detect(data).String())
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("failed to transcode from %s: %w", name, err)
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("transcoded text from %s is not valid utf-8", name)
	}
	return string(decoded), nil
}
