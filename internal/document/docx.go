package document

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const docxBodyPart = "word/document.xml"

// DocxExtractor Word文档抽取器，整份文档产出一个文本段
type DocxExtractor struct{}

// NewDocxExtractor 创建一个新的DOCX抽取器
func NewDocxExtractor() Extractor {
	return &DocxExtractor{}
}

// Extract 读取 word/document.xml 中的正文文本
func (d *DocxExtractor) Extract(filePath string) ([]Segment, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx archive: %v", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != docxBodyPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %v", docxBodyPart, err)
		}
		text, err := docxText(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		return []Segment{{Content: text, Metadata: sourceMetadata(filePath)}}, nil
	}
	return nil, fmt.Errorf("invalid docx: %s not found", docxBodyPart)
}

// docxText 遍历XML，保留文本、制表符与段落/换行
func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse docx xml: %v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
