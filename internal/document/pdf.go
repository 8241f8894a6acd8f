package document

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFExtractor PDF文档抽取器
// 每页产出一个文本段，元数据包含 source 与从0开始的 page
type PDFExtractor struct {
	conf *model.Configuration
}

// NewPDFExtractor 创建一个新的PDF抽取器
func NewPDFExtractor() Extractor {
	return &PDFExtractor{conf: model.NewDefaultConfiguration()}
}

// Extract 解析PDF文件并逐页提取文本
func (p *PDFExtractor) Extract(filePath string) ([]Segment, error) {
	// 先用pdfcpu校验文件结构，损坏的文件直接报错
	if err := api.ValidateFile(filePath, p.conf); err != nil {
		return nil, fmt.Errorf("failed to validate PDF: %w", err)
	}

	pages, err := extractPlainTextPages(filePath)
	if err != nil || !anyText(pages) {
		// 文本层解析失败时退回到内容流抽取
		fallback, ferr := p.extractContentStreams(filePath)
		if ferr != nil {
			if err != nil {
				return nil, fmt.Errorf("failed to extract text from PDF: %v (fallback: %v)", err, ferr)
			}
			return nil, fmt.Errorf("failed to extract text from PDF: %w", ferr)
		}
		if len(fallback) > 0 {
			pages = fallback
		}
	}

	segments := make([]Segment, 0, len(pages))
	for i, text := range pages {
		meta := sourceMetadata(filePath)
		meta["page"] = i
		segments = append(segments, Segment{Content: text, Metadata: meta})
	}
	return segments, nil
}

// extractPlainTextPages 使用文本层逐页提取
func extractPlainTextPages(filePath string) (pages []string, err error) {
	defer func() {
		// 第三方解析器在畸形文件上可能panic
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

var (
	contentPageFile = regexp.MustCompile(`_(\d+)\.txt$`)
	showTextOp      = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)\s*(?:Tj|'|")`)
	showTextArrayOp = regexp.MustCompile(`\[((?:\\.|[^\]])*)\]\s*TJ`)
	arrayString     = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)
)

// extractContentStreams 使用pdfcpu导出每页内容流，并从文本操作符中取出字符串
func (p *PDFExtractor) extractContentStreams(filePath string) ([]string, error) {
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractContentFile(filePath, tmpDir, nil, p.conf); err != nil {
		return nil, fmt.Errorf("failed to extract content from PDF: %v", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted content dir: %v", err)
	}

	byPage := make(map[int]string)
	maxPage := 0
	for _, e := range entries {
		m := contentPageFile.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		data, err := os.ReadFile(filepath.Join(tmpDir, e.Name()))
		if err != nil {
			continue
		}
		byPage[n] = textFromContentStream(string(data))
		if n > maxPage {
			maxPage = n
		}
	}

	pageNums := make([]int, 0, len(byPage))
	for n := range byPage {
		pageNums = append(pageNums, n)
	}
	sort.Ints(pageNums)

	pages := make([]string, maxPage)
	for _, n := range pageNums {
		pages[n-1] = byPage[n]
	}
	return pages, nil
}

// textFromContentStream 收集 Tj / TJ 操作符中的字符串
func textFromContentStream(stream string) string {
	var sb strings.Builder
	for _, line := range strings.Split(stream, "\n") {
		for _, m := range showTextOp.FindAllStringSubmatch(line, -1) {
			sb.WriteString(unescapePDFString(m[1]))
		}
		for _, m := range showTextArrayOp.FindAllStringSubmatch(line, -1) {
			for _, s := range arrayString.FindAllStringSubmatch(m[1], -1) {
				sb.WriteString(unescapePDFString(s[1]))
			}
		}
		if strings.Contains(line, "ET") || strings.Contains(line, "T*") || strings.Contains(line, "Td") {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func unescapePDFString(s string) string {
	r := strings.NewReplacer(`\(`, "(", `\)`, ")", `\\`, `\`, `\n`, "\n", `\r`, "\r", `\t`, "\t")
	return r.Replace(s)
}

func anyText(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}
