package document

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// 空单元格的占位文本
const missingCell = "NaN"

// CSVExtractor CSV抽取器
type CSVExtractor struct{}

// NewCSVExtractor 创建CSV抽取器
func NewCSVExtractor() Extractor {
	return &CSVExtractor{}
}

// Extract 读取CSV并渲染为单个表格文本段
func (c *CSVExtractor) Extract(filePath string) ([]Segment, error) {
	text, err := readText(filePath)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %v", err)
	}
	return tableSegment(filePath, rows), nil
}

// XLSXExtractor xlsx抽取器，只读取第一个工作表
type XLSXExtractor struct{}

// NewXLSXExtractor 创建xlsx抽取器
func NewXLSXExtractor() Extractor {
	return &XLSXExtractor{}
}

// Extract 读取第一个工作表
func (x *XLSXExtractor) Extract(filePath string) ([]Segment, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableSegment(filePath, nil), nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %v", sheets[0], err)
	}
	return tableSegment(filePath, rows), nil
}

// XLSExtractor xls抽取器，只读取第一个工作表
type XLSExtractor struct{}

// NewXLSExtractor 创建xls抽取器
func NewXLSExtractor() Extractor {
	return &XLSExtractor{}
}

// Extract 读取第一个工作表
func (x *XLSExtractor) Extract(filePath string) ([]Segment, error) {
	wb, err := xls.Open(filePath, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open xls: %v", err)
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return tableSegment(filePath, nil), nil
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}
	return tableSegment(filePath, rows), nil
}

func tableSegment(filePath string, rows [][]string) []Segment {
	return []Segment{{Content: renderTable(rows), Metadata: sourceMetadata(filePath)}}
}

// renderTable 首行作为表头，其余行前加行号，右对齐输出
func renderTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	if width == 0 {
		return ""
	}

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)

	header := make([]string, 0, width+1)
	header = append(header, "")
	for i := 0; i < width; i++ {
		name := cellAt(rows[0], i)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		header = append(header, name)
	}
	writeTableRow(tw, header)

	for idx, r := range rows[1:] {
		line := make([]string, 0, width+1)
		line = append(line, strconv.Itoa(idx))
		for i := 0; i < width; i++ {
			v := cellAt(r, i)
			if v == "" {
				v = missingCell
			}
			line = append(line, v)
		}
		writeTableRow(tw, line)
	}
	tw.Flush()
	return strings.TrimRight(sb.String(), "\n")
}

func writeTableRow(tw *tabwriter.Writer, cells []string) {
	for _, c := range cells {
		fmt.Fprint(tw, strings.ReplaceAll(c, "\t", " "), "\t")
	}
	fmt.Fprintln(tw)
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}
