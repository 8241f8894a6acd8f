package document

import (
	"regexp"
	"strings"
)

// 覆盖ASCII空白与Unicode分隔符（如NBSP）
var whitespaceRun = regexp.MustCompile(`[\s\v\p{Z}\x{85}]+`)

// Clean 将连续空白折叠为单个空格并去掉首尾空白
// 元数据原样保留，输出段数与输入一致
func Clean(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		out = append(out, Segment{
			Content:  CleanText(seg.Content),
			Metadata: seg.Metadata,
		})
	}
	return out
}

// CleanText 规范化单段文本
func CleanText(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}
