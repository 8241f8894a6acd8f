package chunker

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// LengthUnit 长度计量单位
type LengthUnit string

const (
	// UnitChars 按Unicode字符计
	UnitChars LengthUnit = "chars"
	// UnitTokens 按tiktoken编码的token计
	UnitTokens LengthUnit = "tokens"
)

// DefaultEncoding 默认的tiktoken编码
const DefaultEncoding = "cl100k_base"

// Tokenizer 把文本映射为可计数、可切窗的单位序列
type Tokenizer interface {
	Encode(text string) []int
	Decode(ids []int) string
	Count(text string) int
}

// NewTokenizer 根据单位创建Tokenizer
// encoding 可以是编码名（cl100k_base）或模型名（gpt-4o）
func NewTokenizer(unit LengthUnit, encoding string) (Tokenizer, error) {
	switch unit {
	case "", UnitChars:
		return CharTokenizer{}, nil
	case UnitTokens:
		if encoding == "" {
			encoding = DefaultEncoding
		}
		tke, err := tiktoken.GetEncoding(encoding)
		if err != nil {
			tke, err = tiktoken.EncodingForModel(encoding)
			if err != nil {
				return nil, fmt.Errorf("failed to load tiktoken encoding %s: %w", encoding, err)
			}
		}
		return &tiktokenTokenizer{tke: tke}, nil
	default:
		return nil, newConfigError("length_unit", "must be chars or tokens, got %q", unit)
	}
}

// CharTokenizer 以rune为单位
type CharTokenizer struct{}

func (CharTokenizer) Encode(text string) []int {
	ids := make([]int, 0, len(text))
	for _, r := range text {
		ids = append(ids, int(r))
	}
	return ids
}

func (CharTokenizer) Decode(ids []int) string {
	runes := make([]rune, len(ids))
	for i, id := range ids {
		runes[i] = rune(id)
	}
	return string(runes)
}

func (CharTokenizer) Count(text string) int {
	return utf8.RuneCountInString(text)
}

type tiktokenTokenizer struct {
	tke *tiktoken.Tiktoken
}

func (t *tiktokenTokenizer) Encode(text string) []int {
	return t.tke.Encode(text, nil, nil)
}

func (t *tiktokenTokenizer) Decode(ids []int) string {
	return t.tke.Decode(ids)
}

func (t *tiktokenTokenizer) Count(text string) int {
	return len(t.tke.Encode(text, nil, nil))
}
