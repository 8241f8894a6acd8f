package chunker

import (
	"regexp"
	"strings"
)

// 分隔符层级名，由粗到细
const (
	SeparatorParagraph = "paragraph"
	SeparatorLine      = "line"
	SeparatorSentence  = "sentence"
	SeparatorWord      = "word"
	SeparatorChar      = "char"
)

// DefaultSeparators 默认分隔符层级
func DefaultSeparators() []string {
	return []string{SeparatorParagraph, SeparatorLine, SeparatorSentence, SeparatorWord, SeparatorChar}
}

// separator 把文本切成首尾相接的片段，分隔符留在前一片段末尾
type separator interface {
	split(text string) []string
}

type literalSeparator string

func (s literalSeparator) split(text string) []string {
	parts := strings.SplitAfter(text, string(s))
	if n := len(parts); n > 0 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	return parts
}

type sentenceSeparator struct{}

func (sentenceSeparator) split(text string) []string {
	spans := splitSentences(text)
	if len(spans) <= 1 {
		return []string{text}
	}
	parts := make([]string, 0, len(spans))
	prev := 0
	for _, sp := range spans[1:] {
		parts = append(parts, text[prev:sp.start])
		prev = sp.start
	}
	return append(parts, text[prev:])
}

var wordPattern = regexp.MustCompile(`\S+\s*`)

type wordSeparator struct{}

func (wordSeparator) split(text string) []string {
	locs := wordPattern.FindAllStringIndex(text, -1)
	if len(locs) <= 1 {
		return []string{text}
	}
	parts := make([]string, 0, len(locs))
	prev := 0
	for _, loc := range locs[1:] {
		parts = append(parts, text[prev:loc[0]])
		prev = loc[0]
	}
	return append(parts, text[prev:])
}

type charSeparator struct{}

func (charSeparator) split(text string) []string {
	parts := make([]string, 0, len(text))
	for _, r := range text {
		parts = append(parts, string(r))
	}
	return parts
}

// parseSeparators 将层级名转换为分隔符
func parseSeparators(names []string) ([]separator, error) {
	if len(names) == 0 {
		names = DefaultSeparators()
	}
	seps := make([]separator, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case SeparatorParagraph:
			seps = append(seps, literalSeparator("\n\n"))
		case SeparatorLine:
			seps = append(seps, literalSeparator("\n"))
		case SeparatorSentence:
			seps = append(seps, sentenceSeparator{})
		case SeparatorWord:
			seps = append(seps, wordSeparator{})
		case SeparatorChar:
			seps = append(seps, charSeparator{})
		default:
			return nil, newConfigError("separators", "unknown separator level %q", name)
		}
	}
	return seps, nil
}
