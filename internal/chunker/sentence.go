package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// span 文本中的字节区间 [start, end)
type span struct {
	start int
	end   int
}

// 句末为点号但不构成句子结尾的常见缩写（小写，不含末尾的点）
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "sr": true, "jr": true,
	"st": true, "vs": true, "etc": true, "inc": true, "ltd": true, "co": true, "corp": true,
	"no": true, "fig": true, "figs": true, "vol": true, "approx": true, "dept": true,
	"est": true, "gen": true, "gov": true, "mt": true, "op": true, "pp": true, "rev": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true, "jul": true,
	"aug": true, "sep": true, "sept": true, "oct": true, "nov": true, "dec": true,
	"e.g": true, "i.e": true, "u.s": true, "u.k": true, "a.m": true, "p.m": true, "cf": true,
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// 中日文句末标点后无需空白
func isWideTerminal(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '’', '”', '»', '」', '』', '）':
		return true
	}
	return false
}

// splitSentences 按句末标点切句，返回去掉首尾空白的句子区间
// 规则：
//   - 「. ! ?」后（可跟引号括号）须有空白，且下一个非空白字符不是小写字母
//   - 点号前的词是缩写或单个字母（姓名缩写）时不断句
//   - 「。！？」直接断句
func splitSentences(text string) []span {
	var out []span
	start := skipSpace(text, 0)
	i := start

	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])

		if isWideTerminal(r) {
			end := consumeClosers(text, i+size)
			out = appendSpan(out, text, start, end)
			start = skipSpace(text, end)
			i = start
			continue
		}

		if !isTerminal(r) {
			i += size
			continue
		}

		// 连续的句末标点与右引号、右括号属于同一句
		end := i + size
		for end < len(text) {
			nr, ns := utf8.DecodeRuneInString(text[end:])
			if !isTerminal(nr) && !isCloser(nr) {
				break
			}
			end += ns
		}

		if end >= len(text) {
			break
		}
		if nr, _ := utf8.DecodeRuneInString(text[end:]); !unicode.IsSpace(nr) {
			i = end
			continue
		}
		next := skipSpace(text, end)
		if next >= len(text) {
			break
		}
		if nr, _ := utf8.DecodeRuneInString(text[next:]); unicode.IsLower(nr) {
			i = next
			continue
		}
		if r == '.' && isAbbreviation(text[start:i]) {
			i = next
			continue
		}

		out = appendSpan(out, text, start, end)
		start = next
		i = next
	}

	return appendSpan(out, text, start, len(text))
}

// isAbbreviation 判断点号前的最后一个词是否为缩写
func isAbbreviation(before string) bool {
	word := before
	if idx := strings.LastIndexFunc(before, unicode.IsSpace); idx >= 0 {
		word = before[idx+1:]
	}
	word = strings.TrimLeft(word, "\"'([{“‘«")
	if word == "" {
		return false
	}
	if utf8.RuneCountInString(word) == 1 {
		r, _ := utf8.DecodeRuneInString(word)
		return unicode.IsUpper(r)
	}
	return abbreviations[strings.ToLower(word)]
}

func appendSpan(out []span, text string, start, end int) []span {
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	if end > start {
		out = append(out, span{start: start, end: end})
	}
	return out
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

func consumeClosers(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isCloser(r) && !isWideTerminal(r) {
			break
		}
		i += size
	}
	return i
}
