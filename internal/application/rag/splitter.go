package rag

import (
	"strings"
	"unicode/utf8"
)

const (
	defaultChunkSize    = 2000
	defaultChunkOverlap = 200
)

// defaultSeparators 按语义边界从大到小：段落 -> 行 -> 句子 -> 词 -> 字符
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter 递归边界优先分片器。
// 先尝试在最大的语义边界上切分，超长的片段再用下一级边界递归切分；
// 同一文本段内相邻分片携带前一分片的尾部重叠。
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter 创建分片器；非法参数回退到默认值（2000/200）
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = defaultChunkOverlap
		if chunkOverlap >= chunkSize {
			chunkOverlap = chunkSize / 10
		}
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split 将一段文本切分为不超过目标长度的分片并施加重叠
func (s *Splitter) Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	pieces := s.split(trimmed, s.separators)
	return s.withOverlap(pieces)
}

func (s *Splitter) split(text string, separators []string) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		if t := strings.TrimSpace(text); t != "" {
			return []string{t}
		}
		return nil
	}

	// 选择当前文本中实际出现的最大边界
	sep := ""
	var rest []string
	for i, cand := range separators {
		if cand == "" || strings.Contains(text, cand) {
			sep = cand
			rest = separators[i+1:]
			break
		}
	}
	if sep == "" {
		return hardSplit(text, s.chunkSize)
	}

	parts := strings.SplitAfter(text, sep)

	// 贪心合并相邻小段，超长的单段用下一级边界递归切分
	var out []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if t := strings.TrimSpace(cur.String()); t != "" {
			out = append(out, t)
		}
		cur.Reset()
		curLen = 0
	}

	for _, part := range parts {
		plen := utf8.RuneCountInString(part)
		if plen > s.chunkSize {
			flush()
			out = append(out, s.split(part, rest)...)
			continue
		}
		if curLen+plen > s.chunkSize {
			flush()
		}
		cur.WriteString(part)
		curLen += plen
	}
	flush()
	return out
}

// hardSplit 按字符数硬切，用于没有任何边界可用的超长文本
func hardSplit(text string, size int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if t := strings.TrimSpace(string(runes[start:end])); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// withOverlap 为每个后续分片前置上一分片的尾部，保持上下文连续
func (s *Splitter) withOverlap(pieces []string) []string {
	if s.chunkOverlap <= 0 || len(pieces) < 2 {
		return pieces
	}
	out := make([]string, len(pieces))
	out[0] = pieces[0]
	for i := 1; i < len(pieces); i++ {
		tail := tailRunes(pieces[i-1], s.chunkOverlap)
		if tail != "" {
			out[i] = tail + " " + pieces[i]
		} else {
			out[i] = pieces[i]
		}
	}
	return out
}

func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[len(runes)-n:]))
}
