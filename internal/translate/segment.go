package translate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// blockEnd matches a piece of HTML that ends at a structural boundary.
var blockEnd = regexp.MustCompile(`(?i)<(/(p|div|li|tr|pre|h[1-6]|blockquote|ul|ol|table|figure|section|article)|br\s*/?)>\s*$`)

// Chunk is the ordered group of segments sent in one provider request.
type Chunk []string

// Size is the combined rune length of the chunk.
func (c Chunk) Size() int {
	n := 0
	for _, s := range c {
		n += utf8.RuneCountInString(s)
	}
	return n
}

// BreakHTMLSentences regroups html into segments using the provider's
// sentence lengths. A segment closes when a sentence ends at a block
// boundary, and before it would grow past budget. Text not covered by
// lengths becomes the last segment.
func BreakHTMLSentences(html string, lengths []int, budget int) []string {
	runes := []rune(html)
	var out []string
	var buf strings.Builder
	bufLen := 0

	flush := func() {
		if bufLen > 0 {
			out = append(out, buf.String())
			buf.Reset()
			bufLen = 0
		}
	}
	add := func(piece string) {
		for _, part := range splitOversize(piece, budget) {
			n := utf8.RuneCountInString(part)
			if budget > 0 && bufLen+n > budget {
				flush()
			}
			buf.WriteString(part)
			bufLen += n
		}
	}

	pos := 0
	for _, n := range lengths {
		if n <= 0 || pos >= len(runes) {
			continue
		}
		end := pos + n
		if end > len(runes) {
			end = len(runes)
		}
		piece := string(runes[pos:end])
		pos = end

		add(piece)
		if blockEnd.MatchString(piece) {
			flush()
		}
	}
	if pos < len(runes) {
		add(string(runes[pos:]))
	}
	flush()
	return out
}

// SplitLines segments plain text by line, keeping each line's terminator.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Pack groups segments greedily into chunks that never exceed budget.
// Segments larger than budget are split first; empty chunks are never
// produced.
func Pack(segments []string, budget int) []Chunk {
	var parts []string
	for _, seg := range segments {
		for _, part := range splitOversize(seg, budget) {
			if part != "" {
				parts = append(parts, part)
			}
		}
	}
	groups := packBy(parts, utf8.RuneCountInString, budget)
	chunks := make([]Chunk, len(groups))
	for i, g := range groups {
		chunks[i] = Chunk(g)
	}
	return chunks
}

// packBy fills groups in order, starting a new group when the next item
// would push the current one past budget.
func packBy[T any](items []T, size func(T) int, budget int) [][]T {
	var groups [][]T
	var cur []T
	total := 0
	for _, it := range items {
		n := size(it)
		if len(cur) > 0 && budget > 0 && total+n > budget {
			groups = append(groups, cur)
			cur = nil
			total = 0
		}
		cur = append(cur, it)
		total += n
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// splitOversize cuts s into pieces of at most budget runes, preferring the
// last whitespace before the limit.
func splitOversize(s string, budget int) []string {
	if budget <= 0 || utf8.RuneCountInString(s) <= budget {
		return []string{s}
	}
	runes := []rune(s)
	var parts []string
	for len(runes) > budget {
		cut := budget
		for i := budget; i > budget/2; i-- {
			if unicode.IsSpace(runes[i-1]) {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// SentenceLengths is a local sentence splitter for providers without a
// sentence-boundary endpoint. A sentence ends at '.', '!' or '?' followed
// by whitespace or markup, at a newline, or after a closing block tag.
func SentenceLengths(text string) []int {
	runes := []rune(text)
	var lengths []int
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		end := -1
		switch {
		case r == '\n':
			end = i + 1
		case r == '.' || r == '!' || r == '?':
			j := i + 1
			for j < len(runes) && strings.ContainsRune(`"')]»`, runes[j]) {
				j++
			}
			if j == len(runes) || unicode.IsSpace(runes[j]) || runes[j] == '<' {
				end = j
			}
		case r == '>':
			if blockEnd.MatchString(string(runes[start : i+1])) {
				end = i + 1
			}
		}
		if end < 0 {
			continue
		}
		for end < len(runes) && unicode.IsSpace(runes[end]) {
			end++
		}
		if end > start {
			lengths = append(lengths, end-start)
			start = end
		}
		i = end - 1
	}
	if start < len(runes) {
		lengths = append(lengths, len(runes)-start)
	}
	return lengths
}
