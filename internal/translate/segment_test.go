package translate

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runeLengths(parts ...string) []int {
	out := make([]int, len(parts))
	for i, p := range parts {
		out[i] = utf8.RuneCountInString(p)
	}
	return out
}

func TestBreakHTMLSentencesGroupsByBlock(t *testing.T) {
	parts := []string{"<p>One. ", "Two.</p>", "<p>Três.</p>\n", "<ul><li>x</li>", "</ul>"}
	html := strings.Join(parts, "")

	got := BreakHTMLSentences(html, runeLengths(parts...), 1000)
	assert.Equal(t, []string{"<p>One. Two.</p>", "<p>Três.</p>\n", "<ul><li>x</li>", "</ul>"}, got)
	assert.Equal(t, html, strings.Join(got, ""))
}

func TestBreakHTMLSentencesKeepsRemainder(t *testing.T) {
	html := "<p>Covered.</p><p>Not covered"
	got := BreakHTMLSentences(html, []int{15}, 1000)
	assert.Equal(t, []string{"<p>Covered.</p>", "<p>Not covered"}, got)
}

func TestBreakHTMLSentencesFlushesBeforeBudget(t *testing.T) {
	parts := []string{"<p>aaaa ", "bbbb ", "cccc</p>"}
	got := BreakHTMLSentences(strings.Join(parts, ""), runeLengths(parts...), 12)
	for _, seg := range got {
		assert.LessOrEqual(t, utf8.RuneCountInString(seg), 12)
	}
	assert.Equal(t, strings.Join(parts, ""), strings.Join(got, ""))
}

func TestBreakHTMLSentencesLineBreak(t *testing.T) {
	parts := []string{"first<br>", "second<br/>", "third"}
	got := BreakHTMLSentences(strings.Join(parts, ""), runeLengths(parts...), 100)
	assert.Equal(t, []string{"first<br>", "second<br/>", "third"}, got)
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a\n", "\n", "b"}, SplitLines("a\n\nb"))
	assert.Equal(t, []string{"a\n"}, SplitLines("a\n"))
	assert.Nil(t, SplitLines(""))
}

func TestPackGreedy(t *testing.T) {
	chunks := Pack([]string{"aaaa", "bbb", "cc", "", "d"}, 7)
	require.Len(t, chunks, 2)
	assert.Equal(t, Chunk{"aaaa", "bbb"}, chunks[0])
	assert.Equal(t, Chunk{"cc", "d"}, chunks[1])
}

func TestPackSplitsOversizeSegments(t *testing.T) {
	chunks := Pack([]string{"word word word word"}, 10)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Size(), 10)
		assert.NotEmpty(t, c)
	}
	var joined []string
	for _, c := range chunks {
		joined = append(joined, c...)
	}
	assert.Equal(t, "word word word word", strings.Join(joined, ""))
}

func TestPackNeverExceedsBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"lorem", "ipsum", "dolor", "ação", "größe", "日本語", "x"}

	for run := 0; run < 200; run++ {
		budget := 5 + rng.Intn(200)
		var paragraphs []string
		for p := 0; p < rng.Intn(30); p++ {
			var b strings.Builder
			for w := 0; w < rng.Intn(120); w++ {
				b.WriteString(words[rng.Intn(len(words))])
				b.WriteString(" ")
			}
			paragraphs = append(paragraphs, "<p>"+b.String()+"</p>")
		}

		chunks := Pack(paragraphs, budget)
		var total int
		for _, c := range chunks {
			require.NotEmpty(t, c)
			require.LessOrEqual(t, c.Size(), budget, "budget %d", budget)
			total += c.Size()
		}
		assert.Equal(t, utf8.RuneCountInString(strings.Join(paragraphs, "")), total)
	}
}

func TestBreakThenPackNeverExceedsBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 100; run++ {
		budget := 20 + rng.Intn(300)
		var b strings.Builder
		for p := 0; p < 1+rng.Intn(20); p++ {
			b.WriteString("<p>")
			for s := 0; s < 1+rng.Intn(10); s++ {
				b.WriteString(strings.Repeat("palavra ", 1+rng.Intn(40)))
				b.WriteString("fim. ")
			}
			b.WriteString("</p>")
		}
		html := b.String()

		segments := BreakHTMLSentences(html, SentenceLengths(html), budget)
		require.Equal(t, html, strings.Join(segments, ""))
		for _, c := range Pack(segments, budget) {
			require.LessOrEqual(t, c.Size(), budget)
		}
	}
}

func TestSentenceLengthsCoverText(t *testing.T) {
	text := "<p>Hello there. How are you?</p><p>Fine!</p>\nBye"
	lengths := SentenceLengths(text)

	sum := 0
	for _, n := range lengths {
		require.Positive(t, n)
		sum += n
	}
	assert.Equal(t, utf8.RuneCountInString(text), sum)

	segments := BreakHTMLSentences(text, lengths, 1000)
	assert.Equal(t, []string{"<p>Hello there. How are you?</p>", "<p>Fine!</p>\n", "Bye"}, segments)
}
