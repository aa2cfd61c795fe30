package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const tinyPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

func TestSanitizeRemovesActiveContent(t *testing.T) {
	s := NewSanitizer()
	out := s.Sanitize(`<p onclick="x()">Hi <script>alert(1)</script><a href="javascript:x()">bad</a> <a href="https://ok.example">ok</a></p><iframe src="https://x"></iframe>`, false, "")

	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "javascript:")
	assert.NotContains(t, out, "iframe")
	assert.Contains(t, out, `<a href="https://ok.example">ok</a>`)
}

func TestSanitizeDropsImagesWhenDisabled(t *testing.T) {
	out := NewSanitizer().Sanitize(`<p>a<img src="`+tinyPNG+`" alt="x"></p>`, false, "Image")
	assert.NotContains(t, out, "<img")
}

func TestSanitizeKeepsOnlyInlineImages(t *testing.T) {
	out := NewSanitizer().Sanitize(`<p><img src="`+tinyPNG+`"><img src="https://cdn.example/x.png" alt="remote"></p>`, true, "Imagem")

	assert.Contains(t, out, tinyPNG)
	assert.Contains(t, out, `alt="Imagem"`)
	assert.NotContains(t, out, "cdn.example")
	assert.NotContains(t, out, "remote")
}

func TestSanitizeKeepsExistingAlt(t *testing.T) {
	out := NewSanitizer().Sanitize(`<img src="`+tinyPNG+`" alt="A chart">`, true, "Image")
	assert.Contains(t, out, `alt="A chart"`)
}

func TestToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "paragraphs", in: "<p>One</p><p>Two</p>", want: "One\n\nTwo"},
		{name: "line break", in: "<p>a<br>b</p>", want: "a\nb"},
		{name: "inline whitespace", in: "<p>  a   <b>bold</b>\n text </p>", want: "a bold text"},
		{name: "lists", in: "<ul><li>x</li><li>y</li></ul>", want: "x\n\ny"},
		{name: "scripts skipped", in: "<div>keep<script>drop()</script></div>", want: "keep"},
		{name: "entities", in: "<p>caf&eacute; &amp; bar</p>", want: "café & bar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToText(tt.in))
		})
	}
}
