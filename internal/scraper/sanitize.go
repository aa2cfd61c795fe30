package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var dataImageSrc = regexp.MustCompile(`^data:image/(png|jpeg|gif|webp);base64,[A-Za-z0-9+/=\s]+$`)

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true,
	"figure": true, "footer": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "tr": true, "ul": true,
}

// newPolicy builds the allow-list applied to every article body. Images are
// only kept as inline data URIs.
func newPolicy(images bool) *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowStandardURLs()
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoFollowOnLinks(false)

	p.AllowElements(
		"p", "br", "hr", "div", "span", "article", "section",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "pre", "code",
		"em", "strong", "b", "i", "u", "s", "sub", "sup", "small", "mark",
		"ul", "ol", "li", "dl", "dt", "dd",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption",
		"figure", "figcaption",
	)
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("td", "th")

	if images {
		p.AllowDataURIImages()
		p.AllowAttrs("src").Matching(dataImageSrc).OnElements("img")
		p.AllowAttrs("alt").Matching(bluemonday.Paragraph).OnElements("img")
		p.AllowAttrs("width", "height").Matching(bluemonday.Integer).OnElements("img")
	}
	return p
}

// Sanitizer cleans untrusted article HTML.
type Sanitizer struct {
	withImages    *bluemonday.Policy
	withoutImages *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		withImages:    newPolicy(true),
		withoutImages: newPolicy(false),
	}
}

// Sanitize applies the allow-list. With images enabled, images without an
// inline source are dropped and missing alt text is set to altText.
func (s *Sanitizer) Sanitize(raw string, images bool, altText string) string {
	if !images {
		return strings.TrimSpace(s.withoutImages.Sanitize(raw))
	}

	clean := s.withImages.Sanitize(raw)
	if !strings.Contains(clean, "<img") {
		return strings.TrimSpace(clean)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(clean))
	if err != nil {
		return strings.TrimSpace(clean)
	}
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src == "" {
			img.Remove()
			return
		}
		if alt, ok := img.Attr("alt"); !ok || strings.TrimSpace(alt) == "" {
			img.SetAttr("alt", altText)
		}
	})
	out, err := doc.Find("body").Html()
	if err != nil {
		return strings.TrimSpace(clean)
	}
	return strings.TrimSpace(out)
}

// ToText renders HTML as plain text. Block elements and <br> become line
// breaks, inline whitespace is collapsed and blank lines are squeezed.
func ToText(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}

	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, node *goquery.Selection) {
			name := goquery.NodeName(node)
			switch {
			case name == "#text":
				b.WriteString(node.Text())
			case name == "br":
				b.WriteString("\n")
			case name == "script" || name == "style" || name == "noscript":
			case blockElements[name]:
				b.WriteString("\n")
				walk(node)
				b.WriteString("\n")
			default:
				walk(node)
			}
		})
	}
	walk(doc.Find("body"))

	return normalizeLines(b.String())
}

func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
