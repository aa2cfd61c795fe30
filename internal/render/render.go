// Package render turns a post into the HTML document mailed to reading
// devices.
package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/osteele/liquid"
	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/deusflow/inkpost/internal/locale"
	"github.com/deusflow/inkpost/internal/news"
	"github.com/deusflow/inkpost/internal/newsletter"
)

const documentTemplate = `<!DOCTYPE html>
<html lang="{{ lang }}">
<head>
<meta http-equiv="Content-Type" content="text/html; charset={{ charset }}">
<meta http-equiv="Content-Language" content="{{ content_language }}">
<title>{{ title | escape }}</title>
{% if author != "" %}<meta name="author" content="{{ author | escape }}">
{% endif %}{% if description != "" %}<meta name="description" content="{{ description | escape }}">
{% endif %}</head>
<body>
<article>
<header>
{% if original_title != "" %}<h2 class="original-title">{{ original_title | escape }}</h2>
{% endif %}<h1>{{ title | escape }}</h1>
<p class="byline">{{ byline | escape }}</p>
</header>
{% if body != "" %}{{ body }}{% else %}{{ content | paragraphs }}{% endif %}
</article>
<hr>
<footer>
<p>{% if author != "" %}{{ labels.author }}: {{ author | escape }}<br>
{% endif %}{{ labels.source }}: <a href="{{ link | escape }}">{{ link | escape }}</a>`

const (
	unsubscribeTemplate = `<br><em>%s: <a href="%s" target="_blank">%s</a></em>`
	documentEnd         = "</p></footer></body></html>"
)

// Document is a rendered post, shared by all recipients until Personalize.
type Document struct {
	FileName         string
	Charset          string
	UnsubscribeLabel string
	body             string
}

// ContentType is the MIME type of the attachment.
func (d Document) ContentType() string {
	return "text/html; charset=" + d.Charset
}

// Personalize closes the document with the recipient's unsubscribe link and
// encodes it in the document charset. An empty link omits the block.
func (d Document) Personalize(unsubscribeURL string) ([]byte, error) {
	var b strings.Builder
	b.Grow(len(d.body) + len(unsubscribeURL)*2 + 128)
	b.WriteString(d.body)
	if unsubscribeURL != "" {
		link := html.EscapeString(unsubscribeURL)
		fmt.Fprintf(&b, unsubscribeTemplate, html.EscapeString(d.UnsubscribeLabel), link, link)
	}
	b.WriteString(documentEnd)
	return Encode(b.String(), d.Charset)
}

// Envelope is the fixed email body that carries the document.
type Envelope struct {
	Subject string
	Text    string
	HTML    string
}

type Renderer struct {
	tpl *liquid.Template
}

func NewRenderer() (*Renderer, error) {
	engine := liquid.NewEngine()

	engine.RegisterFilter("paragraphs", paragraphs)

	tpl, err := engine.ParseString(documentTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse document template: %w", err)
	}
	return &Renderer{tpl: tpl}, nil
}

// Labels picks the label set for a newsletter: the source language, the
// target language after a full translation, or both when bilingual.
func Labels(nl newsletter.Newsletter) locale.Labels {
	switch {
	case nl.MustBeTranslated() && nl.TranslationMode == newsletter.Bilingual:
		return locale.Bilingual(nl.Locale, nl.TranslationTarget)
	case nl.MustBeTranslated():
		return locale.For(nl.TranslationTarget)
	default:
		return locale.For(nl.Locale)
	}
}

func contentLanguage(nl newsletter.Newsletter) string {
	switch {
	case nl.MustBeTranslated() && nl.TranslationMode == newsletter.Bilingual:
		return locale.ContentLanguage(nl.Locale, nl.TranslationTarget)
	case nl.MustBeTranslated():
		return nl.TranslationTarget
	default:
		return nl.Locale
	}
}

// Render builds the shared part of the document.
func (r *Renderer) Render(post news.Post, nl newsletter.Newsletter) (Document, error) {
	labels := Labels(nl)

	body := news.Deref(post.HTMLContent)
	if strings.TrimSpace(body) == "" {
		body = ""
	}

	author := post.Author
	if author == "" {
		author = nl.Author
	}

	byline := labels.LongDate(post.Published)
	if author != "" && byline != "" {
		byline = author + " | " + byline
	} else if author != "" {
		byline = author
	}

	lang := newsletter.PrimaryLanguage(post.Locale)
	if lang == "" {
		lang = nl.Language()
	}

	bindings := liquid.Bindings{
		"lang":             lang,
		"charset":          nl.Encoding(),
		"content_language": contentLanguage(nl),
		"title":            post.Title,
		"original_title":   news.Deref(post.OriginalTitle),
		"author":           author,
		"description":      post.Description,
		"byline":           byline,
		"body":             body,
		"content":          news.Deref(post.Content),
		"link":             post.Link,
		"labels": map[string]any{
			"author": labels.Author,
			"source": labels.Source,
		},
	}

	out, err := r.tpl.RenderString(bindings)
	if err != nil {
		return Document{}, fmt.Errorf("render %s: %w", post, err)
	}

	return Document{
		FileName:         FileName(nl.Name, post.Title),
		Charset:          nl.Encoding(),
		UnsubscribeLabel: labels.Unsubscribe,
		body:             out,
	}, nil
}

// Envelope returns the subject and body of the message carrying the document.
func (r *Renderer) Envelope(post news.Post, nl newsletter.Newsletter) Envelope {
	labels := Labels(nl)
	subject := post.Title
	if subject == "" {
		subject = nl.Subject
	}
	return Envelope{
		Subject: subject,
		Text:    labels.DefaultContent,
		HTML:    "<p>" + html.EscapeString(labels.DefaultContent) + "</p>",
	}
}

var fileNameReplacer = strings.NewReplacer("/", "-", "\\", "-", "\n", " ", "\r", " ", "\t", " ", "\x00", "")

// FileName is "(newsletter) title.html" with path separators replaced.
func FileName(newsletterName, title string) string {
	name := fmt.Sprintf("(%s) %s", strings.TrimSpace(newsletterName), strings.TrimSpace(title))
	return fileNameReplacer.Replace(name) + ".html"
}

// Encode converts s to the named charset. Characters the charset cannot
// represent become numeric character references.
func Encode(s, charset string) ([]byte, error) {
	if charset == "" || strings.EqualFold(charset, "utf-8") {
		return []byte(s), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	out, err := xencoding.HTMLEscapeUnsupported(enc.NewEncoder()).String(s)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", charset, err)
	}
	return []byte(out), nil
}

func paragraphs(text string) string {
	var b strings.Builder
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}
