package scraper

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/deusflow/inkpost/internal/locale"
	"github.com/deusflow/inkpost/internal/news"
	"github.com/deusflow/inkpost/internal/newsletter"
)

var ErrEmptyContent = errors.New("article has no content")

// Extractor fills Content and HTMLContent of a post, scraping the article
// page when the feed only carries a summary.
type Extractor struct {
	browser   Browser
	sanitizer *Sanitizer
	images    *ImageInliner
	log       *slog.Logger
}

func NewExtractor(browser Browser, images *ImageInliner, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		browser:   browser,
		sanitizer: NewSanitizer(),
		images:    images,
		log:       log,
	}
}

// Extract returns a copy of post with content populated.
func (e *Extractor) Extract(ctx context.Context, post news.Post, nl newsletter.Newsletter) (news.Post, error) {
	var text, raw string
	var err error

	if nl.MustBeScraped() {
		text, raw, err = e.scrape(ctx, post.Link, nl)
		if err != nil {
			return post, fmt.Errorf("scrape %s: %w", post.Link, err)
		}
	} else {
		raw = post.RawHTML
		if strings.TrimSpace(raw) == "" {
			raw = descriptionHTML(post.Description)
		}
	}

	if strings.TrimSpace(raw) == "" && strings.TrimSpace(text) == "" {
		return post, fmt.Errorf("%s: %w", post.Link, ErrEmptyContent)
	}

	if nl.IncludeImages && e.images != nil {
		inlined, err := e.images.Inline(ctx, raw, post.Link)
		if err != nil {
			e.log.Warn("image inlining failed", "post", post.Link, "error", err)
		} else {
			raw = inlined
		}
	}

	labels := locale.For(nl.Locale)
	clean := e.sanitizer.Sanitize(raw, nl.IncludeImages, labels.ImageAlt)
	if text == "" {
		text = ToText(clean)
	}

	post.Content = news.Ptr(text)
	post.HTMLContent = news.Ptr(clean)
	return post, nil
}

// scrape loads the article page and returns its rendered text and markup.
func (e *Extractor) scrape(ctx context.Context, link string, nl newsletter.Newsletter) (string, string, error) {
	if e.browser == nil {
		return "", "", errors.New("no browser configured")
	}
	if _, err := url.ParseRequestURI(link); err != nil {
		return "", "", fmt.Errorf("invalid link: %w", err)
	}

	page, err := e.browser.Navigate(ctx, link)
	if err != nil {
		return "", "", err
	}
	defer page.Close()

	if nl.UseReadable {
		if raw, ok := e.readable(ctx, page, link); ok {
			return "", raw, nil
		}
	}

	text, err := page.QueryText(ctx, nl.ArticleSelector)
	if err != nil {
		return "", "", err
	}
	raw, err := page.QueryHTML(ctx, nl.ArticleSelector)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(text), raw, nil
}

// readable runs the page through readability. ok is false when nothing
// usable came out and the selector should be used instead.
func (e *Extractor) readable(ctx context.Context, page Page, link string) (string, bool) {
	doc, err := page.DocumentHTML(ctx)
	if err != nil {
		e.log.Debug("readability skipped", "post", link, "error", err)
		return "", false
	}
	pageURL, _ := url.Parse(link)
	article, err := readability.FromReader(strings.NewReader(doc), pageURL)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		e.log.Debug("readability found nothing", "post", link, "error", err)
		return "", false
	}
	return article.Content, true
}

func descriptionHTML(desc string) string {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return ""
	}
	var b strings.Builder
	for _, para := range strings.Split(desc, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(para))
		b.WriteString("</p>")
	}
	return b.String()
}
