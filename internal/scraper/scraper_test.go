package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/inkpost/internal/news"
	"github.com/deusflow/inkpost/internal/newsletter"
)

type fakePage struct {
	text, html, doc string
	closed          *int
}

func (p fakePage) QueryText(_ context.Context, selector string) (string, error) {
	if p.text == "" {
		return "", fmt.Errorf("%w: %q", ErrSelectorNotFound, selector)
	}
	return p.text, nil
}

func (p fakePage) QueryHTML(_ context.Context, selector string) (string, error) {
	if p.html == "" {
		return "", fmt.Errorf("%w: %q", ErrSelectorNotFound, selector)
	}
	return p.html, nil
}

func (p fakePage) DocumentHTML(context.Context) (string, error) { return p.doc, nil }

func (p fakePage) Close() error {
	*p.closed++
	return nil
}

type fakeBrowser struct {
	page   fakePage
	err    error
	closed int
}

func (b *fakeBrowser) Navigate(context.Context, string) (Page, error) {
	if b.err != nil {
		return nil, b.err
	}
	p := b.page
	p.closed = &b.closed
	return p, nil
}

func partialNewsletter() newsletter.Newsletter {
	return newsletter.Newsletter{
		ID: 1, Name: "Partial", FeedURL: "https://example.com/rss", Locale: "en",
		Partial: true, ArticleSelector: "article", MaxPosts: 1,
	}
}

func TestExtractInlineFeed(t *testing.T) {
	e := NewExtractor(nil, nil, nil)
	post := news.Post{Link: "https://example.com/a", RawHTML: `<p>Hello <b>world</b></p><script>x</script><p>Bye</p>`}

	got, err := e.Extract(context.Background(), post, newsletter.Newsletter{Locale: "en", MaxPosts: 1})
	require.NoError(t, err)
	assert.Equal(t, "Hello world\n\nBye", news.Deref(got.Content))
	assert.Equal(t, "<p>Hello <b>world</b></p><p>Bye</p>", news.Deref(got.HTMLContent))
}

func TestExtractFallsBackToDescription(t *testing.T) {
	e := NewExtractor(nil, nil, nil)
	post := news.Post{Link: "https://example.com/a", Description: "Short <summary>"}

	got, err := e.Extract(context.Background(), post, newsletter.Newsletter{Locale: "en", MaxPosts: 1})
	require.NoError(t, err)
	assert.Equal(t, "Short <summary>", news.Deref(got.Content))
	assert.Equal(t, "<p>Short &lt;summary&gt;</p>", news.Deref(got.HTMLContent))
}

func TestExtractEmpty(t *testing.T) {
	e := NewExtractor(nil, nil, nil)
	_, err := e.Extract(context.Background(), news.Post{Link: "https://example.com/a"}, newsletter.Newsletter{Locale: "en"})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestExtractPartialUsesSelector(t *testing.T) {
	b := &fakeBrowser{page: fakePage{text: "Scraped text", html: `<h2>Head</h2><p onclick="x">Scraped text</p>`}}
	e := NewExtractor(b, nil, nil)

	got, err := e.Extract(context.Background(), news.Post{Link: "https://example.com/a"}, partialNewsletter())
	require.NoError(t, err)
	assert.Equal(t, "Scraped text", news.Deref(got.Content))
	assert.Equal(t, "<h2>Head</h2><p>Scraped text</p>", news.Deref(got.HTMLContent))
	assert.Equal(t, 1, b.closed)
}

func TestExtractPartialSelectorMissing(t *testing.T) {
	b := &fakeBrowser{page: fakePage{}}
	e := NewExtractor(b, nil, nil)

	_, err := e.Extract(context.Background(), news.Post{Link: "https://example.com/a"}, partialNewsletter())
	require.ErrorIs(t, err, ErrSelectorNotFound)
	assert.Contains(t, err.Error(), "https://example.com/a")
	assert.Equal(t, 1, b.closed)
}

func TestExtractPartialNavigationFailure(t *testing.T) {
	boom := errors.New("timeout")
	e := NewExtractor(&fakeBrowser{err: boom}, nil, nil)

	_, err := e.Extract(context.Background(), news.Post{Link: "https://example.com/a"}, partialNewsletter())
	assert.ErrorIs(t, err, boom)
}

func TestExtractPartialInvalidLink(t *testing.T) {
	e := NewExtractor(&fakeBrowser{}, nil, nil)
	_, err := e.Extract(context.Background(), news.Post{Link: "not a url"}, partialNewsletter())
	assert.Error(t, err)
}

func TestExtractReadableFallsBackToSelector(t *testing.T) {
	b := &fakeBrowser{page: fakePage{text: "via selector", html: "<p>via selector</p>", doc: "<html><body></body></html>"}}
	nl := partialNewsletter()
	nl.UseReadable = true

	got, err := NewExtractor(b, nil, nil).Extract(context.Background(), news.Post{Link: "https://example.com/a"}, nl)
	require.NoError(t, err)
	assert.Equal(t, "via selector", news.Deref(got.Content))
}

func TestStaticBrowser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/post" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body><nav>menu</nav><article><p>First</p><p>Second</p></article></body></html>`)
	}))
	defer srv.Close()

	b := NewStaticBrowser(srv.Client())
	page, err := b.Navigate(context.Background(), srv.URL+"/post")
	require.NoError(t, err)
	defer page.Close()

	text, err := page.QueryText(context.Background(), "article")
	require.NoError(t, err)
	assert.Equal(t, "First\n\nSecond", text)

	html, err := page.QueryHTML(context.Background(), "article")
	require.NoError(t, err)
	assert.Equal(t, "<p>First</p><p>Second</p>", html)

	_, err = page.QueryText(context.Background(), ".missing")
	assert.ErrorIs(t, err, ErrSelectorNotFound)

	_, err = b.Navigate(context.Background(), srv.URL+"/gone")
	assert.Error(t, err)
}
