package rss

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/deusflow/inkpost/internal/retry"
)

// Entry is one feed item as the pipeline sees it.
type Entry struct {
	ID          string
	Title       string
	Author      string
	Published   time.Time
	Link        string
	Description string
	Content     string
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	parser *gofeed.Parser
	retry  retry.RetryConfig
	log    *slog.Logger
}

func NewFetcher(client *http.Client, retryCfg retry.RetryConfig, log *slog.Logger) *Fetcher {
	parser := gofeed.NewParser()
	if client != nil {
		parser.Client = client
	}
	parser.UserAgent = "inkpost/1.0 (+https://github.com/deusflow/inkpost)"
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{parser: parser, retry: retryCfg, log: log}
}

// Fetch downloads url and converts its items to entries in feed order.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]Entry, error) {
	var feed *gofeed.Feed
	attempt := 0
	err := retry.WithRetry(ctx, f.retry, func() error {
		attempt++
		parsed, err := f.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			var httpErr gofeed.HTTPError
			if errors.As(err, &httpErr) && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
				return retry.Permanent(err)
			}
			f.log.Warn("feed fetch failed", "url", url, "attempt", attempt, "error", err)
			return err
		}
		feed = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", url, err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, FromItem(item))
	}
	f.log.Debug("feed loaded", "url", url, "entries", len(entries))
	return entries, nil
}

// FromItem maps a parsed gofeed item to an Entry.
func FromItem(item *gofeed.Item) Entry {
	e := Entry{
		Title:   strings.TrimSpace(item.Title),
		Link:    strings.TrimSpace(item.Link),
		Content: item.Content,
	}

	e.ID = e.Link
	if e.ID == "" && len(item.Links) > 0 {
		e.ID = strings.TrimSpace(item.Links[0])
		e.Link = e.ID
	}
	if e.ID == "" {
		e.ID = strings.TrimSpace(item.GUID)
	}

	switch {
	case item.Author != nil && item.Author.Name != "":
		e.Author = item.Author.Name
	case len(item.Authors) > 0 && item.Authors[0] != nil && item.Authors[0].Name != "":
		e.Author = item.Authors[0].Name
	case item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0:
		e.Author = item.DublinCoreExt.Creator[0]
	}

	switch {
	case item.PublishedParsed != nil:
		e.Published = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		e.Published = *item.UpdatedParsed
	}

	e.Description = snippet(item.Description)
	if e.Description == "" && e.Content != "" {
		e.Description = snippet(e.Content)
	}
	return e
}

// snippet strips markup from a feed description.
func snippet(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
