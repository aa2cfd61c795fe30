package rss

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/inkpost/internal/retry"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Example</title>
  <item>
    <title>First post</title>
    <link>https://example.com/first</link>
    <guid>urn:first</guid>
    <dc:creator>Ana Souza</dc:creator>
    <pubDate>Wed, 13 Mar 2024 08:00:00 GMT</pubDate>
    <description>&lt;p&gt;Short &lt;b&gt;intro&lt;/b&gt;&lt;/p&gt;</description>
    <content:encoded><![CDATA[<p>Full body</p>]]></content:encoded>
  </item>
  <item>
    <title>No link</title>
    <guid isPermaLink="false">urn:second</guid>
    <pubDate>Tue, 12 Mar 2024 08:00:00 GMT</pubDate>
    <description>plain</description>
  </item>
</channel>
</rss>`

func fastRetry() retry.RetryConfig {
	return retry.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}
}

func TestFetchParsesEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleFeed)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), fastRetry(), nil)
	entries, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "https://example.com/first", first.ID)
	assert.Equal(t, "First post", first.Title)
	assert.Equal(t, "Ana Souza", first.Author)
	assert.Equal(t, "Short intro", first.Description)
	assert.Equal(t, "<p>Full body</p>", first.Content)
	assert.Equal(t, time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC), first.Published.UTC())

	assert.Equal(t, "urn:second", entries[1].ID)
	assert.Equal(t, "plain", entries[1].Description)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, sampleFeed)
	}))
	defer srv.Close()

	entries, err := NewFetcher(srv.Client(), fastRetry(), nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(srv.Client(), fastRetry(), nil).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
