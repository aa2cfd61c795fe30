package news

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/deusflow/inkpost/internal/rss"
)

func TestFromEntry(t *testing.T) {
	published := time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC)
	p := FromEntry(rss.Entry{
		ID:          "https://example.com/a",
		Title:       "A",
		Author:      "Ana",
		Published:   published,
		Link:        "https://example.com/a",
		Description: "intro",
		Content:     "<p>body</p>",
	}, "pt-BR")

	assert.Equal(t, "A", p.Title)
	assert.Equal(t, "pt-BR", p.Locale)
	assert.Equal(t, "<p>body</p>", p.RawHTML)
	assert.Nil(t, p.Content)
	assert.Nil(t, p.HTMLContent)
	assert.Nil(t, p.OriginalTitle)
}

func TestKeyStable(t *testing.T) {
	a := Post{ID: "https://example.com/a", Title: "A"}
	b := Post{ID: "https://example.com/a", Title: "changed"}
	assert.Equal(t, a.Key(), b.Key())
	assert.Len(t, a.Key(), 40)

	c := Post{Link: "https://example.com/c", Title: "C"}
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestDeref(t *testing.T) {
	assert.Equal(t, "", Deref(nil))
	assert.Equal(t, "x", Deref(Ptr("x")))
}
