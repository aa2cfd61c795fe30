// Package news defines the Post that flows through extraction, translation
// and rendering.
package news

import (
	"crypto/sha1"
	"encoding/hex"
	"time"

	"github.com/deusflow/inkpost/internal/rss"
)

// Post is an article in flight. Nil optional fields have not been computed
// yet; an empty string is a computed but empty value.
type Post struct {
	ID            string
	Title         string
	OriginalTitle *string // set in bilingual mode only
	Author        string
	Published     time.Time
	Link          string
	Description   string
	Locale        string

	Content     *string // plain text
	HTMLContent *string // sanitized rich content

	// feed-embedded markup, input to extraction
	RawHTML string
}

// FromEntry builds a post from a selected feed entry.
func FromEntry(e rss.Entry, locale string) Post {
	return Post{
		ID:          e.ID,
		Title:       e.Title,
		Author:      e.Author,
		Published:   e.Published,
		Link:        e.Link,
		Description: e.Description,
		Locale:      locale,
		RawHTML:     e.Content,
	}
}

// Key is a stable short identifier of the post used by delivery ledgers.
func (p Post) Key() string {
	src := p.ID
	if src == "" {
		src = p.Link + "\x00" + p.Title
	}
	h := sha1.Sum([]byte(src))
	return hex.EncodeToString(h[:])
}

func (p Post) String() string {
	if p.Link != "" {
		return p.Link
	}
	return p.Title
}

// Ptr returns a pointer to s.
func Ptr(s string) *string {
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
