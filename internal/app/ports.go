package app

import (
	"context"

	"github.com/deusflow/inkpost/internal/distribute"
	"github.com/deusflow/inkpost/internal/news"
	"github.com/deusflow/inkpost/internal/newsletter"
	"github.com/deusflow/inkpost/internal/render"
	"github.com/deusflow/inkpost/internal/rss"
)

// Repository is the read side of newsletters and subscriptions.
type Repository interface {
	FindActiveNewsletters(ctx context.Context) ([]newsletter.Newsletter, error)
	FindEligibleSubscriptions(ctx context.Context, newsletterID int64) ([]newsletter.Subscription, error)
	FindSubscribersByIDs(ctx context.Context, ids []int64) ([]newsletter.Subscriber, error)
}

// Ledger remembers which posts a newsletter already delivered.
type Ledger interface {
	Delivered(ctx context.Context, newsletterID int64, postKey string) (bool, error)
	MarkDelivered(ctx context.Context, newsletterID int64, postKey, link string) error
}

// Archive stores a copy of each rendered document.
type Archive interface {
	Store(ctx context.Context, key string, body []byte) error
}

type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]rss.Entry, error)
}

type Extractor interface {
	Extract(ctx context.Context, post news.Post, nl newsletter.Newsletter) (news.Post, error)
}

type Translator interface {
	Translate(ctx context.Context, post news.Post, nl newsletter.Newsletter) (news.Post, error)
}

type Renderer interface {
	Render(post news.Post, nl newsletter.Newsletter) (render.Document, error)
	Envelope(post news.Post, nl newsletter.Newsletter) render.Envelope
}

type Distributor interface {
	Distribute(ctx context.Context, del distribute.Delivery, subs []newsletter.Subscription) distribute.Stats
}
