// Package distribute mails a rendered post to every eligible subscriber of a
// newsletter.
package distribute

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/deusflow/inkpost/internal/mailer"
	"github.com/deusflow/inkpost/internal/news"
	"github.com/deusflow/inkpost/internal/newsletter"
	"github.com/deusflow/inkpost/internal/render"
)

const defaultConcurrency = 20

// SubscriberFinder resolves subscriber records in one round trip.
type SubscriberFinder interface {
	FindSubscribersByIDs(ctx context.Context, ids []int64) ([]newsletter.Subscriber, error)
}

type Config struct {
	// Concurrency bounds the number of messages in flight.
	Concurrency int
	// RatePerSecond paces sends; zero means unlimited.
	RatePerSecond float64
	// BaseURL is the public address used in unsubscribe links.
	BaseURL string
}

// Delivery is one post ready to be sent.
type Delivery struct {
	Newsletter newsletter.Newsletter
	Post       news.Post
	Document   render.Document
	Envelope   render.Envelope
}

type Stats struct {
	Total  int
	Sent   int
	Failed int
}

// Result is the outcome of one recipient's send.
type Result struct {
	SubscriptionID int64
	Email          string
	Err            error
}

type Distributor struct {
	subscribers SubscriberFinder
	transport   mailer.Transport
	cfg         Config
	limiter     *rate.Limiter
	log         *slog.Logger
}

func New(subscribers SubscriberFinder, transport mailer.Transport, cfg Config, log *slog.Logger) *Distributor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if log == nil {
		log = slog.Default()
	}

	d := &Distributor{
		subscribers: subscribers,
		transport:   transport,
		cfg:         cfg,
		log:         log.With("component", "distribute"),
	}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return d
}

// Distribute sends the delivery to every eligible subscription and returns
// the aggregated counts. Failures never stop the other sends.
func (d *Distributor) Distribute(ctx context.Context, del Delivery, subs []newsletter.Subscription) Stats {
	eligible := newsletter.FilterEligible(subs)
	stats := Stats{Total: len(eligible)}
	if len(eligible) == 0 {
		return stats
	}

	log := d.log.With("newsletter", del.Newsletter.String(), "post", del.Post.Link)

	ids := make([]int64, 0, len(eligible))
	seen := make(map[int64]bool, len(eligible))
	for _, s := range eligible {
		if !seen[s.SubscriberID] {
			seen[s.SubscriberID] = true
			ids = append(ids, s.SubscriberID)
		}
	}

	subscribers, err := d.subscribers.FindSubscribersByIDs(ctx, ids)
	if err != nil {
		log.Error("Failed to load subscribers", "error", err)
		stats.Failed = stats.Total
		return stats
	}
	byID := make(map[int64]newsletter.Subscriber, len(subscribers))
	for _, s := range subscribers {
		byID[s.ID] = s
	}

	results := make([]Result, len(eligible))

	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for i, sub := range eligible {
		g.Go(func() error {
			results[i] = d.send(ctx, del, sub, byID)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Err != nil {
			stats.Failed++
			log.Warn("Failed to send newsletter",
				"subscription", r.SubscriptionID,
				"recipient", r.Email,
				"error", r.Err)
			continue
		}
		stats.Sent++
	}

	log.Info("Post distributed", "total", stats.Total, "sent", stats.Sent, "failed", stats.Failed)
	return stats
}

func (d *Distributor) send(ctx context.Context, del Delivery, sub newsletter.Subscription, byID map[int64]newsletter.Subscriber) Result {
	res := Result{SubscriptionID: sub.ID}

	subscriber, ok := byID[sub.SubscriberID]
	if !ok {
		res.Err = fmt.Errorf("subscriber %d not found", sub.SubscriberID)
		return res
	}
	res.Email = subscriber.DeviceEmail
	if res.Email == "" {
		res.Err = mailer.ErrNoRecipient
		return res
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			res.Err = err
			return res
		}
	}

	var unsubscribe string
	if d.cfg.BaseURL != "" && sub.Token != "" {
		unsubscribe = newsletter.UnsubscribeLink(d.cfg.BaseURL, sub.Token)
	}
	body, err := del.Document.Personalize(unsubscribe)
	if err != nil {
		res.Err = fmt.Errorf("personalize document: %w", err)
		return res
	}

	res.Err = d.transport.Send(ctx, mailer.Message{
		To:      res.Email,
		Subject: del.Envelope.Subject,
		Text:    del.Envelope.Text,
		HTML:    del.Envelope.HTML,
		Attachments: []mailer.Attachment{{
			Name:        del.Document.FileName,
			Content:     body,
			ContentType: del.Document.ContentType(),
		}},
	})
	return res
}
