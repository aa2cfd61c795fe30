package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deusflow/inkpost/internal/archive"
	"github.com/deusflow/inkpost/internal/distribute"
	"github.com/deusflow/inkpost/internal/metrics"
	"github.com/deusflow/inkpost/internal/news"
	"github.com/deusflow/inkpost/internal/newsletter"
	"github.com/deusflow/inkpost/internal/rss"
)

var (
	errAlreadyDelivered = errors.New("post already delivered")
	errNoTranslator     = errors.New("no translation provider configured")
)

// Deps are the collaborators of a Job. Translator, Ledger and Archive are
// optional.
type Deps struct {
	Repository  Repository
	Feeds       FeedFetcher
	Extractor   Extractor
	Translator  Translator
	Renderer    Renderer
	Distributor Distributor
	Ledger      Ledger
	Archive     Archive
	Metrics     *metrics.Metrics
	Log         *slog.Logger
	Now         func() time.Time
}

// Report summarizes one run.
type Report struct {
	Newsletters       int
	NewslettersFailed int
	Posts             int
	PostsFailed       int
	PostsSkipped      int
	Sent              int
	Failed            int
	Err               error
}

// Job runs the newsletter pipeline once per Run call.
type Job struct {
	deps Deps
	log  *slog.Logger
}

func NewJob(deps Deps) *Job {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Global
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Job{deps: deps, log: deps.Log.With("component", "job")}
}

// Run processes every active newsletter in turn. A failing newsletter or post
// is logged and counted, and the run moves on.
func (j *Job) Run(ctx context.Context) Report {
	start := time.Now()
	m := j.deps.Metrics
	var report Report

	defer func() {
		m.RecordProcessingTime(time.Since(start))
		m.SetLastRun(report.Err == nil && report.NewslettersFailed == 0 && report.PostsFailed == 0)
	}()

	newsletters, err := j.deps.Repository.FindActiveNewsletters(ctx)
	if err != nil {
		report.Err = fmt.Errorf("load newsletters: %w", err)
		j.log.Error("Failed to load newsletters", "error", err)
		m.SetError(report.Err.Error())
		return report
	}
	j.log.Info("Starting run", "newsletters", len(newsletters))

	for _, nl := range newsletters {
		if ctx.Err() != nil {
			report.Err = ctx.Err()
			break
		}
		if err := j.runNewsletter(ctx, nl, &report); err != nil {
			report.NewslettersFailed++
			m.IncrementNewslettersFailed()
			m.SetError(err.Error())
			j.log.Error("Newsletter failed", "newsletter", nl.String(), "error", err)
			continue
		}
		report.Newsletters++
		m.IncrementNewslettersProcessed()
	}

	j.log.Info("Run finished",
		"newsletters", report.Newsletters,
		"newsletters_failed", report.NewslettersFailed,
		"posts", report.Posts,
		"posts_failed", report.PostsFailed,
		"posts_skipped", report.PostsSkipped,
		"sent", report.Sent,
		"failed", report.Failed,
		"duration", time.Since(start))
	return report
}

func (j *Job) runNewsletter(ctx context.Context, nl newsletter.Newsletter, report *Report) error {
	log := j.log.With("newsletter", nl.String())

	subs, err := j.deps.Repository.FindEligibleSubscriptions(ctx, nl.ID)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}
	subs = newsletter.FilterEligible(subs)
	if len(subs) == 0 {
		log.Info("No eligible subscriptions, skipping")
		return nil
	}

	entries, err := j.deps.Feeds.Fetch(ctx, nl.FeedURL)
	if err != nil {
		return fmt.Errorf("fetch feed: %w", err)
	}

	due := rss.SelectDue(entries, rss.PolicyFor(nl), j.deps.Now())
	log.Info("Feed fetched", "entries", len(entries), "due", len(due), "subscriptions", len(subs))

	for _, entry := range due {
		post := news.FromEntry(entry, nl.Locale)

		stats, err := j.processPost(ctx, nl, post, subs)
		switch {
		case errors.Is(err, errAlreadyDelivered):
			report.PostsSkipped++
			j.deps.Metrics.IncrementPostsSkipped()
			log.Debug("Post already delivered", "post", post.Link)
		case err != nil:
			report.PostsFailed++
			j.deps.Metrics.IncrementPostsFailed()
			j.deps.Metrics.SetError(err.Error())
			log.Error("Post failed", "post", post.Link, "error", err)
		default:
			report.Posts++
			report.Sent += stats.Sent
			report.Failed += stats.Failed
			j.deps.Metrics.IncrementPostsDelivered()
			j.deps.Metrics.AddDeliveries(stats.Sent, stats.Failed)
		}
	}
	return nil
}

func (j *Job) processPost(ctx context.Context, nl newsletter.Newsletter, post news.Post, subs []newsletter.Subscription) (distribute.Stats, error) {
	key := post.Key()

	if j.deps.Ledger != nil {
		sent, err := j.deps.Ledger.Delivered(ctx, nl.ID, key)
		if err != nil {
			j.log.Warn("Ledger check failed", "newsletter", nl.String(), "post", post.Link, "error", err)
		} else if sent {
			return distribute.Stats{}, errAlreadyDelivered
		}
	}

	post, err := j.deps.Extractor.Extract(ctx, post, nl)
	if err != nil {
		return distribute.Stats{}, fmt.Errorf("extract: %w", err)
	}

	if nl.MustBeTranslated() {
		if j.deps.Translator == nil {
			return distribute.Stats{}, errNoTranslator
		}
		post, err = j.deps.Translator.Translate(ctx, post, nl)
		if err != nil {
			j.deps.Metrics.IncrementFailedTranslations()
			return distribute.Stats{}, fmt.Errorf("translate: %w", err)
		}
		j.deps.Metrics.IncrementSuccessfulTranslations()
	}

	doc, err := j.deps.Renderer.Render(post, nl)
	if err != nil {
		return distribute.Stats{}, fmt.Errorf("render: %w", err)
	}

	if j.deps.Archive != nil {
		j.archive(ctx, nl, key, post, doc.Personalize)
	}

	stats := j.deps.Distributor.Distribute(ctx, distribute.Delivery{
		Newsletter: nl,
		Post:       post,
		Document:   doc,
		Envelope:   j.deps.Renderer.Envelope(post, nl),
	}, subs)

	if j.deps.Ledger != nil && stats.Sent > 0 {
		if err := j.deps.Ledger.MarkDelivered(ctx, nl.ID, key, post.Link); err != nil {
			j.log.Warn("Failed to record delivery", "newsletter", nl.String(), "post", post.Link, "error", err)
		}
	}
	return stats, nil
}

// archive stores the document without an unsubscribe link. Failures only
// log.
func (j *Job) archive(ctx context.Context, nl newsletter.Newsletter, key string, post news.Post, personalize func(string) ([]byte, error)) {
	body, err := personalize("")
	if err == nil {
		err = j.deps.Archive.Store(ctx, archive.Key(nl.ID, key, j.deps.Now()), body)
	}
	if err != nil {
		j.log.Warn("Failed to archive document", "newsletter", nl.String(), "post", post.Link, "error", err)
	}
}
