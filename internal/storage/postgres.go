package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/deusflow/inkpost/internal/newsletter"
)

// Postgres reads newsletters and subscriptions and records delivered posts.
type Postgres struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	ttl time.Duration
	log *slog.Logger
}

var newsletterColumns = []string{
	"id",
	"name",
	"feed_url",
	"COALESCE(website, '')",
	"COALESCE(author, '')",
	"COALESCE(subject, '')",
	"partial",
	"COALESCE(article_selector, '')",
	"locale",
	"COALESCE(periodicity, '')",
	"COALESCE(day_of_week, '')",
	"max_posts",
	"COALESCE(translation_target, '')",
	"COALESCE(translation_mode, '')",
	"include_images",
	"use_readable",
	"active",
}

// NewPostgres connects, pings and initializes the schema.
func NewPostgres(ctx context.Context, dsn string, ledgerTTL time.Duration, log *slog.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pg := NewPostgresFromDB(db, ledgerTTL, log)
	if err := pg.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	pg.log.Info("PostgreSQL connected")
	return pg, nil
}

// NewPostgresFromDB wraps an open handle without touching the schema.
func NewPostgresFromDB(db *sql.DB, ledgerTTL time.Duration, log *slog.Logger) *Postgres {
	if log == nil {
		log = slog.Default()
	}
	return &Postgres{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		ttl: ledgerTTL,
		log: log.With("component", "postgres"),
	}
}

func (p *Postgres) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS newsletters (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		feed_url TEXT NOT NULL,
		website TEXT,
		author TEXT,
		subject TEXT,
		partial BOOLEAN NOT NULL DEFAULT FALSE,
		article_selector TEXT,
		locale VARCHAR(16) NOT NULL DEFAULT 'en',
		periodicity VARCHAR(16),
		day_of_week VARCHAR(32),
		max_posts INTEGER NOT NULL DEFAULT 1,
		translation_target VARCHAR(16),
		translation_mode VARCHAR(16),
		include_images BOOLEAN NOT NULL DEFAULT FALSE,
		use_readable BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS subscribers (
		id SERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		device_email TEXT
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id SERIAL PRIMARY KEY,
		subscriber_id INTEGER NOT NULL REFERENCES subscribers(id),
		newsletter_id INTEGER NOT NULL REFERENCES newsletters(id),
		token VARCHAR(128) NOT NULL,
		accepted_terms BOOLEAN NOT NULL DEFAULT FALSE,
		pending_confirm BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE (subscriber_id, newsletter_id)
	);

	CREATE INDEX IF NOT EXISTS idx_subscriptions_newsletter ON subscriptions(newsletter_id);

	CREATE TABLE IF NOT EXISTS sent_posts (
		newsletter_id INTEGER NOT NULL,
		post_key VARCHAR(64) NOT NULL,
		link TEXT NOT NULL,
		sent_at TIMESTAMP NOT NULL DEFAULT NOW(),
		PRIMARY KEY (newsletter_id, post_key)
	);

	CREATE INDEX IF NOT EXISTS idx_sent_posts_sent_at ON sent_posts(sent_at);
	`

	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// FindActiveNewsletters returns valid active newsletters. Rows that fail
// validation are logged and skipped.
func (p *Postgres) FindActiveNewsletters(ctx context.Context) ([]newsletter.Newsletter, error) {
	query, args, err := p.sb.Select(newsletterColumns...).
		From("newsletters").
		Where(sq.Eq{"active": true}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build newsletters query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query newsletters: %w", err)
	}
	defer rows.Close()

	var out []newsletter.Newsletter
	for rows.Next() {
		var (
			nl                      newsletter.Newsletter
			periodicity, days, mode string
		)
		if err := rows.Scan(
			&nl.ID, &nl.Name, &nl.FeedURL, &nl.Website, &nl.Author, &nl.Subject,
			&nl.Partial, &nl.ArticleSelector, &nl.Locale, &periodicity, &days,
			&nl.MaxPosts, &nl.TranslationTarget, &mode, &nl.IncludeImages,
			&nl.UseReadable, &nl.Active,
		); err != nil {
			return nil, fmt.Errorf("scan newsletter: %w", err)
		}

		nl.Periodicity = newsletter.ParsePeriodicity(periodicity)
		nl.TranslationMode = newsletter.ParseTranslationMode(mode)
		if nl.Weekdays, err = newsletter.ParseWeekdays(days); err != nil {
			p.log.Warn("Skipping newsletter", "newsletter", nl.String(), "error", err)
			continue
		}
		if err := nl.Validate(); err != nil {
			p.log.Warn("Skipping newsletter", "newsletter", nl.String(), "error", err)
			continue
		}
		out = append(out, nl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// FindEligibleSubscriptions returns confirmed subscriptions with accepted terms.
func (p *Postgres) FindEligibleSubscriptions(ctx context.Context, newsletterID int64) ([]newsletter.Subscription, error) {
	query, args, err := p.sb.Select("id", "subscriber_id", "newsletter_id", "token", "accepted_terms", "pending_confirm").
		From("subscriptions").
		Where(sq.Eq{"newsletter_id": newsletterID, "accepted_terms": true, "pending_confirm": false}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build subscriptions query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []newsletter.Subscription
	for rows.Next() {
		var s newsletter.Subscription
		if err := rows.Scan(&s.ID, &s.SubscriberID, &s.NewsletterID, &s.Token, &s.AcceptedTerms, &s.PendingConfirm); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (p *Postgres) FindSubscribersByIDs(ctx context.Context, ids []int64) ([]newsletter.Subscriber, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := p.sb.Select("id", "email", "COALESCE(device_email, '')").
		From("subscribers").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build subscribers query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	out := make([]newsletter.Subscriber, 0, len(ids))
	for rows.Next() {
		var s newsletter.Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.DeviceEmail); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// Delivered reports whether the post was sent within the ledger TTL.
func (p *Postgres) Delivered(ctx context.Context, newsletterID int64, postKey string) (bool, error) {
	builder := p.sb.Select("COUNT(*)").
		From("sent_posts").
		Where(sq.Eq{"newsletter_id": newsletterID, "post_key": postKey})
	if p.ttl > 0 {
		builder = builder.Where(sq.Gt{"sent_at": time.Now().Add(-p.ttl)})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("build ledger query: %w", err)
	}

	var count int
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("check delivered: %w", err)
	}
	return count > 0, nil
}

// MarkDelivered records the post. Concurrent marks of the same post collapse
// into one row.
func (p *Postgres) MarkDelivered(ctx context.Context, newsletterID int64, postKey, link string) error {
	query, args, err := p.sb.Insert("sent_posts").
		Columns("newsletter_id", "post_key", "link", "sent_at").
		Values(newsletterID, postKey, link, sq.Expr("NOW()")).
		Suffix("ON CONFLICT (newsletter_id, post_key) DO UPDATE SET sent_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark query: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark as delivered: %w", err)
	}
	return nil
}

// Cleanup removes ledger rows older than the TTL.
func (p *Postgres) Cleanup(ctx context.Context) error {
	if p.ttl <= 0 {
		return nil
	}
	query, args, err := p.sb.Delete("sent_posts").
		Where(sq.Lt{"sent_at": time.Now().Add(-p.ttl)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build cleanup query: %w", err)
	}

	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to cleanup: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		p.log.Info("Cleaned up old ledger records", "rows", rows)
	}
	return nil
}

func (p *Postgres) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
