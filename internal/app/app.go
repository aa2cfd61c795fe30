// Package app wires the pipeline stages together and drives a run.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/deusflow/inkpost/internal/archive"
	"github.com/deusflow/inkpost/internal/cache"
	"github.com/deusflow/inkpost/internal/config"
	"github.com/deusflow/inkpost/internal/distribute"
	"github.com/deusflow/inkpost/internal/gemini"
	"github.com/deusflow/inkpost/internal/mailer"
	"github.com/deusflow/inkpost/internal/metrics"
	"github.com/deusflow/inkpost/internal/ratelimit"
	"github.com/deusflow/inkpost/internal/render"
	"github.com/deusflow/inkpost/internal/retry"
	"github.com/deusflow/inkpost/internal/rss"
	"github.com/deusflow/inkpost/internal/scraper"
	"github.com/deusflow/inkpost/internal/storage"
	"github.com/deusflow/inkpost/internal/translate"
)

// Run builds the job from cfg and runs it once, or every RunInterval until
// ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	job, closeAll, err := Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAll()

	if cfg.RunInterval <= 0 {
		return job.Run(ctx).Err
	}

	ticker := time.NewTicker(cfg.RunInterval)
	defer ticker.Stop()
	for {
		job.Run(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Build constructs every component from cfg. The returned func releases
// connections and must be called once the job is no longer used.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Job, func(), error) {
	if log == nil {
		log = slog.Default()
	}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Job, func(), error) {
		closeAll()
		return nil, func() {}, err
	}

	deps := Deps{Metrics: metrics.Global, Log: log}

	// Repository, and the ledger that goes with it
	var pg *storage.Postgres
	if cfg.DatabaseURL != "" {
		var err error
		pg, err = storage.NewPostgres(ctx, cfg.DatabaseURL, cfg.LedgerTTL, log)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { pg.Close() })
		deps.Repository = pg
	} else {
		repo, err := storage.LoadFileRepository(cfg.NewslettersFile, cfg.TokenSalt, log)
		if err != nil {
			return fail(err)
		}
		deps.Repository = repo
	}

	switch {
	case cfg.RedisURL != "":
		ledger, err := storage.NewRedisLedger(ctx, cfg.RedisURL, cfg.LedgerTTL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { ledger.Close() })
		deps.Ledger = ledger
	case pg != nil:
		if err := pg.Cleanup(ctx); err != nil {
			log.Warn("Ledger cleanup failed", "error", err)
		}
		deps.Ledger = pg
	case cfg.LedgerFile != "":
		ledger := storage.NewFileLedger(cfg.LedgerFile, cfg.LedgerTTL)
		if err := ledger.Load(); err != nil {
			return fail(err)
		}
		if n := ledger.Cleanup(); n > 0 {
			log.Info("Expired ledger entries removed", "entries", n)
		}
		deps.Ledger = ledger
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	deps.Feeds = rss.NewFetcher(httpClient, retry.RetryConfig{
		MaxAttempts: cfg.FeedRetryAttempts,
		Delay:       cfg.RetryDelay,
		Backoff:     true,
		MaxDelay:    time.Minute,
	}, log.With("component", "rss"))

	var browser scraper.Browser
	if cfg.BrowserMode == "static" {
		browser = scraper.NewStaticBrowser(httpClient)
	} else {
		browser = scraper.NewChromeBrowser(cfg.ChromePath, cfg.BrowserTimeout, cfg.BrowserIdleWait)
	}
	images := cache.New[string](time.Hour)
	go images.Janitor(ctx, 10*time.Minute)
	deps.Extractor = scraper.NewExtractor(browser,
		scraper.NewImageInliner(httpClient, cfg.ImageMaxWidth, images, log.With("component", "images")),
		log.With("component", "scraper"))

	provider, err := newProvider(ctx, cfg, httpClient, &closers)
	if err != nil {
		return fail(err)
	}
	if provider != nil {
		translations := cache.New[string](cfg.TranslationCacheTTL)
		go translations.Janitor(ctx, 10*time.Minute)
		quota := ratelimit.NewTranslationQuota(cfg.TranslatorDailyQuota, 0, log)
		deps.Metrics.RegisterSource("translation_quota", quota.GetStats)
		deps.Translator = translate.New(provider, translate.Options{
			RequestBudget: cfg.TranslatorRequestBudget,
			MaxCharacters: cfg.TranslatorMaxCharacters,
		}, translations, quota, log.With("component", "translate"))
	}

	renderer, err := render.NewRenderer()
	if err != nil {
		return fail(err)
	}
	deps.Renderer = renderer

	transport, err := newTransport(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	deps.Distributor = distribute.New(deps.Repository, transport, distribute.Config{
		Concurrency:   cfg.SendConcurrency,
		RatePerSecond: cfg.SendRatePerSecond,
		BaseURL:       cfg.BaseURL,
	}, log)

	if cfg.ArchiveBucket != "" {
		store, err := archive.NewS3(ctx, archive.S3Config{
			Bucket:   cfg.ArchiveBucket,
			Prefix:   cfg.ArchivePrefix,
			Region:   cfg.AWSRegion,
			Compress: cfg.ArchiveCompress,
		}, log)
		if err != nil {
			return fail(err)
		}
		deps.Archive = store
	}

	return NewJob(deps), closeAll, nil
}

func newProvider(ctx context.Context, cfg *config.Config, client *http.Client, closers *[]func()) (translate.Provider, error) {
	switch cfg.TranslatorProvider {
	case "azure":
		return translate.NewAzureProvider(translate.AzureConfig{
			BaseURL: cfg.TranslatorURL,
			Key:     cfg.TranslatorKey,
			Region:  cfg.TranslatorRegion,
			Timeout: cfg.RequestTimeout,
		}, client), nil
	case "gemini":
		c, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, c.Close)
		return c, nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown translator provider %q", cfg.TranslatorProvider)
	}
}

func newTransport(ctx context.Context, cfg *config.Config, log *slog.Logger) (mailer.Transport, error) {
	from := mailer.Sender{Address: cfg.MailFrom, Name: cfg.MailFromName}
	switch cfg.MailTransport {
	case "ses":
		return mailer.NewSES(ctx, mailer.SESConfig{
			Region:           cfg.AWSRegion,
			AccessKey:        cfg.AWSAccessKey,
			SecretKey:        cfg.AWSSecretKey,
			ConfigurationSet: cfg.SESConfigurationSet,
		}, from)
	case "log":
		return mailer.NewLogTransport(log), nil
	default:
		return mailer.NewSMTP(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			TLS:      cfg.SMTPTLS,
			Timeout:  cfg.RequestTimeout,
		}, from)
	}
}
