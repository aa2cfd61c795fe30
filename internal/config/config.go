// Package config loads the job settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"
	Debug     bool

	// Newsletters and subscriptions come from Postgres or a YAML file
	DatabaseURL     string
	NewslettersFile string
	TokenSalt       string

	// Delivery ledger
	RedisURL   string
	LedgerFile string
	LedgerTTL  time.Duration

	// Feeds
	RequestTimeout    time.Duration
	FeedRetryAttempts int
	RetryDelay        time.Duration

	// Extraction
	BrowserMode     string // "chrome" or "static"
	ChromePath      string
	BrowserTimeout  time.Duration
	BrowserIdleWait time.Duration
	ImageMaxWidth   int

	// Translation
	TranslatorProvider      string // "azure" or "gemini"
	TranslatorURL           string
	TranslatorKey           string
	TranslatorRegion        string
	TranslatorMaxCharacters int
	TranslatorRequestBudget int
	TranslatorDailyQuota    int
	TranslationCacheTTL     time.Duration
	GeminiAPIKey            string
	GeminiModel             string

	// Mail
	MailTransport       string // "smtp", "ses" or "log"
	MailFrom            string
	MailFromName        string
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	SMTPTLS             string
	AWSRegion           string
	AWSAccessKey        string
	AWSSecretKey        string
	SESConfigurationSet string

	// Distribution
	BaseURL           string
	SendConcurrency   int
	SendRatePerSecond float64

	// Archive
	ArchiveBucket   string
	ArchivePrefix   string
	ArchiveCompress bool

	// Process
	EnableHTTPMonitoring bool
	MonitoringPort       string
	RunInterval          time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
		Debug:     getEnvBoolOrDefault("DEBUG", false),

		DatabaseURL:     os.Getenv("DATABASE_URL"),
		NewslettersFile: os.Getenv("NEWSLETTERS_FILE"),
		TokenSalt:       os.Getenv("TOKEN_SALT"),

		RedisURL:   os.Getenv("REDIS_URL"),
		LedgerFile: os.Getenv("LEDGER_FILE"),
		LedgerTTL:  time.Duration(getEnvIntOrDefault("LEDGER_TTL_HOURS", 168)) * time.Hour,

		RequestTimeout:    getEnvDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		FeedRetryAttempts: getEnvIntOrDefault("FEED_RETRY_ATTEMPTS", 3),
		RetryDelay:        getEnvDurationOrDefault("RETRY_DELAY", 5*time.Second),

		BrowserMode:     strings.ToLower(getEnvOrDefault("BROWSER", "chrome")),
		ChromePath:      os.Getenv("CHROME_PATH"),
		BrowserTimeout:  getEnvDurationOrDefault("BROWSER_TIMEOUT", 60*time.Second),
		BrowserIdleWait: getEnvDurationOrDefault("BROWSER_IDLE_WAIT", 5*time.Second),
		ImageMaxWidth:   getEnvIntOrDefault("IMAGE_MAX_WIDTH", 1200),

		TranslatorProvider:      strings.ToLower(os.Getenv("TRANSLATOR_PROVIDER")),
		TranslatorURL:           getEnvOrDefault("TRANSLATOR_URL", "https://api.cognitive.microsofttranslator.com"),
		TranslatorKey:           os.Getenv("TRANSLATOR_KEY"),
		TranslatorRegion:        os.Getenv("TRANSLATOR_REGION"),
		TranslatorMaxCharacters: getEnvIntOrDefault("TRANSLATOR_MAX_CHARACTERS", 50000),
		TranslatorRequestBudget: getEnvIntOrDefault("TRANSLATOR_REQUEST_CHARACTERS", 10000),
		TranslatorDailyQuota:    getEnvIntOrDefault("TRANSLATOR_DAILY_CHARACTERS", 0),
		TranslationCacheTTL:     getEnvDurationOrDefault("TRANSLATION_CACHE_TTL", 24*time.Hour),
		GeminiAPIKey:            os.Getenv("GEMINI_API_KEY"),
		GeminiModel:             os.Getenv("GEMINI_MODEL"),

		MailTransport:       strings.ToLower(getEnvOrDefault("MAIL_TRANSPORT", "smtp")),
		MailFrom:            os.Getenv("MAIL_FROM"),
		MailFromName:        os.Getenv("MAIL_FROM_NAME"),
		SMTPHost:            os.Getenv("SMTP_HOST"),
		SMTPPort:            getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername:        os.Getenv("SMTP_USERNAME"),
		SMTPPassword:        os.Getenv("SMTP_PASSWORD"),
		SMTPTLS:             getEnvOrDefault("SMTP_TLS", "opportunistic"),
		AWSRegion:           getEnvOrDefault("AWS_REGION", "us-east-1"),
		AWSAccessKey:        os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:        os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SESConfigurationSet: os.Getenv("SES_CONFIGURATION_SET"),

		BaseURL:           os.Getenv("BASE_URL"),
		SendConcurrency:   getEnvIntOrDefault("SEND_CONCURRENCY", 20),
		SendRatePerSecond: getEnvFloatOrDefault("SEND_RATE_PER_SECOND", 0),

		ArchiveBucket:   os.Getenv("ARCHIVE_BUCKET"),
		ArchivePrefix:   getEnvOrDefault("ARCHIVE_PREFIX", "documents/"),
		ArchiveCompress: getEnvBoolOrDefault("ARCHIVE_COMPRESS", false),

		EnableHTTPMonitoring: getEnvBoolOrDefault("ENABLE_HTTP_MONITORING", false),
		MonitoringPort:       getEnvOrDefault("MONITORING_PORT", "8080"),
		RunInterval:          getEnvDurationOrDefault("RUN_INTERVAL", 0),
	}

	if cfg.TranslatorProvider == "" {
		switch {
		case cfg.TranslatorKey != "":
			cfg.TranslatorProvider = "azure"
		case cfg.GeminiAPIKey != "":
			cfg.TranslatorProvider = "gemini"
		}
	}

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go durations ("90s") or plain seconds.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" && c.NewslettersFile == "" {
		return fmt.Errorf("DATABASE_URL or NEWSLETTERS_FILE is required")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be 'text' or 'json'")
	}
	if c.BrowserMode != "chrome" && c.BrowserMode != "static" {
		return fmt.Errorf("BROWSER must be 'chrome' or 'static'")
	}

	switch c.MailTransport {
	case "smtp":
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required")
		}
		if c.MailFrom == "" {
			return fmt.Errorf("MAIL_FROM is required")
		}
	case "ses":
		if c.MailFrom == "" {
			return fmt.Errorf("MAIL_FROM is required")
		}
	case "log":
	default:
		return fmt.Errorf("MAIL_TRANSPORT must be 'smtp', 'ses' or 'log'")
	}

	switch c.TranslatorProvider {
	case "":
	case "azure":
		if c.TranslatorKey == "" {
			return fmt.Errorf("TRANSLATOR_KEY is required")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	default:
		return fmt.Errorf("TRANSLATOR_PROVIDER must be 'azure' or 'gemini'")
	}

	if c.SendConcurrency < 1 {
		return fmt.Errorf("SEND_CONCURRENCY must be at least 1")
	}
	if c.SendRatePerSecond < 0 {
		return fmt.Errorf("SEND_RATE_PER_SECOND must not be negative")
	}
	if c.FeedRetryAttempts < 1 {
		return fmt.Errorf("FEED_RETRY_ATTEMPTS must be at least 1")
	}
	return nil
}
