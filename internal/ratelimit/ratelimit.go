package ratelimit

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrQuotaExceeded = errors.New("translation quota exceeded")

// TranslationQuota caps how many characters and requests the translation
// provider may consume per day. Zero limits mean unlimited.
type TranslationQuota struct {
	mu          sync.Mutex
	characters  int
	requests    int
	maxChars    int
	maxRequests int
	cacheHits   int
	cacheMisses int
	charsSaved  int
	resetTime   time.Time
	resetEvery  time.Duration
	now         func() time.Time
	log         *slog.Logger
}

// NewTranslationQuota creates a quota that resets daily.
func NewTranslationQuota(maxChars, maxRequests int, log *slog.Logger) *TranslationQuota {
	if log == nil {
		log = slog.Default()
	}
	q := &TranslationQuota{
		maxChars:    maxChars,
		maxRequests: maxRequests,
		resetEvery:  24 * time.Hour,
		now:         time.Now,
		log:         log,
	}
	q.resetTime = q.now().Add(q.resetEvery)
	return q
}

// Reserve accounts for one provider request of chars characters.
func (q *TranslationQuota) Reserve(chars int) error {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.checkReset()

	if q.maxRequests > 0 && q.requests >= q.maxRequests {
		return fmt.Errorf("%w: %d/%d requests", ErrQuotaExceeded, q.requests, q.maxRequests)
	}
	if q.maxChars > 0 && q.characters+chars > q.maxChars {
		return fmt.Errorf("%w: %d+%d/%d characters", ErrQuotaExceeded, q.characters, chars, q.maxChars)
	}

	q.requests++
	q.characters += chars
	q.cacheMisses++

	q.log.Debug("translation usage", "characters", q.characters, "max_characters", q.maxChars, "requests", q.requests)
	return nil
}

// RecordCacheHit records a chunk served from cache instead of the provider.
func (q *TranslationQuota) RecordCacheHit(chars int) {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.cacheHits++
	q.charsSaved += chars
}

func (q *TranslationQuota) cacheHitRate() float64 {
	total := q.cacheHits + q.cacheMisses
	if total == 0 {
		return 0
	}
	return float64(q.cacheHits) / float64(total) * 100
}

// GetStats returns current quota statistics
func (q *TranslationQuota) GetStats() map[string]interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statsLocked()
}

func (q *TranslationQuota) statsLocked() map[string]interface{} {
	return map[string]interface{}{
		"characters_used":  q.characters,
		"characters_limit": q.maxChars,
		"requests_used":    q.requests,
		"requests_limit":   q.maxRequests,
		"cache_hits":       q.cacheHits,
		"cache_misses":     q.cacheMisses,
		"cache_hit_rate":   q.cacheHitRate(),
		"characters_saved": q.charsSaved,
		"reset_time":       q.resetTime,
	}
}

// checkReset resets counters if reset time has passed
func (q *TranslationQuota) checkReset() {
	if !q.now().After(q.resetTime) {
		return
	}
	stats := q.statsLocked()
	q.log.Info("resetting translation quota",
		"characters_used", stats["characters_used"],
		"requests_used", stats["requests_used"],
		"cache_hit_rate", stats["cache_hit_rate"])

	q.characters = 0
	q.requests = 0
	q.cacheHits = 0
	q.cacheMisses = 0
	q.charsSaved = 0
	q.resetTime = q.now().Add(q.resetEvery)
}
