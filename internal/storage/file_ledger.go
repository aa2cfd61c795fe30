package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// SentPost is one ledger record.
type SentPost struct {
	NewsletterID int64     `json:"newsletter_id"`
	PostKey      string    `json:"post_key"`
	Link         string    `json:"link"`
	SentAt       time.Time `json:"sent_at"`
}

// FileLedger keeps delivered posts in a JSON file. Changes are written back
// on every mark.
type FileLedger struct {
	filePath string
	ttl      time.Duration
	items    map[string]SentPost
	mu       sync.RWMutex
	now      func() time.Time
}

func NewFileLedger(filePath string, ttl time.Duration) *FileLedger {
	return &FileLedger{
		filePath: filePath,
		ttl:      ttl,
		items:    make(map[string]SentPost),
		now:      time.Now,
	}
}

func ledgerKey(newsletterID int64, postKey string) string {
	return strconv.FormatInt(newsletterID, 10) + ":" + postKey
}

// Load reads the file, dropping expired records. A missing file is an empty
// ledger.
func (l *FileLedger) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var items []SentPost
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to unmarshal ledger: %w", err)
	}
	for _, item := range items {
		if !l.expired(item) {
			l.items[ledgerKey(item.NewsletterID, item.PostKey)] = item
		}
	}
	return nil
}

// Save writes the ledger atomically through a temp file.
func (l *FileLedger) Save() error {
	l.mu.RLock()
	items := make([]SentPost, 0, len(l.items))
	for _, item := range l.items {
		items = append(items, item)
	}
	l.mu.RUnlock()

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	if dir := filepath.Dir(l.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create ledger dir: %w", err)
		}
	}
	tmp := l.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	if err := os.Rename(tmp, l.filePath); err != nil {
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}

func (l *FileLedger) expired(item SentPost) bool {
	return l.ttl > 0 && item.SentAt.Before(l.now().Add(-l.ttl))
}

func (l *FileLedger) Delivered(_ context.Context, newsletterID int64, postKey string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	item, ok := l.items[ledgerKey(newsletterID, postKey)]
	return ok && !l.expired(item), nil
}

func (l *FileLedger) MarkDelivered(_ context.Context, newsletterID int64, postKey, link string) error {
	l.mu.Lock()
	l.items[ledgerKey(newsletterID, postKey)] = SentPost{
		NewsletterID: newsletterID,
		PostKey:      postKey,
		Link:         link,
		SentAt:       l.now(),
	}
	l.mu.Unlock()

	return l.Save()
}

// Cleanup removes expired records from memory.
func (l *FileLedger) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, item := range l.items {
		if l.expired(item) {
			delete(l.items, key)
			removed++
		}
	}
	return removed
}

func (l *FileLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
