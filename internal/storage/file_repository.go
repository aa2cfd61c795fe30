package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deusflow/inkpost/internal/newsletter"
)

// FileData is the layout of the newsletters YAML file.
type FileData struct {
	Newsletters   []newsletter.Newsletter   `yaml:"newsletters"`
	Subscribers   []newsletter.Subscriber   `yaml:"subscribers"`
	Subscriptions []newsletter.Subscription `yaml:"subscriptions"`
}

// FileRepository serves newsletters and subscriptions from a YAML file
// loaded once at startup.
type FileRepository struct {
	newsletters   []newsletter.Newsletter
	subscribers   map[int64]newsletter.Subscriber
	subscriptions map[int64][]newsletter.Subscription
}

// LoadFileRepository reads and validates the file. Invalid newsletters and
// duplicate subscriptions are logged and left out. Subscriptions without a
// token get one derived from tokenSalt.
func LoadFileRepository(path, tokenSalt string, log *slog.Logger) (*FileRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read newsletters file: %w", err)
	}

	var fd FileData
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("failed to parse newsletters file: %w", err)
	}
	return NewFileRepository(fd, tokenSalt, log), nil
}

func NewFileRepository(fd FileData, tokenSalt string, log *slog.Logger) *FileRepository {
	if log == nil {
		log = slog.Default()
	}

	r := &FileRepository{
		subscribers:   make(map[int64]newsletter.Subscriber, len(fd.Subscribers)),
		subscriptions: make(map[int64][]newsletter.Subscription),
	}
	for _, nl := range fd.Newsletters {
		if err := nl.Validate(); err != nil {
			log.Warn("Skipping newsletter", "newsletter", nl.String(), "error", err)
			continue
		}
		r.newsletters = append(r.newsletters, nl)
	}
	sort.Slice(r.newsletters, func(i, j int) bool { return r.newsletters[i].ID < r.newsletters[j].ID })

	for _, s := range fd.Subscribers {
		r.subscribers[s.ID] = s
	}

	type pair struct{ subscriber, newsletter int64 }
	seen := make(map[pair]int64, len(fd.Subscriptions))
	for _, s := range fd.Subscriptions {
		key := pair{s.SubscriberID, s.NewsletterID}
		if first, dup := seen[key]; dup {
			log.Warn("Skipping duplicate subscription",
				"subscription", s.ID,
				"kept", first,
				"subscriber", s.SubscriberID,
				"newsletter", s.NewsletterID)
			continue
		}
		seen[key] = s.ID

		if strings.TrimSpace(s.Token) == "" {
			s.Token = newsletter.NewToken(tokenSalt, s.SubscriberID, s.NewsletterID)
			log.Info("Generated subscription token", "subscription", s.ID)
		}
		r.subscriptions[s.NewsletterID] = append(r.subscriptions[s.NewsletterID], s)
	}
	return r
}

func (r *FileRepository) FindActiveNewsletters(_ context.Context) ([]newsletter.Newsletter, error) {
	out := make([]newsletter.Newsletter, 0, len(r.newsletters))
	for _, nl := range r.newsletters {
		if nl.Active {
			out = append(out, nl)
		}
	}
	return out, nil
}

func (r *FileRepository) FindEligibleSubscriptions(_ context.Context, newsletterID int64) ([]newsletter.Subscription, error) {
	return newsletter.FilterEligible(r.subscriptions[newsletterID]), nil
}

func (r *FileRepository) FindSubscribersByIDs(_ context.Context, ids []int64) ([]newsletter.Subscriber, error) {
	out := make([]newsletter.Subscriber, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.subscribers[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}
