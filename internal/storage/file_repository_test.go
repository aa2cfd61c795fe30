package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/inkpost/internal/newsletter"
)

const newslettersYAML = `
newsletters:
  - id: 2
    name: Weekly digest
    feed_url: https://example.com/weekly.xml
    locale: pt-BR
    periodicity: WEEKLY
    day_of_week: "1,5"
    max_posts: 3
    translation_target: en
    translation_mode: FULL
    active: true
  - id: 1
    name: Tech
    feed_url: https://example.com/rss
    locale: en
    periodicity: DAILY
    max_posts: 1
    active: true
  - id: 3
    name: Paused
    feed_url: https://example.com/paused
    locale: en
    max_posts: 1
    active: false
  - id: 4
    name: Broken partial
    feed_url: https://example.com/partial
    locale: en
    partial: true
    max_posts: 1
    active: true
subscribers:
  - id: 1
    email: a@example.com
    device_email: a@kindle.com
  - id: 2
    email: b@example.com
    device_email: b@kindle.com
subscriptions:
  - id: 10
    subscriber_id: 1
    newsletter_id: 1
    token: tok1
    accepted_terms: true
  - id: 11
    subscriber_id: 2
    newsletter_id: 1
    token: tok2
    accepted_terms: true
    pending_confirm: true
`

func TestLoadFileRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newsletters.yaml")
	require.NoError(t, os.WriteFile(path, []byte(newslettersYAML), 0o644))

	repo, err := LoadFileRepository(path, "salt", nil)
	require.NoError(t, err)
	ctx := context.Background()

	active, err := repo.FindActiveNewsletters(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, int64(1), active[0].ID)
	assert.Equal(t, newsletter.Daily, active[0].Periodicity)

	weekly := active[1]
	assert.Equal(t, newsletter.Weekly, weekly.Periodicity)
	assert.Equal(t, newsletter.NewWeekdays(time.Monday, time.Friday), weekly.Weekdays)
	assert.Equal(t, newsletter.Full, weekly.TranslationMode)
	assert.Equal(t, "Windows-1252", weekly.Encoding())

	subs, err := repo.FindEligibleSubscriptions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "tok1", subs[0].Token)

	subscribers, err := repo.FindSubscribersByIDs(ctx, []int64{2, 99})
	require.NoError(t, err)
	require.Len(t, subscribers, 1)
	assert.Equal(t, "b@kindle.com", subscribers[0].DeviceEmail)
}

func TestLoadFileRepositoryErrors(t *testing.T) {
	_, err := LoadFileRepository(filepath.Join(t.TempDir(), "missing.yaml"), "salt", nil)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("newsletters: [\n"), 0o644))
	_, err = LoadFileRepository(path, "salt", nil)
	assert.Error(t, err)
}

const duplicateSubscriptionsYAML = `
newsletters:
  - id: 1
    name: Tech
    feed_url: https://example.com/rss
    locale: en
    periodicity: DAILY
    max_posts: 1
    active: true
subscribers:
  - id: 1
    email: a@example.com
    device_email: a@kindle.com
  - id: 2
    email: b@example.com
    device_email: b@kindle.com
subscriptions:
  - id: 10
    subscriber_id: 1
    newsletter_id: 1
    token: t1
    accepted_terms: true
  - id: 11
    subscriber_id: 1
    newsletter_id: 1
    token: t2
    accepted_terms: true
  - id: 12
    subscriber_id: 2
    newsletter_id: 1
    accepted_terms: true
`

func TestLoadFileRepositoryKeepsFirstSubscriptionPerPair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newsletters.yaml")
	require.NoError(t, os.WriteFile(path, []byte(duplicateSubscriptionsYAML), 0o644))

	repo, err := LoadFileRepository(path, "salt", nil)
	require.NoError(t, err)

	subs, err := repo.FindEligibleSubscriptions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, int64(10), subs[0].ID)
	assert.Equal(t, "t1", subs[0].Token)
	assert.Equal(t, int64(12), subs[1].ID)
}

func TestNewFileRepositoryFillsMissingTokens(t *testing.T) {
	repo := NewFileRepository(FileData{
		Subscriptions: []newsletter.Subscription{
			{ID: 1, SubscriberID: 1, NewsletterID: 7, AcceptedTerms: true},
			{ID: 2, SubscriberID: 2, NewsletterID: 7, Token: "kept", AcceptedTerms: true},
		},
	}, "salt", nil)

	subs, err := repo.FindEligibleSubscriptions(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Len(t, subs[0].Token, 128)
	assert.Equal(t, "kept", subs[1].Token)
}
