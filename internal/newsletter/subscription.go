package newsletter

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
)

const (
	tokenIterations = 1000
	tokenKeyLength  = 64
)

// Subscription links a subscriber to a newsletter. Token is a secret and is
// never serialized.
type Subscription struct {
	ID             int64  `json:"id" yaml:"id"`
	SubscriberID   int64  `json:"subscriberId" yaml:"subscriber_id"`
	NewsletterID   int64  `json:"newsletterId" yaml:"newsletter_id"`
	Token          string `json:"-" yaml:"token"`
	AcceptedTerms  bool   `json:"acceptedTerms" yaml:"accepted_terms"`
	PendingConfirm bool   `json:"pendingConfirm" yaml:"pending_confirm"`
}

// Eligible reports whether the subscription may receive deliveries.
func (s Subscription) Eligible() bool {
	return !s.PendingConfirm && s.AcceptedTerms
}

// FilterEligible keeps eligible subscriptions in their original order.
func FilterEligible(subs []Subscription) []Subscription {
	out := make([]Subscription, 0, len(subs))
	for _, s := range subs {
		if s.Eligible() {
			out = append(out, s)
		}
	}
	return out
}

// Subscriber is the recipient side of a subscription.
type Subscriber struct {
	ID          int64  `json:"id" yaml:"id"`
	Email       string `json:"email" yaml:"email"`
	DeviceEmail string `json:"deviceEmail" yaml:"device_email"`
}

// NewToken derives an opaque subscription token.
func NewToken(salt string, subscriberID, newsletterID int64) string {
	seed := fmt.Sprintf("%s-%d-%d-%s-%s",
		uuid.NewString(), subscriberID, newsletterID, time.Now().UTC().Format(time.RFC3339Nano), uuid.NewString())
	key := pbkdf2.Key([]byte(seed), []byte(salt), tokenIterations, tokenKeyLength, sha512.New)
	return hex.EncodeToString(key)
}

// UnsubscribeLink is embedded in every delivered document.
func UnsubscribeLink(baseURL, token string) string {
	return fmt.Sprintf("%s/public/subscriptions/unsubscribe?token=%s",
		strings.TrimRight(baseURL, "/"), url.QueryEscape(token))
}
