// Package newsletter holds the configuration and subscription model shared by
// every pipeline stage.
package newsletter

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidConfig = errors.New("invalid newsletter configuration")

// Periodicity decides which feed entries are due on a run.
type Periodicity int

const (
	Last Periodicity = iota + 1
	Daily
	Weekly
)

func (p Periodicity) String() string {
	switch p {
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	default:
		return "LAST"
	}
}

// ParsePeriodicity accepts the numeric code or the name. Unknown values map to Last.
func ParsePeriodicity(s string) Periodicity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "2", "DAILY":
		return Daily
	case "3", "WEEKLY":
		return Weekly
	default:
		return Last
	}
}

func (p Periodicity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Periodicity) UnmarshalText(b []byte) error {
	*p = ParsePeriodicity(string(b))
	return nil
}

// TranslationMode controls how translated text is combined with the original.
type TranslationMode int

const (
	Full TranslationMode = iota + 1
	Bilingual
)

func (m TranslationMode) String() string {
	switch m {
	case Full:
		return "FULL"
	case Bilingual:
		return "BILINGUAL"
	default:
		return "UNKNOWN"
	}
}

func (m TranslationMode) Valid() bool {
	return m == Full || m == Bilingual
}

func ParseTranslationMode(s string) TranslationMode {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "1", "FULL":
		return Full
	case "2", "BILINGUAL":
		return Bilingual
	default:
		return 0
	}
}

func (m TranslationMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *TranslationMode) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*m = 0
		return nil
	}
	parsed := ParseTranslationMode(string(b))
	if parsed == 0 {
		return fmt.Errorf("unknown translation mode %q", string(b))
	}
	*m = parsed
	return nil
}

// Weekdays is a set of days of the week. It is stored as comma separated
// digits with 0 for Sunday, e.g. "1,3,5".
type Weekdays uint8

func NewWeekdays(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		if d >= time.Sunday && d <= time.Saturday {
			w |= 1 << uint(d)
		}
	}
	return w
}

func ParseWeekdays(s string) (Weekdays, error) {
	var w Weekdays
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return 0, fmt.Errorf("invalid weekday %q", part)
		}
		w |= 1 << uint(n)
	}
	return w, nil
}

func (w Weekdays) Empty() bool { return w == 0 }

func (w Weekdays) Contains(d time.Weekday) bool {
	return w&(1<<uint(d)) != 0
}

func (w Weekdays) Days() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Contains(d) {
			days = append(days, d)
		}
	}
	return days
}

func (w Weekdays) String() string {
	days := w.Days()
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

func (w Weekdays) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *Weekdays) UnmarshalText(b []byte) error {
	parsed, err := ParseWeekdays(string(b))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Newsletter is the read-only configuration of one feed-to-device newsletter.
type Newsletter struct {
	ID                int64           `json:"id" yaml:"id"`
	Name              string          `json:"name" yaml:"name"`
	FeedURL           string          `json:"feedUrl" yaml:"feed_url"`
	Website           string          `json:"website,omitempty" yaml:"website"`
	Author            string          `json:"author,omitempty" yaml:"author"`
	Subject           string          `json:"subject,omitempty" yaml:"subject"`
	Partial           bool            `json:"partial" yaml:"partial"`
	ArticleSelector   string          `json:"articleSelector,omitempty" yaml:"article_selector"`
	Locale            string          `json:"locale" yaml:"locale"`
	Periodicity       Periodicity     `json:"periodicity" yaml:"periodicity"`
	Weekdays          Weekdays        `json:"dayOfWeek" yaml:"day_of_week"`
	MaxPosts          int             `json:"maxPosts" yaml:"max_posts"`
	TranslationTarget string          `json:"translationTarget,omitempty" yaml:"translation_target"`
	TranslationMode   TranslationMode `json:"translationMode,omitempty" yaml:"translation_mode"`
	IncludeImages     bool            `json:"includeImgs" yaml:"include_images"`
	UseReadable       bool            `json:"useReadable" yaml:"use_readable"`
	Active            bool            `json:"active" yaml:"active"`
}

// Validate reports configurations the pipeline cannot process.
func (n Newsletter) Validate() error {
	var problems []string
	if strings.TrimSpace(n.FeedURL) == "" {
		problems = append(problems, "feed url is required")
	}
	if strings.TrimSpace(n.Locale) == "" {
		problems = append(problems, "locale is required")
	}
	if n.Partial && strings.TrimSpace(n.ArticleSelector) == "" {
		problems = append(problems, "partial feeds need an article selector")
	}
	if n.MaxPosts < 1 {
		problems = append(problems, "max posts must be at least 1")
	}
	if n.TranslationTarget != "" && !n.TranslationMode.Valid() {
		problems = append(problems, "translation mode must be FULL or BILINGUAL")
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%w %d (%s): %s", ErrInvalidConfig, n.ID, n.Name, strings.Join(problems, "; "))
}

// Encoding is the charset of the rendered document.
func (n Newsletter) Encoding() string {
	switch strings.ToLower(n.Locale) {
	case "pt-br", "en-us":
		return "Windows-1252"
	default:
		return "UTF-8"
	}
}

// Language returns the primary subtag of the newsletter locale.
func (n Newsletter) Language() string {
	return PrimaryLanguage(n.Locale)
}

func (n Newsletter) MustBeTranslated() bool {
	return strings.TrimSpace(n.TranslationTarget) != ""
}

func (n Newsletter) MustBeScraped() bool {
	return n.Partial
}

func (n Newsletter) String() string {
	return fmt.Sprintf("%d (%s)", n.ID, n.Name)
}

// PrimaryLanguage turns "pt-BR" or "pt_BR" into "pt".
func PrimaryLanguage(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		return locale[:i]
	}
	return locale
}
