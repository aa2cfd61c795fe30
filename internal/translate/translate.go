package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/deusflow/inkpost/internal/cache"
	"github.com/deusflow/inkpost/internal/news"
	"github.com/deusflow/inkpost/internal/newsletter"
	"github.com/deusflow/inkpost/internal/ratelimit"
)

var (
	ErrSizeLimit     = errors.New("maximum character limit for translation exceeded")
	ErrQuotaExceeded = ratelimit.ErrQuotaExceeded
)

// Options bound the size of translation work.
type Options struct {
	// RequestBudget is the most characters sent in one provider request.
	RequestBudget int
	// MaxCharacters is the ceiling for any single field of a post.
	MaxCharacters int
}

func (o Options) withDefaults() Options {
	if o.RequestBudget <= 0 {
		o.RequestBudget = 10000
	}
	if o.MaxCharacters <= 0 {
		o.MaxCharacters = 50000
	}
	return o
}

// Translator translates posts through a Provider, chunking content so
// no request exceeds the provider's budget.
type Translator struct {
	provider Provider
	opts     Options
	cache    *cache.Cache[string]
	quota    *ratelimit.TranslationQuota
	log      *slog.Logger
}

func New(provider Provider, opts Options, c *cache.Cache[string], quota *ratelimit.TranslationQuota, log *slog.Logger) *Translator {
	if log == nil {
		log = slog.Default()
	}
	return &Translator{
		provider: provider,
		opts:     opts.withDefaults(),
		cache:    c,
		quota:    quota,
		log:      log,
	}
}

// Translate returns a translated copy of post. Posts of newsletters without
// a translation target are returned unchanged.
func (t *Translator) Translate(ctx context.Context, post news.Post, nl newsletter.Newsletter) (news.Post, error) {
	if !nl.MustBeTranslated() {
		return post, nil
	}
	source, target := nl.Locale, nl.TranslationTarget
	mode := nl.TranslationMode
	if !mode.Valid() {
		mode = newsletter.Full
	}

	for _, field := range []*string{post.HTMLContent, post.Content} {
		if field != nil && utf8.RuneCountInString(*field) > t.opts.MaxCharacters {
			return post, fmt.Errorf("%w: %d > %d", ErrSizeLimit, utf8.RuneCountInString(*field), t.opts.MaxCharacters)
		}
	}

	title, err := t.translateSegments(ctx, splitOversize(post.Title, t.opts.RequestBudget), source, target, FormatPlain, newsletter.Full)
	if err != nil {
		return post, fmt.Errorf("translate title: %w", err)
	}

	var htmlOut, textOut *string
	if post.HTMLContent != nil && strings.TrimSpace(*post.HTMLContent) != "" {
		lengths, err := t.provider.BreakSentences(ctx, *post.HTMLContent, source)
		if err != nil {
			return post, fmt.Errorf("translate content: %w", err)
		}
		segments := BreakHTMLSentences(*post.HTMLContent, lengths, t.opts.RequestBudget)
		out, err := t.translateSegments(ctx, segments, source, target, FormatHTML, mode)
		if err != nil {
			return post, fmt.Errorf("translate content: %w", err)
		}
		htmlOut = &out
	}
	if post.Content != nil && strings.TrimSpace(*post.Content) != "" {
		var segments []string
		for _, line := range SplitLines(*post.Content) {
			segments = append(segments, splitOversize(line, t.opts.RequestBudget)...)
		}
		out, err := t.translateSegments(ctx, segments, source, target, FormatPlain, mode)
		if err != nil {
			return post, fmt.Errorf("translate text: %w", err)
		}
		textOut = &out
	}

	if mode == newsletter.Bilingual {
		original := post.Title
		post.OriginalTitle = &original
	} else {
		post.Locale = target
	}
	post.Title = title
	if htmlOut != nil {
		post.HTMLContent = htmlOut
	}
	if textOut != nil {
		post.Content = textOut
	}

	t.log.Debug("post translated", "post", post.Link, "source", source, "target", target, "mode", mode.String())
	return post, nil
}

// segment is one unit of reassembly. Blank segments are copied through
// without being sent; trailing line breaks are kept out of the request.
type segment struct {
	core   string
	suffix string
	send   bool
}

func (t *Translator) translateSegments(ctx context.Context, raw []string, source, target string, format Format, mode newsletter.TranslationMode) (string, error) {
	segs := make([]segment, len(raw))
	var texts []string
	for i, r := range raw {
		if strings.TrimSpace(r) == "" {
			segs[i] = segment{core: r}
			continue
		}
		core := r
		if format == FormatPlain {
			core = strings.TrimRight(r, "\r\n")
		}
		segs[i] = segment{core: core, suffix: r[len(core):], send: true}
		texts = append(texts, core)
	}

	translated, err := t.translateAll(ctx, texts, source, target, format)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	next := 0
	for _, s := range segs {
		if !s.send {
			b.WriteString(s.core)
			continue
		}
		tr := translated[next]
		next++
		if mode == newsletter.Bilingual {
			b.WriteString(s.core)
			b.WriteString(s.suffix)
		}
		b.WriteString(tr)
		b.WriteString(s.suffix)
	}
	return b.String(), nil
}

// translateAll translates texts, each already within budget, serving
// repeated texts from the cache and packing the rest into requests.
func (t *Translator) translateAll(ctx context.Context, texts []string, source, target string, format Format) ([]string, error) {
	out := make([]string, len(texts))
	var pending []int
	for i, text := range texts {
		if t.cache != nil {
			if v, ok := t.cache.Get(cache.Key(source, target, string(format), text)); ok {
				out[i] = v
				t.quota.RecordCacheHit(utf8.RuneCountInString(text))
				continue
			}
		}
		pending = append(pending, i)
	}

	size := func(i int) int { return utf8.RuneCountInString(texts[i]) }
	for _, group := range packBy(pending, size, t.opts.RequestBudget) {
		chunk := make(Chunk, len(group))
		for j, i := range group {
			chunk[j] = texts[i]
		}
		if err := t.quota.Reserve(chunk.Size()); err != nil {
			return nil, err
		}
		res, err := t.provider.Translate(ctx, chunk, source, target, format)
		if err != nil {
			return nil, err
		}
		if len(res) != len(chunk) {
			return nil, fmt.Errorf("provider returned %d translations for %d texts", len(res), len(chunk))
		}
		for j, i := range group {
			out[i] = res[j]
			if t.cache != nil {
				t.cache.Set(cache.Key(source, target, string(format), texts[i]), res[j])
			}
		}
	}
	return out, nil
}
