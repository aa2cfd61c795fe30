package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Format tells the provider how to treat the submitted text.
type Format string

const (
	FormatHTML  Format = "html"
	FormatPlain Format = "plain"
)

// Provider is a machine translation backend.
type Provider interface {
	// BreakSentences returns the rune length of each consecutive sentence in text.
	BreakSentences(ctx context.Context, text, sourceLocale string) ([]int, error)
	// Translate returns one translation per input text, in order.
	Translate(ctx context.Context, texts []string, source, target string, format Format) ([]string, error)
}

// AzureConfig holds the Translator Text API settings.
type AzureConfig struct {
	BaseURL               string
	Key                   string
	Region                string
	TranslateEndpoint     string
	BreakSentenceEndpoint string
	Timeout               time.Duration
}

// AzureProvider talks to the Translator Text API v3.
type AzureProvider struct {
	cfg    AzureConfig
	client *http.Client
}

func NewAzureProvider(cfg AzureConfig, client *http.Client) *AzureProvider {
	if cfg.TranslateEndpoint == "" {
		cfg.TranslateEndpoint = "translate"
	}
	if cfg.BreakSentenceEndpoint == "" {
		cfg.BreakSentenceEndpoint = "breaksentence"
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &AzureProvider{cfg: cfg, client: client}
}

type textItem struct {
	Text string `json:"Text"`
}

type breakSentenceResult struct {
	SentLen []int `json:"sentLen"`
}

type translateResult struct {
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *AzureProvider) BreakSentences(ctx context.Context, text, sourceLocale string) ([]int, error) {
	q := url.Values{}
	q.Set("api-version", "3.0")
	if sourceLocale != "" {
		q.Set("language", sourceLocale)
	}

	var res []breakSentenceResult
	if err := p.post(ctx, p.cfg.BreakSentenceEndpoint, q, []textItem{{Text: text}}, &res); err != nil {
		return nil, fmt.Errorf("break sentences: %w", err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("break sentences: empty response")
	}
	return res[0].SentLen, nil
}

func (p *AzureProvider) Translate(ctx context.Context, texts []string, source, target string, format Format) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	q := url.Values{}
	q.Set("api-version", "3.0")
	q.Set("to", target)
	if source != "" {
		q.Set("from", source)
	}
	q.Set("textType", string(format))

	body := make([]textItem, len(texts))
	for i, t := range texts {
		body[i] = textItem{Text: t}
	}

	var res []translateResult
	if err := p.post(ctx, p.cfg.TranslateEndpoint, q, body, &res); err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	if len(res) != len(texts) {
		return nil, fmt.Errorf("translate: got %d results for %d texts", len(res), len(texts))
	}

	out := make([]string, len(res))
	for i, r := range res {
		if len(r.Translations) == 0 {
			return nil, fmt.Errorf("translate: no translation for text %d", i)
		}
		out[i] = r.Translations[0].Text
	}
	return out, nil
}

func (p *AzureProvider) post(ctx context.Context, endpoint string, q url.Values, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	u := strings.TrimRight(p.cfg.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/") + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.Key)
	if p.cfg.Region != "" {
		req.Header.Set("Ocp-Apim-Subscription-Region", p.cfg.Region)
	}
	req.Header.Set("X-ClientTraceId", uuid.NewString())

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("status %d: %s (code %d)", resp.StatusCode, apiErr.Error.Message, apiErr.Error.Code)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
