// Package gemini is a translation provider backed by Google's Gemini models.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/deusflow/inkpost/internal/translate"
)

const defaultModel = "gemini-1.5-flash"

type Client struct {
	client   *genai.Client
	model    string
	generate func(ctx context.Context, prompt string) (string, error)
}

var _ translate.Provider = (*Client)(nil)

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = defaultModel
	}

	c := &Client{client: client, model: model}
	c.generate = c.generateContent
	return c, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *Client) generateContent(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.1)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from Gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

// BreakSentences splits locally; Gemini has no sentence-boundary endpoint.
func (c *Client) BreakSentences(_ context.Context, text, _ string) ([]int, error) {
	return translate.SentenceLengths(text), nil
}

func (c *Client) Translate(ctx context.Context, texts []string, source, target string, format translate.Format) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var input bytes.Buffer
	enc := json.NewEncoder(&input)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(texts); err != nil {
		return nil, err
	}

	prompt := buildPrompt(strings.TrimSpace(input.String()), len(texts), source, target, format)
	resp, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseTranslations(resp, len(texts))
}

func buildPrompt(input string, n int, source, target string, format translate.Format) string {
	kind := "plain text"
	rules := "Keep line breaks."
	if format == translate.FormatHTML {
		kind = "HTML fragments"
		rules = "Keep every tag and attribute exactly as it is and translate only the text between tags. Do not add or close tags."
	}
	from := source
	if from == "" {
		from = "the detected source language"
	}

	return fmt.Sprintf(`Translate each element of the JSON array below from %s to %s.
The elements are %s. %s
Do not translate proper names of people, brands or organisations.
Reply with a JSON array of exactly %d strings, in the same order, and nothing else.

%s`, from, target, kind, rules, n, input)
}

// parseTranslations decodes the model's JSON array, tolerating a fenced
// code block around it.
func parseTranslations(resp string, want int) ([]string, error) {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	if start := strings.Index(resp, "["); start > 0 {
		resp = resp[start:]
	}
	if end := strings.LastIndex(resp, "]"); end >= 0 && end < len(resp)-1 {
		resp = resp[:end+1]
	}

	var out []string
	if err := json.Unmarshal([]byte(resp), &out); err != nil {
		return nil, fmt.Errorf("failed to parse Gemini response: %w", err)
	}
	if len(out) != want {
		return nil, fmt.Errorf("gemini returned %d translations for %d texts", len(out), want)
	}
	return out, nil
}
