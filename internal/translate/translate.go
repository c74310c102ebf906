// Package translate attaches translated revision comments for display.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// ErrDisabled is returned by NewHTTP when no endpoint is configured.
var ErrDisabled = errors.New("translation disabled")

// Translator converts text between languages.
type Translator interface {
	Translate(ctx context.Context, text string, source, target language.Tag) (string, error)
}

// HTTP calls a JSON translation endpoint:
// POST {"text","source","target"} -> {"translated_text"}.
type HTTP struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTP(endpoint string, timeout time.Duration) (*HTTP, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, ErrDisabled
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTP{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}, nil
}

type request struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type response struct {
	TranslatedText string `json:"translated_text"`
}

func (h *HTTP) Translate(ctx context.Context, text string, source, target language.Tag) (string, error) {
	body, err := json.Marshal(request{Text: text, Source: source.String(), Target: target.String()})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("translate: decode response: %w", err)
	}
	if strings.TrimSpace(out.TranslatedText) == "" {
		return "", errors.New("translate: empty translation")
	}
	return out.TranslatedText, nil
}

// ParseTag normalizes a language parameter such as "en", "en-us" or "pt_BR".
func ParseTag(value string) (language.Tag, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), "_", "-")
	if value == "" {
		return language.Und, fmt.Errorf("language is required")
	}
	tag, err := language.Parse(value)
	if err != nil {
		return language.Und, fmt.Errorf("invalid language %q: %w", value, err)
	}
	return tag, nil
}

// FromAcceptLanguage returns the highest weighted tag in an Accept-Language header.
func FromAcceptLanguage(header string) (language.Tag, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return language.Und, false
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return language.Und, false
	}
	return tags[0], true
}

// SameLanguage reports whether a and b share a base language, so "ko" and "ko-KR"
// need no translation.
func SameLanguage(a, b language.Tag) bool {
	ab, _ := a.Base()
	bb, _ := b.Base()
	return ab == bb
}
