package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
)

const defaultMaxSummaryLen = 300

// Enricher fetches an article page and extracts a short readable summary,
// used when the feed entry carries no usable description.
type Enricher struct {
	httpClient    *http.Client
	maxSummaryLen int
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithEnricherTimeout sets the HTTP client timeout.
func WithEnricherTimeout(d time.Duration) EnricherOption {
	return func(e *Enricher) {
		e.httpClient.Timeout = d
	}
}

// WithMaxSummaryLength sets the maximum summary length in runes.
func WithMaxSummaryLength(n int) EnricherOption {
	return func(e *Enricher) {
		e.maxSummaryLen = n
	}
}

// NewEnricher creates a summary enricher.
func NewEnricher(opts ...EnricherOption) *Enricher {
	e := &Enricher{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		maxSummaryLen: defaultMaxSummaryLen,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Summary extracts a short text summary from the article page at rawURL.
func (e *Enricher) Summary(ctx context.Context, rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; NewsBot/1.0)")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", fmt.Errorf("parse content: %w", err)
	}

	summary := strings.TrimSpace(article.Excerpt)
	if summary == "" {
		summary = strings.TrimSpace(article.TextContent)
	}
	return truncateRunes(summary, e.maxSummaryLen), nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "..."
}
