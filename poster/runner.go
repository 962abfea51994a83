package poster

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"news-telegram-bot/feed"
)

// ThumbnailFinder resolves an article to a thumbnail image URL, or "" when
// none is found.
type ThumbnailFinder interface {
	Resolve(ctx context.Context, a feed.Article) string
}

// ImageFetcher downloads an image and returns bytes fit for delivery.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// SummaryEnricher extracts a summary from an article page.
type SummaryEnricher interface {
	Summary(ctx context.Context, url string) (string, error)
}

// Sender delivers one formatted article, with an optional image.
type Sender interface {
	SendArticle(ctx context.Context, a feed.Article, image []byte) error
}

// Summary reports what a run did.
type Summary struct {
	Posted                  int
	SkippedOld              int
	SkippedDuplicateURL     int
	SkippedDuplicateContent int
	Failed                  int
}

// Runner drives one batch run over the feed entries.
type Runner struct {
	deduper    Deduper
	thumbnails ThumbnailFinder
	images     ImageFetcher
	enricher   SummaryEnricher
	sender     Sender

	maxEntries int
	postDelay  time.Duration
	maxAge     time.Duration
	sleep      func(time.Duration)
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxEntries caps how many feed entries one run examines.
func WithMaxEntries(n int) Option {
	return func(r *Runner) {
		r.maxEntries = n
	}
}

// WithPostDelay sets the pause between consecutive successful posts.
func WithPostDelay(d time.Duration) Option {
	return func(r *Runner) {
		r.postDelay = d
	}
}

// WithMaxAge sets the freshness window; zero disables it.
func WithMaxAge(d time.Duration) Option {
	return func(r *Runner) {
		r.maxAge = d
	}
}

// NewRunner creates a run driver.
func NewRunner(
	deduper Deduper,
	thumbnails ThumbnailFinder,
	images ImageFetcher,
	enricher SummaryEnricher,
	sender Sender,
	opts ...Option,
) *Runner {
	r := &Runner{
		deduper:    deduper,
		thumbnails: thumbnails,
		images:     images,
		enricher:   enricher,
		sender:     sender,
		maxEntries: 10,
		postDelay:  2 * time.Second,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes articles in feed order. Each entry is filtered, and posts
// are enriched, delivered, and recorded one at a time. Entry-level failure
// is logged and the loop continues; the next scheduled invocation is the
// retry mechanism.
func (r *Runner) Run(ctx context.Context, articles []feed.Article) Summary {
	if len(articles) > r.maxEntries {
		articles = articles[:r.maxEntries]
	}
	slog.Info("starting run", "entries", len(articles))

	var sum Summary
	for _, a := range articles {
		decision := ShouldPost(a, r.deduper, time.Now(), r.maxAge)
		switch decision {
		case SkipDuplicateURL:
			sum.SkippedDuplicateURL++
			slog.Info("already posted", "url", a.URL)
			continue
		case SkipOld:
			sum.SkippedOld++
			slog.Info("skipping stale article", "url", a.URL, "published_at", a.PublishedAt)
			continue
		case SkipDuplicateContent:
			sum.SkippedDuplicateContent++
			slog.Info("same story already posted under another URL", "url", a.URL, "title", a.Title)
			continue
		}

		if sum.Posted > 0 && r.postDelay > 0 {
			r.sleep(r.postDelay)
		}

		if err := r.post(ctx, a); err != nil {
			sum.Failed++
			slog.Warn("failed to post article", "url", a.URL, "error", err)
			continue
		}
		sum.Posted++
		slog.Info("posted article", "url", a.URL, "title", a.Title)
	}

	slog.Info("run complete",
		"posted", sum.Posted,
		"skipped_old", sum.SkippedOld,
		"skipped_duplicate_url", sum.SkippedDuplicateURL,
		"skipped_duplicate_content", sum.SkippedDuplicateContent,
		"failed", sum.Failed)
	return sum
}

func (r *Runner) post(ctx context.Context, a feed.Article) error {
	// The stored fingerprint must match what the filter computes from feed
	// data on later runs, so record the pre-enrichment summary.
	feedSummary := a.Summary

	if strings.TrimSpace(a.Summary) == "" && r.enricher != nil {
		summary, err := r.enricher.Summary(ctx, a.URL)
		if err != nil {
			slog.Warn("summary enrichment failed", "url", a.URL, "error", err)
		} else {
			a.Summary = summary
		}
	}

	var image []byte
	if r.thumbnails != nil && r.images != nil {
		if imageURL := r.thumbnails.Resolve(ctx, a); imageURL != "" {
			data, err := r.images.Fetch(ctx, imageURL)
			if err != nil {
				slog.Warn("thumbnail download failed", "url", imageURL, "error", err)
			} else {
				image = data
			}
		}
	}

	if err := r.sender.SendArticle(ctx, a, image); err != nil {
		return err
	}

	// Persist immediately so a mid-run crash cannot re-post this article.
	r.deduper.MarkPosted(a.URL, a.Title, feedSummary, time.Now())
	if err := r.deduper.Save(); err != nil {
		slog.Warn("failed to persist state", "error", err)
	}
	return nil
}
