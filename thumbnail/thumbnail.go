// Package thumbnail guesses a representative image URL for an article,
// using feed-provided hints first and falling back to scraping the article
// page. Every path is best-effort: failure means "no thumbnail", never an
// error for the caller.
package thumbnail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"news-telegram-bot/feed"
)

const userAgent = "Mozilla/5.0 (compatible; NewsBot/1.0)"

// Finder resolves articles to thumbnail URLs.
type Finder struct {
	httpClient *http.Client
	ytBase     string
}

// Option configures a Finder.
type Option func(*Finder)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Finder) {
		f.httpClient.Timeout = d
	}
}

// withYouTubeBase overrides the YouTube image host. Tests only.
func withYouTubeBase(base string) Option {
	return func(f *Finder) {
		f.ytBase = base
	}
}

// NewFinder creates a thumbnail finder.
func NewFinder(opts ...Option) *Finder {
	f := &Finder{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		ytBase:     "https://i.ytimg.com",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Resolve returns a thumbnail image URL for the article, or "" when none
// can be found.
func (f *Finder) Resolve(ctx context.Context, a feed.Article) string {
	switch a.Source {
	case feed.SourceYouTube:
		return f.youtubeThumbnail(ctx, a)
	case feed.SourceGoogleNews:
		// Google News carries images inline; its article links redirect
		// through a consent wall, so page scraping is pointless.
		if a.MediaURL != "" {
			return a.MediaURL
		}
		return a.EnclosureURL
	default:
		if a.EnclosureURL != "" {
			return a.EnclosureURL
		}
		if a.MediaURL != "" {
			return a.MediaURL
		}
		return f.fromArticlePage(ctx, a.URL)
	}
}

// youtubeThumbnail walks the i.ytimg.com quality ladder, highest first, and
// falls back to whatever media thumbnail the feed supplied.
func (f *Finder) youtubeThumbnail(ctx context.Context, a feed.Article) string {
	if a.VideoID != "" {
		for _, quality := range []string{"maxresdefault", "sddefault", "hqdefault"} {
			candidate := fmt.Sprintf("%s/vi/%s/%s.jpg", f.ytBase, a.VideoID, quality)
			if f.headOK(ctx, candidate) {
				return candidate
			}
		}
	}
	return a.MediaURL
}

func (f *Finder) headOK(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// fromArticlePage fetches the article page and looks for a featured image:
// og:image meta, then twitter:image meta, then featured or content images.
func (f *Finder) fromArticlePage(ctx context.Context, articleURL string) string {
	if articleURL == "" {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		slog.Warn("failed to fetch article page", "url", articleURL, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("article page returned non-OK status", "url", articleURL, "status", resp.StatusCode)
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		slog.Warn("failed to parse article page", "url", articleURL, "error", err)
		return ""
	}

	return imageFromDocument(doc)
}

func imageFromDocument(doc *goquery.Document) string {
	if content, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok && content != "" {
		return content
	}
	if content, ok := doc.Find(`meta[name="twitter:image"]`).First().Attr("content"); ok && content != "" {
		return content
	}

	// Featured image, common on WordPress sites.
	featured := doc.Find(".wp-post-image, .featured-image img, article img, .entry-content img").First()
	if src, ok := featured.Attr("src"); ok && usableImageURL(src) {
		return src
	}

	// First reasonably sized content image.
	var found string
	doc.Find("article img, .entry-content img, .post-content img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			src, _ = sel.Attr("data-src")
		}
		if !usableImageURL(src) {
			return true
		}
		if dimensionAtLeast(sel, 300) {
			found = src
			return false
		}
		return true
	})
	return found
}

// usableImageURL rejects placeholders and tracking pixels.
func usableImageURL(src string) bool {
	if src == "" {
		return false
	}
	lower := strings.ToLower(src)
	return !strings.Contains(lower, "placeholder") && !strings.Contains(lower, "1x1")
}

// dimensionAtLeast reports whether either declared dimension reaches min.
// Images with no declared dimensions pass: absent metadata is no reason to
// reject a candidate.
func dimensionAtLeast(sel *goquery.Selection, min int) bool {
	width, wok := sel.Attr("width")
	height, hok := sel.Attr("height")
	if !wok && !hok {
		return true
	}
	if w, err := strconv.Atoi(width); err == nil && w >= min {
		return true
	}
	if h, err := strconv.Atoi(height); err == nil && h >= min {
		return true
	}
	return false
}
