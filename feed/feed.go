// Package feed fetches an RSS/Atom feed and resolves its items into the
// uniform Article shape the rest of the pipeline works with. All optional
// field handling happens here, once per item; downstream code never queries
// raw feed fields.
package feed

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
)

// SourceKind identifies the feed flavor, which changes where thumbnails
// are found.
type SourceKind int

const (
	SourceGeneric SourceKind = iota
	SourceYouTube
	SourceGoogleNews
)

// Article is one feed entry resolved into the uniform candidate shape.
// PublishedAt is nil when no date field could be parsed.
type Article struct {
	Title       string
	URL         string
	Summary     string
	Category    string
	PublishedAt *time.Time

	// Thumbnail hints resolved at ingestion.
	Source       SourceKind
	EnclosureURL string
	MediaURL     string
	VideoID      string
}

// Fetcher retrieves and parses feeds.
type Fetcher struct {
	parser  *gofeed.Parser
	timeout time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// NewFetcher creates a feed fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		parser:  gofeed.NewParser(),
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves feedURL and resolves its items in feed order.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]Article, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	parsed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	kind := detectKind(feedURL)
	articles := make([]Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		articles = append(articles, resolveItem(item, kind))
	}
	return articles, nil
}

func detectKind(feedURL string) SourceKind {
	lower := strings.ToLower(feedURL)
	switch {
	case strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be"):
		return SourceYouTube
	case strings.Contains(lower, "news.google.com"):
		return SourceGoogleNews
	default:
		return SourceGeneric
	}
}

// resolveItem maps a raw gofeed item onto Article, tolerating any subset of
// optional fields being absent.
func resolveItem(item *gofeed.Item, kind SourceKind) Article {
	a := Article{
		Title:   CleanText(item.Title),
		URL:     item.Link,
		Summary: CleanText(firstNonEmpty(item.Description, item.Content)),
		Source:  kind,
	}

	if len(item.Categories) > 0 {
		a.Category = CleanText(item.Categories[0])
	}

	a.PublishedAt = resolvePublished(item)

	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		a.EnclosureURL = item.Enclosures[0].URL
	}
	a.MediaURL = mediaURL(item)

	if kind == SourceYouTube {
		a.VideoID = youtubeVideoID(item)
	}

	return a
}

// resolvePublished tries every available date representation, newest-style
// first. An unparseable or absent date yields nil, which the freshness
// filter treats as fresh.
func resolvePublished(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			return &t
		}
	}
	return nil
}

// mediaURL extracts the first Media RSS content or thumbnail URL.
func mediaURL(item *gofeed.Item) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}
	for _, name := range []string{"content", "thumbnail"} {
		for _, ext := range media[name] {
			if u := ext.Attrs["url"]; u != "" {
				return u
			}
		}
	}
	return ""
}

// youtubeVideoID finds the video ID from the yt namespace, the GUID, or the
// link's v= query parameter.
func youtubeVideoID(item *gofeed.Item) string {
	if yt, ok := item.Extensions["yt"]; ok {
		for _, ext := range yt["videoId"] {
			if ext.Value != "" {
				return ext.Value
			}
		}
	}
	if idx := strings.LastIndex(item.GUID, "yt:video:"); idx >= 0 {
		return item.GUID[idx+len("yt:video:"):]
	}
	if u, err := url.Parse(item.Link); err == nil {
		if v := u.Query().Get("v"); v != "" {
			return v
		}
	}
	return ""
}

var (
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	cdataRe = regexp.MustCompile(`<!\[CDATA\[|\]\]>`)
)

// CleanText strips HTML tags and CDATA markers, decodes entities, and
// collapses whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = cdataRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
