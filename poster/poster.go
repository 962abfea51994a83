// Package poster decides which candidate articles get posted and drives a
// single batch run: filter, enrich, deliver, persist.
package poster

import (
	"time"

	"news-telegram-bot/feed"
	"news-telegram-bot/store"
)

// Decision is the outcome of filtering one candidate article.
type Decision int

const (
	Post Decision = iota
	SkipDuplicateURL
	SkipOld
	SkipDuplicateContent
)

func (d Decision) String() string {
	switch d {
	case Post:
		return "post"
	case SkipDuplicateURL:
		return "skip-duplicate-url"
	case SkipOld:
		return "skip-old"
	case SkipDuplicateContent:
		return "skip-duplicate-content"
	default:
		return "unknown"
	}
}

// Deduper is the dedup store as seen by the filter and run driver.
type Deduper interface {
	ContainsURL(url string) bool
	FindByFingerprint(fp string) (string, bool)
	MarkPosted(url, title, summary string, now time.Time)
	Save() error
}

// ShouldPost resolves a candidate against the dedup store and freshness
// window. Rules are evaluated in order; the first match wins:
//
//  1. SkipDuplicateURL when the URL has already been posted.
//  2. SkipOld when a parseable publish date is older than maxAge. An
//     absent date counts as fresh: over-posting beats under-posting.
//  3. SkipDuplicateContent when another URL was already posted with an
//     identical content fingerprint.
//
// A maxAge of zero disables the freshness check.
func ShouldPost(a feed.Article, deduper Deduper, now time.Time, maxAge time.Duration) Decision {
	if deduper.ContainsURL(a.URL) {
		return SkipDuplicateURL
	}
	if maxAge > 0 && a.PublishedAt != nil && now.Sub(*a.PublishedAt) > maxAge {
		return SkipOld
	}
	if _, ok := deduper.FindByFingerprint(store.Fingerprint(a.Title, a.Summary)); ok {
		return SkipDuplicateContent
	}
	return Post
}
