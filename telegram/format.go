package telegram

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"news-telegram-bot/feed"
)

const maxSummaryRunes = 200

// categoryEmoji maps category keywords to an emoji, checked in order so a
// category like "Breaking Sports" resolves deterministically.
var categoryEmoji = []struct {
	key   string
	emoji string
}{
	{"SPORTS", "⚽"},
	{"SPORT", "⚽"},
	{"FOOTBALL", "⚽"},
	{"RUGBY", "🏉"},
	{"CRICKET", "🏏"},
	{"BUSINESS", "💼"},
	{"ECONOMY", "💰"},
	{"FINANCE", "💵"},
	{"POLITICS", "🏛️"},
	{"ELECTION", "🗳️"},
	{"GOVERNMENT", "🏛️"},
	{"HEALTH", "🏥"},
	{"EDUCATION", "📚"},
	{"TECHNOLOGY", "💻"},
	{"SCIENCE", "🔬"},
	{"ENTERTAINMENT", "🎭"},
	{"CULTURE", "🎨"},
	{"JOBS", "💼"},
	{"EMPLOYMENT", "👔"},
	{"CAREER", "📊"},
	{"BREAKING", "🚨"},
	{"LATEST", "🆕"},
	{"NEWS", "📰"},
	{"WEATHER", "🌤️"},
	{"CRIME", "🚔"},
	{"JUSTICE", "⚖️"},
}

// FormatMessage renders an article as Telegram HTML: header with a
// category emoji, bold title, italic summary clamped to 200 runes,
// category line, and a read-more link.
func FormatMessage(a feed.Article, header string) string {
	emoji := "📰"
	upper := strings.ToUpper(a.Category)
	for _, ce := range categoryEmoji {
		if strings.Contains(upper, ce.key) {
			emoji = ce.emoji
			break
		}
	}

	summary := a.Summary
	if utf8.RuneCountInString(summary) > maxSummaryRunes {
		runes := []rune(summary)
		summary = strings.TrimSpace(string(runes[:maxSummaryRunes-3])) + "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s %s</b>\n\n", emoji, html.EscapeString(header))
	fmt.Fprintf(&b, "<b>%s</b>\n\n", html.EscapeString(a.Title))
	if summary != "" {
		fmt.Fprintf(&b, "<i>%s</i>\n\n", html.EscapeString(summary))
	}
	if a.Category != "" {
		fmt.Fprintf(&b, "📂 <i>%s</i>\n\n", html.EscapeString(a.Category))
	}
	fmt.Fprintf(&b, "🔗 <a href=\"%s\">Read full article</a>", a.URL)
	return b.String()
}
