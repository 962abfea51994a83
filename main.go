package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"news-telegram-bot/config"
	"news-telegram-bot/feed"
	"news-telegram-bot/imaging"
	"news-telegram-bot/poster"
	"news-telegram-bot/store"
	"news-telegram-bot/telegram"
	"news-telegram-bot/thumbnail"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	slog.Info("starting news poster run")

	// Optional .env for local runs; real deployments set the environment.
	_ = godotenv.Load()

	configPath := config.GetConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	slog.Info("config loaded", "feed_url", cfg.FeedURL)

	st := store.Load(cfg.StateFile, cfg.MaxRecords)
	slog.Info("state loaded", "path", cfg.StateFile, "records", st.Len())

	// The only fatal condition: delivery unreachable before anything posts.
	tg, err := telegram.NewClient(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		slog.Error("failed to initialize Telegram client", "error", err)
		os.Exit(1)
	}

	timeout := time.Duration(cfg.FetchTimeoutSecs) * time.Second
	fetcher := feed.NewFetcher(feed.WithTimeout(timeout))

	ctx := context.Background()
	articles, err := fetcher.Fetch(ctx, cfg.FeedURL)
	if err != nil {
		// Transient fetch failure: nothing to do this run, retry next time.
		slog.Warn("failed to fetch feed", "url", cfg.FeedURL, "error", err)
		return
	}
	if len(articles) == 0 {
		slog.Info("feed has no entries")
		return
	}
	slog.Info("feed loaded", "entries", len(articles))

	runner := poster.NewRunner(
		st,
		thumbnail.NewFinder(thumbnail.WithTimeout(timeout)),
		imaging.NewFetcher(
			imaging.WithTimeout(timeout),
			imaging.WithMaxBytes(cfg.MaxImageBytes),
		),
		feed.NewEnricher(feed.WithEnricherTimeout(timeout)),
		&articleSender{client: tg, header: cfg.Header},
		poster.WithMaxEntries(cfg.MaxEntries),
		poster.WithPostDelay(time.Duration(cfg.PostDelaySecs)*time.Second),
		poster.WithMaxAge(time.Duration(cfg.MaxAgeHours)*time.Hour),
	)

	sum := runner.Run(ctx, articles)

	// The store persists after every successful post; this covers the
	// zero-post case and legacy-shape upgrades.
	if err := st.Save(); err != nil {
		slog.Warn("failed to persist state", "error", err)
	}

	slog.Info("done",
		"posted", sum.Posted,
		"skipped_old", sum.SkippedOld,
		"skipped_duplicate_url", sum.SkippedDuplicateURL,
		"skipped_duplicate_content", sum.SkippedDuplicateContent,
		"failed", sum.Failed,
		"records", st.Len())
}

// articleSender bridges the Telegram client to the poster.Sender interface,
// applying message formatting on the way through.
type articleSender struct {
	client *telegram.Client
	header string
}

func (s *articleSender) SendArticle(ctx context.Context, a feed.Article, image []byte) error {
	text := telegram.FormatMessage(a, s.header)
	return s.client.Send(ctx, text, image)
}
