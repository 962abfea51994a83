// Package telegram delivers formatted articles to a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client posts messages to one Telegram chat.
type Client struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewClient authenticates against the Telegram API and returns a client.
// Construction performs the getMe call, which doubles as the startup
// health check: an error here means nothing can be delivered.
func NewClient(token string, chatID int64) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram health check: %w", err)
	}
	slog.Info("telegram connected", "username", bot.Self.UserName)

	return &Client{bot: bot, chatID: chatID}, nil
}

// Send posts the HTML-formatted text, as a photo caption when image bytes
// are present, otherwise as a plain message. The context is accepted for
// interface symmetry; the underlying API client manages its own timeouts.
func (c *Client) Send(_ context.Context, text string, image []byte) error {
	if len(image) > 0 {
		photo := tgbotapi.NewPhoto(c.chatID, tgbotapi.FileBytes{
			Name:  "image.jpg",
			Bytes: image,
		})
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeHTML
		if _, err := c.bot.Send(photo); err != nil {
			return fmt.Errorf("send photo: %w", err)
		}
		return nil
	}

	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
