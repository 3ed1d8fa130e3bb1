package notifier

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"ingestion-service/internal/models"
)

type telegramSender struct {
	bot *bot.Bot
}

func newTelegramSender(token string) (*telegramSender, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &telegramSender{bot: b}, nil
}

// sendTelegram delivers one alert to a chat, honoring the global rate limit
// so a burst of alerts cannot trip the Bot API.
func (d *Dispatcher) sendTelegram(ctx context.Context, chatID int64, alert models.Alert) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait: %w", err)
	}

	text := fmt.Sprintf("*%s*\n%s", alert.Title, alert.Message)
	_, err := d.telegram.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message to chat %d: %w", chatID, err)
	}
	return nil
}
