package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

// Telegram sends announcements to a fixed set of chats.
type Telegram struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
	logger  *slog.Logger
}

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	Token   string
	ChatIDs []string
	Logger  *slog.Logger
}

// NewTelegram creates a Telegram notifier. The bot token is verified against
// the API, so this fails fast on a bad token.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	var ids []int64
	for _, s := range cfg.ChatIDs {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("telegram: no valid chat IDs configured")
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("telegram notifier connected", "username", bot.Self.UserName)
	}
	return &Telegram{bot: bot, chatIDs: ids, logger: cfg.Logger}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Send delivers the text to every configured chat. The first error is
// returned after all chats have been attempted.
func (t *Telegram) Send(ctx context.Context, text string) error {
	var firstErr error
	for _, id := range t.chatIDs {
		for _, chunk := range splitMessage(text, telegramMaxMsgLen) {
			if err := t.sendChunk(ctx, id, chunk); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				break
			}
		}
	}
	return firstErr
}

// sendChunk sends one message, backing off when Telegram rate limits.
func (t *Telegram) sendChunk(ctx context.Context, chatID int64, text string) error {
	var lastErr error
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		_, err := t.bot.Send(tgbotapi.NewMessage(chatID, text))
		if err == nil {
			return nil
		}
		lastErr = err

		errStr := err.Error()
		if !strings.Contains(errStr, "Too Many Requests") && !strings.Contains(errStr, "429") {
			break
		}

		backoff := time.Duration(attempt+1) * 3 * time.Second
		if t.logger != nil {
			t.logger.Warn("telegram rate limited, backing off", "retry_after", backoff, "attempt", attempt+1)
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("telegram send: %w", lastErr)
}
