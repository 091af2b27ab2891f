// Package telegram sends alerts through a Telegram bot.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// BotAPI abstracts the Telegram bot methods used by the sink.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Notifier sends alerts to one chat
type Notifier struct {
	bot    BotAPI
	chatID int64
	logger zerolog.Logger
}

// NewNotifier wraps an existing bot
func NewNotifier(bot BotAPI, chatID int64, logger zerolog.Logger) (*Notifier, error) {
	if bot == nil {
		return nil, errors.NewValidationError("telegram_bot", nil, "bot is required")
	}
	if chatID == 0 {
		return nil, errors.NewValidationError("telegram_chat_id", chatID, "chat id is required")
	}
	return &Notifier{
		bot:    bot,
		chatID: chatID,
		logger: logger.With().Str("module", "TelegramNotifier").Logger(),
	}, nil
}

// NewNotifierFromToken logs the bot in with token
func NewNotifierFromToken(token string, chatID int64, logger zerolog.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.WrapError(err, "failed to log in telegram bot")
	}
	return NewNotifier(bot, chatID, logger)
}

// FormatMessage renders an alert as Markdown
func FormatMessage(alert models.Alert) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s *%s*\n", iconFor(alert.Kind), escapeMarkdown(alert.Title))
	if alert.Body != "" {
		sb.WriteString(escapeMarkdown(alert.Body))
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "_%s_", alert.At.Format("2006-01-02 15:04"))
	return sb.String()
}

func iconFor(kind models.AlertKind) string {
	switch kind {
	case models.AlertLowStorage:
		return "💾"
	case models.AlertHighCPU:
		return "🔥"
	case models.AlertUpdate:
		return "⬆️"
	default:
		return "ℹ️"
	}
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Notify sends the alert as Markdown, retrying as plain text if Telegram rejects the markup
func (n *Notifier) Notify(ctx context.Context, alert models.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatMessage(alert))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Debug().Err(err).Msg("Markdown message rejected, retrying as plain text")
		plain := tgbotapi.NewMessage(n.chatID, alert.Title+"\n"+alert.Body)
		if _, err := n.bot.Send(plain); err != nil {
			return errors.WrapError(err, "failed to send telegram message")
		}
	}
	return nil
}
