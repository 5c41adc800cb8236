package notification

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/telebot.v4"
)

// TelegramSink pushes notifications to a staff chat.
type TelegramSink struct {
	bot    *telebot.Bot
	chatID int64
}

// NewTelegramSink creates a send-only bot. apiURL overrides the Telegram API endpoint when set.
func NewTelegramSink(token string, chatID int64, apiURL string) (*TelegramSink, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		URL:     apiURL,
		Token:   token,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

func (s *TelegramSink) Notify(_ context.Context, n Notification) error {
	if _, err := s.bot.Send(telebot.ChatID(s.chatID), formatMessage(n), telebot.ModeMarkdown); err != nil {
		return fmt.Errorf("failed to send notification %s: %w", n.ID, err)
	}
	return nil
}

// markdownEscaper escapes the characters Telegram's Markdown mode treats as entity markers.
var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`) //nolint:gochecknoglobals // stateless replacer

func formatMessage(n Notification) string {
	var icon string
	switch n.Type {
	case TypeCheckIn:
		icon = "🛎"
	case TypeBooking:
		icon = "📅"
	case TypeCustomer:
		icon = "👤"
	default:
		icon = "ℹ️"
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%s *%s*\n\n", icon, markdownEscaper.Replace(n.Title)))
	builder.WriteString(markdownEscaper.Replace(n.Message))
	if !n.Timestamp.IsZero() {
		builder.WriteString(fmt.Sprintf("\n\n_%s_", n.Timestamp.Format("02.01.2006 15:04")))
	}
	return builder.String()
}
