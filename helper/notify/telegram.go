package notify

import (
	"context"
	"fmt"

	"pr_panel/model"

	"github.com/mymmrac/telego"
)

var severityRank = map[model.Severity]int{
	model.SeverityInfo:    0,
	model.SeverityWarning: 1,
	model.SeverityError:   2,
}

// TelegramNotifier forwards panel notifications to one Telegram chat.
type TelegramNotifier struct {
	bot         *telego.Bot
	chatID      int64
	minSeverity model.Severity
}

func NewTelegramNotifier(settings model.TelegramSettings) (*TelegramNotifier, error) {
	if settings.ChatID == 0 {
		return nil, fmt.Errorf("telegram.chatId is required")
	}
	bot, err := telego.NewBot(settings.Token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: settings.ChatID, minSeverity: settings.MinSeverity}, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, n model.Notification) error {
	if !Passes(n.Severity, t.minSeverity) {
		return nil
	}
	_, err := t.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: t.chatID},
		Text:   Format(n),
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// Passes reports whether severity is at or above the threshold.
func Passes(severity, threshold model.Severity) bool {
	return severityRank[severity] >= severityRank[threshold]
}

func Format(n model.Notification) string {
	return fmt.Sprintf("[%s] %s", n.Severity, n.Text)
}
