package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

// Sender es la parte de *tgbotapi.BotAPI que usamos.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram envía una alerta cuando un ciclo tiene fallos. Los ciclos sin
// fallos (incluidos los "not ready") no generan mensajes.
type Telegram struct {
	api    Sender
	chatID int64
}

// NewTelegram autentica el bot con el token.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: %w", err)
	}
	slog.Info("telegram alerts enabled", "bot", api.Self.UserName, "chat_id", chatID)
	return &Telegram{api: api, chatID: chatID}, nil
}

// NewTelegramWithSender se usa en tests.
func NewTelegramWithSender(s Sender, chatID int64) *Telegram {
	return &Telegram{api: s, chatID: chatID}
}

// NotifyCycle implementa ports.Notifier.
func (t *Telegram) NotifyCycle(_ context.Context, report domain.CycleReport) error {
	failures := report.Failures()
	if len(failures) == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(t.chatID, formatAlert(report, failures))
	msg.ParseMode = "Markdown"
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("notify.Telegram: send: %w", err)
	}
	return nil
}

func formatAlert(report domain.CycleReport, failures []domain.SessionResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*arvbot*: %d session(s) failed in cycle %s\n",
		len(failures), report.StartedAt.UTC().Format("2006-01-02 15:04:05Z"))
	for _, f := range failures {
		fmt.Fprintf(&sb, "• `%s` %s: %s\n", f.SessionID, f.Phase, escapeMarkdown(f.Err.Error()))
	}
	fmt.Fprintf(&sb, "placed %d, resolved %d, pending %d",
		len(report.Placed()), len(report.Resolved()), len(report.Pending()))
	return sb.String()
}

// escapeMarkdown neutraliza los caracteres que rompen el Markdown legacy.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")
	return r.Replace(s)
}
