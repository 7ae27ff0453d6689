package notify_test

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/arvbot/internal/adapters/notify"
	"github.com/alejandrodnm/arvbot/internal/domain"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestTelegram_AlertsOnFailures(t *testing.T) {
	s := &fakeSender{}
	n := notify.NewTelegramWithSender(s, 99)

	require.NoError(t, n.NotifyCycle(context.Background(), makeReport()))

	require.Len(t, s.sent, 1)
	msg := s.sent[0]
	assert.Equal(t, int64(99), msg.ChatID)
	assert.Equal(t, "Markdown", msg.ParseMode)
	assert.Contains(t, msg.Text, "1 session(s) failed")
	assert.Contains(t, msg.Text, "bbbbbbbb-2222")
	assert.NotContains(t, msg.Text, "dddddddd-4444")
	assert.Contains(t, msg.Text, "placed 1, resolved 1, pending 1")
}

func TestTelegram_QuietWithoutFailures(t *testing.T) {
	s := &fakeSender{}
	n := notify.NewTelegramWithSender(s, 99)

	report := domain.CycleReport{Results: []domain.SessionResult{
		{SessionID: "x", Phase: domain.CyclePhaseResolve, Err: domain.ErrNoClearedOrder, NotReady: true},
	}}
	require.NoError(t, n.NotifyCycle(context.Background(), report))
	assert.Empty(t, s.sent)
}

func TestTelegram_SendError(t *testing.T) {
	s := &fakeSender{err: errors.New("telegram down")}
	n := notify.NewTelegramWithSender(s, 99)

	err := n.NotifyCycle(context.Background(), makeReport())
	require.ErrorContains(t, err, "telegram down")
}

func TestTelegram_EscapesErrorText(t *testing.T) {
	s := &fakeSender{}
	n := notify.NewTelegramWithSender(s, 1)

	report := domain.CycleReport{Results: []domain.SessionResult{
		{SessionID: "x", Phase: domain.CyclePhaseExecute, Err: errors.New("bad_price *now*")},
	}}
	require.NoError(t, n.NotifyCycle(context.Background(), report))
	require.Len(t, s.sent, 1)
	assert.Contains(t, s.sent[0].Text, `bad\_price \*now\*`)
}
