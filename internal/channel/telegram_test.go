package channel

import (
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/estevaoantuness/agentefinal/internal/bus"
	"github.com/estevaoantuness/agentefinal/internal/config"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}
func (f *fakeBot) StopReceivingUpdates() {}
func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}
func (f *fakeBot) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "pangeia_bot"}
}

func newTelegram(t *testing.T, allowFrom []string) (*TelegramChannel, *bus.MessageBus, *fakeBot) {
	t.Helper()
	b := bus.NewMessageBus(4)
	fake := &fakeBot{}
	ch, err := NewTelegramChannelWithFactory(config.TelegramConfig{
		Enabled:   true,
		Token:     "test-token",
		AllowFrom: allowFrom,
	}, b, nil)
	if err != nil {
		t.Fatalf("NewTelegramChannelWithFactory error: %v", err)
	}
	ch.SetBot(fake)
	return ch, b, fake
}

func TestTelegramRequiresToken(t *testing.T) {
	_, err := NewTelegramChannel(config.TelegramConfig{}, bus.NewMessageBus(1))
	if err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestTelegramHandleMessage(t *testing.T) {
	ch, b, _ := newTelegram(t, nil)

	ch.handleMessage(&tgbotapi.Message{
		From: &tgbotapi.User{ID: 42, FirstName: "Maria", LastName: "Clara"},
		Chat: &tgbotapi.Chat{ID: 42},
		Text: "minhas tarefas",
	})

	msg := <-b.Inbound
	if msg.Channel != "telegram" || msg.SenderID != "42" || msg.ChatID != "42" {
		t.Errorf("msg = %+v", msg)
	}
	if msg.SenderName != "Maria Clara" {
		t.Errorf("SenderName = %q", msg.SenderName)
	}
	if msg.Content != "minhas tarefas" {
		t.Errorf("Content = %q", msg.Content)
	}
}

func TestTelegramAllowlist(t *testing.T) {
	ch, b, _ := newTelegram(t, []string{"1"})

	ch.handleMessage(&tgbotapi.Message{
		From: &tgbotapi.User{ID: 99, UserName: "intruso"},
		Chat: &tgbotapi.Chat{ID: 99},
		Text: "oi",
	})

	select {
	case msg := <-b.Inbound:
		t.Errorf("rejected sender should not reach the bus: %+v", msg)
	default:
	}
}

func TestTelegramSendChunksLongMessages(t *testing.T) {
	ch, _, fake := newTelegram(t, nil)

	long := strings.Repeat("uma linha de resposta\n", 400)
	err := ch.Send(bus.OutboundMessage{Channel: "telegram", ChatID: "42", Content: long})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if len(fake.sent) < 2 {
		t.Errorf("long content should be split, sent %d messages", len(fake.sent))
	}
	for _, m := range fake.sent {
		if len(m.Text) > 4000 {
			t.Errorf("chunk too large: %d", len(m.Text))
		}
	}
}

func TestTelegramSendBadChatID(t *testing.T) {
	ch, _, _ := newTelegram(t, nil)
	if err := ch.Send(bus.OutboundMessage{ChatID: "abc", Content: "oi"}); err == nil {
		t.Error("expected error for non-numeric chat id")
	}
}

func TestBaseChannelAllowlist(t *testing.T) {
	open := NewBaseChannel("x", bus.NewMessageBus(1), nil)
	if !open.IsAllowed("anyone") {
		t.Error("empty allowlist should allow everyone")
	}

	closed := NewBaseChannel("x", bus.NewMessageBus(1), []string{"1", "2"})
	if !closed.IsAllowed("1") || closed.IsAllowed("3") {
		t.Error("allowlist not enforced")
	}
}
