package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"ledgerbot/internal/services"
	"ledgerbot/internal/sheets/memory"
)

type sent struct {
	channel string
	content string
}

type fakeSender struct {
	err  error
	sent []sent
}

func (f *fakeSender) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, sent{channelID, content})
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func newTestBot(sender messageSender, opts ...Option) *Bot {
	clock := func() time.Time { return time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC) }
	svc := services.NewLedgerService(memory.New(), services.WithClock(clock))
	b := newBot(sender, svc, opts...)
	b.setSelfID("bot")
	return b
}

func message(authorID, content string) *discordgo.Message {
	return &discordgo.Message{
		ChannelID: "chan-1",
		Content:   content,
		Author:    &discordgo.User{ID: authorID},
	}
}

func TestHandleMessage(t *testing.T) {
	tests := []struct {
		name     string
		msg      *discordgo.Message
		wantSent []sent
	}{
		{
			name:     "expense command gets a reply",
			msg:      message("user", "支出 午餐 120"),
			wantSent: []sent{{"chan-1", "✅ 已記錄支出: **午餐** 120元"}},
		},
		{
			name: "leading whitespace is not a command",
			msg:  message("user", " 支出 午餐 100"),
		},
		{
			name: "trailing whitespace is not a command",
			msg:  message("user", "支出 午餐 100 "),
		},
		{
			name: "blank message is ignored",
			msg:  message("user", "  \n"),
		},
		{
			name: "own messages are ignored",
			msg:  message("bot", "支出 午餐 120"),
		},
		{
			name: "chatter is ignored",
			msg:  message("user", "哈囉"),
		},
		{
			name: "missing author is ignored",
			msg:  &discordgo.Message{ChannelID: "chan-1", Content: "統計"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			b := newTestBot(sender)
			b.handleMessage(context.Background(), tt.msg)

			if len(sender.sent) != len(tt.wantSent) {
				t.Fatalf("sent %v, want %v", sender.sent, tt.wantSent)
			}
			for i := range tt.wantSent {
				if sender.sent[i] != tt.wantSent[i] {
					t.Errorf("sent[%d] = %+v, want %+v", i, sender.sent[i], tt.wantSent[i])
				}
			}
		})
	}
}

func TestReadyLearnsOwnUser(t *testing.T) {
	sender := &fakeSender{}
	clock := func() time.Time { return time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC) }
	b := newBot(sender, services.NewLedgerService(memory.New(), services.WithClock(clock)))

	b.handleMessage(context.Background(), message("me", "統計"))
	if len(sender.sent) != 1 {
		t.Fatalf("before Ready the author is a regular user, sent %v", sender.sent)
	}

	b.onReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "me"}})
	b.onReady(nil, &discordgo.Ready{})
	b.handleMessage(context.Background(), message("me", "統計"))
	if len(sender.sent) != 1 {
		t.Fatalf("own message after Ready should be ignored, sent %v", sender.sent)
	}
}

func TestHandleMessageRateLimited(t *testing.T) {
	sender := &fakeSender{}
	b := newTestBot(sender, WithLimiter(denyAll{}))
	b.handleMessage(context.Background(), message("user", "支出 午餐 120"))
	if len(sender.sent) != 0 {
		t.Fatalf("limited author should get no reply, got %v", sender.sent)
	}
}

func TestHandleMessageSendFailureDoesNotPanic(t *testing.T) {
	sender := &fakeSender{err: errors.New("403 Forbidden")}
	b := newTestBot(sender)
	b.handleMessage(context.Background(), message("user", "統計"))
	if len(sender.sent) != 1 {
		t.Fatalf("expected one send attempt, got %d", len(sender.sent))
	}
}

func TestSendReminder(t *testing.T) {
	sender := &fakeSender{}
	b := newTestBot(sender)
	if err := b.SendReminder(context.Background(), "hi"); err == nil {
		t.Fatal("expected error without reminder channel")
	}

	b = newTestBot(sender, WithReminderChannel("123"))
	if err := b.SendReminder(context.Background(), "🔔 **每日預算提醒**\n..."); err != nil {
		t.Fatalf("SendReminder() error = %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].channel != "123" {
		t.Fatalf("unexpected sends: %v", sender.sent)
	}

	sender.err = errors.New("unknown channel")
	if err := b.SendReminder(context.Background(), "x"); err == nil {
		t.Fatal("expected send error")
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(" ", nil); err == nil {
		t.Fatal("expected error for empty token")
	}
	b, err := New("abc", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if b.session == nil || b.sender == nil {
		t.Fatal("session not wired")
	}
}
