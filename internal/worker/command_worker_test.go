package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ledgerbot/internal/amqp"
	"ledgerbot/internal/services"
	"ledgerbot/internal/sheets/memory"
)

type fakeReplies struct {
	err     error
	keys    []string
	replies []*amqp.ReplyMessage
}

func (f *fakeReplies) PublishReply(_ context.Context, routingKey string, msg *amqp.ReplyMessage) error {
	f.keys = append(f.keys, routingKey)
	f.replies = append(f.replies, msg)
	return f.err
}

type fakeLimiter struct{ allow bool }

func (f fakeLimiter) Allow(string) bool { return f.allow }

type countingDispatcher struct{ calls int }

func (d *countingDispatcher) Handle(context.Context, string) (string, bool) {
	d.calls++
	return "ok", true
}

func newService() *services.LedgerService {
	clock := func() time.Time { return time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC) }
	return services.NewLedgerService(memory.New(), services.WithClock(clock))
}

func TestCommandWorker_HandleCommand(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		replyTo     string
		wantHandled bool
		wantText    string
	}{
		{
			name:        "expense command",
			text:        "支出 午餐 120",
			replyTo:     "caller.replies",
			wantHandled: true,
			wantText:    "✅ 已記錄支出: **午餐** 120元",
		},
		{
			name:        "budget command uses default reply queue",
			text:        "預算 20000",
			wantHandled: true,
			wantText:    "✅ 已設定2月預算上限: **20000** 元",
		},
		{
			name:        "chatter is answered as unhandled",
			text:        "早安",
			wantHandled: false,
			wantText:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replies := &fakeReplies{}
			w := NewCommandWorker(newService(), replies, nil)

			msg := amqp.NewCommandMessage("user-1", tt.text)
			msg.ReplyTo = tt.replyTo
			if err := w.HandleCommand(context.Background(), msg); err != nil {
				t.Fatalf("HandleCommand() error = %v", err)
			}
			if len(replies.replies) != 1 {
				t.Fatalf("expected one reply, got %d", len(replies.replies))
			}
			got := replies.replies[0]
			if got.Handled != tt.wantHandled || got.Text != tt.wantText {
				t.Errorf("reply = {%v %q}, want {%v %q}", got.Handled, got.Text, tt.wantHandled, tt.wantText)
			}
			if got.CommandID != msg.ID || got.Sender != "user-1" {
				t.Errorf("reply not correlated: %+v", got)
			}
			if replies.keys[0] != tt.replyTo {
				t.Errorf("routing key = %q, want %q", replies.keys[0], tt.replyTo)
			}
		})
	}
}

func TestCommandWorker_ReplyFailureIsNotRetried(t *testing.T) {
	store := memory.New()
	svc := services.NewLedgerService(store)
	replies := &fakeReplies{err: errors.New("channel closed")}
	w := NewCommandWorker(svc, replies, nil)

	if err := w.HandleCommand(context.Background(), amqp.NewCommandMessage("u", "支出 咖啡 60")); err != nil {
		t.Fatalf("reply failure must not requeue, got %v", err)
	}
	rows, _ := store.ReadExpenseRows(context.Background())
	if len(rows) != 2 {
		t.Fatalf("expected exactly one expense row after the header, got %d rows", len(rows))
	}
}

func TestCommandWorker_RateLimited(t *testing.T) {
	d := &countingDispatcher{}
	replies := &fakeReplies{}
	w := NewCommandWorker(d, replies, fakeLimiter{allow: false})

	if err := w.HandleCommand(context.Background(), amqp.NewCommandMessage("spammer", "支出 a 1")); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}
	if d.calls != 0 || len(replies.replies) != 0 {
		t.Fatalf("limited command should not run: calls=%d replies=%d", d.calls, len(replies.replies))
	}

	w = NewCommandWorker(d, replies, fakeLimiter{allow: true})
	_ = w.HandleCommand(context.Background(), amqp.NewCommandMessage("u", "x"))
	if d.calls != 1 || !strings.Contains(replies.replies[0].Text, "ok") {
		t.Fatalf("allowed command should run")
	}
}
