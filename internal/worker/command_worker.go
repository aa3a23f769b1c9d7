// Package worker consumes chat commands from the message queue and answers
// them through the ledger service.
package worker

import (
	"context"
	"log/slog"

	"ledgerbot/internal/amqp"
	"ledgerbot/internal/metrics"
)

const transportAMQP = "amqp"

// Dispatcher runs one chat command. It reports false when the text is not a
// command.
type Dispatcher interface {
	Handle(ctx context.Context, text string) (string, bool)
}

// ReplyPublisher sends the answer for a command back to its caller.
type ReplyPublisher interface {
	PublishReply(ctx context.Context, routingKey string, msg *amqp.ReplyMessage) error
}

// Limiter decides whether a sender may issue another command.
type Limiter interface {
	Allow(key string) bool
}

// CommandWorker handles command messages from the queue.
type CommandWorker struct {
	service Dispatcher
	replies ReplyPublisher
	limiter Limiter
}

// NewCommandWorker builds a worker. limiter may be nil to disable limiting.
func NewCommandWorker(service Dispatcher, replies ReplyPublisher, limiter Limiter) *CommandWorker {
	return &CommandWorker{service: service, replies: replies, limiter: limiter}
}

// HandleCommand processes a single command message.
//
// Only a failure before the ledger was touched may return an error, since an
// error requeues the delivery. Once the command ran, a lost reply is logged
// and the message is acknowledged so the mutation is not applied twice.
func (w *CommandWorker) HandleCommand(ctx context.Context, msg *amqp.CommandMessage) error {
	slog.InfoContext(ctx, "Processing command message",
		"id", msg.ID,
		"sender", msg.Sender)

	if w.limiter != nil && !w.limiter.Allow(msg.Sender) {
		metrics.RateLimited.WithLabelValues(transportAMQP).Inc()
		slog.WarnContext(ctx, "Command dropped by rate limit", "id", msg.ID, "sender", msg.Sender)
		return nil
	}

	text, handled := w.service.Handle(ctx, msg.Text)
	if !handled {
		metrics.MessagesIgnored.WithLabelValues(transportAMQP).Inc()
	}

	reply := amqp.NewReplyMessage(msg, text, handled)
	if err := w.replies.PublishReply(ctx, msg.ReplyTo, reply); err != nil {
		slog.ErrorContext(ctx, "Failed to publish reply",
			"id", msg.ID,
			"reply_to", msg.ReplyTo,
			"error", err)
		return nil
	}

	slog.InfoContext(ctx, "Command answered",
		"id", msg.ID,
		"handled", handled)
	return nil
}
