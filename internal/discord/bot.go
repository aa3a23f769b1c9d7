// Package discord connects the ledger service to a Discord channel.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"ledgerbot/internal/metrics"
)

const transportDiscord = "discord"

// Dispatcher runs one chat command and reports whether the text was one.
type Dispatcher interface {
	Handle(ctx context.Context, text string) (string, bool)
}

// Limiter decides whether an author may issue another command.
type Limiter interface {
	Allow(key string) bool
}

// messageSender is the slice of *discordgo.Session the bot writes through.
type messageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Bot struct {
	session   *discordgo.Session
	sender    messageSender
	service   Dispatcher
	limiter   Limiter
	channelID string

	// selfID is written by the gateway Ready handler and read by message
	// handlers running on other goroutines.
	mu     sync.RWMutex
	selfID string
}

type Option func(*Bot)

// WithReminderChannel sets the channel that receives the daily reminder.
func WithReminderChannel(id string) Option {
	return func(b *Bot) { b.channelID = id }
}

func WithLimiter(l Limiter) Option {
	return func(b *Bot) { b.limiter = l }
}

// New creates a bot session for token. Call Open to connect.
func New(token string, svc Dispatcher, opts ...Option) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("missing discord bot token")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b := newBot(session, svc, opts...)
	b.session = session
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	return b, nil
}

func newBot(sender messageSender, svc Dispatcher, opts ...Option) *Bot {
	b := &Bot{sender: sender, service: svc}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open connects the gateway and learns the bot's own user id.
func (b *Bot) Open(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	if b.session.State != nil && b.session.State.User != nil {
		b.setSelfID(b.session.State.User.ID)
		slog.InfoContext(ctx, "Discord bot connected",
			"user", b.session.State.User.Username,
			"user_id", b.session.State.User.ID)
	}
	return nil
}

func (b *Bot) setSelfID(id string) {
	b.mu.Lock()
	b.selfID = id
	b.mu.Unlock()
}

func (b *Bot) self() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selfID
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r == nil || r.User == nil {
		return
	}
	b.setSelfID(r.User.ID)
}

func (b *Bot) Close() error {
	if b.session == nil {
		return nil
	}
	return b.session.Close()
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil {
		return
	}
	b.handleMessage(context.Background(), m.Message)
}

// handleMessage answers a channel message when it is a command. The bot's
// own messages are never processed.
func (b *Bot) handleMessage(ctx context.Context, m *discordgo.Message) {
	if m.Author == nil {
		return
	}
	if self := b.self(); self != "" && m.Author.ID == self {
		return
	}
	// The grammar is anchored, so the content goes to the service untrimmed.
	if strings.TrimSpace(m.Content) == "" {
		return
	}

	if b.limiter != nil && !b.limiter.Allow(m.Author.ID) {
		metrics.RateLimited.WithLabelValues(transportDiscord).Inc()
		slog.WarnContext(ctx, "Discord message dropped by rate limit", "author_id", m.Author.ID)
		return
	}

	reply, handled := b.service.Handle(ctx, m.Content)
	if !handled || reply == "" {
		metrics.MessagesIgnored.WithLabelValues(transportDiscord).Inc()
		return
	}
	if _, err := b.sender.ChannelMessageSend(m.ChannelID, reply); err != nil {
		slog.ErrorContext(ctx, "Failed to send Discord reply",
			"channel_id", m.ChannelID,
			"author_id", m.Author.ID,
			"error", err)
	}
}

// SendReminder posts text to the reminder channel.
func (b *Bot) SendReminder(ctx context.Context, text string) error {
	if b.channelID == "" {
		return errors.New("no reminder channel configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.sender.ChannelMessageSend(b.channelID, text); err != nil {
		return fmt.Errorf("send reminder to channel %s: %w", b.channelID, err)
	}
	return nil
}
