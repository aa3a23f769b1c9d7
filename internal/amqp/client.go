package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/singleflight"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

// Config names the broker topology. The command queue and the reply queue are
// bound to Exchange with their own names as routing keys.
type Config struct {
	URL              string
	Exchange         string
	CommandQueue     string
	ReplyQueue       string
	EventsRoutingKey string
}

type Client struct {
	url              string
	exchangeName     string
	queueName        string
	replyQueue       string
	eventsRoutingKey string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	breakerMu    sync.Mutex
	lastFailure  time.Time

	// reconnects collapses concurrent reconnects from the publisher and the
	// consumer into one dial loop.
	reconnects singleflight.Group
	// dial replaces connect in tests.
	dial func() error
	// closed is cancelled by Close and ends background reconnects.
	closed    context.Context
	stopRetry context.CancelFunc
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("missing AMQP URL")
	}
	client := &Client{
		url:              cfg.URL,
		exchangeName:     cfg.Exchange,
		queueName:        cfg.CommandQueue,
		replyQueue:       cfg.ReplyQueue,
		eventsRoutingKey: cfg.EventsRoutingKey,
	}
	client.closed, client.stopRetry = context.WithCancel(context.Background())
	if err := client.connect(); err != nil {
		client.stopRetry()
		return nil, err
	}
	return client, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}
	// A pair opened by an earlier connect must not leak.
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn, c.channel = conn, channel
	return nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range []string{c.queueName, c.replyQueue} {
		if q == "" {
			continue
		}
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := ch.QueueBind(q, q, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

// reconnect redials with exponential backoff until it succeeds, ctx ends or
// the client is closed. Concurrent callers share a single dial loop.
func (c *Client) reconnect(ctx context.Context) error {
	_, err, shared := c.reconnects.Do("reconnect", func() (any, error) {
		return nil, c.redial(ctx)
	})
	if shared {
		slog.DebugContext(ctx, "Joined in-flight AMQP reconnect")
	}
	return err
}

func (c *Client) redial(ctx context.Context) error {
	c.closeConn()
	for attempt := 0; ; attempt++ {
		if c.closed != nil && c.closed.Err() != nil {
			return errors.New("AMQP client closed")
		}
		err := c.dialOnce()
		if err == nil {
			slog.InfoContext(ctx, "Reconnected to AMQP broker", "attempt", attempt+1)
			return nil
		}
		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP reconnect failed", "attempt", attempt+1, "retry_in", wait, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closedDone():
			return errors.New("AMQP client closed")
		case <-time.After(wait):
		}
	}
}

func (c *Client) dialOnce() error {
	if c.dial != nil {
		return c.dial()
	}
	return c.connect()
}

// closedDone is nil, and so never ready, for clients not built by NewClient.
func (c *Client) closedDone() <-chan struct{} {
	if c.closed == nil {
		return nil
	}
	return c.closed.Done()
}

func (c *Client) currentChannel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// PublishCommand enqueues a chat line on the command queue.
func (c *Client) PublishCommand(ctx context.Context, msg *CommandMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return c.publish(ctx, c.queueName, body)
}

// PublishReply sends a reply to msg.ReplyTo, or to the default reply queue.
func (c *Client) PublishReply(ctx context.Context, routingKey string, msg *ReplyMessage) error {
	if routingKey == "" {
		routingKey = c.replyQueue
	}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	return c.publish(ctx, routingKey, body)
}

func (c *Client) PublishEvent(ctx context.Context, ev *LedgerEvent) error {
	if c.eventsRoutingKey == "" {
		return nil
	}
	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return c.publish(ctx, c.eventsRoutingKey, body)
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if c.isCircuitOpen() {
		return errors.New("circuit breaker is open, refusing to publish")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ch := c.currentChannel()
	if ch == nil {
		c.recordFailure()
		return errors.New("AMQP channel not available")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			go func() {
				// The publish ctx is about to end; Close stops this loop.
				if rerr := c.reconnect(context.Background()); rerr != nil {
					slog.Error("AMQP reconnect aborted", "error", rerr)
				}
			}()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	slog.DebugContext(ctx, "Published AMQP message", "exchange", c.exchangeName, "routing_key", routingKey)
	return nil
}

// ConsumeCommands delivers command messages to handler until ctx ends.
// Malformed messages are dropped; handler errors requeue the delivery.
// A closed delivery channel triggers a reconnect.
func (c *Client) ConsumeCommands(ctx context.Context, handler func(context.Context, *CommandMessage) error) error {
	for {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.WarnContext(ctx, "Command consumer interrupted", "error", err)
		if err := c.reconnect(ctx); err != nil {
			return err
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler func(context.Context, *CommandMessage) error) error {
	ch := c.currentChannel()
	if ch == nil {
		return errors.New("AMQP channel not available")
	}
	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming commands", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			handleDelivery(ctx, delivery, handler)
		}
	}
}

// acknowledger is the part of amqp091.Delivery used to settle a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(ctx context.Context, d amqp091.Delivery, handler func(context.Context, *CommandMessage) error) {
	settle(ctx, d.Body, d, handler)
}

func settle(ctx context.Context, body []byte, ack acknowledger, handler func(context.Context, *CommandMessage) error) {
	msg, err := CommandMessageFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal command", "error", err)
		_ = ack.Nack(false, false)
		return
	}
	if err := handler(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to handle command", "id", msg.ID, "error", err)
		_ = ack.Nack(false, true)
		return
	}
	_ = ack.Ack(false)
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	if c.stopRetry != nil {
		c.stopRetry()
	}
	c.closeConn()
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.breakerMu.Lock()
	last := c.lastFailure
	c.breakerMu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.StoreInt32(&c.state, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.breakerMu.Lock()
	c.lastFailure = time.Now()
	c.breakerMu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
