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

	defaultRetryDelay = time.Second
)

// Client publishes and consumes transaction messages on a direct exchange.
// Sync messages are routed to the queue itself, delete messages to a
// sibling queue with a ".delete" suffix.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	// retryDelay is how long a failed message is held before its first
	// requeue; later redeliveries back off from it.
	retryDelay time.Duration

	connectMu sync.Mutex
	mu        sync.Mutex
	conn      *amqp091.Connection
	channel   *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		retryDelay:   defaultRetryDelay,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) deleteQueue() string {
	return c.queueName + ".delete"
}

// connect dials and declares topology. Concurrent callers are serialized
// and reuse a connection another caller has just opened; a replaced
// connection is closed.
func (c *Client) connect() error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	oldConn, oldChannel := c.conn, c.channel
	c.mu.Unlock()
	if oldChannel != nil && !oldChannel.IsClosed() {
		return nil
	}

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.exchangeName, c.queueName, c.deleteQueue()); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	if oldConn != nil && !oldConn.IsClosed() {
		oldConn.Close()
	}
	return nil
}

func setup(ch *amqp091.Channel, exchange string, queues ...string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		// Routing key equals queue name on a direct exchange.
		if err := ch.QueueBind(q, q, exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

func (c *Client) currentChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch != nil && !ch.IsClosed() {
		return ch, nil
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel, nil
}

// PublishTransactionSync announces that a transaction was created or edited.
func (c *Client) PublishTransactionSync(ctx context.Context, id, classID string, version int64) error {
	body, err := NewTransactionSyncMessage(id, classID, version).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.queueName, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published transaction sync message",
		"id", id,
		"class_id", classID,
		"version", version,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishTransactionDelete announces that a transaction was removed.
func (c *Client) PublishTransactionDelete(ctx context.Context, id, classID string) error {
	body, err := NewTransactionDeleteMessage(id, classID).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.deleteQueue(), body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published transaction delete message",
		"id", id,
		"class_id", classID,
		"queue", c.deleteQueue())
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if c.isCircuitOpen() {
		return errors.New("circuit breaker is open, not publishing")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, err := c.currentChannel()
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("get channel: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
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
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// ConsumeTransactionSync delivers sync messages to handler until ctx ends.
// Undecodable messages are dropped; handler errors requeue the message
// after a delay.
func (c *Client) ConsumeTransactionSync(ctx context.Context, handler func(context.Context, *TransactionSyncMessage) error) error {
	return c.consumeWithReconnect(ctx, c.queueName, func(ctx context.Context, body []byte) (bool, error) {
		msg, err := TransactionSyncMessageFromJSON(body)
		if err != nil {
			return false, err
		}
		return true, handler(ctx, msg)
	})
}

// ConsumeTransactionDelete is ConsumeTransactionSync for delete messages.
func (c *Client) ConsumeTransactionDelete(ctx context.Context, handler func(context.Context, *TransactionDeleteMessage) error) error {
	return c.consumeWithReconnect(ctx, c.deleteQueue(), func(ctx context.Context, body []byte) (bool, error) {
		msg, err := TransactionDeleteMessageFromJSON(body)
		if err != nil {
			return false, err
		}
		return true, handler(ctx, msg)
	})
}

// handleFunc reports whether the body decoded, and the handling error.
type handleFunc func(ctx context.Context, body []byte) (decoded bool, err error)

func (c *Client) consumeWithReconnect(ctx context.Context, queue string, handle handleFunc) error {
	attempt := 0
	for {
		err := c.consume(ctx, queue, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP connection lost, reconnecting",
			"queue", queue, "error", err, "backoff", wait, "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if cerr := c.connect(); cerr != nil {
			slog.ErrorContext(ctx, "AMQP reconnect failed", "error", cerr)
			attempt++
			continue
		}
		attempt = 0
	}
}

func (c *Client) consume(ctx context.Context, queue string, handle handleFunc) error {
	ch, err := c.currentChannel()
	if err != nil {
		return err
	}
	msgs, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming messages", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return amqp091.ErrClosed
			}
			decoded, err := handle(ctx, delivery.Body)
			c.settle(ctx, queue, delivery, decoded, err)
		}
	}
}

// settle acks a handled delivery, drops an undecodable one and requeues a
// failed one after requeueDelay, so a failing handler is not retried in a
// tight loop.
func (c *Client) settle(ctx context.Context, queue string, delivery amqp091.Delivery, decoded bool, err error) {
	switch {
	case !decoded:
		slog.ErrorContext(ctx, "Failed to unmarshal message", "queue", queue, "error", err)
		delivery.Nack(false, false)
	case err != nil:
		wait := c.requeueDelay(delivery)
		slog.ErrorContext(ctx, "Failed to handle message, requeueing",
			"queue", queue, "error", err, "redelivered", delivery.Redelivered, "delay", wait)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		t.Stop()
		delivery.Nack(false, true)
	default:
		delivery.Ack(false)
	}
}

// requeueDelay grows with the delivery count when the broker reports one
// (quorum queues), otherwise doubles once for a redelivered message.
func (c *Client) requeueDelay(d amqp091.Delivery) time.Duration {
	base := c.retryDelay
	if base <= 0 {
		base = defaultRetryDelay
	}
	n := 0
	if d.Redelivered {
		n = 1
	}
	switch count := d.Headers["x-delivery-count"].(type) {
	case int64:
		n = int(count)
	case int32:
		n = int(count)
	}
	if n > 5 {
		n = 5
	}
	return min(base<<n, maxBackoff)
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// exponentialBackoff doubles from one second and caps at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
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
	for _, s := range []string{"connection refused", "connection closed", "eof", "broken pipe", "use of closed network connection", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
