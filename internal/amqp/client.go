// Package amqp implements request/reply calls over RabbitMQ: requests are
// published to a direct exchange and answers arrive on an exclusive reply
// queue, matched by correlation ID.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// ErrClosed is returned for calls pending when the connection goes away.
var ErrClosed = errors.New("amqp connection closed")

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	replyQueue   string
	logger       *slog.Logger

	publishMu sync.Mutex
	pending   *pendingCalls
}

// NewClient dials the broker, declares the exchange and an exclusive reply
// queue, and starts dispatching replies.
func NewClient(url, exchangeName string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		logger:       logger,
		pending:      newPendingCalls(),
	}

	deliveries, err := client.setup()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and reply queue: %w", err)
	}

	go client.dispatch(deliveries, conn.NotifyClose(make(chan *amqp091.Error, 1)))
	return client, nil
}

func (c *Client) setup() (<-chan amqp091.Delivery, error) {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := c.channel.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare reply queue: %w", err)
	}
	c.replyQueue = q.Name

	deliveries, err := c.channel.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume reply queue: %w", err)
	}
	return deliveries, nil
}

func (c *Client) dispatch(deliveries <-chan amqp091.Delivery, closed <-chan *amqp091.Error) {
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				c.pending.failAll()
				return
			}
			if !c.pending.resolve(d.CorrelationId, d.Body) {
				c.logger.Warn("Dropping reply without pending call", "correlation_id", d.CorrelationId)
			}
		case err := <-closed:
			if err != nil {
				c.logger.Error("AMQP connection closed", "error", err)
			}
			c.pending.failAll()
			return
		}
	}
}

// Call publishes body with the given routing key and waits for the reply
// or for ctx to end.
func (c *Client) Call(ctx context.Context, routingKey string, body []byte) ([]byte, error) {
	corrID := uuid.NewString()
	replies := c.pending.add(corrID)
	defer c.pending.remove(corrID)

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c.publishMu.Lock()
	err := c.channel.PublishWithContext(
		publishCtx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:   "application/json",
			CorrelationId: corrID,
			ReplyTo:       c.replyQueue,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	c.publishMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("publish request: %w", err)
	}

	c.logger.DebugContext(ctx, "Published agent request",
		"exchange", c.exchangeName,
		"routing_key", routingKey,
		"correlation_id", corrID)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case reply, ok := <-replies:
		if !ok {
			return nil, ErrClosed
		}
		return reply, nil
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// pendingCalls routes replies to waiting callers by correlation ID.
type pendingCalls struct {
	mu     sync.Mutex
	calls  map[string]chan []byte
	closed bool
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{calls: make(map[string]chan []byte)}
}

// add registers a call. After failAll the returned channel is already closed.
func (p *pendingCalls) add(id string) <-chan []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan []byte, 1)
	if p.closed {
		close(ch)
		return ch
	}
	p.calls[id] = ch
	return ch
}

func (p *pendingCalls) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.calls, id)
}

func (p *pendingCalls) resolve(id string, body []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.calls[id]
	if !ok {
		return false
	}
	delete(p.calls, id)
	ch <- body
	return true
}

func (p *pendingCalls) failAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for id, ch := range p.calls {
		close(ch)
		delete(p.calls, id)
	}
}
