package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes one message body
type Handler func(ctx context.Context, body []byte) error

// Resubscribe backoff bounds
const (
	minResubscribeDelay = time.Second
	maxResubscribeDelay = 30 * time.Second
)

// Consumer consumes messages from a RabbitMQ queue one at a time
type Consumer struct {
	conn      *Connection
	queueName string
	handler   Handler
	permanent func(error) bool
	logger    *zap.Logger

	// subscribe opens a fresh delivery stream; swapped out in tests
	subscribe func() (<-chan amqp.Delivery, error)
	minDelay  time.Duration
	maxDelay  time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// ConsumerOption customises a Consumer
type ConsumerOption func(*Consumer)

// WithPermanentErrors marks handler errors that must not be retried
func WithPermanentErrors(permanent func(error) bool) ConsumerOption {
	return func(c *Consumer) { c.permanent = permanent }
}

// WithConsumerLogger sets the logger
func WithConsumerLogger(logger *zap.Logger) ConsumerOption {
	return func(c *Consumer) { c.logger = logger }
}

// NewConsumer declares the queue and returns a consumer for it
func NewConsumer(conn *Connection, queueName string, handler Handler, opts ...ConsumerOption) (*Consumer, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	if err := declareQueue(ch, queueName); err != nil {
		return nil, err
	}

	c := &Consumer{
		conn:      conn,
		queueName: queueName,
		handler:   handler,
		permanent: func(error) bool { return false },
		logger:    zap.NewNop(),
		minDelay:  minResubscribeDelay,
		maxDelay:  maxResubscribeDelay,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
	c.subscribe = c.consume
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Start begins consuming in a background goroutine. When the broker closes
// the delivery stream the consumer re-subscribes with backoff until stopped.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.subscribe()
	if err != nil {
		return err
	}

	c.started.Store(true)
	go func() {
		defer close(c.doneChan)

		for {
			select {
			case <-c.stopChan:
				return
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					c.logger.Warn("delivery channel closed, resubscribing", zap.String("queue", c.queueName))
					if msgs, ok = c.resubscribe(ctx); !ok {
						return
					}
					continue
				}
				c.handle(ctx, d)
			}
		}
	}()

	c.logger.Info("consumer started", zap.String("queue", c.queueName))
	return nil
}

// consume opens a channel, limits it to one unacknowledged message and starts
// consuming the queue
func (c *Consumer) consume() (<-chan amqp.Delivery, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	if err := declareQueue(ch, c.queueName); err != nil {
		return nil, err
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}
	return msgs, nil
}

// resubscribe retries subscribe with doubling delays. It reports false when the
// consumer was stopped or ctx was cancelled first.
func (c *Consumer) resubscribe(ctx context.Context) (<-chan amqp.Delivery, bool) {
	delay := c.minDelay
	for attempt := 1; ; attempt++ {
		timer := time.NewTimer(delay)
		select {
		case <-c.stopChan:
			timer.Stop()
			return nil, false
		case <-ctx.Done():
			timer.Stop()
			return nil, false
		case <-timer.C:
		}

		msgs, err := c.subscribe()
		if err == nil {
			c.logger.Info("consumer resubscribed",
				zap.String("queue", c.queueName),
				zap.Int("attempt", attempt),
			)
			return msgs, true
		}

		c.logger.Warn("resubscribe failed",
			zap.String("queue", c.queueName),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		delay *= 2
		if delay > c.maxDelay {
			delay = c.maxDelay
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	err := c.handler(ctx, d.Body)

	switch decide(err, d.Redelivered, c.permanent) {
	case actionAck:
		if err := d.Ack(false); err != nil {
			c.logger.Error("failed to ack message", zap.Error(err))
		}
	case actionRequeue:
		c.logger.Warn("message processing failed, requeueing",
			zap.String("message_id", d.MessageId),
			zap.Error(err),
		)
		if err := d.Nack(false, true); err != nil {
			c.logger.Error("failed to nack message", zap.Error(err))
		}
	case actionDrop:
		c.logger.Error("message processing failed, dropping",
			zap.String("message_id", d.MessageId),
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(err),
		)
		if err := d.Nack(false, false); err != nil {
			c.logger.Error("failed to nack message", zap.Error(err))
		}
	}
}

type action int

const (
	actionAck action = iota
	actionRequeue
	actionDrop
)

// decide acks successes, drops permanent failures and anything that already
// failed once, and requeues the rest
func decide(err error, redelivered bool, permanent func(error) bool) action {
	switch {
	case err == nil:
		return actionAck
	case permanent != nil && permanent(err):
		return actionDrop
	case redelivered:
		return actionDrop
	}
	return actionRequeue
}

// Stop stops consuming and waits for the in-flight message to finish.
// Calling Stop on a consumer that never started returns at once.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	if !c.started.Load() {
		return
	}
	<-c.doneChan
	c.logger.Info("consumer stopped", zap.String("queue", c.queueName))
}
