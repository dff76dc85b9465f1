package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Binding names where the consumer's queue sits in the broker topology.
type Binding struct {
	Exchange   string
	Queue      string
	RoutingKey string
	Prefetch   int
}

// Consumer keeps one queue subscription alive, redialing the broker when
// the connection or channel drops.
type Consumer struct {
	url     string
	binding Binding
	logger  *slog.Logger

	mu   sync.Mutex
	conn *amqp091.Connection
}

var errDeliveriesClosed = errors.New("consumer channel closed")

// Dial opens a broker connection, retrying until it succeeds or ctx ends.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*amqp091.Connection, error) {
	for attempt := 0; ; attempt++ {
		conn, err := amqp091.Dial(url)
		if err == nil {
			return conn, nil
		}
		delay := retryDelay(attempt)
		logger.Warn("rabbitmq not reachable, retrying", "attempt", attempt+1, "delay", delay, "err", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		case <-timer.C:
		}
	}
}

func NewRabbitConsumer(ctx context.Context, url string, binding Binding, logger *slog.Logger) (*Consumer, error) {
	c := &Consumer{url: url, binding: binding, logger: logger}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// connect dials, declares the topology and swaps in the new connection.
func (c *Consumer) connect(ctx context.Context) error {
	conn, err := Dial(ctx, c.url, c.logger)
	if err != nil {
		return err
	}
	if err := declare(conn, c.binding); err != nil {
		_ = conn.Close()
		return err
	}

	c.mu.Lock()
	prev := c.conn
	c.conn = conn
	c.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

func declare(conn *amqp091.Connection, binding Binding) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		binding.Exchange,
		amqp091.ExchangeDirect,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		binding.Queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(
		binding.Queue,
		binding.RoutingKey,
		binding.Exchange,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Start consumes until ctx ends. A dropped connection or channel is
// redialed; only a failure to re-declare the topology is returned.
func (c *Consumer) Start(ctx context.Context, handler func(context.Context, amqp091.Delivery)) error {
	s := supervisor{
		consume:   func(ctx context.Context) error { return c.consume(ctx, handler) },
		reconnect: c.connect,
		delay:     retryDelay,
		logger:    c.logger,
	}
	return s.run(ctx)
}

func (c *Consumer) consume(ctx context.Context, handler func(context.Context, amqp091.Delivery)) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	prefetch := c.binding.Prefetch
	if prefetch <= 0 {
		prefetch = 32
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(c.binding.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue: %w", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ch.Cancel("", false)
		case <-stop:
		}
	}()

	c.logger.Info("consuming status events",
		"exchange", c.binding.Exchange, "queue", c.binding.Queue, "routing_key", c.binding.RoutingKey)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}
			handler(ctx, msg)
		}
	}
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// supervisor reruns consume after reconnecting, backing off between
// attempts. A session that outlives the longest backoff resets the count.
type supervisor struct {
	consume   func(ctx context.Context) error
	reconnect func(ctx context.Context) error
	delay     func(attempt int) time.Duration
	logger    *slog.Logger
}

func (s supervisor) run(ctx context.Context) error {
	attempt := 0
	for {
		began := time.Now()
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(began) > s.delay(math.MaxInt32) {
			attempt = 0
		}

		delay := s.delay(attempt)
		attempt++
		s.logger.Warn("status consumer interrupted, reconnecting", "attempt", attempt, "delay", delay, "err", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := s.reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// retryDelay doubles from one second and caps at ten.
func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 4 {
		attempt = 4
	}
	delay := time.Duration(1<<attempt) * time.Second
	if delay > 10*time.Second {
		delay = 10 * time.Second
	}
	return delay
}
