package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"catalog/internal/models"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// DefaultQueue receives product events when no queue is configured.
const DefaultQueue = "product_events"

// ErrDeliveriesClosed is returned by ConsumeProductEvents when the broker
// closes the delivery channel.
var ErrDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

// channel is the subset of *amqp.Channel the client uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    io.Closer
	channel channel
	queue   string
	logger  *zap.Logger
	// amqp channels must not publish from several goroutines at once
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL   string
	Queue string
}

// NewClient connects to RabbitMQ, opens a channel and declares the durable
// product event queue.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	c, err := newClient(conn, ch, cfg.Queue, logger)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	c.logger.Info("rabbitmq client connected", zap.String("queue", c.queue))
	return c, nil
}

func newClient(conn io.Closer, ch channel, queue string, logger *zap.Logger) (*Client, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := declare(ch, queue); err != nil {
		return nil, err
	}
	return &Client{conn: conn, channel: ch, queue: queue, logger: logger}, nil
}

func declare(ch channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s: %w", queue, err)
	}
	return nil
}

// Queue is the name of the declared queue.
func (c *Client) Queue() string {
	return c.queue
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// PublishProductEvent publishes event as a persistent JSON message.
func (c *Client) PublishProductEvent(ctx context.Context, event models.ProductEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal product event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish(
		"",      // default exchange
		c.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Type,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish product event: %w", err)
	}

	c.logger.Debug("product event published", zap.String("type", event.Type), zap.Uint("id", event.ProductID))
	return nil
}

// ConsumeProductEvents hands every event on the queue to handle until ctx is
// cancelled. Messages are acked on success and requeued when handle fails;
// undecodable messages are rejected without requeue.
func (c *Client) ConsumeProductEvents(ctx context.Context, handle func(models.ProductEvent) error) error {
	msgs, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.deliver(msg, handle)
		}
	}
}

func (c *Client) deliver(msg amqp.Delivery, handle func(models.ProductEvent) error) {
	var event models.ProductEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Warn("discarding undecodable message", zap.Uint64("tag", msg.DeliveryTag), zap.Error(err))
		if err := msg.Reject(false); err != nil {
			c.logger.Error("failed to reject message", zap.Uint64("tag", msg.DeliveryTag), zap.Error(err))
		}
		return
	}

	if err := handle(event); err != nil {
		c.logger.Error("failed to process product event", zap.Uint64("tag", msg.DeliveryTag), zap.Error(err))
		if err := msg.Nack(false, true); err != nil {
			c.logger.Error("failed to nack message", zap.Uint64("tag", msg.DeliveryTag), zap.Error(err))
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		c.logger.Error("failed to ack message", zap.Uint64("tag", msg.DeliveryTag), zap.Error(err))
	}
}
