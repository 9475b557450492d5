package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/config"
	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/retry"
)

const (
	ExchangeName    = "maintenance.notifications"
	DLXExchangeName = "maintenance.notifications.dlx"

	RoutingKeyEmail = "email.send"
	DLQRoutingKey   = "dlq.email"

	reconnectDelay = 5 * time.Second
	prefetchCount  = 10
	dlqMessageTTL  = int64(7 * 24 * time.Hour / time.Millisecond)
)

// Client owns one AMQP connection and channel with the email topology declared.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	url     string
	queue   string
	mu      sync.RWMutex
	done    chan struct{}
}

// NewClient dials the broker, declares the topology and keeps the connection alive.
func NewClient(cfg *config.RabbitMQConfig) (*Client, error) {
	c := &Client{
		url:   cfg.URL,
		queue: cfg.EmailQueue,
		done:  make(chan struct{}),
	}

	err := retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"RabbitMQ",
		c.connect,
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("RabbitMQ connection attempt failed")
		},
	)
	if err != nil {
		return nil, err
	}

	go c.handleReconnect()
	return c, nil
}

// QueueName is the main email queue
func (c *Client) QueueName() string {
	return c.queue
}

// DLQName is the dead-letter queue paired with the email queue
func (c *Client) DLQName() string {
	return c.queue + ".dlq"
}

func (c *Client) connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("channel: %w", err)
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("qos: %w", err)
	}

	if err := c.declareTopology(ch); err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.channel = ch
	log.Info().Str("queue", c.queue).Msg("rabbitmq: connected with DLQ configuration")
	return nil
}

func (c *Client) declareTopology(ch *amqp.Channel) error {
	for _, exchange := range []string{ExchangeName, DLXExchangeName} {
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("exchange declare %s: %w", exchange, err)
		}
	}

	if _, err := ch.QueueDeclare(c.DLQName(), true, false, false, false, amqp.Table{
		"x-message-ttl": dlqMessageTTL,
	}); err != nil {
		return fmt.Errorf("dlq declare %s: %w", c.DLQName(), err)
	}
	if err := ch.QueueBind(c.DLQName(), DLQRoutingKey, DLXExchangeName, false, nil); err != nil {
		return fmt.Errorf("dlq bind %s: %w", c.DLQName(), err)
	}

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    DLXExchangeName,
		"x-dead-letter-routing-key": DLQRoutingKey,
	}); err != nil {
		return fmt.Errorf("queue declare %s: %w", c.queue, err)
	}
	if err := ch.QueueBind(c.queue, RoutingKeyEmail, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind %s->%s: %w", c.queue, RoutingKeyEmail, err)
	}
	return nil
}

func (c *Client) handleReconnect() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		select {
		case <-c.done:
			return
		case err := <-conn.NotifyClose(make(chan *amqp.Error, 1)):
			if err != nil {
				log.Warn().Err(err).Msg("rabbitmq: disconnected")
			}

			c.mu.Lock()
			for {
				select {
				case <-c.done:
					c.mu.Unlock()
					return
				default:
				}
				if err := c.connect(); err != nil {
					log.Error().Err(err).Msg("rabbitmq: reconnect failed")
					time.Sleep(reconnectDelay)
					continue
				}
				break
			}
			c.mu.Unlock()
		}
	}
}

// Publish sends a persistent message to the email routing key
func (c *Client) Publish(ctx context.Context, msg amqp.Publishing) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.channel == nil {
		return fmt.Errorf("channel not available")
	}
	return c.channel.PublishWithContext(ctx, ExchangeName, RoutingKeyEmail, false, false, msg)
}

// Consume starts a manual-ack consumer on the email queue
func (c *Client) Consume() (<-chan amqp.Delivery, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.channel == nil {
		return nil, fmt.Errorf("channel not available")
	}

	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return msgs, nil
}

// Close stops reconnecting and closes the channel and connection
func (c *Client) Close() {
	close(c.done)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
