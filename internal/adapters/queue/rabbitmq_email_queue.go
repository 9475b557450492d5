package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
)

// Publisher is the part of the RabbitMQ client the queue needs
type Publisher interface {
	Publish(ctx context.Context, msg amqp.Publishing) error
}

// RabbitMQEmailQueue publishes rendered emails for cmd/notifier to deliver
type RabbitMQEmailQueue struct {
	publisher Publisher
}

var _ providers.EmailQueue = (*RabbitMQEmailQueue)(nil)

// NewRabbitMQEmailQueue creates a queue backed by publisher
func NewRabbitMQEmailQueue(publisher Publisher) *RabbitMQEmailQueue {
	return &RabbitMQEmailQueue{publisher: publisher}
}

// Enqueue publishes msg as a persistent JSON message
func (q *RabbitMQEmailQueue) Enqueue(ctx context.Context, msg *entities.EmailMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = q.publisher.Publish(publishCtx, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         string(msg.Template),
		Body:         body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish email %s: %w", msg.ID, err)
	}

	observability.LoggerFromContext(ctx).Debug().Str("email_id", msg.ID).Str("template", string(msg.Template)).Msg("Email queued")
	return nil
}
