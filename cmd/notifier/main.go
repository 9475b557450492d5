package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/application/services"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/rabbitmq"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/notifications"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/config"
)

// consumerRestartDelay is how long the worker waits before reattaching a
// consumer after the broker connection drops
const consumerRestartDelay = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-notifier", cfg.App.Environment)

	if cfg.RabbitMQ.URL == "" {
		log.Fatal().Msg("RABBITMQ_URL is required for the notifier")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName+"-notifier", cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	mqClient, err := rabbitmq.NewClient(&cfg.RabbitMQ)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
	}
	defer mqClient.Close()

	delivery := services.NewEmailDeliveryService(notifications.NewResendSender(&cfg.Email), metrics)

	log.Info().Str("queue", mqClient.QueueName()).Str("dlq", mqClient.DLQName()).Msg("Notifier started")
	for {
		msgs, err := mqClient.Consume()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to start consumer, retrying")
		} else {
			drain(ctx, msgs, delivery)
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Notifier stopped")
			return
		case <-time.After(consumerRestartDelay):
		}
	}
}

// drain handles deliveries until the channel closes or ctx ends. Failed jobs
// are rejected without requeue so the broker routes them to the DLQ.
func drain(ctx context.Context, msgs <-chan amqp.Delivery, delivery *services.EmailDeliveryService) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Warn().Msg("Consumer channel closed")
				return
			}

			err := delivery.Deliver(ctx, msg.Body)
			if err == nil {
				if ackErr := msg.Ack(false); ackErr != nil {
					log.Error().Err(ackErr).Str("message_id", msg.MessageId).Msg("Failed to ack email job")
				}
				continue
			}

			event := log.Error().Err(err).Str("message_id", msg.MessageId)
			if errors.Is(err, services.ErrMalformedEmail) {
				event.Msg("Dropping malformed email job")
			} else {
				event.Msg("Email delivery failed, dead-lettering job")
			}
			if nackErr := msg.Nack(false, false); nackErr != nil {
				log.Error().Err(nackErr).Str("message_id", msg.MessageId).Msg("Failed to nack email job")
			}
		}
	}
}
