package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/notifications"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
)

// ErrMalformedEmail marks a queued payload that can never be delivered
var ErrMalformedEmail = errors.New("malformed email job")

// EmailDeliveryService sends queued emails with retries
type EmailDeliveryService struct {
	sender   providers.EmailSender
	metrics  *observability.Metrics
	attempts uint
	delay    time.Duration
	maxDelay time.Duration
}

// NewEmailDeliveryService creates a delivery service with 3 attempts and
// exponential backoff starting at one second
func NewEmailDeliveryService(sender providers.EmailSender, metrics *observability.Metrics) *EmailDeliveryService {
	return &EmailDeliveryService{
		sender:   sender,
		metrics:  metrics,
		attempts: 3,
		delay:    time.Second,
		maxDelay: 30 * time.Second,
	}
}

// Deliver decodes a queued email and sends it. A nil error means the job can
// be acknowledged. Unconfigured email is treated as delivered so jobs do not
// pile up in the dead letter queue.
func (s *EmailDeliveryService) Deliver(ctx context.Context, body []byte) error {
	var msg entities.EmailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEmail, err)
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("%w: no recipients", ErrMalformedEmail)
	}

	var messageID string
	err := retry.Do(
		func() error {
			id, err := s.sender.Send(ctx, &msg)
			if err != nil {
				return err
			}
			messageID = id
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.MaxDelay(s.maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, notifications.ErrNotConfigured)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Str("email_id", msg.ID).Msg("Email delivery failed, retrying")
		}),
	)

	if errors.Is(err, notifications.ErrNotConfigured) {
		log.Warn().Str("email_id", msg.ID).Msg("RESEND_API_KEY not configured, skipping email notification")
		return nil
	}

	observability.RecordEmailDelivery(ctx, s.metrics, string(msg.Template), err == nil)
	if err != nil {
		return fmt.Errorf("failed to deliver email %s: %w", msg.ID, err)
	}

	log.Info().Str("email_id", msg.ID).Str("provider_id", messageID).Str("template", string(msg.Template)).Msg("Email delivered")
	return nil
}
