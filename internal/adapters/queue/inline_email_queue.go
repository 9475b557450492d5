package queue

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/notifications"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
)

// InlineEmailQueue delivers in a background goroutine of the API process.
// It is used when no broker is configured.
type InlineEmailQueue struct {
	sender  providers.EmailSender
	metrics *observability.Metrics
	timeout time.Duration
}

var _ providers.EmailQueue = (*InlineEmailQueue)(nil)

// NewInlineEmailQueue creates an inline queue around sender
func NewInlineEmailQueue(sender providers.EmailSender, metrics *observability.Metrics) *InlineEmailQueue {
	return &InlineEmailQueue{sender: sender, metrics: metrics, timeout: 30 * time.Second}
}

// Enqueue starts delivery and returns immediately. Failures are logged only.
func (q *InlineEmailQueue) Enqueue(ctx context.Context, msg *entities.EmailMessage) error {
	go q.deliver(context.WithoutCancel(ctx), msg)
	return nil
}

func (q *InlineEmailQueue) deliver(ctx context.Context, msg *entities.EmailMessage) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	id, err := q.sender.Send(ctx, msg)
	observability.RecordEmailDelivery(ctx, q.metrics, string(msg.Template), err == nil)
	if errors.Is(err, notifications.ErrNotConfigured) {
		log.Warn().Str("template", string(msg.Template)).Msg("RESEND_API_KEY not configured, skipping email notification")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("email_id", msg.ID).Str("template", string(msg.Template)).Msg("Email send error")
		return
	}
	log.Info().Str("email_id", msg.ID).Str("provider_id", id).Int("recipients", len(msg.To)).Msg("Email sent")
}
