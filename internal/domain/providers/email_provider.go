package providers

import (
	"context"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
)

// EmailSender delivers a rendered email
type EmailSender interface {
	Send(ctx context.Context, msg *entities.EmailMessage) (string, error)
}

// EmailQueue hands rendered emails to a background worker
type EmailQueue interface {
	Enqueue(ctx context.Context, msg *entities.EmailMessage) error
}
