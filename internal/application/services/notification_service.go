package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/session"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
)

// NotificationService stores in-app notifications and pushes them to the
// recipient's event channel
type NotificationService struct {
	repo   repositories.NotificationRepository
	events providers.EventBus
	now    func() time.Time
}

// NewNotificationService creates a new notification service. events may be nil.
func NewNotificationService(repo repositories.NotificationRepository, events providers.EventBus) *NotificationService {
	return &NotificationService{
		repo:   repo,
		events: events,
		now:    time.Now,
	}
}

// Notify stores n and publishes it to the recipient
func (s *NotificationService) Notify(ctx context.Context, n *entities.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Kind == "" {
		n.Kind = entities.NotificationInfo
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}

	if s.events != nil {
		if err := s.events.Publish(ctx, providers.GetUserChannel(n.UserID), entities.NewNotificationEvent(n)); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("user_id", n.UserID).Msg("Failed to publish notification")
		}
	}
	return nil
}

// List returns the caller's notifications, newest first
func (s *NotificationService) List(ctx context.Context, unreadOnly bool, limit int) ([]*entities.Notification, error) {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, principal.UserID, unreadOnly, limit)
}

// UnreadCount counts the caller's unread notifications
func (s *NotificationService) UnreadCount(ctx context.Context) (int, error) {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return 0, err
	}
	return s.repo.CountUnread(ctx, principal.UserID)
}

// MarkRead marks one of the caller's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, principal.UserID, id)
}

// MarkAllRead marks all of the caller's notifications as read
func (s *NotificationService) MarkAllRead(ctx context.Context) (int64, error) {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return 0, err
	}
	return s.repo.MarkAllRead(ctx, principal.UserID)
}
