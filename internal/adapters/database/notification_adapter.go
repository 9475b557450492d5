package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

const defaultNotificationLimit = 50

// NotificationAdapter implements NotificationRepository on sqlx
type NotificationAdapter struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewNotificationAdapter creates a new notification adapter
func NewNotificationAdapter(client *postgres.Client) repositories.NotificationRepository {
	return &NotificationAdapter{
		db:  sqlx.NewDb(client.DB(), "postgres"),
		now: time.Now,
	}
}

// Create stores a notification
func (a *NotificationAdapter) Create(ctx context.Context, n *entities.Notification) error {
	if n.Metadata == nil {
		n.Metadata = entities.Metadata{}
	}
	query := `
		INSERT INTO notifications (id, user_id, title, message, kind, request_id, metadata, read, created_at)
		VALUES (:id, :user_id, :title, :message, :kind, :request_id, :metadata, :read, :created_at)
	`
	if _, err := a.db.NamedExecContext(ctx, query, n); err != nil {
		return apperrors.NewInternalError("failed to create notification", err)
	}
	return nil
}

// ListByUser returns the newest notifications for a user
func (a *NotificationAdapter) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entities.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}

	query := `
		SELECT id, user_id, title, message, kind, request_id, metadata, read, read_at, created_at
		FROM notifications
		WHERE user_id = $1
	`
	if unreadOnly {
		query += " AND read = false"
	}
	query += " ORDER BY created_at DESC LIMIT $2"

	notifications := []*entities.Notification{}
	if err := a.db.SelectContext(ctx, &notifications, query, userID, limit); err != nil {
		return nil, apperrors.NewInternalError("failed to list notifications", err)
	}
	return notifications, nil
}

// MarkRead marks one of the user's notifications as read
func (a *NotificationAdapter) MarkRead(ctx context.Context, userID, id string) error {
	result, err := a.db.ExecContext(ctx,
		`UPDATE notifications SET read = true, read_at = COALESCE(read_at, $3) WHERE id = $1 AND user_id = $2`,
		id, userID, a.now().UTC(),
	)
	if err != nil {
		return apperrors.NewInternalError("failed to mark notification read", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("notification with id %s not found", id))
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read
func (a *NotificationAdapter) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := a.db.ExecContext(ctx,
		`UPDATE notifications SET read = true, read_at = $2 WHERE user_id = $1 AND read = false`,
		userID, a.now().UTC(),
	)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to mark notifications read", err)
	}
	return result.RowsAffected()
}

// CountUnread counts the user's unread notifications
func (a *NotificationAdapter) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	if err := a.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = false`, userID); err != nil {
		return 0, apperrors.NewInternalError("failed to count notifications", err)
	}
	return count, nil
}
