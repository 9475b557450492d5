package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
)

const defaultNotificationLimit = 50

// NotificationService is what the notification endpoints need
type NotificationService interface {
	List(ctx context.Context, unreadOnly bool, limit int) ([]*entities.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int64, error)
}

// NotificationHandler handles in-app notification HTTP requests
type NotificationHandler struct {
	notifications NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListNotifications handles GET /api/notifications
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultNotificationLimit)
	if limit == 0 || limit > maxPageSize {
		limit = defaultNotificationLimit
	}

	notifications, err := h.notifications.List(r.Context(), queryBool(r, "unread"), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if notifications == nil {
		notifications = []*entities.Notification{}
	}

	unread, err := h.notifications.UnreadCount(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"unread_count":  unread,
	})
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "notification ID is required")
		return
	}

	if err := h.notifications.MarkRead(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.notifications.MarkAllRead(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"updated": updated,
	})
}
