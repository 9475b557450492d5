package entities

import (
	"time"

	"github.com/google/uuid"
)

// RequestEventType describes what happened to a maintenance request
type RequestEventType string

const (
	RequestEventCreated       RequestEventType = "request_created"
	RequestEventStatusChanged RequestEventType = "request_status_changed"
	RequestEventNotification  RequestEventType = "notification_created"
)

// RequestEvent is published on the event bus whenever a request or a
// notification changes so SSE clients and the search indexer can follow along.
type RequestEvent struct {
	ID             string           `json:"id"`
	Type           RequestEventType `json:"event_type"`
	RequestID      string           `json:"request_id,omitempty"`
	RequesterID    string           `json:"requester_id,omitempty"`
	RecipientID    string           `json:"recipient_id,omitempty"`
	Status         RequestStatus    `json:"status,omitempty"`
	PreviousStatus RequestStatus    `json:"previous_status,omitempty"`
	Notification   *Notification    `json:"notification,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// NewRequestEvent creates an event for a request
func NewRequestEvent(eventType RequestEventType, req *MaintenanceRequest) *RequestEvent {
	event := &RequestEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
	if req != nil {
		event.RequestID = req.ID
		event.RequesterID = req.RequesterID
		event.Status = req.Status
	}
	return event
}

// NewNotificationEvent wraps a stored notification for delivery to its recipient
func NewNotificationEvent(n *Notification) *RequestEvent {
	event := &RequestEvent{
		ID:           uuid.NewString(),
		Type:         RequestEventNotification,
		RecipientID:  n.UserID,
		Notification: n,
		Timestamp:    time.Now().UTC(),
	}
	if n.RequestID != nil {
		event.RequestID = *n.RequestID
	}
	return event
}
