package entities

import "time"

// NotificationKind is the visual category of an in-app notification
type NotificationKind string

const (
	NotificationInfo    NotificationKind = "info"
	NotificationSuccess NotificationKind = "success"
	NotificationWarning NotificationKind = "warning"
	NotificationError   NotificationKind = "error"
)

// Notification is an in-app message shown to a single profile
type Notification struct {
	ID        string           `json:"id" db:"id"`
	UserID    string           `json:"user_id" db:"user_id"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	Kind      NotificationKind `json:"type" db:"kind"`
	RequestID *string          `json:"request_id,omitempty" db:"request_id"`
	Metadata  Metadata         `json:"metadata,omitempty" db:"metadata"`
	Read      bool             `json:"read" db:"read"`
	ReadAt    *time.Time       `json:"read_at,omitempty" db:"read_at"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// EmailTemplate names the rendered email layout
type EmailTemplate string

const (
	EmailNewRequest       EmailTemplate = "new_request"
	EmailRequestCompleted EmailTemplate = "request_completed"
)

// EmailMessage is a fully rendered outbound email. It is what travels on the
// email queue between the API and the notifier.
type EmailMessage struct {
	ID       string        `json:"id"`
	Template EmailTemplate `json:"template"`
	To       []string      `json:"to"`
	Subject  string        `json:"subject"`
	HTML     string        `json:"html"`
	Text     string        `json:"text"`
	Created  time.Time     `json:"created"`
}
