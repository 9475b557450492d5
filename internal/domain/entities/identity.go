package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Metadata is a free-form JSON object such as the identity metadata bags or
// a notification payload.
type Metadata map[string]interface{}

// String returns the trimmed string stored under key, or "".
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// Value implements driver.Valuer for jsonb columns
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for jsonb columns
func (m *Metadata) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported scan type %T", src)
	}
	out := Metadata{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
	}
	*m = out
	return nil
}

// Identity is the user record held by the external identity provider.
type Identity struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	UserMetadata Metadata   `json:"user_metadata"`
	AppMetadata  Metadata   `json:"app_metadata"`
	IsAnonymous  bool       `json:"is_anonymous"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
}

// DisplayName picks the first non-empty name from user metadata.
func (i *Identity) DisplayName() string {
	for _, key := range []string{"name", "full_name"} {
		if name := i.UserMetadata.String(key); name != "" {
			return name
		}
	}
	return "Unknown"
}

// VisualRole returns the descriptive label from user metadata when it is valid.
func (i *Identity) VisualRole() *VisualRole {
	label := VisualRole(i.UserMetadata.String("visual_role"))
	if !label.IsValid() {
		return nil
	}
	return &label
}

// UserAttributes are the self-service changes an identity can make. Empty
// fields are left alone.
type UserAttributes struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// Session is the token pair issued by the identity provider.
type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	Identity     Identity `json:"user"`
}

// HasTokens is false for a sign-up that still awaits email confirmation.
func (s *Session) HasTokens() bool {
	return s != nil && s.AccessToken != ""
}

// Expiry returns the absolute access token expiry.
func (s *Session) Expiry(now time.Time) time.Time {
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	return now.Add(time.Duration(s.ExpiresIn) * time.Second)
}
