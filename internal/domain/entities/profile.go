package entities

import (
	"errors"
	"strings"
	"time"
)

// Profile is the application-side record for an identity
type Profile struct {
	ID                  string      `json:"id" db:"id"`
	FullName            string      `json:"full_name" db:"full_name"`
	Email               *string     `json:"email,omitempty" db:"email"`
	Role                Role        `json:"database_role" db:"database_role"`
	VisualRole          *VisualRole `json:"visual_role,omitempty" db:"visual_role"`
	EducationalLevel    *string     `json:"educational_level,omitempty" db:"educational_level"`
	Department          *string     `json:"department,omitempty" db:"department"`
	FirstLoginCompleted bool        `json:"first_login_completed" db:"first_login_completed"`
	LoginCount          int         `json:"login_count" db:"login_count"`
	LastLoginAt         *time.Time  `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the profile has the elevated role
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// NeedsCompletion is true for standard users that never picked a descriptive label.
func (p *Profile) NeedsCompletion() bool {
	return p != nil && p.Role != RoleAdmin && p.VisualRole == nil
}

// EmailAddress returns the email or "".
func (p *Profile) EmailAddress() string {
	if p == nil || p.Email == nil {
		return ""
	}
	return *p.Email
}

// NewProfileFromIdentity builds the minimal profile inserted when no
// trigger-created row appears after sign-in.
func NewProfileFromIdentity(identity *Identity, role Role, now time.Time) *Profile {
	profile := &Profile{
		ID:         identity.ID,
		FullName:   identity.DisplayName(),
		Role:       role,
		VisualRole: identity.VisualRole(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if identity.Email != "" {
		email := identity.Email
		profile.Email = &email
	}
	if level := identity.UserMetadata.String("educational_level"); level != "" {
		profile.EducationalLevel = &level
	}
	if dept := identity.UserMetadata.String("department"); dept != "" {
		profile.Department = &dept
	}
	return profile
}

// ProfileCompletion carries the fields a user fills in after first sign-in.
type ProfileCompletion struct {
	FullName         string     `json:"name"`
	VisualRole       VisualRole `json:"visual_role"`
	EducationalLevel *string    `json:"educational_level,omitempty"`
	Department       *string    `json:"department,omitempty"`
}

// Validate checks the completion form
func (c *ProfileCompletion) Validate() error {
	c.FullName = strings.TrimSpace(c.FullName)
	if c.FullName == "" {
		return errors.New("name is required")
	}
	if len(c.FullName) > 200 {
		return errors.New("name is too long")
	}
	if !c.VisualRole.IsValid() {
		return errors.New("visual_role must be one of Teacher, Staff, Student")
	}
	return nil
}

// LoginStatus summarises login tracking for a profile
type LoginStatus struct {
	FirstLoginCompleted bool   `json:"first_login_completed"`
	UserType            string `json:"user_type"`
	LoginCount          int    `json:"login_count"`
}
