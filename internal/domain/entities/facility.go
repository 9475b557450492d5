package entities

import (
	"errors"
	"strings"
	"time"
)

// Facility is a building or space that maintenance requests may refer to
type Facility struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// FacilityInput is the admin create/update form
type FacilityInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

// Validate trims and checks the form
func (in *FacilityInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return errors.New("facility name is required")
	}
	if len(in.Name) > 150 {
		return errors.New("facility name is too long")
	}
	if len(in.Description) > 2000 {
		return errors.New("facility description is too long")
	}
	return nil
}

// Apply copies the form onto f. A missing is_active keeps the current value.
func (in *FacilityInput) Apply(f *Facility, now time.Time) {
	f.Name = in.Name
	f.Description = in.Description
	if in.IsActive != nil {
		f.IsActive = *in.IsActive
	}
	f.UpdatedAt = now
}
