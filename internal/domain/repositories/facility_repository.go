package repositories

import (
	"context"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
)

// FacilityRepository defines the interface for facility data operations
type FacilityRepository interface {
	// Create creates a new facility
	Create(ctx context.Context, facility *entities.Facility) error

	// GetByID retrieves a facility by ID
	GetByID(ctx context.Context, id string) (*entities.Facility, error)

	// Update updates a facility
	Update(ctx context.Context, facility *entities.Facility) error

	// Delete deletes a facility
	Delete(ctx context.Context, id string) error

	// List retrieves facilities with filters
	List(ctx context.Context, filter FacilityFilter) ([]*entities.Facility, error)

	// CountActive returns the number of active facilities
	CountActive(ctx context.Context) (int, error)
}

// FacilityFilter defines filters for listing facilities
type FacilityFilter struct {
	IsActive *bool
	Limit    int
	Offset   int
}
