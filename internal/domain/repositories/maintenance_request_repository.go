package repositories

import (
	"context"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
)

// MaintenanceRequestRepository defines the interface for maintenance request data operations
type MaintenanceRequestRepository interface {
	// Create stores a new request
	Create(ctx context.Context, req *entities.MaintenanceRequest) error

	// GetByID retrieves a request by ID
	GetByID(ctx context.Context, id string) (*entities.MaintenanceRequest, error)

	// GetByIDs retrieves several requests, used to hydrate search hits
	GetByIDs(ctx context.Context, ids []string) ([]*entities.MaintenanceRequest, error)

	// List retrieves requests matching the filter, newest first
	List(ctx context.Context, filter entities.RequestFilter) ([]*entities.MaintenanceRequest, error)

	// UpdateStatus persists a status transition with its completion fields
	UpdateStatus(ctx context.Context, req *entities.MaintenanceRequest) error

	// CountByStatus returns request counts per status, optionally for one requester
	CountByStatus(ctx context.Context, requesterID string) (map[string]int, error)

	// SearchText runs a case-insensitive match on title, description and location
	SearchText(ctx context.Context, query string, limit int) ([]*entities.MaintenanceRequest, error)
}

// RequestSearchRepository is the full text index for requests (e.g. Typesense)
type RequestSearchRepository interface {
	// Search returns matching request IDs, best match first
	Search(ctx context.Context, params RequestSearchParams) ([]string, error)

	// Index upserts a request document
	Index(ctx context.Context, req *entities.MaintenanceRequest) error

	// Delete removes a request from the index
	Delete(ctx context.Context, id string) error
}

// RequestSearchParams defines parameters for request search
type RequestSearchParams struct {
	Query    string
	Status   entities.RequestStatus
	Category entities.RequestCategory
	Limit    int
}
