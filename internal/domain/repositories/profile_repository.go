package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
)

// ProfileRepository defines the interface for profile data operations
type ProfileRepository interface {
	// GetByID retrieves a profile by identity ID
	GetByID(ctx context.Context, id string) (*entities.Profile, error)

	// GetByIDs retrieves multiple profiles by identity IDs
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Profile, error)

	// List retrieves all profiles, newest first
	List(ctx context.Context) ([]*entities.Profile, error)

	// ListAdmins retrieves every admin profile
	ListAdmins(ctx context.Context) ([]*entities.Profile, error)

	// Count returns the number of profiles
	Count(ctx context.Context) (int, error)

	// InsertIfAbsent inserts the profile unless a row with the same ID exists.
	// It reports whether a row was written.
	InsertIfAbsent(ctx context.Context, profile *entities.Profile) (bool, error)

	// UpdateCompletion stores the profile completion form
	UpdateCompletion(ctx context.Context, id string, completion *entities.ProfileCompletion) error

	// UpdateRole calls the update_user_role procedure
	UpdateRole(ctx context.Context, id string, role entities.Role) error

	// WaitForSync calls the wait_for_profile_sync procedure
	WaitForSync(ctx context.Context, id string) (bool, error)

	// RecordLogin increments the login counter
	RecordLogin(ctx context.Context, id string, at time.Time) error

	// CompleteFirstLogin marks the first login as done
	CompleteFirstLogin(ctx context.Context, id string) error
}
