package services

import (
	"context"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/session"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

// Login status user types
const (
	UserTypeRegistered = "registered"
	UserTypeGuest      = "guest"
)

// ProfileService serves the caller's profile and the admin profile listing
type ProfileService struct {
	profiles repositories.ProfileRepository
	identity providers.IdentityProvider
}

// NewProfileService creates a new profile service
func NewProfileService(profiles repositories.ProfileRepository, identity providers.IdentityProvider) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		identity: identity,
	}
}

// Me returns the caller's profile
func (s *ProfileService) Me(ctx context.Context) (*entities.Profile, error) {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	return s.profiles.GetByID(ctx, principal.UserID)
}

// Complete stores the profile completion form. The descriptive label is also
// mirrored into user metadata so a later fallback insert keeps it.
func (s *ProfileService) Complete(ctx context.Context, completion *entities.ProfileCompletion) (*entities.Profile, error) {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if err := completion.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	if err := s.profiles.UpdateCompletion(ctx, principal.UserID, completion); err != nil {
		return nil, err
	}

	if s.identity != nil {
		meta := entities.Metadata{
			"name":        completion.FullName,
			"visual_role": string(completion.VisualRole),
		}
		if completion.EducationalLevel != nil {
			meta["educational_level"] = *completion.EducationalLevel
		}
		if completion.Department != nil {
			meta["department"] = *completion.Department
		}
		if err := s.identity.UpdateMetadata(ctx, principal.UserID, nil, meta); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to mirror profile into identity metadata")
		}
	}

	return s.profiles.GetByID(ctx, principal.UserID)
}

// LoginStatus reports the caller's login tracking
func (s *ProfileService) LoginStatus(ctx context.Context) (*entities.LoginStatus, error) {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetByID(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	userType := UserTypeRegistered
	if principal.IsAnonymous {
		userType = UserTypeGuest
	}
	return &entities.LoginStatus{
		FirstLoginCompleted: profile.FirstLoginCompleted,
		UserType:            userType,
		LoginCount:          profile.LoginCount,
	}, nil
}

// CompleteFirstLogin marks the caller's first login as done
func (s *ProfileService) CompleteFirstLogin(ctx context.Context) error {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return err
	}
	return s.profiles.CompleteFirstLogin(ctx, principal.UserID)
}

// ListProfiles returns every profile, newest first. Admin only.
func (s *ProfileService) ListProfiles(ctx context.Context) ([]*entities.Profile, error) {
	if _, err := session.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.profiles.List(ctx)
}
