package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/session"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

// FacilityService handles business logic for facilities
type FacilityService struct {
	repo repositories.FacilityRepository
	now  func() time.Time
}

// NewFacilityService creates a new facility service
func NewFacilityService(repo repositories.FacilityRepository) *FacilityService {
	return &FacilityService{
		repo: repo,
		now:  time.Now,
	}
}

// List returns facilities. Inactive ones are only included for admins who ask.
func (s *FacilityService) List(ctx context.Context, includeInactive bool) ([]*entities.Facility, error) {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	filter := repositories.FacilityFilter{}
	if !includeInactive || !principal.IsAdmin() {
		active := true
		filter.IsActive = &active
	}
	return s.repo.List(ctx, filter)
}

// GetByID retrieves a facility. Standard users cannot see inactive facilities.
func (s *FacilityService) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	facility, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !facility.IsActive && !principal.IsAdmin() {
		return nil, apperrors.NewNotFoundError("facility not found")
	}
	return facility, nil
}

// Create creates a new facility
func (s *FacilityService) Create(ctx context.Context, input *entities.FacilityInput) (*entities.Facility, error) {
	principal, err := session.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	now := s.now().UTC()
	facility := &entities.Facility{
		ID:        uuid.NewString(),
		IsActive:  true,
		CreatedAt: now,
	}
	input.Apply(facility, now)

	if err := s.repo.Create(ctx, facility); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("admin_id", principal.UserID).
		Str("facility_id", facility.ID).
		Msg("Facility created")
	return facility, nil
}

// Update updates a facility
func (s *FacilityService) Update(ctx context.Context, id string, input *entities.FacilityInput) (*entities.Facility, error) {
	if _, err := session.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	facility, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	input.Apply(facility, s.now().UTC())

	if err := s.repo.Update(ctx, facility); err != nil {
		return nil, err
	}
	return facility, nil
}

// Delete deletes a facility
func (s *FacilityService) Delete(ctx context.Context, id string) error {
	principal, err := session.RequireAdmin(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("admin_id", principal.UserID).
		Str("facility_id", id).
		Msg("Facility deleted")
	return nil
}
