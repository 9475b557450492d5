package services

import (
	"context"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/session"
)

const recentRequestsLimit = 5

// DashboardService assembles the landing pages
type DashboardService struct {
	requests   repositories.MaintenanceRequestRepository
	profiles   repositories.ProfileRepository
	facilities repositories.FacilityRepository
	analytics  repositories.AnalyticsRepository
	requestSvc *MaintenanceRequestService
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(
	requests repositories.MaintenanceRequestRepository,
	profiles repositories.ProfileRepository,
	facilities repositories.FacilityRepository,
	analytics repositories.AnalyticsRepository,
	requestSvc *MaintenanceRequestService,
) *DashboardService {
	return &DashboardService{
		requests:   requests,
		profiles:   profiles,
		facilities: facilities,
		analytics:  analytics,
		requestSvc: requestSvc,
	}
}

// UserDashboard returns the caller's own request summary
func (s *DashboardService) UserDashboard(ctx context.Context) (*entities.UserDashboard, error) {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetByID(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	counts, err := s.requests.CountByStatus(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	recent, err := s.requests.List(ctx, entities.RequestFilter{
		RequesterID: principal.UserID,
		Limit:       recentRequestsLimit,
	})
	if err != nil {
		return nil, err
	}

	return &entities.UserDashboard{
		Profile:      profile,
		StatusCounts: counts,
		Total:        sumCounts(counts),
		Recent:       recent,
	}, nil
}

// AdminDashboard returns the organisation-wide summary. Admin only.
func (s *DashboardService) AdminDashboard(ctx context.Context) (*entities.AdminDashboard, error) {
	if _, err := session.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	counts, err := s.requests.CountByStatus(ctx, "")
	if err != nil {
		return nil, err
	}

	emergencies, err := s.analytics.PendingEmergencies(ctx)
	if err != nil {
		return nil, err
	}

	profileCount, err := s.profiles.Count(ctx)
	if err != nil {
		return nil, err
	}

	activeFacilities, err := s.facilities.CountActive(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.requestSvc.ListAll(ctx, entities.RequestFilter{Limit: recentRequestsLimit})
	if err != nil {
		return nil, err
	}

	return &entities.AdminDashboard{
		StatusCounts:       counts,
		Total:              sumCounts(counts),
		PendingEmergencies: emergencies,
		ProfileCount:       profileCount,
		ActiveFacilities:   activeFacilities,
		Recent:             recent,
	}, nil
}

func sumCounts(counts map[string]int) int {
	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}
