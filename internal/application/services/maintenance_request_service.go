package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/application/loaders"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/session"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/notifications"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

// Request creation limits per principal
const (
	CreateRateLimit       = 10
	CreateRateWindowSecs  = 3600
	defaultListLimit      = 50
	maxListLimit          = 200
	defaultSearchLimit    = 20
	createRateLimitPrefix = "ratelimit:requests:create:"
)

// MaintenanceRequestService handles the maintenance request lifecycle
type MaintenanceRequestService struct {
	requests      repositories.MaintenanceRequestRepository
	profiles      repositories.ProfileRepository
	search        repositories.RequestSearchRepository
	notifications *NotificationService
	emails        providers.EmailQueue
	renderer      *notifications.Renderer
	events        providers.EventBus
	limiter       providers.CacheProvider
	now           func() time.Time
}

// MaintenanceRequestDeps groups the collaborators of MaintenanceRequestService.
// Search, Events and Limiter are optional.
type MaintenanceRequestDeps struct {
	Requests      repositories.MaintenanceRequestRepository
	Profiles      repositories.ProfileRepository
	Search        repositories.RequestSearchRepository
	Notifications *NotificationService
	Emails        providers.EmailQueue
	Renderer      *notifications.Renderer
	Events        providers.EventBus
	Limiter       providers.CacheProvider
}

// NewMaintenanceRequestService creates a new maintenance request service
func NewMaintenanceRequestService(deps MaintenanceRequestDeps) *MaintenanceRequestService {
	return &MaintenanceRequestService{
		requests:      deps.Requests,
		profiles:      deps.Profiles,
		search:        deps.Search,
		notifications: deps.Notifications,
		emails:        deps.Emails,
		renderer:      deps.Renderer,
		events:        deps.Events,
		limiter:       deps.Limiter,
		now:           time.Now,
	}
}

// Create submits a new request for the caller. Admin emails, notifications
// and indexing happen after the insert and never fail the submission.
func (s *MaintenanceRequestService) Create(ctx context.Context, input *entities.CreateRequestInput) (*entities.MaintenanceRequest, error) {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := s.checkRateLimit(ctx, principal.UserID); err != nil {
		return nil, err
	}

	req := input.ToRequest(uuid.NewString(), principal.UserID, s.now().UTC())
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx).With().Str("request_id", req.ID).Logger()
	logger.Info().Str("category", string(req.Category)).Str("urgency", string(req.Urgency)).Msg("Maintenance request created")

	requester, err := s.profiles.GetByID(ctx, principal.UserID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load requester profile")
		requester = &entities.Profile{ID: principal.UserID, FullName: "Unknown"}
		if principal.Email != "" {
			email := principal.Email
			requester.Email = &email
		}
	}
	req.Requester = entities.SummaryFromProfile(requester)

	s.indexRequest(ctx, &logger, req)
	s.publish(ctx, &logger, entities.NewRequestEvent(entities.RequestEventCreated, req))
	s.notifyAdmins(ctx, &logger, req, requester)

	return req, nil
}

func (s *MaintenanceRequestService) checkRateLimit(ctx context.Context, userID string) error {
	if s.limiter == nil {
		return nil
	}
	count, err := s.limiter.Increment(ctx, createRateLimitPrefix+userID, CreateRateWindowSecs)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Rate limiter unavailable, allowing request")
		return nil
	}
	if count > CreateRateLimit {
		return apperrors.NewRateLimitError(fmt.Sprintf("You can submit at most %d requests per hour", CreateRateLimit))
	}
	return nil
}

func (s *MaintenanceRequestService) notifyAdmins(ctx context.Context, logger *zerolog.Logger, req *entities.MaintenanceRequest, requester *entities.Profile) {
	admins, err := s.profiles.ListAdmins(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load admins for notification")
		return
	}

	var recipients []string
	for _, admin := range admins {
		if email := admin.EmailAddress(); email != "" {
			recipients = append(recipients, email)
		}
		if s.notifications != nil {
			err := s.notifications.Notify(ctx, &entities.Notification{
				UserID:    admin.ID,
				Title:     "New Maintenance Request",
				Message:   fmt.Sprintf("%s submitted %q (%s, %s)", requester.FullName, req.Title, req.Category, req.Urgency),
				Kind:      entities.NotificationInfo,
				RequestID: &req.ID,
				Metadata:  entities.Metadata{"urgency": string(req.Urgency), "category": string(req.Category)},
			})
			if err != nil {
				logger.Warn().Err(err).Str("admin_id", admin.ID).Msg("Failed to create admin notification")
			}
		}
	}

	if len(recipients) == 0 {
		logger.Warn().Msg("No admin email addresses found, skipping new request email")
		return
	}
	if s.renderer == nil || s.emails == nil {
		return
	}

	msg, err := s.renderer.NewRequest(req, requester, recipients)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to render new request email")
		return
	}
	if err := s.emails.Enqueue(ctx, msg); err != nil {
		logger.Error().Err(err).Msg("Failed to queue new request email")
	}
}

// ListMine returns the caller's requests, newest first
func (s *MaintenanceRequestService) ListMine(ctx context.Context, limit, offset int) ([]*entities.MaintenanceRequest, error) {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	return s.requests.List(ctx, entities.RequestFilter{
		RequesterID: principal.UserID,
		Limit:       clampLimit(limit),
		Offset:      offset,
	})
}

// ListAll returns every request matching the filter. Admin only.
func (s *MaintenanceRequestService) ListAll(ctx context.Context, filter entities.RequestFilter) ([]*entities.MaintenanceRequest, error) {
	if _, err := session.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperrors.NewValidationError("Invalid status")
	}
	if filter.Category != "" && !filter.Category.IsValid() {
		return nil, apperrors.NewValidationError("Invalid category")
	}
	if filter.Urgency != "" && !filter.Urgency.IsValid() {
		return nil, apperrors.NewValidationError("Invalid urgency")
	}
	filter.Limit = clampLimit(filter.Limit)

	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.attachRequesters(ctx, requests)
	return requests, nil
}

// Get returns one request. Standard users only see their own.
func (s *MaintenanceRequestService) Get(ctx context.Context, id string) (*entities.MaintenanceRequest, error) {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.IsAdmin() && req.RequesterID != principal.UserID {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("maintenance request with id %s not found", id))
	}
	s.attachRequesters(ctx, []*entities.MaintenanceRequest{req})
	return req, nil
}

// UpdateStatus moves a request through Pending, In Progress and Completed.
// Admin only.
func (s *MaintenanceRequestService) UpdateStatus(ctx context.Context, id string, update *entities.StatusUpdate) (*entities.MaintenanceRequest, error) {
	principal, err := session.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := update.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.IsTerminal() {
		return nil, apperrors.NewConflictError(fmt.Sprintf("request is %s and can no longer change status", req.Status))
	}

	previous := req.Status
	update.Apply(req, s.now().UTC())
	if err := s.requests.UpdateStatus(ctx, req); err != nil {
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx).With().Str("request_id", req.ID).Logger()
	logger.Info().
		Str("admin_id", principal.UserID).
		Str("from", string(previous)).
		Str("to", string(req.Status)).
		Msg("Maintenance request status updated")

	requester, err := s.profiles.GetByID(ctx, req.RequesterID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load requester profile")
	}
	req.Requester = entities.SummaryFromProfile(requester)

	event := entities.NewRequestEvent(entities.RequestEventStatusChanged, req)
	event.PreviousStatus = previous
	s.indexRequest(ctx, &logger, req)
	s.publish(ctx, &logger, event)
	s.notifyRequester(ctx, &logger, req, requester)

	return req, nil
}

func (s *MaintenanceRequestService) notifyRequester(ctx context.Context, logger *zerolog.Logger, req *entities.MaintenanceRequest, requester *entities.Profile) {
	if s.notifications != nil {
		n := &entities.Notification{
			UserID:    req.RequesterID,
			Title:     "Request Status Updated",
			Message:   fmt.Sprintf("Your request %q is now %s", req.Title, req.Status),
			Kind:      entities.NotificationInfo,
			RequestID: &req.ID,
			Metadata:  entities.Metadata{"status": string(req.Status)},
		}
		if req.Status == entities.StatusCompleted {
			n.Title = "Request Completed"
			n.Message = fmt.Sprintf("Your request %q has been completed", req.Title)
			n.Kind = entities.NotificationSuccess
		}
		if err := s.notifications.Notify(ctx, n); err != nil {
			logger.Warn().Err(err).Msg("Failed to create requester notification")
		}
	}

	if req.Status != entities.StatusCompleted || s.renderer == nil || s.emails == nil {
		return
	}
	if requester.EmailAddress() == "" {
		logger.Warn().Msg("Requester has no email address, skipping completion email")
		return
	}

	msg, err := s.renderer.RequestCompleted(req, requester)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to render completion email")
		return
	}
	if err := s.emails.Enqueue(ctx, msg); err != nil {
		logger.Error().Err(err).Msg("Failed to queue completion email")
	}
}

// Search finds requests by free text. The search index is used when
// available; any index failure falls back to the database. Admin only.
func (s *MaintenanceRequestService) Search(ctx context.Context, params repositories.RequestSearchParams) ([]*entities.MaintenanceRequest, error) {
	if _, err := session.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if params.Limit <= 0 {
		params.Limit = defaultSearchLimit
	}
	params.Limit = clampLimit(params.Limit)

	var requests []*entities.MaintenanceRequest
	if s.search != nil {
		found, err := s.searchIndex(ctx, params)
		if err == nil {
			requests = found
		} else {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Search index unavailable, falling back to database")
		}
	}

	if requests == nil {
		found, err := s.requests.SearchText(ctx, params.Query, params.Limit)
		if err != nil {
			return nil, err
		}
		requests = filterRequests(found, params)
	}

	s.attachRequesters(ctx, requests)
	return requests, nil
}

func (s *MaintenanceRequestService) searchIndex(ctx context.Context, params repositories.RequestSearchParams) ([]*entities.MaintenanceRequest, error) {
	ids, err := s.search.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*entities.MaintenanceRequest{}, nil
	}

	found, err := s.requests.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*entities.MaintenanceRequest, len(found))
	for _, req := range found {
		byID[req.ID] = req
	}
	ordered := make([]*entities.MaintenanceRequest, 0, len(found))
	for _, id := range ids {
		if req, ok := byID[id]; ok {
			ordered = append(ordered, req)
		}
	}
	return ordered, nil
}

func filterRequests(requests []*entities.MaintenanceRequest, params repositories.RequestSearchParams) []*entities.MaintenanceRequest {
	out := make([]*entities.MaintenanceRequest, 0, len(requests))
	for _, req := range requests {
		if params.Status != "" && req.Status != params.Status {
			continue
		}
		if params.Category != "" && req.Category != params.Category {
			continue
		}
		out = append(out, req)
	}
	return out
}

// attachRequesters fills the requester summary of each request in one batch
func (s *MaintenanceRequestService) attachRequesters(ctx context.Context, requests []*entities.MaintenanceRequest) {
	if len(requests) == 0 {
		return
	}

	l := loaders.For(ctx)
	if l == nil {
		l = loaders.NewLoaders(s.profiles)
	}

	seen := make(map[string]struct{}, len(requests))
	ids := make([]string, 0, len(requests))
	for _, req := range requests {
		if _, ok := seen[req.RequesterID]; ok {
			continue
		}
		seen[req.RequesterID] = struct{}{}
		ids = append(ids, req.RequesterID)
	}

	profiles := l.LoadProfiles(ctx, ids)
	for _, req := range requests {
		if p, ok := profiles[req.RequesterID]; ok {
			req.Requester = entities.SummaryFromProfile(p)
		}
	}
}

func (s *MaintenanceRequestService) indexRequest(ctx context.Context, logger *zerolog.Logger, req *entities.MaintenanceRequest) {
	if s.search == nil {
		return
	}
	if err := s.search.Index(ctx, req); err != nil {
		logger.Warn().Err(err).Msg("Failed to index maintenance request")
	}
}

func (s *MaintenanceRequestService) publish(ctx context.Context, logger *zerolog.Logger, event *entities.RequestEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, providers.EventChannelRequestUpdates, event); err != nil {
		logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("Failed to publish request event")
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
