package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// MaintenanceRequestService is what the request endpoints need
type MaintenanceRequestService interface {
	Create(ctx context.Context, input *entities.CreateRequestInput) (*entities.MaintenanceRequest, error)
	ListMine(ctx context.Context, limit, offset int) ([]*entities.MaintenanceRequest, error)
	ListAll(ctx context.Context, filter entities.RequestFilter) ([]*entities.MaintenanceRequest, error)
	Get(ctx context.Context, id string) (*entities.MaintenanceRequest, error)
	UpdateStatus(ctx context.Context, id string, update *entities.StatusUpdate) (*entities.MaintenanceRequest, error)
	Search(ctx context.Context, params repositories.RequestSearchParams) ([]*entities.MaintenanceRequest, error)
}

// RequestHandler handles maintenance request HTTP requests
type RequestHandler struct {
	requests MaintenanceRequestService
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(requests MaintenanceRequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// CreateRequest handles POST /api/requests
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var input entities.CreateRequestInput
	if err := decodeJSON(r, &input); err != nil {
		handleServiceError(w, r, err)
		return
	}

	req, err := h.requests.Create(r.Context(), &input)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, req)
}

// ListMyRequests handles GET /api/requests
func (h *RequestHandler) ListMyRequests(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	requests, err := h.requests.ListMine(r.Context(), limit, offset)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithRequests(w, requests)
}

// GetRequest handles GET /api/requests/{id}
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "request ID is required")
		return
	}

	req, err := h.requests.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, req)
}

// ListAllRequests handles GET /api/admin/requests
func (h *RequestHandler) ListAllRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset := pagination(r)

	filter := entities.RequestFilter{
		RequesterID: query.Get("requester_id"),
		Status:      entities.RequestStatus(query.Get("status")),
		Category:    entities.RequestCategory(query.Get("category")),
		Urgency:     entities.UrgencyLevel(query.Get("urgency")),
		Limit:       limit,
		Offset:      offset,
	}

	requests, err := h.requests.ListAll(r.Context(), filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithRequests(w, requests)
}

// UpdateStatus handles PATCH /api/admin/requests/{id}/status
func (h *RequestHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "request ID is required")
		return
	}

	var update entities.StatusUpdate
	if err := decodeJSON(r, &update); err != nil {
		handleServiceError(w, r, err)
		return
	}

	req, err := h.requests.UpdateStatus(r.Context(), id, &update)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, req)
}

// SearchRequests handles GET /api/admin/requests/search
func (h *RequestHandler) SearchRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := pagination(r)

	params := repositories.RequestSearchParams{
		Query:    query.Get("q"),
		Status:   entities.RequestStatus(query.Get("status")),
		Category: entities.RequestCategory(query.Get("category")),
		Limit:    limit,
	}

	requests, err := h.requests.Search(r.Context(), params)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithRequests(w, requests)
}

func respondWithRequests(w http.ResponseWriter, requests []*entities.MaintenanceRequest) {
	if requests == nil {
		requests = []*entities.MaintenanceRequest{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"requests": requests,
		"count":    len(requests),
	})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = queryInt(r, "limit", defaultPageSize)
	if limit == 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return limit, queryInt(r, "offset", 0)
}
