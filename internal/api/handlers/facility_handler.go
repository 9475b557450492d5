package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
)

// FacilityService is what the facility endpoints need
type FacilityService interface {
	List(ctx context.Context, includeInactive bool) ([]*entities.Facility, error)
	GetByID(ctx context.Context, id string) (*entities.Facility, error)
	Create(ctx context.Context, input *entities.FacilityInput) (*entities.Facility, error)
	Update(ctx context.Context, id string, input *entities.FacilityInput) (*entities.Facility, error)
	Delete(ctx context.Context, id string) error
}

// FacilityHandler handles facility-related HTTP requests
type FacilityHandler struct {
	facilities FacilityService
}

// NewFacilityHandler creates a new facility handler
func NewFacilityHandler(facilities FacilityService) *FacilityHandler {
	return &FacilityHandler{
		facilities: facilities,
	}
}

// GetFacility handles GET /api/facilities/{id}
func (h *FacilityHandler) GetFacility(w http.ResponseWriter, r *http.Request) {
	facilityID := r.PathValue("id")
	if facilityID == "" {
		respondWithError(w, http.StatusBadRequest, "facility ID is required")
		return
	}

	facility, err := h.facilities.GetByID(r.Context(), facilityID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, facility)
}

// ListFacilities handles GET /api/facilities
func (h *FacilityHandler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	facilities, err := h.facilities.List(r.Context(), queryBool(r, "include_inactive"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if facilities == nil {
		facilities = []*entities.Facility{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"facilities": facilities,
		"count":      len(facilities),
	})
}

// CreateFacility handles POST /api/admin/facilities
func (h *FacilityHandler) CreateFacility(w http.ResponseWriter, r *http.Request) {
	var input entities.FacilityInput
	if err := decodeJSON(r, &input); err != nil {
		handleServiceError(w, r, err)
		return
	}

	facility, err := h.facilities.Create(r.Context(), &input)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, facility)
}

// UpdateFacility handles PUT /api/admin/facilities/{id}
func (h *FacilityHandler) UpdateFacility(w http.ResponseWriter, r *http.Request) {
	facilityID := r.PathValue("id")
	if facilityID == "" {
		respondWithError(w, http.StatusBadRequest, "facility ID is required")
		return
	}

	var input entities.FacilityInput
	if err := decodeJSON(r, &input); err != nil {
		handleServiceError(w, r, err)
		return
	}

	facility, err := h.facilities.Update(r.Context(), facilityID, &input)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, facility)
}

// DeleteFacility handles DELETE /api/admin/facilities/{id}
func (h *FacilityHandler) DeleteFacility(w http.ResponseWriter, r *http.Request) {
	facilityID := r.PathValue("id")
	if facilityID == "" {
		respondWithError(w, http.StatusBadRequest, "facility ID is required")
		return
	}

	if err := h.facilities.Delete(r.Context(), facilityID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
