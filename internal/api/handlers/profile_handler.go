package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/session"
)

// ProfileService is what the profile endpoints need
type ProfileService interface {
	Me(ctx context.Context) (*entities.Profile, error)
	Complete(ctx context.Context, completion *entities.ProfileCompletion) (*entities.Profile, error)
	LoginStatus(ctx context.Context) (*entities.LoginStatus, error)
	CompleteFirstLogin(ctx context.Context) error
	ListProfiles(ctx context.Context) ([]*entities.Profile, error)
}

// RoleChanger assigns access roles
type RoleChanger interface {
	ChangeRole(ctx context.Context, userID, rawRole string) (*entities.Profile, error)
}

// ProfileHandler handles profile HTTP requests
type ProfileHandler struct {
	profiles ProfileService
	roles    RoleChanger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles ProfileService, roles RoleChanger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		roles:    roles,
	}
}

type meResponse struct {
	ID          string              `json:"id"`
	Email       string              `json:"email"`
	Role        entities.Role       `json:"role"`
	RoleSource  entities.RoleSource `json:"role_source"`
	IsAnonymous bool                `json:"is_anonymous"`
	Profile     *entities.Profile   `json:"profile"`
}

// Me handles GET /api/me
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, err := session.RequirePrincipal(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	profile, err := h.profiles.Me(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, meResponse{
		ID:          principal.UserID,
		Email:       principal.Email,
		Role:        principal.Role,
		RoleSource:  principal.RoleSource,
		IsAnonymous: principal.IsAnonymous,
		Profile:     profile,
	})
}

// CompleteProfile handles PUT /api/me/profile
func (h *ProfileHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	var completion entities.ProfileCompletion
	if err := decodeJSON(r, &completion); err != nil {
		handleServiceError(w, r, err)
		return
	}

	profile, err := h.profiles.Complete(r.Context(), &completion)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, profile)
}

// LoginStatus handles GET /api/me/login-status
func (h *ProfileHandler) LoginStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.profiles.LoginStatus(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

// CompleteFirstLogin handles POST /api/me/first-login
func (h *ProfileHandler) CompleteFirstLogin(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.CompleteFirstLogin(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListProfiles handles GET /api/admin/profiles
func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.ListProfiles(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// ChangeRole handles PATCH /api/admin/profiles/{id}/role
func (h *ProfileHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "profile ID is required")
		return
	}

	var body struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &body); err != nil {
		handleServiceError(w, r, err)
		return
	}

	profile, err := h.roles.ChangeRole(r.Context(), userID, body.Role)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, profile)
}
