package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
)

// AnalyticsService computes the admin analytics snapshot
type AnalyticsService interface {
	RequestAnalytics(ctx context.Context) (*entities.RequestAnalytics, error)
}

// DashboardService builds the landing page summaries
type DashboardService interface {
	UserDashboard(ctx context.Context) (*entities.UserDashboard, error)
	AdminDashboard(ctx context.Context) (*entities.AdminDashboard, error)
}

// AnalyticsHandler serves analytics and dashboards
type AnalyticsHandler struct {
	analytics  AnalyticsService
	dashboards DashboardService
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics AnalyticsService, dashboards DashboardService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics:  analytics,
		dashboards: dashboards,
	}
}

// RequestAnalytics handles GET /api/admin/analytics
func (h *AnalyticsHandler) RequestAnalytics(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.analytics.RequestAnalytics(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, snapshot)
}

// UserDashboard handles GET /api/dashboard
func (h *AnalyticsHandler) UserDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.dashboards.UserDashboard(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, dashboard)
}

// AdminDashboard handles GET /api/admin/dashboard
func (h *AnalyticsHandler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.dashboards.AdminDashboard(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, dashboard)
}
