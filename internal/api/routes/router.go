package routes

import (
	"net/http"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/api/handlers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/api/middleware"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
)

// Dependencies is everything the router wires together
type Dependencies struct {
	AuthHandler         *handlers.AuthHandler
	ProfileHandler      *handlers.ProfileHandler
	RequestHandler      *handlers.RequestHandler
	FacilityHandler     *handlers.FacilityHandler
	NotificationHandler *handlers.NotificationHandler
	AnalyticsHandler    *handlers.AnalyticsHandler
	SSEHandler          *handlers.SSEHandler

	Authenticator    middleware.Authenticator
	AccessCookieName string
	ProfileRepo      repositories.ProfileRepository
	CacheMiddleware  *middleware.CacheMiddleware
	Metrics          *observability.Metrics
	AllowedOrigins   []string
}

// Router holds all route handlers
type Router struct {
	mux  *http.ServeMux
	deps Dependencies
}

// NewRouter creates a new router
func NewRouter(deps Dependencies) *Router {
	return &Router{
		mux:  http.NewServeMux(),
		deps: deps,
	}
}

// protected requires a session and attaches per-request loaders
func (r *Router) protected(h http.HandlerFunc) http.Handler {
	var handler http.Handler = h
	if r.deps.ProfileRepo != nil {
		handler = middleware.Loaders(r.deps.ProfileRepo)(handler)
	}
	return middleware.RequireAuth(r.deps.Authenticator, r.deps.AccessCookieName)(handler)
}

// admin requires a session holding the admin role
func (r *Router) admin(h http.HandlerFunc) http.Handler {
	return r.protected(middleware.RequireAdmin(h).ServeHTTP)
}

// cached puts the response cache in front of h. It runs inside the session
// check so entries are keyed by role.
func (r *Router) cached(h http.HandlerFunc) http.HandlerFunc {
	if r.deps.CacheMiddleware == nil {
		return h
	}
	return r.deps.CacheMiddleware.Middleware(h).ServeHTTP
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	health := func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	}
	r.mux.HandleFunc("GET /health", health)
	r.mux.HandleFunc("GET /api/health", health)

	// Sign-in
	auth := r.deps.AuthHandler
	r.mux.HandleFunc("GET /auth/login", auth.Login)
	r.mux.HandleFunc("GET /auth/callback", auth.Callback)
	r.mux.HandleFunc("POST /auth/signout", auth.SignOut)
	r.mux.HandleFunc("POST /auth/signup", auth.SignUp)
	r.mux.HandleFunc("POST /auth/signin", auth.SignIn)
	r.mux.HandleFunc("POST /auth/guest", auth.Guest)

	// Current user
	profiles := r.deps.ProfileHandler
	r.mux.Handle("GET /api/me", r.protected(profiles.Me))
	r.mux.Handle("PUT /api/me/profile", r.protected(profiles.CompleteProfile))
	r.mux.Handle("GET /api/me/login-status", r.protected(profiles.LoginStatus))
	r.mux.Handle("POST /api/me/first-login", r.protected(profiles.CompleteFirstLogin))
	r.mux.Handle("POST /api/me/link-email", r.protected(auth.LinkEmail))
	r.mux.Handle("POST /api/me/password", r.protected(auth.SetPassword))

	// Maintenance requests
	requests := r.deps.RequestHandler
	r.mux.Handle("POST /api/requests", r.protected(requests.CreateRequest))
	r.mux.Handle("GET /api/requests", r.protected(requests.ListMyRequests))
	r.mux.Handle("GET /api/requests/{id}", r.protected(requests.GetRequest))

	// Facilities
	facilities := r.deps.FacilityHandler
	r.mux.Handle("GET /api/facilities", r.protected(r.cached(facilities.ListFacilities)))
	r.mux.Handle("GET /api/facilities/{id}", r.protected(r.cached(facilities.GetFacility)))

	// Notifications
	notifications := r.deps.NotificationHandler
	r.mux.Handle("GET /api/notifications", r.protected(notifications.ListNotifications))
	r.mux.Handle("POST /api/notifications/read-all", r.protected(notifications.MarkAllRead))
	r.mux.Handle("POST /api/notifications/{id}/read", r.protected(notifications.MarkRead))
	r.mux.Handle("GET /api/notifications/stream", r.protected(r.deps.SSEHandler.StreamNotifications))

	// Dashboards
	analytics := r.deps.AnalyticsHandler
	r.mux.Handle("GET /api/dashboard", r.protected(analytics.UserDashboard))

	// Administration
	r.mux.Handle("GET /api/admin/dashboard", r.admin(analytics.AdminDashboard))
	r.mux.Handle("GET /api/admin/analytics", r.admin(analytics.RequestAnalytics))
	r.mux.Handle("GET /api/admin/profiles", r.admin(profiles.ListProfiles))
	r.mux.Handle("PATCH /api/admin/profiles/{id}/role", r.admin(profiles.ChangeRole))
	r.mux.Handle("GET /api/admin/requests", r.admin(requests.ListAllRequests))
	r.mux.Handle("GET /api/admin/requests/search", r.admin(requests.SearchRequests))
	r.mux.Handle("PATCH /api/admin/requests/{id}/status", r.admin(requests.UpdateStatus))
	r.mux.Handle("POST /api/admin/facilities", r.admin(r.cached(facilities.CreateFacility)))
	r.mux.Handle("PUT /api/admin/facilities/{id}", r.admin(r.cached(facilities.UpdateFacility)))
	r.mux.Handle("DELETE /api/admin/facilities/{id}", r.admin(r.cached(facilities.DeleteFacility)))

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.deps.Metrics)(handler)

	// Compression, ETag and cache headers; event streams pass through
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.deps.AllowedOrigins)(handler)

	return handler
}
