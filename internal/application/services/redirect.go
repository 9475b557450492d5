package services

import (
	"net/url"
	"strings"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
)

const (
	PathDashboard       = "/dashboard"
	PathAdminDashboard  = "/admin/dashboard"
	PathCompleteProfile = "/complete-profile"
	PathAuthError       = "/auth/error"
)

// IsSafeRedirectPath accepts only same-origin relative paths
func IsSafeRedirectPath(next string) bool {
	if next == "" || !strings.HasPrefix(next, "/") {
		return false
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return false
	}
	if strings.ContainsAny(next, "\r\n\t") {
		return false
	}
	u, err := url.Parse(next)
	return err == nil && u.Scheme == "" && u.Host == ""
}

// ResolveRedirectPath picks where a freshly signed-in user lands.
// Admins always land under /admin. Standard users without a descriptive
// label must complete their profile first.
func ResolveRedirectPath(role entities.Role, hasVisualRole bool, next string) string {
	safe := IsSafeRedirectPath(next)

	if role == entities.RoleAdmin {
		if safe && strings.HasPrefix(next, "/admin") {
			return next
		}
		return PathAdminDashboard
	}

	if !hasVisualRole {
		return PathCompleteProfile
	}

	if safe && next != "/" && next != PathDashboard {
		return next
	}
	return PathDashboard
}

// ResolveRedirectBase returns the scheme and host the callback redirects to.
// Outside the local environment a forwarded host from the load balancer wins.
func ResolveRedirectBase(origin, forwardedHost string, isLocal bool) string {
	forwardedHost = strings.TrimSpace(forwardedHost)
	if !isLocal && forwardedHost != "" {
		return "https://" + forwardedHost
	}
	return strings.TrimRight(origin, "/")
}

// AuthErrorPath builds the error page path carrying a message
func AuthErrorPath(message string) string {
	return PathAuthError + "?" + url.Values{"error": {message}}.Encode()
}
