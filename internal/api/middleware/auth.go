package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/session"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

// Authenticator turns an access token into a principal
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*session.Principal, error)
}

// AccessTokenFromRequest reads the bearer token, falling back to the session cookie
func AccessTokenFromRequest(r *http.Request, cookieName string) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookieName == "" {
		return ""
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAuth rejects requests without a valid session and stores the
// principal in the request context
func RequireAuth(authn Authenticator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authn.Authenticate(r.Context(), AccessTokenFromRequest(r, cookieName))
			if err != nil {
				status := http.StatusUnauthorized
				message := "authentication required"
				if appErr, ok := apperrors.As(err); ok {
					message = appErr.Message
					if appErr.Type == apperrors.ErrorTypeExternal {
						status = http.StatusBadGateway
					}
				}
				writeError(w, status, message)
				return
			}
			recordUser(r.Context(), principal.UserID)
			next.ServeHTTP(w, r.WithContext(session.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAdmin lets only administrators through. It must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := session.RequireAdmin(r.Context()); err != nil {
			status := http.StatusForbidden
			if apperrors.IsType(err, apperrors.ErrorTypeUnauthorized) {
				status = http.StatusUnauthorized
			}
			appErr, _ := apperrors.As(err)
			writeError(w, status, appErr.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
