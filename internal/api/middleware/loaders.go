package middleware

import (
	"net/http"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/application/loaders"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
)

// Loaders attaches a fresh set of dataloaders to every request so batched
// lookups never leak between callers
func Loaders(profileRepo repositories.ProfileRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := loaders.WithLoaders(r.Context(), loaders.NewLoaders(profileRepo))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
