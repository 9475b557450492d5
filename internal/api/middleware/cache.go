package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/session"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
)

// CacheConfig holds cache configuration for specific routes
type CacheConfig struct {
	TTLSeconds int
	Enabled    bool
	Group      string
}

// CacheMiddleware provides HTTP response caching for reference data that
// does not depend on who is asking beyond their role. Successful writes under
// an invalidating prefix bump the group generation, orphaning older entries.
type CacheMiddleware struct {
	cache        providers.CacheProvider
	routeConfigs map[string]CacheConfig
	invalidators map[string]string // path prefix -> group
}

// NewCacheMiddleware creates a new cache middleware
func NewCacheMiddleware(cache providers.CacheProvider) *CacheMiddleware {
	return &CacheMiddleware{
		cache: cache,
		routeConfigs: map[string]CacheConfig{
			"/api/facilities":  {TTLSeconds: 60, Enabled: true, Group: "facilities"},
			"/api/facilities/": {TTLSeconds: 60, Enabled: true, Group: "facilities"}, // prefix match
		},
		invalidators: map[string]string{
			"/api/admin/facilities": "facilities",
		},
	}
}

// Middleware returns the cache middleware handler. It must run after
// RequireAuth so the key can include the caller's role.
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method != http.MethodGet {
			m.serveWrite(w, r, next)
			return
		}

		config := m.getRouteConfig(r.URL.Path)
		if !config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		logger := observability.LoggerFromContext(r.Context())
		cacheKey := m.generateCacheKey(r, m.generation(r, config.Group))

		if cached, err := m.cache.Get(r.Context(), cacheKey); err == nil {
			logger.Debug().Str("key", cacheKey).Msg("Cache HIT")
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}

		w.Header().Set("X-Cache", "MISS")

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}

		next.ServeHTTP(recorder, r)

		if recorder.statusCode == http.StatusOK && recorder.body.Len() > 0 {
			if err := m.cache.Set(r.Context(), cacheKey, recorder.body.Bytes(), config.TTLSeconds); err != nil {
				logger.Warn().Err(err).Str("key", cacheKey).Msg("Failed to cache response")
			}
		}
	})
}

// getRouteConfig gets the cache configuration for a route
func (m *CacheMiddleware) getRouteConfig(path string) CacheConfig {
	if config, exists := m.routeConfigs[path]; exists {
		return config
	}

	for pattern, config := range m.routeConfigs {
		if strings.HasSuffix(pattern, "/") && strings.HasPrefix(path, pattern) {
			return config
		}
	}

	return CacheConfig{Enabled: false}
}

// serveWrite passes a write through and bumps the generation of the group it
// touches when it succeeds
func (m *CacheMiddleware) serveWrite(w http.ResponseWriter, r *http.Request, next http.Handler) {
	group := ""
	for prefix, g := range m.invalidators {
		if strings.HasPrefix(r.URL.Path, prefix) {
			group = g
			break
		}
	}
	if group == "" {
		next.ServeHTTP(w, r)
		return
	}

	recorder := &responseRecorder{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		body:           &bytes.Buffer{},
	}
	next.ServeHTTP(recorder, r)

	if recorder.statusCode < http.StatusBadRequest {
		if _, err := m.cache.Increment(r.Context(), generationKey(group), 0); err != nil {
			observability.LoggerFromContext(r.Context()).Warn().Err(err).Str("group", group).Msg("Failed to invalidate response cache")
		}
	}
}

// generation reads the current generation of a cache group
func (m *CacheMiddleware) generation(r *http.Request, group string) string {
	if group == "" {
		return "0"
	}
	value, err := m.cache.Get(r.Context(), generationKey(group))
	if err != nil {
		return "0"
	}
	return string(value)
}

func generationKey(group string) string {
	return "http:cache:generation:" + group
}

// generateCacheKey hashes method, path, query, caller role and group generation
func (m *CacheMiddleware) generateCacheKey(r *http.Request, generation string) string {
	key := fmt.Sprintf("%s:%s#%s", r.Method, r.URL.Path, generation)
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	if p, ok := session.FromContext(r.Context()); ok {
		key += "|" + string(p.Role)
	}

	hash := sha256.Sum256([]byte(key))
	return "http:cache:" + hex.EncodeToString(hash[:])
}

// responseRecorder captures the response for caching
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

// WriteHeader captures the status code
func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.written = true
	}
}

// Write captures the response body and writes to the client
func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}
