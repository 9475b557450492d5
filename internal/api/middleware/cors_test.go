package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/api/middleware"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestParseAllowedOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, middleware.ParseAllowedOrigins(""))
	assert.Equal(t, []string{"*"}, middleware.ParseAllowedOrigins(" , "))
	assert.Equal(t,
		[]string{"https://app.example.com", "http://localhost:5173"},
		middleware.ParseAllowedOrigins("https://app.example.com/, http://localhost:5173"),
	)
}

func TestCORSMiddleware_Wildcard(t *testing.T) {
	handler := middleware.CORSMiddleware([]string{"*"})(okHandler())

	req := httptest.NewRequest("GET", "/api/facilities", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSMiddleware_NamedOrigins(t *testing.T) {
	handler := middleware.CORSMiddleware([]string{"https://app.example.com"})(okHandler())

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	handler := middleware.CORSMiddleware([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("OPTIONS", "/api/admin/requests/req-1/status", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	assert.False(t, called)
}
