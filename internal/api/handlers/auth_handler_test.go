package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/api/handlers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/application/services"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/config"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

func authCookies() config.AuthConfig {
	return config.AuthConfig{
		AccessCookieName:  "fm-access-token",
		RefreshCookieName: "fm-refresh-token",
	}
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Login(t *testing.T) {
	signIn := new(MockSignInService)
	handler := handlers.NewAuthHandler(signIn, new(MockCallbackCompleter), new(MockAccountManager), authCookies(), true)

	signIn.On("LoginURL", "google", "/dashboard", "admin").Return(&services.LoginStart{
		URL:          "https://auth.example.com/authorize?provider=google",
		CodeVerifier: "verifier-123",
	})

	req := httptest.NewRequest("GET", "/auth/login?provider=google&next=/dashboard&role=admin", nil)
	w := httptest.NewRecorder()

	handler.Login(w, req)

	resp := w.Result()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://auth.example.com/authorize?provider=google", resp.Header.Get("Location"))

	verifier := findCookie(resp, "fm-pkce-verifier")
	require.NotNil(t, verifier)
	assert.Equal(t, "verifier-123", verifier.Value)
	assert.True(t, verifier.HttpOnly)
	assert.Equal(t, 600, verifier.MaxAge)
	signIn.AssertExpectations(t)
}

func TestAuthHandler_Callback_Success(t *testing.T) {
	callback := new(MockCallbackCompleter)
	handler := handlers.NewAuthHandler(new(MockSignInService), callback, new(MockAccountManager), authCookies(), true)

	callback.On("Complete", mock.Anything, services.CallbackInput{
		Code:         "abc",
		CodeVerifier: "verifier-123",
		RoleHint:     "admin",
		Next:         "/dashboard",
	}).Return(&services.CallbackResult{
		Session: &entities.Session{
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresIn:    3600,
		},
		Role:         entities.RoleResolution{Role: entities.RoleAdmin, Source: entities.RoleSourceHint},
		RedirectPath: services.PathAdminDashboard,
	}, nil)

	req := httptest.NewRequest("GET", "http://app.example.com/auth/callback?code=abc&role_hint=admin&next=/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "fm-pkce-verifier", Value: "verifier-123"})
	w := httptest.NewRecorder()

	handler.Callback(w, req)

	resp := w.Result()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "http://app.example.com/admin/dashboard", resp.Header.Get("Location"))

	access := findCookie(resp, "fm-access-token")
	require.NotNil(t, access)
	assert.Equal(t, "access", access.Value)
	assert.True(t, access.HttpOnly)
	assert.Greater(t, access.MaxAge, 0)

	refresh := findCookie(resp, "fm-refresh-token")
	require.NotNil(t, refresh)
	assert.Equal(t, "refresh", refresh.Value)

	verifier := findCookie(resp, "fm-pkce-verifier")
	require.NotNil(t, verifier)
	assert.Equal(t, -1, verifier.MaxAge)
	callback.AssertExpectations(t)
}

func TestAuthHandler_Callback_UsesForwardedHostOutsideLocal(t *testing.T) {
	callback := new(MockCallbackCompleter)
	handler := handlers.NewAuthHandler(new(MockSignInService), callback, new(MockAccountManager), authCookies(), false)

	callback.On("Complete", mock.Anything, mock.Anything).Return(&services.CallbackResult{
		Session:      &entities.Session{AccessToken: "a", RefreshToken: "r", ExpiresIn: 3600},
		RedirectPath: services.PathDashboard,
	}, nil)

	req := httptest.NewRequest("GET", "http://10.0.0.5:8080/auth/callback?code=abc", nil)
	req.Header.Set("X-Forwarded-Host", "maintenance.example.org")
	w := httptest.NewRecorder()

	handler.Callback(w, req)

	assert.Equal(t, "https://maintenance.example.org/dashboard", w.Result().Header.Get("Location"))
}

func TestAuthHandler_Callback_Failures(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		completeErr error
		location    string
	}{
		{
			name:     "provider error with description",
			url:      "http://app.example.com/auth/callback?error=access_denied&error_description=User+cancelled",
			location: "http://app.example.com/auth/error?error=User+cancelled",
		},
		{
			name:     "provider error without description",
			url:      "http://app.example.com/auth/callback?error=access_denied",
			location: "http://app.example.com/auth/error?error=access_denied",
		},
		{
			name:        "missing code",
			url:         "http://app.example.com/auth/callback",
			completeErr: apperrors.NewValidationError("No authorization code received."),
			location:    "http://app.example.com/auth/error?error=No+authorization+code+received.",
		},
		{
			name:        "exchange failure",
			url:         "http://app.example.com/auth/callback?code=stale",
			completeErr: apperrors.NewExternalError("invalid_grant", errors.New("invalid_grant")),
			location:    "http://app.example.com/auth/error?error=invalid_grant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			callback := new(MockCallbackCompleter)
			handler := handlers.NewAuthHandler(new(MockSignInService), callback, new(MockAccountManager), authCookies(), true)
			if tt.completeErr != nil {
				callback.On("Complete", mock.Anything, mock.Anything).Return(nil, tt.completeErr)
			}

			w := httptest.NewRecorder()
			handler.Callback(w, httptest.NewRequest("GET", tt.url, nil))

			resp := w.Result()
			assert.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, tt.location, resp.Header.Get("Location"))
			assert.Nil(t, findCookie(resp, "fm-access-token"))
			if tt.completeErr == nil {
				callback.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestAuthHandler_SignOut(t *testing.T) {
	signIn := new(MockSignInService)
	handler := handlers.NewAuthHandler(signIn, new(MockCallbackCompleter), new(MockAccountManager), authCookies(), true)

	signIn.On("SignOut", mock.Anything, "access").Return(errors.New("provider down"))

	req := httptest.NewRequest("POST", "/auth/signout", nil)
	req.AddCookie(&http.Cookie{Name: "fm-access-token", Value: "access"})
	w := httptest.NewRecorder()

	handler.SignOut(w, req)

	resp := w.Result()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	access := findCookie(resp, "fm-access-token")
	require.NotNil(t, access)
	assert.Equal(t, -1, access.MaxAge)
	refresh := findCookie(resp, "fm-refresh-token")
	require.NotNil(t, refresh)
	assert.Equal(t, -1, refresh.MaxAge)
	signIn.AssertExpectations(t)
}

func TestAuthHandler_SignUp(t *testing.T) {
	t.Run("session issued", func(t *testing.T) {
		accounts := new(MockAccountManager)
		handler := handlers.NewAuthHandler(new(MockSignInService), new(MockCallbackCompleter), accounts, authCookies(), true)

		accounts.On("SignUpWithEmail", mock.Anything, services.EmailSignUp{
			Email: "ada@example.com", Password: "s3cret-pass", Name: "Ada", Role: "admin",
		}).Return(&services.AccountResult{
			Session:      &entities.Session{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600},
			Profile:      &entities.Profile{ID: "user-1", Role: entities.RoleAdmin},
			RedirectPath: services.PathAdminDashboard,
		}, nil)

		body := `{"email":"ada@example.com","password":"s3cret-pass","name":"Ada","role":"admin"}`
		w := httptest.NewRecorder()
		handler.SignUp(w, httptest.NewRequest("POST", "/auth/signup", strings.NewReader(body)))

		resp := w.Result()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var got handlers.AccountResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, services.PathAdminDashboard, got.RedirectPath)
		assert.Equal(t, entities.RoleAdmin, got.Profile.Role)

		access := findCookie(resp, "fm-access-token")
		require.NotNil(t, access)
		assert.Equal(t, "access", access.Value)
		assert.Greater(t, access.MaxAge, 0)
		accounts.AssertExpectations(t)
	})

	t.Run("confirmation pending sets no cookies", func(t *testing.T) {
		accounts := new(MockAccountManager)
		handler := handlers.NewAuthHandler(new(MockSignInService), new(MockCallbackCompleter), accounts, authCookies(), true)

		accounts.On("SignUpWithEmail", mock.Anything, mock.Anything).Return(&services.AccountResult{
			Session:             &entities.Session{},
			ConfirmationPending: true,
		}, nil)

		w := httptest.NewRecorder()
		handler.SignUp(w, httptest.NewRequest("POST", "/auth/signup",
			strings.NewReader(`{"email":"lin@example.com","password":"s3cret-pass","name":"Lin"}`)))

		resp := w.Result()
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		var got handlers.AccountResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.True(t, got.ConfirmationPending)
		assert.Nil(t, findCookie(resp, "fm-access-token"))
	})

	t.Run("provider rejects", func(t *testing.T) {
		accounts := new(MockAccountManager)
		handler := handlers.NewAuthHandler(new(MockSignInService), new(MockCallbackCompleter), accounts, authCookies(), true)

		accounts.On("SignUpWithEmail", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewValidationError("User already registered"))

		w := httptest.NewRecorder()
		handler.SignUp(w, httptest.NewRequest("POST", "/auth/signup",
			strings.NewReader(`{"email":"ada@example.com","password":"s3cret-pass","name":"Ada"}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "User already registered")
	})

	t.Run("malformed body", func(t *testing.T) {
		accounts := new(MockAccountManager)
		handler := handlers.NewAuthHandler(new(MockSignInService), new(MockCallbackCompleter), accounts, authCookies(), true)

		w := httptest.NewRecorder()
		handler.SignUp(w, httptest.NewRequest("POST", "/auth/signup", strings.NewReader(`{`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		accounts.AssertNotCalled(t, "SignUpWithEmail", mock.Anything, mock.Anything)
	})
}

func TestAuthHandler_SignIn(t *testing.T) {
	tests := []struct {
		name       string
		result     *services.AccountResult
		err        error
		wantStatus int
		wantCookie bool
	}{
		{
			name: "valid credentials",
			result: &services.AccountResult{
				Session:      &entities.Session{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600},
				Profile:      &entities.Profile{ID: "user-3"},
				RedirectPath: "/requests/7",
			},
			wantStatus: http.StatusOK,
			wantCookie: true,
		},
		{
			name:       "wrong password",
			err:        apperrors.NewUnauthorizedError("Invalid login credentials"),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := new(MockAccountManager)
			handler := handlers.NewAuthHandler(new(MockSignInService), new(MockCallbackCompleter), accounts, authCookies(), true)
			accounts.On("SignInWithEmail", mock.Anything, "sam@example.com", "pw-123456", "/requests/7").Return(tt.result, tt.err)

			body := `{"email":"sam@example.com","password":"pw-123456","next":"/requests/7"}`
			w := httptest.NewRecorder()
			handler.SignIn(w, httptest.NewRequest("POST", "/auth/signin", strings.NewReader(body)))

			resp := w.Result()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCookie, findCookie(resp, "fm-refresh-token") != nil)
			accounts.AssertExpectations(t)
		})
	}
}

func TestAuthHandler_Guest(t *testing.T) {
	accounts := new(MockAccountManager)
	handler := handlers.NewAuthHandler(new(MockSignInService), new(MockCallbackCompleter), accounts, authCookies(), true)

	accounts.On("SignInAsGuest", mock.Anything, services.GuestSignIn{
		Name:       "Visitor",
		VisualRole: entities.VisualRoleStudent,
	}).Return(&services.AccountResult{
		Session:      &entities.Session{AccessToken: "anon-access", RefreshToken: "anon-refresh", ExpiresIn: 3600},
		RedirectPath: services.PathDashboard,
	}, nil)

	w := httptest.NewRecorder()
	handler.Guest(w, httptest.NewRequest("POST", "/auth/guest",
		strings.NewReader(`{"name":"Visitor","visual_role":"Student"}`)))

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	access := findCookie(resp, "fm-access-token")
	require.NotNil(t, access)
	assert.Equal(t, "anon-access", access.Value)
	accounts.AssertExpectations(t)
}

func TestAuthHandler_LinkEmail(t *testing.T) {
	accounts := new(MockAccountManager)
	handler := handlers.NewAuthHandler(new(MockSignInService), new(MockCallbackCompleter), accounts, authCookies(), true)

	accounts.On("LinkEmail", mock.Anything, "ada@example.com").Return(nil).Once()
	accounts.On("LinkEmail", mock.Anything, "taken@example.com").
		Return(apperrors.NewValidationError("Only anonymous users can link email addresses")).Once()

	w := httptest.NewRecorder()
	handler.LinkEmail(w, httptest.NewRequest("POST", "/api/me/link-email", strings.NewReader(`{"email":"ada@example.com"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please check your email")

	w = httptest.NewRecorder()
	handler.LinkEmail(w, httptest.NewRequest("POST", "/api/me/link-email", strings.NewReader(`{"email":"taken@example.com"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	accounts.AssertExpectations(t)
}

func TestAuthHandler_SetPassword(t *testing.T) {
	accounts := new(MockAccountManager)
	handler := handlers.NewAuthHandler(new(MockSignInService), new(MockCallbackCompleter), accounts, authCookies(), true)

	accounts.On("SetPassword", mock.Anything, "new-password").Return(nil)

	w := httptest.NewRecorder()
	handler.SetPassword(w, httptest.NewRequest("POST", "/api/me/password", strings.NewReader(`{"password":"new-password"}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	var got map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, true, got["is_now_permanent"])
	accounts.AssertExpectations(t)
}
