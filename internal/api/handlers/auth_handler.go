package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/api/middleware"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/application/services"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/config"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

const (
	verifierCookieName = "fm-pkce-verifier"
	verifierMaxAge     = 10 * 60
	refreshMaxAge      = 30 * 24 * 60 * 60
)

// SignInService starts sign-ins and ends sessions
type SignInService interface {
	LoginURL(provider, next, roleHint string) *services.LoginStart
	SignOut(ctx context.Context, accessToken string) error
}

// CallbackCompleter finishes the OAuth redirect
type CallbackCompleter interface {
	Complete(ctx context.Context, in services.CallbackInput) (*services.CallbackResult, error)
}

// AccountManager handles email and anonymous accounts
type AccountManager interface {
	SignUpWithEmail(ctx context.Context, in services.EmailSignUp) (*services.AccountResult, error)
	SignInWithEmail(ctx context.Context, email, password, next string) (*services.AccountResult, error)
	SignInAsGuest(ctx context.Context, in services.GuestSignIn) (*services.AccountResult, error)
	LinkEmail(ctx context.Context, email string) error
	SetPassword(ctx context.Context, password string) error
}

// AuthHandler handles the browser-facing sign-in endpoints
type AuthHandler struct {
	signIn   SignInService
	callback CallbackCompleter
	accounts AccountManager
	cookies  config.AuthConfig
	isLocal  bool
	now      func() time.Time
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(signIn SignInService, callback CallbackCompleter, accounts AccountManager, cookies config.AuthConfig, isLocal bool) *AuthHandler {
	return &AuthHandler{
		signIn:   signIn,
		callback: callback,
		accounts: accounts,
		cookies:  cookies,
		isLocal:  isLocal,
		now:      time.Now,
	}
}

// AccountResponse is returned by the JSON sign-in endpoints
type AccountResponse struct {
	RedirectPath        string            `json:"redirect"`
	Profile             *entities.Profile `json:"profile,omitempty"`
	ConfirmationPending bool              `json:"confirmation_pending,omitempty"`
	Message             string            `json:"message,omitempty"`
}

type emailSignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

type linkEmailRequest struct {
	Email string `json:"email"`
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

// Login handles GET /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start := h.signIn.LoginURL(query.Get("provider"), query.Get("next"), query.Get("role"))

	http.SetCookie(w, h.cookie(verifierCookieName, start.CodeVerifier, verifierMaxAge))
	http.Redirect(w, r, start.URL, http.StatusFound)
}

// Callback handles GET /auth/callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	base := services.ResolveRedirectBase(requestOrigin(r), r.Header.Get("X-Forwarded-Host"), h.isLocal)
	logger := observability.LoggerFromContext(r.Context())

	if providerErr := query.Get("error"); providerErr != "" {
		message := query.Get("error_description")
		if message == "" {
			message = providerErr
		}
		logger.Warn().Str("stage", string(services.StageFailed)).Str("error", providerErr).Msg("Provider returned an error")
		http.Redirect(w, r, base+services.AuthErrorPath(message), http.StatusFound)
		return
	}

	var verifier string
	if cookie, err := r.Cookie(verifierCookieName); err == nil {
		verifier = cookie.Value
	}

	result, err := h.callback.Complete(r.Context(), services.CallbackInput{
		Code:         query.Get("code"),
		CodeVerifier: verifier,
		RoleHint:     query.Get("role_hint"),
		Next:         query.Get("next"),
	})
	if err != nil {
		message := "Authentication failed."
		if appErr, ok := apperrors.As(err); ok {
			message = appErr.Message
		}
		http.Redirect(w, r, base+services.AuthErrorPath(message), http.StatusFound)
		return
	}

	h.setSessionCookies(w, result.Session)
	http.SetCookie(w, h.cookie(verifierCookieName, "", -1))

	http.Redirect(w, r, base+result.RedirectPath, http.StatusFound)
}

// SignOut handles POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if token := middleware.AccessTokenFromRequest(r, h.cookies.AccessCookieName); token != "" {
		if err := h.signIn.SignOut(r.Context(), token); err != nil {
			observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("Provider sign-out failed")
		}
	}

	http.SetCookie(w, h.cookie(h.cookies.AccessCookieName, "", -1))
	http.SetCookie(w, h.cookie(h.cookies.RefreshCookieName, "", -1))
	w.WriteHeader(http.StatusNoContent)
}

// SignUp handles POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req services.EmailSignUp
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.accounts.SignUpWithEmail(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if result.ConfirmationPending {
		respondWithJSON(w, http.StatusAccepted, AccountResponse{
			RedirectPath:        "/login",
			ConfirmationPending: true,
			Message:             "Check your email to confirm your account.",
		})
		return
	}
	h.respondWithAccount(w, http.StatusCreated, result)
}

// SignIn handles POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req emailSignInRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.accounts.SignInWithEmail(r.Context(), req.Email, req.Password, req.Next)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.respondWithAccount(w, http.StatusOK, result)
}

// Guest handles POST /auth/guest
func (h *AuthHandler) Guest(w http.ResponseWriter, r *http.Request) {
	var req services.GuestSignIn
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.accounts.SignInAsGuest(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.respondWithAccount(w, http.StatusOK, result)
}

// LinkEmail handles POST /api/me/link-email
func (h *AuthHandler) LinkEmail(w http.ResponseWriter, r *http.Request) {
	var req linkEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.accounts.LinkEmail(r.Context(), req.Email); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Email linked successfully! Please check your email to verify your account.",
		"email":   req.Email,
	})
}

// SetPassword handles POST /api/me/password
func (h *AuthHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.accounts.SetPassword(r.Context(), req.Password); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":          "Password set successfully! Your account is now permanent.",
		"is_now_permanent": true,
	})
}

func (h *AuthHandler) respondWithAccount(w http.ResponseWriter, status int, result *services.AccountResult) {
	h.setSessionCookies(w, result.Session)
	respondWithJSON(w, status, AccountResponse{
		RedirectPath: result.RedirectPath,
		Profile:      result.Profile,
	})
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, session *entities.Session) {
	accessMaxAge := int(session.Expiry(h.now()).Sub(h.now()).Seconds())
	if accessMaxAge <= 0 {
		accessMaxAge = 3600
	}
	http.SetCookie(w, h.cookie(h.cookies.AccessCookieName, session.AccessToken, accessMaxAge))
	http.SetCookie(w, h.cookie(h.cookies.RefreshCookieName, session.RefreshToken, refreshMaxAge))
}

func (h *AuthHandler) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// requestOrigin is the scheme and host the request was addressed to
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
