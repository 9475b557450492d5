package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/config"
)

// ProviderError is a non-2xx answer from the identity provider. Message is
// the provider's own wording so it can be shown on the auth error page.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// GoTrueProvider talks to a GoTrue compatible identity service over HTTP
type GoTrueProvider struct {
	baseURL        string
	anonKey        string
	serviceRoleKey string
	httpClient     *http.Client
}

var _ providers.IdentityProvider = (*GoTrueProvider)(nil)

// NewGoTrueProvider creates a provider from the auth configuration
func NewGoTrueProvider(cfg *config.AuthConfig) *GoTrueProvider {
	return &GoTrueProvider{
		baseURL:        strings.TrimRight(cfg.ProviderURL, "/"),
		anonKey:        cfg.AnonKey,
		serviceRoleKey: cfg.ServiceRoleKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// AuthorizeURL builds the sign-in URL for an OAuth provider using PKCE
func (p *GoTrueProvider) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	params := url.Values{}
	params.Set("provider", provider)
	params.Set("redirect_to", redirectTo)
	if codeChallenge != "" {
		params.Set("code_challenge", codeChallenge)
		params.Set("code_challenge_method", "s256")
	}
	return p.baseURL + "/authorize?" + params.Encode()
}

// ExchangeCode trades the authorization code and PKCE verifier for a session
func (p *GoTrueProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*entities.Session, error) {
	payload := map[string]string{
		"auth_code":     code,
		"code_verifier": codeVerifier,
	}

	return p.tokenGrant(ctx, "pkce", payload)
}

// RefreshSession trades a refresh token for a fresh session. The new access
// token is minted from the identity as it is now, so metadata written since
// the last sign-in shows up in its claims.
func (p *GoTrueProvider) RefreshSession(ctx context.Context, refreshToken string) (*entities.Session, error) {
	payload := map[string]string{"refresh_token": refreshToken}
	return p.tokenGrant(ctx, "refresh_token", payload)
}

// SignUp registers an email identity. With email confirmation switched on
// GoTrue answers with the bare user and no tokens.
func (p *GoTrueProvider) SignUp(ctx context.Context, email, password string, userMetadata entities.Metadata) (*entities.Session, error) {
	payload := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	if len(userMetadata) > 0 {
		payload["data"] = userMetadata
	}
	return p.signup(ctx, payload)
}

// SignInWithPassword opens a session with the password grant
func (p *GoTrueProvider) SignInWithPassword(ctx context.Context, email, password string) (*entities.Session, error) {
	payload := map[string]string{
		"email":    email,
		"password": password,
	}
	return p.tokenGrant(ctx, "password", payload)
}

// SignInAnonymously calls /signup without credentials, which GoTrue treats as
// an anonymous sign-in.
func (p *GoTrueProvider) SignInAnonymously(ctx context.Context, userMetadata entities.Metadata) (*entities.Session, error) {
	payload := map[string]interface{}{}
	if len(userMetadata) > 0 {
		payload["data"] = userMetadata
	}
	session, err := p.signup(ctx, payload)
	if err != nil {
		return nil, err
	}
	if !session.HasTokens() {
		return nil, &ProviderError{StatusCode: http.StatusBadGateway, Message: "identity provider returned no access token"}
	}
	return session, nil
}

// UpdateUser changes email or password for the identity behind an access
// token. A new email stays pending until the confirmation link is followed.
func (p *GoTrueProvider) UpdateUser(ctx context.Context, accessToken string, attrs entities.UserAttributes) (*entities.Identity, error) {
	var identity entities.Identity
	err := p.do(ctx, http.MethodPut, "/user", accessToken, attrs, &identity)
	var perr *ProviderError
	if errors.As(err, &perr) && perr.StatusCode == http.StatusUnauthorized {
		return nil, providers.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (p *GoTrueProvider) tokenGrant(ctx context.Context, grantType string, payload interface{}) (*entities.Session, error) {
	var session entities.Session
	if err := p.do(ctx, http.MethodPost, "/token?grant_type="+url.QueryEscape(grantType), p.anonKey, payload, &session); err != nil {
		return nil, err
	}
	if !session.HasTokens() {
		return nil, &ProviderError{StatusCode: http.StatusBadGateway, Message: "identity provider returned no access token"}
	}
	return &session, nil
}

func (p *GoTrueProvider) signup(ctx context.Context, payload interface{}) (*entities.Session, error) {
	var raw json.RawMessage
	if err := p.do(ctx, http.MethodPost, "/signup", p.anonKey, payload, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &ProviderError{StatusCode: http.StatusBadGateway, Message: "identity provider returned an empty sign-up response"}
	}

	var session entities.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if session.HasTokens() {
		return &session, nil
	}
	// Confirmation pending: the body is the user itself
	if err := json.Unmarshal(raw, &session.Identity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &session, nil
}

// GetUser returns the identity behind an access token
func (p *GoTrueProvider) GetUser(ctx context.Context, accessToken string) (*entities.Identity, error) {
	var identity entities.Identity
	err := p.do(ctx, http.MethodGet, "/user", accessToken, nil, &identity)
	var perr *ProviderError
	if errors.As(err, &perr) && (perr.StatusCode == http.StatusUnauthorized || perr.StatusCode == http.StatusForbidden) {
		return nil, providers.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// UpdateMetadata merges keys into both metadata bags. GoTrue merges the
// objects server-side, so only the changed keys are sent.
func (p *GoTrueProvider) UpdateMetadata(ctx context.Context, userID string, appMetadata, userMetadata entities.Metadata) error {
	payload := map[string]entities.Metadata{}
	if len(appMetadata) > 0 {
		payload["app_metadata"] = appMetadata
	}
	if len(userMetadata) > 0 {
		payload["user_metadata"] = userMetadata
	}
	if len(payload) == 0 {
		return nil
	}
	return p.do(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(userID), p.serviceRoleKey, payload, nil)
}

// SignOut revokes the session behind an access token
func (p *GoTrueProvider) SignOut(ctx context.Context, accessToken string) error {
	return p.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

type gotrueError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
	ErrorCode        string `json:"error_code"`
}

// text picks the human readable part of an error body. The order follows
// the provider's own client library, so an OAuth style body with both fields
// yields error_description and a bare {"error": ...} yields the code.
func (e gotrueError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error, e.ErrorCode} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (p *GoTrueProvider) do(ctx context.Context, method, path, bearer string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", p.anonKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr gotrueError
		message := ""
		if json.Unmarshal(respBody, &apiErr) == nil {
			message = apiErr.text()
		}
		if message == "" {
			message = fmt.Sprintf("identity provider error (status %d)", resp.StatusCode)
		}
		return &ProviderError{StatusCode: resp.StatusCode, Message: message}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
