package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/adapters/providers/identity"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/session"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

const defaultOAuthProvider = "google"

// LoginStart is the information needed to begin an OAuth sign-in
type LoginStart struct {
	URL          string
	CodeVerifier string
}

// accessClaims are the claims GoTrue puts in its access tokens
type accessClaims struct {
	Email        string            `json:"email"`
	AppMetadata  entities.Metadata `json:"app_metadata"`
	UserMetadata entities.Metadata `json:"user_metadata"`
	IsAnonymous  bool              `json:"is_anonymous"`
	jwt.RegisteredClaims
}

// AuthService starts sign-ins, authenticates access tokens and manages roles
type AuthService struct {
	identity  providers.IdentityProvider
	profiles  repositories.ProfileRepository
	siteURL   string
	jwtSecret []byte
}

// NewAuthService creates a new auth service. With an empty jwtSecret every
// token is verified by asking the identity provider.
func NewAuthService(identityProvider providers.IdentityProvider, profiles repositories.ProfileRepository, siteURL, jwtSecret string) *AuthService {
	s := &AuthService{
		identity: identityProvider,
		profiles: profiles,
		siteURL:  strings.TrimRight(siteURL, "/"),
	}
	if jwtSecret != "" {
		s.jwtSecret = []byte(jwtSecret)
	}
	return s
}

// LoginURL builds the provider sign-in URL. The role hint and next path ride
// on the callback URL so they come back with the authorization code.
func (s *AuthService) LoginURL(provider, next, roleHint string) *LoginStart {
	if provider == "" {
		provider = defaultOAuthProvider
	}

	params := url.Values{}
	if IsSafeRedirectPath(next) {
		params.Set("next", next)
	}
	if role, ok := entities.ParseRoleHint(roleHint); ok {
		params.Set("role_hint", strings.ToLower(string(role)))
	}
	callback := s.siteURL + "/auth/callback"
	if len(params) > 0 {
		callback += "?" + params.Encode()
	}

	verifier := identity.NewCodeVerifier()
	return &LoginStart{
		URL:          s.identity.AuthorizeURL(provider, callback, identity.CodeChallenge(verifier)),
		CodeVerifier: verifier,
	}
}

// Authenticate turns an access token into a principal
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*session.Principal, error) {
	if accessToken == "" {
		return nil, apperrors.NewUnauthorizedError("authentication required")
	}

	if s.jwtSecret != nil {
		return s.principalFromJWT(accessToken)
	}

	ident, err := s.identity.GetUser(ctx, accessToken)
	if errors.Is(err, providers.ErrInvalidToken) {
		return nil, apperrors.NewUnauthorizedError("invalid or expired session")
	}
	if err != nil {
		return nil, apperrors.NewExternalError("failed to verify session", err)
	}

	resolution := entities.ResolveRole("", ident.AppMetadata, ident.UserMetadata)
	return &session.Principal{
		UserID:      ident.ID,
		Email:       ident.Email,
		Role:        resolution.Role,
		RoleSource:  resolution.Source,
		AccessToken: accessToken,
		IsAnonymous: ident.IsAnonymous,
	}, nil
}

func (s *AuthService) principalFromJWT(accessToken string) (*session.Principal, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid or expired session")
	}
	if claims.Subject == "" {
		return nil, apperrors.NewUnauthorizedError("session has no subject")
	}

	resolution := entities.ResolveRole("", claims.AppMetadata, claims.UserMetadata)
	return &session.Principal{
		UserID:      claims.Subject,
		Email:       claims.Email,
		Role:        resolution.Role,
		RoleSource:  resolution.Source,
		AccessToken: accessToken,
		IsAnonymous: claims.IsAnonymous,
	}, nil
}

// SignOut revokes the session at the provider
func (s *AuthService) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return s.identity.SignOut(ctx, accessToken)
}

// ChangeRole assigns a new access role to a profile. Admin only.
func (s *AuthService) ChangeRole(ctx context.Context, userID, rawRole string) (*entities.Profile, error) {
	principal, err := session.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	role, ok := entities.ParseRoleHint(rawRole)
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid role %q", rawRole))
	}

	if _, err := s.profiles.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	app, user := entities.RoleMetadataPatch(role)
	if err := s.identity.UpdateMetadata(ctx, userID, app, user); err != nil {
		return nil, apperrors.NewExternalError("failed to update identity role", err)
	}
	if err := s.profiles.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("admin_id", principal.UserID).
		Str("user_id", userID).
		Str("role", string(role)).
		Msg("Role changed")

	return s.profiles.GetByID(ctx, userID)
}
