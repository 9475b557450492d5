package providers

import (
	"context"
	"errors"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
)

// ErrInvalidToken is returned when the provider rejects an access token
var ErrInvalidToken = errors.New("invalid or expired access token")

// IdentityProvider is the external OAuth identity service
type IdentityProvider interface {
	// AuthorizeURL builds the provider sign-in URL for an OAuth provider
	AuthorizeURL(provider, redirectTo, codeChallenge string) string

	// ExchangeCode trades an authorization code (plus PKCE verifier) for a session
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*entities.Session, error)

	// GetUser returns the identity behind an access token
	GetUser(ctx context.Context, accessToken string) (*entities.Identity, error)

	// UpdateMetadata merges keys into both metadata bags of an identity
	UpdateMetadata(ctx context.Context, userID string, appMetadata, userMetadata entities.Metadata) error

	// RefreshSession trades a refresh token for a new session whose access
	// token carries the identity's current metadata
	RefreshSession(ctx context.Context, refreshToken string) (*entities.Session, error)

	// SignUp registers an email identity. The session has no access token
	// when the provider requires email confirmation first.
	SignUp(ctx context.Context, email, password string, userMetadata entities.Metadata) (*entities.Session, error)

	// SignInWithPassword opens a session for an email identity
	SignInWithPassword(ctx context.Context, email, password string) (*entities.Session, error)

	// SignInAnonymously creates an anonymous identity and opens a session for it
	SignInAnonymously(ctx context.Context, userMetadata entities.Metadata) (*entities.Session, error)

	// UpdateUser changes the email or password of the identity behind an access token
	UpdateUser(ctx context.Context, accessToken string, attrs entities.UserAttributes) (*entities.Identity, error)

	// SignOut revokes the session behind an access token
	SignOut(ctx context.Context, accessToken string) error
}
