package services

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/adapters/providers/identity"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/session"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/config"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

const minPasswordLength = 6

// EmailSignUp is the email registration form
type EmailSignUp struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// GuestSignIn is the form for an anonymous session
type GuestSignIn struct {
	Name             string              `json:"name"`
	VisualRole       entities.VisualRole `json:"visual_role"`
	EducationalLevel *string             `json:"educational_level,omitempty"`
	Department       *string             `json:"department,omitempty"`
}

// AccountResult is a completed sign-up or sign-in. Session has no tokens when
// the sign-up still waits for email confirmation.
type AccountResult struct {
	Session             *entities.Session
	Profile             *entities.Profile
	RedirectPath        string
	ConfirmationPending bool
}

// AccountService handles email and anonymous accounts alongside OAuth
type AccountService struct {
	identity   providers.IdentityProvider
	reconciler *profileReconciler
}

// NewAccountService creates a new account service
func NewAccountService(
	identityProvider providers.IdentityProvider,
	profiles repositories.ProfileRepository,
	cfg config.ReconcileConfig,
	metrics *observability.Metrics,
) *AccountService {
	return &AccountService{
		identity:   identityProvider,
		reconciler: newProfileReconciler(profiles, cfg, metrics),
	}
}

// SignUpWithEmail registers an email identity with the chosen access role.
// The role goes into user metadata as database_role and onto the profile.
func (s *AccountService) SignUpWithEmail(ctx context.Context, in EmailSignUp) (*AccountResult, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required")
	}

	role := entities.RoleUser
	if in.Role != "" {
		parsed, ok := entities.ParseRoleHint(in.Role)
		if !ok {
			return nil, apperrors.NewValidationError("role must be admin or user")
		}
		role = parsed
	}

	_, userPatch := entities.RoleMetadataPatch(role)
	metadata := mergeMetadata(entities.Metadata{"name": name}, userPatch)

	sess, err := s.identity.SignUp(ctx, email, in.Password, metadata)
	if err != nil {
		return nil, providerFailure(err, "sign-up failed")
	}

	logger := observability.LoggerFromContext(ctx).With().Str("user_id", sess.Identity.ID).Logger()
	pending := !sess.HasTokens()
	resolution := entities.RoleResolution{Role: role, Source: entities.RoleSourceHint}
	profile, outcome := s.reconciler.reconcile(ctx, &logger, &sess.Identity, resolution, !pending)

	logger.Info().
		Str("role", string(role)).
		Str("sync", outcome).
		Bool("confirmation_pending", pending).
		Msg("Email sign-up complete")

	return &AccountResult{
		Session:             sess,
		Profile:             profile,
		RedirectPath:        ResolveRedirectPath(role, profile.VisualRole != nil, ""),
		ConfirmationPending: pending,
	}, nil
}

// SignInWithEmail opens a session for an email identity
func (s *AccountService) SignInWithEmail(ctx context.Context, email, password, next string) (*AccountResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, apperrors.NewValidationError("password is required")
	}

	sess, err := s.identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		var perr *identity.ProviderError
		if errors.As(err, &perr) && perr.StatusCode == http.StatusBadRequest {
			return nil, apperrors.NewUnauthorizedError(perr.Message)
		}
		return nil, providerFailure(err, "sign-in failed")
	}

	logger := observability.LoggerFromContext(ctx).With().Str("user_id", sess.Identity.ID).Logger()
	resolution := entities.ResolveRole("", sess.Identity.AppMetadata, sess.Identity.UserMetadata)
	profile, outcome := s.reconciler.reconcile(ctx, &logger, &sess.Identity, resolution, true)

	logger.Info().Str("role", string(resolution.Role)).Str("sync", outcome).Msg("Email sign-in complete")

	return &AccountResult{
		Session:      sess,
		Profile:      profile,
		RedirectPath: ResolveRedirectPath(resolution.Role, profile.VisualRole != nil, next),
	}, nil
}

// SignInAsGuest opens an anonymous session. Guests always hold the standard
// role; the descriptive label and details land in user metadata and on the
// profile.
func (s *AccountService) SignInAsGuest(ctx context.Context, in GuestSignIn) (*AccountResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required")
	}
	if !in.VisualRole.IsValid() {
		return nil, apperrors.NewValidationError("visual_role must be one of Teacher, Staff, Student")
	}

	metadata := entities.Metadata{
		"name":        name,
		"visual_role": string(in.VisualRole),
	}
	if in.EducationalLevel != nil && strings.TrimSpace(*in.EducationalLevel) != "" {
		metadata["educational_level"] = strings.TrimSpace(*in.EducationalLevel)
	}
	if in.Department != nil && strings.TrimSpace(*in.Department) != "" {
		metadata["department"] = strings.TrimSpace(*in.Department)
	}

	sess, err := s.identity.SignInAnonymously(ctx, metadata)
	if err != nil {
		return nil, providerFailure(err, "guest sign-in failed")
	}
	// Metadata sent on sign-up is not always echoed back
	sess.Identity.UserMetadata = mergeMetadata(sess.Identity.UserMetadata, metadata)

	logger := observability.LoggerFromContext(ctx).With().Str("user_id", sess.Identity.ID).Logger()
	resolution := entities.RoleResolution{Role: entities.RoleUser, Source: entities.RoleSourceDefault}
	profile, outcome := s.reconciler.reconcile(ctx, &logger, &sess.Identity, resolution, true)

	logger.Info().Str("sync", outcome).Msg("Guest sign-in complete")

	return &AccountResult{
		Session:      sess,
		Profile:      profile,
		RedirectPath: ResolveRedirectPath(entities.RoleUser, profile.VisualRole != nil, ""),
	}, nil
}

// LinkEmail attaches an email address to the calling anonymous identity. The
// address only takes effect once the confirmation link is followed.
func (s *AccountService) LinkEmail(ctx context.Context, rawEmail string) error {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return err
	}
	if !principal.IsAnonymous {
		return apperrors.NewValidationError("Only anonymous users can link email addresses")
	}
	email, err := normalizeEmail(rawEmail)
	if err != nil {
		return err
	}

	if _, err := s.identity.UpdateUser(ctx, principal.AccessToken, entities.UserAttributes{Email: email}); err != nil {
		return providerFailure(err, "failed to link email")
	}

	observability.LoggerFromContext(ctx).Info().Str("user_id", principal.UserID).Msg("Email link requested")
	return nil
}

// SetPassword makes an upgraded guest permanent. The identity needs an email
// address first.
func (s *AccountService) SetPassword(ctx context.Context, password string) error {
	principal, err := session.RequirePrincipal(ctx)
	if err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	current, err := s.identity.GetUser(ctx, principal.AccessToken)
	if err != nil {
		return providerFailure(err, "failed to load identity")
	}
	if current.Email == "" {
		return apperrors.NewValidationError("Please verify your email address before setting a password")
	}

	if _, err := s.identity.UpdateUser(ctx, principal.AccessToken, entities.UserAttributes{Password: password}); err != nil {
		return providerFailure(err, "failed to set password")
	}

	observability.LoggerFromContext(ctx).Info().Str("user_id", principal.UserID).Msg("Password set")
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperrors.NewValidationError("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.NewValidationError("Please enter a valid email address")
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.NewValidationError("password must be at least 6 characters")
	}
	return nil
}

// providerFailure maps identity provider errors. Client errors carry the
// provider's wording so the form can show it.
func providerFailure(err error, message string) error {
	if errors.Is(err, providers.ErrInvalidToken) {
		return apperrors.NewUnauthorizedError("invalid or expired session")
	}
	var perr *identity.ProviderError
	if errors.As(err, &perr) {
		switch {
		case perr.StatusCode == http.StatusTooManyRequests:
			return apperrors.NewRateLimitError(perr.Message)
		case perr.StatusCode >= 400 && perr.StatusCode < 500:
			return apperrors.NewValidationError(perr.Message)
		}
	}
	return apperrors.NewExternalError(message, err)
}
