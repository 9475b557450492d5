package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/config"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/retry"
)

// CallbackStage names a step of the sign-in callback for logs
type CallbackStage string

const (
	StageAwaitingCode      CallbackStage = "awaiting_code"
	StageExchangingSession CallbackStage = "exchanging_session"
	StageResolvingRole     CallbackStage = "resolving_role"
	StageSyncingProfile    CallbackStage = "syncing_profile"
	StageRedirecting       CallbackStage = "redirecting"
	StageFailed            CallbackStage = "failed"
)

// Profile sync outcomes reported in metrics and logs
const (
	SyncExisting         = "existing"
	SyncTrigger          = "trigger"
	SyncFallbackInserted = "fallback_inserted"
	SyncFallbackFailed   = "fallback_failed"
)

// CallbackInput is what the OAuth redirect carries back
type CallbackInput struct {
	Code         string
	CodeVerifier string
	RoleHint     string
	Next         string
}

// CallbackResult is a completed sign-in
type CallbackResult struct {
	Session      *entities.Session
	Role         entities.RoleResolution
	Profile      *entities.Profile
	SyncOutcome  string
	RedirectPath string
}

// CallbackService turns an authorization code into a session and makes sure
// the signed-in identity has a profile with the right role.
type CallbackService struct {
	identity   providers.IdentityProvider
	reconciler *profileReconciler
}

// NewCallbackService creates a new callback service
func NewCallbackService(
	identity providers.IdentityProvider,
	profiles repositories.ProfileRepository,
	cfg config.ReconcileConfig,
	metrics *observability.Metrics,
) *CallbackService {
	return &CallbackService{
		identity:   identity,
		reconciler: newProfileReconciler(profiles, cfg, metrics),
	}
}

// Complete runs the callback. Only the code exchange can fail it; role and
// profile writes that fail are logged and the sign-in carries on.
func (s *CallbackService) Complete(ctx context.Context, in CallbackInput) (*CallbackResult, error) {
	logger := observability.LoggerFromContext(ctx)

	if in.Code == "" {
		logStage(logger, StageFailed).Msg("No authorization code received")
		return nil, apperrors.NewValidationError("No authorization code received.")
	}

	logStage(logger, StageExchangingSession).Msg("Exchanging authorization code")
	session, err := s.identity.ExchangeCode(ctx, in.Code, in.CodeVerifier)
	if err != nil {
		logStage(logger, StageFailed).Err(err).Msg("Code exchange failed")
		return nil, apperrors.NewExternalError(err.Error(), err)
	}

	userLog := logger.With().Str("user_id", session.Identity.ID).Logger()

	logStage(&userLog, StageResolvingRole).Str("role_hint", in.RoleHint).Msg("Resolving role")
	resolution := entities.ResolveRole(in.RoleHint, session.Identity.AppMetadata, session.Identity.UserMetadata)
	if resolution.Source == entities.RoleSourceHint {
		if s.assignRole(ctx, &userLog, &session.Identity, resolution.Role) {
			session = s.refreshSession(ctx, &userLog, session)
		}
	}

	logStage(&userLog, StageSyncingProfile).Msg("Waiting for profile")
	profile, outcome := s.reconciler.reconcile(ctx, &userLog, &session.Identity, resolution, true)

	redirect := ResolveRedirectPath(resolution.Role, profile.VisualRole != nil, in.Next)
	logStage(&userLog, StageRedirecting).
		Str("role", string(resolution.Role)).
		Str("role_source", string(resolution.Source)).
		Str("sync", outcome).
		Str("redirect", redirect).
		Msg("Sign-in complete")

	return &CallbackResult{
		Session:      session,
		Role:         resolution,
		Profile:      profile,
		SyncOutcome:  outcome,
		RedirectPath: redirect,
	}, nil
}

// assignRole writes an explicit hint into both metadata bags and then into
// the profile through the update_user_role procedure. It reports whether the
// metadata write went through.
func (s *CallbackService) assignRole(ctx context.Context, logger *zerolog.Logger, identity *entities.Identity, role entities.Role) bool {
	app, user := entities.RoleMetadataPatch(role)
	written := true
	if err := s.identity.UpdateMetadata(ctx, identity.ID, app, user); err != nil {
		logger.Warn().Err(err).Msg("Failed to write role into identity metadata")
		written = false
	} else {
		identity.AppMetadata = mergeMetadata(identity.AppMetadata, app)
		identity.UserMetadata = mergeMetadata(identity.UserMetadata, user)
	}

	if err := s.reconciler.profiles.UpdateRole(ctx, identity.ID, role); err != nil {
		logger.Warn().Err(err).Msg("update_user_role failed")
	}
	return written
}

// refreshSession swaps the session for one minted after the metadata write.
// The exchanged access token predates the write, so its claims still carry
// the old role. On failure the exchanged session is kept.
func (s *CallbackService) refreshSession(ctx context.Context, logger *zerolog.Logger, session *entities.Session) *entities.Session {
	if session.RefreshToken == "" {
		logger.Warn().Msg("No refresh token, session keeps the pre-hint role claims")
		return session
	}

	refreshed, err := s.identity.RefreshSession(ctx, session.RefreshToken)
	if err != nil {
		logger.Warn().Err(err).Msg("Session refresh after role write failed, session keeps the pre-hint role claims")
		return session
	}
	if refreshed.Identity.ID == "" {
		refreshed.Identity = session.Identity
	}
	return refreshed
}

func mergeMetadata(dst, patch entities.Metadata) entities.Metadata {
	if dst == nil {
		dst = entities.Metadata{}
	}
	for k, v := range patch {
		dst[k] = v
	}
	return dst
}

// profileReconciler makes sure a signed-in identity has a profile row
// carrying the resolved role.
type profileReconciler struct {
	profiles repositories.ProfileRepository
	cfg      config.ReconcileConfig
	metrics  *observability.Metrics
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

func newProfileReconciler(profiles repositories.ProfileRepository, cfg config.ReconcileConfig, metrics *observability.Metrics) *profileReconciler {
	return &profileReconciler{
		profiles: profiles,
		cfg:      cfg,
		metrics:  metrics,
		sleep:    sleepContext,
		now:      time.Now,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// reconcile waits for the profile and reads it back, recording a login when
// signedIn is set. An explicitly chosen role is written again when the
// stored row disagrees: the first write can land before the creation trigger
// inserts the row with its default role.
func (r *profileReconciler) reconcile(ctx context.Context, logger *zerolog.Logger, identity *entities.Identity, resolution entities.RoleResolution, signedIn bool) (*entities.Profile, string) {
	outcome := r.syncProfile(ctx, logger, identity, resolution.Role)
	observability.RecordReconcileOutcome(ctx, r.metrics, outcome, string(resolution.Role))

	profile, err := r.profiles.GetByID(ctx, identity.ID)
	if err != nil {
		logger.Warn().Err(err).Msg("Profile not readable after sync, using identity metadata")
		return entities.NewProfileFromIdentity(identity, resolution.Role, r.now().UTC()), outcome
	}

	if resolution.Source == entities.RoleSourceHint && profile.Role != resolution.Role {
		logger.Info().
			Str("stored_role", string(profile.Role)).
			Str("role", string(resolution.Role)).
			Msg("Stored role differs from chosen role, writing it again")
		if err := r.profiles.UpdateRole(ctx, identity.ID, resolution.Role); err != nil {
			logger.Warn().Err(err).Msg("update_user_role failed after sync")
		} else if reread, err := r.profiles.GetByID(ctx, identity.ID); err == nil {
			profile = reread
		} else {
			logger.Warn().Err(err).Msg("Profile not readable after role write")
		}
	}

	if signedIn {
		if err := r.profiles.RecordLogin(ctx, identity.ID, r.now().UTC()); err != nil {
			logger.Warn().Err(err).Msg("Failed to record login")
		}
	}
	return profile, outcome
}

func (r *profileReconciler) syncProfile(ctx context.Context, logger *zerolog.Logger, identity *entities.Identity, role entities.Role) string {
	if err := r.sleep(ctx, r.cfg.SyncDelay); err != nil {
		logger.Warn().Err(err).Msg("Sync delay interrupted")
	}

	result := retry.Poll(ctx, r.cfg.PollAttempts, r.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		return r.profiles.WaitForSync(ctx, identity.ID)
	})

	switch result.Outcome {
	case retry.PollSucceeded:
		if result.Attempts == 1 {
			return SyncExisting
		}
		return SyncTrigger
	case retry.PollErrored:
		logger.Warn().Err(result.Err).Int("attempts", result.Attempts).Msg("Profile sync check failed")
	default:
		logger.Info().Int("attempts", result.Attempts).Msg("Profile not created by trigger")
	}

	profile := entities.NewProfileFromIdentity(identity, role, r.now().UTC())
	inserted, err := r.profiles.InsertIfAbsent(ctx, profile)
	if err != nil {
		logger.Error().Err(err).Msg("Fallback profile insert failed")
		return SyncFallbackFailed
	}
	if !inserted {
		return SyncTrigger
	}
	return SyncFallbackInserted
}

func logStage(logger *zerolog.Logger, stage CallbackStage) *zerolog.Event {
	event := logger.Info()
	if stage == StageFailed {
		event = logger.Warn()
	}
	return event.Str("stage", string(stage))
}
