package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/application/services"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/config"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

func testReconcileConfig() config.ReconcileConfig {
	return config.ReconcileConfig{PollAttempts: 3}
}

func testSession(userID string, userMetadata entities.Metadata) *entities.Session {
	return &entities.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresIn:    3600,
		Identity: entities.Identity{
			ID:           userID,
			Email:        userID + "@example.com",
			UserMetadata: userMetadata,
			AppMetadata:  entities.Metadata{},
		},
	}
}

func refreshedSession(userID string, role entities.Role) *entities.Session {
	app, user := entities.RoleMetadataPatch(role)
	sess := testSession(userID, user)
	sess.AccessToken = "access-2"
	sess.RefreshToken = "refresh-2"
	sess.Identity.AppMetadata = app
	return sess
}

func TestCallbackService_AdminHintAssignsRole(t *testing.T) {
	identity := new(MockIdentityProvider)
	profiles := new(MockProfileRepository)
	svc := services.NewCallbackService(identity, profiles, testReconcileConfig(), nil)

	identity.On("ExchangeCode", mock.Anything, "code-1", "verifier").
		Return(testSession("user-1", entities.Metadata{"name": "Ada"}), nil)
	identity.On("UpdateMetadata", mock.Anything, "user-1",
		entities.Metadata{"role": "admin"}, entities.Metadata{"database_role": "admin"}).Return(nil)
	identity.On("RefreshSession", mock.Anything, "refresh").Return(refreshedSession("user-1", entities.RoleAdmin), nil)
	profiles.On("UpdateRole", mock.Anything, "user-1", entities.RoleAdmin).Return(nil)
	profiles.On("WaitForSync", mock.Anything, "user-1").Return(true, nil)
	profiles.On("GetByID", mock.Anything, "user-1").Return(&entities.Profile{ID: "user-1", Role: entities.RoleAdmin}, nil)
	profiles.On("RecordLogin", mock.Anything, "user-1", mock.Anything).Return(nil)

	result, err := svc.Complete(context.Background(), services.CallbackInput{
		Code:         "code-1",
		CodeVerifier: "verifier",
		RoleHint:     "admin",
	})

	require.NoError(t, err)
	assert.Equal(t, entities.RoleAdmin, result.Role.Role)
	assert.Equal(t, entities.RoleSourceHint, result.Role.Source)
	assert.Equal(t, entities.RoleAdmin, result.Profile.Role)
	assert.Equal(t, services.SyncExisting, result.SyncOutcome)
	assert.Equal(t, services.PathAdminDashboard, result.RedirectPath)
	assert.Equal(t, "access-2", result.Session.AccessToken)
	assert.Equal(t, "refresh-2", result.Session.RefreshToken)
	assert.Equal(t, "admin", result.Session.Identity.AppMetadata["role"])
	// Stored row already agrees, so the role is written once
	profiles.AssertNumberOfCalls(t, "UpdateRole", 1)
	identity.AssertExpectations(t)
	profiles.AssertExpectations(t)
}

func TestCallbackService_HintOverridesStoredRole(t *testing.T) {
	tests := []struct {
		name       string
		hint       string
		storedRole entities.Role
		wantRole   entities.Role
		redirect   string
	}{
		{
			name:       "promotes trigger default",
			hint:       "admin",
			storedRole: entities.RoleUser,
			wantRole:   entities.RoleAdmin,
			redirect:   services.PathAdminDashboard,
		},
		{
			name:       "demotes existing admin",
			hint:       "user",
			storedRole: entities.RoleAdmin,
			wantRole:   entities.RoleUser,
			redirect:   services.PathCompleteProfile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := new(MockIdentityProvider)
			profiles := new(MockProfileRepository)
			svc := services.NewCallbackService(identity, profiles, testReconcileConfig(), nil)

			app, user := entities.RoleMetadataPatch(tt.wantRole)
			identity.On("ExchangeCode", mock.Anything, "code", "").Return(testSession("user-9", nil), nil)
			identity.On("UpdateMetadata", mock.Anything, "user-9", app, user).Return(nil)
			identity.On("RefreshSession", mock.Anything, "refresh").Return(refreshedSession("user-9", tt.wantRole), nil)
			profiles.On("UpdateRole", mock.Anything, "user-9", tt.wantRole).Return(nil)
			// Row appears on the second poll, created by the trigger with the old role
			profiles.On("WaitForSync", mock.Anything, "user-9").Return(false, nil).Once()
			profiles.On("WaitForSync", mock.Anything, "user-9").Return(true, nil).Once()
			profiles.On("GetByID", mock.Anything, "user-9").
				Return(&entities.Profile{ID: "user-9", Role: tt.storedRole}, nil).Once()
			profiles.On("GetByID", mock.Anything, "user-9").
				Return(&entities.Profile{ID: "user-9", Role: tt.wantRole}, nil).Once()
			profiles.On("RecordLogin", mock.Anything, "user-9", mock.Anything).Return(nil)

			result, err := svc.Complete(context.Background(), services.CallbackInput{Code: "code", RoleHint: tt.hint})

			require.NoError(t, err)
			assert.Equal(t, services.SyncTrigger, result.SyncOutcome)
			assert.Equal(t, tt.wantRole, result.Profile.Role)
			assert.Equal(t, tt.redirect, result.RedirectPath)
			// Once before the row existed and once more after sync
			profiles.AssertNumberOfCalls(t, "UpdateRole", 2)
			profiles.AssertNumberOfCalls(t, "GetByID", 2)
			profiles.AssertNotCalled(t, "InsertIfAbsent", mock.Anything, mock.Anything)
			identity.AssertExpectations(t)
			profiles.AssertExpectations(t)
		})
	}
}

func TestCallbackService_SecondRoleWriteFailsKeepsStoredRow(t *testing.T) {
	identity := new(MockIdentityProvider)
	profiles := new(MockProfileRepository)
	svc := services.NewCallbackService(identity, profiles, testReconcileConfig(), nil)

	identity.On("ExchangeCode", mock.Anything, "code", "").Return(testSession("user-8", nil), nil)
	identity.On("UpdateMetadata", mock.Anything, "user-8", mock.Anything, mock.Anything).Return(nil)
	identity.On("RefreshSession", mock.Anything, "refresh").Return(refreshedSession("user-8", entities.RoleAdmin), nil)
	profiles.On("UpdateRole", mock.Anything, "user-8", entities.RoleAdmin).Return(nil).Once()
	profiles.On("UpdateRole", mock.Anything, "user-8", entities.RoleAdmin).Return(errors.New("deadlock")).Once()
	profiles.On("WaitForSync", mock.Anything, "user-8").Return(true, nil)
	profiles.On("GetByID", mock.Anything, "user-8").Return(&entities.Profile{ID: "user-8", Role: entities.RoleUser}, nil)
	profiles.On("RecordLogin", mock.Anything, "user-8", mock.Anything).Return(nil)

	result, err := svc.Complete(context.Background(), services.CallbackInput{Code: "code", RoleHint: "admin"})

	require.NoError(t, err)
	assert.Equal(t, entities.RoleUser, result.Profile.Role)
	assert.Equal(t, entities.RoleAdmin, result.Role.Role)
	profiles.AssertNumberOfCalls(t, "UpdateRole", 2)
	profiles.AssertNumberOfCalls(t, "GetByID", 1)
}

func TestCallbackService_RefreshFailureKeepsExchangedSession(t *testing.T) {
	identity := new(MockIdentityProvider)
	profiles := new(MockProfileRepository)
	svc := services.NewCallbackService(identity, profiles, testReconcileConfig(), nil)

	identity.On("ExchangeCode", mock.Anything, "code", "").Return(testSession("user-7", nil), nil)
	identity.On("UpdateMetadata", mock.Anything, "user-7", mock.Anything, mock.Anything).Return(nil)
	identity.On("RefreshSession", mock.Anything, "refresh").Return(nil, errors.New("Invalid Refresh Token"))
	profiles.On("UpdateRole", mock.Anything, "user-7", entities.RoleAdmin).Return(nil)
	profiles.On("WaitForSync", mock.Anything, "user-7").Return(true, nil)
	profiles.On("GetByID", mock.Anything, "user-7").Return(&entities.Profile{ID: "user-7", Role: entities.RoleAdmin}, nil)
	profiles.On("RecordLogin", mock.Anything, "user-7", mock.Anything).Return(nil)

	result, err := svc.Complete(context.Background(), services.CallbackInput{Code: "code", RoleHint: "admin"})

	require.NoError(t, err)
	assert.Equal(t, "access", result.Session.AccessToken)
	assert.Equal(t, "admin", result.Session.Identity.AppMetadata["role"])
}

func TestCallbackService_MetadataWriteFailureSkipsRefresh(t *testing.T) {
	identity := new(MockIdentityProvider)
	profiles := new(MockProfileRepository)
	svc := services.NewCallbackService(identity, profiles, testReconcileConfig(), nil)

	identity.On("ExchangeCode", mock.Anything, "code", "").Return(testSession("user-6", nil), nil)
	identity.On("UpdateMetadata", mock.Anything, "user-6", mock.Anything, mock.Anything).Return(errors.New("503"))
	profiles.On("UpdateRole", mock.Anything, "user-6", entities.RoleAdmin).Return(nil)
	profiles.On("WaitForSync", mock.Anything, "user-6").Return(true, nil)
	profiles.On("GetByID", mock.Anything, "user-6").Return(&entities.Profile{ID: "user-6", Role: entities.RoleAdmin}, nil)
	profiles.On("RecordLogin", mock.Anything, "user-6", mock.Anything).Return(nil)

	result, err := svc.Complete(context.Background(), services.CallbackInput{Code: "code", RoleHint: "admin"})

	require.NoError(t, err)
	assert.Equal(t, services.PathAdminDashboard, result.RedirectPath)
	identity.AssertNotCalled(t, "RefreshSession", mock.Anything, mock.Anything)
}

// The cookie set by the callback must authenticate with the chosen role on
// the very next request.
func TestCallbackService_AdminHintSessionAuthenticatesAsAdmin(t *testing.T) {
	identity := new(MockIdentityProvider)
	profiles := new(MockProfileRepository)
	callback := services.NewCallbackService(identity, profiles, testReconcileConfig(), nil)
	auth := services.NewAuthService(identity, profiles, "", testJWTSecret)

	exp := time.Now().Add(time.Hour).Unix()
	exchanged := testSession("user-5", nil)
	exchanged.AccessToken = signToken(t, testJWTSecret, jwt.MapClaims{
		"sub":          "user-5",
		"exp":          exp,
		"app_metadata": map[string]interface{}{"provider": "google"},
	})
	refreshed := refreshedSession("user-5", entities.RoleAdmin)
	refreshed.AccessToken = signToken(t, testJWTSecret, jwt.MapClaims{
		"sub":           "user-5",
		"exp":           exp,
		"app_metadata":  map[string]interface{}{"provider": "google", "role": "admin"},
		"user_metadata": map[string]interface{}{"database_role": "admin"},
	})

	identity.On("ExchangeCode", mock.Anything, "code", "").Return(exchanged, nil)
	identity.On("UpdateMetadata", mock.Anything, "user-5", mock.Anything, mock.Anything).Return(nil)
	identity.On("RefreshSession", mock.Anything, "refresh").Return(refreshed, nil)
	profiles.On("UpdateRole", mock.Anything, "user-5", entities.RoleAdmin).Return(nil)
	profiles.On("WaitForSync", mock.Anything, "user-5").Return(true, nil)
	profiles.On("GetByID", mock.Anything, "user-5").Return(&entities.Profile{ID: "user-5", Role: entities.RoleAdmin}, nil)
	profiles.On("RecordLogin", mock.Anything, "user-5", mock.Anything).Return(nil)

	// Without the refresh this token would resolve to the default role
	before, err := auth.Authenticate(context.Background(), exchanged.AccessToken)
	require.NoError(t, err)
	require.Equal(t, entities.RoleUser, before.Role)

	result, err := callback.Complete(context.Background(), services.CallbackInput{Code: "code", RoleHint: "admin"})
	require.NoError(t, err)

	principal, err := auth.Authenticate(context.Background(), result.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-5", principal.UserID)
	assert.Equal(t, entities.RoleAdmin, principal.Role)
	assert.True(t, principal.IsAdmin())
}

func TestCallbackService_UnknownHintFallsBackToInsert(t *testing.T) {
	identity := new(MockIdentityProvider)
	profiles := new(MockProfileRepository)
	svc := services.NewCallbackService(identity, profiles, testReconcileConfig(), nil)

	identity.On("ExchangeCode", mock.Anything, "code-2", "").
		Return(testSession("user-2", entities.Metadata{"full_name": "Grace"}), nil)
	profiles.On("WaitForSync", mock.Anything, "user-2").Return(false, nil)
	profiles.On("InsertIfAbsent", mock.Anything, mock.MatchedBy(func(p *entities.Profile) bool {
		return p.ID == "user-2" && p.FullName == "Grace" && p.Role == entities.RoleUser
	})).Return(true, nil)
	profiles.On("GetByID", mock.Anything, "user-2").Return(&entities.Profile{ID: "user-2", Role: entities.RoleUser}, nil)
	profiles.On("RecordLogin", mock.Anything, "user-2", mock.Anything).Return(nil)

	result, err := svc.Complete(context.Background(), services.CallbackInput{
		Code:     "code-2",
		RoleHint: "superuser",
	})

	require.NoError(t, err)
	assert.Equal(t, entities.RoleSourceDefault, result.Role.Source)
	assert.Equal(t, services.SyncFallbackInserted, result.SyncOutcome)
	assert.Equal(t, services.PathCompleteProfile, result.RedirectPath)
	identity.AssertNotCalled(t, "UpdateMetadata", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	profiles.AssertNotCalled(t, "UpdateRole", mock.Anything, mock.Anything, mock.Anything)
	profiles.AssertNumberOfCalls(t, "WaitForSync", 3)
}

func TestCallbackService_SyncErrorStillInserts(t *testing.T) {
	identity := new(MockIdentityProvider)
	profiles := new(MockProfileRepository)
	svc := services.NewCallbackService(identity, profiles, testReconcileConfig(), nil)

	visual := entities.VisualRoleStaff
	identity.On("ExchangeCode", mock.Anything, "code-3", "").
		Return(testSession("user-3", entities.Metadata{"name": "Lin", "visual_role": "Staff"}), nil)
	profiles.On("WaitForSync", mock.Anything, "user-3").Return(false, errors.New("connection reset"))
	profiles.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(false, nil)
	profiles.On("GetByID", mock.Anything, "user-3").
		Return(&entities.Profile{ID: "user-3", Role: entities.RoleUser, VisualRole: &visual}, nil)
	profiles.On("RecordLogin", mock.Anything, "user-3", mock.Anything).Return(nil)

	result, err := svc.Complete(context.Background(), services.CallbackInput{Code: "code-3", Next: "/requests/42"})

	require.NoError(t, err)
	assert.Equal(t, services.SyncTrigger, result.SyncOutcome)
	assert.Equal(t, "/requests/42", result.RedirectPath)
	profiles.AssertNumberOfCalls(t, "WaitForSync", 1)
}

func TestCallbackService_ProfileUnreadableUsesIdentity(t *testing.T) {
	identity := new(MockIdentityProvider)
	profiles := new(MockProfileRepository)
	svc := services.NewCallbackService(identity, profiles, testReconcileConfig(), nil)

	identity.On("ExchangeCode", mock.Anything, "code-4", "").
		Return(testSession("user-4", entities.Metadata{"name": "Sam", "visual_role": "Teacher"}), nil)
	profiles.On("WaitForSync", mock.Anything, "user-4").Return(true, nil)
	profiles.On("GetByID", mock.Anything, "user-4").Return(nil, errors.New("db down"))

	result, err := svc.Complete(context.Background(), services.CallbackInput{Code: "code-4"})

	require.NoError(t, err)
	assert.Equal(t, "Sam", result.Profile.FullName)
	assert.Equal(t, services.PathDashboard, result.RedirectPath)
	profiles.AssertNotCalled(t, "RecordLogin", mock.Anything, mock.Anything, mock.Anything)
}

func TestCallbackService_Failures(t *testing.T) {
	t.Run("missing code", func(t *testing.T) {
		svc := services.NewCallbackService(new(MockIdentityProvider), new(MockProfileRepository), testReconcileConfig(), nil)

		_, err := svc.Complete(context.Background(), services.CallbackInput{})

		require.Error(t, err)
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
		assert.Equal(t, "No authorization code received.", appErr.Message)
	})

	t.Run("exchange rejected", func(t *testing.T) {
		identity := new(MockIdentityProvider)
		profiles := new(MockProfileRepository)
		svc := services.NewCallbackService(identity, profiles, testReconcileConfig(), nil)
		identity.On("ExchangeCode", mock.Anything, "stale", "").Return(nil, errors.New("invalid_grant"))

		_, err := svc.Complete(context.Background(), services.CallbackInput{Code: "stale"})

		require.Error(t, err)
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrorTypeExternal, appErr.Type)
		assert.Equal(t, "invalid_grant", appErr.Message)
		profiles.AssertNotCalled(t, "WaitForSync", mock.Anything, mock.Anything)
	})
}
