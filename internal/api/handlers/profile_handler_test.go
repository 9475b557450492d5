package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/api/handlers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

func TestProfileHandler_Me(t *testing.T) {
	profiles := new(MockProfileService)
	handler := handlers.NewProfileHandler(profiles, new(MockRoleChanger))

	profiles.On("Me", mock.Anything).Return(&entities.Profile{ID: "admin-1", FullName: "Ada", Role: entities.RoleAdmin}, nil)

	w := httptest.NewRecorder()
	handler.Me(w, asAdmin(httptest.NewRequest("GET", "/api/me", nil), "admin-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "admin-1", resp["id"])
	assert.Equal(t, "Admin", resp["role"])
	assert.Equal(t, "app_metadata", resp["role_source"])
	profile := resp["profile"].(map[string]interface{})
	assert.Equal(t, "Ada", profile["full_name"])
}

func TestProfileHandler_Me_Unauthenticated(t *testing.T) {
	handler := handlers.NewProfileHandler(new(MockProfileService), new(MockRoleChanger))

	w := httptest.NewRecorder()
	handler.Me(w, httptest.NewRequest("GET", "/api/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileHandler_CompleteProfile(t *testing.T) {
	profiles := new(MockProfileService)
	handler := handlers.NewProfileHandler(profiles, new(MockRoleChanger))

	teacher := entities.VisualRoleTeacher
	profiles.On("Complete", mock.Anything, mock.MatchedBy(func(c *entities.ProfileCompletion) bool {
		return c.FullName == "Grace" && c.VisualRole == entities.VisualRoleTeacher
	})).Return(&entities.Profile{ID: "user-1", FullName: "Grace", VisualRole: &teacher}, nil)

	body := `{"name":"Grace","visual_role":"Teacher","department":"Science"}`
	w := httptest.NewRecorder()
	handler.CompleteProfile(w, asUser(httptest.NewRequest("PUT", "/api/me/profile", strings.NewReader(body)), "user-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	profiles.AssertExpectations(t)
}

func TestProfileHandler_LoginTracking(t *testing.T) {
	profiles := new(MockProfileService)
	handler := handlers.NewProfileHandler(profiles, new(MockRoleChanger))

	profiles.On("LoginStatus", mock.Anything).Return(&entities.LoginStatus{
		FirstLoginCompleted: false,
		UserType:            "User",
		LoginCount:          3,
	}, nil)
	profiles.On("CompleteFirstLogin", mock.Anything).Return(nil)

	w := httptest.NewRecorder()
	handler.LoginStatus(w, asUser(httptest.NewRequest("GET", "/api/me/login-status", nil), "user-1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"first_login_completed":false,"user_type":"User","login_count":3}`, w.Body.String())

	w = httptest.NewRecorder()
	handler.CompleteFirstLogin(w, asUser(httptest.NewRequest("POST", "/api/me/first-login", nil), "user-1"))
	assert.Equal(t, http.StatusNoContent, w.Code)
	profiles.AssertExpectations(t)
}

func TestProfileHandler_ListProfiles(t *testing.T) {
	profiles := new(MockProfileService)
	handler := handlers.NewProfileHandler(profiles, new(MockRoleChanger))

	profiles.On("ListProfiles", mock.Anything).Return([]*entities.Profile{{ID: "a"}, {ID: "b"}}, nil)

	w := httptest.NewRecorder()
	handler.ListProfiles(w, asAdmin(httptest.NewRequest("GET", "/api/admin/profiles", nil), "admin-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
}

func TestProfileHandler_ChangeRole(t *testing.T) {
	roles := new(MockRoleChanger)
	handler := handlers.NewProfileHandler(new(MockProfileService), roles)

	roles.On("ChangeRole", mock.Anything, "user-1", "admin").Return(&entities.Profile{ID: "user-1", Role: entities.RoleAdmin}, nil)
	roles.On("ChangeRole", mock.Anything, "user-1", "owner").Return(nil, apperrors.NewValidationError("role must be admin or user"))

	req := httptest.NewRequest("PATCH", "/api/admin/profiles/user-1/role", strings.NewReader(`{"role":"admin"}`))
	req.SetPathValue("id", "user-1")
	w := httptest.NewRecorder()
	handler.ChangeRole(w, asAdmin(req, "admin-1"))
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("PATCH", "/api/admin/profiles/user-1/role", strings.NewReader(`{"role":"owner"}`))
	req.SetPathValue("id", "user-1")
	w = httptest.NewRecorder()
	handler.ChangeRole(w, asAdmin(req, "admin-1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	roles.AssertExpectations(t)
}
