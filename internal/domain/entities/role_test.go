package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRoleHint(t *testing.T) {
	tests := []struct {
		raw  string
		want Role
		ok   bool
	}{
		{"admin", RoleAdmin, true},
		{" Admin ", RoleAdmin, true},
		{"user", RoleUser, true},
		{"USER", RoleUser, true},
		{"superuser", "", false},
		{"", "", false},
		{"administrator", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			role, ok := ParseRoleHint(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, role)
		})
	}
}

func TestResolveRole_Precedence(t *testing.T) {
	tests := []struct {
		name       string
		hint       string
		app        Metadata
		user       Metadata
		wantRole   Role
		wantSource RoleSource
	}{
		{
			name:       "hint wins over both bags",
			hint:       "admin",
			app:        Metadata{"role": "user"},
			user:       Metadata{"database_role": "user"},
			wantRole:   RoleAdmin,
			wantSource: RoleSourceHint,
		},
		{
			name:       "app metadata wins over user metadata",
			app:        Metadata{"role": "Admin"},
			user:       Metadata{"database_role": "user"},
			wantRole:   RoleAdmin,
			wantSource: RoleSourceAppMetadata,
		},
		{
			name:       "unknown hint falls through",
			hint:       "owner",
			user:       Metadata{"database_role": "admin"},
			wantRole:   RoleAdmin,
			wantSource: RoleSourceUserMetadata,
		},
		{
			name:       "legacy role key in user metadata",
			user:       Metadata{"role": "admin"},
			wantRole:   RoleAdmin,
			wantSource: RoleSourceUserMetadata,
		},
		{
			name:       "non-string values are ignored",
			app:        Metadata{"role": true},
			wantRole:   RoleUser,
			wantSource: RoleSourceDefault,
		},
		{
			name:       "defaults to user",
			wantRole:   RoleUser,
			wantSource: RoleSourceDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveRole(tt.hint, tt.app, tt.user)
			assert.Equal(t, tt.wantRole, got.Role)
			assert.Equal(t, tt.wantSource, got.Source)
		})
	}
}

func TestRoleMetadataPatch_RoundTripsThroughResolve(t *testing.T) {
	app, user := RoleMetadataPatch(RoleAdmin)
	assert.Equal(t, Metadata{"role": "admin"}, app)
	assert.Equal(t, Metadata{"database_role": "admin"}, user)

	assert.Equal(t, RoleAdmin, ResolveRole("", app, nil).Role)
	assert.Equal(t, RoleAdmin, ResolveRole("", nil, user).Role)
}

func TestIdentity_DisplayNameAndVisualRole(t *testing.T) {
	identity := &Identity{UserMetadata: Metadata{"full_name": "Ada Lovelace", "visual_role": "Teacher"}}
	assert.Equal(t, "Ada Lovelace", identity.DisplayName())
	if assert.NotNil(t, identity.VisualRole()) {
		assert.Equal(t, VisualRoleTeacher, *identity.VisualRole())
	}

	empty := &Identity{}
	assert.Equal(t, "Unknown", empty.DisplayName())
	assert.Nil(t, empty.VisualRole())

	bogus := &Identity{UserMetadata: Metadata{"visual_role": "Janitor"}}
	assert.Nil(t, bogus.VisualRole())
}

func TestMetadata_Scan(t *testing.T) {
	var m Metadata
	assert.NoError(t, m.Scan([]byte(`{"role":"admin"}`)))
	assert.Equal(t, "admin", m.String("role"))

	assert.NoError(t, m.Scan(nil))
	assert.Empty(t, m)

	assert.Error(t, m.Scan(42))
}
