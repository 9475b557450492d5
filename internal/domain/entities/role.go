package entities

import "strings"

// Role is the coarse access-control role stored on a profile.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

// VisualRole is a descriptive label used for reporting only. It never grants access.
type VisualRole string

const (
	VisualRoleTeacher VisualRole = "Teacher"
	VisualRoleStaff   VisualRole = "Staff"
	VisualRoleStudent VisualRole = "Student"
)

// VisualRoles lists the accepted descriptive labels in display order.
var VisualRoles = []VisualRole{VisualRoleTeacher, VisualRoleStaff, VisualRoleStudent}

// IsValid reports whether v is one of the known labels
func (v VisualRole) IsValid() bool {
	for _, known := range VisualRoles {
		if v == known {
			return true
		}
	}
	return false
}

// RoleSource records where a resolved role came from.
type RoleSource string

const (
	RoleSourceHint         RoleSource = "hint"
	RoleSourceAppMetadata  RoleSource = "app_metadata"
	RoleSourceUserMetadata RoleSource = "user_metadata"
	RoleSourceDefault      RoleSource = "default"
)

// RoleResolution is the single authoritative role for an identity.
type RoleResolution struct {
	Role   Role       `json:"role"`
	Source RoleSource `json:"source"`
}

// IsAdmin reports whether the resolved role is elevated
func (r RoleResolution) IsAdmin() bool {
	return r.Role == RoleAdmin
}

// ParseRoleHint accepts only the lowercase hint vocabulary carried through the
// OAuth redirect ("admin", "user"), ignoring case and surrounding space.
func ParseRoleHint(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin, true
	case "user":
		return RoleUser, true
	default:
		return "", false
	}
}

// ParseRole interprets a role value found in a metadata bag or database row.
func ParseRole(value interface{}) (Role, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	return ParseRoleHint(s)
}

// ResolveRole applies the one precedence order used everywhere a role is
// derived: explicit hint, then app_metadata.role, then
// user_metadata.database_role (or user_metadata.role), then User.
func ResolveRole(hint string, appMetadata, userMetadata Metadata) RoleResolution {
	if role, ok := ParseRoleHint(hint); ok {
		return RoleResolution{Role: role, Source: RoleSourceHint}
	}
	if role, ok := ParseRole(appMetadata["role"]); ok {
		return RoleResolution{Role: role, Source: RoleSourceAppMetadata}
	}
	for _, key := range []string{"database_role", "role"} {
		if role, ok := ParseRole(userMetadata[key]); ok {
			return RoleResolution{Role: role, Source: RoleSourceUserMetadata}
		}
	}
	return RoleResolution{Role: RoleUser, Source: RoleSourceDefault}
}

// RoleMetadataPatch returns the keys written into both metadata bags when a
// role is assigned, so later reads through ResolveRole agree.
func RoleMetadataPatch(role Role) (app Metadata, user Metadata) {
	value := strings.ToLower(string(role))
	return Metadata{"role": value}, Metadata{"database_role": value}
}
