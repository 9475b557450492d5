// Package session carries the authenticated caller through a request's
// context so every data-access call sees the same principal.
package session

import (
	"context"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/facility-maintenance-tracker/backend/pkg/errors"
)

// AdminRequiredMessage is returned verbatim whenever a standard user reaches
// an admin-only operation.
const AdminRequiredMessage = "Unauthorized: Admin access required"

// Principal is the authenticated caller for one request
type Principal struct {
	UserID      string
	Email       string
	Role        entities.Role
	RoleSource  entities.RoleSource
	AccessToken string
	IsAnonymous bool
}

// IsAdmin reports whether the principal holds the elevated role
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == entities.RoleAdmin
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx, if any
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// RequirePrincipal returns the caller or an UNAUTHORIZED error
func RequirePrincipal(ctx context.Context) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return nil, apperrors.NewUnauthorizedError("authentication required")
	}
	return p, nil
}

// RequireAdmin returns the caller when it is an administrator
func RequireAdmin(ctx context.Context) (*Principal, error) {
	p, err := RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		return nil, apperrors.NewForbiddenError(AdminRequiredMessage)
	}
	return p, nil
}
