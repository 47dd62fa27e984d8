package authz

import (
	"context"
	"fmt"
	"slices"
)

// Scope describes how much of the caller is known.
type Scope int

const (
	// ScopeAnonymous no session.
	ScopeAnonymous Scope = iota
	// ScopeUser session without an active organization.
	ScopeUser
	// ScopeOrganization session with an active organization.
	ScopeOrganization
)

func (s Scope) String() string {
	switch s {
	case ScopeAnonymous:
		return "anonymous"
	case ScopeUser:
		return "user"
	case ScopeOrganization:
		return "organization"
	default:
		return "unknown"
	}
}

// AuthUser is the authorization context of a single data request.
// A nil *AuthUser is the anonymous caller.
type AuthUser struct {
	UserID           string  `json:"userId"`
	OrganizationID   *string `json:"organizationId,omitempty"`
	OrganizationRole *string `json:"organizationRole,omitempty"`
}

func (u *AuthUser) Scope() Scope {
	switch {
	case u == nil:
		return ScopeAnonymous
	case u.OrganizationID == nil:
		return ScopeUser
	default:
		return ScopeOrganization
	}
}

// HasOrganizationRole reports whether the role resolved for the active organization is one of roles.
// An unknown role never matches.
func (u *AuthUser) HasOrganizationRole(roles ...string) bool {
	if u == nil || u.OrganizationRole == nil {
		return false
	}

	return slices.Contains(roles, *u.OrganizationRole)
}

// String returns string representation of AuthUser (for audit logs).
func (u *AuthUser) String() string {
	switch u.Scope() {
	case ScopeAnonymous:
		return "anonymous"
	case ScopeUser:
		return fmt.Sprintf("user:%s", u.UserID)
	default:
		role := "unknown"
		if u.OrganizationRole != nil {
			role = *u.OrganizationRole
		}

		return fmt.Sprintf("user:%s org:%s role:%s", u.UserID, *u.OrganizationID, role)
	}
}

// Equal compares two auth users by value, nil equals nil.
func (u *AuthUser) Equal(o *AuthUser) bool {
	if u == nil || o == nil {
		return u == nil && o == nil
	}

	return u.UserID == o.UserID &&
		stringPtrEqual(u.OrganizationID, o.OrganizationID) &&
		stringPtrEqual(u.OrganizationRole, o.OrganizationRole)
}

func stringPtrEqual(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}

	if a == nil || b == nil {
		return false
	}

	return *a == *b
}

// authUserKey is an unexported key type to prevent external forgery.
type authUserKey struct{}

type authUserValue struct {
	user *AuthUser
}

// WithAuthUser stores the resolved auth user, returns error if a different one already exists.
// Anonymous callers are stored too, so "resolved as anonymous" differs from "not resolved".
func WithAuthUser(ctx context.Context, u *AuthUser) (context.Context, error) {
	if existing, ok := GetAuthUser(ctx); ok {
		if !existing.Equal(u) {
			return ctx, fmt.Errorf("authz: auth user conflict: existing=%s, new=%s", existing.String(), u.String())
		}

		return ctx, nil
	}

	return context.WithValue(ctx, authUserKey{}, authUserValue{user: u}), nil
}

// GetAuthUser reads the auth user, ok is false when the request was never resolved.
func GetAuthUser(ctx context.Context) (*AuthUser, bool) {
	v, ok := ctx.Value(authUserKey{}).(authUserValue)
	if !ok {
		return nil, false
	}

	return v.user, true
}
