package auth

import (
	"context"
)

var authCtxKey = &contextKey{"auth"}
var deviceCtxKey = &contextKey{"device"}

type contextKey struct {
	name string
}

// AuthContext is the request scoped identity taken from a verified access
// token. It is never refreshed from storage, so role or rank changes only
// show up once the client gets a new access token.
type AuthContext struct {
	UserID       string `json:"user_id"`
	Role         Role   `json:"role"`
	Rank         Rank   `json:"rank"`
	EmailAddress string `json:"email_address"`
	LastName     string `json:"last_name"`
}

// IsAdmin reports whether the identity has the admin role
func (a *AuthContext) IsAdmin() bool {
	return a != nil && a.Role.IsAtLeast(RoleAdmin)
}

// IsMember reports whether the identity has member rank
func (a *AuthContext) IsMember() bool {
	return a != nil && a.Rank.IsAtLeast(RankMember)
}

// IsOwnerOrAdmin checks the identity owns the resource or is an admin
func (a *AuthContext) IsOwnerOrAdmin(ownerID string) bool {
	if a == nil {
		return false
	}
	return a.IsAdmin() || (ownerID != "" && a.UserID == ownerID)
}

// RequireOwnerOrAdmin is IsOwnerOrAdmin returning an authorization error
func (a *AuthContext) RequireOwnerOrAdmin(ownerID string) error {
	if a.IsOwnerOrAdmin(ownerID) {
		return nil
	}
	return newError(ErrForbidden, map[string]any{"resource_owner": ownerID})
}

// WithAuthContext sets the AuthContext in the given context
func WithAuthContext(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authCtxKey, auth)
}

// GetAuthContext extracts the AuthContext from the standard context
func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	raw, ok := ctx.Value(authCtxKey).(*AuthContext)
	return raw, ok && raw != nil
}

// WithDeviceContext sets the reporting device in the given context
func WithDeviceContext(ctx context.Context, device DeviceInfo) context.Context {
	return context.WithValue(ctx, deviceCtxKey, device)
}

// GetDevice extracts the device from the standard context
func GetDevice(ctx context.Context) DeviceInfo {
	device, _ := ctx.Value(deviceCtxKey).(DeviceInfo)
	return device
}
