package common

import "context"

type ctxKey string

const (
	identityKey  ctxKey = "auth/identity"
	deviceIDKey  ctxKey = "scope/device-id"
	sessionIDKey ctxKey = "scope/session-id"
)

// Role values stored on user records.
const (
	RoleAdmin  = "ADMIN"
	RoleClient = "CLIENT"
)

// Identity describes the authenticated caller resolved from the session token.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// IsAdmin reports whether the identity carries the administrator role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// WithIdentity stores the authenticated identity on the provided context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom extracts the authenticated identity from the context if present.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// WithDeviceID binds the durable browser identifier used by the local storage scope.
func WithDeviceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deviceIDKey, id)
}

// DeviceID returns the durable browser identifier.
func DeviceID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(deviceIDKey).(string)
	return id, ok && id != ""
}

// WithSessionID binds the browser-session identifier used by the session storage scope.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID returns the browser-session identifier.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}
