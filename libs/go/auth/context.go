package auth

import "context"

type contextKey string

const (
	identityKey contextKey = "platform-auth-identity"
	userIDKey   contextKey = "platform-auth-user-id"
)

// WithIdentity stores extracted claims on the context.
func WithIdentity(ctx context.Context, claims IdentityClaims) context.Context {
	return context.WithValue(ctx, identityKey, claims)
}

// IdentityFromContext retrieves claims stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (IdentityClaims, bool) {
	claims, ok := ctx.Value(identityKey).(IdentityClaims)
	return claims, ok
}

// WithUserID stores the resolved internal user id on the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the id stored by WithUserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}
