package middleware

import "context"

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxEmail    contextKey = "email"
	ctxUsername contextKey = "username"
)

// Identity is the caller as established by the bearer token.
type Identity struct {
	UserID   string
	Email    string
	Username string
}

func UserIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxUserID)
}

func EmailFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxEmail)
}

func UsernameFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxUsername)
}

// IdentityFromContext returns every claim Auth stored on the context.
func IdentityFromContext(ctx context.Context) Identity {
	return Identity{
		UserID:   UserIDFromContext(ctx),
		Email:    EmailFromContext(ctx),
		Username: UsernameFromContext(ctx),
	}
}

// WithIdentity injects the caller's claims into the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, id.UserID)
	ctx = context.WithValue(ctx, ctxEmail, id.Email)
	return context.WithValue(ctx, ctxUsername, id.Username)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
