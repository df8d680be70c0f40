package middleware

import "context"

type contextKey string

const (
	UsernameKey  contextKey = "username"
	AnonymousKey contextKey = "anonymous"
)

// GetUsername returns the principal set by Principal.
func GetUsername(ctx context.Context) string {
	v, _ := ctx.Value(UsernameKey).(string)
	return v
}

// IsAnonymous reports whether the principal was generated for a request without a username.
func IsAnonymous(ctx context.Context) bool {
	v, _ := ctx.Value(AnonymousKey).(bool)
	return v
}

// WithUsername stores username as the request principal.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, UsernameKey, username)
}
