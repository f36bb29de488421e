package middleware

import "context"

type contextKey string

const (
	ctxCallerID contextKey = "caller_id"
	ctxAuthMode contextKey = "auth_mode"
)

// Authentication modes a request can arrive under.
const (
	AuthModeSession = "session"
	AuthModeSigned  = "signed"
)

// CallerIDFromContext returns the authenticated caller identity.
func CallerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCallerID).(string); ok {
		return v
	}
	return ""
}

// AuthModeFromContext reports which credential authenticated the request.
func AuthModeFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAuthMode).(string); ok {
		return v
	}
	return ""
}

// WithCaller injects the caller identity and auth mode for downstream handlers.
func WithCaller(ctx context.Context, callerID, mode string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxCallerID, callerID)
	return context.WithValue(ctx, ctxAuthMode, mode)
}
