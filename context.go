package goSession

import "context"

type sessionContextKey struct{}

// WithSession attaches a session snapshot to ctx. The middleware package uses it to hand the
// current session to HTTP handlers.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext returns the snapshot attached by [WithSession].
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(sessionContextKey{}).(Session)
	return s, ok
}
