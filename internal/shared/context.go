package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession attaches the browser session loaded by the session middleware.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the attached session or nil.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// RequireSession is SessionFromContext for handlers that cannot run without one.
func RequireSession(ctx context.Context) (*Session, error) {
	if sess := SessionFromContext(ctx); sess != nil {
		return sess, nil
	}
	return nil, ErrSessionMissing
}
