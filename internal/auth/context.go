package auth

import (
	"context"

	"github.com/credittrack/credittrack/internal/model"
)

type sessionKey struct{}

// WithSession attaches the verified session of the caller to ctx.
func WithSession(ctx context.Context, s *model.AuthContext) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by WithSession.
func SessionFromContext(ctx context.Context) (*model.AuthContext, bool) {
	s, ok := ctx.Value(sessionKey{}).(*model.AuthContext)
	return s, ok && s != nil
}

// UserIDFromContext returns the authenticated user ID, or 0 on public routes.
func UserIDFromContext(ctx context.Context) int64 {
	if s, ok := SessionFromContext(ctx); ok {
		return s.UserID
	}
	return 0
}
