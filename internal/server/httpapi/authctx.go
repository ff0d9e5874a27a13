package httpapi

import (
	"context"
	"time"

	"github.com/maazshahbaz/ai-humanizer/internal/service"
)

type ctxKey string

const (
	sessionKey ctxKey = "hz.session"
	tokenKey   ctxKey = "hz.token"
)

// bearer is the verified access token of the request.
type bearer struct {
	raw       string
	expiresAt time.Time
}

// WithSession stores the caller's session in context.
func WithSession(ctx context.Context, s *service.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromCtx fetches the caller's session from context.
func SessionFromCtx(ctx context.Context) (*service.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*service.Session)
	return s, ok && s != nil
}

func withBearer(ctx context.Context, b bearer) context.Context {
	return context.WithValue(ctx, tokenKey, b)
}

func bearerFromCtx(ctx context.Context) (bearer, bool) {
	b, ok := ctx.Value(tokenKey).(bearer)
	return b, ok
}
