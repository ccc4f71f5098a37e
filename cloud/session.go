package cloud

import (
	"context"
	"sync"
)

type requestSessionKey struct{}

type requestSession struct {
	mu    sync.Mutex
	token string
}

// WithRequestSession scopes ctx to a single caller of a shared provider.
// token is the caller's bearer, empty for an anonymous caller. Calls made
// with the returned context authenticate with that token only, and a
// session opened under it is bound to the scope instead of the provider.
func WithRequestSession(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, requestSessionKey{}, &requestSession{token: token})
}

// RequestToken returns the caller's token. ok is false when ctx carries no
// request scope.
func RequestToken(ctx context.Context) (token string, ok bool) {
	s, ok := ctx.Value(requestSessionKey{}).(*requestSession)
	if !ok {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, true
}

// BindRequestToken replaces the scope's token after a login, registration
// or logout. It reports false when ctx carries no request scope.
func BindRequestToken(ctx context.Context, token string) bool {
	s, ok := ctx.Value(requestSessionKey{}).(*requestSession)
	if !ok {
		return false
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return true
}
