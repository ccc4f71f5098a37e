package httpclient

import (
	"context"
	"net/http"
)

// AuthType identifies the authentication method.
type AuthType int

const (
	AuthNone AuthType = iota
	AuthBearer
	AuthAPIKey
	// AuthToken resolves a bearer token per request, e.g. a signed-in session.
	AuthToken
	// AuthMulti applies several configs in order.
	AuthMulti
)

// AuthConfig configures request authentication.
type AuthConfig struct {
	Type AuthType
	// Token is the bearer token (AuthBearer).
	Token string
	// Key and Name are the API key and its header or query name (AuthAPIKey).
	Key  string
	Name string
	// InQuery sends the API key as a query parameter instead of a header.
	InQuery bool
	// Source returns the bearer token for AuthToken. An empty token sends no header.
	Source func(ctx context.Context) (string, error)
	All    []*AuthConfig
}

// BearerAuth creates a bearer token auth config.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Type: AuthBearer, Token: token}
}

// APIKeyHeader sends key in the named header.
func APIKeyHeader(name, key string) *AuthConfig {
	return &AuthConfig{Type: AuthAPIKey, Key: key, Name: name}
}

// APIKeyQuery sends key as the named query parameter.
func APIKeyQuery(name, key string) *AuthConfig {
	return &AuthConfig{Type: AuthAPIKey, Key: key, Name: name, InQuery: true}
}

// TokenAuth resolves a bearer token from source on every request.
func TokenAuth(source func(ctx context.Context) (string, error)) *AuthConfig {
	return &AuthConfig{Type: AuthToken, Source: source}
}

// MultiAuth applies each config in order.
func MultiAuth(all ...*AuthConfig) *AuthConfig {
	return &AuthConfig{Type: AuthMulti, All: all}
}

func (a *AuthConfig) apply(ctx context.Context, req *http.Request) error {
	if a == nil {
		return nil
	}
	switch a.Type {
	case AuthBearer:
		if a.Token != "" {
			req.Header.Set("Authorization", "Bearer "+a.Token)
		}
	case AuthAPIKey:
		name := a.Name
		if name == "" {
			name = "X-API-Key"
		}
		if a.InQuery {
			q := req.URL.Query()
			q.Set(name, a.Key)
			req.URL.RawQuery = q.Encode()
		} else {
			req.Header.Set(name, a.Key)
		}
	case AuthToken:
		if a.Source == nil {
			return nil
		}
		token, err := a.Source(ctx)
		if err != nil {
			return err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	case AuthMulti:
		for _, sub := range a.All {
			if err := sub.apply(ctx, req); err != nil {
				return err
			}
		}
	}
	return nil
}
