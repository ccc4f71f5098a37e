package restapi

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/httpclient"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/validation"
)

// authResponse accepts both token and access_token spellings.
type authResponse struct {
	Token        string       `json:"token"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         model.Record `json:"user"`
}

// auth implements cloud.Auth on the /auth endpoints. Tokens are JWTs
// issued by the backend; only their claims are read here, the backend
// verifies them.
type auth struct{ p *Provider }

func (a *auth) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if err := validation.Var("email", email, "required,email"); err != nil {
		return nil, err
	}
	return a.open(ctx, "/auth/login", map[string]string{"email": email, "password": password}, true)
}

func (a *auth) Register(ctx context.Context, reg model.Registration) (*model.Session, error) {
	if err := validation.Validate(reg); err != nil {
		return nil, err
	}
	if reg.Role == "" {
		reg.Role = model.RoleCustomer
	}
	return a.open(ctx, "/auth/register", map[string]any{
		"email":     reg.Email,
		"password":  reg.Password,
		"full_name": reg.FullName,
		"phone":     reg.Phone,
		"role":      reg.Role,
	}, false)
}

func (a *auth) open(ctx context.Context, path string, body any, login bool) (*model.Session, error) {
	var resp authResponse
	err := a.p.db.call(ctx, "account", "", httpclient.Request{Method: http.MethodPost, Path: path, Body: body}, &resp)
	if err != nil {
		return nil, authError(err, login)
	}
	token := resp.AccessToken
	if token == "" {
		token = resp.Token
	}
	if token == "" {
		return nil, errors.Unauthorized("no token in response")
	}

	claims := tokenClaims(token)
	session := &model.Session{AccessToken: token, RefreshToken: resp.RefreshToken, ExpiresAt: claims.expires}
	if resp.User != nil {
		session.User = model.Decode[model.Profile](normalize(resp.User))
	}
	if session.User == nil && claims.subject != "" {
		session.User = a.p.Profiles().ByID(ctx, claims.subject)
	}
	if session.User == nil {
		session.User = &model.Profile{ID: claims.subject, Role: model.RoleCustomer}
	}
	a.p.setSession(ctx, session)
	return session, nil
}

// Logout ends the server session and always drops the local one.
func (a *auth) Logout(ctx context.Context) error {
	token, _ := a.p.token(ctx)
	if token == "" {
		return nil
	}
	err := a.p.db.call(ctx, "account", "", httpclient.Request{Method: http.MethodPost, Path: "/auth/logout"}, nil)
	a.p.setSession(ctx, nil)
	if err != nil {
		a.p.log.Warn("server logout failed", logger.Fields(logger.FieldError, err))
		return err
	}
	return nil
}

func (a *auth) CurrentUser(ctx context.Context) *model.Profile {
	token, _ := a.p.token(ctx)
	if token == "" {
		return nil
	}
	if claims := tokenClaims(token); !claims.expires.IsZero() && claims.expires.Before(time.Now()) {
		return nil
	}
	var user model.Record
	err := a.p.db.call(ctx, "account", "", httpclient.Request{Method: http.MethodGet, Path: "/auth/me"}, &user)
	if err != nil {
		a.p.log.Warn("current user lookup failed", logger.Fields(logger.FieldError, err))
		return nil
	}
	return model.Decode[model.Profile](normalize(user))
}

func (a *auth) UpdateProfile(ctx context.Context, id string, data model.Record) (*model.Profile, error) {
	return a.p.Profiles().Update(ctx, id, data)
}

func (a *auth) Profile(ctx context.Context, id string) *model.Profile {
	return a.p.Profiles().ByID(ctx, id)
}

type claims struct {
	subject string
	expires time.Time
}

// tokenClaims reads sub and exp from a JWT without verifying it. Opaque
// tokens yield zero claims.
func tokenClaims(token string) claims {
	var c claims
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return c
	}
	if sub, err := parsed.Claims.GetSubject(); err == nil {
		c.subject = sub
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		c.expires = exp.UTC()
	}
	return c
}

// authError maps a rejected login to UNAUTHORIZED and a conflicting
// registration to ALREADY_EXISTS.
func authError(err error, login bool) error {
	switch {
	case login && errors.HasCode(err, errors.ErrCodeInvalidInput):
		return errors.Unauthorized("invalid email or password").WithCause(err)
	case errors.HasCode(err, errors.ErrCodeConflict):
		return errors.AlreadyExists("account").WithCause(err)
	default:
		return err
	}
}
