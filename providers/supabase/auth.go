package supabase

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"
	"time"

	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/httpclient"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/validation"
)

type gotrueUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

// gotrueSession covers both the token response and the bare user returned
// by signup when email confirmation is on.
type gotrueSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int         `json:"expires_in"`
	User         *gotrueUser `json:"user"`
	gotrueUser
}

func (s *gotrueSession) user() *gotrueUser {
	if s.User != nil {
		return s.User
	}
	if s.ID != "" {
		return &s.gotrueUser
	}
	return nil
}

// auth implements cloud.Auth on GoTrue. Profiles live in the profiles table.
type auth struct{ p *Provider }

func (a *auth) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if err := validation.Var("email", email, "required,email"); err != nil {
		return nil, err
	}
	var resp gotrueSession
	err := a.p.api().JSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/v1/token",
		Query:  url.Values{"grant_type": {"password"}},
		Body:   map[string]string{"email": email, "password": password},
	}, &resp)
	if err != nil {
		return nil, authError(err)
	}
	return a.open(ctx, &resp, nil), nil
}

func (a *auth) Register(ctx context.Context, reg model.Registration) (*model.Session, error) {
	if err := validation.Validate(reg); err != nil {
		return nil, err
	}
	if reg.Role == "" {
		reg.Role = model.RoleCustomer
	}
	var resp gotrueSession
	err := a.p.api().JSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/v1/signup",
		Body: map[string]any{
			"email":    reg.Email,
			"password": reg.Password,
			"data": map[string]string{
				"full_name": reg.FullName,
				"phone":     reg.Phone,
				"role":      string(reg.Role),
			},
		},
	}, &resp)
	if err != nil {
		return nil, authError(err)
	}
	u := resp.user()
	if u == nil {
		return nil, errors.ExternalServiceError(backend, nil).WithDetail("reason", "signup returned no user")
	}
	profile := &model.Profile{ID: u.ID, Email: u.Email, FullName: reg.FullName, Phone: reg.Phone, Role: reg.Role}
	if resp.AccessToken != "" {
		a.p.setSession(ctx, &model.Session{AccessToken: resp.AccessToken})
	}
	if created, err := a.p.Profiles().Create(ctx, *profile); err != nil {
		a.p.log.Warn("profile row not created", logger.Fields("user_id", u.ID, logger.FieldError, err))
	} else {
		profile = created
	}
	return a.open(ctx, &resp, profile), nil
}

// open stores the session and resolves its profile. Signups awaiting email
// confirmation return a session without an access token.
func (a *auth) open(ctx context.Context, resp *gotrueSession, profile *model.Profile) *model.Session {
	session := &model.Session{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if resp.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC()
	}
	if resp.AccessToken != "" {
		a.p.setSession(ctx, session)
	}
	if profile == nil {
		if u := resp.user(); u != nil {
			profile = a.p.Profiles().ByID(ctx, u.ID)
			if profile == nil {
				profile = profileFromUser(u)
			}
		}
	}
	session.User = profile
	return session
}

func (a *auth) Logout(ctx context.Context) error {
	session := a.p.currentSession(ctx)
	if session == nil {
		return nil
	}
	a.p.setSession(ctx, nil)
	_, err := a.p.api().Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/v1/logout",
		Auth:   httpclient.BearerAuth(session.AccessToken),
	})
	return httpclient.ToAppError(backend, "session", "", err)
}

func (a *auth) CurrentUser(ctx context.Context) *model.Profile {
	if a.p.currentSession(ctx) == nil {
		return nil
	}
	var u gotrueUser
	if err := a.p.api().JSON(ctx, httpclient.Request{Method: http.MethodGet, Path: "/auth/v1/user"}, &u); err != nil {
		a.p.log.Warn("current user lookup failed", logger.Fields(logger.FieldError, err))
		return nil
	}
	if profile := a.p.Profiles().ByID(ctx, u.ID); profile != nil {
		return profile
	}
	return profileFromUser(&u)
}

func (a *auth) UpdateProfile(ctx context.Context, id string, data model.Record) (*model.Profile, error) {
	return a.p.Profiles().Update(ctx, id, data)
}

func (a *auth) Profile(ctx context.Context, id string) *model.Profile {
	return a.p.Profiles().ByID(ctx, id)
}

func profileFromUser(u *gotrueUser) *model.Profile {
	profile := &model.Profile{ID: u.ID, Email: u.Email, Phone: u.Phone, Role: model.RoleCustomer, CreatedAt: u.CreatedAt}
	if name, ok := u.UserMetadata["full_name"].(string); ok {
		profile.FullName = name
	}
	if role, ok := u.UserMetadata["role"].(string); ok && role != "" {
		profile.Role = model.Role(role)
	}
	return profile
}

// authError reports rejected credentials as UNAUTHORIZED. GoTrue answers
// bad passwords with 400.
func authError(err error) error {
	var e *httpclient.Error
	if stderrors.As(err, &e) && e.Kind == httpclient.KindRejected && e.StatusCode == http.StatusBadRequest {
		return errors.Unauthorized("invalid email or password").WithCause(err)
	}
	return httpclient.ToAppError(backend, "session", "", err)
}
