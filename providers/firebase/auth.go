package firebase

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/httpclient"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/validation"
)

type tokenResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
}

type lookupResponse struct {
	Users []struct {
		LocalID     string `json:"localId"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
	} `json:"users"`
}

// auth implements cloud.Auth on the Identity Toolkit. Logout only drops
// the local session.
type auth struct{ p *Provider }

func (a *auth) call(ctx context.Context, method string, body, out any) error {
	a.p.mu.RLock()
	identity := a.p.identity
	a.p.mu.RUnlock()
	err := identity.JSON(ctx, httpclient.Request{Method: http.MethodPost, Path: "/accounts:" + method, Body: body}, out)
	return identityError(err)
}

func (a *auth) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if err := validation.Var("email", email, "required,email"); err != nil {
		return nil, err
	}
	var resp tokenResponse
	err := a.call(ctx, "signInWithPassword", map[string]any{
		"email": email, "password": password, "returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	session := a.open(ctx, &resp)
	if profile := a.p.Profiles().ByID(ctx, resp.LocalID); profile != nil {
		session.User = profile
	}
	return session, nil
}

func (a *auth) Register(ctx context.Context, reg model.Registration) (*model.Session, error) {
	if err := validation.Validate(reg); err != nil {
		return nil, err
	}
	if reg.Role == "" {
		reg.Role = model.RoleCustomer
	}
	var resp tokenResponse
	err := a.call(ctx, "signUp", map[string]any{
		"email": reg.Email, "password": reg.Password, "displayName": reg.FullName, "returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	session := a.open(ctx, &resp)
	profile := model.Profile{ID: resp.LocalID, Email: reg.Email, FullName: reg.FullName, Phone: reg.Phone, Role: reg.Role}
	if created, err := a.p.Profiles().Create(ctx, profile); err != nil {
		a.p.log.Warn("profile document not created", logger.Fields("user_id", resp.LocalID, logger.FieldError, err))
		session.User = &profile
	} else {
		session.User = created
	}
	return session, nil
}

func (a *auth) open(ctx context.Context, resp *tokenResponse) *model.Session {
	session := &model.Session{
		AccessToken:  resp.IDToken,
		RefreshToken: resp.RefreshToken,
		User: &model.Profile{
			ID: resp.LocalID, Email: resp.Email, FullName: resp.DisplayName, Role: model.RoleCustomer,
		},
	}
	if secs, err := strconv.Atoi(resp.ExpiresIn); err == nil {
		session.ExpiresAt = time.Now().Add(time.Duration(secs) * time.Second).UTC()
	}
	a.p.setSession(ctx, session)
	return session
}

func (a *auth) Logout(ctx context.Context) error {
	a.p.setSession(ctx, nil)
	return nil
}

func (a *auth) CurrentUser(ctx context.Context) *model.Profile {
	token, _ := a.p.idToken(ctx)
	if token == "" {
		return nil
	}
	var resp lookupResponse
	if err := a.call(ctx, "lookup", map[string]string{"idToken": token}, &resp); err != nil {
		a.p.log.Warn("current user lookup failed", logger.Fields(logger.FieldError, err))
		return nil
	}
	if len(resp.Users) == 0 {
		return nil
	}
	u := resp.Users[0]
	if profile := a.p.Profiles().ByID(ctx, u.LocalID); profile != nil {
		return profile
	}
	return &model.Profile{ID: u.LocalID, Email: u.Email, FullName: u.DisplayName, Role: model.RoleCustomer}
}

func (a *auth) UpdateProfile(ctx context.Context, id string, data model.Record) (*model.Profile, error) {
	return a.p.Profiles().Update(ctx, id, data)
}

func (a *auth) Profile(ctx context.Context, id string) *model.Profile {
	return a.p.Profiles().ByID(ctx, id)
}

// identityError maps Identity Toolkit error messages such as EMAIL_EXISTS
// or INVALID_LOGIN_CREDENTIALS onto application errors.
func identityError(err error) error {
	if err == nil {
		return nil
	}
	var e *httpclient.Error
	if !stderrors.As(err, &e) || e.StatusCode != http.StatusBadRequest {
		return httpclient.ToAppError(backend, "account", "", err)
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(e.Body, &body)
	code := body.Error.Message
	if i := strings.IndexAny(code, " :"); i > 0 {
		code = code[:i]
	}
	switch code {
	case "EMAIL_EXISTS":
		return errors.AlreadyExists("account").WithCause(err)
	case "WEAK_PASSWORD", "INVALID_EMAIL", "MISSING_PASSWORD":
		return errors.InvalidInput("", strings.ToLower(strings.ReplaceAll(code, "_", " "))).WithCause(err)
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED", "INVALID_ID_TOKEN":
		return errors.Unauthorized("invalid email or password").WithCause(err)
	default:
		return httpclient.ToAppError(backend, "account", "", err)
	}
}
