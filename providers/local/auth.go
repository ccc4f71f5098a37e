package local

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kbukum/glowbook/database"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/validation"
)

// account holds login credentials. Profile data lives in the profiles
// table like on every other backend.
type account struct {
	ID           string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"uniqueIndex;size:320;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    int64  `gorm:"autoCreateTime"`
}

func (account) TableName() string { return "accounts" }

// sessionClaims are the claims of an issued session token.
type sessionClaims struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	jwt.RegisteredClaims
}

// auth implements cloud.Auth with bcrypt password hashes and HS256 tokens.
type auth struct {
	p  *Provider
	db *database.DB
}

func (a *auth) Register(ctx context.Context, reg model.Registration) (*model.Session, error) {
	if err := validation.Validate(reg); err != nil {
		return nil, err
	}
	if reg.Role == "" {
		reg.Role = model.RoleCustomer
	}
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Internal(err)
	}
	acc := account{ID: uuid.NewString(), Email: email, PasswordHash: string(hash)}

	err = a.db.Transaction(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&account{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return errors.AlreadyExists("account")
		}
		return tx.Create(&acc).Error
	})
	if err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.AlreadyExists("account")
		}
		return nil, storeError("accounts", acc.ID, err)
	}

	profile, err := a.p.Profiles().Create(ctx, model.Profile{
		ID: acc.ID, Email: email, FullName: reg.FullName, Phone: reg.Phone, Role: reg.Role,
	})
	if err != nil {
		return nil, err
	}
	return a.issue(ctx, profile)
}

func (a *auth) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if err := validation.Var("email", email, "required,email"); err != nil {
		return nil, err
	}
	var acc account
	err := a.db.Gorm.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&acc).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, errors.DatabaseError(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return nil, errors.Unauthorized("invalid email or password")
	}
	profile := a.p.Profiles().ByID(ctx, acc.ID)
	if profile == nil {
		a.p.log.Warn("account without profile", logger.Fields("user_id", acc.ID))
		profile = &model.Profile{ID: acc.ID, Email: acc.Email, Role: model.RoleCustomer}
	}
	return a.issue(ctx, profile)
}

func (a *auth) issue(ctx context.Context, profile *model.Profile) (*model.Session, error) {
	now := a.p.now()
	expires := now.Add(a.p.creds.tokenTTL).UTC()
	claims := sessionClaims{
		Email: profile.Email,
		Role:  profile.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.ID,
			Issuer:    backend,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.p.creds.jwtSecret)
	if err != nil {
		return nil, errors.Internal(err)
	}
	session := &model.Session{AccessToken: token, ExpiresAt: expires, User: profile}
	a.p.setSession(ctx, session)
	return session, nil
}

// Verify checks a session token issued by this provider and returns its
// claims.
func (a *auth) Verify(token string) (*sessionClaims, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.p.creds.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(backend),
		jwt.WithTimeFunc(a.p.now),
	)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Unauthorized("session expired").WithCause(err)
		}
		return nil, errors.Unauthorized("invalid session token").WithCause(err)
	}
	return &claims, nil
}

func (a *auth) Logout(ctx context.Context) error {
	a.p.setSession(ctx, nil)
	return nil
}

// CurrentUser returns the profile of the signed-in user while the session
// token is valid.
func (a *auth) CurrentUser(ctx context.Context) *model.Profile {
	session := a.p.currentSession(ctx)
	if session == nil {
		return nil
	}
	claims, err := a.Verify(session.AccessToken)
	if err != nil {
		a.p.log.Debug("session rejected", logger.Fields(logger.FieldError, err))
		return nil
	}
	if profile := a.p.Profiles().ByID(ctx, claims.Subject); profile != nil {
		return profile
	}
	return session.User
}

func (a *auth) UpdateProfile(ctx context.Context, id string, data model.Record) (*model.Profile, error) {
	return a.p.Profiles().Update(ctx, id, data)
}

func (a *auth) Profile(ctx context.Context, id string) *model.Profile {
	return a.p.Profiles().ByID(ctx, id)
}
