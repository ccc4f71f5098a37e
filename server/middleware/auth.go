package middleware

import (
	"context"
	stderrors "errors"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kbukum/glowbook/errors"
)

// Claim keys the auth middleware sets on the gin context.
const (
	ClaimSubject = "sub"
	ClaimRole    = "role"
	ClaimIssuer  = "iss"
)

// OperatorIssuer is the issuer of operator tokens.
const OperatorIssuer = "glowbook-operator"

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator func(ctx context.Context, token string) (map[string]any, error)

// AuthConfig configures the bearer authentication middleware.
type AuthConfig struct {
	// TokenValidator validates a token string and returns the claims.
	TokenValidator TokenValidator
	// Roles admits only tokens whose role claim is listed. Empty admits
	// every valid token.
	Roles []string
	// SkipPaths are URL path prefixes that bypass authentication.
	SkipPaths []string
}

// Auth returns a Gin middleware that validates Bearer tokens using the
// configured TokenValidator. Validated claims are stored in the Gin context.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if strings.HasPrefix(path, skip) {
				c.Next()
				return
			}
		}

		token, ok := BearerToken(c)
		if !ok {
			abort(c, errors.Unauthorized("Invalid authorization header format"))
			return
		}
		if token == "" {
			abort(c, errors.Unauthorized("Authorization header required"))
			return
		}

		claims, err := cfg.TokenValidator(c.Request.Context(), token)
		if err != nil {
			abort(c, errors.Unauthorized("Invalid token").WithCause(err))
			return
		}
		if len(cfg.Roles) > 0 {
			role, _ := claims[ClaimRole].(string)
			if !slices.Contains(cfg.Roles, role) {
				abort(c, errors.Forbidden(""))
				return
			}
		}

		for key, value := range claims {
			c.Set(key, value)
		}
		c.Next()
	}
}

// BearerToken returns the token of the Authorization header. It returns ""
// and true without a header, and false when the header is not a bearer.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", true
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AnyToken accepts a token when one of validators does, trying them in
// order.
func AnyToken(validators ...TokenValidator) TokenValidator {
	return func(ctx context.Context, token string) (map[string]any, error) {
		errs := make([]error, 0, len(validators))
		for _, v := range validators {
			if v == nil {
				continue
			}
			claims, err := v(ctx, token)
			if err == nil {
				return claims, nil
			}
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			return nil, stderrors.New("no token validator configured")
		}
		return nil, stderrors.Join(errs...)
	}
}

type operatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueOperatorToken signs an HS256 operator token for subject with the
// given role.
func IssueOperatorToken(secret []byte, subject, role string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", stderrors.New("operator secret is empty")
	}
	now := time.Now()
	claims := operatorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    OperatorIssuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// OperatorTokens validates tokens minted by IssueOperatorToken with secret.
func OperatorTokens(secret []byte) TokenValidator {
	return func(_ context.Context, token string) (map[string]any, error) {
		if len(secret) == 0 {
			return nil, stderrors.New("operator tokens are disabled")
		}
		var claims operatorClaims
		_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
			return secret, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(OperatorIssuer),
			jwt.WithExpirationRequired(),
		)
		if err != nil {
			return nil, err
		}
		return map[string]any{ClaimSubject: claims.Subject, ClaimRole: claims.Role, ClaimIssuer: claims.Issuer}, nil
	}
}

func abort(c *gin.Context, err *errors.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus, err.ToResponse())
}
