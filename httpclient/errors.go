package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/kbukum/glowbook/errors"
)

// Kind classifies a failed backend call.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	// KindUnavailable is a call refused locally by an open circuit breaker.
	KindUnavailable Kind = "unavailable"
	KindAuth        Kind = "auth"
	KindNotFound    Kind = "not_found"
	KindRateLimit   Kind = "rate_limit"
	KindRejected    Kind = "rejected" // any other 4xx, or a request that could not be built
	KindServer      Kind = "server"
)

// Error is a failed call to a hosted backend. StatusCode is 0 when no
// response arrived.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection, KindRateLimit, KindServer:
		return true
	}
	return false
}

func transportError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// statusError classifies a response status. It returns nil for 2xx.
func statusError(status int, body []byte) *Error {
	var kind Kind
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
	case status >= 400 && status < 500:
		kind = KindRejected
	default:
		kind = KindServer
	}
	return &Error{Kind: kind, StatusCode: status, Message: http.StatusText(status), Body: body}
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNotFound
}

// IsRetryable reports whether err is a backend failure worth retrying.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

// ToAppError converts a transport error into the application error taxonomy.
// backend names the hosted service in messages and details; resource and id
// describe what was requested for not-found responses.
func ToAppError(backend, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.ExternalServiceError(backend, err)
	}
	msg := bodyMessage(e.Body)
	switch {
	case e.Kind == KindTimeout:
		return apperrors.Timeout(backend).WithCause(e)
	case e.Kind == KindConnection, e.Kind == KindUnavailable:
		return apperrors.ConnectionFailed(backend).WithCause(e)
	case e.StatusCode == http.StatusForbidden:
		return apperrors.Forbidden(msg).WithCause(e)
	case e.Kind == KindAuth:
		return apperrors.Unauthorized(msg).WithCause(e)
	case e.Kind == KindNotFound:
		return apperrors.NotFound(resource, id).WithCause(e)
	case e.Kind == KindRateLimit:
		return apperrors.New(apperrors.ErrCodeRateLimited, backend+" is rate limiting requests", http.StatusTooManyRequests).WithCause(e)
	case e.StatusCode == http.StatusConflict:
		return apperrors.Conflict(msg).WithCause(e)
	case e.Kind == KindRejected:
		if msg == "" {
			msg = e.Message
		}
		return apperrors.InvalidInput("", msg).WithCause(e)
	default:
		return apperrors.ExternalServiceError(backend, e)
	}
}

// bodyMessage pulls a short message out of an error body. Supabase uses
// "msg" or "message", OAuth endpoints "error_description", Google APIs
// {"error": {"message": ...}}.
func bodyMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var m map[string]any
	if err := jsonUnmarshal(body, &m); err == nil {
		for _, k := range []string{"message", "msg", "error_description", "error"} {
			switch v := m[k].(type) {
			case string:
				return v
			case map[string]any:
				if msg, ok := v["message"].(string); ok {
					return msg
				}
			}
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
