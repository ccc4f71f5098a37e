// Package httpclient is the HTTP transport shared by the hosted-backend
// providers: JSON encoding, authentication, retries, a circuit breaker, one
// span per request and typed error classification.
package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/glowbook/observability"
	"github.com/kbukum/glowbook/resilience"
)

const defaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// Name identifies the backend in spans, metrics and errors.
	Name    string            `yaml:"name" mapstructure:"name"`
	BaseURL string            `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// Auth is applied to every request unless the request carries its own.
	Auth *AuthConfig `yaml:"-" mapstructure:"-"`
	// Retry enables retries of retryable failures. Nil disables retry.
	Retry *resilience.RetryConfig `yaml:"-" mapstructure:"-"`
	// Breaker enables a circuit breaker. Nil disables it.
	Breaker *resilience.BreakerConfig `yaml:"-" mapstructure:"-"`

	Metrics        *observability.ProviderMetrics `yaml:"-" mapstructure:"-"`
	TracerProvider trace.TracerProvider           `yaml:"-" mapstructure:"-"`
	// HTTPClient replaces the default client, e.g. an oauth2 client.
	HTTPClient *http.Client `yaml:"-" mapstructure:"-"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Name == "" {
		c.Name = "http"
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	return nil
}

// DefaultRetry returns the retry policy used by the providers.
func DefaultRetry() *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2,
		Jitter:         0.2,
		RetryIf:        IsRetryable,
	}
}

// DefaultBreaker returns the circuit breaker policy used by the providers.
// Only retryable failures (5xx, timeouts, connection errors) count.
func DefaultBreaker(name string) *resilience.BreakerConfig {
	return &resilience.BreakerConfig{
		Name:        name,
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
		Counts:      IsRetryable,
	}
}
