// Package restapi implements the cloud provider contract on a custom
// HTTP+JSON backend, with files kept in S3 or an S3-compatible store.
package restapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/domain"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/httpclient"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/observability"
	"github.com/kbukum/glowbook/storage"
	"github.com/kbukum/glowbook/storage/s3"
)

const (
	backend = "rest"

	apiKeyHeader = "X-API-Key"
)

type credentials struct {
	baseURL string
	apiKey  string
	s3      s3.Config
}

func parseCredentials(c map[string]string) (credentials, error) {
	cr := credentials{
		baseURL: strings.TrimRight(strings.TrimSpace(c["base_url"]), "/"),
		apiKey:  strings.TrimSpace(c["api_key"]),
		s3: s3.Config{
			Region:    c["s3_region"],
			Endpoint:  c["s3_endpoint"],
			AccessKey: c["s3_access_key"],
			SecretKey: c["s3_secret_key"],
			PublicURL: c["s3_public_url"],
		},
	}
	if cr.baseURL == "" {
		return cr, errors.MissingField("base_url")
	}
	if cr.apiKey == "" {
		return cr, errors.MissingField("api_key")
	}
	if u, err := url.Parse(cr.baseURL); err != nil || u.Host == "" {
		return cr, errors.InvalidInput("base_url", "not an absolute URL")
	}
	return cr, nil
}

// Provider talks to one deployment of the backend API.
type Provider struct {
	*domain.Set

	log     *logger.Logger
	metrics *observability.ProviderMetrics

	mu          sync.RWMutex
	creds       credentials
	client      *httpclient.Client
	initialized bool
	session     *model.Session

	db      *database
	store   cloud.Database
	auth    *auth
	storage *storage.Adapter
}

// New creates an uninitialized provider. metrics may be nil.
func New(log *logger.Logger, metrics *observability.ProviderMetrics) *Provider {
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{
		log:     log.WithComponent("provider").WithFields(logger.Fields(logger.FieldProvider, backend)),
		metrics: metrics,
	}
}

// Factory returns a cloud.Factory creating rest providers.
func Factory(log *logger.Logger, metrics *observability.ProviderMetrics) cloud.Factory {
	return func() (cloud.Provider, error) { return New(log, metrics), nil }
}

func (p *Provider) Name() string { return cloud.NameREST }

// Initialize builds the API and S3 clients and calls GET /health.
func (p *Provider) Initialize(ctx context.Context, credentials map[string]string) error {
	creds, err := parseCredentials(credentials)
	if err != nil {
		return err
	}
	client, err := httpclient.New(httpclient.Config{
		Name:    backend,
		BaseURL: creds.baseURL,
		Auth:    httpclient.MultiAuth(httpclient.APIKeyHeader(apiKeyHeader, creds.apiKey), httpclient.TokenAuth(p.token)),
		Retry:   httpclient.DefaultRetry(),
		Breaker: httpclient.DefaultBreaker(backend),
		Metrics: p.metrics,
	})
	if err != nil {
		return errors.Internal(err)
	}
	if _, err := client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"}); err != nil {
		client.Close()
		return httpclient.ToAppError(backend, "health", "", err)
	}

	objects, err := s3.NewStore(ctx, creds.s3)
	if err != nil {
		client.Close()
		return errors.ConnectionFailed("s3").WithCause(err)
	}

	db := &database{p: p}
	p.mu.Lock()
	p.creds = creds
	p.client = client
	p.db = db
	p.store = cloud.Instrument(db, backend, p.log)
	p.auth = &auth{p: p}
	p.storage = storage.NewAdapter(backend, objects, p.log)
	p.Set = domain.New(p.store, p.log)
	p.initialized = true
	p.mu.Unlock()
	p.log.Info("connected", logger.Fields("url", creds.baseURL))
	return nil
}

func (p *Provider) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized && p.client.Available()
}

func (p *Provider) ConnectionStatus() cloud.ConnectionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	switch {
	case !p.initialized:
		return cloud.ConnectionStatus{Message: "not initialized"}
	case !p.client.Available():
		return cloud.ConnectionStatus{Message: "circuit open after repeated failures"}
	default:
		return cloud.ConnectionStatus{Connected: true, Message: "connected to " + p.creds.baseURL}
	}
}

func (p *Provider) Auth() cloud.Auth         { return p.auth }
func (p *Provider) Database() cloud.Database { return p.store }
func (p *Provider) Storage() cloud.Storage   { return p.storage }

func (p *Provider) Close(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialized = false
	if p.client != nil {
		p.client.Close()
	}
	return nil
}

// token returns the caller's bearer: the request's token when ctx is
// request scoped, else the session signed in on the provider.
func (p *Provider) token(ctx context.Context) (string, error) {
	if token, scoped := cloud.RequestToken(ctx); scoped {
		return token, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.session == nil {
		return "", nil
	}
	return p.session.AccessToken, nil
}

func (p *Provider) setSession(ctx context.Context, s *model.Session) {
	var token string
	if s != nil {
		token = s.AccessToken
	}
	if cloud.BindRequestToken(ctx, token) {
		return
	}
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()
}

func (p *Provider) api() *httpclient.Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}
