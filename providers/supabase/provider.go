// Package supabase implements the cloud provider contract on Supabase:
// PostgREST for tables, GoTrue for auth, Supabase Storage for files and
// Realtime for change subscriptions.
package supabase

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
)

const backend = "supabase"

type credentials struct {
	url        string
	anonKey    string
	serviceKey string
	schema     string
}

func parseCredentials(c map[string]string) (credentials, error) {
	cr := credentials{
		url:        strings.TrimRight(strings.TrimSpace(c["url"]), "/"),
		anonKey:    strings.TrimSpace(c["anon_key"]),
		serviceKey: strings.TrimSpace(c["service_key"]),
		schema:     c["schema"],
	}
	if cr.url == "" {
		return cr, errors.MissingField("url")
	}
	if cr.anonKey == "" {
		return cr, errors.MissingField("anon_key")
	}
	if u, err := url.Parse(cr.url); err != nil || u.Host == "" {
		return cr, errors.InvalidInput("url", "not an absolute URL")
	}
	if cr.schema == "" {
		cr.schema = "public"
	}
	return cr, nil
}

// Provider talks to one Supabase project.
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
	storage *storage
	subs    *subscriptions
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

// Factory returns a cloud.Factory creating supabase providers.
func Factory(log *logger.Logger, metrics *observability.ProviderMetrics) cloud.Factory {
	return func() (cloud.Provider, error) { return New(log, metrics), nil }
}

func (p *Provider) Name() string { return cloud.NameSupabase }

// Initialize validates the credentials and reads one salon row to check access.
func (p *Provider) Initialize(ctx context.Context, credentials map[string]string) error {
	creds, err := parseCredentials(credentials)
	if err != nil {
		return err
	}
	client, err := httpclient.New(httpclient.Config{
		Name:    backend,
		BaseURL: creds.url,
		Headers: map[string]string{"apikey": creds.anonKey},
		Auth:    httpclient.TokenAuth(p.token),
		Retry:   httpclient.DefaultRetry(),
		Breaker: httpclient.DefaultBreaker(backend),
		Metrics: p.metrics,
	})
	if err != nil {
		return errors.Internal(err)
	}

	p.mu.Lock()
	p.creds = creds
	p.client = client
	p.mu.Unlock()

	check := httpclient.Request{
		Method:  http.MethodGet,
		Path:    restPath(model.TableSalons),
		Query:   url.Values{"select": {"id"}, "limit": {"1"}},
		Headers: profileHeaders(creds.schema, false),
	}
	if _, err := client.Do(ctx, check); err != nil {
		client.Close()
		return httpclient.ToAppError(backend, model.TableSalons, "", err)
	}

	db := &database{p: p}
	p.mu.Lock()
	p.db = db
	p.store = cloud.Instrument(db, backend, p.log)
	p.auth = &auth{p: p}
	p.storage = &storage{p: p}
	p.subs = newSubscriptions(p)
	p.Set = domain.New(p.store, p.log)
	p.initialized = true
	p.mu.Unlock()
	p.log.Info("connected", logger.Fields("url", creds.url))
	return nil
}

// IsConnected reports whether the provider is initialized and its circuit
// breaker is closed.
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
		return cloud.ConnectionStatus{Connected: true, Message: "connected to " + p.creds.url}
	}
}

func (p *Provider) Auth() cloud.Auth         { return p.auth }
func (p *Provider) Database() cloud.Database { return p.store }
func (p *Provider) Storage() cloud.Storage   { return p.storage }

// Subscribe streams row changes of table over Supabase Realtime.
func (p *Provider) Subscribe(ctx context.Context, table string, filters cloud.Filters, handler func(cloud.Change)) (cloud.Unsubscribe, error) {
	if p.subs == nil {
		return nil, errors.NoProviderInitialized()
	}
	return p.subs.subscribe(ctx, table, filters, handler)
}

// Close stops subscriptions and releases idle connections.
func (p *Provider) Close(context.Context) error {
	p.mu.Lock()
	client, subs := p.client, p.subs
	p.initialized = false
	p.mu.Unlock()
	if subs != nil {
		subs.closeAll()
	}
	if client != nil {
		client.Close()
	}
	return nil
}

// token returns the bearer for the next request: the caller's access
// token, else the service key, else the anon key.
func (p *Provider) token(ctx context.Context) (string, error) {
	if s := p.currentSession(ctx); s != nil && s.AccessToken != "" {
		return s.AccessToken, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.creds.serviceKey != "" {
		return p.creds.serviceKey, nil
	}
	return p.creds.anonKey, nil
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

// currentSession returns the request's session when ctx is request scoped,
// else the session signed in on the provider itself.
func (p *Provider) currentSession(ctx context.Context) *model.Session {
	if token, scoped := cloud.RequestToken(ctx); scoped {
		if token == "" {
			return nil
		}
		return &model.Session{AccessToken: token}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

func (p *Provider) api() *httpclient.Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}

func restPath(table string) string { return "/rest/v1/" + url.PathEscape(table) }

// profileHeaders selects the schema for reads or writes.
func profileHeaders(schema string, write bool) map[string]string {
	if schema == "public" {
		return nil
	}
	if write {
		return map[string]string{"Content-Profile": schema}
	}
	return map[string]string{"Accept-Profile": schema}
}
