// Package firebase implements the cloud provider contract on Firebase:
// Firestore documents, Identity Toolkit accounts and Firebase Storage, all
// through their REST APIs.
package firebase

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/domain"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/httpclient"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/observability"
)

const (
	backend = "firebase"

	defaultFirestoreURL = "https://firestore.googleapis.com/v1"
	defaultIdentityURL  = "https://identitytoolkit.googleapis.com/v1"
	defaultStorageURL   = "https://firebasestorage.googleapis.com/v0"

	requestTimeout = 30 * time.Second
)

var oauthScopes = []string{
	"https://www.googleapis.com/auth/datastore",
	"https://www.googleapis.com/auth/devstorage.read_write",
}

type credentials struct {
	projectID      string
	apiKey         string
	serviceAccount string
	accessToken    string
	storageBucket  string
	firestoreURL   string
	identityURL    string
	storageURL     string
}

func parseCredentials(c map[string]string) (credentials, error) {
	cr := credentials{
		projectID:      strings.TrimSpace(c["project_id"]),
		apiKey:         strings.TrimSpace(c["api_key"]),
		serviceAccount: c["service_account_json"],
		accessToken:    c["access_token"],
		storageBucket:  c["storage_bucket"],
		firestoreURL:   strings.TrimRight(c["firestore_url"], "/"),
		identityURL:    strings.TrimRight(c["identity_url"], "/"),
		storageURL:     strings.TrimRight(c["storage_url"], "/"),
	}
	if cr.projectID == "" {
		return cr, errors.MissingField("project_id")
	}
	if cr.apiKey == "" {
		return cr, errors.MissingField("api_key")
	}
	if cr.storageBucket == "" {
		cr.storageBucket = cr.projectID + ".appspot.com"
	}
	if cr.firestoreURL == "" {
		cr.firestoreURL = defaultFirestoreURL
	}
	if cr.identityURL == "" {
		cr.identityURL = defaultIdentityURL
	}
	if cr.storageURL == "" {
		cr.storageURL = defaultStorageURL
	}
	return cr, nil
}

// Provider talks to one Firebase project.
type Provider struct {
	*domain.Set

	log     *logger.Logger
	metrics *observability.ProviderMetrics

	mu          sync.RWMutex
	creds       credentials
	api         *httpclient.Client
	identity    *httpclient.Client
	initialized bool
	session     *model.Session

	db      *database
	store   cloud.Database
	auth    *auth
	storage *storage
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

// Factory returns a cloud.Factory creating firebase providers.
func Factory(log *logger.Logger, metrics *observability.ProviderMetrics) cloud.Factory {
	return func() (cloud.Provider, error) { return New(log, metrics), nil }
}

func (p *Provider) Name() string { return cloud.NameFirebase }

// Initialize builds the clients and reads one salon to check access.
func (p *Provider) Initialize(ctx context.Context, credentials map[string]string) error {
	creds, err := parseCredentials(credentials)
	if err != nil {
		return err
	}
	hc, err := oauthClient(ctx, creds)
	if err != nil {
		return err
	}

	apiKey := httpclient.APIKeyQuery("key", creds.apiKey)
	apiAuth := apiKey
	if hc == nil {
		// Without service credentials requests run as the signed-in user.
		apiAuth = httpclient.MultiAuth(apiKey, httpclient.TokenAuth(p.idToken))
	}
	api, err := httpclient.New(httpclient.Config{
		Name:       backend,
		BaseURL:    documentsURL(creds),
		Auth:       apiAuth,
		Retry:      httpclient.DefaultRetry(),
		Breaker:    httpclient.DefaultBreaker(backend),
		Metrics:    p.metrics,
		HTTPClient: hc,
	})
	if err != nil {
		return errors.Internal(err)
	}
	identity, err := httpclient.New(httpclient.Config{
		Name:    backend + "-auth",
		BaseURL: creds.identityURL,
		Auth:    apiKey,
		Retry:   httpclient.DefaultRetry(),
		Metrics: p.metrics,
	})
	if err != nil {
		return errors.Internal(err)
	}

	check := httpclient.Request{
		Method: http.MethodGet,
		Path:   "/" + model.TableSalons,
		Query:  url.Values{"pageSize": {"1"}},
	}
	if _, err := api.Do(ctx, check); err != nil {
		api.Close()
		return httpclient.ToAppError(backend, model.TableSalons, "", err)
	}

	p.mu.Lock()
	p.creds = creds
	p.api = api
	p.identity = identity
	p.db = &database{p: p}
	p.store = cloud.Instrument(p.db, backend, p.log)
	p.auth = &auth{p: p}
	p.storage = &storage{p: p}
	p.Set = domain.New(p.store, p.log)
	p.initialized = true
	p.mu.Unlock()
	p.log.Info("connected", logger.Fields("project", creds.projectID))
	return nil
}

// oauthClient returns an HTTP client authorized with the service account
// or static access token, or nil when neither is configured.
func oauthClient(ctx context.Context, creds credentials) (*http.Client, error) {
	var src oauth2.TokenSource
	switch {
	case creds.serviceAccount != "":
		cfg, err := google.JWTConfigFromJSON([]byte(creds.serviceAccount), oauthScopes...)
		if err != nil {
			return nil, errors.InvalidInput("service_account_json", err.Error())
		}
		src = cfg.TokenSource(context.WithoutCancel(ctx))
	case creds.accessToken != "":
		src = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.accessToken, TokenType: "Bearer"})
	default:
		return nil, nil
	}
	hc := oauth2.NewClient(context.WithoutCancel(ctx), src)
	hc.Timeout = requestTimeout
	return hc, nil
}

func documentsURL(creds credentials) string {
	return creds.firestoreURL + "/projects/" + url.PathEscape(creds.projectID) + "/databases/(default)/documents"
}

func (p *Provider) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized && p.api.Available()
}

func (p *Provider) ConnectionStatus() cloud.ConnectionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	switch {
	case !p.initialized:
		return cloud.ConnectionStatus{Message: "not initialized"}
	case !p.api.Available():
		return cloud.ConnectionStatus{Message: "circuit open after repeated failures"}
	default:
		return cloud.ConnectionStatus{Connected: true, Message: "connected to project " + p.creds.projectID}
	}
}

func (p *Provider) Auth() cloud.Auth         { return p.auth }
func (p *Provider) Database() cloud.Database { return p.store }
func (p *Provider) Storage() cloud.Storage   { return p.storage }

func (p *Provider) Close(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialized = false
	if p.api != nil {
		p.api.Close()
	}
	if p.identity != nil {
		p.identity.Close()
	}
	return nil
}

func (p *Provider) idToken(ctx context.Context) (string, error) {
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

func (p *Provider) client() *httpclient.Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.api
}
