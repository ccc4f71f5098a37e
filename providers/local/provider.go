// Package local implements the cloud provider contract on embedded
// infrastructure: records in sqlite or postgres through gorm, accounts with
// bcrypt and HS256 tokens, files on disk and an optional Redis change feed.
// It is the last-resort provider when no hosted backend is reachable.
package local

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/database"
	"github.com/kbukum/glowbook/domain"
	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/model"
	"github.com/kbukum/glowbook/observability"
	"github.com/kbukum/glowbook/redis"
	"github.com/kbukum/glowbook/storage"
	localstore "github.com/kbukum/glowbook/storage/local"
)

const (
	backend = "local"

	defaultTokenTTL = 24 * time.Hour
)

type credentials struct {
	dsn           string
	storagePath   string
	publicBaseURL string
	jwtSecret     []byte
	tokenTTL      time.Duration
	redisAddr     string
	redisPassword string
	dbLogLevel    string
}

func parseCredentials(c map[string]string) (credentials, error) {
	cr := credentials{
		dsn:           strings.TrimSpace(c["dsn"]),
		storagePath:   c["storage_path"],
		publicBaseURL: c["public_base_url"],
		jwtSecret:     []byte(c["jwt_secret"]),
		tokenTTL:      defaultTokenTTL,
		redisAddr:     c["redis_addr"],
		redisPassword: c["redis_password"],
		dbLogLevel:    c["db_log_level"],
	}
	if cr.dsn == "" {
		return cr, errors.MissingField("dsn")
	}
	if ttl := c["token_ttl"]; ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil || d <= 0 {
			return cr, errors.InvalidInput("token_ttl", "not a positive duration")
		}
		cr.tokenTTL = d
	}
	return cr, nil
}

// Provider runs the whole backend in-process.
type Provider struct {
	*domain.Set

	log     *logger.Logger
	metrics *observability.ProviderMetrics
	now     func() time.Time

	mu          sync.RWMutex
	creds       credentials
	db          *database.DB
	initialized bool
	session     *model.Session

	docs    *documents
	store   cloud.Database
	auth    *auth
	storage *storage.Adapter
	feed    feed
}

// Option configures a Provider.
type Option func(*Provider)

// WithClock replaces time.Now for token issuing and record timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// New creates an uninitialized provider. metrics may be nil.
func New(log *logger.Logger, metrics *observability.ProviderMetrics, opts ...Option) *Provider {
	if log == nil {
		log = logger.Nop()
	}
	p := &Provider{
		log:     log.WithComponent("provider").WithFields(logger.Fields(logger.FieldProvider, backend)),
		metrics: metrics,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Factory returns a cloud.Factory creating local providers.
func Factory(log *logger.Logger, metrics *observability.ProviderMetrics) cloud.Factory {
	return func() (cloud.Provider, error) { return New(log, metrics), nil }
}

func (p *Provider) Name() string { return cloud.NameLocal }

// Initialize opens the database, the file store and the change feed.
func (p *Provider) Initialize(ctx context.Context, credentials map[string]string) error {
	creds, err := parseCredentials(credentials)
	if err != nil {
		return err
	}
	if len(creds.jwtSecret) == 0 {
		creds.jwtSecret = randomSecret()
		p.log.Warn("no jwt_secret configured, sessions end on restart")
	}

	db, err := database.Open(ctx, database.Config{DSN: creds.dsn, LogLevel: creds.dbLogLevel}, p.log, &document{}, &account{})
	if err != nil {
		return errors.ConnectionFailed("local database").WithCause(err)
	}
	files, err := localstore.NewStore(localstore.Config{BasePath: creds.storagePath, PublicBaseURL: creds.publicBaseURL})
	if err != nil {
		_ = db.Close()
		return errors.Internal(err)
	}
	var f feed = newMemFeed(p.log)
	if creds.redisAddr != "" {
		client, err := redis.New(ctx, redis.Config{Addr: creds.redisAddr, Password: creds.redisPassword}, p.log)
		if err != nil {
			_ = db.Close()
			return errors.ConnectionFailed("redis").WithCause(err)
		}
		f = newRedisFeed(client, p.log)
	}

	docs := &documents{p: p, db: db, feed: f}
	p.mu.Lock()
	p.creds = creds
	p.db = db
	p.docs = docs
	p.store = cloud.Instrument(docs, backend, p.log)
	p.feed = f
	p.auth = &auth{p: p, db: db}
	p.storage = storage.NewAdapter(backend, files, p.log)
	p.Set = domain.New(p.store, p.log, domain.WithClock(p.now))
	p.initialized = true
	p.mu.Unlock()
	p.log.Info("local backend ready", logger.Fields("driver", db.Driver(), "storage", files.BasePath(), "redis", creds.redisAddr != ""))
	return nil
}

func randomSecret() []byte {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return []byte(hex.EncodeToString(b))
}

// IsConnected pings the database.
func (p *Provider) IsConnected() bool {
	p.mu.RLock()
	db, ok := p.db, p.initialized
	p.mu.RUnlock()
	if !ok {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return db.Ping(ctx) == nil
}

func (p *Provider) ConnectionStatus() cloud.ConnectionStatus {
	p.mu.RLock()
	ok := p.initialized
	p.mu.RUnlock()
	if !ok {
		return cloud.ConnectionStatus{Message: "not initialized"}
	}
	if !p.IsConnected() {
		return cloud.ConnectionStatus{Message: "database unreachable"}
	}
	return cloud.ConnectionStatus{Connected: true, Message: "local " + p.db.Driver() + " database"}
}

func (p *Provider) Auth() cloud.Auth         { return p.auth }
func (p *Provider) Database() cloud.Database { return p.store }
func (p *Provider) Storage() cloud.Storage   { return p.storage }

// Subscribe delivers changes of table whose record matches every filter.
func (p *Provider) Subscribe(ctx context.Context, table string, filters cloud.Filters, handler func(cloud.Change)) (cloud.Unsubscribe, error) {
	p.mu.RLock()
	f := p.feed
	p.mu.RUnlock()
	if f == nil {
		return nil, errors.NoProviderInitialized()
	}
	return f.subscribe(ctx, table, func(c cloud.Change) {
		rec := c.Record
		if c.Type == cloud.ChangeDelete {
			rec = c.Old
		}
		if matches(rec, filters) {
			handler(c)
		}
	})
}

// Close stops the change feed and closes the database.
func (p *Provider) Close(context.Context) error {
	p.mu.Lock()
	db, f := p.db, p.feed
	p.initialized = false
	p.db, p.feed = nil, nil
	p.mu.Unlock()
	var errs []error
	if f != nil {
		errs = append(errs, f.close())
	}
	if db != nil {
		errs = append(errs, db.Close())
	}
	return stderrors.Join(errs...)
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
