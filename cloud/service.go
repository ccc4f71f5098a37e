package cloud

import (
	"context"
	"maps"
	"sync"

	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/observability"
)

// State is the initialization state of a Service.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
)

// FactorySource returns the provider factories to register, keyed by name.
type FactorySource func() map[string]Factory

// Status is reported by ProviderStatus. Current is the candidate label of
// the active selection; Provider names the provider serving requests, which
// differs from the active one while the fallback is in use.
type Status struct {
	Current       string         `json:"current"`
	Provider      string         `json:"provider,omitempty"`
	UsingFallback bool           `json:"usingFallback"`
	Connected     bool           `json:"connected"`
	State         State          `json:"state"`
	Registry      RegistryStatus `json:"registry"`
	Available     []string       `json:"available"`
}

type initCall struct {
	done chan struct{}
	err  error
}

// Service is the facade the application uses to reach the data backend. It
// selects a provider at startup and delegates every domain call to it.
type Service struct {
	cfg      Config
	source   FactorySource
	registry *Registry
	log      *logger.Logger

	mu         sync.Mutex
	state      State
	current    string
	registered bool
	inflight   *initCall
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMetrics records provider activations and migrations on m.
func WithMetrics(m *observability.ProviderMetrics) ServiceOption {
	return func(s *Service) { s.registry.metrics = m }
}

// NewService creates an uninitialized Service.
func NewService(cfg Config, source FactorySource, log *logger.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = logger.Nop()
	}
	cfg.ApplyDefaults()
	s := &Service{
		cfg:      cfg,
		source:   source,
		registry: NewRegistry(log, nil),
		log:      log.WithComponent("cloud"),
		state:    StateUninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the underlying registry.
func (s *Service) Registry() *Registry { return s.registry }

// State returns the current initialization state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialize registers the provider factories and activates the first
// candidate that initializes. It does nothing once the service is ready;
// concurrent callers wait for the initialization already in progress.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateReady {
		s.mu.Unlock()
		return nil
	}
	if call := s.inflight; call != nil {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &initCall{done: make(chan struct{})}
	s.inflight = call
	s.state = StateInitializing
	register := !s.registered
	s.registered = true
	s.mu.Unlock()

	if register && s.source != nil {
		for name, factory := range s.source() {
			s.registry.Register(name, factory)
		}
	}
	label, err := s.activate(ctx)

	s.mu.Lock()
	if err != nil {
		s.state = StateUninitialized
	} else {
		s.state = StateReady
		s.current = label
	}
	s.inflight = nil
	call.err = err
	s.mu.Unlock()
	close(call.done)
	return err
}

func (s *Service) activate(ctx context.Context) (string, error) {
	candidates := s.cfg.Candidates()
	if len(candidates) == 0 {
		s.log.Error("no provider candidates configured")
		return "", errors.AllProvidersFailed(nil, nil)
	}
	names := make([]string, 0, len(candidates))
	causes := make([]error, 0, len(candidates))
	for i, c := range candidates {
		if _, err := s.registry.SetActive(ctx, c.Provider); err != nil {
			names = append(names, c.Label)
			causes = append(causes, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if i > 0 {
			s.log.Warn("using fallback provider", logger.Fields(
				logger.FieldProvider, c.Label, "failed", names))
		} else {
			s.log.Info("provider ready", logger.Fields(logger.FieldProvider, c.Label))
		}
		if s.cfg.StandbyFallback && i+1 < len(candidates) {
			s.registry.SetFallback(ctx, candidates[i+1].Provider)
		}
		return c.Label, nil
	}
	s.log.Error("all providers failed", logger.Fields("attempted", names))
	return "", errors.AllProvidersFailed(names, causes)
}

// SwitchProvider activates name with credentials, replacing the current
// provider.
func (s *Service) SwitchProvider(ctx context.Context, name string, credentials map[string]string) error {
	if s.State() != StateReady {
		return errors.NoProviderInitialized()
	}
	if _, err := s.registry.Switch(ctx, ProviderConfig{Name: name, Credentials: credentials}); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = s.labelFor(name, credentials)
	s.mu.Unlock()
	return nil
}

// MigrateToProvider copies all data from the current provider into a newly
// initialized provider and then makes it active.
func (s *Service) MigrateToProvider(ctx context.Context, name string, credentials map[string]string) (*MigrationReport, error) {
	current, err := s.provider()
	if err != nil {
		return nil, err
	}
	target, err := s.registry.Instantiate(ctx, ProviderConfig{Name: name, Credentials: credentials})
	if err != nil {
		return nil, err
	}
	report, err := s.registry.Migrate(ctx, current, target)
	if err != nil {
		closeProvider(ctx, target)
		return nil, err
	}
	s.registry.Adopt(ctx, target)
	s.mu.Lock()
	s.current = s.labelFor(name, credentials)
	s.mu.Unlock()
	return report, nil
}

// labelFor returns the label of the configured candidate matching name and
// credentials, or name for a provider chosen at runtime.
func (s *Service) labelFor(name string, credentials map[string]string) string {
	want := credentialsFor(credentials)
	for _, c := range s.cfg.Candidates() {
		if c.Provider.Name == name && maps.Equal(c.Provider.Credentials, want) {
			return c.Label
		}
	}
	return name
}

// ProviderStatus reports the selected provider and its connectivity.
func (s *Service) ProviderStatus() Status {
	s.mu.Lock()
	st := Status{Current: s.current, State: s.state}
	s.mu.Unlock()
	st.Registry = s.registry.Status()
	st.Available = s.registry.Available()
	if p, fallback, err := s.registry.serving(); err == nil {
		st.Provider = p.Name()
		st.UsingFallback = fallback
		st.Connected = p.IsConnected()
	}
	return st
}

func (s *Service) provider() (Provider, error) {
	if s.State() != StateReady {
		return nil, errors.NoProviderInitialized()
	}
	return s.registry.Provider()
}

// Provider returns the provider currently serving requests.
func (s *Service) Provider() (Provider, error) { return s.provider() }

func (s *Service) Auth() (Auth, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	return p.Auth(), nil
}

func (s *Service) Database() (Database, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	return p.Database(), nil
}

func (s *Service) Storage() (Storage, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	return p.Storage(), nil
}

func (s *Service) Salons() (Salons, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	return p.Salons(), nil
}

func (s *Service) Services() (Services, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	return p.Services(), nil
}

func (s *Service) Appointments() (Appointments, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	return p.Appointments(), nil
}

func (s *Service) Reviews() (Reviews, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	return p.Reviews(), nil
}

func (s *Service) News() (News, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	return p.News(), nil
}

func (s *Service) Promotions() (Promotions, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	return p.Promotions(), nil
}

func (s *Service) Admin() (Admin, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	return p.Admin(), nil
}

func (s *Service) Profiles() (Profiles, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	return p.Profiles(), nil
}

// Subscribe forwards to the current provider when it supports change
// subscriptions.
func (s *Service) Subscribe(ctx context.Context, table string, filters Filters, handler func(Change)) (Unsubscribe, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	sub, ok := p.(Subscriber)
	if !ok {
		return nil, errors.CapabilityMissing(p.Name(), "subscribe")
	}
	return sub.Subscribe(ctx, table, filters, handler)
}

// Name implements component.Component.
func (s *Service) Name() string { return "cloud" }

// Start implements component.Component.
func (s *Service) Start(ctx context.Context) error { return s.Initialize(ctx) }

// Stop closes the active and fallback providers and resets the service.
func (s *Service) Stop(ctx context.Context) error {
	err := s.registry.Close(ctx)
	s.mu.Lock()
	s.state = StateUninitialized
	s.current = ""
	s.mu.Unlock()
	return err
}

// Health reports up while the active provider is connected and degraded
// while requests are served by the fallback.
func (s *Service) Health(_ context.Context) observability.Health {
	st := s.ProviderStatus()
	h := observability.Health{Name: s.Name(), Details: map[string]string{"state": string(st.State)}}
	if st.Current != "" {
		h.Details["candidate"] = st.Current
	}
	if st.Provider != "" {
		h.Details["provider"] = st.Provider
	}
	switch {
	case st.State != StateReady:
		h.Status = observability.HealthStatusDown
		h.Message = "not initialized"
	case st.Registry.Active != nil && st.Registry.Active.Connected:
		h.Status = observability.HealthStatusUp
	case st.Connected:
		h.Status = observability.HealthStatusDegraded
		h.Message = "serving from fallback " + st.Registry.Fallback.Name
	default:
		h.Status = observability.HealthStatusDown
		h.Message = "provider disconnected"
		if st.Registry.Active != nil && st.Registry.Active.Message != "" {
			h.Message = st.Registry.Active.Message
		}
	}
	return h
}
