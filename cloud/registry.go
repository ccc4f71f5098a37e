package cloud

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"

	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/observability"
)

// ProviderState describes an active or fallback provider.
type ProviderState struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Message   string `json:"message,omitempty"`
}

// RegistryStatus is a snapshot of the registry's selections.
type RegistryStatus struct {
	Active   *ProviderState `json:"active,omitempty"`
	Fallback *ProviderState `json:"fallback,omitempty"`
}

// Registry holds provider factories and the active and fallback providers.
// Callers keep the provider reference they obtained; a switch only affects
// later lookups.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	active    Provider
	fallback  Provider

	log     *logger.Logger
	metrics *observability.ProviderMetrics
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(log *logger.Logger, metrics *observability.ProviderMetrics) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		factories: make(map[string]Factory),
		log:       log.WithComponent("registry"),
		metrics:   metrics,
	}
}

// Register stores factory under name, replacing any earlier registration.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	r.factories[name] = factory
	r.mu.Unlock()
	r.log.Debug("provider registered", logger.Fields(logger.FieldProvider, name))
}

// Available returns the registered names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instantiate creates and initializes a provider without activating it.
func (r *Registry) Instantiate(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.ProviderNotRegistered(cfg.Name)
	}
	p, err := factory()
	if err != nil {
		return nil, err
	}
	if err := p.Initialize(ctx, cfg.Credentials); err != nil {
		closeProvider(ctx, p)
		return nil, err
	}
	return p, nil
}

// SetActive instantiates and initializes cfg.Name and makes it the active
// provider. On any failure the previous active provider stays in place.
func (r *Registry) SetActive(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	p, err := r.Instantiate(ctx, cfg)
	r.metrics.Activation(ctx, cfg.Name, "active", err)
	if err != nil {
		r.log.Warn("provider activation failed", logger.Fields(
			logger.FieldProvider, cfg.Name, logger.FieldError, err))
		return nil, err
	}
	r.Adopt(ctx, p)
	return p, nil
}

// Switch replaces the active provider. It behaves like SetActive.
func (r *Registry) Switch(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	return r.SetActive(ctx, cfg)
}

// SetFallback installs the provider used while the active one is
// disconnected. Failures are logged and otherwise ignored.
func (r *Registry) SetFallback(ctx context.Context, cfg ProviderConfig) {
	p, err := r.Instantiate(ctx, cfg)
	r.metrics.Activation(ctx, cfg.Name, "fallback", err)
	if err != nil {
		r.log.Warn("fallback provider unavailable", logger.Fields(
			logger.FieldProvider, cfg.Name, logger.FieldError, err))
		return
	}
	r.mu.Lock()
	prev := r.fallback
	r.fallback = p
	r.mu.Unlock()
	if prev != nil && prev != p {
		closeProvider(ctx, prev)
	}
	r.log.Info("fallback provider set", logger.Fields(logger.FieldProvider, p.Name()))
}

// Adopt makes an already initialized provider active. The replaced provider
// is closed unless it is also the fallback.
func (r *Registry) Adopt(ctx context.Context, p Provider) {
	r.mu.Lock()
	prev := r.active
	r.active = p
	fallback := r.fallback
	r.mu.Unlock()
	if prev != nil && prev != p && prev != fallback {
		closeProvider(ctx, prev)
	}
	r.log.Info("active provider set", logger.Fields(logger.FieldProvider, p.Name()))
}

// Provider returns the active provider, or the fallback while the active one
// reports itself disconnected.
func (r *Registry) Provider() (Provider, error) {
	p, _, err := r.serving()
	return p, err
}

// serving returns the provider requests go to and whether it is the
// fallback.
func (r *Registry) serving() (Provider, bool, error) {
	r.mu.RLock()
	active, fallback := r.active, r.fallback
	r.mu.RUnlock()
	switch {
	case active == nil && fallback == nil:
		return nil, false, errors.NoActiveProvider()
	case active == nil:
		return fallback, true, nil
	case fallback != nil && fallback != active && !active.IsConnected():
		return fallback, true, nil
	default:
		return active, false, nil
	}
}

// Status reports the active and fallback providers.
func (r *Registry) Status() RegistryStatus {
	r.mu.RLock()
	active, fallback := r.active, r.fallback
	r.mu.RUnlock()
	return RegistryStatus{Active: stateOf(active), Fallback: stateOf(fallback)}
}

// Close closes the active and fallback providers and clears them.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	providers := []Provider{r.active}
	if r.fallback != nil && r.fallback != r.active {
		providers = append(providers, r.fallback)
	}
	r.active, r.fallback = nil, nil
	r.mu.Unlock()
	var errs []error
	for _, p := range providers {
		if c, ok := p.(Closer); ok && p != nil {
			if err := c.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderrors.Join(errs...)
}

func stateOf(p Provider) *ProviderState {
	if p == nil {
		return nil
	}
	st := p.ConnectionStatus()
	return &ProviderState{Name: p.Name(), Connected: st.Connected, Message: st.Message}
}

func closeProvider(ctx context.Context, p Provider) {
	if c, ok := p.(Closer); ok {
		_ = c.Close(ctx)
	}
}
