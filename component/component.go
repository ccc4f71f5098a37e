// Package component manages the lifecycle of long-lived process parts such
// as the cloud service and the HTTP server.
package component

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/observability"
)

// Component is a lifecycle-managed part of the process.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) observability.Health
}

// Registry starts components in registration order and stops them in
// reverse order.
type Registry struct {
	mu          sync.Mutex
	components  []Component
	started     map[string]bool
	stopTimeout time.Duration
	log         *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		started:     make(map[string]bool),
		stopTimeout: 10 * time.Second,
		log:         log.WithComponent("lifecycle"),
	}
}

// Register adds c. Names must be unique.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.components {
		if existing.Name() == c.Name() {
			return fmt.Errorf("component %s already registered", c.Name())
		}
	}
	r.components = append(r.components, c)
	return nil
}

// StartAll starts every component. When one fails, the components already
// started are stopped again before the error is returned.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	components := append([]Component(nil), r.components...)
	r.mu.Unlock()

	for _, c := range components {
		start := time.Now()
		if err := c.Start(ctx); err != nil {
			r.log.Error("component start failed", logger.Fields(logger.FieldComponent, c.Name(), logger.FieldError, err))
			_ = r.StopAll(ctx)
			return fmt.Errorf("start %s: %w", c.Name(), err)
		}
		r.mu.Lock()
		r.started[c.Name()] = true
		r.mu.Unlock()
		r.log.Info("component started", logger.Fields(logger.FieldComponent, c.Name(), logger.FieldDuration, time.Since(start).Milliseconds()))
	}
	return nil
}

// StopAll stops started components in reverse registration order.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	components := append([]Component(nil), r.components...)
	r.mu.Unlock()

	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		r.mu.Lock()
		running := r.started[c.Name()]
		delete(r.started, c.Name())
		r.mu.Unlock()
		if !running {
			continue
		}

		stopCtx, cancel := context.WithTimeout(ctx, r.stopTimeout)
		if err := c.Stop(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", c.Name(), err))
			r.log.Error("component stop failed", logger.Fields(logger.FieldComponent, c.Name(), logger.FieldError, err))
		} else {
			r.log.Info("component stopped", logger.Fields(logger.FieldComponent, c.Name()))
		}
		cancel()
	}
	return errors.Join(errs...)
}

// Health aggregates the health of every registered component.
func (r *Registry) Health(ctx context.Context, service, version string) *observability.ServiceHealth {
	r.mu.Lock()
	components := append([]Component(nil), r.components...)
	r.mu.Unlock()

	sh := observability.NewServiceHealth(service, version)
	for _, c := range components {
		sh.Add(c.Health(ctx))
	}
	return sh
}
