package server

import (
	"context"

	"github.com/kbukum/glowbook/component"
	"github.com/kbukum/glowbook/observability"
)

const componentName = "http-server"

var _ component.Component = (*Server)(nil)

// Name implements component.Component.
func (s *Server) Name() string { return componentName }

// Health reports up while the listener is bound.
func (s *Server) Health(_ context.Context) observability.Health {
	h := observability.Health{
		Name:    componentName,
		Details: map[string]string{"addr": s.Addr()},
	}
	if s.serving() {
		h.Status = observability.HealthStatusUp
	} else {
		h.Status = observability.HealthStatusDown
		h.Message = "HTTP server not serving"
	}
	return h
}
