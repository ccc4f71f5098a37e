package component

import (
	"context"
	"errors"
	"testing"

	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/observability"
)

type stubComponent struct {
	name     string
	startErr error
	events   *[]string
	status   observability.HealthStatus
}

func (s *stubComponent) Name() string { return s.name }

func (s *stubComponent) Start(context.Context) error {
	*s.events = append(*s.events, "start:"+s.name)
	return s.startErr
}

func (s *stubComponent) Stop(context.Context) error {
	*s.events = append(*s.events, "stop:"+s.name)
	return nil
}

func (s *stubComponent) Health(context.Context) observability.Health {
	status := s.status
	if status == "" {
		status = observability.HealthStatusUp
	}
	return observability.Health{Name: s.name, Status: status}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStartStopOrder(t *testing.T) {
	var events []string
	r := NewRegistry(logger.Nop())
	_ = r.Register(&stubComponent{name: "cloud", events: &events})
	_ = r.Register(&stubComponent{name: "http", events: &events})

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{"start:cloud", "start:http", "stop:http", "stop:cloud"}
	if !equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestStartFailureStopsStarted(t *testing.T) {
	var events []string
	r := NewRegistry(logger.Nop())
	_ = r.Register(&stubComponent{name: "cloud", events: &events})
	_ = r.Register(&stubComponent{name: "http", events: &events, startErr: errors.New("port in use")})

	if err := r.StartAll(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	want := []string{"start:cloud", "start:http", "stop:cloud"}
	if !equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	var events []string
	r := NewRegistry(logger.Nop())
	if err := r.Register(&stubComponent{name: "cloud", events: &events}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&stubComponent{name: "cloud", events: &events}); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestHealthAggregation(t *testing.T) {
	var events []string
	r := NewRegistry(logger.Nop())
	_ = r.Register(&stubComponent{name: "cloud", events: &events, status: observability.HealthStatusDegraded})
	_ = r.Register(&stubComponent{name: "http", events: &events})

	sh := r.Health(context.Background(), "glowbook", "dev")
	if sh.Status != observability.HealthStatusDegraded || len(sh.Components) != 2 {
		t.Errorf("health = %+v", sh)
	}
}
