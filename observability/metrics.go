package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ProviderMetrics are the instruments recorded by the provider registry and
// the backend HTTP clients.
type ProviderMetrics struct {
	activations        metric.Int64Counter
	activationFailures metric.Int64Counter
	migratedRecords    metric.Int64Counter
	backendDuration    metric.Float64Histogram
}

// NewProviderMetrics creates the instruments on meter. A nil meter uses Meter().
func NewProviderMetrics(meter metric.Meter) (*ProviderMetrics, error) {
	if meter == nil {
		meter = Meter()
	}
	activations, err := meter.Int64Counter("provider.activations",
		metric.WithDescription("Providers made active or fallback"))
	if err != nil {
		return nil, fmt.Errorf("creating provider.activations counter: %w", err)
	}
	failures, err := meter.Int64Counter("provider.activation_failures",
		metric.WithDescription("Provider initializations that failed"))
	if err != nil {
		return nil, fmt.Errorf("creating provider.activation_failures counter: %w", err)
	}
	migrated, err := meter.Int64Counter("provider.migrated_records",
		metric.WithDescription("Records handled by provider migrations, by outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating provider.migrated_records counter: %w", err)
	}
	duration, err := meter.Float64Histogram("backend.request.duration",
		metric.WithDescription("Duration of requests to hosted backends"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating backend.request.duration histogram: %w", err)
	}
	return &ProviderMetrics{
		activations:        activations,
		activationFailures: failures,
		migratedRecords:    migrated,
		backendDuration:    duration,
	}, nil
}

// Activation records a provider activation attempt. role is "active" or "fallback".
func (m *ProviderMetrics) Activation(ctx context.Context, provider, role string, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(AttrProvider.String(provider), attribute.String("role", role))
	if err != nil {
		m.activationFailures.Add(ctx, 1, attrs)
		return
	}
	m.activations.Add(ctx, 1, attrs)
}

// Migrated records n migrated records for table with the given outcome
// ("imported", "skipped" or "failed").
func (m *ProviderMetrics) Migrated(ctx context.Context, table, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.migratedRecords.Add(ctx, int64(n), metric.WithAttributes(AttrTable.String(table), AttrOutcome.String(outcome)))
}

// BackendRequest records the duration of one backend call.
func (m *ProviderMetrics) BackendRequest(ctx context.Context, backend string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.backendDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		AttrBackend.String(backend),
		attribute.Int("http.status_code", status),
	))
}
