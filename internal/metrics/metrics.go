package metrics

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
	resolvedScopes  metric.Int64Counter
}

var current atomic.Pointer[instruments]

// SetupMetrics registers provider globally and creates the instruments recorded by the server.
// Recording before setup is a no-op.
func SetupMetrics(provider metric.MeterProvider, serviceName string) error {
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Number of handled HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create request counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of handled HTTP requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create request histogram: %w", err)
	}

	resolvedScopes, err := meter.Int64Counter("authz.resolved_scopes",
		metric.WithDescription("Number of request contexts resolved per scope"),
		metric.WithUnit("{context}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create scope counter: %w", err)
	}

	current.Store(&instruments{
		requests:        requests,
		requestDuration: requestDuration,
		resolvedScopes:  resolvedScopes,
	})

	return nil
}

// RecordRequest records one finished request. route is the matched route pattern, not the raw path.
func RecordRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	m := current.Load()
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", status),
	)

	m.requests.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordResolvedScope counts a resolved request context by its scope.
func RecordResolvedScope(ctx context.Context, scope string) {
	m := current.Load()
	if m == nil {
		return
	}

	m.resolvedScopes.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}
