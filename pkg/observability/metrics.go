package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics records the gateway's operational signals. All methods are nil-safe
// so call sites never need to guard.
type Metrics interface {
	RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration, size int)
	RecordRoutingDecision(ctx context.Context, agent string, declined bool, confidence float64)
	RecordTransportCall(ctx context.Context, agent string, duration time.Duration, err error)
	RecordSessionSweep(ctx context.Context, removed int)
}

// InitMetrics builds the Prometheus-backed meter and its instruments.
// Disabled metrics yield an empty recorder whose methods are no-ops.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)
	meter := meterProvider.Meter("maestro")

	httpDuration, err := meter.Float64Histogram(
		"maestro_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	httpRequests, err := meter.Int64Counter(
		"maestro_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	httpResponseSize, err := meter.Int64Counter(
		"maestro_http_response_bytes_total",
		metric.WithDescription("Total HTTP response bytes"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http response size counter: %w", err)
	}

	routingDecisions, err := meter.Int64Counter(
		"maestro_routing_decisions_total",
		metric.WithDescription("Total routing decisions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create routing decisions counter: %w", err)
	}

	routingConfidence, err := meter.Float64Histogram(
		"maestro_routing_confidence",
		metric.WithDescription("Confidence of accepted routing decisions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create routing confidence histogram: %w", err)
	}

	transportDuration, err := meter.Float64Histogram(
		"maestro_transport_call_duration_seconds",
		metric.WithDescription("Downstream agent call duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport duration histogram: %w", err)
	}

	transportCalls, err := meter.Int64Counter(
		"maestro_transport_calls_total",
		metric.WithDescription("Total downstream agent calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport calls counter: %w", err)
	}

	transportErrors, err := meter.Int64Counter(
		"maestro_transport_errors_total",
		metric.WithDescription("Total downstream agent call failures"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport errors counter: %w", err)
	}

	sessionsEvicted, err := meter.Int64Counter(
		"maestro_sessions_evicted_total",
		metric.WithDescription("Total sessions evicted by expiry sweeps"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session eviction counter: %w", err)
	}

	return &PrometheusMetrics{
		httpDuration:      httpDuration,
		httpRequests:      httpRequests,
		httpResponseSize:  httpResponseSize,
		routingDecisions:  routingDecisions,
		routingConfidence: routingConfidence,
		transportDuration: transportDuration,
		transportCalls:    transportCalls,
		transportErrors:   transportErrors,
		sessionsEvicted:   sessionsEvicted,
	}, nil
}

// PrometheusMetrics implements Metrics over otel instruments backed by the
// prometheus exporter. The zero value records nothing.
type PrometheusMetrics struct {
	httpDuration     metric.Float64Histogram
	httpRequests     metric.Int64Counter
	httpResponseSize metric.Int64Counter

	routingDecisions  metric.Int64Counter
	routingConfidence metric.Float64Histogram

	transportDuration metric.Float64Histogram
	transportCalls    metric.Int64Counter
	transportErrors   metric.Int64Counter

	sessionsEvicted metric.Int64Counter
}

func (m *PrometheusMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration, size int) {
	if m == nil || m.httpDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	}

	m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.httpRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpResponseSize.Add(ctx, int64(size), metric.WithAttributes(attrs...))
}

func (m *PrometheusMetrics) RecordRoutingDecision(ctx context.Context, agent string, declined bool, confidence float64) {
	if m == nil || m.routingDecisions == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("agent", agent),
		attribute.Bool("declined", declined),
	}
	m.routingDecisions.Add(ctx, 1, metric.WithAttributes(attrs...))
	if !declined {
		m.routingConfidence.Record(ctx, confidence, metric.WithAttributes(attribute.String("agent", agent)))
	}
}

func (m *PrometheusMetrics) RecordTransportCall(ctx context.Context, agent string, duration time.Duration, err error) {
	if m == nil || m.transportDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("agent", agent),
	}
	m.transportDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.transportCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		m.transportErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordSessionSweep(ctx context.Context, removed int) {
	if m == nil || m.sessionsEvicted == nil {
		return
	}
	m.sessionsEvicted.Add(ctx, int64(removed))
}

// SetGlobalMetrics installs the process-wide metrics recorder.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide metrics recorder, possibly nil.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
