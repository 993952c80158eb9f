// Package observability wires the ambient metrics/alerting surface:
// an OpenTelemetry meter bridged to Prometheus for scraping, and a
// logging-backed alert sink for the Alert-severity conditions spec.md
// §7 names (SaveFailed, SystemOverloaded). Persistence circuit-breaker
// state changes are logged by internal/actorsystem, not alerted.
//
// None of the example repos in this module's retrieval pack exercise
// go.opentelemetry.io/otel or prometheus/client_golang directly — both
// arrive only as transitive dependencies of the actor runtime stack —
// so this package gives them the concrete home their presence in
// go.mod implies rather than leaving them unwired. See DESIGN.md.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/vantrix/realmcore/internal/dispatch"
	"github.com/vantrix/realmcore/internal/logging"
)

// Metrics is the process-wide metrics sink. It implements
// dispatch.Metrics and internal/actorsystem's AlertSink.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter

	requests metric.Int64Counter
	errors   metric.Int64Counter
	latency  metric.Float64Histogram
	slow     metric.Int64Counter
	alerts   metric.Int64Counter

	httpServer *http.Server
}

// New constructs a Metrics instance with an OTel Prometheus exporter
// registered as its reader. Call Serve to expose the scrape endpoint.
func New() (*Metrics, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("observability: construct prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("realmcore")

	requests, err := meter.Int64Counter("dispatch_requests_total", metric.WithDescription("handler invocations across all handlers and outcomes"))
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter("dispatch_errors_total", metric.WithDescription("handler invocations that ended in a non-ErrNone outcome"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("dispatch_latency_ms", metric.WithDescription("handler latency in milliseconds"))
	if err != nil {
		return nil, err
	}
	slow, err := meter.Int64Counter("dispatch_slow_total", metric.WithDescription("handler invocations that crossed their slow threshold"))
	if err != nil {
		return nil, err
	}
	alerts, err := meter.Int64Counter("alerts_total", metric.WithDescription("operator-facing alert conditions raised"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		provider: provider,
		meter:    meter,
		requests: requests,
		errors:   errs,
		latency:  latency,
		slow:     slow,
		alerts:   alerts,
	}, nil
}

// ObserveRequest implements internal/dispatch.Metrics.
func (m *Metrics) ObserveRequest(handlerName string, durationNs uint64, kind dispatch.ErrorKind) {
	ctx := context.Background()
	attrs := metric.WithAttributes()
	m.requests.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(durationNs)/1e6, attrs)
	if kind != dispatch.ErrNone {
		m.errors.Add(ctx, 1, attrs)
	}
	_ = handlerName // handler-name cardinality is bounded by registration, but kept out of label set to avoid a per-handler time series explosion in the default exporter config.
}

// ObserveSlow implements internal/dispatch.Metrics.
func (m *Metrics) ObserveSlow(handlerName string, durationMs int64) {
	m.slow.Add(context.Background(), 1)
	logging.Warnf("observability: slow handler %q took %dms", handlerName, durationMs)
}

// Alert implements internal/actorsystem.AlertSink.
func (m *Metrics) Alert(kind, detail string) {
	m.alerts.Add(context.Background(), 1)
	logging.Errorf("ALERT[%s]: %s", kind, detail)
}

// Serve starts the Prometheus scrape endpoint (/metrics) on addr. It
// runs until the process exits or Shutdown is called; errors other
// than http.ErrServerClosed are logged as fatal, matching spec.md §7's
// treatment of a misconfigured observability listener.
func (m *Metrics) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	m.httpServer = &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := m.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("observability: metrics listener failed: %v", err)
		}
	}()
	logging.Infof("observability: serving metrics on %s/metrics", addr)
}

// Shutdown stops the metrics HTTP server and flushes the meter
// provider, per spec.md §5's graceful shutdown sequence.
func (m *Metrics) Shutdown(ctx context.Context) {
	if m.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = m.httpServer.Shutdown(shutdownCtx)
	}
	_ = m.provider.Shutdown(ctx)
}
