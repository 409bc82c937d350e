package storedb

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const metricsInstrumentationName = "github.com/storekit-go/storedb"

var defaultMeter = otel.Meter(metricsInstrumentationName)

// managerMetrics holds the metric instruments.
type managerMetrics struct {
	queriesTotal  metric.Int64Counter
	queryDuration metric.Float64Histogram
	cacheEvents   metric.Int64Counter
	reconnects    metric.Int64Counter
}

// EnableMetrics enables or disables OpenTelemetry metrics for this manager.
func (m *Manager) EnableMetrics(enabled bool) {
	if m == nil {
		return
	}
	m.metricsEnabled = enabled
	if enabled && m.metrics == nil {
		m.initMetrics()
	}
}

// SetMeterProvider sets a custom meter provider.
func (m *Manager) SetMeterProvider(provider metric.MeterProvider) {
	if m == nil {
		return
	}
	m.meterProvider = provider
	if m.metricsEnabled {
		m.initMetrics()
	}
}

func (m *Manager) initMetrics() {
	meter := defaultMeter
	if m.meterProvider != nil {
		meter = m.meterProvider.Meter(metricsInstrumentationName)
	}

	m.metrics = &managerMetrics{}
	m.metrics.queriesTotal, _ = meter.Int64Counter(
		"storedb_queries_total",
		metric.WithDescription("Total number of statements executed"),
	)
	m.metrics.queryDuration, _ = meter.Float64Histogram(
		"storedb_query_duration_seconds",
		metric.WithDescription("Statement execution duration"),
		metric.WithUnit("s"),
	)
	m.metrics.cacheEvents, _ = meter.Int64Counter(
		"storedb_cache_events_total",
		metric.WithDescription("Result cache hits and misses"),
	)
	m.metrics.reconnects, _ = meter.Int64Counter(
		"storedb_reconnects_total",
		metric.WithDescription("Connection discards followed by re-establish"),
	)
}

func (m *Manager) recordQueryMetric(ctx context.Context, operation string, elapsed time.Duration, err error) {
	if !m.metricsEnabled || m.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	m.metrics.queriesTotal.Add(ctx, 1, attrs)
	m.metrics.queryDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Manager) recordCacheMetric(ctx context.Context, hit bool) {
	if !m.metricsEnabled || m.metrics == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.metrics.cacheEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Manager) recordReconnectMetric(ctx context.Context) {
	if !m.metricsEnabled || m.metrics == nil {
		return
	}
	m.metrics.reconnects.Add(ctx, 1)
}
