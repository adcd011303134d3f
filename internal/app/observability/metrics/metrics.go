package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal      metric.Int64Counter
	HTTPRequestDuration    metric.Float64Histogram
	ImportsTotal           metric.Int64Counter
	ResolutionsTotal       metric.Int64Counter
	ProviderErrorsTotal    metric.Int64Counter
	DBQueryDurationSeconds metric.Float64Histogram
	DBQueryErrorsTotal     metric.Int64Counter
	BackfillUpdatedTotal   metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments once from the global MeterProvider.
// Call it after the provider is installed; instruments created before that are no-ops.
func InitAppMetrics() {
	once.Do(func() {
		appMetrics = build(otel.GetMeterProvider().Meter("radar"))
	})
}

// Get returns the metrics, creating them against the current provider on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}

func build(meter metric.Meter) *AppMetrics {
	m := &AppMetrics{}
	var err error
	report := func(name string, err error) {
		if err != nil {
			zap.L().Error("Metrics: failed to create instrument", zap.String("name", name), zap.Error(err))
		}
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests completed"),
		metric.WithUnit("{request}"))
	report("http_requests_total", err)

	m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"))
	report("http_request_duration_seconds", err)

	m.ImportsTotal, err = meter.Int64Counter("place_imports_total",
		metric.WithDescription("Place imports by outcome (created, existing, not_found, failed)"),
		metric.WithUnit("{import}"))
	report("place_imports_total", err)

	m.ResolutionsTotal, err = meter.Int64Counter("place_resolutions_total",
		metric.WithDescription("Canonical resolutions by outcome"),
		metric.WithUnit("{resolution}"))
	report("place_resolutions_total", err)

	m.ProviderErrorsTotal, err = meter.Int64Counter("provider_errors_total",
		metric.WithDescription("Errors returned by external providers"),
		metric.WithUnit("{error}"))
	report("provider_errors_total", err)

	m.DBQueryDurationSeconds, err = meter.Float64Histogram("db_query_duration_seconds",
		metric.WithDescription("Duration of database queries in seconds"),
		metric.WithUnit("s"))
	report("db_query_duration_seconds", err)

	m.DBQueryErrorsTotal, err = meter.Int64Counter("db_query_errors_total",
		metric.WithDescription("Total number of database query errors"),
		metric.WithUnit("{error}"))
	report("db_query_errors_total", err)

	m.BackfillUpdatedTotal, err = meter.Int64Counter("backfill_places_updated_total",
		metric.WithDescription("Places whose missing photo or hours were filled"),
		metric.WithUnit("{place}"))
	report("backfill_places_updated_total", err)

	return m
}

// RecordImport counts one import outcome.
func RecordImport(ctx context.Context, outcome string) {
	Get().ImportsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordResolution counts one resolution outcome.
func RecordResolution(ctx context.Context, outcome string) {
	Get().ResolutionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordProviderError counts a provider failure.
func RecordProviderError(ctx context.Context, provider, op string) {
	Get().ProviderErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("op", op)))
}

// RecordDBQuery records the latency of one query and counts it when it failed.
func RecordDBQuery(ctx context.Context, op string, seconds float64, err error) {
	m := Get()
	attrs := metric.WithAttributes(attribute.String("db.operation", op))
	m.DBQueryDurationSeconds.Record(ctx, seconds, attrs)
	if err != nil {
		m.DBQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}
