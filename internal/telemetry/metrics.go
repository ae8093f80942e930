package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/romato/romato"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// API client metrics
	APIRequestsTotal      metric.Int64Counter
	APIRequestErrorsTotal metric.Int64Counter
	APIRequestDuration    metric.Float64Histogram

	// Session metrics
	SessionTransitionsTotal metric.Int64Counter
	SessionRefreshTotal     metric.Int64Counter

	// Discovery metrics
	DiscoveryFetchesTotal        metric.Int64Counter
	DiscoveryFetchErrorsTotal    metric.Int64Counter
	DiscoveryStaleResponsesTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.APIRequestsTotal, _ = meter.Int64Counter(
		"romato.api.requests.total",
		metric.WithDescription("Total number of API requests sent"),
		metric.WithUnit("{request}"),
	)

	m.APIRequestErrorsTotal, _ = meter.Int64Counter(
		"romato.api.requests.errors.total",
		metric.WithDescription("Total number of API requests that failed or returned an error status"),
		metric.WithUnit("{error}"),
	)

	m.APIRequestDuration, _ = meter.Float64Histogram(
		"romato.api.requests.duration",
		metric.WithDescription("Duration of API requests"),
		metric.WithUnit("ms"),
	)

	m.SessionTransitionsTotal, _ = meter.Int64Counter(
		"romato.session.transitions.total",
		metric.WithDescription("Total number of session phase transitions"),
		metric.WithUnit("{transition}"),
	)

	m.SessionRefreshTotal, _ = meter.Int64Counter(
		"romato.session.refresh.total",
		metric.WithDescription("Total number of silent refresh attempts"),
		metric.WithUnit("{refresh}"),
	)

	m.DiscoveryFetchesTotal, _ = meter.Int64Counter(
		"romato.discovery.fetches.total",
		metric.WithDescription("Total number of listing and search fetches"),
		metric.WithUnit("{fetch}"),
	)

	m.DiscoveryFetchErrorsTotal, _ = meter.Int64Counter(
		"romato.discovery.fetches.errors.total",
		metric.WithDescription("Total number of listing and search fetches that failed"),
		metric.WithUnit("{error}"),
	)

	m.DiscoveryStaleResponsesTotal, _ = meter.Int64Counter(
		"romato.discovery.stale_responses.total",
		metric.WithDescription("Total number of responses discarded because a newer request was issued"),
		metric.WithUnit("{response}"),
	)

	return m
}
