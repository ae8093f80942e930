package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestGetMetrics(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m)
	assert.Same(t, m, GetMetrics())

	// the global no-op provider still hands out usable instruments
	assert.NotPanics(t, func() {
		m.APIRequestsTotal.Add(context.Background(), 1)
		m.APIRequestDuration.Record(context.Background(), 12)
		m.DiscoveryStaleResponsesTotal.Add(context.Background(), 1)
	})
}

func TestOptions(t *testing.T) {
	assert.Equal(t, defaultInterval, Options{}.interval())
	assert.Equal(t, time.Minute, Options{Interval: time.Minute}.interval())

	assert.Empty(t, Options{}.traceOptions())
	assert.Empty(t, Options{}.metricOptions())

	opts := Options{Endpoint: "collector:4317", Insecure: true}
	assert.Len(t, opts.traceOptions(), 2)
	assert.Len(t, opts.metricOptions(), 2)
}

func TestInitTelemetry_Shutdown(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), Options{
		ServiceName: "romato-test",
		Version:     "test",
		Endpoint:    "127.0.0.1:4317",
		Insecure:    true,
		Interval:    time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// No collector is listening, so only the call itself is checked.
	_ = shutdown(ctx)
}
