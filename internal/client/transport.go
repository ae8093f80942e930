package client

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/romato/romato/internal/telemetry"
)

const (
	tracerName      = "github.com/romato/romato/internal/client"
	requestIDHeader = "X-Request-ID"
)

// instrumentedTransport tags each request with a request id, traces it and
// records request metrics.
type instrumentedTransport struct {
	base      http.RoundTripper
	userAgent string
	tracer    trace.Tracer
}

func newInstrumentedTransport(base http.RoundTripper, userAgent string) *instrumentedTransport {
	return &instrumentedTransport{
		base:      base,
		userAgent: userAgent,
		tracer:    otel.Tracer(tracerName),
	}
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	started := time.Now()

	ctx, span := t.tracer.Start(req.Context(), fmt.Sprintf("HTTP %s %s", req.Method, req.URL.Path),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
		),
	)
	defer span.End()

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(ctx)
	if req.Header.Get(requestIDHeader) == "" {
		req.Header.Set(requestIDHeader, uuid.NewString())
	}
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	m := telemetry.GetMetrics()
	attrs := metric.WithAttributes(
		attribute.String("method", req.Method),
		attribute.String("path", req.URL.Path),
	)
	m.APIRequestsTotal.Add(ctx, 1, attrs)

	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(started)
	m.APIRequestDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)

	if err != nil {
		m.APIRequestErrorsTotal.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		log.Debug().
			Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Str("requestID", req.Header.Get(requestIDHeader)).
			Dur("duration", elapsed).
			Msg("api request")

		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		m.APIRequestErrorsTotal.Add(ctx, 1, attrs)
		span.SetStatus(codes.Error, resp.Status)
	}

	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("requestID", req.Header.Get(requestIDHeader)).
		Int("status", resp.StatusCode).
		Bool("cached", FromCache(resp)).
		Dur("duration", elapsed).
		Msg("api request")

	return resp, nil
}
