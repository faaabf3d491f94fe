// Package observe ties the interview server's telemetry together: OTel
// metrics exported for Prometheus scraping, trace spans, session-scoped
// slog loggers, and the HTTP middleware that applies all three.
//
// Components take a [*Metrics] explicitly. [DefaultMetrics] is bound to the
// global meter provider for code that has nothing injected; tests build
// their own with [NewMetrics] and a ManualReader.
package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/mockinterview"

// Values of the "status" attribute.
const (
	StatusOK           = "ok"
	StatusError        = "error"
	StatusMalformed    = "malformed"
	StatusUnauthorized = "unauthorized"
	StatusRateLimited  = "rate_limited"
	StatusSkipped      = "skipped"
)

// Provider kinds used for the "kind" attribute.
const (
	KindLLM = "llm"
	KindTTS = "tts"
)

// Metrics holds the server's instruments. Safe for concurrent use.
type Metrics struct {
	// LLMDuration and TTSDuration are per-attempt latencies, labelled by
	// provider.
	LLMDuration metric.Float64Histogram
	TTSDuration metric.Float64Histogram

	// ProviderRequests counts attempts by provider, kind and status;
	// ProviderErrors only the failed ones by provider and kind.
	ProviderRequests metric.Int64Counter
	ProviderErrors   metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes by provider
	// and target state.
	BreakerTransitions metric.Int64Counter

	Evaluations   metric.Int64Counter
	Syntheses     metric.Int64Counter
	Finalizations metric.Int64Counter
	Transitions   metric.Int64Counter

	WSConnections metric.Int64UpDownCounter

	// HTTPRequestDuration is labelled by method, route pattern and status.
	HTTPRequestDuration metric.Float64Histogram
}

// Bucket boundaries in seconds. Model round trips run long.
var (
	providerBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60}
	httpBuckets     = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)

// NewMetrics registers every instrument on mp. All creation errors are
// reported together.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	var (
		m    Metrics
		errs []error
	)
	histogram := func(dst *metric.Float64Histogram, name, desc string, buckets []float64) {
		h, err := meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(buckets...),
		)
		*dst = h
		errs = append(errs, err)
	}
	counter := func(dst *metric.Int64Counter, name, desc string) {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		*dst = c
		errs = append(errs, err)
	}

	histogram(&m.LLMDuration, "mockinterview.llm.duration", "Latency of reasoning-service completions.", providerBuckets)
	histogram(&m.TTSDuration, "mockinterview.tts.duration", "Latency of speech synthesis.", providerBuckets)
	histogram(&m.HTTPRequestDuration, "mockinterview.http.request.duration", "HTTP request latency by method, route and status.", httpBuckets)

	counter(&m.ProviderRequests, "mockinterview.provider.requests", "Provider attempts by provider, kind and status.")
	counter(&m.ProviderErrors, "mockinterview.provider.errors", "Failed provider attempts by provider and kind.")
	counter(&m.BreakerTransitions, "mockinterview.breaker.transitions", "Circuit breaker state changes by provider and state.")
	counter(&m.Evaluations, "mockinterview.evaluations", "Answer evaluations by status.")
	counter(&m.Syntheses, "mockinterview.syntheses", "Question audio syntheses by status.")
	counter(&m.Finalizations, "mockinterview.finalizations", "Interview summaries by status.")
	counter(&m.Transitions, "mockinterview.transitions", "Applied session transitions by operation.")

	var err error
	m.WSConnections, err = meter.Int64UpDownCounter("mockinterview.ws.connections",
		metric.WithDescription("Open WebSocket connections."))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide [Metrics] bound to
// [otel.GetMeterProvider], created on first use. It panics if the instruments
// cannot be created.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// Attr shortens [attribute.String] at call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func (m *Metrics) count(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordProviderAttempt records one call to a provider backend: its latency
// on the kind's histogram, the request counter, and the error counter when
// status is not [StatusOK].
func (m *Metrics) RecordProviderAttempt(ctx context.Context, kind, provider string, elapsed time.Duration, status string) {
	hist := m.LLMDuration
	if kind == KindTTS {
		hist = m.TTSDuration
	}
	hist.Record(ctx, elapsed.Seconds(), metric.WithAttributes(Attr("provider", provider)))
	m.RecordProviderRequest(ctx, provider, kind, status)
	if status != StatusOK {
		m.RecordProviderError(ctx, provider, kind)
	}
}

// RecordProviderRequest counts one provider attempt.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.count(ctx, m.ProviderRequests, Attr("provider", provider), Attr("kind", kind), Attr("status", status))
}

// RecordProviderError counts one failed provider attempt.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.count(ctx, m.ProviderErrors, Attr("provider", provider), Attr("kind", kind))
}

// RecordBreakerTransition counts a breaker moving to state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, kind, state string) {
	m.count(ctx, m.BreakerTransitions, Attr("provider", provider), Attr("kind", kind), Attr("state", state))
}

func (m *Metrics) RecordEvaluation(ctx context.Context, status string) {
	m.count(ctx, m.Evaluations, Attr("status", status))
}

func (m *Metrics) RecordSynthesis(ctx context.Context, status string) {
	m.count(ctx, m.Syntheses, Attr("status", status))
}

func (m *Metrics) RecordFinalization(ctx context.Context, status string) {
	m.count(ctx, m.Finalizations, Attr("status", status))
}

// RecordTransition counts one applied session operation such as "next".
func (m *Metrics) RecordTransition(ctx context.Context, op string) {
	m.count(ctx, m.Transitions, Attr("op", op))
}
