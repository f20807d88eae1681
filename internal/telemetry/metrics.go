package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/stackpilot/tenantctl"
)

// Metrics holds the OpenTelemetry metric instruments for the provisioning
// pipeline.
type Metrics struct {
	WorkerInvocationsTotal metric.Int64Counter
	WorkerFailuresTotal    metric.Int64Counter
	WorkerDuration         metric.Float64Histogram

	VerifierChecksTotal metric.Int64Counter
	VerifierFixesTotal  metric.Int64Counter

	ProviderThrottlesTotal metric.Int64Counter
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

	m.WorkerInvocationsTotal, _ = meter.Int64Counter(
		"tenantctl.worker.invocations.total",
		metric.WithDescription("Total number of worker invocations"),
		metric.WithUnit("{invocation}"),
	)

	m.WorkerFailuresTotal, _ = meter.Int64Counter(
		"tenantctl.worker.failures.total",
		metric.WithDescription("Total number of failed worker invocations"),
		metric.WithUnit("{failure}"),
	)

	m.WorkerDuration, _ = meter.Float64Histogram(
		"tenantctl.worker.duration",
		metric.WithDescription("Duration of worker invocations"),
		metric.WithUnit("ms"),
	)

	m.VerifierChecksTotal, _ = meter.Int64Counter(
		"tenantctl.verifier.checks.total",
		metric.WithDescription("Total number of verifier assertions recorded"),
		metric.WithUnit("{check}"),
	)

	m.VerifierFixesTotal, _ = meter.Int64Counter(
		"tenantctl.verifier.fixes.total",
		metric.WithDescription("Total number of verifier repairs applied"),
		metric.WithUnit("{fix}"),
	)

	m.ProviderThrottlesTotal, _ = meter.Int64Counter(
		"tenantctl.provider.throttles.total",
		metric.WithDescription("Total number of throttled provider calls"),
		metric.WithUnit("{throttle}"),
	)

	return m
}

// RecordWorkerOutcome records one worker invocation, its duration since
// started, and, when failed is true, one failure, all tagged with the worker
// name.
func (m *Metrics) RecordWorkerOutcome(ctx context.Context, worker string, failed bool, started time.Time) {
	attrs := metric.WithAttributes(attribute.String("worker", worker))
	m.WorkerInvocationsTotal.Add(ctx, 1, attrs)
	m.WorkerDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)
	if failed {
		m.WorkerFailuresTotal.Add(ctx, 1, attrs)
	}
}

// RecordThrottle records one throttled call against the named provider.
func (m *Metrics) RecordThrottle(ctx context.Context, provider string) {
	m.ProviderThrottlesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}
