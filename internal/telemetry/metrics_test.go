package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetricsRecordThroughInstalledProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	ctx := context.Background()
	m := GetMetrics()

	m.RecordWorkerOutcome(ctx, "register-or-provision", true, time.Now().Add(-10*time.Millisecond))
	m.RecordThrottle(ctx, "dynamodb")
	m.VerifierChecksTotal.Add(ctx, 3)
	m.VerifierFixesTotal.Add(ctx, 1)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	recorded := map[string]bool{}
	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			recorded[md.Name] = true
		}
	}

	for _, name := range []string{
		"tenantctl.worker.invocations.total",
		"tenantctl.worker.failures.total",
		"tenantctl.worker.duration",
		"tenantctl.verifier.checks.total",
		"tenantctl.verifier.fixes.total",
		"tenantctl.provider.throttles.total",
	} {
		require.True(t, recorded[name], "expected %s to be exported", name)
	}
}

func TestGetMetricsReturnsSingleton(t *testing.T) {
	require.Same(t, GetMetrics(), GetMetrics())
}
