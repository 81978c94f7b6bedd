package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestGetMetricsIsSingleton(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m)
	require.NotNil(t, m.WorkflowRunsTotal)
	require.NotNil(t, m.BlobKeysDeletedTotal)
	require.Same(t, m, GetMetrics())
}

func TestSampler(t *testing.T) {
	require.Equal(t, sdktrace.AlwaysSample().Description(), sampler(0).Description())
	require.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	require.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestDurationView(t *testing.T) {
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithView(durationView()))
	t.Cleanup(func() { _ = mp.Shutdown(t.Context()) })

	h, err := mp.Meter("test").Float64Histogram(WorkflowDurationName)
	require.NoError(t, err)
	h.Record(t.Context(), 42)
}
