package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/remedyd/internal/config"
)

func TestNewDisabled(t *testing.T) {
	tel, err := New(context.Background(), config.TelemetryConfig{Enabled: false}, "0.1.0", nil)
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Healthy)
	assert.False(t, tel.Health().Degraded)

	// No-op tracer still hands out working spans.
	tracer := tel.Tracer("test")
	_, span := tracer.Start(context.Background(), "noop")
	span.End()

	require.NoError(t, tel.Shutdown(context.Background()))
	require.NoError(t, tel.ForceFlush(context.Background()))
}

func TestNilTelemetryIsSafe(t *testing.T) {
	var tel *Telemetry

	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Degraded)
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
}

func TestShutdownMarksUnhealthy(t *testing.T) {
	tel, err := New(context.Background(), config.TelemetryConfig{Enabled: false}, "0.1.0", nil)
	require.NoError(t, err)

	require.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Health().Healthy)
}

func TestTestTelemetryRecordsSpans(t *testing.T) {
	tt := NewTestTelemetry()

	tracer := tt.Tracer("coordinator")
	_, span := tracer.Start(context.Background(), "coordinator.cycle",
		oteltrace.WithAttributes(attribute.Int("attempt", 2)))
	span.End()

	tt.AssertSpanExists(t, "coordinator.cycle")
	tt.AssertSpanAttribute(t, "coordinator.cycle", "attempt", int64(2))
	assert.Nil(t, tt.SpanByName("missing"))
}

func TestTestTelemetryRecordsMetrics(t *testing.T) {
	tt := NewTestTelemetry()

	meter := tt.Meter("remedy")
	counter, err := meter.Int64Counter("remedyd.fix.attempts_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	var rm metricdata.ResourceMetrics
	require.NoError(t, tt.MetricReader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, "remedyd.fix.attempts_total", rm.ScopeMetrics[0].Metrics[0].Name)
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("collector:4318"))
}
