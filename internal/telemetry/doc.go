// Package telemetry provides OpenTelemetry instrumentation for remedyd.
//
// It manages a TracerProvider and MeterProvider exporting over OTLP and
// installs them as the global otel providers, so instrumented packages
// pick them up through otel.Tracer and otel.Meter.
//
// Telemetry failures never crash the coordinator. If an exporter cannot
// be created the instance degrades to no-op providers and remediation
// continues without traces or metrics.
//
// Use TestTelemetry for tests:
//
//	tt := telemetry.NewTestTelemetry()
//	tracer := tt.Tracer("test")
//	_, span := tracer.Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
package telemetry
