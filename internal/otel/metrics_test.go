package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func counterValue(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if key == "" {
			total += dp.Value
			continue
		}
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestDefaultMetricsConfig(t *testing.T) {
	cfg := DefaultMetricsConfig()
	if cfg.Enabled {
		t.Error("expected Enabled to be false by default")
	}
	if cfg.ServiceName != "threadviz-gateway" {
		t.Errorf("expected ServiceName 'threadviz-gateway', got %q", cfg.ServiceName)
	}
}

func TestNewMetrics_Disabled(t *testing.T) {
	ctx := context.Background()
	m, err := NewMetrics(ctx, nil)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	defer m.Shutdown(ctx)

	if m.Enabled() {
		t.Error("expected metrics to be disabled")
	}
	m.RecordRelay(ctx, "stats", OutcomeOK, 1.5)
	m.RecordUpstreamError(ctx, OutcomeUnreachable)
	m.RecordAuthRejection(ctx, "push_data")
	m.RecordPush(ctx)
}

func TestNewMetrics_StdoutExporter(t *testing.T) {
	ctx := context.Background()
	m, err := NewMetrics(ctx, &MetricsConfig{
		Enabled:      true,
		ServiceName:  "test-gateway",
		ExporterType: ExporterStdout,
	})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	if !m.Enabled() {
		t.Error("expected metrics to be enabled")
	}
	if err := m.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestMetricsRecordsInstruments(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	m, err := NewMetricsWithReader(reader)
	if err != nil {
		t.Fatalf("NewMetricsWithReader failed: %v", err)
	}

	m.RecordRelay(ctx, "stats", OutcomeOK, 12)
	m.RecordRelay(ctx, "stats", OutcomeUnreachable, 3)
	m.RecordUpstreamError(ctx, OutcomeUnreachable)
	m.RecordUpstreamError(ctx, OutcomeRejected)
	m.RecordUpstreamError(ctx, OutcomeRejected)
	m.RecordAuthRejection(ctx, "push_data")
	m.RecordPush(ctx)
	m.RecordPush(ctx)

	got := collect(t, reader)

	hist, ok := got["threadviz.relay.latency"].Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected relay latency histogram, got %T", got["threadviz.relay.latency"].Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("expected 2 relay samples, got %d", count)
	}

	if n := counterValue(t, got["threadviz.upstream.errors"], "kind", OutcomeRejected); n != 2 {
		t.Errorf("expected 2 rejected errors, got %d", n)
	}
	if n := counterValue(t, got["threadviz.auth.rejections"], "route", "push_data"); n != 1 {
		t.Errorf("expected 1 auth rejection, got %d", n)
	}
	if n := counterValue(t, got["threadviz.push.received"], "", ""); n != 2 {
		t.Errorf("expected 2 pushes, got %d", n)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordRelay(ctx, "stats", OutcomeOK, 1)
	m.RecordPush(ctx)
	if m.Enabled() {
		t.Error("nil metrics should not be enabled")
	}
	if err := m.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown on nil: %v", err)
	}
}

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics()
	if m == nil {
		t.Fatal("expected non-nil noop metrics")
	}
	m.RecordAuthRejection(context.Background(), "push_data")
}
