package otel

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig holds meter settings.
type MetricsConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	ExporterType   ExporterType
	OTLPEndpoint   string
	OTLPInsecure   bool
	Attributes     map[string]string
}

// DefaultMetricsConfig returns a configuration with export disabled.
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:      false,
		ServiceName:  "threadviz-gateway",
		ExporterType: ExporterNone,
	}
}

// Relay outcomes recorded on threadviz.relay.latency.
const (
	OutcomeOK          = "ok"
	OutcomeUnreachable = "unreachable"
	OutcomeRejected    = "rejected"
	OutcomeBadRequest  = "bad_request"
)

// Metrics records gateway instruments. All methods are safe for concurrent
// use and on a nil receiver.
type Metrics struct {
	config        *MetricsConfig
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	shutdown      func(context.Context) error
	mu            sync.Mutex

	relayLatency   metric.Float64Histogram
	upstreamErrors metric.Int64Counter
	authRejections metric.Int64Counter
	pushReceived   metric.Int64Counter
}

// NewMetrics builds a meter. When export is disabled the instruments still
// exist but nothing leaves the process.
func NewMetrics(ctx context.Context, cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil {
		cfg = DefaultMetricsConfig()
	}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		return newMetrics(cfg, sdkmetric.NewMeterProvider())
	}

	exporter, err := newMetricExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	return newMetrics(cfg, sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	))
}

// NewMetricsWithReader builds a meter that reports to reader. Tests pass a
// sdkmetric.ManualReader to inspect recorded values.
func NewMetricsWithReader(reader sdkmetric.Reader) (*Metrics, error) {
	return newMetrics(DefaultMetricsConfig(), sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
}

func newMetrics(cfg *MetricsConfig, mp *sdkmetric.MeterProvider) (*Metrics, error) {
	m := &Metrics{
		config:        cfg,
		meterProvider: mp,
		meter:         mp.Meter(cfg.ServiceName),
		shutdown:      mp.Shutdown,
	}
	if err := m.registerInstruments(); err != nil {
		return nil, fmt.Errorf("failed to register metric instruments: %w", err)
	}
	return m, nil
}

func newMetricExporter(ctx context.Context, cfg *MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.ExporterType)
	}
}

func (m *Metrics) registerInstruments() error {
	var err error

	m.relayLatency, err = m.meter.Float64Histogram(
		"threadviz.relay.latency",
		metric.WithDescription("Latency of relayed agent calls"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("failed to create relay latency histogram: %w", err)
	}

	m.upstreamErrors, err = m.meter.Int64Counter(
		"threadviz.upstream.errors",
		metric.WithDescription("Failed agent calls by kind"),
	)
	if err != nil {
		return fmt.Errorf("failed to create upstream error counter: %w", err)
	}

	m.authRejections, err = m.meter.Int64Counter(
		"threadviz.auth.rejections",
		metric.WithDescription("Requests rejected for a missing or wrong shared secret"),
	)
	if err != nil {
		return fmt.Errorf("failed to create auth rejection counter: %w", err)
	}

	m.pushReceived, err = m.meter.Int64Counter(
		"threadviz.push.received",
		metric.WithDescription("Accepted push_data payloads"),
	)
	if err != nil {
		return fmt.Errorf("failed to create push counter: %w", err)
	}

	return nil
}

// RecordRelay records one relayed call.
func (m *Metrics) RecordRelay(ctx context.Context, route, outcome string, latencyMs float64) {
	if m == nil || m.relayLatency == nil {
		return
	}
	m.relayLatency.Record(ctx, latencyMs, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("outcome", outcome),
	))
}

// RecordUpstreamError counts a failed agent call.
func (m *Metrics) RecordUpstreamError(ctx context.Context, kind string) {
	if m == nil || m.upstreamErrors == nil {
		return
	}
	m.upstreamErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordAuthRejection(ctx context.Context, route string) {
	if m == nil || m.authRejections == nil {
		return
	}
	m.authRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
}

func (m *Metrics) RecordPush(ctx context.Context) {
	if m == nil || m.pushReceived == nil {
		return
	}
	m.pushReceived.Add(ctx, 1)
}

// Shutdown flushes pending metrics.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown != nil {
		return m.shutdown(ctx)
	}
	return nil
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.config.Enabled && m.config.ExporterType != ExporterNone
}

// NoopMetrics returns a Metrics whose instruments report nowhere.
func NoopMetrics() *Metrics {
	m, err := newMetrics(DefaultMetricsConfig(), sdkmetric.NewMeterProvider())
	if err != nil {
		return nil
	}
	return m
}
