// Package telemetry pushes the relay's own logs and metrics over OTLP. Logs
// arrive through the logging hook, Prometheus metrics through the bridge, and
// the queue position is observed directly as OTEL gauges.
package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	prombridge "go.opentelemetry.io/contrib/bridges/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Scope is the instrumentation scope of everything the relay emits.
const Scope = "github.com/szibis/logrelay"

const (
	defaultPushInterval    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Resource attribute keys describing the relay's pipeline.
const (
	AttrQueue     = attribute.Key("logrelay.queue.name")
	AttrStore     = attribute.Key("logrelay.store.type")
	AttrWatermark = attribute.Key("logrelay.watermark.source")
	AttrStartSeq  = attribute.Key("logrelay.queue.start_seq")
)

// Config holds configuration for OTLP telemetry export.
type Config struct {
	Endpoint        string            // OTLP endpoint (empty = disabled)
	Protocol        string            // "grpc" or "http"
	Insecure        bool              // use insecure connection
	Timeout         time.Duration     // per-export timeout (default: SDK default 10s)
	PushInterval    time.Duration     // metric push interval (default: 30s)
	Compression     string            // "gzip" or ""
	Headers         map[string]string // custom headers (auth, etc.)
	ShutdownTimeout time.Duration     // shutdown grace period (default: 5s)
	RetryEnabled    bool              // keep the SDK's export retries; false disables them
}

// Service describes the relay instance in the exported resource.
type Service struct {
	Name    string
	Version string
	// InstanceID distinguishes relays sharing a name. A random UUID is
	// used when empty.
	InstanceID string
	Queue      string
	Store      string
	Watermark  string
	StartSeq   uint64
}

func (s Service) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(s.Name),
		semconv.ServiceVersion(s.Version),
		semconv.ServiceInstanceID(s.InstanceID),
	}
	if s.Queue != "" {
		attrs = append(attrs, AttrQueue.String(s.Queue))
	}
	if s.Store != "" {
		attrs = append(attrs, AttrStore.String(s.Store))
	}
	if s.Watermark != "" {
		attrs = append(attrs, AttrWatermark.String(s.Watermark))
	}
	// Sequences can exceed int64; the resource keeps them exact as strings.
	attrs = append(attrs, AttrStartSeq.String(strconv.FormatUint(s.StartSeq, 10)))
	return attrs
}

// Telemetry holds the OTEL SDK providers for self-monitoring.
type Telemetry struct {
	svc             Service
	logProvider     *sdklog.LoggerProvider
	meterProvider   *metric.MeterProvider
	logger          otellog.Logger
	shutdownFuncs   []func(context.Context) error
	shutdownTimeout time.Duration
}

// Init creates and starts OTLP log and metric exporters. It returns nil
// when cfg.Endpoint is empty (telemetry disabled).
func Init(ctx context.Context, cfg Config, svc Service) (*Telemetry, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	if svc.InstanceID == "" {
		svc.InstanceID = uuid.NewString()
	}

	res, err := resource.New(ctx, resource.WithAttributes(svc.attributes()...))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	opts := newExportOptions(cfg)
	logExporter, err := opts.logExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create log exporter: %w", err)
	}
	metricExporter, err := opts.metricExporter(ctx)
	if err != nil {
		_ = logExporter.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}

	pushInterval := cfg.PushInterval
	if pushInterval <= 0 {
		pushInterval = defaultPushInterval
	}

	t := newTelemetry(svc, cfg.ShutdownTimeout,
		sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		),
		metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(metricExporter,
				metric.WithInterval(pushInterval),
				metric.WithProducer(prombridge.NewMetricProducer()),
			)),
		),
	)
	return t, nil
}

// newTelemetry assembles a Telemetry over ready providers. Either provider
// may be nil.
func newTelemetry(svc Service, shutdownTimeout time.Duration, lp *sdklog.LoggerProvider, mp *metric.MeterProvider) *Telemetry {
	t := &Telemetry{
		svc:             svc,
		logProvider:     lp,
		meterProvider:   mp,
		shutdownTimeout: shutdownTimeout,
	}
	if lp != nil {
		t.logger = lp.Logger(Scope,
			otellog.WithInstrumentationVersion(svc.Version),
			otellog.WithInstrumentationAttributes(AttrQueue.String(svc.Queue)),
		)
		t.shutdownFuncs = append(t.shutdownFuncs, lp.Shutdown)
	}
	if mp != nil {
		t.shutdownFuncs = append(t.shutdownFuncs, mp.Shutdown)
	}
	return t
}

// InstanceID returns the service.instance.id attached to exported data.
func (t *Telemetry) InstanceID() string {
	if t == nil {
		return ""
	}
	return t.svc.InstanceID
}

// Enabled returns true if telemetry is configured.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.logger != nil
}

// Logger returns the OTEL logger for emitting log records.
func (t *Telemetry) Logger() otellog.Logger {
	if t == nil {
		return nil
	}
	return t.logger
}

// ShutdownTimeout returns the configured shutdown timeout.
func (t *Telemetry) ShutdownTimeout() time.Duration {
	if t == nil || t.shutdownTimeout <= 0 {
		return defaultShutdownTimeout
	}
	return t.shutdownTimeout
}

// Shutdown flushes and stops the providers, in reverse order of setup.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var firstErr error
	for i := len(t.shutdownFuncs) - 1; i >= 0; i-- {
		if err := t.shutdownFuncs[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.shutdownFuncs = nil
	return firstErr
}
