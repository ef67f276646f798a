package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
)

// exportOptions is Config reduced to what the OTLP exporters take. Each
// exporter package has its own option types, so the builders below translate
// the same settings four times.
type exportOptions struct {
	http     bool
	endpoint string
	insecure bool
	timeout  time.Duration
	gzip     bool
	headers  map[string]string
	noRetry  bool
}

func newExportOptions(cfg Config) exportOptions {
	return exportOptions{
		http:     cfg.Protocol == "http",
		endpoint: cfg.Endpoint,
		insecure: cfg.Insecure,
		timeout:  cfg.Timeout,
		gzip:     cfg.Compression == "gzip",
		headers:  cfg.Headers,
		noRetry:  !cfg.RetryEnabled,
	}
}

func (o exportOptions) logExporter(ctx context.Context) (sdklog.Exporter, error) {
	if o.http {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(o.endpoint)}
		if o.insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		if o.timeout > 0 {
			opts = append(opts, otlploghttp.WithTimeout(o.timeout))
		}
		if o.gzip {
			opts = append(opts, otlploghttp.WithCompression(otlploghttp.GzipCompression))
		}
		if len(o.headers) > 0 {
			opts = append(opts, otlploghttp.WithHeaders(o.headers))
		}
		if o.noRetry {
			opts = append(opts, otlploghttp.WithRetry(otlploghttp.RetryConfig{Enabled: false}))
		}
		return otlploghttp.New(ctx, opts...)
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(o.endpoint)}
	if o.insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	if o.timeout > 0 {
		opts = append(opts, otlploggrpc.WithTimeout(o.timeout))
	}
	if o.gzip {
		opts = append(opts, otlploggrpc.WithCompressor("gzip"))
	}
	if len(o.headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(o.headers))
	}
	if o.noRetry {
		opts = append(opts, otlploggrpc.WithRetry(otlploggrpc.RetryConfig{Enabled: false}))
	}
	return otlploggrpc.New(ctx, opts...)
}

func (o exportOptions) metricExporter(ctx context.Context) (metric.Exporter, error) {
	if o.http {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(o.endpoint)}
		if o.insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if o.timeout > 0 {
			opts = append(opts, otlpmetrichttp.WithTimeout(o.timeout))
		}
		if o.gzip {
			opts = append(opts, otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression))
		}
		if len(o.headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(o.headers))
		}
		if o.noRetry {
			opts = append(opts, otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{Enabled: false}))
		}
		return otlpmetrichttp.New(ctx, opts...)
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(o.endpoint)}
	if o.insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	if o.timeout > 0 {
		opts = append(opts, otlpmetricgrpc.WithTimeout(o.timeout))
	}
	if o.gzip {
		opts = append(opts, otlpmetricgrpc.WithCompressor("gzip"))
	}
	if len(o.headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(o.headers))
	}
	if o.noRetry {
		opts = append(opts, otlpmetricgrpc.WithRetry(otlpmetricgrpc.RetryConfig{Enabled: false}))
	}
	return otlpmetricgrpc.New(ctx, opts...)
}
