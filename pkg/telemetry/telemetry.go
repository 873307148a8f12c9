// Package telemetry installs the process-wide OpenTelemetry providers.
//
// With no OTLP endpoint configured the global no-op providers stay in
// place and tool observations cost nothing. With an endpoint, spans are
// batched and metrics pushed periodically, both over OTLP/HTTP.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DefaultMetricInterval is how often metrics are pushed.
const DefaultMetricInterval = time.Minute

// Config selects the exporters.
type Config struct {
	// OTLPEndpoint is the full OTLP/HTTP traces URL, e.g.
	// http://localhost:4318/v1/traces. Empty disables export.
	OTLPEndpoint string

	// OTLPMetricsEndpoint overrides the metrics URL. By default it is
	// derived from OTLPEndpoint by replacing /v1/traces with /v1/metrics.
	OTLPMetricsEndpoint string

	// MetricInterval defaults to DefaultMetricInterval.
	MetricInterval time.Duration

	ServiceName    string
	ServiceVersion string
}

// ShutdownFunc flushes and stops what Setup installed.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup installs a global TracerProvider and MeterProvider exporting to the
// configured endpoints. The returned ShutdownFunc must be called before exit
// to flush pending spans and metrics.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.OTLPEndpoint == "" {
		return noopShutdown, nil
	}
	if cfg.ServiceName == "" {
		return nil, errors.New("telemetry: service name is required")
	}

	metricsURL := cfg.OTLPMetricsEndpoint
	if metricsURL == "" {
		var err error
		if metricsURL, err = MetricsEndpoint(cfg.OTLPEndpoint); err != nil {
			return nil, err
		}
	}
	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = DefaultMetricInterval
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(metricsURL))
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

// MetricsEndpoint derives the OTLP/HTTP metrics URL from a traces URL.
func MetricsEndpoint(tracesURL string) (string, error) {
	u, err := url.Parse(tracesURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("telemetry: invalid OTLP endpoint %q", tracesURL)
	}
	path := strings.TrimRight(u.Path, "/")
	if strings.HasSuffix(path, "/v1/traces") {
		path = strings.TrimSuffix(path, "/v1/traces")
	}
	u.Path = path + "/v1/metrics"
	return u.String(), nil
}
