package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// collector counts OTLP requests per path.
type collector struct {
	mu    sync.Mutex
	paths map[string]int
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.paths[r.URL.Path]++
	c.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (c *collector) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paths[path]
}

// restoreProviders puts the global providers back after the test.
func restoreProviders(t *testing.T) {
	t.Helper()
	tp, mp := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})
}

func TestSetup_Disabled(t *testing.T) {
	tp, mp := otel.GetTracerProvider(), otel.GetMeterProvider()

	shutdown, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, tp, otel.GetTracerProvider())
	assert.Equal(t, mp, otel.GetMeterProvider())
}

func TestSetup_RequiresServiceName(t *testing.T) {
	_, err := Setup(context.Background(), Config{OTLPEndpoint: "http://localhost:4318/v1/traces"})
	assert.Error(t, err)
}

func TestSetup_InvalidEndpoint(t *testing.T) {
	_, err := Setup(context.Background(), Config{OTLPEndpoint: "localhost", ServiceName: "x"})
	assert.Error(t, err)
}

func TestSetup_InstallsSDKProviders(t *testing.T) {
	restoreProviders(t)
	c := &collector{paths: map[string]int{}}
	srv := httptest.NewServer(c)
	defer srv.Close()

	shutdown, err := Setup(context.Background(), Config{
		OTLPEndpoint: srv.URL + "/v1/traces",
		ServiceName:  "konnect-mcp-test",
	})
	require.NoError(t, err)

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok, "tracer provider = %T", otel.GetTracerProvider())
	_, ok = otel.GetMeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, ok, "meter provider = %T", otel.GetMeterProvider())

	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_ExportsSpansAndMetrics(t *testing.T) {
	restoreProviders(t)
	c := &collector{paths: map[string]int{}}
	srv := httptest.NewServer(c)
	defer srv.Close()

	shutdown, err := Setup(context.Background(), Config{
		OTLPEndpoint:   srv.URL + "/v1/traces",
		ServiceName:    "konnect-mcp-test",
		ServiceVersion: "test",
	})
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "tool.invoke")
	span.End()

	counter, err := otel.Meter("telemetry-test").Int64Counter("konnect_mcp.tool.invocations")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	// Shutdown flushes the span batch and the final metric collection.
	require.NoError(t, shutdown(context.Background()))
	assert.GreaterOrEqual(t, c.count("/v1/traces"), 1)
	assert.GreaterOrEqual(t, c.count("/v1/metrics"), 1)
}

func TestMetricsEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:4318/v1/traces", "http://localhost:4318/v1/metrics"},
		{"http://localhost:4318/v1/traces/", "http://localhost:4318/v1/metrics"},
		{"https://otel.example.com/otlp/v1/traces", "https://otel.example.com/otlp/v1/metrics"},
		{"http://localhost:4318", "http://localhost:4318/v1/metrics"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := MetricsEndpoint(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := MetricsEndpoint("not a url")
	assert.Error(t, err)
}
