package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"
)

func TestInitializeDisabledKeepsHelpersUsable(t *testing.T) {
	require.NoError(t, Initialize(Config{Enabled: false}, zaptest.NewLogger(t)))
	require.NoError(t, Shutdown(context.Background()))

	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	assert.Empty(t, W3CTraceparent(ctx))

	req := httptest.NewRequest(http.MethodGet, "http://agents.local/tools/search", nil)
	InjectTraceparent(ctx, req)
	assert.Empty(t, req.Header.Get("traceparent"))
}

func TestTraceparentRoundTrip(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "invoke")
	defer span.End()

	header := W3CTraceparent(ctx)
	require.NotEmpty(t, header)

	traceID, spanID, flags, ok := ParseTraceparent(header)
	require.True(t, ok)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)
	assert.Equal(t, span.SpanContext().SpanID().String(), spanID)
	assert.Equal(t, byte(1), flags)

	req := httptest.NewRequest(http.MethodPost, "http://agents.local/tools/analyze", nil)
	InjectTraceparent(ctx, req)
	assert.Equal(t, header, req.Header.Get("traceparent"))
}

func TestParseTraceparentRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"01-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
		"00-short-00f067aa0ba902b7-01",
		"00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7",
		"00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-zz",
	} {
		_, _, _, ok := ParseTraceparent(in)
		assert.False(t, ok, in)
	}
}
