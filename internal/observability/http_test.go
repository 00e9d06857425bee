package observability

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws/chat", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", IPFromRequest(req))

	req.Header.Set("X-Forwarded-For", " , 203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", IPFromRequest(req))
}

func TestRequestHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Device-Id", " phone-1 ")
	req.Header.Set("X-Request-Id", "req-9")

	assert.Equal(t, "phone-1", DeviceIDFromRequest(req))
	assert.Equal(t, "req-9", RequestIDFromRequest(req))
}

func TestTraceIDFromContext(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))

	traceID := trace.TraceID{0x01, 0x02}
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: trace.SpanID{0x03}})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	assert.Equal(t, traceID.String(), TraceIDFromContext(ctx))
}
