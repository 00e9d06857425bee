package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	routingKey string
	event      any
	headers    map[string]string
}

func (c *capturePublisher) Publish(_ context.Context, routingKey string, event any, headers map[string]string) error {
	c.routingKey = routingKey
	c.event = event
	c.headers = headers
	return nil
}

func TestEmitBuildsEnvelope(t *testing.T) {
	pub := &capturePublisher{}
	emitter := NewAuditEmitter(pub, "audit.chat", "chat-core", "test", nil)
	userID := "u1"

	emitter.Emit(context.Background(), "warn", "purge", "public feed purged", "req-1", &userID)

	require.Equal(t, "audit.chat", pub.routingKey)
	envelope, ok := pub.event.(AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, 1, envelope.SchemaVersion)
	assert.Equal(t, "audit_log", envelope.EventType)
	assert.Equal(t, "chat-core", envelope.Service)
	assert.Equal(t, "purge", envelope.Payload.Action)
	assert.Equal(t, "u1", *envelope.UserID)
	assert.Equal(t, "req-1", pub.headers["x-request-id"])
}

func TestEmitOnNilEmitterIsNoop(t *testing.T) {
	var emitter *AuditEmitter
	emitter.Emit(context.Background(), "info", "edit", "x", "", nil)
}
