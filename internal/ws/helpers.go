package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chat-core/internal/chaterrors"
	"chat-core/internal/hub"
	"chat-core/internal/observability"
)

const wsRoutingKey = "ws_events.chat"

func newConnID() string {
	return uuid.NewString()
}

// rejectionText is what a client is told when its session cannot be set up.
func rejectionText(err error) string {
	if chaterrors.IsCallerError(err) {
		return "connection rejected: " + chaterrors.PublicMessage(err)
	}
	return "connection rejected"
}

// publishLifecycle emits a ws_connect, ws_disconnect or ws_error event for
// conn on the bus and counts it.
func publishLifecycle(ctx context.Context, event string, conn hub.Connection, reason string) {
	observability.IncWSEvent("chat", event)
	_ = observability.PublishEvent(ctx, wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "chat",
				"event":       event,
				"conn_id":     conn.Handle,
				"duration_ms": time.Since(conn.CreatedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   conn.Principal.ID,
				"device_id": conn.Info.DeviceID,
				"ip":        conn.Info.IP,
			},
		},
	}, observability.BuildHeaders(conn.Info.RequestID, conn.Info.TraceID))
}
