package hub

import (
	"time"

	"chat-core/internal/models"
)

// Sender delivers events to one live transport session. Send must not block
// on a slow peer.
type Sender interface {
	Send(event models.Event) error
	Close() error
}

// ConnInfo is transport metadata kept for logs and lifecycle events.
type ConnInfo struct {
	DeviceID  string
	IP        string
	RequestID string
	TraceID   string
}

// Connection is one live transport session owned by an identity.
type Connection struct {
	Handle    string
	Principal models.Principal
	Info      ConnInfo
	CreatedAt time.Time
	Sender    Sender
}
