package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-core/internal/auth"
	"chat-core/internal/chat"
	"chat-core/internal/hub"
	"chat-core/internal/models"
	"chat-core/internal/observability"
)

// Dispatcher is the part of the chat service a websocket session drives.
type Dispatcher interface {
	Connect(ctx context.Context, conn hub.Connection) error
	Disconnect(handle string)
	Dispatch(ctx context.Context, handle string, cmd chat.Command) (any, error)
}

// TokenVerifier resolves a bearer token into a principal.
type TokenVerifier interface {
	Verify(token string) (models.Principal, error)
}

// Handler upgrades authenticated requests on /ws/chat into hub sessions.
type Handler struct {
	service    Dispatcher
	verifier   TokenVerifier
	upgrader   websocket.Upgrader
	sendBuffer int
	readLimit  int64
	log        *slog.Logger
}

// NewHandler constructs a Handler. Text frames may carry a whole file sent
// with SendPrivateFile, so the read limit follows maxFileSize.
func NewHandler(service Dispatcher, verifier TokenVerifier, allowedOrigins []string, sendBuffer int, maxFileSize int64, log *slog.Logger) *Handler {
	origins := newOriginPolicy(allowedOrigins, log)
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Handler{
		service:    service,
		verifier:   verifier,
		upgrader:   websocket.Upgrader{CheckOrigin: origins.check},
		sendBuffer: sendBuffer,
		readLimit:  maxFileSize/3*4 + 64*1024,
		log:        log,
	}
}

// Handle upgrades the connection and registers the client.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-core/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token, err := auth.TokenFromRequest(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	principal, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	socket, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "user_id", principal.ID, "error", err)
		return
	}
	socket.SetReadLimit(h.readLimit)

	handle := newConnID()
	requestID := observability.RequestIDFromRequest(c.Request)
	if requestID == "" {
		requestID = handle
	}
	client := newClient(socket, handle, h.service, h.sendBuffer, h.log)
	conn := hub.Connection{
		Handle:    handle,
		Principal: principal,
		Info: hub.ConnInfo{
			DeviceID:  observability.DeviceIDFromRequest(c.Request),
			IP:        observability.IPFromRequest(c.Request),
			RequestID: requestID,
			TraceID:   observability.TraceIDFromContext(ctx),
		},
		CreatedAt: time.Now(),
		Sender:    client,
	}

	// The session outlives the upgrade request.
	sessionCtx := chat.WithRequestID(context.WithoutCancel(ctx), conn.Info.RequestID)

	go client.writePump()
	if err := h.service.Connect(sessionCtx, conn); err != nil {
		h.log.Warn("websocket registration failed", "conn_id", handle, "user_id", principal.ID, "error", err)
		_ = client.Send(models.ErrorEvent(rejectionText(err)))
		_ = client.Close()
		return
	}
	publishLifecycle(sessionCtx, "ws_connect", conn, "")

	go client.readPump(sessionCtx, conn)
}
