package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-core/internal/chat"
	"chat-core/internal/chaterrors"
	"chat-core/internal/hub"
	"chat-core/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSlowConsumer     = errors.New("send buffer full")
)

// Client is the server side of one websocket session. It implements
// hub.Sender: pushes are queued without blocking and a full queue fails only
// this connection's delivery.
type Client struct {
	conn    *websocket.Conn
	handle  string
	service Dispatcher
	log     *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(conn *websocket.Conn, handle string, service Dispatcher, buffer int, log *slog.Logger) *Client {
	return &Client{
		conn:    conn,
		handle:  handle,
		service: service,
		log:     log,
		send:    make(chan []byte, buffer),
	}
}

// Send queues an event push.
func (c *Client) Send(event models.Event) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (c *Client) enqueue(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close stops the write pump, which sends a close frame and drops the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

func (c *Client) readPump(ctx context.Context, conn hub.Connection) {
	var closeReason string
	defer func() {
		c.service.Disconnect(c.handle)
		_ = c.Close()
		event := "ws_disconnect"
		if closeReason != "" {
			event = "ws_error"
		}
		publishLifecycle(ctx, event, conn, closeReason)
		c.log.Info("websocket closed", "conn_id", c.handle, "reason", closeReason)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, io.EOF) && !errors.Is(err, websocket.ErrCloseSent) {
				closeReason = err.Error()
			}
			return
		}

		if messageType == websocket.BinaryMessage {
			c.invoke(ctx, "", chat.SendFileChunk{Chunk: data}, nil)
			continue
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type != FrameInvocation {
			c.reply("", nil, chaterrors.ErrInvalidArgument)
			continue
		}
		cmd, err := chat.DecodeCommand(frame.Target, frame.Arguments)
		c.invoke(ctx, frame.InvocationID, cmd, err)
	}
}

// invoke dispatches one command and reports its outcome to this connection
// only. Invocations are handled in arrival order, which keeps file chunks in
// sequence.
func (c *Client) invoke(ctx context.Context, invocationID string, cmd chat.Command, decodeErr error) {
	if decodeErr != nil {
		c.reply(invocationID, nil, decodeErr)
		return
	}
	result, err := c.service.Dispatch(ctx, c.handle, cmd)
	c.reply(invocationID, result, err)
	if chat.IsTransportFatal(err) {
		_ = c.Close()
	}
}

func (c *Client) reply(invocationID string, result any, err error) {
	if invocationID == "" {
		if err != nil {
			_ = c.Send(models.ErrorEvent(chaterrors.PublicMessage(err)))
		}
		return
	}
	if err != nil {
		result = nil
	}
	payload, encErr := encodeCompletion(invocationID, result, chaterrors.PublicMessage(err))
	if encErr != nil {
		c.log.Error("encode completion", "conn_id", c.handle, "error", encErr)
		return
	}
	if err := c.enqueue(payload); err != nil {
		c.log.Warn("completion dropped", "conn_id", c.handle, "error", err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("websocket write failed", "conn_id", c.handle, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
