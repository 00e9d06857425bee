// Package client is a websocket client for the chat hub protocol with an
// explicit reconnect policy.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"chat-core/internal/retry"
	"chat-core/internal/ws"
)

var (
	ErrClosed         = errors.New("client closed")
	ErrConnectionLost = errors.New("connection lost before completion")
)

const eventBuffer = 256

// InvocationError is a failure reported by the hub for one invocation.
type InvocationError struct {
	Method  string
	Message string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}

// Event is a server push.
type Event struct {
	Target    string
	Arguments []json.RawMessage
}

// Conn is one client session. A dropped socket is redialled with the same
// retry policy; every reconnect is a new server connection, so groups joined
// before the drop must be joined again once onStatus reports connected.
type Conn struct {
	url      string
	header   http.Header
	policy   retry.Policy
	onStatus func(retry.Update)

	ctx    context.Context
	cancel context.CancelFunc

	events  chan Event
	dropped atomic.Int64
	nextID  atomic.Int64

	writeMu sync.Mutex

	mu      sync.Mutex
	socket  *websocket.Conn
	pending map[string]chan ws.Frame
	closing bool
	done    chan struct{}
}

// Dial connects to url, retrying per policy. An authentication failure is not
// retried. onStatus may be nil; it also receives the statuses of later
// reconnects.
func Dial(ctx context.Context, url, token string, policy retry.Policy, onStatus func(retry.Update)) (*Conn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	c := &Conn{
		url:      url,
		header:   header,
		policy:   policy,
		onStatus: onStatus,
		events:   make(chan Event, eventBuffer),
		pending:  make(map[string]chan ws.Frame),
		done:     make(chan struct{}),
	}
	socket, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.socket = socket
	go c.run(socket)
	return c, nil
}

// Events delivers server pushes until the session ends. Pushes that arrive
// while the buffer is full are dropped and counted by Dropped.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// Dropped is the number of pushes discarded because Events was not drained.
func (c *Conn) Dropped() int64 {
	return c.dropped.Load()
}

// Done is closed once the session is over: after Close, or when a reconnect
// gave up.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Invoke calls a hub method and waits for its completion. A call in flight
// when the socket drops fails with ErrConnectionLost.
func (c *Conn) Invoke(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	id := strconv.FormatInt(c.nextID.Add(1), 10)
	reply := make(chan ws.Frame, 1)

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	payload, err := ws.EncodeInvocation(id, method, args...)
	if err != nil {
		return nil, err
	}
	if err := c.write(websocket.TextMessage, payload); err != nil {
		return nil, err
	}

	select {
	case frame, ok := <-reply:
		if !ok {
			return nil, ErrConnectionLost
		}
		if frame.Error != "" {
			return nil, &InvocationError{Method: method, Message: frame.Error}
		}
		return frame.Result, nil
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send calls a hub method without waiting. Failures arrive as
// ReceiveErrorMessage pushes.
func (c *Conn) Send(method string, args ...any) error {
	payload, err := ws.EncodeInvocation("", method, args...)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, payload)
}

// SendChunk streams one file chunk of the current upload.
func (c *Conn) SendChunk(chunk []byte) error {
	return c.write(websocket.BinaryMessage, chunk)
}

// Close ends the session and stops reconnecting. It is safe to call twice.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	socket := c.socket
	c.mu.Unlock()
	c.cancel()

	c.writeMu.Lock()
	_ = socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	if err := socket.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (c *Conn) report(u retry.Update) {
	if c.onStatus != nil {
		c.onStatus(u)
	}
}

func (c *Conn) connect(ctx context.Context) (*websocket.Conn, error) {
	return c.dial(ctx, c.report)
}

func (c *Conn) dial(ctx context.Context, onStatus func(retry.Update)) (*websocket.Conn, error) {
	var socket *websocket.Conn
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		var (
			resp *http.Response
			err  error
		)
		socket, resp, err = websocket.DefaultDialer.DialContext(ctx, c.url, c.header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil && resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return retry.Permanent(fmt.Errorf("handshake rejected: %s", resp.Status))
		}
		return err
	}, onStatus)
	return socket, err
}

// run reads one socket after another until Close or until a reconnect gives
// up.
func (c *Conn) run(socket *websocket.Conn) {
	defer func() {
		close(c.done)
		close(c.events)
	}()

	for {
		readErr := c.readLoop(socket)
		_ = socket.Close()
		c.failPending()

		c.mu.Lock()
		closing := c.closing
		c.mu.Unlock()
		if closing {
			return
		}

		c.report(retry.Update{Status: retry.StatusRetrying, Err: readErr})
		// connected is held back until the new socket is in place.
		var connected *retry.Update
		next, err := c.dial(c.ctx, func(u retry.Update) {
			if u.Status == retry.StatusConnected {
				connected = &u
				return
			}
			c.report(u)
		})
		if err != nil {
			return
		}

		c.mu.Lock()
		if c.closing {
			c.mu.Unlock()
			_ = next.Close()
			return
		}
		c.socket = next
		c.mu.Unlock()
		socket = next
		if connected != nil {
			c.report(*connected)
		}
	}
}

// failPending releases every Invoke waiting on the socket that just dropped.
func (c *Conn) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, reply := range c.pending {
		close(reply)
		delete(c.pending, id)
	}
}

func (c *Conn) write(messageType int, payload []byte) error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return ErrClosed
	}
	socket := c.socket
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return socket.WriteMessage(messageType, payload)
}

// readLoop routes completions to their Invoke and pushes to Events. It never
// blocks on a slow Events reader, so completions keep flowing.
func (c *Conn) readLoop(socket *websocket.Conn) error {
	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			return err
		}
		var frame ws.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		switch frame.Type {
		case ws.FrameCompletion:
			c.mu.Lock()
			reply, ok := c.pending[frame.InvocationID]
			if ok {
				delete(c.pending, frame.InvocationID)
			}
			c.mu.Unlock()
			if ok {
				reply <- frame
			}
		case ws.FrameInvocation:
			select {
			case c.events <- Event{Target: frame.Target, Arguments: frame.Arguments}:
			default:
				c.dropped.Add(1)
			}
		}
	}
}
