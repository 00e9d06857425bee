// Package hub holds the process-wide connection state of the chat core:
// which handles are live, who owns them, which groups they joined and which
// uploads they are staging, plus the router that fans events out to them.
package hub

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-core/internal/chaterrors"
	"chat-core/internal/models"
	"chat-core/internal/observability"
)

// Hub owns the registry, the groups and the transfer assembler and ties their
// lifecycle to connection registration. Handle-scoped operations hold the
// lifecycle read lock and Disconnect holds the write lock, so nothing can
// resurrect a handle once its cleanup started.
type Hub struct {
	lifecycle sync.RWMutex
	registry  *Registry
	groups    *Groups
	transfers *Assembler
	router    *Router
	log       *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger, maxFileSize int64) *Hub {
	registry := NewRegistry()
	groups := NewGroups()
	return &Hub{
		registry:  registry,
		groups:    groups,
		transfers: NewAssembler(maxFileSize),
		router:    NewRouter(registry, groups, log),
		log:       log,
	}
}

// Router returns the fan-out router.
func (h *Hub) Router() *Router { return h.router }

// Registry returns the connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Groups returns the group membership manager.
func (h *Hub) Groups() *Groups { return h.groups }

// Transfers returns the file transfer assembler.
func (h *Hub) Transfers() *Assembler { return h.transfers }

// Connect registers a new live connection.
func (h *Hub) Connect(conn Connection) error {
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now()
	}

	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()
	if err := h.registry.Register(conn); err != nil {
		return err
	}
	observability.IncWSActive("chat")
	h.log.Info("connection registered",
		"conn_id", conn.Handle,
		"user_id", conn.Principal.ID,
		"device_id", conn.Info.DeviceID,
		"total", h.registry.Count(),
	)
	return nil
}

// Disconnect unregisters handle, removes it from every group and drops any
// staged upload, all under one lock. Unknown handles are a no-op.
func (h *Hub) Disconnect(handle string) (Connection, bool) {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()
	conn, ok := h.registry.Unregister(handle)
	if !ok {
		return Connection{}, false
	}
	groups := h.groups.RemoveEverywhere(handle)
	aborted := h.transfers.Abort(handle)
	observability.DecWSActive("chat")
	if aborted {
		observability.IncTransferEvent("aborted")
	}
	h.log.Info("connection unregistered",
		"conn_id", handle,
		"user_id", conn.Principal.ID,
		"groups", groups,
		"transfer_aborted", aborted,
		"duration_ms", time.Since(conn.CreatedAt).Milliseconds(),
	)
	return conn, true
}

// Principal resolves the identity behind a live handle.
func (h *Hub) Principal(handle string) (models.Principal, error) {
	p, ok := h.registry.IdentityOf(handle)
	if !ok {
		return models.Principal{}, fmt.Errorf("%w: connection %s is not registered", chaterrors.ErrUnauthenticated, handle)
	}
	return p, nil
}

func (h *Hub) liveLocked(handle string) error {
	if _, ok := h.registry.IdentityOf(handle); !ok {
		return fmt.Errorf("%w: connection %s is not registered", chaterrors.ErrUnauthenticated, handle)
	}
	return nil
}

// Join adds a live handle to a group.
func (h *Hub) Join(handle, group string) error {
	h.lifecycle.RLock()
	defer h.lifecycle.RUnlock()
	if err := h.liveLocked(handle); err != nil {
		return err
	}
	return h.groups.Join(group, handle)
}

// Leave removes a live handle from a group.
func (h *Hub) Leave(handle, group string) error {
	h.lifecycle.RLock()
	defer h.lifecycle.RUnlock()
	if err := h.liveLocked(handle); err != nil {
		return err
	}
	return h.groups.Leave(group, handle)
}

// StartTransfer opens an upload slot for a live handle.
func (h *Hub) StartTransfer(handle, name string, declaredSize int64, contentType string) error {
	h.lifecycle.RLock()
	defer h.lifecycle.RUnlock()
	if err := h.liveLocked(handle); err != nil {
		return err
	}
	if err := h.transfers.Start(handle, name, declaredSize, contentType); err != nil {
		return err
	}
	observability.IncTransferEvent("started")
	return nil
}

// AppendChunk stages bytes for a handle's upload. Stray chunks for handles
// without an upload are ignored.
func (h *Hub) AppendChunk(handle string, chunk []byte) (float64, bool, error) {
	h.lifecycle.RLock()
	defer h.lifecycle.RUnlock()
	progress, ok, err := h.transfers.AppendChunk(handle, chunk)
	if ok && err == nil {
		observability.AddTransferBytes(len(chunk))
	}
	if err != nil {
		observability.IncTransferEvent("overflow")
	}
	return progress, ok, err
}

// CompleteTransfer releases a handle's upload and returns its bytes.
func (h *Hub) CompleteTransfer(handle string) (CompletedFile, error) {
	h.lifecycle.RLock()
	defer h.lifecycle.RUnlock()
	if err := h.liveLocked(handle); err != nil {
		return CompletedFile{}, err
	}
	file, err := h.transfers.Complete(handle)
	if err != nil {
		return CompletedFile{}, err
	}
	observability.IncTransferEvent("completed")
	return file, nil
}

// AbortTransfer drops a handle's upload without persisting it.
func (h *Hub) AbortTransfer(handle string) bool {
	h.lifecycle.RLock()
	defer h.lifecycle.RUnlock()
	aborted := h.transfers.Abort(handle)
	if aborted {
		observability.IncTransferEvent("aborted")
	}
	return aborted
}

// Shutdown closes every live connection's transport. Their own disconnect
// paths then unregister them.
func (h *Hub) Shutdown() {
	conns := h.registry.Snapshot()
	for _, conn := range conns {
		if err := conn.Sender.Close(); err != nil {
			h.log.Debug("close on shutdown failed", "conn_id", conn.Handle, "error", err)
		}
	}
	h.log.Info("hub shut down", "closed", len(conns))
}
