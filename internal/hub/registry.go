package hub

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	"chat-core/internal/chaterrors"
	"chat-core/internal/models"
)

// Registry maps connection handles to the identities that own them. One
// identity may hold many handles at once.
type Registry struct {
	mu         sync.RWMutex
	conns      map[string]Connection
	byIdentity map[string]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:      make(map[string]Connection),
		byIdentity: make(map[string]map[string]struct{}),
	}
}

// Register adds a live connection. The principal must already have been
// resolved by the identity verifier.
func (r *Registry) Register(conn Connection) error {
	if conn.Principal.ID == "" {
		return fmt.Errorf("%w: no identity resolved for connection", chaterrors.ErrUnauthenticated)
	}
	if conn.Handle == "" || conn.Sender == nil {
		return fmt.Errorf("%w: connection needs a handle and a sender", chaterrors.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[conn.Handle]; exists {
		return fmt.Errorf("%w: handle %s already registered", chaterrors.ErrInvalidArgument, conn.Handle)
	}
	r.conns[conn.Handle] = conn
	if _, ok := r.byIdentity[conn.Principal.ID]; !ok {
		r.byIdentity[conn.Principal.ID] = make(map[string]struct{})
	}
	r.byIdentity[conn.Principal.ID][conn.Handle] = struct{}{}
	return nil
}

// Unregister removes a handle. Unknown handles are ignored so disconnect
// races stay harmless.
func (r *Registry) Unregister(handle string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[handle]
	if !ok {
		return Connection{}, false
	}
	delete(r.conns, handle)
	if handles, ok := r.byIdentity[conn.Principal.ID]; ok {
		delete(handles, handle)
		if len(handles) == 0 {
			delete(r.byIdentity, conn.Principal.ID)
		}
	}
	return conn, true
}

// ConnectionsOf returns the live handles of an identity, sorted. An offline
// identity yields an empty slice.
func (r *Registry) ConnectionsOf(identityID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := lo.Keys(r.byIdentity[identityID])
	sort.Strings(handles)
	return handles
}

// IdentityOf resolves the principal behind a handle.
func (r *Registry) IdentityOf(handle string) (models.Principal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[handle]
	return conn.Principal, ok
}

// Lookup returns the full connection record for a handle.
func (r *Registry) Lookup(handle string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[handle]
	return conn, ok
}

// Resolve returns the connections still live among handles, skipping those
// that went away.
func (r *Registry) Resolve(handles []string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Connection, 0, len(handles))
	for _, h := range handles {
		if conn, ok := r.conns[h]; ok {
			out = append(out, conn)
		}
	}
	return out
}

// Snapshot returns every live connection at call time.
func (r *Registry) Snapshot() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.conns)
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// OnlineIdentities returns the ids of identities with at least one live
// connection.
func (r *Registry) OnlineIdentities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := lo.Keys(r.byIdentity)
	sort.Strings(ids)
	return ids
}
