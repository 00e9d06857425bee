package hub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-core/internal/chaterrors"
	"chat-core/internal/mocks"
	"chat-core/internal/models"
)

func principal(id, name string) models.Principal {
	return models.Principal{Identity: models.Identity{ID: id, Username: name}}
}

func conn(handle string, p models.Principal) (Connection, *mocks.RecordingSender) {
	sender := &mocks.RecordingSender{}
	return Connection{Handle: handle, Principal: p, Sender: sender}, sender
}

func TestRegistryTracksMultipleDevices(t *testing.T) {
	r := NewRegistry()
	alice := principal("a", "alice")

	c1, _ := conn("c1", alice)
	c2, _ := conn("c2", alice)
	require.NoError(t, r.Register(c1))
	require.NoError(t, r.Register(c2))

	assert.Equal(t, []string{"c1", "c2"}, r.ConnectionsOf("a"))
	assert.Empty(t, r.ConnectionsOf("nobody"))

	p, ok := r.IdentityOf("c2")
	require.True(t, ok)
	assert.Equal(t, "alice", p.Username)
}

func TestRegistryRejectsAnonymous(t *testing.T) {
	r := NewRegistry()
	c, _ := conn("c1", models.Principal{})

	err := r.Register(c)
	if !errors.Is(err, chaterrors.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	assert.Zero(t, r.Count())
}

func TestRegistryRejectsDuplicateHandle(t *testing.T) {
	r := NewRegistry()
	c, _ := conn("c1", principal("a", "alice"))
	require.NoError(t, r.Register(c))

	err := r.Register(c)
	assert.ErrorIs(t, err, chaterrors.ErrInvalidArgument)
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	c, _ := conn("c1", principal("a", "alice"))
	require.NoError(t, r.Register(c))

	_, ok := r.Unregister("c1")
	assert.True(t, ok)
	_, ok = r.Unregister("c1")
	assert.False(t, ok)

	_, ok = r.IdentityOf("c1")
	assert.False(t, ok)
	assert.Empty(t, r.ConnectionsOf("a"))
	assert.Empty(t, r.OnlineIdentities())
}

func TestRegistryResolveSkipsGoneHandles(t *testing.T) {
	r := NewRegistry()
	c1, _ := conn("c1", principal("a", "alice"))
	require.NoError(t, r.Register(c1))

	got := r.Resolve([]string{"c1", "gone"})
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].Handle)
}
