package hub

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"chat-core/internal/chaterrors"
)

// Groups keeps named ad-hoc sets of connection handles. It references
// handles only; their lifecycle belongs to the Registry.
type Groups struct {
	mu       sync.RWMutex
	members  map[string]map[string]struct{}
	byHandle map[string]map[string]struct{}
}

// NewGroups creates an empty membership manager.
func NewGroups() *Groups {
	return &Groups{
		members:  make(map[string]map[string]struct{}),
		byHandle: make(map[string]map[string]struct{}),
	}
}

// NormalizeGroupName trims the name and rejects empty ones.
func NormalizeGroupName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", fmt.Errorf("%w: group name is empty", chaterrors.ErrInvalidArgument)
	}
	return n, nil
}

// Join adds handle to the group, creating it on first join.
func (g *Groups) Join(name, handle string) error {
	name, err := NormalizeGroupName(name)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.members[name]; !ok {
		g.members[name] = make(map[string]struct{})
	}
	g.members[name][handle] = struct{}{}
	if _, ok := g.byHandle[handle]; !ok {
		g.byHandle[handle] = make(map[string]struct{})
	}
	g.byHandle[handle][name] = struct{}{}
	return nil
}

// Leave removes handle from the group; the last leave destroys the group.
func (g *Groups) Leave(name, handle string) error {
	name, err := NormalizeGroupName(name)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(name, handle)
	return nil
}

func (g *Groups) removeLocked(name, handle string) {
	if handles, ok := g.members[name]; ok {
		delete(handles, handle)
		if len(handles) == 0 {
			delete(g.members, name)
		}
	}
	if names, ok := g.byHandle[handle]; ok {
		delete(names, name)
		if len(names) == 0 {
			delete(g.byHandle, handle)
		}
	}
}

// RemoveEverywhere drops handle from every group and returns the groups it
// was in.
func (g *Groups) RemoveEverywhere(handle string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := lo.Keys(g.byHandle[handle])
	for _, name := range names {
		g.removeLocked(name, handle)
	}
	sort.Strings(names)
	return names
}

// MembersOf returns the handles in a group, sorted. Unknown groups are empty.
func (g *Groups) MembersOf(name string) []string {
	name = strings.TrimSpace(name)
	g.mu.RLock()
	defer g.mu.RUnlock()
	handles := lo.Keys(g.members[name])
	sort.Strings(handles)
	return handles
}

// GroupsOf returns the groups a handle belongs to, sorted.
func (g *Groups) GroupsOf(handle string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := lo.Keys(g.byHandle[handle])
	sort.Strings(names)
	return names
}

// Count returns the number of non-empty groups.
func (g *Groups) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}
