package ecs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kuraysdev/Vint/internal/protocol"
)

var (
	// ErrComponentExists is returned by AddComponent when the type key is
	// already attached; overwrites must go through ChangeComponent.
	ErrComponentExists = errors.New("component already attached")
	// ErrComponentNotFound is returned when a component key is absent.
	// Cross-connection timing makes races between unshare and mutate
	// expected; callers log and continue.
	ErrComponentNotFound = errors.New("component not found")
	// ErrEntityNotFound is returned by registry lookups for removed ids.
	ErrEntityNotFound = errors.New("entity not found")
)

// Sharer is a connection an entity can be made visible to. Implemented by
// the network connection; kept minimal so the store never depends on the
// transport.
type Sharer interface {
	SharerID() uuid.UUID
	Push(cmd protocol.Outbound)
}

// Entity is a stable 64-bit identity with a type-keyed component bag and
// the set of connections it is currently shared with. All mutations are
// safe to interleave between a battle's tick goroutine and connection
// execute goroutines.
type Entity struct {
	id       int64
	template uint16

	mu         sync.RWMutex
	components map[uint16]Component
	sharers    map[uuid.UUID]Sharer
}

func NewEntity(id int64, template uint16) *Entity {
	return &Entity{
		id:         id,
		template:   template,
		components: make(map[uint16]Component),
		sharers:    make(map[uuid.UUID]Sharer),
	}
}

func (e *Entity) ID() int64 { return e.id }

func (e *Entity) Template() uint16 { return e.template }

func (e *Entity) String() string {
	return fmt.Sprintf("Entity(%d)", e.id)
}

// AddComponent attaches a component. Fails if the key is already present.
// The add is pushed to every connection currently sharing the entity.
func (e *Entity) AddComponent(c Component) error {
	e.mu.Lock()
	if _, exists := e.components[c.Key()]; exists {
		e.mu.Unlock()
		return fmt.Errorf("%w: entity %d key %d", ErrComponentExists, e.id, c.Key())
	}
	e.components[c.Key()] = c
	sharers := e.sharersLocked()
	e.mu.Unlock()

	cmd := protocol.ComponentAddCommand{EntityID: e.id, Component: Snapshot(c)}
	for _, s := range sharers {
		s.Push(cmd)
	}
	return nil
}

// AddComponentIfAbsent attaches a component unless the key already exists.
func (e *Entity) AddComponentIfAbsent(c Component) {
	_ = e.AddComponent(c)
}

// ChangeComponent replaces an attached component's value. Observers see
// exactly one change event carrying the new value.
func (e *Entity) ChangeComponent(c Component) error {
	e.mu.Lock()
	if _, exists := e.components[c.Key()]; !exists {
		e.mu.Unlock()
		return fmt.Errorf("%w: entity %d key %d", ErrComponentNotFound, e.id, c.Key())
	}
	e.components[c.Key()] = c
	sharers := e.sharersLocked()
	e.mu.Unlock()

	cmd := protocol.ComponentChangeCommand{EntityID: e.id, Component: Snapshot(c)}
	for _, s := range sharers {
		s.Push(cmd)
	}
	return nil
}

// RemoveComponent detaches a component by key.
func (e *Entity) RemoveComponent(key uint16) error {
	e.mu.Lock()
	if _, exists := e.components[key]; !exists {
		e.mu.Unlock()
		return fmt.Errorf("%w: entity %d key %d", ErrComponentNotFound, e.id, key)
	}
	delete(e.components, key)
	sharers := e.sharersLocked()
	e.mu.Unlock()

	cmd := protocol.ComponentRemoveCommand{EntityID: e.id, Key: key}
	for _, s := range sharers {
		s.Push(cmd)
	}
	return nil
}

// RemoveComponentIfPresent detaches a component, tolerating absence.
func (e *Entity) RemoveComponentIfPresent(key uint16) {
	_ = e.RemoveComponent(key)
}

// GetComponent returns the component attached under key.
func (e *Entity) GetComponent(key uint16) (Component, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.components[key]
	return c, ok
}

func (e *Entity) HasComponent(key uint16) bool {
	_, ok := e.GetComponent(key)
	return ok
}

// SnapshotComponents returns the current full component snapshot.
func (e *Entity) SnapshotComponents() []protocol.ComponentSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snaps := make([]protocol.ComponentSnapshot, 0, len(e.components))
	for _, c := range e.components {
		snaps = append(snaps, Snapshot(c))
	}
	return snaps
}

// Share makes the entity visible to a connection. Idempotent: sharing an
// already-shared entity is a no-op. The new sharer receives the entity's
// current full component snapshot.
func (e *Entity) Share(s Sharer) bool {
	e.mu.Lock()
	if _, already := e.sharers[s.SharerID()]; already {
		e.mu.Unlock()
		return false
	}
	e.sharers[s.SharerID()] = s
	snapshot := make([]protocol.ComponentSnapshot, 0, len(e.components))
	for _, c := range e.components {
		snapshot = append(snapshot, Snapshot(c))
	}
	e.mu.Unlock()

	s.Push(protocol.ShareEntityCommand{
		EntityID:   e.id,
		Template:   e.template,
		Components: snapshot,
	})
	return true
}

// Unshare revokes visibility. Idempotent. The connection is notified of
// the removal of the whole entity, not per-component.
func (e *Entity) Unshare(s Sharer) bool {
	e.mu.Lock()
	if _, shared := e.sharers[s.SharerID()]; !shared {
		e.mu.Unlock()
		return false
	}
	delete(e.sharers, s.SharerID())
	e.mu.Unlock()

	s.Push(protocol.UnshareEntityCommand{EntityID: e.id})
	return true
}

// DropSharer removes a connection from the sharer set without notifying
// it. Used during connection teardown when the transport is already gone.
func (e *Entity) DropSharer(s Sharer) {
	e.mu.Lock()
	delete(e.sharers, s.SharerID())
	e.mu.Unlock()
}

// SharedWith reports whether the entity is visible to the connection.
func (e *Entity) SharedWith(s Sharer) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.sharers[s.SharerID()]
	return ok
}

// Sharers returns the connections currently sharing the entity.
func (e *Entity) Sharers() []Sharer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sharersLocked()
}

// SharerCount returns the visibility reference count.
func (e *Entity) SharerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sharers)
}

// Send fans an event out to every connection currently sharing the entity.
func (e *Entity) Send(ev protocol.Event) {
	cmd := protocol.SendEventCommand{Event: ev, EntityIDs: []int64{e.id}}
	for _, s := range e.Sharers() {
		s.Push(cmd)
	}
}

func (e *Entity) sharersLocked() []Sharer {
	out := make([]Sharer, 0, len(e.sharers))
	for _, s := range e.sharers {
		out = append(out, s)
	}
	return out
}
