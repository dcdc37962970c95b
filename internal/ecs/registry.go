package ecs

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Registry is the process-wide entity store: id → entity, plus well-known
// entity groups populated at startup (e.g. "maps") and read-only afterwards
// from the battle core's perspective. Entities exist from creation until
// their last un-share or explicit removal. A handle is passed explicitly to
// every subsystem; there is no ambient static access.
type Registry struct {
	nextID atomic.Int64

	mu       sync.RWMutex
	entities map[int64]*Entity
	groups   map[string][]*Entity
}

func NewRegistry() *Registry {
	r := &Registry{
		entities: make(map[int64]*Entity),
		groups:   make(map[string][]*Entity),
	}
	// Ids below this are reserved for catalog-defined entities.
	r.nextID.Store(1_000_000)
	return r
}

// FreeID allocates a fresh entity id.
func (r *Registry) FreeID() int64 {
	return r.nextID.Add(1)
}

// Create allocates and registers a new entity.
func (r *Registry) Create(template uint16) *Entity {
	e := NewEntity(r.FreeID(), template)
	r.Put(e)
	return e
}

// CreateWithID registers an entity under a fixed id (catalog entities).
func (r *Registry) CreateWithID(id int64, template uint16) *Entity {
	e := NewEntity(id, template)
	r.Put(e)
	return e
}

// Put registers an entity under its id.
func (r *Registry) Put(e *Entity) {
	r.mu.Lock()
	r.entities[e.ID()] = e
	r.mu.Unlock()
}

// Get looks an entity up by id.
func (r *Registry) Get(id int64) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrEntityNotFound, id)
	}
	return e, nil
}

// Remove deletes an entity by id.
func (r *Registry) Remove(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[id]; !ok {
		return fmt.Errorf("%w: id %d", ErrEntityNotFound, id)
	}
	delete(r.entities, id)
	return nil
}

// RemoveIfUnshared deletes an entity when its last sharer is gone.
// Reports whether the entity was removed.
func (r *Registry) RemoveIfUnshared(e *Entity) bool {
	if e.SharerCount() > 0 {
		return false
	}
	return r.Remove(e.ID()) == nil
}

// Count returns the number of registered entities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// AddToGroup registers an entity under a well-known group name.
func (r *Registry) AddToGroup(group string, e *Entity) {
	r.mu.Lock()
	r.groups[group] = append(r.groups[group], e)
	r.mu.Unlock()
}

// Group returns the entities registered under a well-known group name.
func (r *Registry) Group(group string) []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Entity(nil), r.groups[group]...)
}

// GroupEntity finds one entity in a group by id.
func (r *Registry) GroupEntity(group string, id int64) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.groups[group] {
		if e.ID() == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: group %q id %d", ErrEntityNotFound, group, id)
}

// Clear drops all entities and groups. Teardown only.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.entities = make(map[int64]*Entity)
	r.groups = make(map[string][]*Entity)
	r.mu.Unlock()
}
