package object

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// ErrNotFound is returned when a registry has no object for an id.
var ErrNotFound = fmt.Errorf("object: not registered: %w", unix.ENOENT)

// Registry maps UUIDs to live objects so that object references can be
// named outside the process. Every entry owns one reference.
type Registry struct {
	mu      sync.RWMutex
	objects map[uuid.UUID]Object
	ids     map[*Base]uuid.UUID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		objects: make(map[uuid.UUID]Object),
		ids:     make(map[*Base]uuid.UUID),
	}
}

// Register records o and returns its id. Objects implementing Identifier
// keep their own UUID; others get a random one. Registering the same
// object twice returns the existing id.
func (r *Registry) Register(o Object) (uuid.UUID, error) {
	b := baseOf(o)
	if b == nil || b.Released() {
		return uuid.Nil, ErrInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[b]; ok {
		return id, nil
	}
	id, err := UUID(o)
	if err != nil {
		id = uuid.New()
	}
	if _, taken := r.objects[id]; taken {
		return uuid.Nil, fmt.Errorf("object: uuid %s already registered: %w", id, unix.EEXIST)
	}
	r.objects[id] = GetRef(o)
	r.ids[b] = id
	return id, nil
}

// Lookup returns the object registered under id with a new reference,
// which the caller must release.
func (r *Registry) Lookup(id uuid.UUID) (Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.objects[id]
	if !ok {
		return nil, fmt.Errorf("lookup %s: %w", id, ErrNotFound)
	}
	return GetRef(o), nil
}

// IDOf returns the id of a registered object.
func (r *Registry) IDOf(o Object) (uuid.UUID, bool) {
	b := baseOf(o)
	if b == nil {
		return uuid.Nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[b]
	return id, ok
}

// Remove drops the entry for id and releases the registry's reference.
func (r *Registry) Remove(id uuid.UUID) error {
	r.mu.Lock()
	o, ok := r.objects[id]
	if ok {
		delete(r.objects, id)
		delete(r.ids, baseOf(o))
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	Unref(o)
	return nil
}

// Len returns the number of registered objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// Clear releases every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	objects := r.objects
	r.objects = make(map[uuid.UUID]Object)
	r.ids = make(map[*Base]uuid.UUID)
	r.mu.Unlock()

	for _, o := range objects {
		Unref(o)
	}
}
