// Package object implements the reference-counted, lockable base that every
// managed entity of the action core is built on.
//
// An object embeds a Base, reports it through the Object interface and
// optionally implements capability interfaces (Finalizer, Hasher, Comparer,
// Identifier). Capabilities replace a runtime walk over the type chain:
// Go embedding already resolves a method to the nearest type defining it.
package object

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

var (
	// ErrInvalid is returned for absent receivers and misuse of the API.
	ErrInvalid = fmt.Errorf("object: invalid argument: %w", unix.EINVAL)

	// ErrReleased is returned when an object is used after its last
	// reference was released.
	ErrReleased = fmt.Errorf("object: use after release: %w", unix.EINVAL)

	// ErrUnsupported is returned when a type lacks a capability.
	ErrUnsupported = fmt.Errorf("object: operation not supported: %w", unix.EOPNOTSUPP)
)

// Type describes an object type. Types form a single-inheritance chain
// through Super, used for "is-a" checks.
type Type struct {
	Name  string
	Super *Type
}

// ObjectType is the root of every type chain.
var ObjectType = &Type{Name: "ws_object"}

// IsA reports whether t is other or derives from it.
func (t *Type) IsA(other *Type) bool {
	for cur := t; cur != nil; cur = cur.Super {
		if cur == other {
			return true
		}
	}
	return false
}

func (t *Type) String() string {
	if t == nil {
		return "<untyped>"
	}
	return t.Name
}

// Object is implemented by every managed entity.
// Base must return nil for a nil receiver.
type Object interface {
	Base() *Base
}

// Finalizer is run exactly once, when the last reference is released.
type Finalizer interface {
	Finalize()
}

// Hasher computes a hash of the object state.
type Hasher interface {
	Hash() uint64
}

// Comparer orders an object relative to another one.
type Comparer interface {
	Compare(other Object) int
}

// Identifier computes a stable UUID for an object.
type Identifier interface {
	UUID() uuid.UUID
}

// ---------------------------------------------------------------------------
// Base
// ---------------------------------------------------------------------------

// serials orders objects for lock acquisition.
var serials atomic.Uint64

// Base holds the state shared by all objects: the type descriptor, the
// reference count and the lock guarding the embedding object's fields.
type Base struct {
	mu        sync.RWMutex
	typ       atomic.Pointer[Type]
	refs      atomic.Int64
	serial    uint64
	finalized atomic.Bool
}

// Init initializes an object with one owner, whether embedded in a
// caller-owned struct or built by a New constructor.
// The type can only be set once.
func (b *Base) Init(t *Type) error {
	if b == nil || t == nil {
		return ErrInvalid
	}
	if !b.typ.CompareAndSwap(nil, t) {
		return fmt.Errorf("object: type already set to %s: %w", b.typ.Load(), ErrInvalid)
	}
	b.serial = serials.Add(1)
	b.refs.Store(1)
	return nil
}

// Type returns the type descriptor, nil if uninitialized.
func (b *Base) Type() *Type {
	if b == nil {
		return nil
	}
	return b.typ.Load()
}

// Refs returns the current reference count.
func (b *Base) Refs() int64 {
	if b == nil {
		return 0
	}
	return b.refs.Load()
}

// Released reports whether the last reference is gone.
func (b *Base) Released() bool {
	return b != nil && b.finalized.Load()
}

// Serial is the creation order of the object.
func (b *Base) Serial() uint64 {
	if b == nil {
		return 0
	}
	return b.serial
}

func (b *Base) RLock()   { b.mu.RLock() }
func (b *Base) RUnlock() { b.mu.RUnlock() }
func (b *Base) Lock()    { b.mu.Lock() }
func (b *Base) Unlock()  { b.mu.Unlock() }

// ---------------------------------------------------------------------------
// Reference counting
// ---------------------------------------------------------------------------

func baseOf(o Object) *Base {
	if o == nil {
		return nil
	}
	return o.Base()
}

// GetRef acquires a reference and returns o. Nil is tolerated.
func GetRef[T Object](o T) T {
	if b := baseOf(o); b != nil && !b.finalized.Load() {
		b.refs.Add(1)
	}
	return o
}

// Unref releases a reference. When the count reaches zero the object's
// Finalizer runs synchronously on the calling goroutine. Unref reports
// whether this call finalized the object; nil is tolerated.
func Unref(o Object) bool {
	b := baseOf(o)
	if b == nil || b.finalized.Load() {
		return false
	}
	if b.refs.Add(-1) > 0 {
		return false
	}
	if !b.finalized.CompareAndSwap(false, true) {
		return false
	}
	if f, ok := o.(Finalizer); ok {
		f.Finalize()
	}
	return true
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// TypeOf returns the type of o, nil for absent or uninitialized objects.
func TypeOf(o Object) *Type {
	return baseOf(o).Type()
}

// IsA reports whether o is an instance of t.
func IsA(o Object, t *Type) bool {
	return TypeOf(o).IsA(t)
}

// Compare orders two objects. It uses a's Comparer when present and the
// creation order otherwise, so the result is always consistent.
func Compare(a, b Object) int {
	if c, ok := a.(Comparer); ok && baseOf(a) != nil {
		return c.Compare(b)
	}
	sa, sb := baseOf(a).Serial(), baseOf(b).Serial()
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

// Hash returns the object's hash if its type supports hashing.
func Hash(o Object) (uint64, error) {
	if baseOf(o) == nil {
		return 0, ErrInvalid
	}
	h, ok := o.(Hasher)
	if !ok {
		return 0, fmt.Errorf("hash %s: %w", TypeOf(o), ErrUnsupported)
	}
	return h.Hash(), nil
}

// UUID returns the object's stable UUID if its type defines one.
func UUID(o Object) (uuid.UUID, error) {
	if baseOf(o) == nil {
		return uuid.Nil, ErrInvalid
	}
	id, ok := o.(Identifier)
	if !ok {
		return uuid.Nil, fmt.Errorf("uuid %s: %w", TypeOf(o), ErrUnsupported)
	}
	return id.UUID(), nil
}

// IsUnsupported reports whether err signals a missing capability.
func IsUnsupported(err error) bool {
	return errors.Is(err, unix.EOPNOTSUPP)
}
