package action

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/waysome/waysome/value"
)

// Func implements a command. It sees the statement's frame, which holds
// the argument values on entry; whatever it leaves there is the result.
type Func func(c *Call) error

// Call is the execution environment of one statement.
type Call struct {
	Ctx     context.Context
	Command string
	Frame   *Frame

	stack *Stack
}

// Context returns the value of a well-known context slot (GlobalContextSlot
// or EventContextSlot). It stays owned by the stack.
func (c *Call) Context(slot int) (value.Value, error) {
	if slot != GlobalContextSlot && slot != EventContextSlot {
		return nil, fmt.Errorf("action: context slot %d: %w", slot, ErrInvalid)
	}
	return c.stack.ValueAt(slot, value.TypeValue)
}

// SetContext replaces the value of a well-known context slot, taking
// over v.
func (c *Call) SetContext(slot int, v value.Value) error {
	if slot != GlobalContextSlot && slot != EventContextSlot {
		value.Deinit(v)
		return fmt.Errorf("action: context slot %d: %w", slot, ErrInvalid)
	}
	s, err := c.stack.SlotAt(slot)
	if err != nil {
		value.Deinit(v)
		return err
	}
	return s.Set(v)
}

// Registry maps command names to implementations. It is safe for
// concurrent use; lookups happen once per processor initialization.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds a command. Names are unique.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" || fn == nil {
		return ErrInvalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.funcs[name]; ok {
		return fmt.Errorf("action: command %q: %w", name, ErrExists)
	}
	r.funcs[name] = fn
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(name string, fn Func) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (Func, error) {
	if r == nil {
		return nil, ErrInvalid
	}
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("action: command %q: %w", name, ErrUnknownCommand)
	}
	return fn, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.funcs)
}
