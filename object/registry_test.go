package object

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestRegistryHoldsAReference(t *testing.T) {
	r := NewRegistry()
	w := newWidget(widgetType)

	id, err := r.Register(w)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := w.base.Refs(); got != 2 {
		t.Fatalf("Refs after Register = %d, want 2", got)
	}

	again, err := r.Register(w)
	if err != nil || again != id {
		t.Fatalf("second Register = %s, %v; want %s", again, err, id)
	}

	o, err := r.Lookup(id)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if o != Object(w) {
		t.Fatal("Lookup returned a different object")
	}
	Unref(o)

	Unref(w)
	if w.finalized != 0 {
		t.Fatal("registered object finalized")
	}
	if err := r.Remove(id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if w.finalized != 1 {
		t.Errorf("finalized = %d after Remove, want 1", w.finalized)
	}
}

func TestRegistryUsesIdentifier(t *testing.T) {
	r := NewRegistry()
	o := &identified{id: uuid.New()}
	_ = o.base.Init(widgetType)

	id, err := r.Register(o)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id != o.id {
		t.Errorf("id = %s, want the object's own %s", id, o.id)
	}
	if got, ok := r.IDOf(o); !ok || got != id {
		t.Errorf("IDOf = %s, %v", got, ok)
	}
	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len after Clear = %d", r.Len())
	}
}

func TestRegistryLookupMissing(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Lookup(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup = %v, want ErrNotFound", err)
	}
	if err := r.Remove(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove = %v, want ErrNotFound", err)
	}
}

func TestRegistryRejectsReleased(t *testing.T) {
	r := NewRegistry()
	w := newWidget(widgetType)
	Unref(w)
	if _, err := r.Register(w); !errors.Is(err, ErrInvalid) {
		t.Errorf("Register(released) = %v, want ErrInvalid", err)
	}
}
