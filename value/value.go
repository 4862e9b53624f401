// Package value implements the tagged dynamic values manipulated by the
// action processor.
//
// The variant set is closed: Nil, Bool, Int, Str, ObjectID and Named. Each
// variant carries a Header holding its type tag and an optional finalizer.
// A variant whose tag is still TypeValue has not been initialized and holds
// no data; every accessor rejects it.
package value

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/waysome/waysome/object"
)

// Type is the tag of a value.
type Type uint8

const (
	TypeValue Type = iota // untyped base, never holds data
	TypeNil
	TypeBool
	TypeInt
	TypeString
	TypeObjectID
	TypeNamed
)

var typeNames = [...]string{
	TypeValue:    "value",
	TypeNil:      "nil",
	TypeBool:     "bool",
	TypeInt:      "int",
	TypeString:   "string",
	TypeObjectID: "object_id",
	TypeNamed:    "named",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// ErrInvalid is returned for absent receivers and tag mismatches.
var ErrInvalid = fmt.Errorf("value: invalid argument: %w", unix.EINVAL)

func mismatch(want, got Type) error {
	return fmt.Errorf("value: want %s, have %s: %w", want, got, ErrInvalid)
}

// Value is implemented by every variant.
type Value interface {
	// Type returns the tag, TypeValue for nil or uninitialized values.
	Type() Type

	// Deinit runs the variant finalizer, releasing owned references.
	// It has an effect at most once.
	Deinit()
}

// Header is the part shared by all variants.
type Header struct {
	typ Type
	fin func()
}

func (h *Header) init(t Type, fin func()) {
	h.typ = t
	h.fin = fin
}

func (h *Header) deinit() {
	if f := h.fin; f != nil {
		h.fin = nil
		f()
	}
}

// TypeOf returns the tag of v, TypeValue when v is nil.
func TypeOf(v Value) Type {
	if v == nil {
		return TypeValue
	}
	return v.Type()
}

// Deinit deinitializes v if it is not nil.
func Deinit(v Value) {
	if v != nil {
		v.Deinit()
	}
}

// Copy returns an independent value equal to v. References held by v are
// acquired again for the copy. Copy of nil or an uninitialized value is nil.
func Copy(v Value) Value {
	switch t := v.(type) {
	case *Nil:
		if t.Type() == TypeNil {
			return NewNil()
		}
	case *Bool:
		if b, err := t.Get(); err == nil {
			return NewBool(b)
		}
	case *Int:
		if i, err := t.Get(); err == nil {
			return NewInt(i)
		}
	case *Str:
		if s, err := t.Get(); err == nil {
			return NewStr(s)
		}
	case *ObjectID:
		if o, err := t.Get(); err == nil {
			return NewObjectID(o)
		}
	case *Named:
		if t.Type() == TypeNamed {
			return NewNamed(t.name, Copy(t.v))
		}
	}
	return nil
}

// Describe renders v for logs and diagnostics.
func Describe(v Value) string {
	switch t := v.(type) {
	case *Nil:
		return "nil"
	case *Bool:
		b, _ := t.Get()
		return strconv.FormatBool(b)
	case *Int:
		i, _ := t.Get()
		return strconv.FormatInt(i, 10)
	case *Str:
		raw, _ := t.Raw()
		return strconv.Quote(raw)
	case *ObjectID:
		o, _ := t.Get()
		if o == nil {
			return "object(nil)"
		}
		return fmt.Sprintf("object(%s#%d)", object.TypeOf(o), o.Base().Serial())
	case *Named:
		if t.Type() != TypeNamed {
			break
		}
		name := "?"
		if t.name != nil {
			name = t.name.String()
		}
		return name + "=" + Describe(t.v)
	}
	return "<" + TypeOf(v).String() + ">"
}
