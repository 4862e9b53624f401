package value

import (
	"github.com/waysome/waysome/object"
)

// ---------------------------------------------------------------------------
// Str
// ---------------------------------------------------------------------------

// Str is the string variant. It owns one reference to its String object.
type Str struct {
	Header
	s *object.String
}

// NewStr returns a Str referencing s. A new reference to s is acquired.
func NewStr(s *object.String) *Str {
	v := &Str{}
	v.Init()
	_ = v.Set(s)
	return v
}

// NewStrFromRaw returns a Str holding a fresh String with the given text.
func NewStrFromRaw(raw string) (*Str, error) {
	s, err := object.NewStringFromRaw(raw)
	if err != nil {
		return nil, err
	}
	v := NewStr(s)
	object.Unref(s)
	return v, nil
}

// Init sets the tag and installs the finalizer releasing the string.
func (v *Str) Init() {
	if v != nil {
		v.s = nil
		v.init(TypeString, v.release)
	}
}

func (v *Str) release() {
	object.Unref(v.s)
	v.s = nil
}

func (v *Str) Type() Type {
	if v == nil {
		return TypeValue
	}
	return v.typ
}

func (v *Str) Deinit() {
	if v != nil {
		v.deinit()
	}
}

// Get returns the referenced String without acquiring a reference; it is
// valid as long as v holds it.
func (v *Str) Get() (*object.String, error) {
	if v == nil {
		return nil, ErrInvalid
	}
	if v.typ != TypeString {
		return nil, mismatch(TypeString, v.typ)
	}
	return v.s, nil
}

// Set makes v reference s. The new reference is acquired before the old
// one is released.
func (v *Str) Set(s *object.String) error {
	if v == nil {
		return ErrInvalid
	}
	if v.typ != TypeString {
		return mismatch(TypeString, v.typ)
	}
	object.GetRef(s)
	old := v.s
	v.s = s
	object.Unref(old)
	return nil
}

// Raw returns the text of the referenced string.
func (v *Str) Raw() (string, error) {
	s, err := v.Get()
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	return s.Raw()
}

// ---------------------------------------------------------------------------
// ObjectID
// ---------------------------------------------------------------------------

// ObjectID references an arbitrary object. It owns one reference.
type ObjectID struct {
	Header
	obj object.Object
}

// NewObjectID returns an ObjectID referencing o, acquiring a reference.
func NewObjectID(o object.Object) *ObjectID {
	v := &ObjectID{}
	v.Init()
	_ = v.Set(o)
	return v
}

// Init sets the tag and installs the finalizer releasing the object.
func (v *ObjectID) Init() {
	if v != nil {
		v.obj = nil
		v.init(TypeObjectID, v.release)
	}
}

func (v *ObjectID) release() {
	object.Unref(v.obj)
	v.obj = nil
}

func (v *ObjectID) Type() Type {
	if v == nil {
		return TypeValue
	}
	return v.typ
}

func (v *ObjectID) Deinit() {
	if v != nil {
		v.deinit()
	}
}

// Get returns the referenced object without acquiring a reference.
func (v *ObjectID) Get() (object.Object, error) {
	if v == nil {
		return nil, ErrInvalid
	}
	if v.typ != TypeObjectID {
		return nil, mismatch(TypeObjectID, v.typ)
	}
	return v.obj, nil
}

// Set makes v reference o, acquiring before releasing.
func (v *ObjectID) Set(o object.Object) error {
	if v == nil {
		return ErrInvalid
	}
	if v.typ != TypeObjectID {
		return mismatch(TypeObjectID, v.typ)
	}
	object.GetRef(o)
	old := v.obj
	v.obj = o
	object.Unref(old)
	return nil
}
