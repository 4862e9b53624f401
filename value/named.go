package value

import (
	"github.com/waysome/waysome/object"
)

// Named binds a value to a name. It owns a reference to the name and owns
// the bound value, which is deinitialized together with the binding.
type Named struct {
	Header
	name *object.String
	v    Value
}

// NewNamed binds v to name. A reference to name is acquired; v is taken
// over by the binding.
func NewNamed(name *object.String, v Value) *Named {
	n := &Named{}
	n.Init()
	_ = n.SetName(name)
	_ = n.SetValue(v)
	return n
}

// Init sets the tag and installs the finalizer.
func (n *Named) Init() {
	if n != nil {
		n.name = nil
		n.v = nil
		n.init(TypeNamed, n.release)
	}
}

func (n *Named) release() {
	object.Unref(n.name)
	n.name = nil
	Deinit(n.v)
	n.v = nil
}

func (n *Named) Type() Type {
	if n == nil {
		return TypeValue
	}
	return n.typ
}

func (n *Named) Deinit() {
	if n != nil {
		n.deinit()
	}
}

func (n *Named) check() error {
	if n == nil {
		return ErrInvalid
	}
	if n.typ != TypeNamed {
		return mismatch(TypeNamed, n.typ)
	}
	return nil
}

// SetName replaces the name, acquiring the new reference first.
func (n *Named) SetName(name *object.String) error {
	if err := n.check(); err != nil {
		return err
	}
	object.GetRef(name)
	old := n.name
	n.name = name
	object.Unref(old)
	return nil
}

// Name returns the name with a new reference the caller must release.
func (n *Named) Name() (*object.String, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	return object.GetRef(n.name), nil
}

// SetValue replaces the bound value. The previous value is deinitialized
// unless it is v itself.
func (n *Named) SetValue(v Value) error {
	if err := n.check(); err != nil {
		return err
	}
	old := n.v
	n.v = v
	if old != nil && old != v {
		old.Deinit()
	}
	return nil
}

// Value returns the bound value. It remains owned by n.
func (n *Named) Value() (Value, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	return n.v, nil
}
