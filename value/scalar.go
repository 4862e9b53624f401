package value

// ---------------------------------------------------------------------------
// Nil
// ---------------------------------------------------------------------------

// Nil is the absent value.
type Nil struct {
	Header
}

// NewNil returns an initialized Nil.
func NewNil() *Nil {
	v := &Nil{}
	v.Init()
	return v
}

// Init sets the tag.
func (v *Nil) Init() {
	if v != nil {
		v.init(TypeNil, nil)
	}
}

func (v *Nil) Type() Type {
	if v == nil {
		return TypeValue
	}
	return v.typ
}

func (v *Nil) Deinit() {
	if v != nil {
		v.deinit()
	}
}

// ---------------------------------------------------------------------------
// Bool
// ---------------------------------------------------------------------------

// Bool holds a boolean.
type Bool struct {
	Header
	b bool
}

// NewBool returns an initialized Bool holding b.
func NewBool(b bool) *Bool {
	v := &Bool{}
	v.Init()
	v.b = b
	return v
}

// Init sets the tag; the payload starts false.
func (v *Bool) Init() {
	if v != nil {
		v.init(TypeBool, nil)
		v.b = false
	}
}

func (v *Bool) Type() Type {
	if v == nil {
		return TypeValue
	}
	return v.typ
}

func (v *Bool) Deinit() {
	if v != nil {
		v.deinit()
	}
}

// Get returns the payload.
func (v *Bool) Get() (bool, error) {
	if v == nil {
		return false, ErrInvalid
	}
	if v.typ != TypeBool {
		return false, mismatch(TypeBool, v.typ)
	}
	return v.b, nil
}

// Set replaces the payload.
func (v *Bool) Set(b bool) error {
	if v == nil {
		return ErrInvalid
	}
	if v.typ != TypeBool {
		return mismatch(TypeBool, v.typ)
	}
	v.b = b
	return nil
}

// ---------------------------------------------------------------------------
// Int
// ---------------------------------------------------------------------------

// Int holds a signed 64 bit integer.
type Int struct {
	Header
	i int64
}

// NewInt returns an initialized Int holding i.
func NewInt(i int64) *Int {
	v := &Int{}
	v.Init()
	v.i = i
	return v
}

// Init sets the tag; the payload starts at zero.
func (v *Int) Init() {
	if v != nil {
		v.init(TypeInt, nil)
		v.i = 0
	}
}

func (v *Int) Type() Type {
	if v == nil {
		return TypeValue
	}
	return v.typ
}

func (v *Int) Deinit() {
	if v != nil {
		v.deinit()
	}
}

// Get returns the payload.
func (v *Int) Get() (int64, error) {
	if v == nil {
		return 0, ErrInvalid
	}
	if v.typ != TypeInt {
		return 0, mismatch(TypeInt, v.typ)
	}
	return v.i, nil
}

// Set replaces the payload.
func (v *Int) Set(i int64) error {
	if v == nil {
		return ErrInvalid
	}
	if v.typ != TypeInt {
		return mismatch(TypeInt, v.typ)
	}
	v.i = i
	return nil
}

// Compare orders two integers. The sign convention is inverted relative
// to the usual one: it returns 1 when v is smaller than other, -1 when v
// is larger and 0 when both are equal. Clients depend on this ordering.
func (v *Int) Compare(other *Int) (int, error) {
	a, err := v.Get()
	if err != nil {
		return 0, err
	}
	b, err := other.Get()
	if err != nil {
		return 0, err
	}
	switch {
	case a == b:
		return 0, nil
	case a > b:
		return -1, nil
	}
	return 1, nil
}
