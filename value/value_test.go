package value

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/waysome/waysome/object"
)

func mustString(t *testing.T, raw string) *object.String {
	t.Helper()
	s, err := object.NewStringFromRaw(raw)
	if err != nil {
		t.Fatalf("NewStringFromRaw(%q): %v", raw, err)
	}
	return s
}

// ---------------------------------------------------------------------------
// Scalars
// ---------------------------------------------------------------------------

func TestIntRoundTrip(t *testing.T) {
	v := NewInt(0)
	for _, x := range []int64{0, 1, -1, 42, math.MaxInt64, math.MinInt64} {
		if err := v.Set(x); err != nil {
			t.Fatalf("Set(%d): %v", x, err)
		}
		got, err := v.Get()
		if err != nil || got != x {
			t.Errorf("Get after Set(%d) = %d, %v", x, got, err)
		}
	}
}

func TestBoolRoundTrip(t *testing.T) {
	v := NewBool(false)
	for _, b := range []bool{true, false, true} {
		_ = v.Set(b)
		if got, err := v.Get(); err != nil || got != b {
			t.Errorf("Get after Set(%v) = %v, %v", b, got, err)
		}
	}
}

func TestAccessorsCheckTag(t *testing.T) {
	var uninit Int
	if _, err := uninit.Get(); !errors.Is(err, unix.EINVAL) {
		t.Errorf("Get on uninitialized Int = %v, want EINVAL", err)
	}
	if err := uninit.Set(1); !errors.Is(err, ErrInvalid) {
		t.Errorf("Set on uninitialized Int = %v, want ErrInvalid", err)
	}

	var nilInt *Int
	if _, err := nilInt.Get(); !errors.Is(err, ErrInvalid) {
		t.Errorf("Get on nil Int = %v, want ErrInvalid", err)
	}
	var nilBool *Bool
	if err := nilBool.Set(true); !errors.Is(err, ErrInvalid) {
		t.Errorf("Set on nil Bool = %v, want ErrInvalid", err)
	}
	var b Bool
	if _, err := b.Get(); !errors.Is(err, ErrInvalid) {
		t.Errorf("Get on uninitialized Bool = %v, want ErrInvalid", err)
	}
	var s Str
	if _, err := s.Get(); !errors.Is(err, ErrInvalid) {
		t.Errorf("Get on uninitialized Str = %v, want ErrInvalid", err)
	}
}

func TestTypeOfNilAndUninitialized(t *testing.T) {
	if TypeOf(nil) != TypeValue {
		t.Error("TypeOf(nil) should be TypeValue")
	}
	var n *Named
	if TypeOf(n) != TypeValue {
		t.Error("TypeOf(nil *Named) should be TypeValue")
	}
	if TypeOf(&Int{}) != TypeValue {
		t.Error("uninitialized Int should be TypeValue")
	}
	if TypeOf(NewNil()) != TypeNil {
		t.Error("NewNil should be TypeNil")
	}
}

// ---------------------------------------------------------------------------
// Reference-carrying variants
// ---------------------------------------------------------------------------

func TestStrOwnsOneReference(t *testing.T) {
	s := mustString(t, "text")
	v := NewStr(s)
	if got := s.Base().Refs(); got != 2 {
		t.Fatalf("Refs with Str = %d, want 2", got)
	}
	raw, err := v.Raw()
	if err != nil || raw != "text" {
		t.Errorf("Raw = %q, %v", raw, err)
	}

	v.Deinit()
	if got := s.Base().Refs(); got != 1 {
		t.Fatalf("Refs after Deinit = %d, want 1", got)
	}
	v.Deinit()
	if got := s.Base().Refs(); got != 1 {
		t.Fatalf("Refs after second Deinit = %d, want 1", got)
	}
	object.Unref(s)
	if !s.Base().Released() {
		t.Error("string should be released")
	}
}

func TestSetAcquiresBeforeReleasing(t *testing.T) {
	s := mustString(t, "self")
	v := NewStr(s)
	object.Unref(s)

	// v holds the only reference; assigning the same string must keep it.
	if err := v.Set(s); err != nil {
		t.Fatalf("Set(self): %v", err)
	}
	if s.Base().Released() {
		t.Fatal("self-assignment released the string")
	}
	if got := s.Base().Refs(); got != 1 {
		t.Errorf("Refs = %d, want 1", got)
	}

	other := mustString(t, "other")
	_ = v.Set(other)
	if !s.Base().Released() {
		t.Error("replaced string should be released")
	}
	object.Unref(other)
	v.Deinit()
	if !other.Base().Released() {
		t.Error("string should be released with the value")
	}
}

func TestObjectIDReference(t *testing.T) {
	s := mustString(t, "obj")
	v := NewObjectID(s)
	o, err := v.Get()
	if err != nil || o != object.Object(s) {
		t.Fatalf("Get = %v, %v", o, err)
	}
	if got := s.Base().Refs(); got != 2 {
		t.Errorf("Refs = %d, want 2", got)
	}
	v.Deinit()
	object.Unref(s)
	if !s.Base().Released() {
		t.Error("object should be released")
	}
}

func TestNamedOwnsNameAndValue(t *testing.T) {
	name := mustString(t, "key")
	payload := mustString(t, "payload")
	n := NewNamed(name, NewStr(payload))
	object.Unref(payload)

	if got := name.Base().Refs(); got != 2 {
		t.Fatalf("name Refs = %d, want 2", got)
	}
	got, err := n.Name()
	if err != nil || got != name {
		t.Fatalf("Name = %v, %v", got, err)
	}
	object.Unref(got)

	inner, err := n.Value()
	if err != nil || TypeOf(inner) != TypeString {
		t.Fatalf("Value = %v, %v", inner, err)
	}

	n.Deinit()
	if got := name.Base().Refs(); got != 1 {
		t.Errorf("name Refs after Deinit = %d, want 1", got)
	}
	if !payload.Base().Released() {
		t.Error("bound value should be released with the binding")
	}
	object.Unref(name)
}

func TestCopyAcquiresReferences(t *testing.T) {
	name := mustString(t, "k")
	s := mustString(t, "v")
	n := NewNamed(name, NewStr(s))

	c := Copy(n)
	if !Equal(n, c) {
		t.Fatalf("copy %s differs from %s", Describe(c), Describe(n))
	}
	if got := s.Base().Refs(); got != 3 {
		t.Errorf("string Refs = %d, want 3 (creator, original, copy)", got)
	}

	n.Deinit()
	if raw, _ := c.(*Named).v.(*Str).Raw(); raw != "v" {
		t.Errorf("copy lost its value: %q", raw)
	}
	c.Deinit()
	object.Unref(name)
	object.Unref(s)
	if !s.Base().Released() || !name.Base().Released() {
		t.Error("strings should be released")
	}
}

func TestCopyScalars(t *testing.T) {
	for _, v := range []Value{NewNil(), NewBool(true), NewInt(-7)} {
		c := Copy(v)
		if !Equal(v, c) {
			t.Errorf("Copy(%s) = %s", Describe(v), Describe(c))
		}
	}
	if Copy(nil) != nil || Copy(&Int{}) != nil {
		t.Error("Copy of absent values should be nil")
	}
}

func TestDescribe(t *testing.T) {
	name := mustString(t, "answer")
	defer object.Unref(name)
	n := NewNamed(name, NewInt(42))
	defer n.Deinit()

	tests := []struct {
		v    Value
		want string
	}{
		{NewNil(), "nil"},
		{NewBool(true), "true"},
		{NewInt(-3), "-3"},
		{n, "answer=42"},
		{nil, "<value>"},
	}
	for _, tt := range tests {
		if got := Describe(tt.v); got != tt.want {
			t.Errorf("Describe = %q, want %q", got, tt.want)
		}
	}
}
