package object

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	xunicode "golang.org/x/text/encoding/unicode"
)

// StringType is the type of String objects.
var StringType = &Type{Name: "ws_string", Super: ObjectType}

var utf16le = xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM)

// String is a mutable, lockable Unicode text object. The text is held as
// UTF-16 code units; lengths and offsets count code units.
type String struct {
	base Base
	buf  []uint16
}

// NewString creates an empty string.
func NewString() *String {
	s := &String{buf: []uint16{}}
	_ = s.base.Init(StringType)
	return s
}

// NewStringFromRaw creates a string holding the UTF-8 text raw.
func NewStringFromRaw(raw string) (*String, error) {
	s := NewString()
	if err := s.SetFromRaw(raw); err != nil {
		Unref(s)
		return nil, err
	}
	return s, nil
}

// Init initializes an embedded, empty string.
func (s *String) Init() error {
	if s == nil {
		return ErrInvalid
	}
	if err := s.base.Init(StringType); err != nil {
		return err
	}
	s.buf = []uint16{}
	return nil
}

func (s *String) Base() *Base {
	if s == nil {
		return nil
	}
	return &s.base
}

// Len returns the number of code units.
func (s *String) Len() int {
	if s == nil {
		return 0
	}
	s.base.RLock()
	defer s.base.RUnlock()
	return len(s.buf)
}

// SetFrom replaces the contents of s with a copy of other.
func (s *String) SetFrom(other *String) error {
	if s == nil || other == nil {
		return ErrInvalid
	}
	unlock, err := LockPair(s, other)
	if err != nil {
		return err
	}
	defer unlock()
	if s.buf == nil || other.buf == nil {
		return ErrReleased
	}
	s.buf = append(make([]uint16, 0, len(other.buf)), other.buf...)
	return nil
}

// Cat appends the text of other to s and returns s.
func (s *String) Cat(other *String) (*String, error) {
	if s == nil || other == nil {
		return nil, ErrInvalid
	}
	unlock, err := LockPair(s, other)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if s.buf == nil || other.buf == nil {
		return nil, ErrReleased
	}
	buf := make([]uint16, 0, len(s.buf)+len(other.buf))
	buf = append(buf, s.buf...)
	s.buf = append(buf, other.buf...)
	return s, nil
}

// Dup returns a new string with the same text.
func (s *String) Dup() (*String, error) {
	n := NewString()
	if err := n.SetFrom(s); err != nil {
		Unref(n)
		return nil, err
	}
	return n, nil
}

// Cmp compares s and other by code unit: negative if s sorts first,
// zero if equal, positive otherwise.
func (s *String) Cmp(other *String) int {
	if s == nil || other == nil {
		return 0
	}
	unlock, err := RLockPair(s, other)
	if err != nil {
		return 0
	}
	defer unlock()
	return compareUnits(s.buf, other.buf, -1)
}

// NCmp compares at most n code units of s, starting at offset, with the
// start of other.
func (s *String) NCmp(other *String, offset, n int) (int, error) {
	if s == nil || other == nil || n < 0 {
		return 0, ErrInvalid
	}
	unlock, err := RLockPair(s, other)
	if err != nil {
		return 0, err
	}
	defer unlock()
	if offset < 0 || offset > len(s.buf) {
		return 0, fmt.Errorf("string: offset %d of %d: %w", offset, len(s.buf), ErrInvalid)
	}
	return compareUnits(s.buf[offset:], other.buf, n), nil
}

// Contains reports whether other occurs within s.
func (s *String) Contains(other *String) bool {
	if s == nil || other == nil {
		return false
	}
	unlock, err := RLockPair(s, other)
	if err != nil {
		return false
	}
	defer unlock()
	return indexUnits(s.buf, other.buf) >= 0
}

// Raw returns the text as UTF-8.
func (s *String) Raw() (string, error) {
	if s == nil {
		return "", ErrInvalid
	}
	s.base.RLock()
	released := s.buf == nil
	b := unitsToBytes(s.buf)
	s.base.RUnlock()
	if released {
		return "", ErrReleased
	}

	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("string: to utf-8: %w", err)
	}
	return string(out), nil
}

// SetFromRaw replaces the text with the UTF-8 string raw. The conversion
// happens before the lock is taken, so a failed conversion leaves s as is.
func (s *String) SetFromRaw(raw string) error {
	if s == nil {
		return ErrInvalid
	}
	if !utf8.ValidString(raw) {
		return fmt.Errorf("string: malformed utf-8: %w", ErrInvalid)
	}
	b, err := utf16le.NewEncoder().Bytes([]byte(raw))
	if err != nil {
		return fmt.Errorf("string: from utf-8: %w", err)
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}

	s.base.Lock()
	defer s.base.Unlock()
	if s.buf == nil {
		return ErrReleased
	}
	s.buf = units
	return nil
}

// Hash implements Hasher.
func (s *String) Hash() uint64 {
	if s == nil {
		return 0
	}
	s.base.RLock()
	defer s.base.RUnlock()
	return xxhash.Sum64(unitsToBytes(s.buf))
}

// Compare implements Comparer. Strings order before other object types.
func (s *String) Compare(other Object) int {
	o, ok := other.(*String)
	if !ok {
		return -1
	}
	return s.Cmp(o)
}

// Finalize implements Finalizer.
func (s *String) Finalize() {
	s.base.Lock()
	s.buf = nil
	s.base.Unlock()
}

func (s *String) String() string {
	raw, err := s.Raw()
	if err != nil {
		return "<invalid string>"
	}
	return raw
}

// ---------------------------------------------------------------------------
// Code unit helpers
// ---------------------------------------------------------------------------

// compareUnits compares a and b lexicographically, looking at no more than
// n units when n >= 0.
func compareUnits(a, b []uint16, n int) int {
	if n >= 0 {
		if len(a) > n {
			a = a[:n]
		}
		if len(b) > n {
			b = b[:n]
		}
	}
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

func indexUnits(s, sub []uint16) int {
	if len(sub) == 0 {
		return 0
	}
outer:
	for i := 0; i+len(sub) <= len(s); i++ {
		for j := range sub {
			if s[i+j] != sub[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

func unitsToBytes(units []uint16) []byte {
	b := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[2*i:], u)
	}
	return b
}
