package action

import (
	"fmt"

	"github.com/waysome/waysome/value"
)

const (
	// GlobalContextSlot is the absolute slot holding the global context.
	GlobalContextSlot = 0
	// EventContextSlot is the absolute slot holding the event context.
	EventContextSlot = 1

	// DefaultMaxDepth bounds the number of slots of a stack.
	DefaultMaxDepth = 4096
)

// ---------------------------------------------------------------------------
// Slot
// ---------------------------------------------------------------------------

// Slot holds one value of a stack. A live slot always holds a value; new
// slots hold Nil.
type Slot struct {
	v value.Value
}

// Value returns the held value. It stays owned by the slot.
func (s *Slot) Value() value.Value {
	if s == nil {
		return nil
	}
	return s.v
}

// Set stores v, deinitializing the previous value. The slot takes over v;
// nil or an uninitialized value stores Nil.
func (s *Slot) Set(v value.Value) error {
	if s == nil {
		value.Deinit(v)
		return ErrInvalid
	}
	old := s.v
	s.v = orNil(v)
	if old != nil && old != s.v {
		old.Deinit()
	}
	return nil
}

// take removes the value, leaving the slot empty. The caller owns the
// result.
func (s *Slot) take() value.Value {
	v := s.v
	s.v = nil
	return v
}

func orNil(v value.Value) value.Value {
	if value.TypeOf(v) == value.TypeValue {
		value.Deinit(v)
		return value.NewNil()
	}
	return v
}

// ---------------------------------------------------------------------------
// Stack
// ---------------------------------------------------------------------------

// Stack is the frame-segmented slot sequence a transaction runs on. It is
// owned by a single run and not safe for concurrent use.
type Stack struct {
	slots    []*Slot
	frames   []*Frame
	maxDepth int
}

// NewStack creates an empty stack with its base frame. A maxDepth of zero
// selects DefaultMaxDepth.
func NewStack(maxDepth int) (*Stack, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("action: stack depth %d: %w", maxDepth, ErrInvalid)
	}
	if maxDepth == 0 {
		maxDepth = DefaultMaxDepth
	}
	s := &Stack{maxDepth: maxDepth}
	s.frames = []*Frame{{s: s}}
	return s, nil
}

// Len returns the number of live slots.
func (s *Stack) Len() int {
	if s == nil {
		return 0
	}
	return len(s.slots)
}

// Depth returns the number of open frames, the base frame included.
func (s *Stack) Depth() int {
	if s == nil {
		return 0
	}
	return len(s.frames)
}

// MaxDepth returns the slot limit.
func (s *Stack) MaxDepth() int {
	if s == nil {
		return 0
	}
	return s.maxDepth
}

// Push grows the stack by n Nil slots. If the limit cannot accommodate
// them the stack is left unchanged.
func (s *Stack) Push(n int) error {
	if s == nil || n < 0 {
		return ErrInvalid
	}
	if n > s.maxDepth-len(s.slots) {
		return fmt.Errorf("action: push %d onto %d of %d slots: %w", n, len(s.slots), s.maxDepth, ErrStackLimit)
	}
	for range n {
		s.slots = append(s.slots, &Slot{v: value.NewNil()})
	}
	return nil
}

// StartFrame opens a frame anchored at the current top.
func (s *Stack) StartFrame() *Frame {
	if s == nil {
		return nil
	}
	f := &Frame{s: s, base: len(s.slots), index: len(s.frames)}
	s.frames = append(s.frames, f)
	return f
}

// EndFrame closes f, which must be the innermost frame other than the base
// frame. The slots of f remain on the stack and become part of the
// enclosing frame.
func (s *Stack) EndFrame(f *Frame) error {
	if s == nil || f == nil || f.s != s || f.closed || f.index == 0 {
		return ErrInvalid
	}
	if f.index != len(s.frames)-1 {
		return fmt.Errorf("action: frame %d is not innermost: %w", f.index, ErrInvalid)
	}
	f.closed = true
	s.frames[f.index] = nil
	s.frames = s.frames[:f.index]
	return nil
}

// Current returns the innermost open frame.
func (s *Stack) Current() *Frame {
	if s == nil || len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Bottom returns the absolute first slot, nil on an empty stack.
func (s *Stack) Bottom() *Slot {
	if s == nil || len(s.slots) == 0 {
		return nil
	}
	return s.slots[0]
}

// SlotAt resolves an absolute index (zero and up from the bottom) or a
// relative one (negative, -1 being the top).
func (s *Stack) SlotAt(i int) (*Slot, error) {
	if s == nil {
		return nil, ErrInvalid
	}
	j := i
	if j < 0 {
		j += len(s.slots)
	}
	if j < 0 || j >= len(s.slots) {
		return nil, fmt.Errorf("action: slot %d of %d: %w", i, len(s.slots), ErrRange)
	}
	return s.slots[j], nil
}

// ValueAt returns the value at index i as SlotAt resolves it. A hint other
// than value.TypeValue requires the value to carry that tag.
func (s *Stack) ValueAt(i int, hint value.Type) (value.Value, error) {
	slot, err := s.SlotAt(i)
	if err != nil {
		return nil, err
	}
	return checkHint(slot.v, hint)
}

// Deinit releases every slot. It is safe on a nil or partially built
// stack and may be called more than once.
func (s *Stack) Deinit() {
	if s == nil {
		return
	}
	for i := len(s.slots) - 1; i >= 0; i-- {
		value.Deinit(s.slots[i].take())
		s.slots[i] = nil
	}
	s.slots = nil
	for _, f := range s.frames {
		if f != nil {
			f.closed = true
		}
	}
	s.frames = nil
}

func (s *Stack) truncate(n int) {
	for i := len(s.slots) - 1; i >= n; i-- {
		value.Deinit(s.slots[i].take())
		s.slots[i] = nil
	}
	s.slots = s.slots[:n]
}

func checkHint(v value.Value, hint value.Type) (value.Value, error) {
	if hint != value.TypeValue && value.TypeOf(v) != hint {
		return nil, fmt.Errorf("action: want %s, have %s: %w", hint, value.TypeOf(v), ErrInvalid)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Frame
// ---------------------------------------------------------------------------

// Frame is a handle on one segment of a stack. All of its accessors are
// relative to the frame; none reaches into an enclosing frame. Only the
// innermost frame may grow or shrink.
type Frame struct {
	s      *Stack
	base   int
	index  int
	closed bool
}

func (f *Frame) live() error {
	if f == nil || f.s == nil || f.closed {
		return ErrInvalid
	}
	return nil
}

func (f *Frame) innermost() error {
	if err := f.live(); err != nil {
		return err
	}
	if f.index != len(f.s.frames)-1 {
		return fmt.Errorf("action: frame %d is not innermost: %w", f.index, ErrInvalid)
	}
	return nil
}

func (f *Frame) end() int {
	if f.index+1 < len(f.s.frames) {
		return f.s.frames[f.index+1].base
	}
	return len(f.s.slots)
}

// Len returns the number of slots in the frame.
func (f *Frame) Len() int {
	if f.live() != nil {
		return 0
	}
	return f.end() - f.base
}

// At resolves a frame index: zero and up from the frame bottom, negative
// from the frame top.
func (f *Frame) At(i int) (*Slot, error) {
	if err := f.live(); err != nil {
		return nil, err
	}
	n := f.end() - f.base
	j := i
	if j < 0 {
		j += n
	}
	if j < 0 || j >= n {
		return nil, fmt.Errorf("action: frame slot %d of %d: %w", i, n, ErrRange)
	}
	return f.s.slots[f.base+j], nil
}

// Value returns the value at frame index i, checking the hint like
// Stack.ValueAt.
func (f *Frame) Value(i int, hint value.Type) (value.Value, error) {
	slot, err := f.At(i)
	if err != nil {
		return nil, err
	}
	return checkHint(slot.v, hint)
}

// Push appends v to the frame, which takes it over. On failure v is
// deinitialized and the stack is unchanged.
func (f *Frame) Push(v value.Value) error {
	if err := f.innermost(); err != nil {
		value.Deinit(v)
		return err
	}
	if err := f.s.Push(1); err != nil {
		value.Deinit(v)
		return err
	}
	return f.s.slots[len(f.s.slots)-1].Set(v)
}

// Pop removes the top value of the frame and hands it to the caller.
func (f *Frame) Pop() (value.Value, error) {
	if err := f.innermost(); err != nil {
		return nil, err
	}
	if f.Len() == 0 {
		return nil, fmt.Errorf("action: pop from empty frame: %w", ErrRange)
	}
	last := len(f.s.slots) - 1
	v := f.s.slots[last].take()
	f.s.slots[last] = nil
	f.s.slots = f.s.slots[:last]
	return v, nil
}

// Drop removes and releases the top n values of the frame.
func (f *Frame) Drop(n int) error {
	if err := f.innermost(); err != nil {
		return err
	}
	if n < 0 {
		return ErrInvalid
	}
	if n > f.Len() {
		return fmt.Errorf("action: drop %d of %d: %w", n, f.Len(), ErrRange)
	}
	f.s.truncate(len(f.s.slots) - n)
	return nil
}
