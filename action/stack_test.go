package action

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/waysome/waysome/value"
)

func newTestStack(t *testing.T, maxDepth int) *Stack {
	t.Helper()
	s, err := NewStack(maxDepth)
	if err != nil {
		t.Fatalf("NewStack(%d): %v", maxDepth, err)
	}
	t.Cleanup(s.Deinit)
	return s
}

func intAt(t *testing.T, f *Frame, i int) int64 {
	t.Helper()
	v, err := f.Value(i, value.TypeInt)
	if err != nil {
		t.Fatalf("Value(%d): %v", i, err)
	}
	n, _ := v.(*value.Int).Get()
	return n
}

// ---------------------------------------------------------------------------
// Construction and growth
// ---------------------------------------------------------------------------

func TestNewStack(t *testing.T) {
	s := newTestStack(t, 0)
	if s.MaxDepth() != DefaultMaxDepth {
		t.Errorf("MaxDepth = %d, want %d", s.MaxDepth(), DefaultMaxDepth)
	}
	if s.Len() != 0 || s.Depth() != 1 {
		t.Errorf("Len = %d, Depth = %d; want 0, 1", s.Len(), s.Depth())
	}
	if s.Bottom() != nil {
		t.Error("empty stack should have no bottom slot")
	}
	if _, err := NewStack(-1); !errors.Is(err, unix.EINVAL) {
		t.Errorf("NewStack(-1) = %v, want EINVAL", err)
	}
}

func TestPushFillsWithNil(t *testing.T) {
	s := newTestStack(t, 8)
	if err := s.Push(3); err != nil {
		t.Fatalf("Push: %v", err)
	}
	for i := range 3 {
		if _, err := s.ValueAt(i, value.TypeNil); err != nil {
			t.Errorf("slot %d: %v", i, err)
		}
	}
	if s.Bottom() == nil || s.Bottom().Value() == nil {
		t.Error("bottom slot should hold Nil")
	}
}

func TestPushPastLimitLeavesStackUnchanged(t *testing.T) {
	s := newTestStack(t, 4)
	if err := s.Push(3); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := s.Push(2); !errors.Is(err, ErrStackLimit) || !errors.Is(err, unix.ENOMEM) {
		t.Fatalf("Push past limit = %v, want ENOMEM", err)
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d after failed push, want 3", s.Len())
	}
	if err := s.Push(1); err != nil {
		t.Errorf("Push up to the limit: %v", err)
	}
}

func TestPushHugeCountIsRejected(t *testing.T) {
	s := newTestStack(t, 4)
	if err := s.Push(1); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := s.Push(math.MaxInt); !errors.Is(err, ErrStackLimit) {
		t.Fatalf("Push(MaxInt) = %v, want ErrStackLimit", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d after failed push, want 1", s.Len())
	}
}

func TestValueAtRelativeAndAbsolute(t *testing.T) {
	s := newTestStack(t, 0)
	f := s.Current()
	for i := range int64(5) {
		if err := f.Push(value.NewInt(i * 10)); err != nil {
			t.Fatal(err)
		}
	}
	// For every position p, index p and index p-Len name the same slot.
	for p := range s.Len() {
		a, err := s.SlotAt(p)
		if err != nil {
			t.Fatal(err)
		}
		b, err := s.SlotAt(p - s.Len())
		if err != nil {
			t.Fatal(err)
		}
		if a != b {
			t.Errorf("SlotAt(%d) and SlotAt(%d) differ", p, p-s.Len())
		}
	}
	top, _ := s.ValueAt(-1, value.TypeInt)
	if n, _ := top.(*value.Int).Get(); n != 40 {
		t.Errorf("top = %d, want 40", n)
	}
	if _, err := s.ValueAt(5, value.TypeValue); !errors.Is(err, ErrRange) {
		t.Errorf("ValueAt(5) = %v, want ErrRange", err)
	}
	if _, err := s.ValueAt(-6, value.TypeValue); !errors.Is(err, unix.ERANGE) {
		t.Errorf("ValueAt(-6) = %v, want ERANGE", err)
	}
	if _, err := s.ValueAt(0, value.TypeBool); !errors.Is(err, ErrInvalid) {
		t.Errorf("ValueAt with wrong hint = %v, want ErrInvalid", err)
	}
}

func TestSlotSetStoresNilForAbsent(t *testing.T) {
	s := newTestStack(t, 0)
	_ = s.Push(1)
	slot := s.Bottom()
	if err := slot.Set(nil); err != nil {
		t.Fatal(err)
	}
	if value.TypeOf(slot.Value()) != value.TypeNil {
		t.Errorf("slot holds %s, want nil", value.TypeOf(slot.Value()))
	}
	var missing *Slot
	if err := missing.Set(value.NewInt(1)); !errors.Is(err, ErrInvalid) {
		t.Errorf("Set on nil slot = %v, want ErrInvalid", err)
	}
}

// ---------------------------------------------------------------------------
// Frames
// ---------------------------------------------------------------------------

func TestFramesAreRelative(t *testing.T) {
	s := newTestStack(t, 0)
	outer := s.Current()
	_ = outer.Push(value.NewInt(1))
	_ = outer.Push(value.NewInt(2))

	inner := s.StartFrame()
	if inner.Len() != 0 {
		t.Fatalf("new frame Len = %d, want 0", inner.Len())
	}
	if _, err := inner.At(0); !errors.Is(err, ErrRange) {
		t.Errorf("At(0) on empty frame = %v, want ErrRange", err)
	}
	_ = inner.Push(value.NewInt(3))
	if got := intAt(t, inner, 0); got != 3 {
		t.Errorf("inner[0] = %d, want 3", got)
	}
	if got := intAt(t, outer, -1); got != 2 {
		t.Errorf("outer[-1] = %d, want 2", got)
	}
	if outer.Len() != 2 {
		t.Errorf("outer Len = %d, want 2", outer.Len())
	}

	if err := outer.Push(value.NewInt(9)); !errors.Is(err, ErrInvalid) {
		t.Errorf("push to enclosing frame = %v, want ErrInvalid", err)
	}

	if err := s.EndFrame(inner); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if outer.Len() != 3 || intAt(t, outer, -1) != 3 {
		t.Errorf("after EndFrame outer holds %d values, top %d", outer.Len(), intAt(t, outer, -1))
	}
	if inner.Len() != 0 {
		t.Error("closed frame should be empty")
	}
}

func TestEndFrameOnlyInnermost(t *testing.T) {
	s := newTestStack(t, 0)
	a := s.StartFrame()
	b := s.StartFrame()
	if err := s.EndFrame(a); !errors.Is(err, ErrInvalid) {
		t.Errorf("EndFrame(outer) = %v, want ErrInvalid", err)
	}
	if err := s.EndFrame(b); err != nil {
		t.Errorf("EndFrame(inner): %v", err)
	}
	if err := s.EndFrame(b); !errors.Is(err, ErrInvalid) {
		t.Errorf("second EndFrame = %v, want ErrInvalid", err)
	}
	if err := s.EndFrame(s.Current()); err != nil {
		t.Errorf("EndFrame(a): %v", err)
	}
	if err := s.EndFrame(s.Current()); !errors.Is(err, ErrInvalid) {
		t.Errorf("EndFrame(base) = %v, want ErrInvalid", err)
	}
}

func TestPopAndDrop(t *testing.T) {
	s := newTestStack(t, 0)
	f := s.StartFrame()
	if _, err := f.Pop(); !errors.Is(err, unix.ERANGE) {
		t.Fatalf("Pop on empty frame = %v, want ERANGE", err)
	}
	for i := range int64(3) {
		_ = f.Push(value.NewInt(i))
	}
	v, err := f.Pop()
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := v.(*value.Int).Get(); n != 2 {
		t.Errorf("Pop = %d, want 2", n)
	}
	v.Deinit()

	if err := f.Drop(3); !errors.Is(err, ErrRange) {
		t.Errorf("Drop(3) of 2 = %v, want ErrRange", err)
	}
	if f.Len() != 2 {
		t.Errorf("failed Drop changed the frame: Len = %d", f.Len())
	}
	if err := f.Drop(2); err != nil {
		t.Errorf("Drop(2): %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("stack Len = %d, want 0", s.Len())
	}
}

func TestFramePushRespectsLimit(t *testing.T) {
	s := newTestStack(t, 1)
	f := s.Current()
	if err := f.Push(value.NewInt(1)); err != nil {
		t.Fatal(err)
	}
	str, _ := value.NewStrFromRaw("overflow")
	backing, _ := str.Get()
	if err := f.Push(str); !errors.Is(err, ErrStackLimit) {
		t.Fatalf("Push past limit = %v, want ErrStackLimit", err)
	}
	if !backing.Base().Released() {
		t.Error("rejected value should be released")
	}
}

func TestDeinitReleasesValues(t *testing.T) {
	s, _ := NewStack(0)
	str, _ := value.NewStrFromRaw("held")
	backing, _ := str.Get()
	_ = s.Current().Push(str)
	s.StartFrame()

	s.Deinit()
	if !backing.Base().Released() {
		t.Error("stack values should be released")
	}
	s.Deinit()
	var none *Stack
	none.Deinit()
}
