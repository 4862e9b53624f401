package action

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/waysome/waysome/message"
	"github.com/waysome/waysome/object"
	"github.com/waysome/waysome/value"
)

func lit(v value.Value) message.Arg { return message.Literal(v) }

func str(t *testing.T, raw string) *value.Str {
	t.Helper()
	s, err := value.NewStrFromRaw(raw)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// top runs stmts and returns a copy of the resulting top value.
func top(t *testing.T, stmts ...message.Statement) (value.Value, error) {
	t.Helper()
	list := message.NewCommandList(stmts...)
	defer releaseList(list)
	s, _, err := runList(t, list)
	if err != nil {
		return nil, err
	}
	v, err := s.ValueAt(-1, value.TypeValue)
	if err != nil {
		return nil, err
	}
	return value.Copy(v), nil
}

func TestBuiltinNames(t *testing.T) {
	r := Builtins()
	for _, name := range []string{"push", "pop", "dup", "swap", "add", "concat", "name", "global", "event"} {
		if _, err := r.Lookup(name); err != nil {
			t.Errorf("Lookup(%q): %v", name, err)
		}
	}
	names := r.Names()
	if len(names) != r.Len() {
		t.Fatalf("Names has %d entries, Len = %d", len(names), r.Len())
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("Names not sorted at %d: %q, %q", i, names[i-1], names[i])
		}
	}
	if err := r.Register("push", cmdPush); !errors.Is(err, unix.EEXIST) {
		t.Errorf("duplicate Register = %v, want EEXIST", err)
	}
	if err := r.Register("", cmdPush); !errors.Is(err, ErrInvalid) {
		t.Errorf("Register(\"\") = %v, want ErrInvalid", err)
	}
}

// ---------------------------------------------------------------------------
// Arithmetic and logic
// ---------------------------------------------------------------------------

func TestIntegerCommands(t *testing.T) {
	tests := []struct {
		cmd  string
		args []int64
		want int64
		err  error
	}{
		{"add", []int64{1, 2, 3}, 6, nil},
		{"add", []int64{7}, 7, nil},
		{"sub", []int64{10, 3, 2}, 5, nil},
		{"mul", []int64{-3, 4}, -12, nil},
		{"div", []int64{17, 5}, 3, nil},
		{"div", []int64{1, 0}, 0, ErrDivideByZero},
		{"add", []int64{math.MaxInt64, 1}, 0, ErrOverflow},
		{"sub", []int64{math.MinInt64, 1}, 0, ErrOverflow},
		{"mul", []int64{math.MaxInt64, 2}, 0, ErrOverflow},
		{"div", []int64{math.MinInt64, -1}, 0, ErrOverflow},
		{"sub", []int64{1}, 0, ErrRange},
	}
	for _, tt := range tests {
		args := make([]message.Arg, len(tt.args))
		for i, a := range tt.args {
			args[i] = lit(value.NewInt(a))
		}
		v, err := top(t, message.Call(tt.cmd, args...))
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Errorf("%s%v = %v, want %v", tt.cmd, tt.args, err, tt.err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s%v: %v", tt.cmd, tt.args, err)
			continue
		}
		if got, _ := v.(*value.Int).Get(); got != tt.want {
			t.Errorf("%s%v = %d, want %d", tt.cmd, tt.args, got, tt.want)
		}
	}
}

func TestArithmeticRejectsOtherTypes(t *testing.T) {
	_, err := top(t, message.Call("add", lit(value.NewInt(1)), lit(value.NewBool(true))))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("add(int, bool) = %v, want ErrInvalid", err)
	}
}

func TestBoolCommands(t *testing.T) {
	tests := []struct {
		stmt message.Statement
		want bool
	}{
		{message.Call("not", lit(value.NewBool(false))), true},
		{message.Call("and", lit(value.NewBool(true)), lit(value.NewBool(false))), false},
		{message.Call("or", lit(value.NewBool(false)), lit(value.NewBool(true))), true},
		{message.Call("eq", lit(value.NewInt(4)), lit(value.NewInt(4))), true},
		{message.Call("eq", lit(value.NewInt(4)), lit(value.NewBool(true))), false},
	}
	for _, tt := range tests {
		v, err := top(t, tt.stmt)
		if err != nil {
			t.Errorf("%s: %v", tt.stmt.Command, err)
			continue
		}
		if got, _ := v.(*value.Bool).Get(); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.stmt.Command, got, tt.want)
		}
	}
}

func TestCmpFollowsValueOrder(t *testing.T) {
	v, err := top(t, message.Call("cmp", lit(value.NewInt(1)), lit(value.NewInt(2))))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := v.(*value.Int).Get(); got != 1 {
		t.Errorf("cmp(1, 2) = %d, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// Stack shuffling
// ---------------------------------------------------------------------------

func TestStackCommands(t *testing.T) {
	list := message.NewCommandList(
		message.Call("push", lit(value.NewInt(1)), lit(value.NewInt(2))),
		message.Call("swap", message.StackPos(-2), message.StackPos(-1)),
		message.Call("dup", message.StackPos(-1)),
		message.Call("clear", message.StackPos(0), message.StackPos(1)),
	)
	defer releaseList(list)
	s, _, err := runList(t, list)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	// push leaves 1 2; swap adds 2 1; dup adds 1 1; clear adds nothing.
	want := []int64{1, 2, 2, 1, 1, 1}
	if s.Len() != len(want) {
		t.Fatalf("Len = %d, want %d", s.Len(), len(want))
	}
	for i, w := range want {
		v, _ := s.ValueAt(i, value.TypeInt)
		if got, _ := v.(*value.Int).Get(); got != w {
			t.Errorf("slot %d = %d, want %d", i, got, w)
		}
	}
}

func TestPopWithoutOperandUnderflows(t *testing.T) {
	_, err := top(t, message.Call("pop"))
	if !errors.Is(err, unix.ERANGE) {
		t.Errorf("pop = %v, want ERANGE", err)
	}
}

// ---------------------------------------------------------------------------
// Strings and names
// ---------------------------------------------------------------------------

func TestConcatAndLen(t *testing.T) {
	v, err := top(t, message.Call("concat", lit(str(t, "way")), lit(str(t, "some"))))
	if err != nil {
		t.Fatal(err)
	}
	defer v.Deinit()
	if raw, _ := v.(*value.Str).Raw(); raw != "waysome" {
		t.Errorf("concat = %q, want waysome", raw)
	}

	n, err := top(t, message.Call("len", lit(str(t, "héllo"))))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := n.(*value.Int).Get(); got != 5 {
		t.Errorf("len = %d, want 5", got)
	}
}

func TestNameAndUnname(t *testing.T) {
	list := message.NewCommandList(
		message.Call("name", lit(str(t, "answer")), lit(value.NewInt(42))),
		message.Call("unname", message.StackPos(-1)),
	)
	defer releaseList(list)
	s, _, err := runList(t, list)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	named, err := s.ValueAt(0, value.TypeNamed)
	if err != nil {
		t.Fatal(err)
	}
	if got := value.Describe(named); got != "answer=42" {
		t.Errorf("named = %s", got)
	}
	if got := topInt(t, s); got != 42 {
		t.Errorf("unname = %d, want 42", got)
	}

	if _, err := top(t, message.Call("name", lit(value.NewInt(1)), lit(value.NewInt(2)))); !errors.Is(err, ErrInvalid) {
		t.Errorf("name(int, int) = %v, want ErrInvalid", err)
	}
}

func TestStringCommandsReleaseReferences(t *testing.T) {
	backing, _ := object.NewStringFromRaw("tracked")
	defer object.Unref(backing)

	list := message.NewCommandList(
		message.Call("push", lit(value.NewStr(backing))),
		message.Call("dup", message.StackPos(-1)),
		message.Call("concat", message.StackPos(0), message.StackPos(1)),
		message.Call("name", message.StackPos(0), message.StackPos(0)),
	)
	s, _, err := runList(t, list)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if backing.Base().Refs() <= 2 {
		t.Fatalf("Refs = %d, stack should hold references", backing.Base().Refs())
	}
	s.Deinit()
	releaseList(list)
	if got := backing.Base().Refs(); got != 1 {
		t.Errorf("Refs = %d after teardown, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// Context slots
// ---------------------------------------------------------------------------

func TestContextCommands(t *testing.T) {
	s := newTestStack(t, 0)
	_ = s.Push(2)
	ev, _ := s.SlotAt(EventContextSlot)
	_ = ev.Set(value.NewInt(7))
	s.StartFrame()

	list := message.NewCommandList(
		message.Call("global", lit(value.NewInt(99))),
		message.Call("global"),
		message.Call("event"),
	)
	defer releaseList(list)
	p := NewProcessor()
	if err := p.Init(s, list, Builtins()); err != nil {
		t.Fatal(err)
	}
	if err := p.Exec(t.Context()); err != nil {
		t.Fatalf("Exec: %v", err)
	}

	g, _ := s.ValueAt(GlobalContextSlot, value.TypeInt)
	if n, _ := g.(*value.Int).Get(); n != 99 {
		t.Errorf("global context = %d, want 99", n)
	}
	f := s.Current()
	if f.Len() != 2 || intAt(t, f, 0) != 99 || intAt(t, f, 1) != 7 {
		t.Errorf("frame holds %d values", f.Len())
	}
}
