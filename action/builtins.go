package action

import (
	"fmt"
	"math"

	"github.com/waysome/waysome/object"
	"github.com/waysome/waysome/value"
)

// Builtins returns a registry holding the builtin command set.
func Builtins() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

// RegisterBuiltins adds the builtin commands to r.
func RegisterBuiltins(r *Registry) {
	// Stack
	r.MustRegister("push", cmdPush)
	r.MustRegister("pop", cmdPop)
	r.MustRegister("dup", cmdDup)
	r.MustRegister("swap", cmdSwap)
	r.MustRegister("clear", cmdClear)
	r.MustRegister("nil", cmdNil)

	// Logic
	r.MustRegister("not", cmdNot)
	r.MustRegister("and", boolFold(func(a, b bool) bool { return a && b }))
	r.MustRegister("or", boolFold(func(a, b bool) bool { return a || b }))

	// Arithmetic
	r.MustRegister("add", intFold(1, addInt))
	r.MustRegister("sub", intFold(2, subInt))
	r.MustRegister("mul", intFold(1, mulInt))
	r.MustRegister("div", intFold(2, divInt))

	// Comparison
	r.MustRegister("eq", cmdEq)
	r.MustRegister("cmp", cmdCmp)

	// Strings and names
	r.MustRegister("concat", cmdConcat)
	r.MustRegister("len", cmdLen)
	r.MustRegister("name", cmdName)
	r.MustRegister("unname", cmdUnname)

	// Context
	r.MustRegister("global", cmdGlobal)
	r.MustRegister("event", cmdEvent)
}

// ---------------------------------------------------------------------------
// Operand helpers
// ---------------------------------------------------------------------------

// operands checks that the frame holds between min and max values (max < 0
// means unbounded) all carrying hint, then pops them. The result is in
// push order and owned by the caller. Nothing is popped on failure.
func operands(f *Frame, hint value.Type, min, max int) ([]value.Value, error) {
	n := f.Len()
	if n < min {
		return nil, fmt.Errorf("action: need %d operands, have %d: %w", min, n, ErrRange)
	}
	if max >= 0 && n > max {
		return nil, fmt.Errorf("action: at most %d operands, have %d: %w", max, n, ErrInvalid)
	}
	for i := range n {
		if _, err := f.Value(i, hint); err != nil {
			return nil, fmt.Errorf("action: operand %d: %w", i, err)
		}
	}
	vs := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := f.Pop()
		if err != nil {
			release(vs)
			return nil, err
		}
		vs[i] = v
	}
	return vs, nil
}

func release(vs []value.Value) {
	for _, v := range vs {
		value.Deinit(v)
	}
}

// ---------------------------------------------------------------------------
// Stack commands
// ---------------------------------------------------------------------------

// cmdPush leaves its arguments as results.
func cmdPush(c *Call) error {
	return nil
}

func cmdPop(c *Call) error {
	return c.Frame.Drop(1)
}

func cmdDup(c *Call) error {
	v, err := c.Frame.Value(-1, value.TypeValue)
	if err != nil {
		return err
	}
	return c.Frame.Push(value.Copy(v))
}

func cmdSwap(c *Call) error {
	a, err := c.Frame.At(-2)
	if err != nil {
		return err
	}
	b, err := c.Frame.At(-1)
	if err != nil {
		return err
	}
	a.v, b.v = b.v, a.v
	return nil
}

func cmdClear(c *Call) error {
	return c.Frame.Drop(c.Frame.Len())
}

func cmdNil(c *Call) error {
	return c.Frame.Push(value.NewNil())
}

// ---------------------------------------------------------------------------
// Logic
// ---------------------------------------------------------------------------

func cmdNot(c *Call) error {
	vs, err := operands(c.Frame, value.TypeBool, 1, 1)
	if err != nil {
		return err
	}
	defer release(vs)
	b, err := vs[0].(*value.Bool).Get()
	if err != nil {
		return err
	}
	return c.Frame.Push(value.NewBool(!b))
}

func boolFold(op func(a, b bool) bool) Func {
	return func(c *Call) error {
		vs, err := operands(c.Frame, value.TypeBool, 1, -1)
		if err != nil {
			return err
		}
		defer release(vs)
		acc, err := vs[0].(*value.Bool).Get()
		if err != nil {
			return err
		}
		for _, v := range vs[1:] {
			b, err := v.(*value.Bool).Get()
			if err != nil {
				return err
			}
			acc = op(acc, b)
		}
		return c.Frame.Push(value.NewBool(acc))
	}
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

// intFold folds the integer operands from the bottom of the frame up.
func intFold(min int, op func(a, b int64) (int64, error)) Func {
	return func(c *Call) error {
		vs, err := operands(c.Frame, value.TypeInt, min, -1)
		if err != nil {
			return err
		}
		defer release(vs)
		acc, err := vs[0].(*value.Int).Get()
		if err != nil {
			return err
		}
		for _, v := range vs[1:] {
			i, err := v.(*value.Int).Get()
			if err != nil {
				return err
			}
			if acc, err = op(acc, i); err != nil {
				return err
			}
		}
		return c.Frame.Push(value.NewInt(acc))
	}
}

func addInt(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("action: %d + %d: %w", a, b, ErrOverflow)
	}
	return a + b, nil
}

func subInt(a, b int64) (int64, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, fmt.Errorf("action: %d - %d: %w", a, b, ErrOverflow)
	}
	return a - b, nil
}

func mulInt(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, fmt.Errorf("action: %d * %d: %w", a, b, ErrOverflow)
	}
	return p, nil
}

func divInt(a, b int64) (int64, error) {
	if b == 0 {
		return 0, ErrDivideByZero
	}
	if a == math.MinInt64 && b == -1 {
		return 0, fmt.Errorf("action: %d / %d: %w", a, b, ErrOverflow)
	}
	return a / b, nil
}

// ---------------------------------------------------------------------------
// Comparison
// ---------------------------------------------------------------------------

func cmdEq(c *Call) error {
	vs, err := operands(c.Frame, value.TypeValue, 2, 2)
	if err != nil {
		return err
	}
	defer release(vs)
	return c.Frame.Push(value.NewBool(value.Equal(vs[0], vs[1])))
}

// cmdCmp pushes the ordering of its two operands as value.Compare
// defines it.
func cmdCmp(c *Call) error {
	vs, err := operands(c.Frame, value.TypeValue, 2, 2)
	if err != nil {
		return err
	}
	defer release(vs)
	return c.Frame.Push(value.NewInt(int64(value.Compare(vs[0], vs[1]))))
}

// ---------------------------------------------------------------------------
// Strings and names
// ---------------------------------------------------------------------------

func cmdConcat(c *Call) error {
	vs, err := operands(c.Frame, value.TypeString, 1, -1)
	if err != nil {
		return err
	}
	defer release(vs)
	s := object.NewString()
	defer object.Unref(s)
	for _, v := range vs {
		part, err := v.(*value.Str).Get()
		if err != nil {
			return err
		}
		if part == nil {
			continue
		}
		if _, err := s.Cat(part); err != nil {
			return err
		}
	}
	return c.Frame.Push(value.NewStr(s))
}

func cmdLen(c *Call) error {
	vs, err := operands(c.Frame, value.TypeString, 1, 1)
	if err != nil {
		return err
	}
	defer release(vs)
	s, err := vs[0].(*value.Str).Get()
	if err != nil {
		return err
	}
	return c.Frame.Push(value.NewInt(int64(s.Len())))
}

// cmdName binds its second operand to the string given as first.
func cmdName(c *Call) error {
	vs, err := operands(c.Frame, value.TypeValue, 2, 2)
	if err != nil {
		return err
	}
	str, ok := vs[0].(*value.Str)
	if !ok {
		release(vs)
		return fmt.Errorf("action: name is %s, want string: %w", value.TypeOf(vs[0]), ErrInvalid)
	}
	name, err := str.Get()
	if err != nil {
		release(vs)
		return err
	}
	if name == nil {
		release(vs)
		return fmt.Errorf("action: empty name: %w", ErrInvalid)
	}
	n := value.NewNamed(name, vs[1])
	value.Deinit(vs[0])
	return c.Frame.Push(n)
}

// cmdUnname replaces a named value by the value it binds.
func cmdUnname(c *Call) error {
	vs, err := operands(c.Frame, value.TypeNamed, 1, 1)
	if err != nil {
		return err
	}
	defer release(vs)
	inner, err := vs[0].(*value.Named).Value()
	if err != nil {
		return err
	}
	return c.Frame.Push(value.Copy(inner))
}

// ---------------------------------------------------------------------------
// Context
// ---------------------------------------------------------------------------

// cmdGlobal pushes the global context, or replaces it by its single
// operand.
func cmdGlobal(c *Call) error {
	if c.Frame.Len() == 0 {
		v, err := c.Context(GlobalContextSlot)
		if err != nil {
			return err
		}
		return c.Frame.Push(value.Copy(v))
	}
	vs, err := operands(c.Frame, value.TypeValue, 1, 1)
	if err != nil {
		return err
	}
	return c.SetContext(GlobalContextSlot, vs[0])
}

func cmdEvent(c *Call) error {
	if _, err := operands(c.Frame, value.TypeValue, 0, 0); err != nil {
		return err
	}
	v, err := c.Context(EventContextSlot)
	if err != nil {
		return err
	}
	return c.Frame.Push(value.Copy(v))
}
