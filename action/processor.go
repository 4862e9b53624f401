package action

import (
	"context"
	"fmt"

	"github.com/waysome/waysome/message"
	"github.com/waysome/waysome/value"
)

// State is the lifecycle state of a Processor.
type State uint8

const (
	StateUninitialized State = iota
	StateBound
	StateRunning
	StateCompleted
	StateFailed
)

var stateNames = [...]string{
	StateUninitialized: "uninitialized",
	StateBound:         "bound",
	StateRunning:       "running",
	StateCompleted:     "completed",
	StateFailed:        "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// Processor executes a command list against a stack. A processor runs
// once; a second Exec fails with ErrAlreadyRun.
//
// Each statement runs in a fresh frame: its arguments are resolved in the
// enclosing frame, copied into the new frame, and the command leaves its
// results there. Closing the frame hands the results to the enclosing
// frame, where later statements address them by position.
type Processor struct {
	state     State
	stack     *Stack
	list      *message.CommandList
	funcs     []Func
	stepLimit int
	steps     int
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithStepLimit stops execution with ErrStepLimit after n statements.
// Zero means unlimited.
func WithStepLimit(n int) ProcessorOption {
	return func(p *Processor) { p.stepLimit = n }
}

// NewProcessor creates an unbound processor.
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the lifecycle state.
func (p *Processor) State() State {
	if p == nil {
		return StateUninitialized
	}
	return p.state
}

// Steps returns the number of statements started so far.
func (p *Processor) Steps() int {
	return p.steps
}

// Init binds the processor to a stack and a command list, resolving every
// command name through reg. It does not execute anything.
func (p *Processor) Init(stack *Stack, list *message.CommandList, reg *Registry) error {
	if p == nil || stack == nil || list == nil || reg == nil {
		return ErrInvalid
	}
	if p.state != StateUninitialized {
		return fmt.Errorf("action: processor is %s: %w", p.state, ErrAlreadyRun)
	}
	funcs := make([]Func, len(list.Statements))
	for i, stmt := range list.Statements {
		fn, err := reg.Lookup(stmt.Command)
		if err != nil {
			return &ExecError{Index: i, Command: stmt.Command, Err: err}
		}
		funcs[i] = fn
	}
	p.stack = stack
	p.list = list
	p.funcs = funcs
	p.state = StateBound
	return nil
}

// Exec runs the bound statements in order and stops at the first failure,
// returning an *ExecError. The stack is left as the failing command left
// it. Cancellation of ctx is checked between statements.
func (p *Processor) Exec(ctx context.Context) error {
	if p == nil {
		return ErrInvalid
	}
	switch p.state {
	case StateBound:
	case StateUninitialized:
		return fmt.Errorf("action: processor is not bound: %w", ErrInvalid)
	default:
		return fmt.Errorf("action: processor is %s: %w", p.state, ErrAlreadyRun)
	}
	p.state = StateRunning

	for i, stmt := range p.list.Statements {
		if err := p.step(ctx, i, stmt); err != nil {
			p.state = StateFailed
			return &ExecError{Index: i, Command: stmt.Command, Err: err}
		}
	}
	p.state = StateCompleted
	return nil
}

func (p *Processor) step(ctx context.Context, i int, stmt message.Statement) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	if p.stepLimit > 0 && p.steps >= p.stepLimit {
		return ErrStepLimit
	}
	p.steps++

	args, err := p.resolve(stmt.Args)
	if err != nil {
		return err
	}
	frame := p.stack.StartFrame()
	for j, v := range args {
		if err := frame.Push(v); err != nil {
			release(args[j+1:])
			return err
		}
	}
	call := &Call{Ctx: ctx, Command: stmt.Command, Frame: frame, stack: p.stack}
	if err := p.funcs[i](call); err != nil {
		return err
	}
	return p.stack.EndFrame(frame)
}

// resolve produces owned copies of the statement arguments, reading stack
// positions in the current frame.
func (p *Processor) resolve(args []message.Arg) ([]value.Value, error) {
	caller := p.stack.Current()
	vs := make([]value.Value, 0, len(args))
	for _, a := range args {
		if !a.IsPos {
			vs = append(vs, value.Copy(a.Value))
			continue
		}
		v, err := caller.Value(a.Pos, value.TypeValue)
		if err != nil {
			release(vs)
			return nil, err
		}
		vs = append(vs, value.Copy(v))
	}
	return vs, nil
}

// Deinit releases the processor's own resources. The stack belongs to the
// caller and is left alone.
func (p *Processor) Deinit() {
	if p == nil {
		return
	}
	p.stack = nil
	p.list = nil
	p.funcs = nil
}
