// Package action implements the transaction machinery: the frame-segmented
// processor stack, the processor executing command lists on it, the
// command registry with its builtins, the transaction store and the
// manager turning transactions into replies.
package action

import (
	"context"
	"fmt"

	"github.com/tliron/commonlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/waysome/waysome/message"
	"github.com/waysome/waysome/object"
	"github.com/waysome/waysome/value"
)

// Error reply descriptions, one per failing stage.
const (
	DescStackInit = "Could not init stack"
	DescMalformed = "Command list malformed"
	DescProcInit  = "Could not init processor"
	DescExec      = "Could not exec transaction"
	DescStore     = "Could not store transaction"
	DescNotFound  = "Could not find transaction"
)

const (
	tracerName      = "github.com/waysome/waysome/action"
	contextSlotsLen = 2
)

// Manager turns incoming messages into replies. It holds everything a run
// needs; there is no process-wide state, and one manager may serve any
// number of concurrent runs.
type Manager struct {
	commands  *Registry
	store     Store
	log       commonlog.Logger
	tracer    trace.Tracer
	maxDepth  int
	stepLimit int
}

// Option configures a Manager.
type Option func(*Manager)

// WithRegistry sets the command registry. The default is Builtins().
func WithRegistry(r *Registry) Option {
	return func(m *Manager) { m.commands = r }
}

// WithStore sets the store receiving FlagStore transactions. The default
// is a MemoryStore.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithLogger sets the logger.
func WithLogger(l commonlog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithTracer sets the tracer. The default comes from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithMaxDepth bounds the stack of every run.
func WithMaxDepth(n int) Option {
	return func(m *Manager) { m.maxDepth = n }
}

// WithRunStepLimit bounds the statements executed per run.
func WithRunStepLimit(n int) Option {
	return func(m *Manager) { m.stepLimit = n }
}

// NewManager creates a manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(m)
	}
	if m.commands == nil {
		m.commands = Builtins()
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.log == nil {
		m.log = commonlog.GetLogger("waysome.action")
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(tracerName)
	}
	return m
}

// Registry returns the command registry.
func (m *Manager) Registry() *Registry { return m.commands }

// Store returns the transaction store.
func (m *Manager) Store() Store { return m.store }

// Process is the entry point for incoming messages. Messages other than
// transactions produce no reply. A transaction flagged FlagStore is kept
// in the store; one flagged FlagExec runs now and its reply is returned.
// A nil reply means there is nothing to send back.
func (m *Manager) Process(ctx context.Context, msg message.Message) message.Reply {
	if msg == nil || !object.IsA(msg, message.TransactionType) {
		return nil
	}
	tx, ok := msg.(*message.Transaction)
	if !ok {
		return nil
	}
	flags := tx.Flags()
	m.log.Debugf("processing %s", tx)

	if flags&message.FlagStore != 0 {
		if err := m.store.Put(ctx, tx); err != nil {
			m.log.Errorf("storing transaction %d: %s", tx.ID(), err)
			return m.errorReply(tx.ID(), DescStore, err, false)
		}
		m.log.Infof("stored transaction %d", tx.ID())
	}
	if flags&message.FlagExec != 0 {
		return m.RunTransaction(ctx, tx, nil)
	}
	return nil
}

// RunTransaction executes tx on a fresh stack whose global context slot
// holds Nil and whose event context slot holds a copy of evctx (Nil when
// absent). It always returns a reply: a ValueReply with the top of the
// stack, or an ErrorReply naming the failing stage. The stack and the
// processor are released on every path.
func (m *Manager) RunTransaction(ctx context.Context, tx *message.Transaction, evctx value.Value) (reply message.Reply) {
	if tx == nil {
		return m.errorReply(0, DescMalformed, ErrInvalid, false)
	}
	id := tx.ID()
	ctx, span := m.tracer.Start(ctx, "action.RunTransaction",
		trace.WithAttributes(
			attribute.Int64("waysome.transaction.id", int64(id)),
			attribute.Int("waysome.transaction.statements", tx.Commands().Len()),
		))
	defer span.End()
	defer func() {
		if er, ok := reply.(*message.ErrorReply); ok {
			span.SetStatus(codes.Error, er.Description())
		}
	}()

	object.GetRef(tx)
	defer object.Unref(tx)

	stack, err := NewStack(m.maxDepth)
	if err != nil {
		return m.fail(span, id, DescStackInit, err, false)
	}
	defer stack.Deinit()
	if err := stack.Push(contextSlotsLen); err != nil {
		return m.fail(span, id, DescStackInit, err, false)
	}
	if evctx != nil {
		slot, _ := stack.SlotAt(EventContextSlot)
		_ = slot.Set(value.Copy(evctx))
	}
	frame := stack.StartFrame()

	cmds := tx.Commands()
	if cmds == nil {
		return m.fail(span, id, DescMalformed, fmt.Errorf("action: transaction %d has no command list: %w", id, ErrInvalid), false)
	}

	proc := NewProcessor(WithStepLimit(m.stepLimit))
	if err := proc.Init(stack, cmds, m.commands); err != nil {
		return m.fail(span, id, DescProcInit, err, true)
	}
	defer proc.Deinit()

	if err := proc.Exec(ctx); err != nil {
		return m.fail(span, id, DescExec, err, true)
	}
	span.SetAttributes(attribute.Int("waysome.transaction.steps", proc.Steps()))

	// A transaction that leaves nothing in its frame replies Nil.
	var top value.Value
	if frame.Len() > 0 {
		if top, err = frame.Value(-1, value.TypeValue); err != nil {
			return m.fail(span, id, DescExec, err, true)
		}
	}
	m.log.Debugf("transaction %d yields %s", id, value.Describe(top))
	return message.NewValueReply(id, top)
}

// RunStored executes the stored transaction id with the given event
// context. This is how transactions registered for events are run.
func (m *Manager) RunStored(ctx context.Context, id uint64, evctx value.Value) message.Reply {
	tx, err := m.store.Get(ctx, id)
	if err != nil {
		m.log.Warningf("running stored transaction %d: %s", id, err)
		return m.errorReply(id, DescNotFound, err, false)
	}
	defer object.Unref(tx)
	return m.RunTransaction(ctx, tx, evctx)
}

func (m *Manager) fail(span trace.Span, id uint64, desc string, err error, detail bool) message.Reply {
	span.RecordError(err)
	m.log.Errorf("transaction %d: %s: %s", id, desc, err)
	return m.errorReply(id, desc, err, detail)
}

func (m *Manager) errorReply(id uint64, desc string, err error, detail bool) message.Reply {
	var d value.Value
	if detail {
		if s, serr := value.NewStrFromRaw(err.Error()); serr == nil {
			d = s
		}
	}
	return message.NewErrorReply(id, Code(err), desc, d)
}
