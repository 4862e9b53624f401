// Package message defines the messages exchanged with clients: inbound
// transactions and outbound replies. Messages are objects, so their kind is
// checked through the object type chain.
package message

import (
	"fmt"

	"github.com/waysome/waysome/object"
	"github.com/waysome/waysome/value"
)

var (
	MessageType     = &object.Type{Name: "ws_message", Super: object.ObjectType}
	TransactionType = &object.Type{Name: "ws_transaction", Super: MessageType}
	ReplyType       = &object.Type{Name: "ws_reply", Super: MessageType}
	ValueReplyType  = &object.Type{Name: "ws_value_reply", Super: ReplyType}
	ErrorReplyType  = &object.Type{Name: "ws_error_reply", Super: ReplyType}
)

// Message is implemented by every message.
type Message interface {
	object.Object
	ID() uint64
}

// Reply is the outcome of processing a transaction.
type Reply interface {
	Message
	isReply()
}

type header struct {
	base object.Base
	id   uint64
}

func (h *header) ID() uint64 {
	if h == nil {
		return 0
	}
	return h.id
}

// ---------------------------------------------------------------------------
// Transaction
// ---------------------------------------------------------------------------

// Flags control what happens to a transaction.
type Flags uint8

const (
	// FlagExec requests immediate execution.
	FlagExec Flags = 1 << iota
	// FlagStore requests that the transaction be kept for later runs.
	FlagStore
)

func (f Flags) String() string {
	switch f & (FlagExec | FlagStore) {
	case FlagExec:
		return "exec"
	case FlagStore:
		return "store"
	case FlagExec | FlagStore:
		return "exec|store"
	}
	return "none"
}

// Transaction is an ordered command list plus execution flags.
type Transaction struct {
	header
	flags    Flags
	name     string
	commands *CommandList
}

// NewTransaction creates a transaction. A nil command list marks the
// transaction as malformed. The transaction takes over the list.
func NewTransaction(id uint64, flags Flags, commands *CommandList) *Transaction {
	t := &Transaction{flags: flags, commands: commands}
	t.id = id
	_ = t.base.Init(TransactionType)
	return t
}

func (t *Transaction) Base() *object.Base {
	if t == nil {
		return nil
	}
	return &t.base
}

// Flags returns the transaction flags.
func (t *Transaction) Flags() Flags {
	if t == nil {
		return 0
	}
	return t.flags
}

// Name is an optional client supplied label.
func (t *Transaction) Name() string {
	if t == nil {
		return ""
	}
	t.base.RLock()
	defer t.base.RUnlock()
	return t.name
}

// SetName sets the label.
func (t *Transaction) SetName(name string) {
	t.base.Lock()
	t.name = name
	t.base.Unlock()
}

// Commands returns the command list, nil when the transaction is malformed.
func (t *Transaction) Commands() *CommandList {
	if t == nil {
		return nil
	}
	return t.commands
}

// Finalize implements object.Finalizer.
func (t *Transaction) Finalize() {
	t.commands.release()
	t.commands = nil
}

func (t *Transaction) String() string {
	return fmt.Sprintf("transaction %d (%s, %d statements)", t.ID(), t.Flags(), t.Commands().Len())
}

// ---------------------------------------------------------------------------
// Replies
// ---------------------------------------------------------------------------

// ValueReply carries the value a transaction left on the stack.
type ValueReply struct {
	header
	v value.Value
}

// NewValueReply creates a reply to the transaction with id holding a copy
// of v, or Nil when v is absent.
func NewValueReply(id uint64, v value.Value) *ValueReply {
	r := &ValueReply{v: value.Copy(v)}
	if r.v == nil {
		r.v = value.NewNil()
	}
	r.id = id
	_ = r.base.Init(ValueReplyType)
	return r
}

func (r *ValueReply) Base() *object.Base {
	if r == nil {
		return nil
	}
	return &r.base
}

func (*ValueReply) isReply() {}

// Value returns the carried value, owned by the reply.
func (r *ValueReply) Value() value.Value {
	if r == nil {
		return nil
	}
	return r.v
}

// Finalize implements object.Finalizer.
func (r *ValueReply) Finalize() {
	value.Deinit(r.v)
}

// ErrorReply reports a failed transaction.
type ErrorReply struct {
	header
	code   int
	desc   string
	detail value.Value
}

// NewErrorReply creates an error reply. The reply takes over detail,
// which may be nil.
func NewErrorReply(id uint64, code int, desc string, detail value.Value) *ErrorReply {
	if code < 0 {
		code = -code
	}
	r := &ErrorReply{code: code, desc: desc, detail: detail}
	r.id = id
	_ = r.base.Init(ErrorReplyType)
	return r
}

func (r *ErrorReply) Base() *object.Base {
	if r == nil {
		return nil
	}
	return &r.base
}

func (*ErrorReply) isReply() {}

// Code is the positive error code.
func (r *ErrorReply) Code() int { return r.code }

// Description is the short fixed description of the failing stage.
func (r *ErrorReply) Description() string { return r.desc }

// Detail is optional structured detail.
func (r *ErrorReply) Detail() value.Value { return r.detail }

// Finalize implements object.Finalizer.
func (r *ErrorReply) Finalize() {
	value.Deinit(r.detail)
}

func (r *ErrorReply) Error() string {
	return fmt.Sprintf("%s (code %d)", r.desc, r.code)
}
