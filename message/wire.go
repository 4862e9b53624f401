package message

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/waysome/waysome/object"
	"github.com/waysome/waysome/value"
)

// ErrMalformed is returned for wire data that does not describe a valid
// message.
var ErrMalformed = fmt.Errorf("message: malformed: %w", unix.EBADMSG)

// cborEncMode uses canonical encoding so equal messages encode equally.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("message: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

// WireValue is the serialized form of a value. Object references travel
// as registry UUIDs.
type WireValue struct {
	Type   value.Type `cbor:"t"`
	Bool   bool       `cbor:"b,omitempty"`
	Int    int64      `cbor:"i,omitempty"`
	Str    string     `cbor:"s,omitempty"`
	Object string     `cbor:"o,omitempty"`
	Name   string     `cbor:"n,omitempty"`
	Value  *WireValue `cbor:"v,omitempty"`
}

// WireArg is a statement argument: exactly one of Value and Pos is set.
type WireArg struct {
	Value *WireValue `cbor:"v,omitempty"`
	Pos   *int       `cbor:"p,omitempty"`
}

// WireStatement is a serialized statement.
type WireStatement struct {
	Command string    `cbor:"c"`
	Args    []WireArg `cbor:"a,omitempty"`
}

// WireCommandList is a serialized command list.
type WireCommandList struct {
	Statements []WireStatement `cbor:"s"`
}

// WireTransaction is a serialized transaction. A missing command list is
// kept missing; the manager answers it with an error reply.
type WireTransaction struct {
	ID       uint64           `cbor:"id"`
	Flags    Flags            `cbor:"f"`
	Name     string           `cbor:"n,omitempty"`
	Commands *WireCommandList `cbor:"c,omitempty"`
}

// ReplyKind distinguishes serialized replies.
type ReplyKind uint8

const (
	// ReplyNone means the transaction produced no reply.
	ReplyNone ReplyKind = iota
	ReplyValue
	ReplyError
)

// WireReply is a serialized reply.
type WireReply struct {
	ID          uint64     `cbor:"id"`
	Kind        ReplyKind  `cbor:"k"`
	Value       *WireValue `cbor:"v,omitempty"`
	Code        int        `cbor:"c,omitempty"`
	Description string     `cbor:"d,omitempty"`
	Detail      *WireValue `cbor:"x,omitempty"`
}

// ---------------------------------------------------------------------------
// Codec
// ---------------------------------------------------------------------------

// Codec converts between messages and their wire form. Object references
// are resolved through the registry; a codec without registry rejects
// them.
type Codec struct {
	reg *object.Registry
}

// NewCodec creates a codec resolving object ids through reg.
func NewCodec(reg *object.Registry) *Codec {
	return &Codec{reg: reg}
}

// ToWireValue serializes v. Referenced objects are registered.
func (c *Codec) ToWireValue(v value.Value) (*WireValue, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *value.Nil:
		return &WireValue{Type: value.TypeNil}, nil
	case *value.Bool:
		b, err := t.Get()
		if err != nil {
			return nil, err
		}
		return &WireValue{Type: value.TypeBool, Bool: b}, nil
	case *value.Int:
		i, err := t.Get()
		if err != nil {
			return nil, err
		}
		return &WireValue{Type: value.TypeInt, Int: i}, nil
	case *value.Str:
		raw, err := t.Raw()
		if err != nil {
			return nil, err
		}
		return &WireValue{Type: value.TypeString, Str: raw}, nil
	case *value.ObjectID:
		o, err := t.Get()
		if err != nil {
			return nil, err
		}
		if c.reg == nil {
			return nil, fmt.Errorf("message: object reference without registry: %w", ErrMalformed)
		}
		id, err := c.reg.Register(o)
		if err != nil {
			return nil, err
		}
		return &WireValue{Type: value.TypeObjectID, Object: id.String()}, nil
	case *value.Named:
		name, err := t.Name()
		if err != nil {
			return nil, err
		}
		raw, err := name.Raw()
		object.Unref(name)
		if err != nil {
			return nil, err
		}
		inner, err := t.Value()
		if err != nil {
			return nil, err
		}
		wv, err := c.ToWireValue(inner)
		if err != nil {
			return nil, err
		}
		return &WireValue{Type: value.TypeNamed, Name: raw, Value: wv}, nil
	}
	return nil, fmt.Errorf("message: cannot encode %s: %w", value.TypeOf(v), ErrMalformed)
}

// FromWireValue deserializes a value. A nil wire value yields nil.
func (c *Codec) FromWireValue(w *WireValue) (value.Value, error) {
	if w == nil {
		return nil, nil
	}
	switch w.Type {
	case value.TypeNil:
		return value.NewNil(), nil
	case value.TypeBool:
		return value.NewBool(w.Bool), nil
	case value.TypeInt:
		return value.NewInt(w.Int), nil
	case value.TypeString:
		s, err := value.NewStrFromRaw(w.Str)
		if err != nil {
			return nil, fmt.Errorf("message: string value: %w", err)
		}
		return s, nil
	case value.TypeObjectID:
		if c.reg == nil {
			return nil, fmt.Errorf("message: object reference without registry: %w", ErrMalformed)
		}
		id, err := uuid.Parse(w.Object)
		if err != nil {
			return nil, fmt.Errorf("message: object id %q: %w", w.Object, ErrMalformed)
		}
		o, err := c.reg.Lookup(id)
		if err != nil {
			return nil, err
		}
		v := value.NewObjectID(o)
		object.Unref(o)
		return v, nil
	case value.TypeNamed:
		name, err := object.NewStringFromRaw(w.Name)
		if err != nil {
			return nil, fmt.Errorf("message: value name: %w", err)
		}
		inner, err := c.FromWireValue(w.Value)
		if err != nil {
			object.Unref(name)
			return nil, err
		}
		n := value.NewNamed(name, inner)
		object.Unref(name)
		return n, nil
	}
	return nil, fmt.Errorf("message: value type %s: %w", w.Type, ErrMalformed)
}

// ToWireTransaction serializes a transaction.
func (c *Codec) ToWireTransaction(t *Transaction) (*WireTransaction, error) {
	if t == nil {
		return nil, ErrMalformed
	}
	w := &WireTransaction{ID: t.ID(), Flags: t.Flags(), Name: t.Name()}
	cmds := t.Commands()
	if cmds == nil {
		return w, nil
	}
	w.Commands = &WireCommandList{Statements: make([]WireStatement, 0, cmds.Len())}
	for _, stmt := range cmds.Statements {
		ws := WireStatement{Command: stmt.Command}
		for _, a := range stmt.Args {
			if a.IsPos {
				pos := a.Pos
				ws.Args = append(ws.Args, WireArg{Pos: &pos})
				continue
			}
			wv, err := c.ToWireValue(a.Value)
			if err != nil {
				return nil, fmt.Errorf("message: statement %q: %w", stmt.Command, err)
			}
			ws.Args = append(ws.Args, WireArg{Value: wv})
		}
		w.Commands.Statements = append(w.Commands.Statements, ws)
	}
	return w, nil
}

// FromWireTransaction builds a transaction. Values already decoded are
// released if a later argument fails.
func (c *Codec) FromWireTransaction(w *WireTransaction) (*Transaction, error) {
	if w == nil {
		return nil, ErrMalformed
	}
	var cmds *CommandList
	if w.Commands != nil {
		cmds = &CommandList{Statements: make([]Statement, 0, len(w.Commands.Statements))}
		for _, ws := range w.Commands.Statements {
			stmt := Statement{Command: ws.Command}
			for _, wa := range ws.Args {
				arg, err := c.fromWireArg(wa)
				if err != nil {
					cmds.Statements = append(cmds.Statements, stmt)
					cmds.release()
					return nil, fmt.Errorf("message: statement %q: %w", ws.Command, err)
				}
				stmt.Args = append(stmt.Args, arg)
			}
			cmds.Statements = append(cmds.Statements, stmt)
		}
	}
	t := NewTransaction(w.ID, w.Flags, cmds)
	t.name = w.Name
	return t, nil
}

func (c *Codec) fromWireArg(wa WireArg) (Arg, error) {
	switch {
	case wa.Pos != nil && wa.Value != nil:
		return Arg{}, fmt.Errorf("message: argument is both value and position: %w", ErrMalformed)
	case wa.Pos != nil:
		return StackPos(*wa.Pos), nil
	case wa.Value != nil:
		v, err := c.FromWireValue(wa.Value)
		if err != nil {
			return Arg{}, err
		}
		return Literal(v), nil
	}
	return Arg{}, fmt.Errorf("message: empty argument: %w", ErrMalformed)
}

// ToWireReply serializes a reply; nil becomes a ReplyNone.
func (c *Codec) ToWireReply(id uint64, r Reply) (*WireReply, error) {
	switch t := r.(type) {
	case nil:
		return &WireReply{ID: id, Kind: ReplyNone}, nil
	case *ValueReply:
		wv, err := c.ToWireValue(t.Value())
		if err != nil {
			return nil, err
		}
		return &WireReply{ID: t.ID(), Kind: ReplyValue, Value: wv}, nil
	case *ErrorReply:
		w := &WireReply{ID: t.ID(), Kind: ReplyError, Code: t.Code(), Description: t.Description()}
		if t.Detail() != nil {
			wd, err := c.ToWireValue(t.Detail())
			if err != nil {
				return nil, err
			}
			w.Detail = wd
		}
		return w, nil
	}
	return nil, fmt.Errorf("message: unknown reply %T: %w", r, ErrMalformed)
}

// FromWireReply builds a reply; ReplyNone yields nil.
func (c *Codec) FromWireReply(w *WireReply) (Reply, error) {
	if w == nil {
		return nil, ErrMalformed
	}
	switch w.Kind {
	case ReplyNone:
		return nil, nil
	case ReplyValue:
		v, err := c.FromWireValue(w.Value)
		if err != nil {
			return nil, err
		}
		r := NewValueReply(w.ID, v)
		value.Deinit(v)
		return r, nil
	case ReplyError:
		detail, err := c.FromWireValue(w.Detail)
		if err != nil {
			return nil, err
		}
		return NewErrorReply(w.ID, w.Code, w.Description, detail), nil
	}
	return nil, fmt.Errorf("message: reply kind %d: %w", w.Kind, ErrMalformed)
}

// ---------------------------------------------------------------------------
// Byte encoding
// ---------------------------------------------------------------------------

// EncodeTransaction serializes t to CBOR.
func (c *Codec) EncodeTransaction(t *Transaction) ([]byte, error) {
	w, err := c.ToWireTransaction(t)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(w)
}

// DecodeTransaction deserializes a transaction from CBOR.
func (c *Codec) DecodeTransaction(data []byte) (*Transaction, error) {
	var w WireTransaction
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("message: unmarshal transaction: %v: %w", err, ErrMalformed)
	}
	return c.FromWireTransaction(&w)
}

// EncodeReply serializes a reply to the transaction id to CBOR.
func (c *Codec) EncodeReply(id uint64, r Reply) ([]byte, error) {
	w, err := c.ToWireReply(id, r)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(w)
}

// DecodeReply deserializes a reply from CBOR.
func (c *Codec) DecodeReply(data []byte) (Reply, error) {
	var w WireReply
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("message: unmarshal reply: %v: %w", err, ErrMalformed)
	}
	return c.FromWireReply(&w)
}

// Marshal encodes any wire type with the canonical encoding.
func Marshal(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

// Unmarshal decodes CBOR into a wire type.
func Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

// NewEncoder returns a canonical CBOR stream encoder.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return cborEncMode.NewEncoder(w)
}

// NewDecoder returns a CBOR stream decoder.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return cbor.NewDecoder(r)
}
