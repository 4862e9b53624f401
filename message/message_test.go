package message

import (
	"testing"

	"github.com/waysome/waysome/object"
	"github.com/waysome/waysome/value"
)

// ---------------------------------------------------------------------------
// Types and flags
// ---------------------------------------------------------------------------

func TestMessageTypeChain(t *testing.T) {
	tx := NewTransaction(1, FlagExec, NewCommandList())
	vr := NewValueReply(1, nil)
	er := NewErrorReply(1, 22, "bad", nil)
	defer object.Unref(tx)
	defer object.Unref(vr)
	defer object.Unref(er)

	if !object.IsA(tx, TransactionType) || !object.IsA(tx, MessageType) {
		t.Error("transaction should be a ws_transaction and a ws_message")
	}
	if object.IsA(tx, ReplyType) {
		t.Error("transaction should not be a reply")
	}
	if !object.IsA(vr, ReplyType) || !object.IsA(er, ReplyType) {
		t.Error("replies should be ws_reply")
	}
	if object.IsA(vr, ErrorReplyType) {
		t.Error("value reply should not be an error reply")
	}
}

func TestFlagsString(t *testing.T) {
	tests := map[Flags]string{
		0:                    "none",
		FlagExec:             "exec",
		FlagStore:            "store",
		FlagExec | FlagStore: "exec|store",
	}
	for f, want := range tests {
		if got := f.String(); got != want {
			t.Errorf("Flags(%d).String() = %q, want %q", f, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Ownership
// ---------------------------------------------------------------------------

func TestTransactionReleasesLiterals(t *testing.T) {
	s, err := object.NewStringFromRaw("lit")
	if err != nil {
		t.Fatal(err)
	}
	list := NewCommandList(Call("push", Literal(value.NewStr(s)), StackPos(-1)))
	tx := NewTransaction(7, FlagExec, list)

	if got := s.Base().Refs(); got != 2 {
		t.Fatalf("Refs = %d, want 2", got)
	}
	object.Unref(tx)
	if got := s.Base().Refs(); got != 1 {
		t.Errorf("Refs after releasing the transaction = %d, want 1", got)
	}
	object.Unref(s)
}

func TestValueReplyCopiesValue(t *testing.T) {
	v := value.NewInt(42)
	r := NewValueReply(3, v)
	v.Set(1)

	got, err := r.Value().(*value.Int).Get()
	if err != nil || got != 42 {
		t.Errorf("reply value = %d, %v; want 42", got, err)
	}
	if r.ID() != 3 {
		t.Errorf("ID = %d, want 3", r.ID())
	}
	object.Unref(r)
}

func TestValueReplyDefaultsToNil(t *testing.T) {
	r := NewValueReply(1, nil)
	defer object.Unref(r)
	if value.TypeOf(r.Value()) != value.TypeNil {
		t.Errorf("value = %s, want nil", value.TypeOf(r.Value()))
	}
}

func TestErrorReplyCodeIsPositive(t *testing.T) {
	r := NewErrorReply(9, -22, "Command list malformed", nil)
	defer object.Unref(r)
	if r.Code() != 22 {
		t.Errorf("Code = %d, want 22", r.Code())
	}
	if r.Description() != "Command list malformed" {
		t.Errorf("Description = %q", r.Description())
	}
	if r.Error() == "" {
		t.Error("Error should describe the reply")
	}
}
