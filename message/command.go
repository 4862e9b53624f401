package message

import (
	"github.com/waysome/waysome/value"
)

// CommandList is the ordered list of statements of a transaction.
type CommandList struct {
	Statements []Statement
}

// NewCommandList builds a list from statements.
func NewCommandList(stmts ...Statement) *CommandList {
	return &CommandList{Statements: stmts}
}

// Len returns the number of statements, zero for a nil list.
func (l *CommandList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Statements)
}

func (l *CommandList) release() {
	if l == nil {
		return
	}
	for i := range l.Statements {
		for _, a := range l.Statements[i].Args {
			value.Deinit(a.Value)
		}
	}
}

// Statement invokes one command with arguments.
type Statement struct {
	Command string
	Args    []Arg
}

// Call builds a statement.
func Call(command string, args ...Arg) Statement {
	return Statement{Command: command, Args: args}
}

// Arg is either a literal value or a reference to a stack position.
// Positions are resolved in the frame enclosing the statement: zero and
// up count from the frame bottom, negative values from the top.
type Arg struct {
	Value value.Value
	Pos   int
	IsPos bool
}

// Literal makes a literal argument. The list takes over v.
func Literal(v value.Value) Arg {
	return Arg{Value: v}
}

// StackPos makes an argument referencing a stack position.
func StackPos(pos int) Arg {
	return Arg{Pos: pos, IsPos: true}
}
