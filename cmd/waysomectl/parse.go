package main

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/waysome/waysome/message"
	"github.com/waysome/waysome/value"
)

// parseCommands parses statements separated by ';' or newlines. Each
// statement is a command name followed by arguments:
//
//	42, -7        integer literal
//	true, false   bool literal
//	nil           nil literal
//	"text"        string literal (Go quoting)
//	@-1, @0       stack position
//	name=arg      named literal binding a literal argument
func parseCommands(src string) (*message.CommandList, error) {
	stmts, err := splitStatements(src)
	if err != nil {
		return nil, err
	}
	list := message.NewCommandList()
	for _, fields := range stmts {
		stmt := message.Statement{Command: fields[0]}
		for _, tok := range fields[1:] {
			arg, err := parseArg(tok)
			if err != nil {
				releaseStatements(append(list.Statements, stmt))
				return nil, fmt.Errorf("%s: %w", fields[0], err)
			}
			stmt.Args = append(stmt.Args, arg)
		}
		list.Statements = append(list.Statements, stmt)
	}
	return list, nil
}

// splitStatements tokenizes src, keeping quoted strings intact.
func splitStatements(src string) ([][]string, error) {
	var (
		stmts  [][]string
		fields []string
		tok    strings.Builder
		quoted bool
		escape bool
	)
	flushTok := func() {
		if tok.Len() > 0 {
			fields = append(fields, tok.String())
			tok.Reset()
		}
	}
	flushStmt := func() {
		flushTok()
		if len(fields) > 0 {
			stmts = append(stmts, fields)
			fields = nil
		}
	}
	for _, r := range src {
		switch {
		case quoted:
			tok.WriteRune(r)
			switch {
			case escape:
				escape = false
			case r == '\\':
				escape = true
			case r == '"':
				quoted = false
			}
		case r == '"':
			quoted = true
			tok.WriteRune(r)
		case r == ';' || r == '\n':
			flushStmt()
		case unicode.IsSpace(r):
			flushTok()
		default:
			tok.WriteRune(r)
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated string")
	}
	flushStmt()
	return stmts, nil
}

func parseArg(tok string) (message.Arg, error) {
	if rest, ok := strings.CutPrefix(tok, "@"); ok {
		pos, err := strconv.Atoi(rest)
		if err != nil {
			return message.Arg{}, fmt.Errorf("bad stack position %q", tok)
		}
		return message.StackPos(pos), nil
	}
	v, err := parseLiteral(tok)
	if err != nil {
		return message.Arg{}, err
	}
	return message.Literal(v), nil
}

func parseLiteral(tok string) (value.Value, error) {
	switch tok {
	case "nil":
		return value.NewNil(), nil
	case "true":
		return value.NewBool(true), nil
	case "false":
		return value.NewBool(false), nil
	}
	if strings.HasPrefix(tok, `"`) {
		raw, err := strconv.Unquote(tok)
		if err != nil {
			return nil, fmt.Errorf("bad string %s", tok)
		}
		return value.NewStrFromRaw(raw)
	}
	if name, rest, ok := strings.Cut(tok, "="); ok && name != "" {
		inner, err := parseLiteral(rest)
		if err != nil {
			return nil, err
		}
		s, err := value.NewStrFromRaw(name)
		if err != nil {
			value.Deinit(inner)
			return nil, err
		}
		str, _ := s.Get()
		n := value.NewNamed(str, inner)
		s.Deinit()
		return n, nil
	}
	i, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad literal %q", tok)
	}
	return value.NewInt(i), nil
}

func releaseStatements(stmts []message.Statement) {
	for _, stmt := range stmts {
		for _, a := range stmt.Args {
			value.Deinit(a.Value)
		}
	}
}
