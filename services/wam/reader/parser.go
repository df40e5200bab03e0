// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reader

import (
	"fmt"
	"io"

	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

// DoubleQuotes selects how "text" is read.
type DoubleQuotes int

const (
	// DQCodes reads "ab" as [97, 98].
	DQCodes DoubleQuotes = iota
	// DQChars reads "ab" as [a, b].
	DQChars
	// DQAtom reads "ab" as 'ab'.
	DQAtom
)

// ParseDoubleQuotes maps a flag value such as "codes" to DoubleQuotes.
func ParseDoubleQuotes(s string) (DoubleQuotes, error) {
	switch s {
	case "codes", "":
		return DQCodes, nil
	case "chars":
		return DQChars, nil
	case "atom":
		return DQAtom, nil
	}
	return 0, fmt.Errorf("double_quotes %q: %w", s, ErrInvalidDirective)
}

// Flags are the reader-relevant machine flags.
type Flags struct {
	DoubleQuotes DoubleQuotes
}

type parser struct {
	lex    *lexer
	ops    ops.Dir
	flags  Flags
	tok    token
	hasTok bool
	anon   int
}

func newParser(src []byte, dir ops.Dir, flags Flags) *parser {
	return &parser{lex: newLexer(src), ops: dir, flags: flags}
}

func (p *parser) peek() (token, error) {
	if !p.hasTok {
		tok, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.tok = tok
		p.hasTok = true
	}
	return p.tok, nil
}

func (p *parser) advance() (token, error) {
	tok, err := p.peek()
	if err != nil {
		return token{}, err
	}
	p.hasTok = false
	return tok, nil
}

func (p *parser) errAt(tok token, msg string, args ...any) *SyntaxError {
	e := &SyntaxError{Line: tok.line, Col: tok.col, Msg: fmt.Sprintf(msg, args...)}
	if tok.kind == tkEOF {
		e.Err = ErrIncomplete
	}
	return e
}

// readTerm reads one term terminated by an end token. It returns io.EOF
// when only layout remains.
func (p *parser) readTerm() (term.Term, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.kind == tkEOF {
		return nil, io.EOF
	}
	t, _, err := p.parse(ops.MaxPriority)
	if err != nil {
		return nil, err
	}
	end, err := p.advance()
	if err != nil {
		return nil, err
	}
	switch end.kind {
	case tkEnd:
		return t, nil
	case tkEOF:
		return nil, p.errAt(end, "missing end of clause")
	default:
		return nil, p.errAt(end, "operator expected before %q", end.text)
	}
}

func (p *parser) parse(max int) (term.Term, int, error) {
	left, pri, err := p.primary(max)
	if err != nil {
		return nil, 0, err
	}
	return p.infix(left, pri, max)
}

func (p *parser) primary(max int) (term.Term, int, error) {
	tok, err := p.advance()
	if err != nil {
		return nil, 0, err
	}

	switch tok.kind {
	case tkInt:
		return term.Int(tok.ival), 0, nil
	case tkFloat:
		return term.Float(tok.fval), 0, nil
	case tkVar:
		if tok.text == "_" {
			p.anon++
			return term.NewAnonymous(p.anon), 0, nil
		}
		return term.Var{Name: tok.text}, 0, nil
	case tkString:
		return p.stringTerm(tok.text), 0, nil
	case tkEOF:
		return nil, 0, p.errAt(tok, "unexpected end of input")
	case tkEnd:
		return nil, 0, p.errAt(tok, "unexpected end of clause")
	case tkPunct:
		return p.punct(tok)
	}

	name := tok.text
	next, err := p.peek()
	if err != nil {
		return nil, 0, err
	}
	if next.kind == tkPunct && next.text == "(" && !next.layout {
		p.advance()
		args, err := p.arglist(")")
		if err != nil {
			return nil, 0, err
		}
		return &term.Compound{Functor: term.Atom(name), Args: args}, 0, nil
	}
	if tok.kind == tkAtom && name == "-" && !next.layout {
		switch next.kind {
		case tkInt:
			p.advance()
			return term.Int(-next.ival), 0, nil
		case tkFloat:
			p.advance()
			return term.Float(-next.fval), 0, nil
		}
	}
	if def, ok := p.ops.Lookup(name, ops.Prefix); ok && !p.endsOperand(next) {
		pri := def.Priority
		_, argMax := def.ArgPriorities()
		if pri > max {
			pri, argMax = 0, max
		}
		arg, _, err := p.parse(argMax)
		if err != nil {
			return nil, 0, err
		}
		return &term.Compound{Functor: term.Atom(name), Args: []term.Term{arg}}, pri, nil
	}
	return term.Atom(name), 0, nil
}

// endsOperand reports whether next cannot begin the operand of a prefix
// operator, in which case the operator reads as a plain atom.
func (p *parser) endsOperand(next token) bool {
	switch next.kind {
	case tkEnd, tkEOF:
		return true
	case tkPunct:
		switch next.text {
		case ")", "]", "}", ",", "|":
			return true
		}
	case tkAtom:
		if _, ok := p.ops.Lookup(next.text, ops.Infix); ok {
			_, isPrefix := p.ops.Lookup(next.text, ops.Prefix)
			return !isPrefix
		}
	}
	return false
}

func (p *parser) punct(tok token) (term.Term, int, error) {
	switch tok.text {
	case "(":
		t, _, err := p.parse(ops.MaxPriority)
		if err != nil {
			return nil, 0, err
		}
		return t, 0, p.expect(")")
	case "[":
		next, err := p.peek()
		if err != nil {
			return nil, 0, err
		}
		if next.kind == tkPunct && next.text == "]" {
			p.advance()
			return term.Nil, 0, nil
		}
		t, err := p.list()
		return t, 0, err
	case "{":
		next, err := p.peek()
		if err != nil {
			return nil, 0, err
		}
		if next.kind == tkPunct && next.text == "}" {
			p.advance()
			return term.Atom("{}"), 0, nil
		}
		t, _, err := p.parse(ops.MaxPriority)
		if err != nil {
			return nil, 0, err
		}
		if err := p.expect("}"); err != nil {
			return nil, 0, err
		}
		return &term.Compound{Functor: "{}", Args: []term.Term{t}}, 0, nil
	}
	return nil, 0, p.errAt(tok, "unexpected %q", tok.text)
}

func (p *parser) infix(left term.Term, leftPri, max int) (term.Term, int, error) {
	for {
		next, err := p.peek()
		if err != nil {
			return nil, 0, err
		}
		var name string
		switch {
		case next.kind == tkAtom:
			name = next.text
		case next.kind == tkPunct && (next.text == "," || next.text == "|"):
			name = next.text
		default:
			return left, leftPri, nil
		}

		if def, ok := p.ops.Lookup(name, ops.Infix); ok {
			l, r := def.ArgPriorities()
			if def.Priority <= max && leftPri <= l {
				p.advance()
				right, _, err := p.parse(r)
				if err != nil {
					return nil, 0, err
				}
				functor := term.Atom(name)
				if name == "|" {
					functor = term.Semi
				}
				left = &term.Compound{Functor: functor, Args: []term.Term{left, right}}
				leftPri = def.Priority
				continue
			}
		}
		if def, ok := p.ops.Lookup(name, ops.Postfix); ok {
			l, _ := def.ArgPriorities()
			if def.Priority <= max && leftPri <= l {
				p.advance()
				left = &term.Compound{Functor: term.Atom(name), Args: []term.Term{left}}
				leftPri = def.Priority
				continue
			}
		}
		return left, leftPri, nil
	}
}

func (p *parser) arglist(closer string) ([]term.Term, error) {
	var args []term.Term
	for {
		t, _, err := p.parse(999)
		if err != nil {
			return nil, err
		}
		args = append(args, t)
		tok, err := p.advance()
		if err != nil {
			return nil, err
		}
		if tok.kind == tkPunct && tok.text == "," {
			continue
		}
		if tok.kind == tkPunct && tok.text == closer {
			return args, nil
		}
		return nil, p.errAt(tok, "expected %q or \",\"", closer)
	}
}

func (p *parser) list() (term.Term, error) {
	var items []term.Term
	for {
		t, _, err := p.parse(999)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
		tok, err := p.advance()
		if err != nil {
			return nil, err
		}
		if tok.kind != tkPunct {
			return nil, p.errAt(tok, "expected \",\", \"|\" or \"]\" in list")
		}
		switch tok.text {
		case ",":
			continue
		case "]":
			return term.List(items, term.Nil), nil
		case "|":
			tail, _, err := p.parse(999)
			if err != nil {
				return nil, err
			}
			return term.List(items, tail), p.expect("]")
		default:
			return nil, p.errAt(tok, "expected \",\", \"|\" or \"]\" in list")
		}
	}
}

func (p *parser) expect(text string) error {
	tok, err := p.advance()
	if err != nil {
		return err
	}
	if tok.kind == tkPunct && tok.text == text {
		return nil
	}
	return p.errAt(tok, "expected %q", text)
}

func (p *parser) stringTerm(s string) term.Term {
	switch p.flags.DoubleQuotes {
	case DQAtom:
		return term.Atom(s)
	case DQChars:
		var items []term.Term
		for _, r := range s {
			items = append(items, term.Atom(string(r)))
		}
		return term.List(items, term.Nil)
	default:
		var items []term.Term
		for _, r := range s {
			items = append(items, term.Int(r))
		}
		return term.List(items, term.Nil)
	}
}
