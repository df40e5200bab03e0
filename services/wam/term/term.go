// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package term defines the syntax-level data model consumed by the compiler:
// terms, clauses, and the top-level units a reader produces.
//
// # Units
//
// A TopLevel is one of:
//   - Fact, Rule: a single clause
//   - Predicate: an ordered run of clauses sharing one (name, arity)
//   - Query: the goals of a `?- G.` directive
//   - a Declaration (OpDecl, UseModule, UseQualifiedModule, ModuleDecl,
//     NonCountedBacktracking)
//
// The reader guarantees that all clauses of a Predicate share one identity.
// Nothing in this package re-checks that.
package term

import (
	"fmt"
	"strconv"
	"strings"
)

// Term is any Prolog term.
type Term interface {
	String() string
	isTerm()
}

// Atom is a symbolic constant.
type Atom string

// Well-known atoms.
const (
	Nil   Atom = "[]"
	Cons  Atom = "."
	Comma Atom = ","
	Semi  Atom = ";"
	Arrow Atom = "->"
	Neck  Atom = ":-"
	Cut   Atom = "!"
	True  Atom = "true"
)

// Var is a logic variable identified by its source name.
//
// Anonymous variables (`_`) are given a name the lexer can never produce,
// see NewAnonymous.
type Var struct {
	Name string
}

// Int is an integer constant.
type Int int64

// Float is a floating point constant.
type Float float64

// Compound is a structure f(A1, ..., An) with n >= 1.
type Compound struct {
	Functor Atom
	Args    []Term
}

// Jump is a body goal that transfers control to the next auxiliary unit
// spliced after the current relation. It is produced by the reader when a
// control construct is lifted into the auxiliary queue.
type Jump struct {
	Args []Term
}

func (Atom) isTerm()      {}
func (Var) isTerm()       {}
func (Int) isTerm()       {}
func (Float) isTerm()     {}
func (*Compound) isTerm() {}
func (*Jump) isTerm()     {}

const anonPrefix = "_#"

// NewAnonymous returns a fresh anonymous variable numbered n.
func NewAnonymous(n int) Var {
	return Var{Name: anonPrefix + strconv.Itoa(n)}
}

// IsAnonymous reports whether v was written as `_` in the source.
func (v Var) IsAnonymous() bool {
	return strings.HasPrefix(v.Name, anonPrefix)
}

// NewCompound builds f(args...). With no arguments it returns the atom f.
func NewCompound(f Atom, args ...Term) Term {
	if len(args) == 0 {
		return f
	}
	return &Compound{Functor: f, Args: args}
}

// List builds a proper or partial list from items ending in tail.
func List(items []Term, tail Term) Term {
	if tail == nil {
		tail = Nil
	}
	out := tail
	for i := len(items) - 1; i >= 0; i-- {
		out = &Compound{Functor: Cons, Args: []Term{items[i], out}}
	}
	return out
}

// IsCallable reports whether t can stand as a goal or a clause head.
func IsCallable(t Term) bool {
	switch t.(type) {
	case Atom, *Compound:
		return true
	default:
		return false
	}
}

// Functor returns the name and arity of a callable term.
func Functor(t Term) (Atom, int, bool) {
	switch t := t.(type) {
	case Atom:
		return t, 0, true
	case *Compound:
		return t.Functor, len(t.Args), true
	default:
		return "", 0, false
	}
}

// Args returns the arguments of t, nil for atoms and other constants.
func Args(t Term) []Term {
	if c, ok := t.(*Compound); ok {
		return c.Args
	}
	if j, ok := t.(*Jump); ok {
		return j.Args
	}
	return nil
}

// Vars returns the distinct variables of t in order of first occurrence.
func Vars(ts ...Term) []Var {
	seen := make(map[Var]struct{})
	var out []Var
	var walk func(Term)
	walk = func(t Term) {
		switch t := t.(type) {
		case Var:
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				out = append(out, t)
			}
		case *Compound:
			for _, a := range t.Args {
				walk(a)
			}
		case *Jump:
			for _, a := range t.Args {
				walk(a)
			}
		}
	}
	for _, t := range ts {
		walk(t)
	}
	return out
}

// =============================================================================
// Printing
// =============================================================================

func (a Atom) String() string {
	s := string(a)
	if s == "[]" || s == "{}" || s == "!" || s == ";" || s == "," {
		if s == "," {
			return "','"
		}
		return s
	}
	if needsQuotes(s) {
		return "'" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`) + "'"
	}
	return s
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		for _, r := range s {
			if !isAlnum(r) {
				return true
			}
		}
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(SymbolChars, r) {
			return true
		}
	}
	return false
}

// SymbolChars are the characters that form symbolic atoms such as `=..`.
const SymbolChars = `+-*/\^<>=~:.?@#&$`

func isAlnum(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func (v Var) String() string {
	if v.IsAnonymous() {
		return "_G" + strings.TrimPrefix(v.Name, anonPrefix)
	}
	return v.Name
}

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

func (f Float) String() string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func (c *Compound) String() string {
	if c.Functor == Cons && len(c.Args) == 2 {
		return listString(c)
	}
	var b strings.Builder
	b.WriteString(c.Functor.String())
	b.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	return b.String()
}

func listString(c *Compound) string {
	var b strings.Builder
	b.WriteByte('[')
	var t Term = c
	for i := 0; ; i++ {
		cell, ok := t.(*Compound)
		if !ok || cell.Functor != Cons || len(cell.Args) != 2 {
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(cell.Args[0].String())
		t = cell.Args[1]
	}
	if t != Nil {
		b.WriteByte('|')
		b.WriteString(t.String())
	}
	b.WriteByte(']')
	return b.String()
}

func (j *Jump) String() string {
	return fmt.Sprintf("$jmp(%d)", len(j.Args))
}
