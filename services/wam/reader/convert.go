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

	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

// clauseSrc is a clause as read, before its body is flattened and lifted.
type clauseSrc struct {
	head term.Term
	body term.Term // nil for facts
	line int
	col  int
}

func (c clauseSrc) key() (term.PredicateKey, bool) {
	name, arity, ok := term.Functor(c.head)
	if !ok {
		return term.PredicateKey{}, false
	}
	return term.PredicateKey{Name: name, Arity: arity}, true
}

// unitKind tells what a read term stands for.
type unitKind int

const (
	kindClause unitKind = iota
	kindDirective
	kindQuery
)

func classify(t term.Term) (unitKind, term.Term) {
	c, ok := t.(*term.Compound)
	if !ok {
		return kindClause, nil
	}
	switch {
	case c.Functor == term.Neck && len(c.Args) == 1:
		return kindDirective, c.Args[0]
	case c.Functor == "?-" && len(c.Args) == 1:
		return kindQuery, c.Args[0]
	}
	return kindClause, nil
}

func toClause(t term.Term, tok token) (clauseSrc, error) {
	if c, ok := t.(*term.Compound); ok && len(c.Args) == 2 {
		switch c.Functor {
		case term.Neck:
			return clauseSrc{head: c.Args[0], body: c.Args[1], line: tok.line, col: tok.col}, nil
		case "-->":
			return clauseSrc{}, &SyntaxError{Line: tok.line, Col: tok.col, Msg: "grammar rules are not supported"}
		}
	}
	return clauseSrc{head: t, line: tok.line, col: tok.col}, nil
}

// =============================================================================
// Declarations
// =============================================================================

func declaration(d term.Term) (term.Declaration, error) {
	name, arity, _ := term.Functor(d)
	args := term.Args(d)
	switch {
	case name == "op" && arity == 3:
		decls, err := opDecls(args[0], args[1], args[2])
		if err != nil {
			return nil, err
		}
		return term.OpDecl{Decls: decls}, nil

	case name == "module" && arity == 2:
		mod, ok := args[0].(term.Atom)
		if !ok {
			return nil, fmt.Errorf("module name %s: %w", args[0], ErrInvalidModuleDecl)
		}
		items, ok := listItems(args[1])
		if !ok {
			return nil, fmt.Errorf("module export list %s: %w", args[1], ErrInvalidModuleDecl)
		}
		decl := term.ModuleDecl{Module: mod}
		for _, item := range items {
			if op, ok := item.(*term.Compound); ok && op.Functor == "op" && len(op.Args) == 3 {
				ds, err := opDecls(op.Args[0], op.Args[1], op.Args[2])
				if err != nil {
					return nil, err
				}
				decl.OpExports = append(decl.OpExports, ds...)
				continue
			}
			key, err := indicator(item)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidModuleDecl, err)
			}
			decl.Exports = append(decl.Exports, key)
		}
		return decl, nil

	case name == "use_module" && arity == 1:
		mod, err := moduleName(args[0])
		if err != nil {
			return nil, err
		}
		return term.UseModule{Module: mod}, nil

	case name == "use_module" && arity == 2:
		mod, err := moduleName(args[0])
		if err != nil {
			return nil, err
		}
		items, ok := listItems(args[1])
		if !ok {
			return nil, fmt.Errorf("import list %s: %w", args[1], ErrInvalidDirective)
		}
		decl := term.UseQualifiedModule{Module: mod}
		for _, item := range items {
			key, err := indicator(item)
			if err != nil {
				return nil, err
			}
			decl.Exports = append(decl.Exports, key)
		}
		return decl, nil

	case name == "non_counted_backtracking" && arity == 1:
		key, err := indicator(args[0])
		if err != nil {
			return nil, err
		}
		return term.NonCountedBacktracking{Key: key}, nil
	}
	return nil, fmt.Errorf("%s: %w", d, ErrInvalidDirective)
}

func opDecls(pri, spec, names term.Term) ([]ops.Decl, error) {
	p, ok := pri.(term.Int)
	if !ok {
		return nil, fmt.Errorf("op priority %s: %w", pri, ErrInvalidDirective)
	}
	s, ok := spec.(term.Atom)
	if !ok {
		return nil, fmt.Errorf("op specifier %s: %w", spec, ErrInvalidDirective)
	}
	sp, err := ops.ParseSpec(string(s))
	if err != nil {
		return nil, err
	}
	var atoms []term.Term
	if items, ok := listItems(names); ok && names != term.Nil {
		atoms = items
	} else {
		atoms = []term.Term{names}
	}
	out := make([]ops.Decl, 0, len(atoms))
	for _, a := range atoms {
		n, ok := a.(term.Atom)
		if !ok {
			return nil, fmt.Errorf("op name %s: %w", a, ErrInvalidDirective)
		}
		d := ops.Decl{Priority: int(p), Spec: sp, Name: string(n)}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// moduleName accepts `name` and `library(name)`.
func moduleName(t term.Term) (term.Atom, error) {
	if c, ok := t.(*term.Compound); ok && c.Functor == "library" && len(c.Args) == 1 {
		t = c.Args[0]
	}
	a, ok := t.(term.Atom)
	if !ok {
		return "", fmt.Errorf("module name %s: %w", t, ErrInvalidDirective)
	}
	return a, nil
}

// indicator reads Name/Arity.
func indicator(t term.Term) (term.PredicateKey, error) {
	c, ok := t.(*term.Compound)
	if !ok || c.Functor != "/" || len(c.Args) != 2 {
		return term.PredicateKey{}, fmt.Errorf("predicate indicator %s: %w", t, ErrInvalidDirective)
	}
	name, ok := c.Args[0].(term.Atom)
	arity, ok2 := c.Args[1].(term.Int)
	if !ok || !ok2 || arity < 0 {
		return term.PredicateKey{}, fmt.Errorf("predicate indicator %s: %w", t, ErrInvalidDirective)
	}
	return term.PredicateKey{Name: name, Arity: int(arity)}, nil
}

// listItems returns the elements of a proper list.
func listItems(t term.Term) ([]term.Term, bool) {
	var out []term.Term
	for {
		switch l := t.(type) {
		case term.Atom:
			return out, l == term.Nil
		case *term.Compound:
			if l.Functor != term.Cons || len(l.Args) != 2 {
				return nil, false
			}
			out = append(out, l.Args[0])
			t = l.Args[1]
		default:
			return nil, false
		}
	}
}

// =============================================================================
// Lifting
// =============================================================================

// auxDef is a lifted control construct waiting to become clauses. A nil
// body stands for a fact.
type auxDef struct {
	head   term.Term
	bodies [][]term.Term
}

// lifter flattens bodies and replaces control constructs with Jump goals.
// Lifted definitions are drained breadth-first into queue.
type lifter struct {
	next  *int
	work  []auxDef
	queue []term.TopLevel
}

func (l *lifter) goals(body ...term.Term) []term.Term {
	var out []term.Term
	for _, b := range body {
		out = l.appendGoals(out, b)
	}
	return out
}

func (l *lifter) appendGoals(out []term.Term, t term.Term) []term.Term {
	c, ok := t.(*term.Compound)
	if !ok {
		return append(out, t)
	}
	switch {
	case c.Functor == term.Comma && len(c.Args) == 2:
		out = l.appendGoals(out, c.Args[0])
		return l.appendGoals(out, c.Args[1])
	case (c.Functor == term.Semi || c.Functor == term.Arrow) && len(c.Args) == 2,
		c.Functor == `\+` && len(c.Args) == 1:
		return append(out, l.lift(c))
	}
	return append(out, t)
}

func (l *lifter) lift(c *term.Compound) term.Term {
	var args []term.Term
	for _, v := range term.Vars(c) {
		if !v.IsAnonymous() {
			args = append(args, v)
		}
	}
	*l.next++
	head := term.NewCompound(term.Atom(fmt.Sprintf("$aux%d", *l.next)), args...)

	var bodies [][]term.Term
	switch c.Functor {
	case term.Semi:
		for _, alt := range disjuncts(c) {
			if ite, ok := alt.(*term.Compound); ok && ite.Functor == term.Arrow && len(ite.Args) == 2 {
				bodies = append(bodies, []term.Term{ite.Args[0], term.Cut, ite.Args[1]})
			} else {
				bodies = append(bodies, []term.Term{alt})
			}
		}
	case term.Arrow:
		bodies = [][]term.Term{{c.Args[0], term.Cut, c.Args[1]}}
	default:
		bodies = [][]term.Term{{c.Args[0], term.Cut, term.Atom("fail")}, nil}
	}
	l.work = append(l.work, auxDef{head: head, bodies: bodies})
	return &term.Jump{Args: args}
}

func disjuncts(t term.Term) []term.Term {
	var out []term.Term
	for {
		c, ok := t.(*term.Compound)
		if !ok || c.Functor != term.Semi || len(c.Args) != 2 {
			return append(out, t)
		}
		out = append(out, c.Args[0])
		t = c.Args[1]
	}
}

func (l *lifter) clause(src clauseSrc) term.Clause {
	if src.body == nil {
		return term.Fact{Head: src.head}
	}
	return term.Rule{Head: src.head, Body: l.goals(src.body)}
}

// drain turns pending definitions into queued units. Definitions lifted
// while draining join the end of the work list.
func (l *lifter) drain() []term.TopLevel {
	for i := 0; i < len(l.work); i++ {
		def := l.work[i]
		clauses := make([]term.Clause, 0, len(def.bodies))
		for _, body := range def.bodies {
			if body == nil {
				clauses = append(clauses, term.Fact{Head: def.head})
				continue
			}
			clauses = append(clauses, term.Rule{Head: def.head, Body: l.goals(body...)})
		}
		if len(clauses) == 1 {
			l.queue = append(l.queue, clauses[0])
		} else {
			l.queue = append(l.queue, term.Predicate(clauses))
		}
	}
	l.work = nil
	return l.queue
}
