// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package term

import (
	"fmt"

	"github.com/AleutianAI/wamlink/services/wam/ops"
)

// PredicateKey identifies a callable relation.
type PredicateKey struct {
	Name  Atom
	Arity int
}

// String renders the key as a predicate indicator, e.g. "append/3".
func (k PredicateKey) String() string {
	return fmt.Sprintf("%s/%d", k.Name, k.Arity)
}

// TopLevel is one unit produced by the reader.
type TopLevel interface {
	// Name returns the head name. It reports false for queries,
	// declarations, and clauses whose head is not callable.
	Name() (Atom, bool)

	// Arity returns the head arity, 0 when there is no head.
	Arity() int

	topLevel()
}

// Clause is a Fact or a Rule.
type Clause interface {
	TopLevel
	HeadTerm() Term
}

// Fact is a clause without a body.
type Fact struct {
	Head Term
}

// Rule is a clause `Head :- Body`, with the body flattened on `,`.
type Rule struct {
	Head Term
	Body []Term
}

// Predicate is an ordered run of clauses sharing one identity.
type Predicate []Clause

// Query holds the goals of a `?- G.` directive.
type Query []Term

func (Fact) topLevel()      {}
func (Rule) topLevel()      {}
func (Predicate) topLevel() {}
func (Query) topLevel()     {}

func (f Fact) HeadTerm() Term { return f.Head }
func (r Rule) HeadTerm() Term { return r.Head }

func headName(t Term) (Atom, bool) {
	name, _, ok := Functor(t)
	return name, ok
}

func headArity(t Term) int {
	_, n, _ := Functor(t)
	return n
}

func (f Fact) Name() (Atom, bool) { return headName(f.Head) }
func (f Fact) Arity() int         { return headArity(f.Head) }
func (r Rule) Name() (Atom, bool) { return headName(r.Head) }
func (r Rule) Arity() int         { return headArity(r.Head) }

// Name returns the identity of the first clause.
func (p Predicate) Name() (Atom, bool) {
	if len(p) == 0 {
		return "", false
	}
	return p[0].Name()
}

func (p Predicate) Arity() int {
	if len(p) == 0 {
		return 0
	}
	return p[0].Arity()
}

func (Query) Name() (Atom, bool) { return "", false }
func (Query) Arity() int         { return 0 }

// KeyOf returns the predicate key of a unit with a resolvable head.
func KeyOf(tl TopLevel) (PredicateKey, bool) {
	name, ok := tl.Name()
	if !ok {
		return PredicateKey{}, false
	}
	return PredicateKey{Name: name, Arity: tl.Arity()}, true
}

// =============================================================================
// Declarations
// =============================================================================

// Declaration is a `:- Directive.` unit.
type Declaration interface {
	TopLevel
	declaration()
}

// OpDecl is `:- op(Priority, Spec, Names).`
type OpDecl struct {
	Decls []ops.Decl
}

// UseModule is `:- use_module(Name).`
type UseModule struct {
	Module Atom
}

// UseQualifiedModule is `:- use_module(Name, [Key, ...]).`
type UseQualifiedModule struct {
	Module  Atom
	Exports []PredicateKey
}

// ModuleDecl is `:- module(Name, Exports).`
type ModuleDecl struct {
	Module    Atom
	Exports   []PredicateKey
	OpExports []ops.Decl
}

// NonCountedBacktracking is `:- non_counted_backtracking Name/Arity.`
type NonCountedBacktracking struct {
	Key PredicateKey
}

func (OpDecl) topLevel()                 {}
func (UseModule) topLevel()              {}
func (UseQualifiedModule) topLevel()     {}
func (ModuleDecl) topLevel()             {}
func (NonCountedBacktracking) topLevel() {}

func (OpDecl) declaration()                 {}
func (UseModule) declaration()              {}
func (UseQualifiedModule) declaration()     {}
func (ModuleDecl) declaration()             {}
func (NonCountedBacktracking) declaration() {}

func (OpDecl) Name() (Atom, bool)                 { return "", false }
func (UseModule) Name() (Atom, bool)              { return "", false }
func (UseQualifiedModule) Name() (Atom, bool)     { return "", false }
func (ModuleDecl) Name() (Atom, bool)             { return "", false }
func (NonCountedBacktracking) Name() (Atom, bool) { return "", false }

func (OpDecl) Arity() int                 { return 0 }
func (UseModule) Arity() int              { return 0 }
func (UseQualifiedModule) Arity() int     { return 0 }
func (ModuleDecl) Arity() int             { return 0 }
func (NonCountedBacktracking) Arity() int { return 0 }
