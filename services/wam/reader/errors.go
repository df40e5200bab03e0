// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reader turns source text into the top-level units the compiler
// consumes.
//
// # Workers
//
//   - ParsePacket reads exactly one clause, query or directive and returns a
//     Packet: the unit plus its auxiliary queue.
//   - BatchWorker reads a whole listing. Consume hands back declarations one
//     at a time and accumulates clauses into Groups of consecutive clauses
//     sharing one (name, arity).
//
// Both read every term against the operator directory passed in at that
// moment, so an op/3 directive that was submitted before the next read
// changes how the following text parses.
//
// # Auxiliary queue
//
// Disjunction, if-then(-else) and negation in a body are lifted into
// auxiliary relations. The goal is replaced by a term.Jump and the relation
// is queued. The queue is built breadth-first over the whole unit so that
// queue order matches the order of the Jump placeholders in the compiled
// code.
package reader

import (
	"errors"
	"fmt"
)

// Sentinel errors for reading.
var (
	// ErrSyntax is wrapped by every SyntaxError.
	ErrSyntax = errors.New("syntax error")

	// ErrIncomplete is returned when input ends inside a clause. Interactive
	// callers use it to ask for a continuation line.
	ErrIncomplete = errors.New("incomplete input")

	// ErrExpectedRel is returned when a query or declaration is handed to a
	// stage that only accepts facts, rules, and predicates.
	ErrExpectedRel = errors.New("expected a relation")

	// ErrInvalidModuleDecl is returned for a second module header in one
	// listing, or for a module-level directive at the top level.
	ErrInvalidModuleDecl = errors.New("invalid module declaration")

	// ErrInvalidDirective is returned for a `:- D.` that is not a known
	// declaration form.
	ErrInvalidDirective = errors.New("invalid directive")
)

// SyntaxError locates a reading failure.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

// Unwrap returns ErrSyntax, or the more specific cause when set.
func (e *SyntaxError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSyntax, e.Err}
	}
	return []error{ErrSyntax}
}

// IsIncomplete reports whether err means the input stopped mid-clause.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrIncomplete)
}
