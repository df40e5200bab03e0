// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compile

import (
	"fmt"

	"github.com/AleutianAI/wamlink/services/wam/codegen"
	"github.com/AleutianAI/wamlink/services/wam/instr"
	"github.com/AleutianAI/wamlink/services/wam/reader"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

// Relation compiles a fact, rule, or predicate. Queries and declarations
// fail with reader.ErrExpectedRel. nonCounted only tags choice
// instructions for backtracking statistics.
func Relation(unit term.TopLevel, nonCounted bool) (instr.Code, error) {
	switch u := unit.(type) {
	case term.Fact:
		return codegen.CompileFact(u), nil
	case term.Rule:
		return codegen.CompileRule(u)
	case term.Predicate:
		return codegen.CompilePredicate(u, nonCounted)
	}
	return nil, fmt.Errorf("%T: %w", unit, reader.ErrExpectedRel)
}

// PatchFirstPendingJump resolves the lowest-index unresolved jmp_by in
// code to the distance from it to len(code). It patches at most one line
// and does nothing when no jump is pending.
func PatchFirstPendingJump(code instr.Code) {
	for i, l := range code {
		c, ok := l.(instr.Control)
		if !ok || !c.IsPendingJump() {
			continue
		}
		c.Offset = len(code) - i
		code[i] = c
		return
	}
}

// Appendix appends each queued unit to code in order, first pointing the
// next pending jump at the position the unit will occupy.
func Appendix(code instr.Code, queue []term.TopLevel, nonCounted bool) (instr.Code, error) {
	for _, unit := range queue {
		PatchFirstPendingJump(code)
		next, err := Relation(unit, nonCounted)
		if err != nil {
			return nil, err
		}
		code = append(code, next...)
	}
	return code, nil
}

// Query compiles query goals followed by their auxiliary queue. Queries
// are always counted.
func Query(goals term.Query, queue []term.TopLevel) (instr.Code, codegen.VarBindings, error) {
	code, bindings, err := codegen.CompileQuery(goals)
	if err != nil {
		return nil, nil, err
	}
	code, err = Appendix(code, queue, false)
	if err != nil {
		return nil, nil, err
	}
	return code, bindings, nil
}
