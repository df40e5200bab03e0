// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package codegen selects WAM instructions for one relation or query.
//
// # Registers
//
// Argument registers A1..An share numbering with the temporaries X1..Xn.
// Clause temporaries are numbered above the largest arity appearing in the
// clause so they never collide with an argument being loaded. A variable
// is permanent (a Y register in the environment) when it occurs in more
// than one chunk, where a chunk ends at every goal that transfers control.
//
// # Indexing
//
// Multi-clause predicates get a switch_on_term on the first argument when
// at least one clause has a bound first argument. Buckets with a single
// clause jump straight to its body; larger buckets jump to a try/retry/
// trust block laid out after the last clause.
package codegen

import (
	"errors"

	"github.com/AleutianAI/wamlink/services/wam/instr"
)

// Sentinel errors reported while generating code.
var (
	// ErrInvalidGoal is returned for a body goal that is not callable,
	// such as a number.
	ErrInvalidGoal = errors.New("invalid goal")

	// ErrNotEvaluable is returned for an arithmetic expression with an
	// unknown functor.
	ErrNotEvaluable = errors.New("not evaluable")

	// ErrUnsupported is returned for constructs the generator does not
	// compile.
	ErrUnsupported = errors.New("unsupported construct")
)

// VarBindings maps the source name of each query variable to the register
// holding its binding.
type VarBindings map[string]instr.Reg
