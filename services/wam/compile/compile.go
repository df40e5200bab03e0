// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compile turns reader units into installed machine code.
//
// # Entry points
//
//   - Packet evaluates one interactively read unit: a query is compiled and
//     submitted, a declaration is applied, a clause is compiled and
//     installed under its key.
//   - Listing loads a whole source stream, optionally as a module, and
//     commits it atomically.
//   - UserModule is Listing for top-level files, seeded with the standard
//     operators and the exports of the builtins module.
//
// # Linking
//
// A relation's auxiliary queue is spliced directly after it. Before each
// queued unit is appended, the first unresolved jmp_by in the code built
// so far is pointed at the end of that code, which is where the unit will
// start. Queue order therefore decides addresses.
//
// # Atomicity
//
// Nothing reaches the machine until a listing has been read and compiled
// in full. Addresses are computed against the code size observed when the
// listing started, so the code must be appended verbatim at commit.
package compile

import (
	"log/slog"

	"github.com/AleutianAI/wamlink/services/wam/codegen"
	"github.com/AleutianAI/wamlink/services/wam/instr"
	"github.com/AleutianAI/wamlink/services/wam/machine"
	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/reader"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

// Machine is what the compiler needs from the machine it installs into.
// *machine.Machine implements it.
type Machine interface {
	CodeSize() int
	Module(name string) (*machine.Module, bool)
	CodeDir() machine.CodeDir
	OpDir() ops.Dir
	Flags() reader.Flags
	Logger() *slog.Logger

	SubmitQuery(code instr.Code, bindings codegen.VarBindings) (machine.Session, error)
	UseModule(name string) error
	UseQualifiedModule(name string, keys []term.PredicateKey) error

	AddUserCode(key term.PredicateKey, code instr.Code)
	AddModule(mod *machine.Module, code instr.Code)
	AddBatchedCode(code instr.Code, bundle *machine.IndexBundle)

	ClassifyClause(name term.Atom, arity int) machine.ClauseType
}

var _ Machine = (*machine.Machine)(nil)
