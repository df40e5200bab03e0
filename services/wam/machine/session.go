// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package machine

import (
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/wamlink/services/wam/codegen"
	"github.com/AleutianAI/wamlink/services/wam/instr"
)

// SessionKind tells what a successful top-level step produced.
type SessionKind int

const (
	// EntrySuccess means code, operators, or imports were installed.
	EntrySuccess SessionKind = iota
	// QueryReady means a query was compiled and submitted.
	QueryReady
)

func (k SessionKind) String() string {
	if k == QueryReady {
		return "query_ready"
	}
	return "entry_success"
}

// PendingQuery is a compiled query awaiting execution.
type PendingQuery struct {
	ID          uuid.UUID
	Code        instr.Code
	Bindings    codegen.VarBindings
	SubmittedAt time.Time
}

// Session is the outcome of one top-level step.
type Session struct {
	Kind  SessionKind
	Query *PendingQuery
}

// Success is the outcome of an installing step.
var Success = Session{Kind: EntrySuccess}
