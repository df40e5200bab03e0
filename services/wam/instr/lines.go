// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package instr

import "fmt"

// =============================================================================
// Arithmetic
// =============================================================================

// OperandKind tags an arithmetic operand.
type OperandKind int

const (
	OperandReg OperandKind = iota
	OperandConst
	OperandInterm
)

// Operand is a register, an immediate number, or an intermediate result.
type Operand struct {
	Kind   OperandKind `json:"kind"`
	Reg    Reg         `json:"reg"`
	Const  Constant    `json:"const"`
	Interm int         `json:"interm,omitempty"`
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandConst:
		return o.Const.String()
	case OperandInterm:
		return fmt.Sprintf("@%d", o.Interm)
	default:
		return o.Reg.String()
	}
}

// Arithmetic computes Op(A, B) into intermediate slot Target. Unary
// operations ignore B.
type Arithmetic struct {
	Op     string  `json:"op"`
	A      Operand `json:"a"`
	B      Operand `json:"b"`
	Unary  bool    `json:"unary,omitempty"`
	Target int     `json:"target"`
}

func (Arithmetic) line() {}

func (a Arithmetic) String() string {
	if a.Unary {
		return fmt.Sprintf("%s %s, @%d", a.Op, a.A, a.Target)
	}
	return fmt.Sprintf("%s %s, %s, @%d", a.Op, a.A, a.B, a.Target)
}

// =============================================================================
// Cut
// =============================================================================

// CutKind selects a cut instruction.
type CutKind int

const (
	NeckCut CutKind = iota
	GetLevel
	CutTo
)

// Cut removes choice points. GetLevel saves the cut barrier into Reg and
// CutTo cuts back to the barrier held in Reg.
type Cut struct {
	Kind CutKind `json:"kind"`
	Reg  Reg     `json:"reg"`
}

func (Cut) line() {}

func (c Cut) String() string {
	switch c.Kind {
	case NeckCut:
		return "neck_cut"
	case GetLevel:
		return fmt.Sprintf("get_level %s", c.Reg)
	default:
		return fmt.Sprintf("cut %s", c.Reg)
	}
}

// =============================================================================
// Choice and indexing
// =============================================================================

// ChoiceKind selects a clause-chaining instruction.
type ChoiceKind int

const (
	TryMeElse ChoiceKind = iota
	RetryMeElse
	TrustMe
)

var choiceNames = [...]string{"try_me_else", "retry_me_else", "trust_me"}

// Choice chains the clauses of a predicate. Offset is relative to the
// line itself and points at the next alternative.
//
// NonCounted excludes the choice point from backtracking statistics; it
// has no effect on execution.
type Choice struct {
	Kind       ChoiceKind `json:"kind"`
	Offset     int        `json:"offset,omitempty"`
	NonCounted bool       `json:"non_counted,omitempty"`
}

func (Choice) line() {}

func (c Choice) String() string {
	s := opName(choiceNames[:], int(c.Kind))
	if c.Kind != TrustMe {
		s = fmt.Sprintf("%s %+d", s, c.Offset)
	}
	if c.NonCounted {
		s += " [uncounted]"
	}
	return s
}

// IndexedChoiceKind selects an indexed alternative instruction.
type IndexedChoiceKind int

const (
	Try IndexedChoiceKind = iota
	Retry
	Trust
)

var indexedChoiceNames = [...]string{"try", "retry", "trust"}

// IndexedChoice enters one clause of an indexed bucket. Offset is relative
// to the line and points at the clause body.
type IndexedChoice struct {
	Kind       IndexedChoiceKind `json:"kind"`
	Offset     int               `json:"offset"`
	NonCounted bool              `json:"non_counted,omitempty"`
}

func (IndexedChoice) line() {}

func (c IndexedChoice) String() string {
	s := fmt.Sprintf("%s %+d", opName(indexedChoiceNames[:], int(c.Kind)), c.Offset)
	if c.NonCounted {
		s += " [uncounted]"
	}
	return s
}

// Indexing is switch_on_term on the first argument. Offsets are relative
// to the line; 0 means fail.
type Indexing struct {
	Var    int `json:"var"`
	Const  int `json:"const"`
	List   int `json:"list"`
	Struct int `json:"struct"`
}

func (Indexing) line() {}

func (i Indexing) String() string {
	return fmt.Sprintf("switch_on_term %+d, %+d, %+d, %+d", i.Var, i.Const, i.List, i.Struct)
}

// =============================================================================
// Control
// =============================================================================

// ControlKind selects a control instruction.
type ControlKind int

const (
	Allocate ControlKind = iota
	Deallocate
	Call
	Execute
	Proceed
	JmpBy
	IsCall
	CompareCall
)

var controlNames = [...]string{
	"allocate", "deallocate", "call", "execute", "proceed", "jmp_by", "is", "compare",
}

func (k ControlKind) String() string { return opName(controlNames[:], int(k)) }

// Control transfers control or manages environments.
//
// Field use by kind:
//   - Allocate: N permanent variables
//   - Call, Execute: Name, Arity
//   - JmpBy: Arity, Offset (0 while unresolved), Last for a tail position
//   - IsCall: Reg receives operand At
//   - CompareCall: Cmp applied to operands At and With
type Control struct {
	Kind   ControlKind `json:"kind"`
	Name   string      `json:"name,omitempty"`
	Arity  int         `json:"arity,omitempty"`
	N      int         `json:"n,omitempty"`
	Offset int         `json:"offset,omitempty"`
	Last   bool        `json:"last,omitempty"`
	Reg    Reg         `json:"reg"`
	At     Operand     `json:"at"`
	With   Operand     `json:"with"`
	Cmp    string      `json:"cmp,omitempty"`
}

func (Control) line() {}

// IsPendingJump reports whether c is an unresolved forward jump.
func (c Control) IsPendingJump() bool {
	return c.Kind == JmpBy && c.Offset == 0
}

func (c Control) String() string {
	switch c.Kind {
	case Allocate:
		return fmt.Sprintf("allocate %d", c.N)
	case Call, Execute:
		return fmt.Sprintf("%s %s/%d", c.Kind, c.Name, c.Arity)
	case JmpBy:
		s := fmt.Sprintf("jmp_by %d, %+d", c.Arity, c.Offset)
		if c.Last {
			s += " [last]"
		}
		return s
	case IsCall:
		return fmt.Sprintf("is %s, %s", c.Reg, c.At)
	case CompareCall:
		return fmt.Sprintf("compare %s %s %s", c.At, c.Cmp, c.With)
	default:
		return c.Kind.String()
	}
}
