// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package instr defines the abstract-machine instruction lines emitted by the
// code generator and linked by the compiler.
//
// # Code
//
// Code is an ordered slice of Lines. A Line is one addressable unit of the
// code segment; Fact and Query lines group several register instructions but
// still occupy a single address. Addresses and relative offsets are always
// counted in lines.
//
// # Forward jumps
//
// Control{Kind: JmpBy} with Offset == 0 is a forward jump placeholder. The
// compiler resolves it, in source order, to the distance from the jump to
// the start of the next relation appended after it. Code is treated as a
// mutable arena: resolving a placeholder rewrites the line at its index.
package instr

import (
	"fmt"
	"io"
	"strings"
)

// Line is one addressable instruction line.
type Line interface {
	fmt.Stringer
	line()
}

// Code is an instruction sequence.
type Code []Line

// Dump writes one line per address, numbered from base.
func (c Code) Dump(w io.Writer, base int) error {
	for i, l := range c {
		if _, err := fmt.Fprintf(w, "%6d  %s\n", base+i, l); err != nil {
			return err
		}
	}
	return nil
}

// PendingJumps returns the indices of unresolved JmpBy placeholders.
func (c Code) PendingJumps() []int {
	var out []int
	for i, l := range c {
		if ctl, ok := l.(Control); ok && ctl.IsPendingJump() {
			out = append(out, i)
		}
	}
	return out
}

// =============================================================================
// Registers and constants
// =============================================================================

// RegKind distinguishes temporary from permanent registers.
type RegKind int

const (
	Temp RegKind = iota
	Perm
)

// Reg is an X (temporary) or Y (permanent) register.
type Reg struct {
	Kind RegKind `json:"kind"`
	N    int     `json:"n"`
}

// X returns temporary register n.
func X(n int) Reg { return Reg{Kind: Temp, N: n} }

// Y returns permanent register n.
func Y(n int) Reg { return Reg{Kind: Perm, N: n} }

func (r Reg) String() string {
	if r.Kind == Perm {
		return fmt.Sprintf("Y%d", r.N)
	}
	return fmt.Sprintf("X%d", r.N)
}

// ConstKind tags a Constant.
type ConstKind int

const (
	ConstAtom ConstKind = iota
	ConstInt
	ConstFloat
)

// Constant is an atomic value embedded in an instruction.
type Constant struct {
	Kind  ConstKind `json:"kind"`
	Atom  string    `json:"atom,omitempty"`
	Int   int64     `json:"int,omitempty"`
	Float float64   `json:"float,omitempty"`
}

// AtomConst, IntConst and FloatConst build constants.
func AtomConst(a string) Constant   { return Constant{Kind: ConstAtom, Atom: a} }
func IntConst(i int64) Constant     { return Constant{Kind: ConstInt, Int: i} }
func FloatConst(f float64) Constant { return Constant{Kind: ConstFloat, Float: f} }

func (c Constant) String() string {
	switch c.Kind {
	case ConstInt:
		return fmt.Sprintf("%d", c.Int)
	case ConstFloat:
		return fmt.Sprintf("%g", c.Float)
	default:
		return c.Atom
	}
}

// =============================================================================
// Fact and Query lines
// =============================================================================

// FactOp is a head-unification opcode.
type FactOp int

const (
	GetConstant FactOp = iota
	GetList
	GetStructure
	GetValue
	GetVariable
	UnifyConstant
	UnifyValue
	UnifyVariable
	UnifyVoid
)

var factOpNames = [...]string{
	"get_constant", "get_list", "get_structure", "get_value", "get_variable",
	"unify_constant", "unify_value", "unify_variable", "unify_void",
}

func (o FactOp) String() string { return opName(factOpNames[:], int(o)) }

// FactInstr is one head instruction. Arg is the argument register index for
// get_* instructions; Name and Arity are set for get_structure.
type FactInstr struct {
	Op    FactOp   `json:"op"`
	Reg   Reg      `json:"reg"`
	Arg   int      `json:"arg,omitempty"`
	Const Constant `json:"const"`
	Name  string   `json:"name,omitempty"`
	Arity int      `json:"arity,omitempty"`
}

func (f FactInstr) String() string {
	switch f.Op {
	case GetConstant:
		return fmt.Sprintf("%s %s, A%d", f.Op, f.Const, f.Arg)
	case GetList:
		return fmt.Sprintf("%s %s", f.Op, f.Reg)
	case GetStructure:
		return fmt.Sprintf("%s %s/%d, %s", f.Op, f.Name, f.Arity, f.Reg)
	case GetValue, GetVariable:
		return fmt.Sprintf("%s %s, A%d", f.Op, f.Reg, f.Arg)
	case UnifyConstant:
		return fmt.Sprintf("%s %s", f.Op, f.Const)
	case UnifyVoid:
		return fmt.Sprintf("%s %d", f.Op, f.Arity)
	default:
		return fmt.Sprintf("%s %s", f.Op, f.Reg)
	}
}

// QueryOp is a goal-argument construction opcode.
type QueryOp int

const (
	PutConstant QueryOp = iota
	PutList
	PutStructure
	PutValue
	PutVariable
	SetConstant
	SetValue
	SetVariable
	SetVoid
)

var queryOpNames = [...]string{
	"put_constant", "put_list", "put_structure", "put_value", "put_variable",
	"set_constant", "set_value", "set_variable", "set_void",
}

func (o QueryOp) String() string { return opName(queryOpNames[:], int(o)) }

// QueryInstr is one goal-argument instruction.
type QueryInstr struct {
	Op    QueryOp  `json:"op"`
	Reg   Reg      `json:"reg"`
	Arg   int      `json:"arg,omitempty"`
	Const Constant `json:"const"`
	Name  string   `json:"name,omitempty"`
	Arity int      `json:"arity,omitempty"`
}

func (q QueryInstr) String() string {
	switch q.Op {
	case PutConstant:
		return fmt.Sprintf("%s %s, %s", q.Op, q.Const, q.Reg)
	case PutList:
		return fmt.Sprintf("%s %s", q.Op, q.Reg)
	case PutStructure:
		return fmt.Sprintf("%s %s/%d, %s", q.Op, q.Name, q.Arity, q.Reg)
	case PutValue, PutVariable:
		return fmt.Sprintf("%s %s, A%d", q.Op, q.Reg, q.Arg)
	case SetConstant:
		return fmt.Sprintf("%s %s", q.Op, q.Const)
	case SetVoid:
		return fmt.Sprintf("%s %d", q.Op, q.Arity)
	default:
		return fmt.Sprintf("%s %s", q.Op, q.Reg)
	}
}

// Fact is a line of head instructions.
type Fact []FactInstr

// Query is a line of goal-argument instructions.
type Query []QueryInstr

func (Fact) line()  {}
func (Query) line() {}

func (f Fact) String() string  { return joinInstrs([]FactInstr(f)) }
func (q Query) String() string { return joinInstrs([]QueryInstr(q)) }

func joinInstrs[T fmt.Stringer](is []T) string {
	parts := make([]string, len(is))
	for i, in := range is {
		parts[i] = in.String()
	}
	return strings.Join(parts, "; ")
}

func opName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return "unknown"
	}
	return names[i]
}
