// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codegen

import (
	"fmt"

	"github.com/AleutianAI/wamlink/services/wam/instr"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

var binaryEvaluable = map[term.Atom]bool{
	"+": true, "-": true, "*": true, "/": true, "//": true, "mod": true,
	"rem": true, "div": true, "min": true, "max": true, "**": true, "^": true,
	">>": true, "<<": true, `/\`: true, `\/`: true, "xor": true,
	"atan2": true, "gcd": true, "copysign": true,
}

var unaryEvaluable = map[term.Atom]bool{
	"-": true, "+": true, "abs": true, "sign": true, "sqrt": true,
	"sin": true, "cos": true, "tan": true, "asin": true, "acos": true,
	"atan": true, "exp": true, "log": true, "log2": true, "float": true,
	"integer": true, "float_integer_part": true, "float_fractional_part": true,
	"truncate": true, "round": true, "ceiling": true, "floor": true,
	`\`: true, "msb": true,
}

var constantEvaluable = map[term.Atom]bool{
	"pi": true, "e": true, "inf": true, "nan": true, "epsilon": true,
	"max_tagged": true, "random": true, "cputime": true, "realtime": true,
}

// arith compiles an expression into Arithmetic lines and returns the
// operand holding its value. Intermediate slots are numbered from *next.
func (c *clauseCompiler) arith(t term.Term, next *int) (instr.Operand, error) {
	switch t := t.(type) {
	case term.Var:
		c.seen[t.Name] = true
		return instr.Operand{Kind: instr.OperandReg, Reg: c.reg(t)}, nil
	case term.Int, term.Float:
		k, _ := constOf(t)
		return instr.Operand{Kind: instr.OperandConst, Const: k}, nil
	case term.Atom:
		if constantEvaluable[t] {
			return instr.Operand{Kind: instr.OperandConst, Const: instr.AtomConst(string(t))}, nil
		}
	case *term.Compound:
		switch {
		case len(t.Args) == 1 && unaryEvaluable[t.Functor]:
			a, err := c.arith(t.Args[0], next)
			if err != nil {
				return instr.Operand{}, err
			}
			*next++
			c.emit(instr.Arithmetic{Op: string(t.Functor), A: a, Unary: true, Target: *next})
			return instr.Operand{Kind: instr.OperandInterm, Interm: *next}, nil
		case len(t.Args) == 2 && binaryEvaluable[t.Functor]:
			a, err := c.arith(t.Args[0], next)
			if err != nil {
				return instr.Operand{}, err
			}
			b, err := c.arith(t.Args[1], next)
			if err != nil {
				return instr.Operand{}, err
			}
			*next++
			c.emit(instr.Arithmetic{Op: string(t.Functor), A: a, B: b, Target: *next})
			return instr.Operand{Kind: instr.OperandInterm, Interm: *next}, nil
		}
	}
	return instr.Operand{}, fmt.Errorf("%s: %w", t, ErrNotEvaluable)
}

// isGoal compiles `Lhs is Expr`.
func (c *clauseCompiler) isGoal(g *term.Compound) error {
	var next int
	val, err := c.arith(g.Args[1], &next)
	if err != nil {
		return err
	}

	var target instr.Reg
	switch lhs := g.Args[0].(type) {
	case term.Var:
		c.seen[lhs.Name] = true
		target = c.reg(lhs)
	case *term.Compound:
		target = c.freshTemp()
		c.emit(c.putStructure(nil, target, lhs))
	default:
		k, _ := constOf(lhs)
		target = c.freshTemp()
		c.emit(instr.Query{{Op: instr.PutConstant, Const: k, Reg: target}})
	}
	c.emit(instr.Control{Kind: instr.IsCall, Reg: target, At: val})
	return nil
}

// compareGoal compiles an arithmetic comparison such as `X < Y + 1`.
func (c *clauseCompiler) compareGoal(g *term.Compound) error {
	var next int
	lhs, err := c.arith(g.Args[0], &next)
	if err != nil {
		return err
	}
	rhs, err := c.arith(g.Args[1], &next)
	if err != nil {
		return err
	}
	c.emit(instr.Control{Kind: instr.CompareCall, At: lhs, With: rhs, Cmp: string(g.Functor)})
	return nil
}
