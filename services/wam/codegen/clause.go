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

type nested struct {
	reg instr.Reg
	s   *term.Compound
}

// clauseCompiler holds the register state of one clause or query.
type clauseCompiler struct {
	code  instr.Code
	perm  map[string]int
	temp  map[string]int
	seen  map[string]bool
	nextX int
	nextY int
	level instr.Reg
	query bool
}

func newClauseCompiler(head term.Term, goals []term.Term) *clauseCompiler {
	hi := len(term.Args(head))
	for _, g := range goals {
		// Inline arithmetic and comparisons never load argument registers.
		if classifyGoal(g) != goalCall {
			continue
		}
		if n := len(term.Args(g)); n > hi {
			hi = n
		}
	}
	// call/1 on a variable goal loads A1.
	if hi == 0 {
		hi = 1
	}
	return &clauseCompiler{
		perm:  make(map[string]int),
		temp:  make(map[string]int),
		seen:  make(map[string]bool),
		nextX: hi,
	}
}

func (c *clauseCompiler) emit(l instr.Line) {
	c.code = append(c.code, l)
}

func (c *clauseCompiler) freshTemp() instr.Reg {
	c.nextX++
	return instr.X(c.nextX)
}

func (c *clauseCompiler) reg(v term.Var) instr.Reg {
	if y, ok := c.perm[v.Name]; ok {
		return instr.Y(y)
	}
	if x, ok := c.temp[v.Name]; ok {
		return instr.X(x)
	}
	c.nextX++
	c.temp[v.Name] = c.nextX
	return instr.X(c.nextX)
}

// firstUse marks v seen and reports whether this was its first occurrence.
func (c *clauseCompiler) firstUse(v term.Var) bool {
	if c.seen[v.Name] {
		return false
	}
	c.seen[v.Name] = true
	return true
}

func constOf(t term.Term) (instr.Constant, bool) {
	switch t := t.(type) {
	case term.Atom:
		return instr.AtomConst(string(t)), true
	case term.Int:
		return instr.IntConst(int64(t)), true
	case term.Float:
		return instr.FloatConst(float64(t)), true
	}
	return instr.Constant{}, false
}

func isListCell(s *term.Compound) bool {
	return s.Functor == term.Cons && len(s.Args) == 2
}

// =============================================================================
// Head
// =============================================================================

func (c *clauseCompiler) head(h term.Term) {
	var line instr.Fact
	for i, a := range term.Args(h) {
		arg := i + 1
		switch a := a.(type) {
		case term.Var:
			if a.IsAnonymous() {
				continue
			}
			op := instr.GetValue
			if c.firstUse(a) {
				op = instr.GetVariable
			}
			line = append(line, instr.FactInstr{Op: op, Reg: c.reg(a), Arg: arg})
		case *term.Compound:
			line = c.getStructure(line, instr.X(arg), a)
		default:
			k, _ := constOf(a)
			line = append(line, instr.FactInstr{Op: instr.GetConstant, Const: k, Arg: arg})
		}
	}
	if len(line) > 0 {
		c.emit(line)
	}
}

func (c *clauseCompiler) getStructure(line instr.Fact, reg instr.Reg, s *term.Compound) instr.Fact {
	if isListCell(s) {
		line = append(line, instr.FactInstr{Op: instr.GetList, Reg: reg})
	} else {
		line = append(line, instr.FactInstr{Op: instr.GetStructure, Reg: reg, Name: string(s.Functor), Arity: len(s.Args)})
	}

	var inner []nested
	for _, a := range s.Args {
		switch a := a.(type) {
		case term.Var:
			switch {
			case a.IsAnonymous():
				line = append(line, instr.FactInstr{Op: instr.UnifyVoid, Arity: 1})
			case c.firstUse(a):
				line = append(line, instr.FactInstr{Op: instr.UnifyVariable, Reg: c.reg(a)})
			default:
				line = append(line, instr.FactInstr{Op: instr.UnifyValue, Reg: c.reg(a)})
			}
		case *term.Compound:
			r := c.freshTemp()
			line = append(line, instr.FactInstr{Op: instr.UnifyVariable, Reg: r})
			inner = append(inner, nested{reg: r, s: a})
		default:
			k, _ := constOf(a)
			line = append(line, instr.FactInstr{Op: instr.UnifyConstant, Const: k})
		}
	}
	for _, n := range inner {
		line = c.getStructure(line, n.reg, n.s)
	}
	return line
}

// =============================================================================
// Goal arguments
// =============================================================================

func (c *clauseCompiler) putArgs(args []term.Term) instr.Query {
	var line instr.Query
	for i, a := range args {
		arg := i + 1
		switch a := a.(type) {
		case term.Var:
			if a.IsAnonymous() {
				line = append(line, instr.QueryInstr{Op: instr.PutVariable, Reg: c.freshTemp(), Arg: arg})
				continue
			}
			op := instr.PutValue
			if c.firstUse(a) {
				op = instr.PutVariable
			}
			line = append(line, instr.QueryInstr{Op: op, Reg: c.reg(a), Arg: arg})
		case *term.Compound:
			line = c.putStructure(line, instr.X(arg), a)
		default:
			k, _ := constOf(a)
			line = append(line, instr.QueryInstr{Op: instr.PutConstant, Const: k, Reg: instr.X(arg)})
		}
	}
	return line
}

// putStructure builds s bottom-up into target.
func (c *clauseCompiler) putStructure(line instr.Query, target instr.Reg, s *term.Compound) instr.Query {
	regs := make([]instr.Reg, len(s.Args))
	for i, a := range s.Args {
		if sub, ok := a.(*term.Compound); ok {
			regs[i] = c.freshTemp()
			line = c.putStructure(line, regs[i], sub)
		}
	}

	if isListCell(s) {
		line = append(line, instr.QueryInstr{Op: instr.PutList, Reg: target})
	} else {
		line = append(line, instr.QueryInstr{Op: instr.PutStructure, Reg: target, Name: string(s.Functor), Arity: len(s.Args)})
	}
	for i, a := range s.Args {
		switch a := a.(type) {
		case term.Var:
			switch {
			case a.IsAnonymous():
				line = append(line, instr.QueryInstr{Op: instr.SetVoid, Arity: 1})
			case c.firstUse(a):
				line = append(line, instr.QueryInstr{Op: instr.SetVariable, Reg: c.reg(a)})
			default:
				line = append(line, instr.QueryInstr{Op: instr.SetValue, Reg: c.reg(a)})
			}
		case *term.Compound:
			line = append(line, instr.QueryInstr{Op: instr.SetValue, Reg: regs[i]})
		default:
			k, _ := constOf(a)
			line = append(line, instr.QueryInstr{Op: instr.SetConstant, Const: k})
		}
	}
	return line
}

// =============================================================================
// Body
// =============================================================================

// goalKind classifies a body goal.
type goalKind int

const (
	goalCall goalKind = iota
	goalCut
	goalTrue
	goalIs
	goalCompare
	goalInvalid
	goalControl
)

var compareOps = map[term.Atom]bool{
	"=:=": true, `=\=`: true, "<": true, ">": true, "=<": true, ">=": true,
}

func classifyGoal(g term.Term) goalKind {
	switch g := g.(type) {
	case term.Var, *term.Jump:
		return goalCall
	case term.Atom:
		switch g {
		case term.Cut:
			return goalCut
		case term.True:
			return goalTrue
		}
		return goalCall
	case *term.Compound:
		switch {
		case g.Functor == "is" && len(g.Args) == 2:
			return goalIs
		case compareOps[g.Functor] && len(g.Args) == 2:
			return goalCompare
		case (g.Functor == term.Semi || g.Functor == term.Arrow || g.Functor == term.Comma) && len(g.Args) == 2,
			g.Functor == `\+` && len(g.Args) == 1:
			return goalControl
		}
		return goalCall
	}
	return goalInvalid
}

// permanentVars returns the names of variables that live across a call,
// in order of first occurrence.
func permanentVars(head term.Term, goals []term.Term) []string {
	chunkOf := make(map[string]int)
	isPerm := make(map[string]bool)
	var order []string
	record := func(ts []term.Term, chunk int) {
		for _, v := range term.Vars(ts...) {
			if v.IsAnonymous() {
				continue
			}
			prev, ok := chunkOf[v.Name]
			if !ok {
				chunkOf[v.Name] = chunk
				order = append(order, v.Name)
				continue
			}
			if prev != chunk {
				isPerm[v.Name] = true
			}
		}
	}

	if head != nil {
		record([]term.Term{head}, 0)
	}
	chunk := 0
	for _, g := range goals {
		record([]term.Term{g}, chunk)
		if classifyGoal(g) == goalCall {
			chunk++
		}
	}

	var out []string
	for _, name := range order {
		if isPerm[name] {
			out = append(out, name)
		}
	}
	return out
}

func needsLevel(goals []term.Term) bool {
	for i, g := range goals {
		if i > 0 && classifyGoal(g) == goalCut {
			return true
		}
	}
	return false
}

// body emits the goals. A rule ends with a tail call where possible; a
// query keeps its environment so bindings can be read afterwards.
func (c *clauseCompiler) body(goals []term.Term, env bool) error {
	ended := false
	for i, g := range goals {
		last := i == len(goals)-1
		tail := last && !c.query

		switch classifyGoal(g) {
		case goalInvalid:
			return fmt.Errorf("goal %s: %w", g, ErrInvalidGoal)
		case goalControl:
			return fmt.Errorf("goal %s: %w", g, ErrUnsupported)
		case goalTrue:
		case goalCut:
			if i == 0 {
				c.emit(instr.Cut{Kind: instr.NeckCut})
			} else {
				c.emit(instr.Cut{Kind: instr.CutTo, Reg: c.level})
			}
		case goalIs:
			if err := c.isGoal(g.(*term.Compound)); err != nil {
				return err
			}
		case goalCompare:
			if err := c.compareGoal(g.(*term.Compound)); err != nil {
				return err
			}
		case goalCall:
			c.callGoal(g, tail, env)
			ended = tail
		}
	}

	if !ended {
		if env && !c.query {
			c.emit(instr.Control{Kind: instr.Deallocate})
		}
		c.emit(instr.Control{Kind: instr.Proceed})
	}
	return nil
}

func (c *clauseCompiler) callGoal(g term.Term, tail, env bool) {
	var (
		name string
		args []term.Term
		jump bool
	)
	switch g := g.(type) {
	case term.Var:
		name, args = "call", []term.Term{g}
	case *term.Jump:
		args, jump = g.Args, true
	case term.Atom:
		name = string(g)
	case *term.Compound:
		name, args = string(g.Functor), g.Args
	}

	if line := c.putArgs(args); len(line) > 0 {
		c.emit(line)
	}
	if tail && env {
		c.emit(instr.Control{Kind: instr.Deallocate})
	}
	switch {
	case jump:
		c.emit(instr.Control{Kind: instr.JmpBy, Arity: len(args), Last: tail})
	case tail:
		c.emit(instr.Control{Kind: instr.Execute, Name: name, Arity: len(args)})
	default:
		c.emit(instr.Control{Kind: instr.Call, Name: name, Arity: len(args)})
	}
}

// =============================================================================
// Entry points
// =============================================================================

// CompileFact compiles a clause without a body. It cannot fail.
func CompileFact(f term.Fact) instr.Code {
	c := newClauseCompiler(f.Head, nil)
	c.head(f.Head)
	c.emit(instr.Control{Kind: instr.Proceed})
	return c.code
}

// CompileRule compiles a clause with a body.
func CompileRule(r term.Rule) (instr.Code, error) {
	c := newClauseCompiler(r.Head, r.Body)
	for _, name := range permanentVars(r.Head, r.Body) {
		c.nextY++
		c.perm[name] = c.nextY
	}
	if needsLevel(r.Body) {
		c.nextY++
		c.level = instr.Y(c.nextY)
	}

	env := c.nextY > 0
	for i, g := range r.Body {
		if i < len(r.Body)-1 && classifyGoal(g) == goalCall {
			env = true
		}
	}

	if env {
		c.emit(instr.Control{Kind: instr.Allocate, N: c.nextY})
	}
	c.head(r.Head)
	if c.level.N > 0 {
		c.emit(instr.Cut{Kind: instr.GetLevel, Reg: c.level})
	}
	if err := c.body(r.Body, env); err != nil {
		return nil, err
	}
	return c.code, nil
}

// CompileQuery compiles the goals of a query. Every named variable is
// permanent so its binding survives the calls; the returned VarBindings
// tells the caller where to find it.
func CompileQuery(q term.Query) (instr.Code, VarBindings, error) {
	c := newClauseCompiler(nil, q)
	c.query = true
	bindings := make(VarBindings)
	for _, v := range term.Vars(q...) {
		if v.IsAnonymous() {
			continue
		}
		c.nextY++
		c.perm[v.Name] = c.nextY
		bindings[v.Name] = instr.Y(c.nextY)
	}
	if needsLevel(q) {
		c.nextY++
		c.level = instr.Y(c.nextY)
	}

	env := c.nextY > 0
	if env {
		c.emit(instr.Control{Kind: instr.Allocate, N: c.nextY})
	}
	if c.level.N > 0 {
		c.emit(instr.Cut{Kind: instr.GetLevel, Reg: c.level})
	}
	if err := c.body(q, env); err != nil {
		return nil, nil, err
	}
	return c.code, bindings, nil
}

func compileClause(cl term.Clause) (instr.Code, error) {
	switch cl := cl.(type) {
	case term.Fact:
		return CompileFact(cl), nil
	case term.Rule:
		return CompileRule(cl)
	}
	return nil, fmt.Errorf("clause %T: %w", cl, ErrUnsupported)
}
