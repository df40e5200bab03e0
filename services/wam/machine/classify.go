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
	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

// ClauseType is how the machine treats calls to a name and arity.
type ClauseType int

const (
	// Named is an ordinary user relation.
	Named ClauseType = iota
	// Op is an ordinary relation whose name is also an operator.
	Op
	// Control is a control construct compiled inline.
	Control
	// Inlined is a builtin compiled to dedicated instructions.
	Inlined
	// Builtin is a predicate implemented by the machine itself.
	Builtin
	// CallN is call/N.
	CallN
)

var clauseTypeNames = [...]string{"named", "op", "control", "inlined", "builtin", "call/N"}

func (t ClauseType) String() string {
	if int(t) < len(clauseTypeNames) {
		return clauseTypeNames[t]
	}
	return "unknown"
}

// Definable reports whether user code may define clauses of this type.
func (t ClauseType) Definable() bool {
	return t == Named || t == Op
}

var controlKeys = map[term.PredicateKey]bool{
	{Name: ",", Arity: 2}:  true,
	{Name: ";", Arity: 2}:  true,
	{Name: "->", Arity: 2}: true,
	{Name: "!", Arity: 0}:  true,
	{Name: ":-", Arity: 1}: true,
	{Name: ":-", Arity: 2}: true,
	{Name: "?-", Arity: 1}: true,
}

var inlinedKeys = map[term.PredicateKey]bool{
	{Name: "is", Arity: 2}:   true,
	{Name: "=:=", Arity: 2}:  true,
	{Name: `=\=`, Arity: 2}:  true,
	{Name: "<", Arity: 2}:    true,
	{Name: ">", Arity: 2}:    true,
	{Name: "=<", Arity: 2}:   true,
	{Name: ">=", Arity: 2}:   true,
	{Name: "true", Arity: 0}: true,
}

var builtinKeys = map[term.PredicateKey]bool{
	{Name: "=", Arity: 2}:         true,
	{Name: "==", Arity: 2}:        true,
	{Name: `\==`, Arity: 2}:       true,
	{Name: "@<", Arity: 2}:        true,
	{Name: "@>", Arity: 2}:        true,
	{Name: "@=<", Arity: 2}:       true,
	{Name: "@>=", Arity: 2}:       true,
	{Name: "=..", Arity: 2}:       true,
	{Name: "fail", Arity: 0}:      true,
	{Name: "false", Arity: 0}:     true,
	{Name: "var", Arity: 1}:       true,
	{Name: "nonvar", Arity: 1}:    true,
	{Name: "atom", Arity: 1}:      true,
	{Name: "atomic", Arity: 1}:    true,
	{Name: "number", Arity: 1}:    true,
	{Name: "integer", Arity: 1}:   true,
	{Name: "float", Arity: 1}:     true,
	{Name: "compound", Arity: 1}:  true,
	{Name: "callable", Arity: 1}:  true,
	{Name: "functor", Arity: 3}:   true,
	{Name: "arg", Arity: 3}:       true,
	{Name: "copy_term", Arity: 2}: true,
	{Name: "throw", Arity: 1}:     true,
	{Name: "catch", Arity: 3}:     true,
	{Name: "write", Arity: 1}:     true,
	{Name: "writeq", Arity: 1}:    true,
	{Name: "nl", Arity: 0}:        true,
	{Name: "halt", Arity: 0}:      true,
	{Name: "op", Arity: 3}:        true,
}

// classify decides the clause type of name/arity against the operator
// directory dir.
func classify(name term.Atom, arity int, dir ops.Dir) ClauseType {
	key := term.PredicateKey{Name: name, Arity: arity}
	switch {
	case controlKeys[key]:
		return Control
	case name == "call" && arity >= 1:
		return CallN
	case inlinedKeys[key]:
		return Inlined
	case builtinKeys[key]:
		return Builtin
	case dir.IsOp(string(name)):
		return Op
	}
	return Named
}
