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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wamlink/services/wam/instr"
	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/reader"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

func parseUnit(t *testing.T, src string) term.TopLevel {
	t.Helper()
	pkt, err := reader.ParsePacket([]byte(src), ops.Default(), reader.Flags{})
	require.NoError(t, err)
	return pkt.Unit
}

func parseRule(t *testing.T, src string) term.Rule {
	t.Helper()
	r, ok := parseUnit(t, src).(term.Rule)
	require.True(t, ok)
	return r
}

func parseFact(t *testing.T, src string) term.Fact {
	t.Helper()
	f, ok := parseUnit(t, src).(term.Fact)
	require.True(t, ok)
	return f
}

func render(code instr.Code) []string {
	out := make([]string, len(code))
	for i, l := range code {
		out[i] = l.String()
	}
	return out
}

func TestCompileFact(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"p.", []string{"proceed"}},
		{"bar(1).", []string{"get_constant 1, A1", "proceed"}},
		{"p(_).", []string{"proceed"}},
		{"p(X, X).", []string{"get_variable X3, A1; get_value X3, A2", "proceed"}},
		{
			"p(f(g(X), a)).",
			[]string{"get_structure f/2, X1; unify_variable X2; unify_constant a; get_structure g/1, X2; unify_variable X3", "proceed"},
		},
		{"p([H|_]).", []string{"get_list X1; unify_variable X2; unify_void 1", "proceed"}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, render(CompileFact(parseFact(t, tt.src))))
		})
	}
}

func TestCompileFact_NamelessHeadStillProceeds(t *testing.T) {
	code := CompileFact(term.Fact{Head: term.Int(3)})
	require.Len(t, code, 1)
	assert.Equal(t, instr.Control{Kind: instr.Proceed}, code[0])
}

func TestCompileRule(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "chain",
			src:  "foo(X) :- bar(X).",
			want: []string{"get_variable X2, A1", "put_value X2, A1", "execute bar/1"},
		},
		{
			name: "permanent variables",
			src:  "p(X, Y) :- q(X, Z), r(Z, Y).",
			want: []string{
				"allocate 2",
				"get_variable X3, A1; get_variable Y1, A2",
				"put_value X3, A1; put_variable Y2, A2",
				"call q/2",
				"put_value Y2, A1; put_value Y1, A2",
				"deallocate",
				"execute r/2",
			},
		},
		{
			name: "neck cut",
			src:  "p :- !, b.",
			want: []string{"neck_cut", "execute b/0"},
		},
		{
			name: "deep cut",
			src:  "p :- a, !, b.",
			want: []string{"allocate 1", "get_level Y1", "call a/0", "cut Y1", "deallocate", "execute b/0"},
		},
		{
			name: "arithmetic",
			src:  "inc(X, Y) :- Y is X + 1.",
			want: []string{"get_variable X3, A1; get_variable X4, A2", "+ X3, 1, @1", "is X4, @1", "proceed"},
		},
		{
			name: "comparison",
			src:  "pos(X) :- X > 0.",
			want: []string{"get_variable X2, A1", "compare X2 > 0", "proceed"},
		},
		{
			name: "comparison before call",
			src:  "tiny(X) :- X < 1, q.",
			want: []string{"get_variable X2, A1", "compare X2 < 1", "execute q/0"},
		},
		{
			name: "variable goal",
			src:  "p(G) :- G.",
			want: []string{"get_variable X2, A1", "put_value X2, A1", "execute call/1"},
		},
		{
			name: "true body",
			src:  "p :- true.",
			want: []string{"proceed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := CompileRule(parseRule(t, tt.src))
			require.NoError(t, err)
			assert.Equal(t, tt.want, render(code))
		})
	}
}

func TestCompileRule_Errors(t *testing.T) {
	tests := []struct {
		name string
		rule term.Rule
		want error
	}{
		{"number goal", parseRule(t, "p :- 3."), ErrInvalidGoal},
		{"unknown evaluable", parseRule(t, "p(X) :- X is foo + 1."), ErrNotEvaluable},
		{
			"unlifted disjunction",
			term.Rule{Head: term.Atom("p"), Body: []term.Term{term.NewCompound(term.Semi, term.Atom("a"), term.Atom("b"))}},
			ErrUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileRule(tt.rule)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompileRule_JumpLeavesPendingPlaceholder(t *testing.T) {
	x := term.Var{Name: "X"}
	rule := term.Rule{
		Head: term.NewCompound("p", x),
		Body: []term.Term{&term.Jump{Args: []term.Term{x}}},
	}

	code, err := CompileRule(rule)
	require.NoError(t, err)
	assert.Equal(t, []string{"get_variable X2, A1", "put_value X2, A1", "jmp_by 1, +0 [last]"}, render(code))
	assert.Equal(t, []int{2}, code.PendingJumps())
}

func TestCompileQuery(t *testing.T) {
	q, ok := parseUnit(t, "?- foo(X), bar(X, Y).").(term.Query)
	require.True(t, ok)

	code, bindings, err := CompileQuery(q)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"allocate 2",
		"put_variable Y1, A1",
		"call foo/1",
		"put_value Y1, A1; put_variable Y2, A2",
		"call bar/2",
		"proceed",
	}, render(code))
	assert.Equal(t, VarBindings{"X": instr.Y(1), "Y": instr.Y(2)}, bindings)
}

func TestCompileQuery_Structure(t *testing.T) {
	q := parseUnit(t, "?- p(f(X, _)).").(term.Query)

	code, bindings, err := CompileQuery(q)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"allocate 1",
		"put_structure f/2, X1; set_variable Y1; set_void 1",
		"call p/1",
		"proceed",
	}, render(code))
	assert.Len(t, bindings, 1)
}

func TestCompileQuery_InvalidGoal(t *testing.T) {
	_, _, err := CompileQuery(term.Query{term.Int(1)})
	assert.ErrorIs(t, err, ErrInvalidGoal)
}

func TestCompilePredicate_ConstantIndexing(t *testing.T) {
	p := term.Predicate{parseFact(t, "bar(1)."), parseFact(t, "bar(2).")}

	code, err := CompilePredicate(p, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"switch_on_term +1, +7, +0, +0",
		"try_me_else +3",
		"get_constant 1, A1",
		"proceed",
		"trust_me",
		"get_constant 2, A1",
		"proceed",
		"try -5",
		"trust -3",
	}, render(code))
}

func TestCompilePredicate_NonCountedTagsChoices(t *testing.T) {
	p := term.Predicate{parseFact(t, "bar(1)."), parseFact(t, "bar(2).")}

	counted, err := CompilePredicate(p, false)
	require.NoError(t, err)
	uncounted, err := CompilePredicate(p, true)
	require.NoError(t, err)
	require.Len(t, uncounted, len(counted))

	for i, l := range uncounted {
		switch l := l.(type) {
		case instr.Choice:
			assert.True(t, l.NonCounted, "line %d", i)
			c := counted[i].(instr.Choice)
			c.NonCounted = true
			assert.Equal(t, c, l)
		case instr.IndexedChoice:
			assert.True(t, l.NonCounted, "line %d", i)
		default:
			assert.Equal(t, counted[i], l)
		}
	}
}

func TestCompilePredicate_ListIndexing(t *testing.T) {
	p := term.Predicate{
		parseFact(t, "len([], 0)."),
		parseRule(t, "len([_|T], N) :- len(T, M), N is M + 1."),
	}

	code, err := CompilePredicate(p, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"switch_on_term +1, +2, +5, +0",
		"try_me_else +3",
		"get_constant [], A1; get_constant 0, A2",
		"proceed",
		"trust_me",
		"allocate 2",
		"get_list X1; unify_void 1; unify_variable X3; get_variable Y1, A2",
		"put_value X3, A1; put_variable Y2, A2",
		"call len/2",
		"+ Y2, 1, @1",
		"is Y1, @1",
		"deallocate",
		"proceed",
	}, render(code))
}

func TestCompilePredicate_VariableClauseJoinsEveryBucket(t *testing.T) {
	p := term.Predicate{parseFact(t, "p(X)."), parseFact(t, "p(a).")}

	code, err := CompilePredicate(p, false)
	require.NoError(t, err)
	require.Len(t, code, 9)
	assert.Equal(t, instr.Indexing{Var: 1, Const: 7, List: 2, Struct: 2}, code[0])
	assert.Equal(t, instr.IndexedChoice{Kind: instr.Try, Offset: -5}, code[7])
	assert.Equal(t, instr.IndexedChoice{Kind: instr.Trust, Offset: -3}, code[8])
}

func TestCompilePredicate_NoIndexingForVariableHeads(t *testing.T) {
	p := term.Predicate{parseRule(t, "q(X) :- a(X)."), parseRule(t, "q(Y) :- b(Y).")}

	code, err := CompilePredicate(p, false)
	require.NoError(t, err)
	require.Len(t, code, 8)
	assert.Equal(t, instr.Choice{Kind: instr.TryMeElse, Offset: 4}, code[0])
	assert.Equal(t, instr.Choice{Kind: instr.TrustMe}, code[4])
}

func TestCompilePredicate_SingleClause(t *testing.T) {
	p := term.Predicate{parseRule(t, "foo(X) :- bar(X).")}

	code, err := CompilePredicate(p, true)
	require.NoError(t, err)
	assert.Len(t, code, 3)
}

func TestCompilePredicate_ReportsFailingClause(t *testing.T) {
	p := term.Predicate{parseFact(t, "p(1)."), parseRule(t, "p(X) :- 3.")}

	_, err := CompilePredicate(p, false)
	require.ErrorIs(t, err, ErrInvalidGoal)
	assert.Contains(t, err.Error(), "clause 2 of p/1")
}
