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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wamlink/services/wam/codegen"
	"github.com/AleutianAI/wamlink/services/wam/instr"
	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

var (
	fooKey = term.PredicateKey{Name: "foo", Arity: 1}
	barKey = term.PredicateKey{Name: "bar", Arity: 1}
	bazKey = term.PredicateKey{Name: "baz", Arity: 0}
)

func proceed(n int) instr.Code {
	code := make(instr.Code, n)
	for i := range code {
		code[i] = instr.Control{Kind: instr.Proceed}
	}
	return code
}

func testModule(t *testing.T, name string) *Module {
	t.Helper()
	mod, err := NewModule(term.ModuleDecl{
		Module:    term.Atom(name),
		Exports:   []term.PredicateKey{fooKey, barKey},
		OpExports: []ops.Decl{{Priority: 700, Spec: ops.XFX, Name: "foo"}, {Priority: 200, Spec: ops.FY, Name: "qux"}},
	})
	require.NoError(t, err)
	mod.CodeDir.Install(fooKey, 10, name)
	mod.CodeDir.Install(barKey, 20, name)
	mod.CodeDir.Install(bazKey, 30, name)
	return mod
}

func TestCodeDir_InstallRewritesSameModuleCellInPlace(t *testing.T) {
	d := make(CodeDir)
	first := d.Install(fooKey, 3, UserModule)
	second := d.Install(fooKey, 9, UserModule)

	assert.Same(t, first, second)
	assert.Equal(t, 9, first.Addr)

	other := d.Install(fooKey, 12, "lists")
	assert.NotSame(t, first, other)
	assert.Equal(t, 9, first.Addr)
	assert.Equal(t, "lists", d[fooKey].Module)
}

func TestCodeDir_Merge(t *testing.T) {
	d := make(CodeDir)
	held := d.Install(fooKey, 1, UserModule)

	src := make(CodeDir)
	src.Install(fooKey, 5, UserModule)
	shared := src.Install(barKey, 7, "lists")

	d.Merge(src)

	assert.Same(t, held, d[fooKey], "same-module cell must be updated, not replaced")
	assert.Equal(t, 5, held.Addr)
	assert.Same(t, shared, d[barKey])
}

func TestModule_Exports(t *testing.T) {
	mod := testModule(t, "lists")

	assert.True(t, mod.IsExported(fooKey))
	assert.False(t, mod.IsExported(bazKey))

	code := mod.ExportedCode()
	assert.Len(t, code, 2)
	assert.NotContains(t, code, bazKey)

	opDir := mod.ExportedOps()
	def, ok := opDir.Lookup("foo", ops.Infix)
	require.True(t, ok)
	assert.Equal(t, "lists", def.Module)
	assert.Len(t, opDir, 2)
}

func TestNewModule_BadOpExport(t *testing.T) {
	_, err := NewModule(term.ModuleDecl{
		Module:    "m",
		OpExports: []ops.Decl{{Priority: 2000, Spec: ops.XFX, Name: "+++"}},
	})
	assert.ErrorIs(t, err, ops.ErrPriority)
}

func TestMachine_AddUserCode(t *testing.T) {
	m := New()
	m.AddUserCode(fooKey, proceed(2))
	idx, ok := m.CodeDir().Lookup(fooKey)
	require.True(t, ok)
	assert.Equal(t, CodeIndex{Addr: 0, Module: UserModule, Defined: true}, *idx)

	m.AddUserCode(barKey, proceed(3))
	assert.Equal(t, 5, m.CodeSize())
	assert.Equal(t, 2, m.CodeDir()[barKey].Addr)

	// Redefinition moves the same cell.
	m.AddUserCode(fooKey, proceed(1))
	assert.Same(t, idx, m.CodeDir()[fooKey])
	assert.Equal(t, 5, idx.Addr)
	assert.Equal(t, 6, m.CodeSize())
}

func TestMachine_AddBatchedCode(t *testing.T) {
	m := New()
	m.AddUserCode(fooKey, proceed(2))
	held := m.CodeDir()[fooKey]

	bundle := NewIndexBundle()
	bundle.CodeDir.Install(fooKey, 2, UserModule)
	bundle.CodeDir.Install(barKey, 4, UserModule)
	require.NoError(t, ops.Decl{Priority: 700, Spec: ops.XFX, Name: "==="}.Submit(UserModule, bundle.OpDir))

	m.AddBatchedCode(proceed(3), bundle)

	assert.Equal(t, 5, m.CodeSize())
	assert.Equal(t, 2, held.Addr)
	assert.Equal(t, 4, m.CodeDir()[barKey].Addr)
	assert.True(t, m.OpDir().IsOp("==="))
}

func TestMachine_EntryPointsKeepSupersededCode(t *testing.T) {
	m := New()
	m.AddUserCode(fooKey, proceed(2))
	m.AddUserCode(fooKey, proceed(1))

	bundle := NewIndexBundle()
	bundle.CodeDir.Install(barKey, 3, UserModule)
	bundle.CodeDir.Install(bazKey, 5, UserModule)
	m.AddBatchedCode(proceed(4), bundle)

	mod, err := NewModule(term.ModuleDecl{Module: "m"})
	require.NoError(t, err)
	mod.CodeDir.Install(fooKey, 7, "m")
	mod.CodeDir.Install(barKey, 9, "m")
	m.AddModule(mod, proceed(3))

	assert.Equal(t, []int{0, 2, 3, 5, 7, 9}, m.EntryPoints())

	m.Restore(m.Code(), m.CodeDir(), m.OpDir(), []*Module{mod})
	assert.Equal(t, []int{2, 3, 5, 7, 9}, m.EntryPoints(), "only live entries survive a restore")
}

func TestMachine_UseModule(t *testing.T) {
	m := New()
	assert.ErrorIs(t, m.UseModule("lists"), ErrModuleNotFound)

	mod := testModule(t, "lists")
	m.AddModule(mod, proceed(40))
	require.NoError(t, m.UseModule("lists"))

	assert.Same(t, mod.CodeDir[fooKey], m.CodeDir()[fooKey])
	assert.Contains(t, m.CodeDir(), barKey)
	assert.NotContains(t, m.CodeDir(), bazKey)
	assert.True(t, m.OpDir().IsOp("qux"))
}

func TestMachine_UseQualifiedModuleIsExact(t *testing.T) {
	m := New()
	assert.ErrorIs(t, m.UseQualifiedModule("lists", nil), ErrModuleNotFound)

	m.AddUserCode(term.PredicateKey{Name: "mine", Arity: 0}, proceed(1))
	m.AddModule(testModule(t, "lists"), proceed(40))
	before := len(m.CodeDir())

	require.NoError(t, m.UseQualifiedModule("lists", []term.PredicateKey{fooKey, bazKey}))

	assert.Len(t, m.CodeDir(), before+1)
	assert.Contains(t, m.CodeDir(), fooKey)
	assert.NotContains(t, m.CodeDir(), barKey)
	assert.NotContains(t, m.CodeDir(), bazKey, "unexported keys are not imported")
	_, ok := m.OpDir().Lookup("foo", ops.Infix)
	assert.True(t, ok)
	assert.False(t, m.OpDir().IsOp("qux"))
}

func TestMachine_AddModuleReplacementUpdatesImporters(t *testing.T) {
	m := New()
	m.AddModule(testModule(t, "lists"), proceed(40))
	require.NoError(t, m.UseModule("lists"))
	imported := m.CodeDir()[fooKey]

	replacement := testModule(t, "lists")
	replacement.CodeDir.Install(fooKey, 55, "lists")
	m.AddModule(replacement, proceed(20))

	assert.Equal(t, 55, imported.Addr)
	mod, ok := m.Module("lists")
	require.True(t, ok)
	assert.Same(t, imported, mod.CodeDir[fooKey])
	assert.Equal(t, []string{"lists"}, m.ModuleNames())
	assert.Equal(t, 60, m.CodeSize())
}

func TestMachine_ClassifyClause(t *testing.T) {
	m := New()
	tests := []struct {
		name  term.Atom
		arity int
		want  ClauseType
	}{
		{"foo", 1, Named},
		{",", 2, Control},
		{"!", 0, Control},
		{"call", 3, CallN},
		{"is", 2, Inlined},
		{"=", 2, Builtin},
		{"mod", 2, Op},
		{"=", 3, Op},
	}
	for _, tt := range tests {
		got := m.ClassifyClause(tt.name, tt.arity)
		assert.Equal(t, tt.want, got, "%s/%d", tt.name, tt.arity)
		assert.Equal(t, tt.want == Named || tt.want == Op, got.Definable())
	}
}

func TestMachine_SubmitQuery(t *testing.T) {
	m := New()
	_, ok := m.PendingQuery()
	assert.False(t, ok)

	bindings := codegen.VarBindings{"X": instr.Y(1)}
	sess, err := m.SubmitQuery(proceed(1), bindings)
	require.NoError(t, err)
	assert.Equal(t, QueryReady, sess.Kind)
	require.NotNil(t, sess.Query)
	assert.NotEqual(t, uuid.Nil, sess.Query.ID)
	assert.Equal(t, bindings, sess.Query.Bindings)

	pending, ok := m.PendingQuery()
	require.True(t, ok)
	assert.Same(t, sess.Query, pending)
	assert.Equal(t, 0, m.CodeSize(), "queries are not linked into the code segment")
}

func TestImpermissibleEntryError(t *testing.T) {
	err := &ImpermissibleEntryError{Key: fooKey, Reason: "builtin"}
	assert.ErrorIs(t, err, ErrImpermissibleEntry)
	assert.Equal(t, "cannot define foo/1: builtin", err.Error())
}
