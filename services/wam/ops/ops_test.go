// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpec(t *testing.T) {
	for _, name := range []string{"xfx", "xfy", "yfx", "fx", "fy", "xf", "yf"} {
		spec, err := ParseSpec(name)
		require.NoError(t, err)
		assert.Equal(t, name, spec.String())
	}

	_, err := ParseSpec("xxf")
	assert.ErrorIs(t, err, ErrSpecifier)
}

func TestSpec_Fixity(t *testing.T) {
	assert.Equal(t, Prefix, FY.Fixity())
	assert.Equal(t, Infix, YFX.Fixity())
	assert.Equal(t, Postfix, XF.Fixity())
}

func TestDef_ArgPriorities(t *testing.T) {
	tests := []struct {
		spec        Spec
		left, right int
	}{
		{XFX, 699, 699},
		{XFY, 699, 700},
		{YFX, 700, 699},
		{FY, 0, 700},
		{FX, 0, 699},
		{XF, 699, 0},
		{YF, 700, 0},
	}
	for _, tt := range tests {
		t.Run(tt.spec.String(), func(t *testing.T) {
			l, r := Def{Priority: 700, Spec: tt.spec}.ArgPriorities()
			assert.Equal(t, tt.left, l)
			assert.Equal(t, tt.right, r)
		})
	}
}

func TestDecl_Submit(t *testing.T) {
	dir := Dir{}

	require.NoError(t, Decl{700, XFX, "==="}.Submit("user", dir))
	def, ok := dir.Lookup("===", Infix)
	require.True(t, ok)
	assert.Equal(t, 700, def.Priority)
	assert.Equal(t, "user", def.Module)

	// Redeclaring overwrites.
	require.NoError(t, Decl{500, YFX, "==="}.Submit("user", dir))
	def, _ = dir.Lookup("===", Infix)
	assert.Equal(t, 500, def.Priority)

	// Priority 0 removes.
	require.NoError(t, Decl{0, XFX, "==="}.Submit("user", dir))
	assert.False(t, dir.IsOp("==="))
}

func TestDecl_SubmitErrors(t *testing.T) {
	dir := Default()

	assert.ErrorIs(t, Decl{1201, XFX, "foo"}.Submit("user", dir), ErrPriority)
	assert.ErrorIs(t, Decl{-1, XFX, "foo"}.Submit("user", dir), ErrPriority)
	assert.ErrorIs(t, Decl{1000, XFY, ","}.Submit("user", dir), ErrModifyComma)
	assert.ErrorIs(t, Decl{100, XF, "="}.Submit("user", dir), ErrOpClash)

	require.NoError(t, Decl{100, XF, "!!"}.Submit("user", dir))
	assert.ErrorIs(t, Decl{100, XFX, "!!"}.Submit("user", dir), ErrOpClash)
}

func TestDefault(t *testing.T) {
	dir := Default()

	def, ok := dir.Lookup(",", Infix)
	require.True(t, ok)
	assert.Equal(t, 1000, def.Priority)
	assert.Equal(t, BuiltinModule, def.Module)

	_, ok = dir.Lookup("-", Prefix)
	assert.True(t, ok)
	_, ok = dir.Lookup("-", Infix)
	assert.True(t, ok)

	// Fresh copies are independent.
	other := Default()
	delete(other, Key{Name: "is", Fixity: Infix})
	assert.True(t, dir.IsOp("is"))
}

func TestDir_CloneMerge(t *testing.T) {
	a := Dir{}
	require.NoError(t, Decl{700, XFX, "~>"}.Submit("m", a))

	b := a.Clone()
	delete(b, Key{Name: "~>", Fixity: Infix})
	assert.True(t, a.IsOp("~>"))

	b.Merge(a)
	assert.True(t, b.IsOp("~>"))
}
