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

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCode() Code {
	return Code{
		Indexing{Var: 1, Const: 4, List: 0, Struct: 0},
		Choice{Kind: TryMeElse, Offset: 3},
		Fact{{Op: GetConstant, Const: AtomConst("a"), Arg: 1}},
		Control{Kind: Proceed},
		Choice{Kind: TrustMe, NonCounted: true},
		Control{Kind: Allocate, N: 2},
		Query{{Op: PutValue, Reg: Y(1), Arg: 1}},
		Control{Kind: JmpBy, Arity: 1},
		Arithmetic{Op: "add", A: Operand{Kind: OperandReg, Reg: X(1)}, B: Operand{Kind: OperandConst, Const: IntConst(1)}, Target: 1},
		Cut{Kind: CutTo, Reg: Y(2)},
		IndexedChoice{Kind: Retry, Offset: -6},
		Control{Kind: IsCall, Reg: X(2), At: Operand{Kind: OperandInterm, Interm: 1}},
	}
}

func TestCode_PendingJumps(t *testing.T) {
	code := sampleCode()
	assert.Equal(t, []int{7}, code.PendingJumps())

	code[7] = Control{Kind: JmpBy, Arity: 1, Offset: 5}
	assert.Empty(t, code.PendingJumps())
}

func TestControl_IsPendingJump(t *testing.T) {
	assert.True(t, Control{Kind: JmpBy}.IsPendingJump())
	assert.False(t, Control{Kind: JmpBy, Offset: 2}.IsPendingJump())
	assert.False(t, Control{Kind: Call}.IsPendingJump())
}

func TestLine_String(t *testing.T) {
	tests := []struct {
		line Line
		want string
	}{
		{Choice{Kind: TryMeElse, Offset: 3}, "try_me_else +3"},
		{Choice{Kind: TrustMe, NonCounted: true}, "trust_me [uncounted]"},
		{Control{Kind: Call, Name: "foo", Arity: 2}, "call foo/2"},
		{Control{Kind: JmpBy, Arity: 1, Offset: 4, Last: true}, "jmp_by 1, +4 [last]"},
		{Fact{{Op: GetVariable, Reg: X(3), Arg: 1}, {Op: GetConstant, Const: IntConst(7), Arg: 2}}, "get_variable X3, A1; get_constant 7, A2"},
		{Cut{Kind: NeckCut}, "neck_cut"},
		{Indexing{Var: 1, Const: 2}, "switch_on_term +1, +2, +0, +0"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.line.String())
		})
	}
}

func TestCode_Dump(t *testing.T) {
	var buf bytes.Buffer
	code := Code{Control{Kind: Proceed}, Control{Kind: Deallocate}}
	require.NoError(t, code.Dump(&buf, 10))
	assert.Equal(t, "    10  proceed\n    11  deallocate\n", buf.String())
}

func TestCodec_RoundTripsEveryKind(t *testing.T) {
	for _, l := range sampleCode() {
		b, err := EncodeLine(l)
		require.NoError(t, err)
		got, err := DecodeLine(b)
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}
}

func TestCodec_UnknownKind(t *testing.T) {
	_, err := DecodeLine([]byte(`{"k":"nope","v":{}}`))
	assert.ErrorIs(t, err, ErrUnknownLine)
}
