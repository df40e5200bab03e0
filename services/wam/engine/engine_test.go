// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wamlink/services/wam/instr"
	"github.com/AleutianAI/wamlink/services/wam/machine"
	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/reader"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

func boot(t *testing.T) *Engine {
	t.Helper()
	e, err := Boot(context.Background())
	require.NoError(t, err)
	return e
}

func TestBoot_LoadsBuiltins(t *testing.T) {
	e := boot(t)

	mod, ok := e.Machine().Module("builtins")
	require.True(t, ok)
	assert.Greater(t, e.Machine().CodeSize(), 0)
	assert.Empty(t, e.Machine().Code().PendingJumps())
	for _, k := range mod.Exports {
		idx, ok := mod.CodeDir[k]
		require.True(t, ok, "export %s has code", k)
		assert.Equal(t, "builtins", idx.Module)
	}
	assert.Empty(t, e.Machine().CodeDir(), "builtins are only visible through imports")
}

func TestConsult_ImportsBuiltins(t *testing.T) {
	e := boot(t)
	_, err := e.Consult(context.Background(), strings.NewReader("main(X) :- append(X, [b], [a, b]).\n"))
	require.NoError(t, err)

	preds := e.Predicates()
	var keys []string
	for _, p := range preds {
		keys = append(keys, p.Key)
	}
	assert.Contains(t, keys, "main/1")
	assert.Contains(t, keys, "append/3")
	assert.Contains(t, keys, "member/2")

	builtins, _ := e.Machine().Module("builtins")
	appendKey := term.PredicateKey{Name: "append", Arity: 3}
	assert.Same(t, builtins.CodeDir[appendKey], e.Machine().CodeDir()[appendKey])
}

func TestConsultFile(t *testing.T) {
	e := boot(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "app.pl")
	require.NoError(t, os.WriteFile(path, []byte(":- module(app, [go/0]).\ngo :- member(x, [x]).\n"), 0o644))

	sess, err := e.ConsultFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, machine.EntrySuccess, sess.Kind)

	mods := e.Modules()
	require.Len(t, mods, 2)
	assert.Equal(t, "app", mods[0].Name)
	assert.Equal(t, []string{"go/0"}, mods[0].Exports)

	_, err = e.ConsultFile(context.Background(), filepath.Join(dir, "missing.pl"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(path, []byte("broken(.\n"), 0o644))
	_, err = e.ConsultFile(context.Background(), path)
	assert.ErrorIs(t, err, reader.ErrSyntax)
	assert.Contains(t, err.Error(), path)
}

func TestEval(t *testing.T) {
	e := boot(t)
	ctx := context.Background()

	sess, err := e.Eval(ctx, "likes(mary, wine).")
	require.NoError(t, err)
	assert.Equal(t, machine.EntrySuccess, sess.Kind)

	sess, err = e.Eval(ctx, "?- likes(mary, X).")
	require.NoError(t, err)
	assert.Equal(t, machine.QueryReady, sess.Kind)
	assert.Contains(t, sess.Query.Bindings, "X")

	_, err = e.Eval(ctx, "likes(mary")
	assert.True(t, reader.IsIncomplete(err))
}

func TestDump(t *testing.T) {
	e := boot(t)
	_, err := e.Eval(context.Background(), "foo(X) :- bar(X).")
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, e.Dump(&sb))
	out := sb.String()

	assert.Contains(t, out, "% builtins:append/3\n")
	assert.Contains(t, out, "% foo/1\n")
	assert.Contains(t, out, "execute bar/1")
	assert.Equal(t, e.Machine().CodeSize(), strings.Count(out, "\n")-strings.Count(out, "% "))
}

func TestDump_MarksSupersededCode(t *testing.T) {
	e := boot(t)
	ctx := context.Background()
	_, err := e.Eval(ctx, "foo(1).")
	require.NoError(t, err)
	old := e.Machine().CodeSize()
	_, err = e.Eval(ctx, "foo(2).")
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, e.Dump(&sb))
	out := sb.String()

	assert.Equal(t, 1, strings.Count(out, "% foo/1\n"))
	supersededAt := strings.Index(out, "% (superseded)\n")
	require.GreaterOrEqual(t, supersededAt, 0)
	assert.Less(t, supersededAt, strings.Index(out, "% foo/1\n"))
	assert.Contains(t, out, fmt.Sprintf("%% foo/1\n%6d  ", old))
	assert.Equal(t, e.Machine().CodeSize(), strings.Count(out, "\n")-strings.Count(out, "% "))
}

func TestDump_LeadingCodeWithoutEntry(t *testing.T) {
	code := instr.Code{
		instr.Control{Kind: instr.Proceed},
		instr.Control{Kind: instr.Proceed},
		instr.Control{Kind: instr.Call, Name: "q"},
		instr.Control{Kind: instr.Proceed},
	}
	dir := machine.CodeDir{}
	dir.Install(term.PredicateKey{Name: "p", Arity: 0}, 2, machine.UserModule)

	e, err := Restore(context.Background(), func(_ context.Context, m *machine.Machine) error {
		m.Restore(code, dir, ops.Default(), nil)
		return nil
	})
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, e.Dump(&sb))
	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "% (unlabelled)", lines[0])
	assert.Equal(t, "% p/0", lines[3])
	assert.Equal(t, []int{2}, e.Machine().EntryPoints())
}

func TestWithLoggerIgnoresNil(t *testing.T) {
	e, err := Boot(context.Background(), WithLogger(nil))
	require.NoError(t, err)
	assert.NotNil(t, e.Logger())
}

func TestShared_SerializesAccess(t *testing.T) {
	s := NewShared(boot(t))
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			_ = s.Do(func(e *Engine) error {
				_, err := e.Eval(context.Background(), "fact("+strconv.Itoa(i)+").")
				return err
			})
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	err := s.Do(func(e *Engine) error {
		idx, ok := e.Machine().CodeDir().Lookup(term.PredicateKey{Name: "fact", Arity: 1})
		require.True(t, ok)
		assert.Equal(t, e.Machine().CodeSize()-2, idx.Addr)
		return nil
	})
	assert.NoError(t, err)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	src := boot(t)

	e, err := Restore(ctx, func(_ context.Context, m *machine.Machine) error {
		builtins, _ := src.Machine().Module("builtins")
		m.Restore(src.Machine().Code(), src.Machine().CodeDir(), src.Machine().OpDir(), []*machine.Module{builtins})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, src.Machine().CodeSize(), e.Machine().CodeSize())

	_, err = e.Consult(ctx, strings.NewReader("main(X) :- member(X, [1]).\n"))
	require.NoError(t, err)

	_, err = Restore(ctx, func(context.Context, *machine.Machine) error {
		return os.ErrNotExist
	})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
