// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/wamlink/pkg/ux"
	"github.com/AleutianAI/wamlink/services/wam/config"
	"github.com/AleutianAI/wamlink/services/wam/engine"
	"github.com/AleutianAI/wamlink/services/wam/image"
	"github.com/AleutianAI/wamlink/services/wam/machine"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeListing(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0600))
	return path
}

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := bootEngine(context.Background(), config.Default(), quiet)
	require.NoError(t, err)
	return e
}

// linesPrompter feeds fixed lines to the read-eval loop.
type linesPrompter struct {
	lines   []string
	history []string
}

func (p *linesPrompter) Prompt(string) (string, error) {
	if len(p.lines) == 0 {
		return "", io.EOF
	}
	line := p.lines[0]
	p.lines = p.lines[1:]
	return line, nil
}

func (p *linesPrompter) AppendHistory(entry string) { p.history = append(p.history, entry) }

func TestDescribeSession(t *testing.T) {
	assert.Equal(t, "yes.", describeSession(machine.Success))

	e := testEngine(t)
	sess, err := e.Eval(context.Background(), "?- append(X, Y, [1]).")
	require.NoError(t, err)

	got := describeSession(sess)
	assert.True(t, strings.HasPrefix(got, "query "+sess.Query.ID.String()))
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "X")
	assert.Contains(t, lines[2], "Y")
}

func TestCheckFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeListing(t, dir, "good.pl", "main(X) :- member(X, [a, b]).\n")
	bad := writeListing(t, dir, "bad.pl", "broken(X :- .\n")
	missing := writeListing(t, dir, "imports.pl", ":- use_module(nowhere).\n")

	var buf bytes.Buffer
	out := ux.NewPrinter(&buf, true)
	err := checkFiles(context.Background(), config.Default(), quiet, []string{good, bad, missing}, 2, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 listings failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "OK\t"+good+"\t"))
	assert.True(t, strings.HasPrefix(lines[1], "ERROR\t"+bad+"\t"))
	assert.True(t, strings.HasPrefix(lines[2], "ERROR\t"+missing+"\t"))
	assert.Equal(t, "SUMMARY: passed=1 failed=2 total=3", lines[3])
}

func TestCheckFiles_AllPass(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.pl", "b.pl", "c.pl"} {
		paths = append(paths, writeListing(t, dir, name, "p(1).\np(2).\n"))
	}

	var buf bytes.Buffer
	err := checkFiles(context.Background(), config.Default(), quiet, paths, 0, ux.NewPrinter(&buf, true))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "SUMMARY: passed=3 failed=0 total=3")
}

func TestReadTerm_Continuation(t *testing.T) {
	e := testEngine(t)
	in := &linesPrompter{lines: []string{"", "foo(X) :-", "  bar(X)."}}

	text, ok, err := readTerm(e, in)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "foo(X) :-\n  bar(X).", text)

	_, ok, err = readTerm(e, in)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadTerm_SyntaxErrorStopsReading(t *testing.T) {
	e := testEngine(t)
	in := &linesPrompter{lines: []string{"a b.", "next(1)."}}

	text, ok, err := readTerm(e, in)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a b.", text)
}

func TestRepl(t *testing.T) {
	e := testEngine(t)
	in := &linesPrompter{lines: []string{
		"likes(alice, prolog).",
		"?- likes(alice,",
		"   X).",
		"broken(.",
		":modules",
		":nope",
		":quit",
		"never(1).",
	}}

	var buf bytes.Buffer
	require.NoError(t, repl(context.Background(), e, in, ux.NewPrinter(&buf, true)))

	out := buf.String()
	assert.Contains(t, out, "yes.")
	assert.Contains(t, out, "query ")
	assert.Contains(t, out, "ERROR: ")
	assert.Contains(t, out, "builtins")
	assert.Contains(t, out, "WARN: unknown command :nope")

	_, defined := e.Machine().CodeDir()[term.PredicateKey{Name: "likes", Arity: 2}]
	assert.True(t, defined)
	_, defined = e.Machine().CodeDir()[term.PredicateKey{Name: "never", Arity: 1}]
	assert.False(t, defined)

	assert.Equal(t, []string{"likes(alice, prolog).", "?- likes(alice,    X)."}, in.history)
}

func TestReplCommand_Listing(t *testing.T) {
	e := testEngine(t)
	var buf bytes.Buffer
	out := ux.NewPrinter(&buf, true)

	assert.False(t, replCommand(e, ":listing", out))
	assert.Contains(t, buf.String(), "% builtins:append/3")

	buf.Reset()
	_, err := e.Eval(context.Background(), "p(1).")
	require.NoError(t, err)
	assert.False(t, replCommand(e, ":predicates", out))
	assert.Contains(t, buf.String(), "p/1")

	assert.True(t, replCommand(e, ":Q", out))
}

func TestScanPrompter(t *testing.T) {
	p := newScanPrompter(strings.NewReader("a.\nb.\n"))
	line, err := p.Prompt(promptMain)
	require.NoError(t, err)
	assert.Equal(t, "a.", line)
	_, err = p.Prompt(promptMain)
	require.NoError(t, err)
	_, err = p.Prompt(promptMain)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStartEngine_FromImage(t *testing.T) {
	ctx := context.Background()
	store, err := image.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	src := testEngine(t)
	_, err = src.Eval(ctx, "saved(1).")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, src.Machine()))

	e, err := startEngine(ctx, config.Default(), quiet, store, true)
	require.NoError(t, err)
	assert.Equal(t, src.Machine().CodeSize(), e.Machine().CodeSize())
	_, ok := e.Machine().CodeDir()[term.PredicateKey{Name: "saved", Arity: 1}]
	assert.True(t, ok)

	_, err = startEngine(ctx, config.Default(), quiet, nil, true)
	assert.Error(t, err)
}

func TestReconsult(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeListing(t, dir, "app.pl", "v(1).\n")

	e := testEngine(t)
	shared := engine.NewShared(e)
	consult := reconsult(shared)
	require.NoError(t, consult(ctx, path))

	key := term.PredicateKey{Name: "v", Arity: 1}
	first := e.Machine().CodeDir()[key].Addr

	writeListing(t, dir, "app.pl", "v(2).\nv(3).\n")
	require.NoError(t, consult(ctx, path))
	assert.Greater(t, e.Machine().CodeDir()[key].Addr, first)

	writeListing(t, dir, "app.pl", "v(.\n")
	assert.Error(t, consult(ctx, path))
}

func TestRootCommand_Check(t *testing.T) {
	dir := t.TempDir()
	good := writeListing(t, dir, "good.pl", "ok(1).\n")
	cfgPath := writeListing(t, dir, "wamlink.yaml", "log:\n  level: error\n")

	rootCmd.SetArgs([]string{"--config", cfgPath, "--plain", "check", good})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "error", cfg.Log.Level)

	rootCmd.SetArgs([]string{"--config", cfgPath, "--log-level", "loud", "check", good})
	assert.Error(t, rootCmd.Execute())
}

func TestOpenImage_RequiresPath(t *testing.T) {
	_, err := openImage(config.Default(), quiet)
	assert.Error(t, err)

	c := config.Default()
	c.Image.Path = filepath.Join(t.TempDir(), "img")
	store, err := openImage(c, quiet)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestServeFlagsValidation(t *testing.T) {
	serveWatch = true
	defer func() { serveWatch = false }()
	cfg = config.Default()
	logger = newLogger(cfg)

	err := runServe(serveCmd, nil)
	assert.ErrorContains(t, err, "--watch")
}

func TestInitTelemetry(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	_, err := initTelemetry(context.Background(), config.TelemetryConfig{Traces: "zipkin", Metrics: "none"})
	assert.Error(t, err)

	shutdown, err := initTelemetry(context.Background(), config.TelemetryConfig{Traces: "none", Metrics: "none"})
	require.NoError(t, err)

	_, span := otel.Tracer("wamlink.compile").Start(context.Background(), "compile_listing")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}
