// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine ties the compiler to a machine preloaded with the
// builtins library.
//
// # Usage
//
//	e, err := engine.Boot(ctx, engine.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if _, err := e.ConsultFile(ctx, "app.pl"); err != nil {
//	    return err
//	}
//	sess, err := e.Eval(ctx, "?- main(X).")
//
// # Thread Safety
//
// An Engine is not safe for concurrent use. Callers that share one across
// goroutines must serialize access themselves.
package engine

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/AleutianAI/wamlink/services/wam/compile"
	"github.com/AleutianAI/wamlink/services/wam/machine"
	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/reader"
)

//go:embed builtins.pl
var builtinsSource []byte

// Option configures Boot.
type Option func(*Engine)

// Engine owns one machine.
type Engine struct {
	m      *machine.Machine
	logger *slog.Logger
	flags  reader.Flags
}

// WithLogger sets the logger used by the engine and its machine.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithFlags sets the reader flags for every listing and packet.
func WithFlags(f reader.Flags) Option {
	return func(e *Engine) {
		e.flags = f
	}
}

// Boot creates a machine and compiles the builtins module into it.
func Boot(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.m = machine.New(machine.WithLogger(e.logger), machine.WithFlags(e.flags))

	bundle := machine.NewIndexBundle()
	bundle.OpDir = ops.Default()
	if _, err := compile.Listing(ctx, e.m, bytes.NewReader(builtinsSource), bundle); err != nil {
		return nil, fmt.Errorf("loading builtins: %w", err)
	}
	e.logger.Debug("engine booted", slog.Int("code_size", e.m.CodeSize()))
	return e, nil
}

// Restore creates an engine whose machine is filled by load instead of
// compiling the builtins, typically (*image.Store).Load.
func Restore(ctx context.Context, load func(context.Context, *machine.Machine) error, opts ...Option) (*Engine, error) {
	e := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.m = machine.New(machine.WithLogger(e.logger), machine.WithFlags(e.flags))
	if err := load(ctx, e.m); err != nil {
		return nil, fmt.Errorf("restoring machine: %w", err)
	}
	e.logger.Debug("engine restored", slog.Int("code_size", e.m.CodeSize()))
	return e, nil
}

// Machine returns the underlying machine.
func (e *Engine) Machine() *machine.Machine { return e.m }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Consult compiles a listing. A listing that starts with a module header
// becomes a module; anything else is added to the user namespace.
func (e *Engine) Consult(ctx context.Context, src io.Reader) (machine.Session, error) {
	return compile.UserModule(ctx, e.m, src)
}

// ConsultFile consults the listing stored at path.
func (e *Engine) ConsultFile(ctx context.Context, path string) (machine.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return machine.Session{}, fmt.Errorf("opening listing: %w", err)
	}
	defer f.Close()

	before := e.m.CodeSize()
	sess, err := e.Consult(ctx, f)
	if err != nil {
		return machine.Session{}, fmt.Errorf("%s: %w", path, err)
	}
	e.logger.Info("consulted listing",
		slog.String("path", path),
		slog.Int("instructions", e.m.CodeSize()-before))
	return sess, nil
}

// Parse reads one top-level clause, directive or query against the live
// operator table without evaluating it.
func (e *Engine) Parse(text string) (reader.Packet, error) {
	return compile.ParseCode(e.m, []byte(text))
}

// Eval parses and evaluates one top-level clause, directive or query.
func (e *Engine) Eval(ctx context.Context, text string) (machine.Session, error) {
	pkt, err := e.Parse(text)
	if err != nil {
		return machine.Session{}, err
	}
	return compile.Packet(ctx, e.m, pkt)
}

// =============================================================================
// Introspection
// =============================================================================

// PredicateInfo describes one entry of the global code directory.
type PredicateInfo struct {
	Key     string `json:"key"`
	Addr    int    `json:"addr"`
	Module  string `json:"module"`
	Defined bool   `json:"defined"`
}

// ModuleInfo describes one registered module.
type ModuleInfo struct {
	Name    string   `json:"name"`
	Exports []string `json:"exports"`
	Size    int      `json:"predicates"`
}

// Predicates lists the global code directory ordered by address.
func (e *Engine) Predicates() []PredicateInfo {
	out := make([]PredicateInfo, 0, len(e.m.CodeDir()))
	for key, idx := range e.m.CodeDir() {
		out = append(out, PredicateInfo{Key: key.String(), Addr: idx.Addr, Module: idx.Module, Defined: idx.Defined})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Addr != out[j].Addr {
			return out[i].Addr < out[j].Addr
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Modules lists the registered modules by name.
func (e *Engine) Modules() []ModuleInfo {
	names := e.m.ModuleNames()
	out := make([]ModuleInfo, 0, len(names))
	for _, name := range names {
		mod, _ := e.m.Module(name)
		exports := make([]string, len(mod.Exports))
		for i, k := range mod.Exports {
			exports[i] = k.String()
		}
		out = append(out, ModuleInfo{Name: name, Exports: exports, Size: len(mod.CodeDir)})
	}
	return out
}

// Dump writes the code segment with a label line before each predicate
// entry point known to the global directory or a module. Code before the
// first entry point is headed "% (unlabelled)" and code left behind by a
// redefinition is headed "% (superseded)".
func (e *Engine) Dump(w io.Writer) error {
	byAddr := make(map[int][]string)
	add := func(label string, idx *machine.CodeIndex) {
		byAddr[idx.Addr] = append(byAddr[idx.Addr], label)
	}
	for key, idx := range e.m.CodeDir() {
		if idx.Module == machine.UserModule {
			add(key.String(), idx)
		}
	}
	for _, name := range e.m.ModuleNames() {
		mod, _ := e.m.Module(name)
		for key, idx := range mod.CodeDir {
			if idx.Module == name {
				add(name+":"+key.String(), idx)
			}
		}
	}

	code := e.m.Code()
	marks := map[int]struct{}{0: {}}
	for _, addr := range e.m.EntryPoints() {
		marks[addr] = struct{}{}
	}
	firstLabel := len(code)
	for addr := range byAddr {
		marks[addr] = struct{}{}
		firstLabel = min(firstLabel, addr)
	}
	bounds := make([]int, 0, len(marks))
	for addr := range marks {
		bounds = append(bounds, addr)
	}
	sort.Ints(bounds)

	for i, start := range bounds {
		end := len(code)
		if i+1 < len(bounds) {
			end = bounds[i+1]
		}
		if start >= end {
			continue
		}
		labels := byAddr[start]
		sort.Strings(labels)
		switch {
		case len(labels) > 0:
		case start < firstLabel:
			labels = []string{"(unlabelled)"}
		default:
			labels = []string{"(superseded)"}
		}
		for _, l := range labels {
			if _, err := fmt.Fprintf(w, "%% %s\n", l); err != nil {
				return err
			}
		}
		if err := code[start:end].Dump(w, start); err != nil {
			return err
		}
	}
	return nil
}
