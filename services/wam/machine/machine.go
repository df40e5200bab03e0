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
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/wamlink/services/wam/codegen"
	"github.com/AleutianAI/wamlink/services/wam/instr"
	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/reader"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

// Machine owns the code segment and the symbol tables.
type Machine struct {
	code    instr.Code
	codeDir CodeDir
	opDir   ops.Dir
	modules map[string]*Module
	flags   reader.Flags
	pending *PendingQuery
	logger  *slog.Logger

	// entries holds every address code was ever installed at, including
	// entry points later superseded by a redefinition.
	entries map[int]struct{}
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithFlags sets the reader flags.
func WithFlags(f reader.Flags) Option {
	return func(m *Machine) { m.flags = f }
}

// New returns a machine with an empty code segment and the standard
// operator table.
func New(opts ...Option) *Machine {
	m := &Machine{
		codeDir: make(CodeDir),
		opDir:   ops.Default(),
		modules: make(map[string]*Module),
		logger:  slog.Default(),
		entries: make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CodeSize returns the length of the code segment.
func (m *Machine) CodeSize() int { return len(m.code) }

// Code returns the code segment. Callers must not modify it.
func (m *Machine) Code() instr.Code { return m.code }

// CodeDir returns the global code directory.
func (m *Machine) CodeDir() CodeDir { return m.codeDir }

// OpDir returns the global operator directory.
func (m *Machine) OpDir() ops.Dir { return m.opDir }

// Flags returns the reader flags.
func (m *Machine) Flags() reader.Flags { return m.flags }

// Logger returns the machine's logger.
func (m *Machine) Logger() *slog.Logger { return m.logger }

// Module looks up a registered module.
func (m *Machine) Module(name string) (*Module, bool) {
	mod, ok := m.modules[name]
	return mod, ok
}

// ModuleNames returns the registered module names in sorted order.
func (m *Machine) ModuleNames() []string {
	names := make([]string, 0, len(m.modules))
	for name := range m.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EntryPoints returns, in ascending order, every address at which a
// predicate or listing was installed. Superseded entry points are kept.
func (m *Machine) EntryPoints() []int {
	out := make([]int, 0, len(m.entries))
	for addr := range m.entries {
		out = append(out, addr)
	}
	sort.Ints(out)
	return out
}

func (m *Machine) markEntries(base int, dir CodeDir, module string) {
	m.entries[base] = struct{}{}
	for _, idx := range dir {
		if idx.Module == module && idx.Addr >= base {
			m.entries[idx.Addr] = struct{}{}
		}
	}
}

// PendingQuery returns the last submitted query, if any.
func (m *Machine) PendingQuery() (*PendingQuery, bool) {
	return m.pending, m.pending != nil
}

// ClassifyClause returns how name/arity is treated by the machine.
func (m *Machine) ClassifyClause(name term.Atom, arity int) ClauseType {
	return classify(name, arity, m.opDir)
}

// SubmitQuery records compiled query code for execution.
func (m *Machine) SubmitQuery(code instr.Code, bindings codegen.VarBindings) (Session, error) {
	q := &PendingQuery{
		ID:          uuid.New(),
		Code:        code,
		Bindings:    bindings,
		SubmittedAt: time.Now(),
	}
	m.pending = q
	m.logger.Debug("query submitted",
		slog.String("query_id", q.ID.String()),
		slog.Int("instructions", len(code)),
		slog.Int("bindings", len(bindings)))
	return Session{Kind: QueryReady, Query: q}, nil
}

// UseModule imports every export of module name into the global
// directories.
func (m *Machine) UseModule(name string) error {
	mod, ok := m.modules[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrModuleNotFound)
	}
	m.codeDir.Merge(mod.ExportedCode())
	m.opDir.Merge(mod.ExportedOps())
	return nil
}

// UseQualifiedModule imports the listed exports of module name into the
// global directories. Keys the module does not export are ignored.
func (m *Machine) UseQualifiedModule(name string, keys []term.PredicateKey) error {
	mod, ok := m.modules[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrModuleNotFound)
	}
	code, opDir := QualifiedExports(mod, keys)
	m.codeDir.Merge(code)
	m.opDir.Merge(opDir)
	return nil
}

// QualifiedExports selects the exported cells of mod named by keys, plus
// exported operators whose name matches one of them.
func QualifiedExports(mod *Module, keys []term.PredicateKey) (CodeDir, ops.Dir) {
	exported := mod.ExportedCode()
	exportedOps := mod.ExportedOps()
	code := make(CodeDir, len(keys))
	opDir := make(ops.Dir)
	for _, key := range keys {
		if idx, ok := exported[key]; ok {
			code[key] = idx
		}
		for opKey, def := range exportedOps {
			if opKey.Name == string(key.Name) {
				opDir[opKey] = def
			}
		}
	}
	return code, opDir
}

// AddUserCode appends code and points key at it in the global directory.
func (m *Machine) AddUserCode(key term.PredicateKey, code instr.Code) {
	addr := len(m.code)
	m.code = append(m.code, code...)
	m.entries[addr] = struct{}{}
	m.codeDir.Install(key, addr, UserModule)
	m.logger.Debug("installed predicate",
		slog.String("predicate", key.String()),
		slog.Int("addr", addr),
		slog.Int("instructions", len(code)))
}

// AddBatchedCode appends the code of a top-level listing and merges its
// directories into the global ones. Addresses in bundle must have been
// computed against the current code size.
func (m *Machine) AddBatchedCode(code instr.Code, bundle *IndexBundle) {
	base := len(m.code)
	m.code = append(m.code, code...)
	m.markEntries(base, bundle.CodeDir, UserModule)
	m.codeDir.Merge(bundle.CodeDir)
	m.opDir.Merge(bundle.OpDir)
	m.logger.Debug("installed listing",
		slog.Int("addr", base),
		slog.Int("instructions", len(code)),
		slog.Int("predicates", len(bundle.CodeDir)))
}

// AddModule appends the code of a module listing and registers the
// module, replacing any earlier module of the same name. Cells of the
// earlier module are rewritten in place so existing importers follow the
// new code.
func (m *Machine) AddModule(mod *Module, code instr.Code) {
	base := len(m.code)
	m.code = append(m.code, code...)
	m.markEntries(base, mod.CodeDir, mod.Name)
	if old, ok := m.modules[mod.Name]; ok {
		for key, idx := range mod.CodeDir {
			if cur, ok := old.CodeDir[key]; ok && cur != idx && cur.Module == idx.Module {
				*cur = *idx
				mod.CodeDir[key] = cur
			}
		}
		m.logger.Info("module replaced", slog.String("module", mod.Name))
	}
	m.modules[mod.Name] = mod
	m.logger.Debug("installed module",
		slog.String("module", mod.Name),
		slog.Int("addr", base),
		slog.Int("instructions", len(code)),
		slog.Int("exports", len(mod.Exports)))
}

// Restore replaces the whole machine state. It is used when loading a
// saved image. Only the live entry points of the restored directories
// are known afterwards.
func (m *Machine) Restore(code instr.Code, codeDir CodeDir, opDir ops.Dir, modules []*Module) {
	m.code = code
	m.codeDir = codeDir
	m.opDir = opDir
	m.modules = make(map[string]*Module, len(modules))
	m.entries = make(map[int]struct{})
	for _, idx := range codeDir {
		if idx.Module == UserModule {
			m.entries[idx.Addr] = struct{}{}
		}
	}
	for _, mod := range modules {
		m.modules[mod.Name] = mod
		for _, idx := range mod.CodeDir {
			if idx.Module == mod.Name {
				m.entries[idx.Addr] = struct{}{}
			}
		}
	}
	m.pending = nil
}
