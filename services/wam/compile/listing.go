// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/AleutianAI/wamlink/services/wam/instr"
	"github.com/AleutianAI/wamlink/services/wam/machine"
	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/reader"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

// BuiltinsModule is the module every top-level listing imports.
const BuiltinsModule = ops.BuiltinModule

// listingCompiler is the state of one Listing call.
type listingCompiler struct {
	m          Machine
	bundle     *machine.IndexBundle
	module     *machine.Module
	nonCounted map[term.PredicateKey]bool
	logger     *slog.Logger
}

// Listing reads src in full, compiles it, and commits the result to m.
// A module header makes the listing a module; otherwise the code and
// directories are added to the global store. On any error nothing is
// installed.
func Listing(ctx context.Context, m Machine, src io.Reader, bundle *machine.IndexBundle) (machine.Session, error) {
	ctx, span := startListingSpan(ctx, m.CodeSize())
	start := time.Now()

	lc := &listingCompiler{
		m:          m,
		bundle:     bundle,
		nonCounted: make(map[term.PredicateKey]bool),
		logger:     m.Logger(),
	}
	code, err := lc.compile(src)
	if err == nil {
		lc.commit(code)
	}

	recordListing(ctx, time.Since(start), len(code), err)
	endSpan(span, err)
	if err != nil {
		return machine.Session{}, err
	}
	return machine.Success, nil
}

// UserModule loads a top-level listing. The bundle starts with the
// standard operator table and the exports of the builtins module.
func UserModule(ctx context.Context, m Machine, src io.Reader) (machine.Session, error) {
	builtins, ok := m.Module(BuiltinsModule)
	if !ok {
		return machine.Session{}, fmt.Errorf("%s: %w", BuiltinsModule, machine.ErrModuleNotFound)
	}
	bundle := machine.NewIndexBundle()
	bundle.OpDir = ops.Default()
	useModule(bundle, nil, builtins)
	return Listing(ctx, m, src, bundle)
}

func (lc *listingCompiler) compile(src io.Reader) (instr.Code, error) {
	w, err := reader.NewBatchWorker(src, lc.m.Flags(), lc.logger)
	if err != nil {
		return nil, err
	}
	for {
		decl, err := w.Consume(lc.parseOps())
		if err != nil {
			return nil, err
		}
		if decl == nil {
			break
		}
		if err := lc.declare(decl); err != nil {
			return nil, err
		}
	}
	return lc.generateCode(w.Results)
}

// parseOps is the operator view the next terms are read against.
func (lc *listingCompiler) parseOps() ops.Dir {
	if lc.module == nil {
		return lc.bundle.OpDir
	}
	dir := lc.bundle.OpDir.Clone()
	dir.Merge(lc.module.OpDir)
	return dir
}

func (lc *listingCompiler) moduleName() string {
	if lc.module == nil {
		return machine.UserModule
	}
	return lc.module.Name
}

func (lc *listingCompiler) declare(decl term.Declaration) error {
	switch d := decl.(type) {
	case term.NonCountedBacktracking:
		lc.nonCounted[d.Key] = true

	case term.OpDecl:
		if lc.module == nil {
			return submitOps(d, machine.UserModule, lc.bundle.OpDir)
		}
		// Clashes are judged against the view the module is read with.
		if err := submitOps(d, lc.module.Name, lc.parseOps()); err != nil {
			return err
		}
		return submitOps(d, lc.module.Name, lc.module.OpDir)

	case term.UseModule:
		src, ok := lc.m.Module(string(d.Module))
		if !ok {
			return fmt.Errorf("%s: %w", d.Module, machine.ErrModuleNotFound)
		}
		useModule(lc.bundle, lc.module, src)

	case term.UseQualifiedModule:
		src, ok := lc.m.Module(string(d.Module))
		if !ok {
			return fmt.Errorf("%s: %w", d.Module, machine.ErrModuleNotFound)
		}
		useQualifiedModule(lc.bundle, lc.module, src, d.Exports)

	case term.ModuleDecl:
		if lc.module != nil {
			return fmt.Errorf("module %s after module %s: %w", d.Module, lc.module.Name, reader.ErrInvalidModuleDecl)
		}
		mod, err := machine.NewModule(d)
		if err != nil {
			return err
		}
		lc.module = mod

	default:
		return fmt.Errorf("%T: %w", decl, reader.ErrInvalidDirective)
	}
	return nil
}

// generateCode compiles the groups in order. Each group's address is the
// code size at listing start plus what this call has emitted before it.
// Index cells are fresh, so no shared cell changes before commit.
func (lc *listingCompiler) generateCode(groups []reader.Group) (instr.Code, error) {
	base := lc.m.CodeSize()
	module := lc.moduleName()
	defined := make(map[term.PredicateKey]bool, len(groups))

	var code instr.Code
	for i, g := range groups {
		key, ok := term.KeyOf(g.Pred)
		if !ok {
			return nil, fmt.Errorf("group %d: %w", i+1, machine.ErrNamelessEntry)
		}
		if ct := lc.m.ClassifyClause(key.Name, key.Arity); !ct.Definable() {
			return nil, &machine.ImpermissibleEntryError{Key: key, Reason: ct.String() + " predicate"}
		}

		nonCounted := lc.nonCounted[key]
		rel, err := Relation(g.Pred, nonCounted)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		rel, err = Appendix(rel, g.Queue, nonCounted)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}

		if defined[key] {
			lc.logger.Warn("discontiguous clauses replace earlier definition",
				slog.String("predicate", key.String()),
				slog.String("module", module))
		}
		defined[key] = true

		addr := base + len(code)
		lc.bundle.CodeDir[key] = &machine.CodeIndex{Addr: addr, Module: module, Defined: true}
		code = append(code, rel...)
	}
	return code, nil
}

// commit is the only point where the listing becomes visible.
func (lc *listingCompiler) commit(code instr.Code) {
	if lc.module == nil {
		lc.m.AddBatchedCode(code, lc.bundle)
		return
	}

	lc.module.CodeDir.Merge(lc.bundle.CodeDir)
	opDir := lc.bundle.OpDir.Clone()
	opDir.Merge(lc.module.OpDir)
	lc.module.OpDir = opDir
	lc.m.AddModule(lc.module, code)
}
