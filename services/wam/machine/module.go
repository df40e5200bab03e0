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

	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

// Module is a named unit of code with an export list.
type Module struct {
	Name      string
	Exports   []term.PredicateKey
	OpExports []ops.Decl
	CodeDir   CodeDir
	OpDir     ops.Dir
}

// NewModule creates the record for a module header. Exported operators
// are submitted into the module's own operator directory.
func NewModule(decl term.ModuleDecl) (*Module, error) {
	m := &Module{
		Name:      string(decl.Module),
		Exports:   decl.Exports,
		OpExports: decl.OpExports,
		CodeDir:   make(CodeDir),
		OpDir:     make(ops.Dir),
	}
	for _, d := range decl.OpExports {
		if err := d.Submit(m.Name, m.OpDir); err != nil {
			return nil, fmt.Errorf("module %s: %w", m.Name, err)
		}
	}
	return m, nil
}

// IsExported reports whether key is on the export list.
func (m *Module) IsExported(key term.PredicateKey) bool {
	for _, k := range m.Exports {
		if k == key {
			return true
		}
	}
	return false
}

// ExportedCode returns the cells of exported predicates that have code.
func (m *Module) ExportedCode() CodeDir {
	out := make(CodeDir, len(m.Exports))
	for _, key := range m.Exports {
		if idx, ok := m.CodeDir[key]; ok {
			out[key] = idx
		}
	}
	return out
}

// ExportedOps returns the definitions of exported operators.
func (m *Module) ExportedOps() ops.Dir {
	out := make(ops.Dir, len(m.OpExports))
	for _, d := range m.OpExports {
		key := d.Key()
		if def, ok := m.OpDir[key]; ok {
			out[key] = def
		}
	}
	return out
}
