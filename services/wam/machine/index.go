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
	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

// UserModule is the namespace of code defined outside any module.
const UserModule = "user"

// CodeIndex is the address of a predicate's code and the module that
// defined it.
type CodeIndex struct {
	Addr    int    `json:"addr"`
	Module  string `json:"module"`
	Defined bool   `json:"defined"`
}

// CodeDir maps predicate keys to shared index cells.
type CodeDir map[term.PredicateKey]*CodeIndex

// Lookup returns the cell for key.
func (d CodeDir) Lookup(key term.PredicateKey) (*CodeIndex, bool) {
	idx, ok := d[key]
	return idx, ok
}

// Install records code for key at addr on behalf of module. A cell owned
// by the same module is rewritten in place; otherwise a fresh cell
// replaces the entry.
func (d CodeDir) Install(key term.PredicateKey, addr int, module string) *CodeIndex {
	if idx, ok := d[key]; ok && idx.Module == module {
		idx.Addr = addr
		idx.Defined = true
		return idx
	}
	idx := &CodeIndex{Addr: addr, Module: module, Defined: true}
	d[key] = idx
	return idx
}

// Merge brings the entries of src into d. Where d already holds a
// different cell owned by the same module, that cell takes the new value
// so holders of it observe the change. Every other entry shares the cell
// from src.
func (d CodeDir) Merge(src CodeDir) {
	for key, idx := range src {
		if cur, ok := d[key]; ok && cur != idx && cur.Module == idx.Module {
			*cur = *idx
			continue
		}
		d[key] = idx
	}
}

// IndexBundle is the working state of one listing. Its contents move into
// the machine or a module on commit.
type IndexBundle struct {
	CodeDir CodeDir
	OpDir   ops.Dir
	Used    map[string]struct{}
}

// NewIndexBundle returns an empty bundle.
func NewIndexBundle() *IndexBundle {
	return &IndexBundle{
		CodeDir: make(CodeDir),
		OpDir:   make(ops.Dir),
		Used:    make(map[string]struct{}),
	}
}

// MarkUsed records that module name was imported.
func (b *IndexBundle) MarkUsed(name string) {
	b.Used[name] = struct{}{}
}
