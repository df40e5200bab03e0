// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/wamlink/services/wam/instr"
	"github.com/AleutianAI/wamlink/services/wam/machine"
	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

const formatVersion = 1

var (
	keyMeta      = []byte("meta")
	keyCells     = []byte("cells")
	keyDir       = []byte("dir")
	keyOps       = []byte("ops")
	prefixCode   = []byte("code/")
	prefixModule = "mod/"
)

type meta struct {
	Version  int       `json:"version"`
	CodeSize int       `json:"code_size"`
	Modules  []string  `json:"modules"`
	SavedAt  time.Time `json:"saved_at"`
}

type dirEntry struct {
	Name  string `json:"name"`
	Arity int    `json:"arity"`
	Cell  int    `json:"cell"`
}

type opEntry struct {
	Name     string     `json:"name"`
	Fixity   ops.Fixity `json:"fixity"`
	Priority int        `json:"priority"`
	Spec     ops.Spec   `json:"spec"`
	Module   string     `json:"module"`
}

type moduleRecord struct {
	Name      string              `json:"name"`
	Exports   []term.PredicateKey `json:"exports"`
	OpExports []ops.Decl          `json:"op_exports"`
	Code      []dirEntry          `json:"code"`
	Ops       []opEntry           `json:"ops"`
}

func codeKey(addr int) []byte {
	return []byte(fmt.Sprintf("%s%08d", prefixCode, addr))
}

func moduleKey(name string) []byte {
	return []byte(prefixModule + name)
}

// cellTable numbers distinct cells in first-seen order.
type cellTable struct {
	ids   map[*machine.CodeIndex]int
	cells []machine.CodeIndex
}

func (t *cellTable) entries(dir machine.CodeDir) []dirEntry {
	keys := make([]term.PredicateKey, 0, len(dir))
	for k := range dir {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		return keys[i].Arity < keys[j].Arity
	})

	out := make([]dirEntry, len(keys))
	for i, k := range keys {
		idx := dir[k]
		id, ok := t.ids[idx]
		if !ok {
			id = len(t.cells)
			t.ids[idx] = id
			t.cells = append(t.cells, *idx)
		}
		out[i] = dirEntry{Name: string(k.Name), Arity: k.Arity, Cell: id}
	}
	return out
}

func opEntries(dir ops.Dir) []opEntry {
	out := make([]opEntry, 0, len(dir))
	for k, d := range dir {
		out = append(out, opEntry{Name: k.Name, Fixity: k.Fixity, Priority: d.Priority, Spec: d.Spec, Module: d.Module})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Fixity < out[j].Fixity
	})
	return out
}

func opDir(entries []opEntry) ops.Dir {
	dir := make(ops.Dir, len(entries))
	for _, e := range entries {
		dir[ops.Key{Name: e.Name, Fixity: e.Fixity}] = ops.Def{Priority: e.Priority, Spec: e.Spec, Module: e.Module}
	}
	return dir
}

// =============================================================================
// Save
// =============================================================================

// Save replaces the stored image with the current state of m.
//
// Every record is encoded before the store is touched, so an encoding
// failure leaves the previous image in place. The header is written last;
// an interrupted save therefore reads back as corrupt rather than as a
// shorter image.
func (s *Store) Save(ctx context.Context, m *machine.Machine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	lines := make([][]byte, m.CodeSize())
	for i, l := range m.Code() {
		b, err := instr.EncodeLine(l)
		if err != nil {
			return fmt.Errorf("address %d: %w", i, err)
		}
		lines[i] = b
	}

	cells := &cellTable{ids: make(map[*machine.CodeIndex]int)}
	docs := make(map[string][]byte)
	put := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		docs[key] = b
		return nil
	}

	if err := put(string(keyDir), cells.entries(m.CodeDir())); err != nil {
		return err
	}
	if err := put(string(keyOps), opEntries(m.OpDir())); err != nil {
		return err
	}
	names := m.ModuleNames()
	for _, name := range names {
		mod, _ := m.Module(name)
		rec := moduleRecord{
			Name:      mod.Name,
			Exports:   mod.Exports,
			OpExports: mod.OpExports,
			Code:      cells.entries(mod.CodeDir),
			Ops:       opEntries(mod.OpDir),
		}
		if err := put(string(moduleKey(name)), rec); err != nil {
			return err
		}
	}
	if err := put(string(keyCells), cells.cells); err != nil {
		return err
	}
	header, err := json.Marshal(meta{Version: formatVersion, CodeSize: len(lines), Modules: names, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}

	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("clear image: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i, b := range lines {
		if err := wb.Set(codeKey(i), b); err != nil {
			return fmt.Errorf("write address %d: %w", i, err)
		}
	}
	for key, b := range docs {
		if err := wb.Set([]byte(key), b); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush image: %w", err)
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyMeta, header)
	}); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}

	s.logger.Info("image saved",
		slog.Int("instructions", len(lines)),
		slog.Int("cells", len(cells.cells)),
		slog.Int("modules", len(names)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// =============================================================================
// Load
// =============================================================================

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(b []byte) error {
		if err := json.Unmarshal(b, v); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		return nil
	})
}

// Load replaces the state of m with the stored image.
func (s *Store) Load(ctx context.Context, m *machine.Machine) error {
	var (
		md      meta
		cellVal []machine.CodeIndex
		dir     []dirEntry
		opList  []opEntry
		records []moduleRecord
		code    instr.Code
	)

	err := s.db.View(func(txn *badger.Txn) error {
		if err := getJSON(txn, keyMeta, &md); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNoImage
			}
			return err
		}
		if md.Version != formatVersion {
			return fmt.Errorf("format version %d: %w", md.Version, ErrCorrupt)
		}
		for _, doc := range []struct {
			key []byte
			v   any
		}{{keyCells, &cellVal}, {keyDir, &dir}, {keyOps, &opList}} {
			if err := getJSON(txn, doc.key, doc.v); err != nil {
				return fmt.Errorf("%s: %w: %w", doc.key, ErrCorrupt, err)
			}
		}
		for _, name := range md.Modules {
			var rec moduleRecord
			if err := getJSON(txn, moduleKey(name), &rec); err != nil {
				return fmt.Errorf("module %s: %w: %w", name, ErrCorrupt, err)
			}
			records = append(records, rec)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixCode
		it := txn.NewIterator(opts)
		defer it.Close()
		code = make(instr.Code, 0, md.CodeSize)
		for it.Seek(prefixCode); it.ValidForPrefix(prefixCode); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(b []byte) error {
				l, err := instr.DecodeLine(b)
				if err != nil {
					return err
				}
				code = append(code, l)
				return nil
			})
			if err != nil {
				return fmt.Errorf("address %d: %w", len(code), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(code) != md.CodeSize {
		return fmt.Errorf("%d of %d instructions: %w", len(code), md.CodeSize, ErrCorrupt)
	}

	cells := make([]*machine.CodeIndex, len(cellVal))
	for i := range cellVal {
		c := cellVal[i]
		if c.Addr < 0 || c.Addr > len(code) {
			return fmt.Errorf("cell %d address %d: %w", i, c.Addr, ErrCorrupt)
		}
		cells[i] = &c
	}
	resolve := func(entries []dirEntry) (machine.CodeDir, error) {
		out := make(machine.CodeDir, len(entries))
		for _, e := range entries {
			if e.Cell < 0 || e.Cell >= len(cells) {
				return nil, fmt.Errorf("%s/%d cell %d: %w", e.Name, e.Arity, e.Cell, ErrCorrupt)
			}
			out[term.PredicateKey{Name: term.Atom(e.Name), Arity: e.Arity}] = cells[e.Cell]
		}
		return out, nil
	}

	codeDir, err := resolve(dir)
	if err != nil {
		return err
	}
	modules := make([]*machine.Module, 0, len(records))
	for _, rec := range records {
		modDir, err := resolve(rec.Code)
		if err != nil {
			return fmt.Errorf("module %s: %w", rec.Name, err)
		}
		modules = append(modules, &machine.Module{
			Name:      rec.Name,
			Exports:   rec.Exports,
			OpExports: rec.OpExports,
			CodeDir:   modDir,
			OpDir:     opDir(rec.Ops),
		})
	}

	m.Restore(code, codeDir, opDir(opList), modules)
	s.logger.Info("image loaded",
		slog.Int("instructions", len(code)),
		slog.Int("modules", len(modules)),
		slog.Time("saved_at", md.SavedAt))
	return nil
}
