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
	"time"

	"github.com/AleutianAI/wamlink/services/wam/machine"
	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/reader"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

// ParseCode reads one packet from src against the machine's current
// operator directory and flags.
func ParseCode(m Machine, src []byte) (reader.Packet, error) {
	return reader.ParsePacket(src, m.OpDir(), m.Flags())
}

func packetKind(unit term.TopLevel) string {
	switch unit.(type) {
	case term.Query:
		return "query"
	case term.OpDecl:
		return "op"
	case term.UseModule:
		return "use_module"
	case term.UseQualifiedModule:
		return "use_qualified_module"
	case term.Declaration:
		return "declaration"
	}
	return "clause"
}

// Packet evaluates one top-level packet against m.
//
// Queries are compiled and handed to the machine, which returns the
// session. Operator declarations go into the global operator directory.
// Module imports are delegated to the machine. Clauses are compiled with
// their queue and installed under their key. Module headers and
// non_counted_backtracking are only valid inside a listing.
func Packet(ctx context.Context, m Machine, pkt reader.Packet) (machine.Session, error) {
	kind := packetKind(pkt.Unit)
	ctx, span := startPacketSpan(ctx, kind)
	start := time.Now()
	before := m.CodeSize()

	sess, err := evalPacket(m, pkt)

	recordPacket(ctx, kind, time.Since(start), m.CodeSize()-before, err)
	endSpan(span, err)
	if err != nil {
		m.Logger().Debug("packet rejected", "kind", kind, "error", err)
	}
	return sess, err
}

func evalPacket(m Machine, pkt reader.Packet) (machine.Session, error) {
	switch u := pkt.Unit.(type) {
	case term.Query:
		code, bindings, err := Query(u, pkt.Queue)
		if err != nil {
			return machine.Session{}, err
		}
		return m.SubmitQuery(code, bindings)

	case term.OpDecl:
		if err := submitOps(u, machine.UserModule, m.OpDir()); err != nil {
			return machine.Session{}, err
		}
		return machine.Success, nil

	case term.UseModule:
		if err := m.UseModule(string(u.Module)); err != nil {
			return machine.Session{}, err
		}
		return machine.Success, nil

	case term.UseQualifiedModule:
		if err := m.UseQualifiedModule(string(u.Module), u.Exports); err != nil {
			return machine.Session{}, err
		}
		return machine.Success, nil

	case term.Declaration:
		return machine.Session{}, fmt.Errorf("%T outside a listing: %w", u, reader.ErrInvalidModuleDecl)
	}
	return installClause(m, pkt.Unit, pkt.Queue)
}

// submitOps applies every declaration of d to dir, or none of them.
func submitOps(d term.OpDecl, module string, dir ops.Dir) error {
	trial := dir.Clone()
	for _, od := range d.Decls {
		if err := od.Submit(module, trial); err != nil {
			return err
		}
	}
	for key := range dir {
		if _, ok := trial[key]; !ok {
			delete(dir, key)
		}
	}
	dir.Merge(trial)
	return nil
}

// installClause compiles a clause or predicate with its queue and
// installs it under its key.
func installClause(m Machine, unit term.TopLevel, queue []term.TopLevel) (machine.Session, error) {
	key, ok := term.KeyOf(unit)
	if !ok {
		return machine.Session{}, machine.ErrNamelessEntry
	}
	if ct := m.ClassifyClause(key.Name, key.Arity); !ct.Definable() {
		return machine.Session{}, &machine.ImpermissibleEntryError{Key: key, Reason: ct.String() + " predicate"}
	}

	code, err := Relation(unit, false)
	if err != nil {
		return machine.Session{}, err
	}
	code, err = Appendix(code, queue, false)
	if err != nil {
		return machine.Session{}, err
	}
	if len(code) == 0 {
		return machine.Session{}, &machine.ImpermissibleEntryError{Key: key, Reason: "no code generated"}
	}

	m.AddUserCode(key, code)
	return machine.Success, nil
}
