// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

// Packet is one interactively read unit with its auxiliary queue.
type Packet struct {
	Unit  term.TopLevel
	Queue []term.TopLevel
}

// IsQuery reports whether the packet carries a query.
func (p Packet) IsQuery() bool {
	_, ok := p.Unit.(term.Query)
	return ok
}

// ParsePacket reads exactly one clause, directive or query from src using
// the operator directory dir.
func ParsePacket(src []byte, dir ops.Dir, flags Flags) (Packet, error) {
	p := newParser(src, dir, flags)
	start, err := p.peek()
	if err != nil {
		return Packet{}, err
	}
	t, err := p.readTerm()
	if errors.Is(err, io.EOF) {
		return Packet{}, &SyntaxError{Line: start.line, Col: start.col, Msg: "empty input", Err: ErrIncomplete}
	}
	if err != nil {
		return Packet{}, err
	}
	if rest, err := p.peek(); err != nil {
		return Packet{}, err
	} else if rest.kind != tkEOF {
		return Packet{}, p.errAt(rest, "unexpected text after end of clause")
	}

	var aux int
	l := &lifter{next: &aux}
	switch kind, arg := classify(t); kind {
	case kindDirective:
		d, err := declaration(arg)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Unit: d}, nil
	case kindQuery:
		goals := l.goals(arg)
		return Packet{Unit: term.Query(goals), Queue: l.drain()}, nil
	default:
		cs, err := toClause(t, start)
		if err != nil {
			return Packet{}, err
		}
		cl := l.clause(cs)
		return Packet{Unit: cl, Queue: l.drain()}, nil
	}
}

// Group is a run of consecutive clauses for one predicate together with the
// auxiliary units lifted from all of them.
type Group struct {
	Pred  term.Predicate
	Queue []term.TopLevel
}

// BatchWorker reads a whole listing.
//
// Call Consume until it returns a nil declaration and a nil error, then
// read Results.
type BatchWorker struct {
	Results []Group

	p       *parser
	aux     int
	pending []clauseSrc
	logger  *slog.Logger
}

// NewBatchWorker reads r fully and prepares a worker over it.
func NewBatchWorker(r io.Reader, flags Flags, logger *slog.Logger) (*BatchWorker, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading listing: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchWorker{p: newParser(src, nil, flags), logger: logger}, nil
}

// Consume reads up to the next declaration using dir for every term read
// in this call. Clauses read on the way are grouped into Results. It
// returns (nil, nil) at the end of input.
func (w *BatchWorker) Consume(dir ops.Dir) (term.Declaration, error) {
	w.p.ops = dir
	for {
		start, err := w.p.peek()
		if err != nil {
			return nil, err
		}
		t, err := w.p.readTerm()
		if errors.Is(err, io.EOF) {
			w.flush()
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		switch kind, arg := classify(t); kind {
		case kindDirective:
			w.flush()
			return declaration(arg)
		case kindQuery:
			return nil, &SyntaxError{Line: start.line, Col: start.col, Msg: "queries are not allowed in a listing", Err: ErrInvalidDirective}
		}

		src, err := toClause(t, start)
		if err != nil {
			return nil, err
		}
		if len(w.pending) > 0 {
			prev, prevOK := w.pending[0].key()
			cur, curOK := src.key()
			if !prevOK || !curOK || prev != cur {
				w.flush()
			}
		}
		w.pending = append(w.pending, src)
	}
}

func (w *BatchWorker) flush() {
	if len(w.pending) == 0 {
		return
	}
	l := &lifter{next: &w.aux}
	pred := make(term.Predicate, 0, len(w.pending))
	for _, src := range w.pending {
		pred = append(pred, l.clause(src))
	}
	w.Results = append(w.Results, Group{Pred: pred, Queue: l.drain()})
	if key, ok := w.pending[0].key(); ok {
		w.logger.Debug("grouped clauses", slog.String("predicate", key.String()), slog.Int("clauses", len(pred)))
	}
	w.pending = nil
}
