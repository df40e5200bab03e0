// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codegen

import (
	"fmt"

	"github.com/AleutianAI/wamlink/services/wam/instr"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

const (
	bucketConst = iota
	bucketList
	bucketStruct
	numBuckets
)

// CompilePredicate compiles the clauses of one predicate in order. When
// nonCounted is set every choice instruction is tagged as excluded from
// backtracking statistics.
func CompilePredicate(p term.Predicate, nonCounted bool) (instr.Code, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("predicate without clauses: %w", ErrUnsupported)
	}

	bodies := make([]instr.Code, len(p))
	for i, cl := range p {
		code, err := compileClause(cl)
		if err != nil {
			key, _ := term.KeyOf(p)
			return nil, fmt.Errorf("clause %d of %s: %w", i+1, key, err)
		}
		bodies[i] = code
	}
	if len(p) == 1 {
		return bodies[0], nil
	}

	var code instr.Code
	indexed := indexable(p)
	if indexed {
		code = append(code, instr.Indexing{})
	}

	starts := make([]int, len(p))
	for i, body := range bodies {
		ch := instr.Choice{Kind: instr.RetryMeElse, NonCounted: nonCounted}
		switch i {
		case 0:
			ch.Kind = instr.TryMeElse
		case len(bodies) - 1:
			ch.Kind = instr.TrustMe
		}
		if ch.Kind != instr.TrustMe {
			ch.Offset = 1 + len(body)
		}
		code = append(code, ch)
		starts[i] = len(code)
		code = append(code, body...)
	}

	if indexed {
		var offsets [numBuckets]int
		for k, bucket := range firstArgBuckets(p) {
			switch len(bucket) {
			case 0:
			case 1:
				offsets[k] = starts[bucket[0]]
			default:
				offsets[k] = len(code)
				for j, ci := range bucket {
					kind := instr.Retry
					switch j {
					case 0:
						kind = instr.Try
					case len(bucket) - 1:
						kind = instr.Trust
					}
					code = append(code, instr.IndexedChoice{Kind: kind, Offset: starts[ci] - len(code), NonCounted: nonCounted})
				}
			}
		}
		code[0] = instr.Indexing{Var: 1, Const: offsets[bucketConst], List: offsets[bucketList], Struct: offsets[bucketStruct]}
	}
	return code, nil
}

func firstArg(cl term.Clause) (term.Term, bool) {
	args := term.Args(cl.HeadTerm())
	if len(args) == 0 {
		return nil, false
	}
	return args[0], true
}

func indexable(p term.Predicate) bool {
	for _, cl := range p {
		a, ok := firstArg(cl)
		if !ok {
			return false
		}
		if _, isVar := a.(term.Var); !isVar {
			return true
		}
	}
	return false
}

// firstArgBuckets lists clause indexes per first-argument category. A
// clause with a variable first argument belongs to every bucket.
func firstArgBuckets(p term.Predicate) [numBuckets][]int {
	var out [numBuckets][]int
	for i, cl := range p {
		a, _ := firstArg(cl)
		switch a := a.(type) {
		case term.Var:
			for k := range out {
				out[k] = append(out[k], i)
			}
		case *term.Compound:
			if isListCell(a) {
				out[bucketList] = append(out[bucketList], i)
			} else {
				out[bucketStruct] = append(out[bucketStruct], i)
			}
		default:
			out[bucketConst] = append(out[bucketConst], i)
		}
	}
	return out
}
