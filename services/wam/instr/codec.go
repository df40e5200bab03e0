// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package instr

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownLine is returned when decoding an envelope with an unknown kind.
var ErrUnknownLine = errors.New("unknown instruction line kind")

// Line kind tags used in the serialized form.
const (
	kindArithmetic    = "arith"
	kindFact          = "fact"
	kindCut           = "cut"
	kindChoice        = "choice"
	kindIndexedChoice = "ichoice"
	kindIndexing      = "index"
	kindControl       = "ctl"
	kindQuery         = "query"
)

type envelope struct {
	Kind string          `json:"k"`
	Data json.RawMessage `json:"v"`
}

// EncodeLine serializes one line with its kind tag.
func EncodeLine(l Line) ([]byte, error) {
	var kind string
	switch l.(type) {
	case Arithmetic:
		kind = kindArithmetic
	case Fact:
		kind = kindFact
	case Cut:
		kind = kindCut
	case Choice:
		kind = kindChoice
	case IndexedChoice:
		kind = kindIndexedChoice
	case Indexing:
		kind = kindIndexing
	case Control:
		kind = kindControl
	case Query:
		kind = kindQuery
	default:
		return nil, fmt.Errorf("%T: %w", l, ErrUnknownLine)
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode %s line: %w", kind, err)
	}
	return json.Marshal(envelope{Kind: kind, Data: data})
}

// DecodeLine is the inverse of EncodeLine.
func DecodeLine(b []byte) (Line, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode line envelope: %w", err)
	}
	switch env.Kind {
	case kindArithmetic:
		return decodeAs[Arithmetic](env)
	case kindFact:
		return decodeAs[Fact](env)
	case kindCut:
		return decodeAs[Cut](env)
	case kindChoice:
		return decodeAs[Choice](env)
	case kindIndexedChoice:
		return decodeAs[IndexedChoice](env)
	case kindIndexing:
		return decodeAs[Indexing](env)
	case kindControl:
		return decodeAs[Control](env)
	case kindQuery:
		return decodeAs[Query](env)
	default:
		return nil, fmt.Errorf("%q: %w", env.Kind, ErrUnknownLine)
	}
}

func decodeAs[T Line](env envelope) (Line, error) {
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return nil, fmt.Errorf("decode %s line: %w", env.Kind, err)
	}
	return v, nil
}
