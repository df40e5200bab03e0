// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ops implements operator directories: the tables of operator
// priority and associativity that drive term reading.
//
// A directory exists at global scope on the machine and, independently, in
// every module. Submitting a declaration into a directory takes effect for
// all text read afterwards, so operator scoping inside one listing is
// incremental.
package ops

import (
	"errors"
	"fmt"
)

// Sentinel errors for operator declarations.
var (
	// ErrPriority is returned for priorities outside 0..1200.
	ErrPriority = errors.New("operator priority out of range")

	// ErrSpecifier is returned for an unknown type such as "xxf".
	ErrSpecifier = errors.New("invalid operator specifier")

	// ErrModifyComma is returned when a declaration targets ','.
	ErrModifyComma = errors.New("cannot modify operator ','")

	// ErrOpClash is returned when an atom would become both infix and postfix.
	ErrOpClash = errors.New("operator cannot be both infix and postfix")
)

// MaxPriority is the highest operator priority.
const MaxPriority = 1200

// Fixity is the syntactic position of an operator.
type Fixity int

const (
	Prefix Fixity = iota
	Infix
	Postfix
)

func (f Fixity) String() string {
	switch f {
	case Prefix:
		return "prefix"
	case Infix:
		return "infix"
	case Postfix:
		return "postfix"
	default:
		return "unknown"
	}
}

// Spec is an operator type such as xfy.
type Spec int

const (
	XFX Spec = iota
	XFY
	YFX
	FX
	FY
	XF
	YF
)

var specNames = [...]string{"xfx", "xfy", "yfx", "fx", "fy", "xf", "yf"}

func (s Spec) String() string {
	if int(s) < 0 || int(s) >= len(specNames) {
		return "unknown"
	}
	return specNames[s]
}

// ParseSpec parses a specifier atom.
func ParseSpec(s string) (Spec, error) {
	for i, n := range specNames {
		if n == s {
			return Spec(i), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrSpecifier)
}

// Fixity returns the position implied by the specifier.
func (s Spec) Fixity() Fixity {
	switch s {
	case FX, FY:
		return Prefix
	case XF, YF:
		return Postfix
	default:
		return Infix
	}
}

// Key identifies one operator entry.
type Key struct {
	Name   string
	Fixity Fixity
}

// Def is the definition stored for a Key.
type Def struct {
	Priority int
	Spec     Spec
	Module   string
}

// ArgPriorities returns the maximum priorities of the left and right
// arguments. Prefix operators use only right, postfix only left.
func (d Def) ArgPriorities() (left, right int) {
	p := d.Priority
	switch d.Spec {
	case XFX:
		return p - 1, p - 1
	case XFY:
		return p - 1, p
	case YFX:
		return p, p - 1
	case FX:
		return 0, p - 1
	case FY:
		return 0, p
	case XF:
		return p - 1, 0
	case YF:
		return p, 0
	}
	return p - 1, p - 1
}

// Dir maps operator keys to definitions.
type Dir map[Key]Def

// Lookup returns the definition of name at fixity f.
func (d Dir) Lookup(name string, f Fixity) (Def, bool) {
	def, ok := d[Key{Name: name, Fixity: f}]
	return def, ok
}

// IsOp reports whether name is an operator at any fixity.
func (d Dir) IsOp(name string) bool {
	for _, f := range []Fixity{Prefix, Infix, Postfix} {
		if _, ok := d.Lookup(name, f); ok {
			return true
		}
	}
	return false
}

// Clone returns a shallow copy of d.
func (d Dir) Clone() Dir {
	out := make(Dir, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge copies every entry of src into d, overwriting.
func (d Dir) Merge(src Dir) {
	for k, v := range src {
		d[k] = v
	}
}

// Decl is one `op(Priority, Spec, Name)` declaration.
type Decl struct {
	Priority int
	Spec     Spec
	Name     string
}

func (d Decl) String() string {
	return fmt.Sprintf("op(%d, %s, %s)", d.Priority, d.Spec, d.Name)
}

// Key returns the directory key the declaration writes.
func (d Decl) Key() Key {
	return Key{Name: d.Name, Fixity: d.Spec.Fixity()}
}

// Validate checks the declaration without touching any directory.
func (d Decl) Validate() error {
	if d.Priority < 0 || d.Priority > MaxPriority {
		return fmt.Errorf("%d: %w", d.Priority, ErrPriority)
	}
	if d.Spec < XFX || d.Spec > YF {
		return fmt.Errorf("%d: %w", d.Spec, ErrSpecifier)
	}
	if d.Name == "," {
		return ErrModifyComma
	}
	return nil
}

// Submit writes the declaration into dir on behalf of module.
//
// A priority of 0 removes the operator. An infix declaration fails when a
// postfix operator of the same name exists, and vice versa.
func (d Decl) Submit(module string, dir Dir) error {
	if err := d.Validate(); err != nil {
		return err
	}
	key := d.Key()
	if d.Priority == 0 {
		delete(dir, key)
		return nil
	}
	switch key.Fixity {
	case Infix:
		if _, ok := dir.Lookup(d.Name, Postfix); ok {
			return fmt.Errorf("%s: %w", d.Name, ErrOpClash)
		}
	case Postfix:
		if _, ok := dir.Lookup(d.Name, Infix); ok {
			return fmt.Errorf("%s: %w", d.Name, ErrOpClash)
		}
	}
	dir[key] = Def{Priority: d.Priority, Spec: d.Spec, Module: module}
	return nil
}
