// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package machine holds the state compiled code is installed into: the
// code segment, the global code and operator directories, and the module
// registry.
//
// # Ownership
//
// A Machine is not safe for concurrent use. Callers that share one across
// goroutines serialize access themselves.
//
// # Directory cells
//
// A CodeDir maps predicate keys to *CodeIndex cells. Importing a module
// shares its cells, so redefining a predicate in that module later is seen
// by every importer. Redefinitions within the same module rewrite the
// existing cell in place.
package machine

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/wamlink/services/wam/term"
)

// Session errors.
var (
	// ErrModuleNotFound is returned when an imported module is not in the
	// registry.
	ErrModuleNotFound = errors.New("module not found")

	// ErrNamelessEntry is returned for a clause whose head has no name.
	ErrNamelessEntry = errors.New("clause head has no name")

	// ErrImpermissibleEntry is wrapped by ImpermissibleEntryError.
	ErrImpermissibleEntry = errors.New("impermissible entry")
)

// ImpermissibleEntryError reports a clause that may not be installed
// under its key.
type ImpermissibleEntryError struct {
	Key    term.PredicateKey
	Reason string
}

func (e *ImpermissibleEntryError) Error() string {
	return fmt.Sprintf("cannot define %s: %s", e.Key, e.Reason)
}

func (e *ImpermissibleEntryError) Unwrap() error {
	return ErrImpermissibleEntry
}
