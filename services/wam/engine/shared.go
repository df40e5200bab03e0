// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import "sync"

// Shared guards one Engine for callers on several goroutines, such as
// HTTP handlers and a file watcher.
type Shared struct {
	mu sync.Mutex
	e  *Engine
}

// NewShared wraps e. e must not be used directly afterwards.
func NewShared(e *Engine) *Shared {
	return &Shared{e: e}
}

// Do runs fn with exclusive access to the engine.
func (s *Shared) Do(fn func(*Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.e)
}
