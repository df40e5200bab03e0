// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/wamlink/services/wam/engine"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, dedupe([]string{"a", "b", "a", "c", "b"}))
	assert.Empty(t, dedupe(nil))
}

func TestNew_RequiresPaths(t *testing.T) {
	_, err := New(nil, func(context.Context, string) error { return nil }, Options{})
	assert.Error(t, err)
}

func TestWatcher_ReconsultsChangedListing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.pl")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("v(1).\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e, err := engine.Boot(ctx)
	require.NoError(t, err)

	var mu sync.Mutex
	results := make(chan Result, 16)
	consult := func(ctx context.Context, p string) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := e.ConsultFile(ctx, p)
		return err
	}
	w, err := New([]string{path}, consult, Options{
		Debounce: 50 * time.Millisecond,
		OnResult: func(r Result) { results <- r },
	})
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("v(2).\n"), 0o644))

	select {
	case r := <-results:
		assert.NoError(t, r.Err)
		assert.Equal(t, "app.pl", filepath.Base(r.Path))
	case <-time.After(5 * time.Second):
		t.Fatal("listing was not re-consulted")
	}

	mu.Lock()
	_, ok := e.Machine().CodeDir().Lookup(term.PredicateKey{Name: "v", Arity: 1})
	mu.Unlock()
	assert.True(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("v(.\n"), 0o644))
	deadline := time.After(5 * time.Second)
	for failed := false; !failed; {
		select {
		case r := <-results:
			assert.True(t, strings.HasSuffix(r.Path, "app.pl"))
			failed = r.Err != nil
		case <-deadline:
			t.Fatal("broken listing was not reported")
		}
	}

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcher_StopEndsRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pl")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	w, err := New([]string{path}, func(context.Context, string) error { return errors.New("unused") }, Options{})
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(context.Background()) }()
	w.Stop()
	w.Stop()

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
