// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-consults listings when they change on disk.
//
// # Description
//
// The parent directory of every listing is watched, since editors often
// replace a file by renaming a new one over it. Events for other files in
// those directories are ignored. Changes are collected until the debounce
// window passes without new events; each changed listing is then
// consulted once, in the order it was first seen.
//
// # Thread Safety
//
// Run calls the consult function from a single goroutine. The function
// must serialize its own access to shared state.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConsultFunc loads one listing.
type ConsultFunc func(ctx context.Context, path string) error

// Result reports the outcome of one re-consult.
type Result struct {
	Path string
	Err  error
	Time time.Time
}

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period before changes are consulted.
	// Default: 200ms
	Debounce time.Duration

	// Logger receives watch events. Default: slog.Default()
	Logger *slog.Logger

	// OnResult, when set, is called after every re-consult.
	OnResult func(Result)
}

// Watcher watches a fixed set of listings.
type Watcher struct {
	files    map[string]bool
	dirs     []string
	watcher  *fsnotify.Watcher
	consult  ConsultFunc
	debounce time.Duration
	logger   *slog.Logger
	onResult func(Result)

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher for paths. Call Run to start watching.
func New(paths []string, consult ConsultFunc, opts Options) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("no listings to watch")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	files := make(map[string]bool, len(paths))
	seenDir := make(map[string]bool)
	var dirs []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		files[abs] = true
		if dir := filepath.Dir(abs); !seenDir[dir] {
			seenDir[dir] = true
			dirs = append(dirs, dir)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		files:    files,
		dirs:     dirs,
		watcher:  fw,
		consult:  consult,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		onResult: opts.OnResult,
		done:     make(chan struct{}),
	}, nil
}

// Stop ends Run and releases the underlying watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

// Run watches until ctx is cancelled or Stop is called. Pending changes
// are dropped on exit.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Stop()
	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			if w.stopped() {
				return nil
			}
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.logger.Info("watching listings", slog.Int("files", len(w.files)), slog.Int("dirs", len(w.dirs)))

	var (
		batch  []string
		timer  *time.Timer
		timerC <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			batch = append(batch, filepath.Clean(event.Name))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))

		case <-timerC:
			timer, timerC = nil, nil
			w.flush(ctx, dedupe(batch))
			batch = batch[:0]
		}
	}
}

func (w *Watcher) stopped() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !w.files[filepath.Clean(event.Name)] {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *Watcher) flush(ctx context.Context, paths []string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			w.logger.Debug("listing gone, skipping", slog.String("path", p))
			continue
		}
		err := w.consult(ctx, p)
		if err != nil {
			w.logger.Warn("re-consult failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			w.logger.Info("re-consulted listing", slog.String("path", p))
		}
		if w.onResult != nil {
			w.onResult(Result{Path: p, Err: err, Time: time.Now()})
		}
	}
}

// dedupe keeps the first occurrence of each path.
func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
