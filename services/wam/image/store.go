// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package image saves and restores a machine in BadgerDB.
//
// # Layout
//
//	meta          JSON header: format version, code size, save time
//	code/NNNNNNNN one encoded instruction line per address
//	cells         JSON array of every distinct CodeIndex cell
//	dir           global code directory, entries point into cells
//	ops           global operator directory
//	mod/<name>    one JSON record per module
//
// Cells are stored once and referenced by position so directories that
// shared a cell before saving share it again after loading.
package image

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

var (
	// ErrNoImage is returned by Load when the store holds no image.
	ErrNoImage = errors.New("no saved image")

	// ErrCorrupt is returned when stored records disagree with each other.
	ErrCorrupt = errors.New("corrupt image")
)

// Config configures the backing store.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the store in memory. Used by tests.
	InMemory bool

	// SyncWrites makes every write durable before Save returns.
	SyncWrites bool

	// Logger receives BadgerDB's own log output. Nil silences it.
	Logger *slog.Logger
}

// badgerLogger adapts slog to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a machine image store.
//
// Thread Safety: the underlying database is safe for concurrent use, but
// Save and Load read or replace a whole machine and must not race with
// other users of that machine.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens the store described by cfg, creating the directory if needed.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("image path is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create image directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = slog.Default()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open image store: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// OpenInMemory opens a throwaway store.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Exists reports whether an image has been saved.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(keyMeta)
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	}
	return false, err
}
