// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the slog logger used across wamlink.
//
// Text goes to stderr for interactive use. When LogDir is set, the same
// records are also written as JSON to `{service}_{date}.log` in that
// directory, so long-running `wamlink serve` and watch sessions leave a
// machine-readable trail.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.wamlink/logs",
//	    Service: "wamlink",
//	})
//	defer logger.Close()
//	e, err := engine.Boot(ctx, engine.WithLogger(logger.Slog()))
//
// # Thread Safety
//
// Logger is safe for concurrent use.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level is a log severity, ordered Debug < Info < Warn < Error.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLevel accepts the names produced by String, case-insensitively.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures a Logger.
type Config struct {
	// Level is the minimum level written.
	Level Level

	// LogDir enables JSON file logging in this directory. "~" is expanded.
	LogDir string

	// Service is attached to every record and names the log file.
	// Default: "wamlink"
	Service string

	// JSON switches the console output from text to JSON.
	JSON bool

	// Quiet disables console output. File output is unaffected.
	Quiet bool

	// Console replaces stderr as the console destination.
	Console io.Writer
}

// =============================================================================
// Logger
// =============================================================================

// Logger owns the handlers and the optional log file.
type Logger struct {
	slog *slog.Logger
	file *os.File
	path string
	mu   sync.Mutex
}

// New creates a Logger. A log directory that cannot be created or opened
// is skipped rather than failing; Path reports whether a file is in use.
func New(config Config) *Logger {
	if config.Service == "" {
		config.Service = "wamlink"
	}
	console := config.Console
	if console == nil {
		console = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(console, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(console, opts))
		}
	}

	logger := &Logger{}
	if config.LogDir != "" {
		dir := expandPath(config.LogDir)
		if err := os.MkdirAll(dir, 0750); err == nil {
			name := fmt.Sprintf("%s_%s.log", config.Service, time.Now().Format("2006-01-02"))
			path := filepath.Join(dir, name)
			if file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640); err == nil {
				logger.file = file
				logger.path = path
				handlers = append(handlers, slog.NewJSONHandler(file, opts))
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}
	handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})

	logger.slog = slog.New(handler)
	return logger
}

// Slog returns the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Path returns the log file in use, or "" when file logging is off.
func (l *Logger) Path() string {
	return l.path
}

// Close syncs and closes the log file. It is safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log file: %w", err)
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// =============================================================================
// Multi-Handler
// =============================================================================

// multiHandler fans records out to several handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
