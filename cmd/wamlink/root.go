// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/wamlink/pkg/logging"
	"github.com/AleutianAI/wamlink/pkg/ux"
	"github.com/AleutianAI/wamlink/services/wam/config"
	"github.com/AleutianAI/wamlink/services/wam/engine"
	"github.com/AleutianAI/wamlink/services/wam/image"
)

// =============================================================================
// GLOBAL STATE
// =============================================================================

var (
	configPath string // --config
	logLevel   string // --log-level override
	imagePath  string // --image override
	plainOut   bool   // --plain

	cfg    config.Config
	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "wamlink",
		Short: "Compile and link logic programs into abstract-machine code",
		Long: `wamlink compiles listings of facts, rules and directives into
instructions for a Warren-style abstract machine, links them into a
growing code segment and keeps the predicate, operator and module
directories that later queries resolve against.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "wamlink.yaml",
		"Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&imagePath, "image", "",
		"Machine image directory override")
	rootCmd.PersistentFlags().BoolVar(&plainOut, "plain", false,
		"Plain output without colors or icons")

	rootCmd.AddCommand(consultCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(imageCmd)
}

// setup loads configuration and builds the logger for every subcommand.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	if imagePath != "" {
		loaded.Image.Path = imagePath
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded
	logger = newLogger(cfg)
	return nil
}

func teardown(*cobra.Command, []string) error {
	if logger == nil {
		return nil
	}
	return logger.Close()
}

func newLogger(c config.Config) *logging.Logger {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  c.Log.Dir,
		Service: "wamlink",
		JSON:    c.Log.JSON,
	})
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// printer writes to stdout, plain when asked or when stdout is not a
// terminal.
func printer() *ux.Printer {
	plain := plainOut || !isatty.IsTerminal(os.Stdout.Fd())
	return ux.NewPrinter(os.Stdout, plain)
}

// bootEngine creates an engine configured from c.
func bootEngine(ctx context.Context, c config.Config, log *slog.Logger) (*engine.Engine, error) {
	flags, err := c.ReaderFlags()
	if err != nil {
		return nil, err
	}
	return engine.Boot(ctx, engine.WithLogger(log), engine.WithFlags(flags))
}

// consultAll consults paths in order, stopping at the first failure.
func consultAll(ctx context.Context, e *engine.Engine, paths []string) error {
	for _, path := range paths {
		if _, err := e.ConsultFile(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

// openImage opens the configured image store.
func openImage(c config.Config, log *slog.Logger) (*image.Store, error) {
	if c.Image.Path == "" {
		return nil, fmt.Errorf("no image path configured (set image.path or --image)")
	}
	return image.Open(image.Config{Path: c.Image.Path, SyncWrites: true, Logger: log})
}
