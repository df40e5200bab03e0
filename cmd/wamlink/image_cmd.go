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
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/wamlink/services/wam/engine"
)

var imageDump bool // Print the restored code segment

// imageCmd groups the machine image subcommands.
var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Save and inspect machine images",
	Long: `A machine image is the code segment plus the predicate, operator and
module directories, stored in a BadgerDB directory (image.path in the
config or --image).`,
}

var imageSaveCmd = &cobra.Command{
	Use:   "save [file...]",
	Short: "Consult listings and save the resulting machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := printer()
		e, err := bootEngine(ctx, cfg, logger.Slog())
		if err != nil {
			return err
		}
		if err := consultAll(ctx, e, args); err != nil {
			out.Error(err.Error())
			return err
		}
		store, err := openImage(cfg, logger.Slog())
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Save(ctx, e.Machine()); err != nil {
			return err
		}
		out.Success(fmt.Sprintf("saved %d instructions to %s", e.Machine().CodeSize(), cfg.Image.Path))
		return nil
	},
}

var imageInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe the saved machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := printer()
		store, err := openImage(cfg, logger.Slog())
		if err != nil {
			return err
		}
		defer store.Close()

		flags, err := cfg.ReaderFlags()
		if err != nil {
			return err
		}
		e, err := engine.Restore(ctx, store.Load, engine.WithLogger(logger.Slog()), engine.WithFlags(flags))
		if err != nil {
			return err
		}

		out.Title("image " + cfg.Image.Path)
		out.Info(fmt.Sprintf("code size   %d", e.Machine().CodeSize()))
		out.Info(fmt.Sprintf("predicates  %d", len(e.Predicates())))
		for _, m := range e.Modules() {
			out.Info(fmt.Sprintf("module      %s (%d predicates, %d exports)", m.Name, m.Size, len(m.Exports)))
		}
		if imageDump {
			var buf bytes.Buffer
			if err := e.Dump(&buf); err != nil {
				return err
			}
			out.Box("code", buf.String())
		}
		return nil
	},
}

func init() {
	imageInfoCmd.Flags().BoolVar(&imageDump, "dump", false, "Print the code segment")
	imageCmd.AddCommand(imageSaveCmd)
	imageCmd.AddCommand(imageInfoCmd)
}
