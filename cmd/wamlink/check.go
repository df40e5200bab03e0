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
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/wamlink/pkg/ux"
	"github.com/AleutianAI/wamlink/services/wam/config"
)

var checkJobs int // Parallel listings

// checkCmd compiles each listing into its own machine and reports which
// ones fail.
//
// # Description
//
// Every listing is checked in isolation, so `check` finds syntax errors,
// bad directives and generator failures but not missing imports between
// listings. Use `consult` for a set of listings that depend on each other.
//
// # Examples
//
//	wamlink check lib/*.pl
//	wamlink check -j 1 app.pl
var checkCmd = &cobra.Command{
	Use:   "check [file...]",
	Short: "Compile each listing independently and report failures",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkFiles(cmd.Context(), cfg, logger.Slog(), args, checkJobs, printer())
	},
}

func init() {
	checkCmd.Flags().IntVarP(&checkJobs, "jobs", "j", runtime.NumCPU(), "Listings checked in parallel")
}

// checkResult is the outcome for one listing.
type checkResult struct {
	path string
	size int
	err  error
}

// checkFiles boots one engine per listing and consults them in parallel.
// Results are printed in argument order.
func checkFiles(ctx context.Context, c config.Config, log *slog.Logger, paths []string, jobs int, out *ux.Printer) error {
	results := make([]checkResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, path := range paths {
		g.Go(func() error {
			results[i] = checkOne(gctx, c, log, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			out.FileStatus(r.path, ux.IconError, r.err.Error())
			continue
		}
		out.FileStatus(r.path, ux.IconSuccess, fmt.Sprintf("%d instructions", r.size))
	}
	out.Summary(len(paths)-failed, failed, len(paths))

	if failed > 0 {
		return fmt.Errorf("%d of %d listings failed", failed, len(paths))
	}
	return nil
}

func checkOne(ctx context.Context, c config.Config, log *slog.Logger, path string) checkResult {
	e, err := bootEngine(ctx, c, log)
	if err != nil {
		return checkResult{path: path, err: err}
	}
	before := e.Machine().CodeSize()
	if _, err := e.ConsultFile(ctx, path); err != nil {
		return checkResult{path: path, err: err}
	}
	return checkResult{path: path, size: e.Machine().CodeSize() - before}
}
