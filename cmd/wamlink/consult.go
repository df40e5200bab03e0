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
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/wamlink/pkg/ux"
	"github.com/AleutianAI/wamlink/services/wam/engine"
	"github.com/AleutianAI/wamlink/services/wam/machine"
)

var (
	consultDump  bool     // Print the code segment after consulting
	consultSave  bool     // Save the machine image after consulting
	consultEvals []string // Top-level text evaluated after consulting
)

// consultCmd compiles listings into one machine.
//
// # Examples
//
//	wamlink consult lists.pl app.pl
//	wamlink consult app.pl --dump
//	wamlink consult app.pl -e '?- main(X).'
//	wamlink consult app.pl --save --image ./app.img
var consultCmd = &cobra.Command{
	Use:   "consult [file...]",
	Short: "Compile listings into one machine",
	Long: `Consults each listing in order into a single machine preloaded with
the builtins module. A listing that starts with a module header becomes a
module; later listings import it with use_module/1.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConsult,
}

func init() {
	consultCmd.Flags().BoolVar(&consultDump, "dump", false, "Print the code segment")
	consultCmd.Flags().BoolVar(&consultSave, "save", false, "Save the machine image")
	consultCmd.Flags().StringArrayVarP(&consultEvals, "eval", "e", nil,
		"Clause, directive or query to evaluate after consulting (repeatable)")
}

func runConsult(cmd *cobra.Command, args []string) error {
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
	out.Success(fmt.Sprintf("consulted %d listing(s), code size %d", len(args), e.Machine().CodeSize()))

	if err := evalAll(ctx, e, consultEvals, out); err != nil {
		return err
	}

	if consultDump {
		var buf bytes.Buffer
		if err := e.Dump(&buf); err != nil {
			return err
		}
		out.Box("code", buf.String())
	}

	if consultSave {
		store, err := openImage(cfg, logger.Slog())
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Save(ctx, e.Machine()); err != nil {
			return err
		}
		out.Success("saved image to " + cfg.Image.Path)
	}
	return nil
}

// evalAll evaluates each text in order and reports the sessions.
func evalAll(ctx context.Context, e *engine.Engine, texts []string, out *ux.Printer) error {
	for _, text := range texts {
		sess, err := e.Eval(ctx, text)
		if err != nil {
			out.Error(err.Error())
			return err
		}
		out.Info(describeSession(sess))
	}
	return nil
}

// describeSession renders the outcome of one top-level step.
func describeSession(sess machine.Session) string {
	if sess.Kind != machine.QueryReady || sess.Query == nil {
		return "yes."
	}
	q := sess.Query
	var b strings.Builder
	fmt.Fprintf(&b, "query %s: %d instruction(s)", q.ID, len(q.Code))
	names := make([]string, 0, len(q.Bindings))
	for name := range q.Bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "\n  %s %s %s", name, ux.IconArrow, q.Bindings[name])
	}
	return b.String()
}
