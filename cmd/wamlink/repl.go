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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/wamlink/pkg/ux"
	"github.com/AleutianAI/wamlink/services/wam/engine"
	"github.com/AleutianAI/wamlink/services/wam/reader"
)

const (
	promptMain  = "?- "
	promptCont  = "|  "
	historyFile = ".wamlink_history"
)

// replCmd reads clauses, directives and queries interactively.
//
// # Examples
//
//	wamlink repl
//	wamlink repl lists.pl app.pl
//	echo '?- append(X, Y, [1]).' | wamlink repl
var replCmd = &cobra.Command{
	Use:   "repl [file...]",
	Short: "Evaluate clauses and queries interactively",
	Long: `Starts a read-eval loop over one machine. Input is read until it
forms a complete term; a clause or directive is installed and a query is
compiled and reported with its variable bindings.

Commands:
  :listing      print the code segment
  :predicates   list the global predicate directory
  :modules      list loaded modules
  :quit         exit`,
	RunE: runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := printer()

	e, err := bootEngine(ctx, cfg, logger.Slog())
	if err != nil {
		return err
	}
	if err := consultAll(ctx, e, args); err != nil {
		return err
	}

	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return repl(ctx, e, newScanPrompter(os.Stdin), out)
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	out.Title("wamlink " + versionString())
	out.Muted("Type :quit to exit.")
	return repl(ctx, e, &linerPrompter{ln: ln}, out)
}

// prompter yields one input line per call and io.EOF at end of input.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(entry string)
}

type linerPrompter struct {
	ln *liner.State
}

func (p *linerPrompter) Prompt(prompt string) (string, error) {
	line, err := p.ln.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	return line, err
}

func (p *linerPrompter) AppendHistory(entry string) { p.ln.AppendHistory(entry) }

// scanPrompter reads piped input without echoing prompts.
type scanPrompter struct {
	sc *bufio.Scanner
}

func newScanPrompter(r io.Reader) *scanPrompter {
	return &scanPrompter{sc: bufio.NewScanner(r)}
}

func (p *scanPrompter) Prompt(string) (string, error) {
	if p.sc.Scan() {
		return p.sc.Text(), nil
	}
	if err := p.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (p *scanPrompter) AppendHistory(string) {}

// repl runs the read-eval loop until end of input or :quit. Evaluation
// errors are reported and the loop continues.
func repl(ctx context.Context, e *engine.Engine, in prompter, out *ux.Printer) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		text, ok, err := readTerm(e, in)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, ":") {
			if replCommand(e, trimmed, out) {
				return nil
			}
			continue
		}

		sess, err := e.Eval(ctx, text)
		if err != nil {
			out.Error(err.Error())
			continue
		}
		out.Info(describeSession(sess))
		in.AppendHistory(strings.ReplaceAll(trimmed, "\n", " "))
	}
}

// readTerm accumulates lines until they parse or fail with something
// other than incomplete input. ok is false at end of input.
func readTerm(e *engine.Engine, in prompter) (text string, ok bool, err error) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := in.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			if b.Len() > 0 {
				return b.String(), true, nil
			}
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}

		if b.Len() == 0 {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if strings.HasPrefix(strings.TrimSpace(line), ":") {
				return line, true, nil
			}
		} else {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if _, err := e.Parse(src); err != nil && reader.IsIncomplete(err) {
			continue
		}
		return src, true, nil
	}
}

// replCommand handles a colon command and reports whether to exit.
func replCommand(e *engine.Engine, command string, out *ux.Printer) bool {
	switch strings.ToLower(command) {
	case ":quit", ":q", ":halt":
		return true
	case ":listing":
		var buf bytes.Buffer
		if err := e.Dump(&buf); err != nil {
			out.Error(err.Error())
			return false
		}
		out.Box("code", buf.String())
	case ":predicates":
		for _, p := range e.Predicates() {
			out.Info(fmt.Sprintf("%-24s %6d  %s", p.Key, p.Addr, p.Module))
		}
	case ":modules":
		for _, m := range e.Modules() {
			out.Info(fmt.Sprintf("%s  %s", m.Name, strings.Join(m.Exports, ", ")))
		}
	default:
		out.Warning("unknown command " + command + ", type :quit to exit")
	}
	return false
}
