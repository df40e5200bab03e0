// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders CLI output for wamlink.
//
// A Printer writes either styled text (colors and status icons via
// lipgloss) or plain tab-separated lines for scripts. Commands pick the
// mode once, usually from whether stdout is a terminal.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Brand colors.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Prompt  lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Prompt:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon is a status marker.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
)

// Render returns the icon with its status color.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return Styles.Muted.Render(string(i))
	}
}

// plainTag is the word written instead of an icon in plain mode.
func (i Icon) plainTag() string {
	switch i {
	case IconSuccess:
		return "OK"
	case IconWarning:
		return "WARN"
	case IconError:
		return "ERROR"
	default:
		return "-"
	}
}

// Printer writes CLI output in styled or plain form.
type Printer struct {
	w     io.Writer
	plain bool
}

// NewPrinter creates a Printer. Plain output has no colors, icons or
// boxes and is stable for scripts.
func NewPrinter(w io.Writer, plain bool) *Printer {
	return &Printer{w: w, plain: plain}
}

// Plain reports whether p writes plain output.
func (p *Printer) Plain() bool { return p.plain }

// Writer returns the destination.
func (p *Printer) Writer() io.Writer { return p.w }

// Title prints a heading. Plain output omits it.
func (p *Printer) Title(text string) {
	if p.plain {
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Success prints a success line.
func (p *Printer) Success(text string) { p.status(IconSuccess, Styles.Success, text) }

// Warning prints a warning line.
func (p *Printer) Warning(text string) { p.status(IconWarning, Styles.Warning, text) }

// Error prints an error line.
func (p *Printer) Error(text string) { p.status(IconError, Styles.Error, text) }

func (p *Printer) status(icon Icon, style lipgloss.Style, text string) {
	if p.plain {
		fmt.Fprintf(p.w, "%s: %s\n", icon.plainTag(), text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", icon.Render(), style.Render(text))
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	if p.plain {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints secondary text. Plain output omits it.
func (p *Printer) Muted(text string) {
	if p.plain {
		return
	}
	fmt.Fprintln(p.w, Styles.Muted.Render(text))
}

// Box prints content under a title in a rounded box.
func (p *Printer) Box(title, content string) {
	if p.plain {
		fmt.Fprintf(p.w, "%s:\n%s\n", title, strings.TrimRight(content, "\n"))
		return
	}
	fmt.Fprintln(p.w, Styles.Box.Render(Styles.Title.Render(title)+"\n"+strings.TrimRight(content, "\n")))
}

// FileStatus prints one listing with its outcome and an optional detail.
func (p *Printer) FileStatus(path string, status Icon, detail string) {
	if p.plain {
		fmt.Fprintf(p.w, "%s\t%s\t%s\n", status.plainTag(), path, detail)
		return
	}
	if detail == "" {
		fmt.Fprintf(p.w, "%s %s\n", status.Render(), path)
		return
	}
	fmt.Fprintf(p.w, "%s %s %s\n", status.Render(), path, Styles.Muted.Render("("+detail+")"))
}

// Summary prints passed/failed counts.
func (p *Printer) Summary(passed, failed, total int) {
	if p.plain {
		fmt.Fprintf(p.w, "SUMMARY: passed=%d failed=%d total=%d\n", passed, failed, total)
		return
	}
	fmt.Fprintf(p.w, "\n%s %s  %s %s  %s %s\n",
		Styles.Success.Render(fmt.Sprintf("%d", passed)), Styles.Muted.Render("passed"),
		Styles.Error.Render(fmt.Sprintf("%d", failed)), Styles.Muted.Render("failed"),
		Styles.Bold.Render(fmt.Sprintf("%d", total)), Styles.Muted.Render("total"),
	)
}
