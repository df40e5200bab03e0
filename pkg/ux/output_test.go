// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconArrow} {
		assert.Contains(t, icon.Render(), string(icon))
	}
}

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)
	assert.True(t, p.Plain())

	p.Title("wamlink")
	p.Muted("hint")
	p.Success("consulted")
	p.Warning("discontiguous")
	p.Error("syntax error")
	p.Info("code size 12")
	p.FileStatus("app.pl", IconSuccess, "12 instructions")
	p.Summary(1, 2, 3)
	p.Box("listing", "line1\nline2\n")

	want := strings.Join([]string{
		"OK: consulted",
		"WARN: discontiguous",
		"ERROR: syntax error",
		"code size 12",
		"OK\tapp.pl\t12 instructions",
		"SUMMARY: passed=1 failed=2 total=3",
		"listing:",
		"line1",
		"line2",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestPrinter_Styled(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	assert.False(t, p.Plain())
	assert.Same(t, &buf, p.Writer())

	p.Title("wamlink")
	p.Success("consulted")
	p.FileStatus("app.pl", IconError, "")
	p.FileStatus("lib.pl", IconSuccess, "3 instructions")
	p.Summary(1, 1, 2)

	out := buf.String()
	assert.Contains(t, out, "wamlink")
	assert.Contains(t, out, string(IconSuccess))
	assert.Contains(t, out, "consulted")
	assert.Contains(t, out, string(IconError))
	assert.Contains(t, out, "(3 instructions)")
	assert.Contains(t, out, "passed")
	assert.NotContains(t, out, "SUMMARY")
}
