// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ops

// BuiltinModule is the namespace recorded on operators of the default table.
const BuiltinModule = "builtins"

var defaultTable = []Decl{
	{1200, XFX, ":-"},
	{1200, XFX, "-->"},
	{1200, FX, ":-"},
	{1200, FX, "?-"},
	{1150, FX, "dynamic"},
	{1150, FX, "discontiguous"},
	{1150, FX, "initialization"},
	{1150, FX, "multifile"},
	{1150, FX, "non_counted_backtracking"},
	{1100, XFY, ";"},
	{1100, XFY, "|"},
	{1050, XFY, "->"},
	{1050, XFY, "*->"},
	{1000, XFY, ","},
	{900, FY, `\+`},
	{700, XFX, "="},
	{700, XFX, `\=`},
	{700, XFX, "=="},
	{700, XFX, `\==`},
	{700, XFX, "@<"},
	{700, XFX, "@>"},
	{700, XFX, "@=<"},
	{700, XFX, "@>="},
	{700, XFX, "=.."},
	{700, XFX, "is"},
	{700, XFX, "=:="},
	{700, XFX, `=\=`},
	{700, XFX, "<"},
	{700, XFX, ">"},
	{700, XFX, "=<"},
	{700, XFX, ">="},
	{600, XFY, ":"},
	{500, YFX, "+"},
	{500, YFX, "-"},
	{500, YFX, `/\`},
	{500, YFX, `\/`},
	{500, YFX, "xor"},
	{400, YFX, "*"},
	{400, YFX, "/"},
	{400, YFX, "//"},
	{400, YFX, "rem"},
	{400, YFX, "mod"},
	{400, YFX, "div"},
	{400, YFX, "<<"},
	{400, YFX, ">>"},
	{200, XFX, "**"},
	{200, XFY, "^"},
	{200, FY, "-"},
	{200, FY, "+"},
	{200, FY, `\`},
}

// Default returns a fresh directory holding the standard operator table.
func Default() Dir {
	dir := make(Dir, len(defaultTable))
	for _, d := range defaultTable {
		// Comma is rejected by Submit, so the table is written directly.
		dir[d.Key()] = Def{Priority: d.Priority, Spec: d.Spec, Module: BuiltinModule}
	}
	return dir
}
