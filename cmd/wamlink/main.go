// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command wamlink compiles logic-program listings into abstract-machine
// code and serves the resulting machine.
//
// Usage:
//
//	wamlink consult app.pl --dump
//	wamlink check lib/*.pl
//	wamlink repl app.pl
//	wamlink serve app.pl --watch
//	wamlink image save app.pl
//
// Configuration is read from --config (default wamlink.yaml), then
// WAMLINK_* environment variables, then flags.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
