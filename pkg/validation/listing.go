// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-provided labels before they reach logs,
// metrics or storage keys.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// listingNamePattern matches listing labels such as "app.pl",
// "lib/lists.pl" or "session-42".
var listingNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.\-/]{0,127}$`)

// ValidateListingName validates a listing label. Labels are 1-128
// characters of letters, digits, underscore, dot, hyphen and slash, and
// may not contain "..".
func ValidateListingName(name string) error {
	if name == "" {
		return fmt.Errorf("listing name cannot be empty")
	}
	if !listingNamePattern.MatchString(name) {
		return fmt.Errorf("invalid listing name %q", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("invalid listing name %q: contains \"..\"", name)
	}
	return nil
}

// SanitizeListingName trims surrounding space and validates the result.
// An empty name is returned as-is, since labels are optional.
func SanitizeListingName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	if err := ValidateListingName(name); err != nil {
		return "", err
	}
	return name, nil
}
