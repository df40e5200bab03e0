// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateListingName(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		wantErr bool
	}{
		{"file", "app.pl", false},
		{"nested", "lib/lists.pl", false},
		{"session", "session-42", false},
		{"underscore", "_scratch", false},

		{"empty", "", true},
		{"newline injection", "app.pl\nlevel=ERROR", true},
		{"parent dir", "lib/../secret", true},
		{"leading slash", "/etc/passwd", true},
		{"space", "my listing", true},
		{"too long", string(make([]byte, 129)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateListingName(tt.label)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeListingName(t *testing.T) {
	got, err := SanitizeListingName("  app.pl ")
	require.NoError(t, err)
	assert.Equal(t, "app.pl", got)

	got, err = SanitizeListingName("   ")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = SanitizeListingName("a b")
	assert.Error(t, err)
}
