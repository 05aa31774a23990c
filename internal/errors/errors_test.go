// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want string
	}{
		{"message only", &UserError{Message: "Cannot open store"}, "Cannot open store"},
		{"with wrapped error", &UserError{Message: "Cannot open store", Err: fmt.Errorf("database is locked")}, "Cannot open store: database is locked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestUserError_Unwrap(t *testing.T) {
	sentinel := stderrors.New("closed")
	err := NewStoreError("Import aborted", "store closed", "", fmt.Errorf("insert: %w", sentinel))
	assert.ErrorIs(t, err, sentinel)

	var ue *UserError
	wrapped := fmt.Errorf("run: %w", err)
	require.ErrorAs(t, wrapped, &ue)
	assert.Equal(t, ExitStore, ue.ExitCode)
}

func TestConstructors(t *testing.T) {
	cause := fmt.Errorf("underlying")
	tests := []struct {
		name    string
		err     *UserError
		code    int
		wrapped bool
	}{
		{"config", NewConfigError("m", "c", "f", cause), ExitConfig, true},
		{"store", NewStoreError("m", "c", "f", cause), ExitStore, true},
		{"repository", NewRepositoryError("m", "c", "f", cause), ExitRepository, true},
		{"input", NewInputError("m", "c", "f"), ExitInput, false},
		{"lock", NewLockError("m", "c", "f", cause), ExitLock, true},
		{"not found", NewNotFoundError("m", "c", "f"), ExitNotFound, false},
		{"partial", NewPartialError("m", "c", "f"), ExitPartial, false},
		{"internal", NewInternalError("m", "c", "f", nil), ExitInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "m", tt.err.Message)
			assert.Equal(t, "c", tt.err.Cause)
			assert.Equal(t, "f", tt.err.Fix)
			assert.Equal(t, tt.code, tt.err.ExitCode)
			assert.Equal(t, tt.wrapped, tt.err.Err != nil)
		})
	}
}

func TestExitCodes_Unique(t *testing.T) {
	codes := []int{ExitSuccess, ExitConfig, ExitStore, ExitRepository, ExitInput, ExitLock, ExitNotFound, ExitPartial, ExitInternal}
	seen := make(map[int]bool)
	for _, c := range codes {
		assert.False(t, seen[c], "duplicate exit code %d", c)
		seen[c] = true
	}
}

func TestUserError_Format(t *testing.T) {
	tests := []struct {
		name    string
		err     *UserError
		want    []string
		notWant []string
	}{
		{
			name: "all fields",
			err:  &UserError{Message: "Import aborted", Cause: "store closed", Fix: "Rerun factbase import"},
			want: []string{"Error: Import aborted", "Cause: store closed", "Fix:   Rerun factbase import"},
		},
		{
			name:    "message only",
			err:     &UserError{Message: "Unit not found"},
			want:    []string{"Error: Unit not found"},
			notWant: []string{"Cause:", "Fix:"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Format(true)
			for _, s := range tt.want {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, got, s)
			}
			assert.False(t, strings.Contains(got, "\x1b["), "no escape codes with noColor")
		})
	}
}

func TestUserError_FormatHonorsNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	got := (&UserError{Message: "x", Cause: "y"}).Format(false)
	assert.NotContains(t, got, "\x1b[")
}

func TestUserError_ToJSON(t *testing.T) {
	j := NewLockError("Import already running", "lock held", "Wait", nil).ToJSON()
	assert.Equal(t, ErrorJSON{Error: "Import already running", Cause: "lock held", Fix: "Wait", ExitCode: ExitLock}, j)
}
