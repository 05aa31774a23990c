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

// Package errors provides user-facing errors for the factbase CLI.
//
// A UserError carries three pieces of information and an exit code:
//
//	err := errors.NewStoreError(
//	    "Cannot open the fact store",
//	    "database is locked",
//	    "Wait for the running import to finish",
//	    underlyingErr,
//	)
//	errors.FatalError(err, jsonMode)
//
// Terminal output:
//
//	Error: Cannot open the fact store
//	Cause: database is locked
//	Fix:   Wait for the running import to finish
//
// With --json the same error is written to stderr as:
//
//	{"error": "...", "cause": "...", "fix": "...", "exit_code": 2}
//
// # Exit Codes
//
//   - ExitSuccess (0)
//   - ExitConfig (1): missing or invalid .factbase/config.yaml
//   - ExitStore (2): the relational store cannot be opened or written
//   - ExitRepository (3): the extracted repository is unreadable
//   - ExitInput (4): bad arguments or flags
//   - ExitLock (5): another import holds the lock
//   - ExitNotFound (6): unit or report not found
//   - ExitPartial (7): the run finished but some units failed
//   - ExitInternal (10): bugs
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for different error categories.
const (
	ExitSuccess    = 0
	ExitConfig     = 1
	ExitStore      = 2
	ExitRepository = 3
	ExitInput      = 4
	ExitLock       = 5
	ExitNotFound   = 6
	ExitPartial    = 7

	// ExitInternal signals a bug that should be reported.
	ExitInternal = 10
)

// UserError is an error with a message, a cause and a suggested fix.
type UserError struct {
	// Message describes what went wrong.
	Message string

	// Cause explains why.
	Cause string

	// Fix is an actionable suggestion.
	Fix string

	ExitCode int

	// Err is the wrapped error, if any.
	Err error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is and errors.As.
func (e *UserError) Unwrap() error {
	return e.Err
}

func newUserError(code int, msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: code, Err: err}
}

// NewConfigError reports a missing or invalid configuration.
//
// Example:
//
//	return NewConfigError(
//	    "Cannot load factbase configuration",
//	    ".factbase/config.yaml not found",
//	    "Run 'factbase init' to create one",
//	    err,
//	)
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitConfig, msg, cause, fix, err)
}

// NewStoreError reports a failure of the relational store: open,
// migration, or a write that aborted a run.
func NewStoreError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitStore, msg, cause, fix, err)
}

// NewRepositoryError reports an unreadable extracted repository.
func NewRepositoryError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitRepository, msg, cause, fix, err)
}

// NewInputError reports invalid arguments. Input errors do not wrap.
func NewInputError(msg, cause, fix string) *UserError {
	return newUserError(ExitInput, msg, cause, fix, nil)
}

// NewLockError reports that another process holds the import lock.
func NewLockError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitLock, msg, cause, fix, err)
}

// NewNotFoundError reports a missing unit or report.
func NewNotFoundError(msg, cause, fix string) *UserError {
	return newUserError(ExitNotFound, msg, cause, fix, nil)
}

// NewPartialError reports a run that completed with failed units.
func NewPartialError(msg, cause, fix string) *UserError {
	return newUserError(ExitPartial, msg, cause, fix, nil)
}

// NewInternalError reports a bug.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitInternal, msg, cause, fix, err)
}

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format renders the error for a terminal. Empty Cause and Fix lines are
// omitted. Colors are disabled by noColor or the NO_COLOR variable.
//
// The global color.NoColor is restored before returning.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}
	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}
	return out.String()
}

// ErrorJSON is the --json form of a UserError.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// FatalError prints err and exits. Errors that are not UserErrors exit with
// ExitInternal. It never returns for a non-nil err.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if ue, ok := err.(*UserError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(ue.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ue.Format(false))
		}
		os.Exit(ue.ExitCode)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitInternal)
}
