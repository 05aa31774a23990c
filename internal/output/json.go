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

// Package output writes --json results for the factbase CLI.
//
// Every command that accepts --json prints its result with JSON and
// nothing else on stdout, so the output can be piped into jq:
//
//	if err := output.JSON(summary); err != nil {
//	    errors.FatalError(err, true)
//	}
//
// Per-unit results can be streamed as JSON lines instead:
//
//	_ = output.Lines(os.Stdout, results)
//
// Errors always go to stderr:
//
//	_ = output.JSONError(err)
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// JSON writes data as indented JSON to stdout.
//
// Indentation is two spaces, the same layout the saved import reports
// use. It returns an error only when data cannot be encoded, such as a
// value holding a channel or a function.
func JSON(data any) error {
	return JSONTo(os.Stdout, data)
}

// JSONTo writes data as indented JSON to w.
//
// Tests pass a bytes.Buffer here; commands use JSON.
func JSONTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// Lines writes one compact JSON document per item, each followed by a
// newline.
//
// Use it for per-unit results so consumers can process units as they are
// read. Encoding stops at the first item that fails, and the error names
// its index:
//
//	{"kind":"library","key":"guava-33.0","outcome":"imported"}
//	{"kind":"project","key":"nightly/app","outcome":"failed"}
func Lines[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for i, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("JSON encoding item %d failed: %w", i, err)
		}
	}
	return nil
}

// ErrorJSON is the --json form of a plain error.
type ErrorJSON struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSONError writes err to stderr as {"error": "..."}.
//
// User errors with exit codes are printed by errors.FatalError instead;
// this is for errors that have no code.
func JSONError(err error) error {
	return JSONErrorTo(os.Stderr, err)
}

// JSONErrorTo writes err to w as an indented ErrorJSON object.
//
// Example output:
//
//	{
//	  "error": "open store: database is locked"
//	}
func JSONErrorTo(w io.Writer, err error) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(ErrorJSON{Error: err.Error()}); encErr != nil {
		return fmt.Errorf("JSON error encoding failed: %w", encErr)
	}
	return nil
}
