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

// Package ui prints colored status lines for the factbase CLI.
//
// Colors follow the --no-color flag and the NO_COLOR environment variable,
// and fatih/color drops them when stdout is not a TTY, so piped output is
// plain text.
//
// Color usage:
//   - Red: failed units, aborted runs
//   - Yellow: warnings, units re-imported after a rollback
//   - Green: completed commands, imported units
//   - Cyan: counts and neutral information
//   - Bold: headers and labels
//   - Dim: skipped units, paths, absent values
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Shared color instances. They read color.NoColor at print time, so
// InitColors may run after package initialization.
var (
	// Red marks failures.
	Red = color.New(color.FgRed)

	// Yellow marks warnings and rollbacks.
	Yellow = color.New(color.FgYellow)

	// Green marks success.
	Green = color.New(color.FgGreen)

	// Cyan marks counts and informational lines.
	Cyan = color.New(color.FgCyan)

	// Bold marks headers and labels.
	Bold = color.New(color.Bold)

	// Dim marks secondary detail such as paths and skips.
	Dim = color.New(color.Faint)
)

// InitColors applies the --no-color flag.
//
// Call it once from main after the global flags are parsed and before any
// command prints. NO_COLOR is honored by fatih/color on its own; the flag
// only adds an explicit way to turn colors off.
func InitColors(noColor bool) {
	color.NoColor = noColor
}

// Successf prints a green line prefixed with a check mark. The trailing
// newline is added, so format should not end in one.
//
// Example output: "✓ Reset 3 units"
func Successf(format string, args ...any) {
	_, _ = Green.Printf("✓ "+format+"\n", args...)
}

// Warningf prints a yellow line prefixed with a warning sign.
//
// Example output: "⚠ project/nightly/app: no sources found"
func Warningf(format string, args ...any) {
	_, _ = Yellow.Printf("⚠ "+format+"\n", args...)
}

// Errorf prints a red line prefixed with a cross. It does not exit; fatal
// errors go through internal/errors.FatalError.
//
// Example output: "✗ Aborted: query failed: database is locked"
func Errorf(format string, args ...any) {
	_, _ = Red.Printf("✗ "+format+"\n", args...)
}

// Infof prints a cyan line prefixed with an info sign.
//
// Example output: "ℹ 12 units already extracted"
func Infof(format string, args ...any) {
	_, _ = Cyan.Printf("ℹ "+format+"\n", args...)
}

// Header prints text in bold, underlined with '=' to the same width.
//
// Example output:
//
//	Import Summary
//	==============
func Header(text string) {
	_, _ = Bold.Println(text)
	fmt.Println(strings.Repeat("=", len(text)))
}

// Label returns text in bold for inline use.
//
// Example: fmt.Printf("%s %s\n", ui.Label("Store:"), cfg.Store.Driver)
func Label(text string) string {
	return Bold.Sprint(text)
}

// DimText returns text dimmed, for paths and other secondary detail.
//
// Example: fmt.Printf("Report saved to %s\n", ui.DimText(path))
func DimText(text string) string {
	return Dim.Sprint(text)
}

// CountText returns count in cyan, for statistics tables.
//
// Example: fmt.Printf("  Entities: %s\n", ui.CountText(n))
func CountText(count int64) string {
	return Cyan.Sprint(count)
}

// OutcomeText colors an import outcome: green for imports, yellow for
// reimports after rollback, red for failures and dim for skips. Unknown
// outcomes are returned unchanged.
//
// Example: fmt.Printf("%-40s %s\n", res.Key, ui.OutcomeText(string(res.Outcome)))
func OutcomeText(outcome string) string {
	switch {
	case outcome == "imported":
		return Green.Sprint(outcome)
	case outcome == "reimported_after_rollback":
		return Yellow.Sprint(outcome)
	case outcome == "failed":
		return Red.Sprint(outcome)
	case strings.HasPrefix(outcome, "skipped"):
		return Dim.Sprint(outcome)
	default:
		return outcome
	}
}

// StageText renders a unit stage, showing the absent stage as a dimmed
// "(none)" so status tables keep their columns.
func StageText(stage string) string {
	if stage == "" {
		return Dim.Sprint("(none)")
	}
	return stage
}
