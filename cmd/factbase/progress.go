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

package main

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// ProgressConfig determines if and how progress bars are drawn.
//
// Bars go to stderr so that stdout stays clean for results and --json
// documents.
type ProgressConfig struct {
	// Enabled reports whether bars are drawn at all.
	//
	// Progress is disabled when:
	//   - --json is set, since stdout carries a machine-readable document
	//   - --quiet is set
	//   - stderr is not a terminal, e.g. under CI or when redirected
	Enabled bool

	// Writer receives the bar, normally os.Stderr.
	Writer io.Writer

	// NoColor disables ANSI color codes inside the bar.
	NoColor bool
}

// NewProgressConfig derives the progress settings from the global flags.
//
// Parameters:
//   - globals: the parsed global flags (--json, --quiet, --no-color)
//
// Returns a ProgressConfig writing to stderr, enabled only on an
// interactive terminal outside --json and --quiet.
func NewProgressConfig(globals GlobalFlags) ProgressConfig {
	return ProgressConfig{
		Enabled: !globals.JSON && !globals.Quiet && isatty.IsTerminal(os.Stderr.Fd()),
		Writer:  os.Stderr,
		NoColor: globals.NoColor,
	}
}

var barTheme = progressbar.Theme{
	Saucer:        "=",
	SaucerHead:    ">",
	SaucerPadding: " ",
	BarStart:      "[",
	BarEnd:        "]",
}

// NewProgressBar creates a bar over total units, or nil when progress is
// disabled. Callers that may receive nil should wrap the bar in
// unitProgress rather than check.
//
// Parameters:
//   - cfg: progress settings from NewProgressConfig
//   - total: number of units the command will process
//   - description: text shown before the bar, replaced per unit by Step
//
// The bar shows the unit count and an ETA, redraws at most every 100ms and
// clears itself when finished.
//
// Example output:
//
//	import entities [=========>          ] 45/100 (12s)
func NewProgressBar(cfg ProgressConfig, total int64, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}

	opts := []progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(barTheme),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(100 * time.Millisecond),
	}
	if !cfg.NoColor {
		opts = append(opts, progressbar.OptionEnableColorCodes(true))
	}
	return progressbar.NewOptions64(total, opts...)
}

// unitProgress advances a bar once per unit. The zero value and a nil bar
// are no-ops, so callers never check whether progress is enabled.
//
// Example:
//
//	p := newUnitProgress(NewProgressConfig(globals), len(units), "extract")
//	defer p.Finish()
//	for _, u := range units {
//	    extract(u)
//	    p.Step(u.Key())
//	}
type unitProgress struct {
	bar *progressbar.ProgressBar
}

func newUnitProgress(cfg ProgressConfig, total int, description string) *unitProgress {
	return &unitProgress{bar: NewProgressBar(cfg, int64(total), description)}
}

// Step records one finished unit and shows its key as the description.
func (p *unitProgress) Step(key string) {
	if p == nil || p.bar == nil {
		return
	}
	p.bar.Describe(key)
	_ = p.bar.Add(1)
}

// Finish completes the bar and clears it from the terminal.
func (p *unitProgress) Finish() {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}
