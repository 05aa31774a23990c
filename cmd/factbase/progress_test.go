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
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProgressConfig(t *testing.T) {
	tests := []struct {
		name    string
		globals GlobalFlags
		noColor bool
	}{
		{"defaults", GlobalFlags{}, false},
		{"quiet", GlobalFlags{Quiet: true}, false},
		{"json implies quiet", GlobalFlags{JSON: true, Quiet: true}, false},
		{"json alone", GlobalFlags{JSON: true}, false},
		{"no color", GlobalFlags{NoColor: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewProgressConfig(tt.globals)
			// stderr is not a TTY under go test
			assert.False(t, cfg.Enabled)
			assert.Equal(t, tt.noColor, cfg.NoColor)
			assert.Equal(t, os.Stderr, cfg.Writer)
		})
	}
}

func TestNewProgressBar(t *testing.T) {
	assert.Nil(t, NewProgressBar(ProgressConfig{}, 10, "units"))

	var buf bytes.Buffer
	bar := NewProgressBar(ProgressConfig{Enabled: true, Writer: &buf, NoColor: true}, 10, "units")
	require.NotNil(t, bar)
	require.NoError(t, bar.Set(5))
	require.NoError(t, bar.Finish())
}

func TestUnitProgress(t *testing.T) {
	var nilProgress *unitProgress
	nilProgress.Step("a")
	nilProgress.Finish()

	disabled := newUnitProgress(ProgressConfig{}, 3, "import")
	disabled.Step("a")
	disabled.Finish()

	var buf bytes.Buffer
	p := newUnitProgress(ProgressConfig{Enabled: true, Writer: &buf, NoColor: true}, 2, "import")
	require.NotNil(t, p.bar)
	p.Step("batch/app")
	p.Step("batch/lib")
	assert.InDelta(t, 1.0, p.bar.State().CurrentPercent, 0.001)
	p.Finish()
}
