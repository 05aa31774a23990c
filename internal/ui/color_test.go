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

package ui

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func withoutColor(t *testing.T) {
	t.Helper()
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = original })
}

func TestInitColors(t *testing.T) {
	original := color.NoColor
	defer func() { color.NoColor = original }()

	InitColors(true)
	assert.True(t, color.NoColor)
	InitColors(false)
	assert.False(t, color.NoColor)
}

func TestInlineHelpers(t *testing.T) {
	withoutColor(t)

	assert.Equal(t, "Units:", Label("Units:"))
	assert.Equal(t, "/data/repo", DimText("/data/repo"))
	assert.Equal(t, "42", CountText(42))
}

func TestOutcomeText(t *testing.T) {
	withoutColor(t)

	for _, o := range []string{"imported", "reimported_after_rollback", "failed", "skipped_complete", "other"} {
		assert.Equal(t, o, OutcomeText(o))
	}
}

func TestOutcomeText_Colored(t *testing.T) {
	original := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = original }()

	assert.NotEqual(t, "failed", OutcomeText("failed"))
	assert.Equal(t, "other", OutcomeText("other"))
}

func TestStageText(t *testing.T) {
	withoutColor(t)

	assert.Equal(t, "(none)", StageText(""))
	assert.Equal(t, "END_ENTITY", StageText("END_ENTITY"))
}
