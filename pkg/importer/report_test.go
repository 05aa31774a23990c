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

package importer

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_Order(t *testing.T) {
	assert.True(t, StageEndStructural.AtLeast(StageEndEntity))
	assert.True(t, StageEndEntity.AtLeast(StageEndEntity))
	assert.False(t, StageUnset.AtLeast(StageEndEntity))

	assert.Equal(t, "", StageUnset.Column())
	assert.Equal(t, "END_ENTITY", StageEndEntity.Column())
	assert.Equal(t, []string{"END_ENTITY", "END_STRUCTURAL"}, StagesFrom(StageUnset))
	assert.Equal(t, []string{"END_STRUCTURAL"}, StagesFrom(StageEndStructural))
}

func TestParseStage(t *testing.T) {
	tests := []struct {
		in      string
		want    Stage
		wantErr bool
	}{
		{"", StageUnset, false},
		{"END_ENTITY", StageEndEntity, false},
		{"END_STRUCTURAL", StageEndStructural, false},
		{"end_entity", StageUnset, true},
		{"UNSET", StageUnset, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStage(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownStage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.Column())
		})
	}
}

func TestReport_Counts(t *testing.T) {
	r := newReport(StageEndEntity)
	r.add(UnitResult{Key: "a", Outcome: Imported})
	r.add(UnitResult{Key: "b", Outcome: Imported})
	r.add(UnitResult{Key: "c", Outcome: Failed, Reason: "boom"})
	r.finish(nil)

	assert.Equal(t, 2, r.Count(Imported))
	assert.Equal(t, 0, r.Count(SkippedComplete))
	assert.Equal(t, map[Outcome]int{Imported: 2, Failed: 1}, r.Counts())
	assert.Empty(t, r.Aborted)
	assert.GreaterOrEqual(t, r.Duration(), time.Duration(0))
}

func TestReportStore_SaveListLatest(t *testing.T) {
	store := NewReportStore(filepath.Join(t.TempDir(), "reports"))

	_, err := store.Latest(StageEndEntity)
	assert.ErrorIs(t, err, ErrNoReport)

	older := newReport(StageEndEntity)
	older.add(UnitResult{Key: "a", Outcome: Imported, Entities: 3})
	older.finish(nil)
	older.Finished = older.Finished.Add(-time.Hour)

	newer := newReport(StageEndEntity)
	newer.add(UnitResult{Key: "a", Outcome: SkippedComplete})
	newer.finish(assert.AnError)

	structural := newReport(StageEndStructural)
	structural.finish(nil)

	for _, r := range []*Report{older, newer, structural} {
		path, err := store.Save(r)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(path, r.RunID+".json"), path)
	}

	entity, err := store.List(StageEndEntity)
	require.NoError(t, err)
	require.Len(t, entity, 2)
	assert.Equal(t, newer.RunID, entity[0].RunID)
	assert.Equal(t, assert.AnError.Error(), entity[0].Aborted)
	assert.Equal(t, 3, entity[1].Results[0].Entities)

	all, err := store.List(StageUnset)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	latest, err := store.Latest(StageEndStructural)
	require.NoError(t, err)
	assert.Equal(t, structural.RunID, latest.RunID)
}
