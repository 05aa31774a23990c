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

package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/factbase/pkg/facts"
)

// TestSetupTestStore verifies the test store is created correctly.
func TestSetupTestStore(t *testing.T) {
	store := SetupTestStore(t)

	// Store should not be nil
	require.NotNil(t, store)

	// Should be able to count (schema should exist)
	assert.Equal(t, int64(0), CountRows(t, store, "units", 0), "Should start with no units")
}

// TestInsertTestUnit verifies unit insertion with and without a stage.
func TestInsertTestUnit(t *testing.T) {
	store := SetupTestStore(t)

	InsertTestUnit(t, store, "library", "a.jar", "END_ENTITY")
	InsertTestUnit(t, store, "project", "batch/app", "")

	assert.Equal(t, "END_ENTITY", UnitStage(t, store, "library", "a.jar"))
	assert.Equal(t, "", UnitStage(t, store, "project", "batch/app"))
	assert.Equal(t, int64(2), CountRows(t, store, "units", 0))
}

// TestInsertTestEntity verifies entity insertion.
func TestInsertTestEntity(t *testing.T) {
	store := SetupTestStore(t)

	id := InsertTestUnit(t, store, "library", "a.jar", "")
	eid := InsertTestEntity(t, store, id, "CLASS", "a.B", "")

	assert.Positive(t, eid)
	assert.Equal(t, int64(1), CountRows(t, store, "entities", id))
}

// TestNewUnit verifies the candidate reads back what was written.
func TestNewUnit(t *testing.T) {
	u := NewUnit(t, "project", "batch/app", Bundle{
		Entities:  []facts.Entity{{Kind: facts.EntityClass, FQN: "a.B"}},
		Relations: []facts.Relation{{Kind: facts.RelationExtends, Source: "a.B", Target: "java.lang.Object"}},
	})

	assert.Equal(t, "app", u.Name())
	assert.True(t, u.Extracted())

	stats, err := u.Facts().Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entities)
	assert.Equal(t, 1, stats.Relations)
}
