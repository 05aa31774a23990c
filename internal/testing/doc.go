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

// Package testing provides test helpers for factbase packages.
//
// # Quick Start
//
// Use SetupTestStore to create a migrated sqlite store:
//
//	func TestMyFeature(t *testing.T) {
//	    store := testing.SetupTestStore(t)
//
//	    id := testing.InsertTestUnit(t, store, "library", "a.jar", "END_ENTITY")
//	    testing.InsertTestEntity(t, store, id, "CLASS", "a.B", "")
//
//	    // Query and verify
//	    n := testing.CountRows(t, store, "entities", id)
//	    require.Equal(t, int64(1), n)
//	}
//
// # Seeding Test Data
//
// The package provides helpers for inserting common rows:
//   - InsertTestUnit: Add a unit, optionally with a stage
//   - InsertTestEntity: Add an entity to a unit
//
// # Bundles and Candidates
//
// WriteBundle writes facts to a bundle directory; NewUnit wraps one in a
// Unit that the importers accept as a candidate:
//
//	u := testing.NewUnit(t, "project", "batch/app", testing.Bundle{
//	    Entities: []facts.Entity{{Kind: facts.EntityClass, FQN: "a.B"}},
//	})
//	report, err := importer.NewEntitiesImporter(store, importer.Options{}).
//	    Run(ctx, []importer.Candidate{u})
//
// # Postgres
//
// Tests that need a real PostgreSQL server live behind the integration
// build tag and start one with testcontainers:
//
//	//go:build integration
//
//	go test -tags integration ./pkg/storage/...
package testing
