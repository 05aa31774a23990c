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

// Package importer loads fact bundles into the relational store in two
// stages, using the store itself as the ledger of progress.
//
// Each unit row carries a stage column that moves from NULL (UNSET) to
// END_ENTITY to END_STRUCTURAL. The stage is always written last, in the
// same transaction as the rows it vouches for, so a unit whose row has a
// NULL stage is the trace of an interrupted import.
//
// # Entities Stage
//
// EntitiesImporter inserts the unit row, its entities, parameters, files
// and used jars, then records END_ENTITY. A unit found with a NULL stage is
// deleted and imported again (ReimportedAfterRollback); a unit at
// END_ENTITY or later is skipped.
//
// # Structural Stage
//
// StructuralImporter inserts relations for units at END_ENTITY. Each
// target is resolved to an entity id by looking, in order, at:
//   - the unit's own entities
//   - the LibraryTypeModel built from every imported library
//   - the UnknownCache, which hands out one UNKNOWN placeholder per name
//
// Placeholders belong to the reserved system unit, so the same missing
// type gets the same id in every run.
//
// # Failures
//
// A unit whose bundle cannot be read is reported Failed and the run goes
// on. Store errors and context cancellation stop the run; Run returns the
// partial report together with the error. ReportStore keeps reports on
// disk for later inspection.
//
// # Usage
//
//	imp := importer.NewEntitiesImporter(backend, importer.Options{Logger: logger})
//	report, err := imp.Run(ctx, candidates)
//	if err != nil {
//	    // report covers the units processed before the failure
//	}
package importer
