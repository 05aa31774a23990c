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

// Package storage provides the relational store behind the fact base.
//
// The Backend interface hides the SQL flavor from the importers. Two
// dialects are supported through database/sql:
//
//   - sqlite: embedded, pure Go (modernc.org/sqlite), the default
//   - postgres: a server reached through pgx
//
// # Quick Start
//
//	backend, err := storage.Open(ctx, storage.Config{
//	    Driver:  "sqlite",
//	    DataDir: "/path/to/data",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	unit, err := storage.FindUnit(ctx, backend, "library", "guava-31.jar")
//	if errors.Is(err, storage.ErrNotFound) {
//	    // not imported yet
//	}
//
// # Schema
//
// Open applies the embedded golang-migrate migrations for the dialect. The
// schema holds one row per unit (library jar, maven jar, project) with a
// nullable stage column, and per-unit fact tables: entities, relations,
// parameters, files and used_jars. Every fact row carries its unit_id, so a
// unit is rolled back by deleting its rows.
//
// # Placeholders
//
// Statements are written with ? placeholders. The postgres backend rebinds
// them to $1, $2, ... before execution.
//
// # Transactions
//
// WithTx holds the backend's write lock for the whole transaction. The
// callback must use the Querier it receives; calling back into the backend
// from inside the callback deadlocks.
//
// # Bulk Inserts
//
// Batcher buffers rows for one table and flushes them with multi-row INSERT
// statements sized to the dialect's bound-argument limit.
package storage
