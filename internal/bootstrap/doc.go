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

// Package bootstrap opens the two halves of a factbase workspace: the
// extracted repository on disk and the relational fact store.
//
// # Initialization Workflow
//
//	info, err := bootstrap.Init(bootstrap.Config{
//	    Root:  "/data/repo",
//	    Store: storage.Config{Driver: "sqlite", DataDir: "/data/store"},
//	}, logger)
//
// Init is idempotent: it creates the repository kind directories and
// applies pending migrations.
//
// # Opening a Workspace
//
//	env, err := bootstrap.Open(ctx, cfg, logger)
//	if errors.Is(err, bootstrap.ErrNotInitialized) {
//	    // tell the user to run 'factbase init'
//	}
//	defer env.Close()
//
// The returned Env carries the repository, the store and the report store
// used by the import commands.
package bootstrap
