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
	"context"
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	clierrors "github.com/kraklabs/factbase/internal/errors"
	"github.com/kraklabs/factbase/internal/output"
	"github.com/kraklabs/factbase/internal/ui"
	"github.com/kraklabs/factbase/pkg/repo"
	"github.com/kraklabs/factbase/pkg/storage"
)

type resetResult struct {
	Units      []string `json:"units"`
	Extraction bool     `json:"extraction"`
}

// runReset executes the 'reset' CLI command. It deletes imported units
// from the store so the next import loads them from scratch, and with
// --extraction also discards their fact bundles.
//
// WARNING: This operation is destructive and cannot be undone!
func runReset(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	unitRef := fs.String("unit", "", "Reset one unit, written kind/key")
	all := fs.Bool("all", false, "Reset every imported unit")
	extraction := fs.Bool("extraction", false, "Also remove fact bundles so units are extracted again")
	confirm := fs.Bool("yes", false, "Confirm the reset (required)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: factbase reset (--unit kind/key | --all) --yes [options]

Removes imported units and their facts from the store.

WARNING: This operation is destructive and cannot be undone!

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if (*unitRef == "") == !*all {
		inputError(globals, "Nothing to reset", "Exactly one of --unit or --all is required", "factbase reset --unit library/guava-33.0 --yes")
	}
	if !*confirm {
		inputError(globals, "Reset not confirmed", "Reset deletes imported facts", "Pass --yes to confirm")
	}

	ctx := context.Background()
	cfg := loadConfig(globals)

	lock := newImportLock(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil || !ok {
		clierrors.FatalError(clierrors.NewLockError("Import is running", "Units cannot be reset during an import", "Wait for the import to finish", err), globals.JSON)
	}
	var cleanup exitCleanup
	defer cleanup.run()
	cleanup.add(lock.Unlock)

	env := openEnv(ctx, cfg, globals)
	cleanup.add(func() { _ = env.Close() })

	var rows []*storage.UnitRow
	if *all {
		rows, err = storage.ListUnits(ctx, env.Store, "")
		if err != nil {
			cleanup.fatal(clierrors.NewStoreError("Cannot list units", err.Error(), "", err), globals.JSON)
		}
	} else {
		kind, key, perr := parseUnitRef(*unitRef)
		if perr != nil {
			cleanup.fatal(clierrors.NewInputError("Invalid --unit", perr.Error(), "Write the unit as kind/key, e.g. project/nightly/app"), globals.JSON)
		}
		row, ferr := storage.FindUnit(ctx, env.Store, string(kind), key)
		switch {
		case errors.Is(ferr, storage.ErrNotFound):
			if !*extraction {
				cleanup.fatal(clierrors.NewNotFoundError("Unit is not imported", *unitRef, "Check 'factbase status'"), globals.JSON)
			}
		case ferr != nil:
			cleanup.fatal(clierrors.NewStoreError("Cannot find unit", ferr.Error(), "", ferr), globals.JSON)
		default:
			rows = append(rows, row)
			if kind.IsJar() && !globals.JSON {
				ui.Warningf("Relations of other units that resolved into %s keep its old entity ids until they are reset too", *unitRef)
			}
		}
		if *extraction {
			resetExtraction(env.Repo, kind, key, globals, &cleanup)
		}
	}

	res := resetResult{Units: []string{}, Extraction: *extraction}
	for _, row := range rows {
		if err := env.Store.WithTx(ctx, func(q storage.Querier) error {
			return storage.DeleteUnit(ctx, q, row.ID)
		}); err != nil {
			cleanup.fatal(clierrors.NewStoreError("Cannot delete unit", row.Kind+"/"+row.Key, "", err), globals.JSON)
		}
		res.Units = append(res.Units, row.Kind+"/"+row.Key)
		if *all && *extraction {
			if kind, perr := repo.ParseKind(row.Kind); perr == nil {
				resetExtraction(env.Repo, kind, row.Key, globals, &cleanup)
			}
		}
	}

	if globals.JSON {
		_ = output.JSON(res)
		return
	}
	ui.Successf("Reset %d units", len(res.Units))
	fmt.Println()
	fmt.Println("Next steps:")
	if *extraction {
		fmt.Println("  factbase extract    Extract the units again")
	}
	fmt.Println("  factbase import     Import the units again")
}

// resetExtraction discards the fact bundle of a repository unit. Units
// that are not in the repository (the unknown-entity unit) are ignored.
func resetExtraction(r *repo.Repository, kind repo.Kind, key string, globals GlobalFlags, cleanup *exitCleanup) {
	u, err := r.Unit(kind, key)
	if errors.Is(err, repo.ErrUnitNotFound) {
		return
	}
	if err == nil {
		err = r.Reset(u)
	}
	if err != nil {
		cleanup.fatal(clierrors.NewRepositoryError("Cannot reset extraction", kind.Dir()+"/"+key, "", err), globals.JSON)
	}
}
