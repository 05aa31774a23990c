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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/factbase/internal/bootstrap"
	clierrors "github.com/kraklabs/factbase/internal/errors"
	"github.com/kraklabs/factbase/internal/output"
	"github.com/kraklabs/factbase/internal/ui"
)

// initResult is the JSON form of a finished init.
type initResult struct {
	Config     string `json:"config"`
	Repository string `json:"repository"`
	Driver     string `json:"driver"`
	Reports    string `json:"reports"`
}

// runInit executes the 'init' CLI command. It writes .factbase/config.yaml
// in the current directory, then creates the repository layout and migrates
// the store.
//
// Flags:
//   - --force: Overwrite an existing config (default: false)
//   - --driver: Store driver, sqlite or postgres (default: sqlite)
//   - --dsn: Store connection string for postgres
func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite existing configuration")
	driver := fs.String("driver", "", "Store driver: sqlite or postgres")
	dsn := fs.String("dsn", "", "Store connection string (postgres)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: factbase init [options]

Creates .factbase/config.yaml, the unit repository and the fact store.

Examples:
  factbase init
  factbase init --driver postgres --dsn postgres://factbase@localhost/facts

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		clierrors.FatalError(clierrors.NewInternalError("Cannot get current directory", err.Error(), "", err), globals.JSON)
	}
	path := ConfigPath(cwd)
	if globals.ConfigPath != "" {
		if path, err = filepath.Abs(globals.ConfigPath); err != nil {
			clierrors.FatalError(clierrors.NewConfigError("Invalid --config path", err.Error(), "", err), globals.JSON)
		}
	}

	if _, err := os.Stat(path); err == nil && !*force {
		clierrors.FatalError(clierrors.NewConfigError(
			"Configuration already exists",
			path,
			"Pass --force to overwrite it",
			nil,
		), globals.JSON)
	}

	cfg, err := DefaultConfig(filepath.Dir(filepath.Dir(path)))
	if err != nil {
		clierrors.FatalError(clierrors.NewConfigError("Cannot read environment overrides", err.Error(), "Check FACTBASE_* variables", err), globals.JSON)
	}
	if *driver != "" {
		cfg.Store.Driver = *driver
	}
	if *dsn != "" {
		cfg.Store.DSN = *dsn
	}
	if err := cfg.Validate(); err != nil {
		clierrors.FatalError(clierrors.NewConfigError("Invalid configuration", err.Error(), "", err), globals.JSON)
	}

	if err := SaveConfig(path, cfg); err != nil {
		clierrors.FatalError(clierrors.NewConfigError("Cannot write configuration", err.Error(), "Check directory permissions", err), globals.JSON)
	}

	info, err := bootstrap.Init(cfg.Bootstrap(), slog.Default())
	if err != nil {
		clierrors.FatalError(clierrors.NewStoreError("Cannot initialize workspace", err.Error(), "Check store.driver and store.dsn", err), globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(initResult{Config: path, Repository: info.Root, Driver: info.Driver, Reports: info.ReportsDir})
		return
	}
	ui.Successf("Created %s", path)
	fmt.Printf("  %s %s\n", ui.Label("Repository:"), info.Root)
	fmt.Printf("  %s %s\n", ui.Label("Store:"), info.Driver)
	fmt.Printf("  %s %s\n", ui.Label("Reports:"), info.ReportsDir)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  factbase add library <jar>    Add a library jar")
	fmt.Println("  factbase extract              Write fact bundles")
}
