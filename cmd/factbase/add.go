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
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	clierrors "github.com/kraklabs/factbase/internal/errors"
	"github.com/kraklabs/factbase/internal/output"
	"github.com/kraklabs/factbase/internal/ui"
	"github.com/kraklabs/factbase/pkg/repo"
)

// addResult is the JSON form of an added unit.
type addResult struct {
	Kind string `json:"kind"`
	Key  string `json:"key"`
	Hash string `json:"hash,omitempty"`
	Dir  string `json:"dir"`
}

// runAdd executes the 'add' CLI command. Jars are copied into the
// repository and fingerprinted; projects are copied as content.
//
// Examples:
//
//	factbase add library guava-33.0.jar
//	factbase add maven com.google.guava guava 33.0 guava-33.0.jar
//	factbase add project nightly app ./checkout/app
func runAdd(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage:
  factbase add library <jar>
  factbase add maven <group> <artifact> <version> <jar>
  factbase add project <batch> <name> <dir>

Adds a unit to the repository. Adding a unit that exists already fails.
`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	kind, err := repo.ParseKind(rest[0])
	if err != nil {
		inputError(globals, "Unknown unit kind", err.Error(), "Use library, maven or project")
	}
	want := map[repo.Kind]int{repo.KindLibrary: 2, repo.KindMaven: 5, repo.KindProject: 4}[kind]
	if len(rest) != want {
		fs.Usage()
		os.Exit(1)
	}

	cfg := loadConfig(globals)
	env := openEnv(context.Background(), cfg, globals)
	defer func() { _ = env.Close() }()

	var u *repo.Unit
	switch kind {
	case repo.KindLibrary:
		u, err = env.Repo.AddLibrary(rest[1])
	case repo.KindMaven:
		u, err = env.Repo.AddMaven(rest[1], rest[2], rest[3], rest[4])
	case repo.KindProject:
		u, err = env.Repo.AddProject(rest[1], rest[2], rest[3])
	}
	if err != nil {
		clierrors.FatalError(clierrors.NewRepositoryError("Cannot add unit", err.Error(), "Check the path and that the unit is not already present", err), globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(addResult{Kind: u.Kind(), Key: u.Key(), Hash: u.Hash(), Dir: u.Dir()})
		return
	}
	ui.Successf("Added %s %s", u.Kind(), u.Key())
	if u.Hash() != "" {
		fmt.Printf("  %s %s\n", ui.Label("Hash:"), u.Hash())
	}
}
