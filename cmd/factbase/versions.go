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
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	flag "github.com/spf13/pflag"

	clierrors "github.com/kraklabs/factbase/internal/errors"
	"github.com/kraklabs/factbase/internal/output"
	"github.com/kraklabs/factbase/internal/ui"
	"github.com/kraklabs/factbase/pkg/repo"
	"github.com/kraklabs/factbase/pkg/versions"
)

// typeVersions is the JSON form of one multi-version type.
type typeVersions struct {
	Type     string          `json:"type"`
	Versions []versionOfType `json:"versions"`
}

type versionOfType struct {
	MD5  string         `json:"md5"`
	Jars []versions.Jar `json:"jars"`
}

// runVersions executes the 'versions' CLI command. It clusters the class
// files of every jar unit by type name and lists the types that exist in
// more than one distinct version.
func runVersions(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("versions", flag.ExitOnError)
	workers := fs.Int("workers", 0, "Jar scanning workers (default: fingerprint.workers)")
	all := fs.Bool("all", false, "List every type, not only those with several versions")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: factbase versions [options]

Groups the class files of library and maven jars into versions by content.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(globals)
	if *workers <= 0 {
		*workers = cfg.Fingerprint.Workers
	}
	unitFilter, _ := loadFilters(cfg, globals)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := openEnv(ctx, cfg, globals)
	defer func() { _ = env.Close() }()

	units, err := selectUnits(env.Repo, []repo.Kind{repo.KindLibrary, repo.KindMaven}, unitFilter)
	if err != nil {
		clierrors.FatalError(clierrors.NewRepositoryError("Cannot list jar units", err.Error(), "", err), globals.JSON)
	}
	jars := make([]versions.Jar, 0, len(units))
	for _, u := range units {
		jars = append(jars, versions.Jar{Name: u.Kind() + "/" + u.Key(), Path: u.JarPath(), Hash: u.Hash()})
	}

	c, err := versions.ClusterJars(ctx, jars, *workers, slog.Default())
	if err != nil {
		clierrors.FatalError(clierrors.NewPartialError("Version clustering interrupted", err.Error(), "Run 'factbase versions' again"), globals.JSON)
	}

	keys := c.Multi()
	if *all {
		keys = c.Keys()
	}

	if globals.JSON {
		out := make([]typeVersions, 0, len(keys))
		for _, k := range keys {
			out = append(out, describeVersions(k, c.Get(k)))
		}
		_ = output.Lines(os.Stdout, out)
		return
	}

	for _, k := range keys {
		tv := describeVersions(k, c.Get(k))
		fmt.Printf("%s %s\n", ui.Label(k), ui.CountText(int64(len(tv.Versions))))
		for _, v := range tv.Versions {
			names := make([]string, len(v.Jars))
			for i, j := range v.Jars {
				names[i] = j.Name
			}
			fmt.Printf("  %s %v\n", ui.DimText(v.MD5), names)
		}
	}
	if !globals.Quiet {
		fmt.Fprintf(os.Stderr, "%s jars, %s types, %s with several versions\n",
			ui.CountText(int64(len(jars))), ui.CountText(int64(c.Len())), ui.CountText(int64(len(c.Multi()))))
	}
}

// describeVersions orders the versions of a type by their md5 so output is
// stable between runs.
func describeVersions(key string, vs *versions.Versions) typeVersions {
	tv := typeVersions{Type: key}
	for _, v := range vs.All() {
		tv.Versions = append(tv.Versions, versionOfType{MD5: v.Fingerprint().Primary, Jars: v.Jars()})
	}
	sort.Slice(tv.Versions, func(i, j int) bool { return tv.Versions[i].MD5 < tv.Versions[j].MD5 })
	return tv
}
