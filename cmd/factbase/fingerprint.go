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
	"path"
	"syscall"

	flag "github.com/spf13/pflag"

	clierrors "github.com/kraklabs/factbase/internal/errors"
	"github.com/kraklabs/factbase/internal/output"
	"github.com/kraklabs/factbase/internal/ui"
	"github.com/kraklabs/factbase/pkg/fingerprint"
	"github.com/kraklabs/factbase/pkg/repo"
)

// duplicateGroup is the JSON form of one content group.
type duplicateGroup struct {
	MD5      string   `json:"md5"`
	SHA      string   `json:"sha"`
	Length   int64    `json:"length"`
	Projects []string `json:"projects"`
	Paths    []string `json:"paths"`
}

// runFingerprint executes the 'fingerprint' CLI command. It hashes every
// content file of the selected projects and lists content found in at
// least --min-projects distinct projects.
func runFingerprint(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("fingerprint", flag.ExitOnError)
	minProjects := fs.Int("min-projects", 2, "Report content held by at least this many projects")
	suffix := fs.String("suffix", "", "Only fingerprint files with this suffix (e.g. .java)")
	shards := fs.Int("shards", 0, "Index shards (default: fingerprint.shards)")
	workers := fs.Int("workers", 0, "Hashing workers (default: fingerprint.workers)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: factbase fingerprint [options]

Finds byte-identical files shared across project units.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *minProjects < 1 {
		inputError(globals, "Invalid --min-projects", "must be at least 1", "")
	}

	cfg := loadConfig(globals)
	if *shards > 0 {
		cfg.Fingerprint.Shards = *shards
	}
	if *workers > 0 {
		cfg.Fingerprint.Workers = *workers
	}

	unitFilter, contentFilter := loadFilters(cfg, globals)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := openEnv(ctx, cfg, globals)
	defer func() { _ = env.Close() }()

	inputs, err := fingerprintInputs(env.Repo, unitFilter, contentFilter, *suffix)
	if err != nil {
		clierrors.FatalError(clierrors.NewRepositoryError("Cannot list project content", err.Error(), "", err), globals.JSON)
	}

	bar := NewProgressBar(NewProgressConfig(globals), int64(len(inputs)), "fingerprint")
	res, err := fingerprint.BuildSharded(ctx, inputs, fingerprint.BuildOptions{
		Shards:  cfg.Fingerprint.Shards,
		Workers: cfg.Fingerprint.Workers,
		OnFile: func() {
			if bar != nil {
				_ = bar.Add(1)
			}
		},
		Logger: slog.Default(),
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		clierrors.FatalError(clierrors.NewPartialError("Fingerprinting interrupted", err.Error(), "Run 'factbase fingerprint' again"), globals.JSON)
	}

	groups := res.Index.Duplicates(*minProjects)
	if globals.JSON {
		out := make([]duplicateGroup, len(groups))
		for i, g := range groups {
			fp := g.Fingerprint()
			out[i] = duplicateGroup{MD5: fp.Primary, SHA: fp.Secondary, Length: fp.Length, Projects: g.Projects(), Paths: g.Paths()}
		}
		_ = output.Lines(os.Stdout, out)
		return
	}

	for _, g := range groups {
		fmt.Println(g.String())
	}
	if !globals.Quiet {
		fmt.Fprintf(os.Stderr, "%s files, %s distinct, %s shared by %d+ projects, %s unreadable\n",
			ui.CountText(int64(res.Files)), ui.CountText(int64(res.Index.Len())),
			ui.CountText(int64(len(groups))), *minProjects, ui.CountText(int64(res.Errors)))
	}
}

// fingerprintInputs lists the content files of every project unit. Paths
// are reported as <unit key>/<content path>.
func fingerprintInputs(r *repo.Repository, units, content *repo.Filter, suffix string) ([]fingerprint.Input, error) {
	projects, err := r.Units(repo.KindProject, units)
	if err != nil {
		return nil, err
	}
	var inputs []fingerprint.Input
	for _, u := range projects {
		set, err := r.Content(u)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", u.Key(), err)
		}
		for _, f := range set.Filtered(content).Files {
			if suffix != "" && path.Ext(f.Path) != suffix {
				continue
			}
			inputs = append(inputs, fingerprint.Input{
				Project: u.Key(),
				Path:    path.Join(u.Key(), f.Path),
				File:    f.FullPath,
			})
		}
	}
	return inputs, nil
}
