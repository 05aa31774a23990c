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
	"time"

	flag "github.com/spf13/pflag"

	clierrors "github.com/kraklabs/factbase/internal/errors"
	"github.com/kraklabs/factbase/internal/output"
	"github.com/kraklabs/factbase/internal/ui"
	"github.com/kraklabs/factbase/pkg/importer"
	"github.com/kraklabs/factbase/pkg/repo"
	"github.com/kraklabs/factbase/pkg/storage"
)

// StatusResult is the workspace status for JSON output.
type StatusResult struct {
	Repository string           `json:"repository"`
	Driver     string           `json:"driver"`
	Units      []repoUnitCount  `json:"units"`
	Stages     []stageUnitCount `json:"stages"`
	Rows       map[string]int64 `json:"rows"`
	LastRuns   []lastRun        `json:"last_runs,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

type repoUnitCount struct {
	Kind      string `json:"kind"`
	Total     int    `json:"total"`
	Extracted int    `json:"extracted"`
	Failed    int    `json:"failed"`
}

type stageUnitCount struct {
	Kind  string `json:"kind"`
	Stage string `json:"stage"`
	Units int64  `json:"units"`
}

type lastRun struct {
	Stage    string                   `json:"stage"`
	RunID    string                   `json:"run_id"`
	Finished time.Time                `json:"finished"`
	Aborted  string                   `json:"aborted,omitempty"`
	Counts   map[importer.Outcome]int `json:"counts"`
}

// statusTables are the tables counted by status, in display order.
var statusTables = []string{storage.TableUnits, storage.TableEntities, storage.TableRelations, storage.TableParameters, storage.TableFiles, storage.TableUsedJars}

// runStatus executes the 'status' CLI command. It shows how many units the
// repository holds and how far each got, the units per import stage, the
// rows per fact table and the last run of each stage.
//
// Examples:
//
//	factbase status           Display formatted status
//	factbase --json status    Output as JSON for programmatic use
func runStatus(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: factbase status [options]

Shows extraction and import progress of the workspace.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *jsonOutput {
		globals.JSON = true
	}

	ctx := context.Background()
	cfg := loadConfig(globals)
	env := openEnv(ctx, cfg, globals)
	defer func() { _ = env.Close() }()

	result, err := collectStatus(ctx, env.Repo, env.Store, env.Reports)
	if err != nil {
		clierrors.FatalError(clierrors.NewStoreError("Cannot read status", err.Error(), "", err), globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(result)
		return
	}
	printStatus(result)
}

func collectStatus(ctx context.Context, r *repo.Repository, store *storage.SQLBackend, reports *importer.ReportStore) (*StatusResult, error) {
	res := &StatusResult{
		Repository: r.Root(),
		Driver:     string(store.Dialect()),
		Rows:       make(map[string]int64),
		Timestamp:  time.Now().UTC(),
	}

	for _, k := range repo.Kinds {
		units, err := r.Units(k, nil)
		if err != nil {
			return nil, err
		}
		c := repoUnitCount{Kind: string(k), Total: len(units)}
		for _, u := range units {
			switch {
			case u.Extracted():
				c.Extracted++
			case u.Properties().Error != "":
				c.Failed++
			}
		}
		res.Units = append(res.Units, c)
	}

	stages, err := storage.CountUnitsByStage(ctx, store)
	if err != nil {
		return nil, err
	}
	for _, s := range stages {
		res.Stages = append(res.Stages, stageUnitCount{Kind: s.Kind, Stage: s.Stage, Units: s.Units})
	}

	for _, t := range statusTables {
		n, err := storage.CountRows(ctx, store, t, 0)
		if err != nil {
			return nil, err
		}
		res.Rows[t] = n
	}

	for _, st := range []importer.Stage{importer.StageEndEntity, importer.StageEndStructural} {
		rep, err := reports.Latest(st)
		if errors.Is(err, importer.ErrNoReport) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res.LastRuns = append(res.LastRuns, lastRun{
			Stage:    rep.Stage,
			RunID:    rep.RunID,
			Finished: rep.Finished,
			Aborted:  rep.Aborted,
			Counts:   rep.Counts(),
		})
	}
	return res, nil
}

func printStatus(s *StatusResult) {
	ui.Header("Workspace")
	fmt.Printf("  %s %s\n", ui.Label("Repository:"), s.Repository)
	fmt.Printf("  %s %s\n", ui.Label("Store:"), s.Driver)
	fmt.Println()

	ui.Header("Repository units")
	for _, c := range s.Units {
		fmt.Printf("  %-10s %s total, %s extracted", c.Kind, ui.CountText(int64(c.Total)), ui.CountText(int64(c.Extracted)))
		if c.Failed > 0 {
			fmt.Printf(", %s failed", ui.CountText(int64(c.Failed)))
		}
		fmt.Println()
	}
	fmt.Println()

	ui.Header("Imported units")
	if len(s.Stages) == 0 {
		fmt.Println("  " + ui.DimText("nothing imported yet"))
	}
	for _, c := range s.Stages {
		fmt.Printf("  %-10s %-16s %s\n", c.Kind, ui.StageText(c.Stage), ui.CountText(c.Units))
	}
	fmt.Println()

	ui.Header("Rows")
	for _, t := range statusTables {
		fmt.Printf("  %-12s %s\n", t, ui.CountText(s.Rows[t]))
	}

	if len(s.LastRuns) > 0 {
		fmt.Println()
		ui.Header("Last runs")
		for _, r := range s.LastRuns {
			fmt.Printf("  %s %s %s\n", ui.StageText(r.Stage), r.Finished.Local().Format(time.DateTime), ui.DimText(r.RunID))
			for _, o := range importer.Outcomes {
				if n := r.Counts[o]; n > 0 {
					fmt.Printf("    %-28s %d\n", ui.OutcomeText(string(o)), n)
				}
			}
			if r.Aborted != "" {
				fmt.Printf("    %s %s\n", ui.Label("aborted:"), r.Aborted)
			}
		}
	}
}
