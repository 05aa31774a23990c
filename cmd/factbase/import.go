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
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/factbase/internal/bootstrap"
	"github.com/kraklabs/factbase/internal/contract"
	clierrors "github.com/kraklabs/factbase/internal/errors"
	"github.com/kraklabs/factbase/internal/output"
	"github.com/kraklabs/factbase/internal/ui"
	"github.com/kraklabs/factbase/pkg/importer"
	"github.com/kraklabs/factbase/pkg/repo"
	"github.com/kraklabs/factbase/pkg/storage"
)

// importSummary is the JSON form of an import run.
type importSummary struct {
	Reports []importedStage `json:"stages"`
	Aborted string          `json:"aborted,omitempty"`
}

type importedStage struct {
	Stage   string                   `json:"stage"`
	RunID   string                   `json:"run_id"`
	Path    string                   `json:"report,omitempty"`
	Counts  map[importer.Outcome]int `json:"counts"`
	Failed  []importer.UnitResult    `json:"failed,omitempty"`
	Seconds float64                  `json:"seconds"`
}

// runImport executes the 'import' CLI command. It runs the entity stage
// and then the structural stage over the extracted units, libraries first.
// Only one import may run against a workspace at a time.
//
// Flags:
//   - --stage: entities, structural or all (default: all)
//   - --kind: Comma separated unit kinds (default: all)
//   - --batch-size: Rows per bulk INSERT (default: from config)
//   - --unit-timeout: Per-unit time limit, 0 for none (default: from config)
//   - --metrics-addr: Serve Prometheus metrics on this address
//
// Examples:
//
//	factbase import
//	factbase import --stage entities --kind library
//	factbase import --metrics-addr :9090
func runImport(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	stageFlag := fs.String("stage", "all", "Stage to run: entities, structural or all")
	kindList := fs.String("kind", "", "Unit kinds to import: library,maven,project")
	batchSize := fs.Int("batch-size", 0, "Rows per bulk INSERT (default: import.batch_size)")
	unitTimeout := fs.Duration("unit-timeout", -1, "Per-unit time limit, 0 disables (default: import.unit_timeout)")
	metricsAddr := fs.String("metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9090)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: factbase import [options]

Imports fact bundles into the store in two stages. Units already past a
stage are skipped, and units left partial by an interrupted run are rolled
back and imported again.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	stages, err := parseImportStages(*stageFlag)
	if err != nil {
		inputError(globals, "Invalid --stage", err.Error(), "Use entities, structural or all")
	}
	kinds, err := parseKinds(*kindList)
	if err != nil {
		inputError(globals, "Invalid --kind", err.Error(), "Use library, maven or project")
	}

	cfg := loadConfig(globals)
	if *batchSize > 0 {
		cfg.Import.BatchSize = *batchSize
	}
	if *unitTimeout >= 0 {
		cfg.Import.UnitTimeout = *unitTimeout
	}
	if err := cfg.Validate(); err != nil {
		inputError(globals, "Invalid import options", err.Error(), "")
	}
	unitFilter, _ := loadFilters(cfg, globals)
	logger := slog.Default()

	lock := newImportLock(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		clierrors.FatalError(clierrors.NewLockError("Cannot take the import lock", err.Error(), "", err), globals.JSON)
	}
	if !ok {
		cause := "Another import is running against this workspace"
		if h, _ := lock.Holder(); h != nil {
			cause = fmt.Sprintf("Import started %s by PID %d is still running", h.StartedAt.Format(time.RFC3339), h.PID)
		}
		clierrors.FatalError(clierrors.NewLockError("Import already running", cause, "Wait for it to finish", nil), globals.JSON)
	}
	var cleanup exitCleanup
	defer cleanup.run()
	cleanup.add(lock.Unlock)

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	env := openEnv(ctx, cfg, globals)
	cleanup.add(func() { _ = env.Close() })

	units, err := selectUnits(env.Repo, kinds, unitFilter)
	if err != nil {
		cleanup.fatal(clierrors.NewRepositoryError("Cannot list units", err.Error(), "", err), globals.JSON)
	}

	summary, abort := importStages(ctx, env, cfg, stages, units, globals, logger)
	if globals.JSON {
		_ = output.JSON(summary)
	} else {
		printImportSummary(summary)
	}

	if abort != nil {
		if ctx.Err() != nil {
			cleanup.fatal(clierrors.NewPartialError("Import interrupted", abort.Error(), "Run 'factbase import' again; partial units are rolled back"), globals.JSON)
		}
		cleanup.fatal(clierrors.NewStoreError("Import aborted", abort.Error(), "Check the store, then run 'factbase import' again", abort), globals.JSON)
	}
	failed := 0
	for _, s := range summary.Reports {
		failed += s.Counts[importer.Failed]
	}
	if failed > 0 {
		cleanup.fatal(clierrors.NewPartialError(
			fmt.Sprintf("%d unit imports failed", failed),
			"Failed units were rolled back; the rest of the run completed",
			"See the saved report for reasons",
		), globals.JSON)
	}
}

// parseImportStages maps --stage to the stages to run, in order.
func parseImportStages(s string) ([]importer.Stage, error) {
	switch strings.ToLower(s) {
	case "all", "":
		return []importer.Stage{importer.StageEndEntity, importer.StageEndStructural}, nil
	case "entities", "entity", "end_entity":
		return []importer.Stage{importer.StageEndEntity}, nil
	case "structural", "end_structural":
		return []importer.Stage{importer.StageEndStructural}, nil
	default:
		return nil, fmt.Errorf("unknown stage %q", s)
	}
}

// importStages runs the requested stages and saves a report for each. It
// stops at the first aborted stage.
func importStages(ctx context.Context, env *bootstrap.Env, cfg *Config, stages []importer.Stage, units []*repo.Unit, globals GlobalFlags, logger *slog.Logger) (*importSummary, error) {
	candidates := make([]importer.Candidate, len(units))
	for i, u := range units {
		candidates[i] = u
	}

	logger.Debug("import.batch",
		"batch_size", cfg.Import.BatchSize,
		"max_rows_per_insert", contract.EffectiveBatchSize(cfg.Import.BatchSize, cfg.Import.MaxArgs, storage.MaxRowWidth()),
	)

	summary := &importSummary{}
	pcfg := NewProgressConfig(globals)
	for _, stage := range stages {
		progress := newUnitProgress(pcfg, len(candidates), strings.ToLower(stage.String()))
		opts := importer.Options{
			BatchSize:        cfg.Import.BatchSize,
			MaxArgs:          cfg.Import.MaxArgs,
			UnitTimeout:      cfg.Import.UnitTimeout,
			UnknownCacheSize: cfg.Import.UnknownCacheSize,
			OnUnit:           func(res importer.UnitResult) { progress.Step(res.Key) },
			Logger:           logger,
		}

		var report *importer.Report
		var err error
		if stage == importer.StageEndEntity {
			report, err = importer.NewEntitiesImporter(env.Store, opts).Run(ctx, candidates)
		} else {
			report, err = importer.NewStructuralImporter(env.Store, opts).Run(ctx, candidates)
		}
		progress.Finish()

		if report != nil {
			entry := importedStage{
				Stage:   report.Stage,
				RunID:   report.RunID,
				Counts:  report.Counts(),
				Seconds: report.Duration().Seconds(),
			}
			for _, res := range report.Results {
				if res.Outcome == importer.Failed {
					entry.Failed = append(entry.Failed, res)
				}
			}
			path, serr := env.Reports.Save(report)
			if serr != nil {
				logger.Warn("import.report.save_failed", "run_id", report.RunID, "err", serr)
			}
			entry.Path = path
			summary.Reports = append(summary.Reports, entry)
		}
		if err != nil {
			summary.Aborted = err.Error()
			return summary, err
		}
	}
	return summary, nil
}

func printImportSummary(s *importSummary) {
	for _, st := range s.Reports {
		ui.Header(fmt.Sprintf("Stage %s", ui.StageText(st.Stage)))
		for _, o := range importer.Outcomes {
			if n := st.Counts[o]; n > 0 {
				fmt.Printf("  %-28s %s\n", ui.OutcomeText(string(o)), ui.CountText(int64(n)))
			}
		}
		for _, res := range st.Failed {
			fmt.Printf("    %s %s/%s: %s\n", ui.OutcomeText(string(importer.Failed)), res.Kind, res.Key, res.Reason)
		}
		fmt.Printf("  %s %.1fs\n", ui.Label("Duration:"), st.Seconds)
		if st.Path != "" {
			fmt.Printf("  %s %s\n", ui.Label("Report:"), ui.DimText(st.Path))
		}
		fmt.Println()
	}
	if s.Aborted != "" {
		ui.Errorf("Aborted: %s", s.Aborted)
	}
}

// serveMetrics exposes the Prometheus registry until the process exits.
func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics.http.error", "err", err)
	}
}
