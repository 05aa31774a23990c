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
	"syscall"

	flag "github.com/spf13/pflag"

	clierrors "github.com/kraklabs/factbase/internal/errors"
	"github.com/kraklabs/factbase/internal/output"
	"github.com/kraklabs/factbase/internal/ui"
	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/frontend"
)

// extractLine is one line of --json output.
type extractLine struct {
	*frontend.Result
	Error string `json:"error,omitempty"`
}

// runExtract executes the 'extract' CLI command. Units are extracted one at
// a time, libraries first. A unit that fails is reported and left
// unextracted; the remaining units are still extracted.
//
// Flags:
//   - --kind: Comma separated unit kinds (default: all)
//   - --force: Re-extract units already extracted
//   - --compression: Bundle compression, none|gzip|zstd (default: from config)
func runExtract(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	kindList := fs.String("kind", "", "Unit kinds to extract: library,maven,project")
	force := fs.Bool("force", false, "Re-extract units already extracted")
	compression := fs.String("compression", "", "Bundle compression: none, gzip or zstd")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: factbase extract [options]

Writes a fact bundle for every unit that is not extracted yet.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	kinds, err := parseKinds(*kindList)
	if err != nil {
		inputError(globals, "Invalid --kind", err.Error(), "Use library, maven or project")
	}

	cfg := loadConfig(globals)
	if *compression != "" {
		cfg.Extract.Compression = *compression
	}
	comp, err := facts.ParseCompression(cfg.Extract.Compression)
	if err != nil {
		inputError(globals, "Invalid --compression", err.Error(), "Use none, gzip or zstd")
	}
	unitFilter, contentFilter := loadFilters(cfg, globals)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := openEnv(ctx, cfg, globals)
	defer func() { _ = env.Close() }()

	units, err := selectUnits(env.Repo, kinds, unitFilter)
	if err != nil {
		clierrors.FatalError(clierrors.NewRepositoryError("Cannot list units", err.Error(), "", err), globals.JSON)
	}

	x := frontend.NewExtractor(frontend.Options{
		Compression: comp,
		Filter:      contentFilter,
		Force:       *force,
		Logger:      slog.Default(),
	})

	progress := newUnitProgress(NewProgressConfig(globals), len(units), "extract")
	var lines []extractLine
	var extracted, skipped, failed int
	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		res, err := x.ExtractUnit(ctx, env.Repo, u)
		line := extractLine{Result: res}
		switch {
		case err != nil:
			failed++
			line.Error = err.Error()
			if !globals.JSON {
				ui.Warningf("%s/%s: %v", u.Kind(), u.Key(), err)
			}
		case res.AlreadyExtracted:
			skipped++
		default:
			extracted++
		}
		lines = append(lines, line)
		progress.Step(u.Key())
	}
	progress.Finish()

	if globals.JSON {
		_ = output.Lines(os.Stdout, lines)
	} else {
		ui.Header("Extraction")
		fmt.Printf("  %s %s\n", ui.Label("Extracted:"), ui.CountText(int64(extracted)))
		fmt.Printf("  %s %s\n", ui.Label("Already extracted:"), ui.CountText(int64(skipped)))
		fmt.Printf("  %s %s\n", ui.Label("Failed:"), ui.CountText(int64(failed)))
	}

	if ctx.Err() != nil {
		clierrors.FatalError(clierrors.NewPartialError("Extraction interrupted", fmt.Sprintf("%d of %d units processed", len(lines), len(units)), "Run 'factbase extract' again to continue"), globals.JSON)
	}
	if failed > 0 {
		clierrors.FatalError(clierrors.NewPartialError(
			fmt.Sprintf("%d units failed to extract", failed),
			"The failed units stay unextracted and are skipped by import",
			"Fix the reported inputs, then run 'factbase extract' again",
		), globals.JSON)
	}
}
