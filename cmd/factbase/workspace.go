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
	"log/slog"
	"strings"

	"github.com/kraklabs/factbase/internal/bootstrap"
	clierrors "github.com/kraklabs/factbase/internal/errors"
	"github.com/kraklabs/factbase/pkg/repo"
)

// loadConfig loads the workspace config or exits with a config error.
func loadConfig(globals GlobalFlags) *Config {
	cfg, err := LoadConfig(globals.ConfigPath)
	if errors.Is(err, errConfigNotFound) {
		clierrors.FatalError(clierrors.NewConfigError(
			"No factbase workspace found",
			"Neither the current directory nor any parent contains .factbase/config.yaml",
			"Run 'factbase init' in the workspace directory",
			err,
		), globals.JSON)
	}
	if err != nil {
		clierrors.FatalError(clierrors.NewConfigError(
			"Cannot load configuration",
			err.Error(),
			"Fix the reported field in .factbase/config.yaml or its FACTBASE_* override",
			err,
		), globals.JSON)
	}
	return cfg
}

// loadFilters compiles the configured filters or exits with a config error.
func loadFilters(cfg *Config, globals GlobalFlags) (units, content *repo.Filter) {
	units, content, err := cfg.Filters()
	if err != nil {
		clierrors.FatalError(clierrors.NewConfigError(
			"Invalid filter pattern",
			err.Error(),
			"Fix the glob in .factbase/config.yaml or its FACTBASE_* override",
			err,
		), globals.JSON)
	}
	return units, content
}

// openEnv opens the repository and the store described by cfg.
func openEnv(ctx context.Context, cfg *Config, globals GlobalFlags) *bootstrap.Env {
	env, err := bootstrap.Open(ctx, cfg.Bootstrap(), slog.Default())
	if errors.Is(err, bootstrap.ErrNotInitialized) {
		clierrors.FatalError(clierrors.NewConfigError(
			"Workspace is not initialized",
			err.Error(),
			"Run 'factbase init'",
			err,
		), globals.JSON)
	}
	if err != nil {
		clierrors.FatalError(clierrors.NewStoreError(
			"Cannot open workspace",
			err.Error(),
			"Check store.driver and store.dsn in .factbase/config.yaml",
			err,
		), globals.JSON)
	}
	return env
}

// parseKinds turns a comma separated kind list into kinds in pipeline order.
// An empty list selects every kind.
func parseKinds(s string) ([]repo.Kind, error) {
	if strings.TrimSpace(s) == "" {
		return repo.Kinds, nil
	}
	want := make(map[repo.Kind]bool)
	for _, part := range strings.Split(s, ",") {
		k, err := repo.ParseKind(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		want[k] = true
	}
	kinds := make([]repo.Kind, 0, len(want))
	for _, k := range repo.Kinds {
		if want[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// selectUnits lists the units of kinds that pass f, libraries first.
func selectUnits(r *repo.Repository, kinds []repo.Kind, f *repo.Filter) ([]*repo.Unit, error) {
	var units []*repo.Unit
	for _, k := range kinds {
		us, err := r.Units(k, f)
		if err != nil {
			return nil, err
		}
		units = append(units, us...)
	}
	return units, nil
}

// parseUnitRef splits "kind/key".
func parseUnitRef(ref string) (repo.Kind, string, error) {
	kind, key, ok := strings.Cut(ref, "/")
	if !ok || key == "" {
		return "", "", errors.New("unit must be written as kind/key")
	}
	k, err := repo.ParseKind(kind)
	if err != nil {
		return "", "", err
	}
	return k, key, nil
}

// inputError exits with an input error.
func inputError(globals GlobalFlags, msg, cause, fix string) {
	clierrors.FatalError(clierrors.NewInputError(msg, cause, fix), globals.JSON)
}
