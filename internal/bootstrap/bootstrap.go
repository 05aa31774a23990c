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

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kraklabs/factbase/pkg/importer"
	"github.com/kraklabs/factbase/pkg/repo"
	"github.com/kraklabs/factbase/pkg/storage"
)

// ErrNotInitialized is returned by Open when the repository root is missing.
var ErrNotInitialized = errors.New("bootstrap: workspace not initialized")

// Config locates a workspace.
type Config struct {
	// Root is the extracted repository root.
	Root string

	Store storage.Config

	// ContentCacheSize bounds cached project listings. 0 uses the default.
	ContentCacheSize int

	// ReportsDir holds run reports. Defaults to <Root>/../reports.
	ReportsDir string
}

func (c Config) reportsDir() string {
	if c.ReportsDir != "" {
		return c.ReportsDir
	}
	return filepath.Join(filepath.Dir(filepath.Clean(c.Root)), "reports")
}

// Info describes an initialized workspace.
type Info struct {
	Root       string
	Driver     string
	ReportsDir string
}

// Init creates the repository layout and migrates the store.
func Init(cfg Config, logger *slog.Logger) (*Info, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Root == "" {
		return nil, fmt.Errorf("repository root is required")
	}

	logger.Info("bootstrap.init.start", "root", cfg.Root, "driver", cfg.Store.Driver)

	r, err := repo.Open(cfg.Root, repo.Options{ContentCacheSize: cfg.ContentCacheSize, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	if err := os.MkdirAll(cfg.reportsDir(), 0755); err != nil {
		return nil, fmt.Errorf("create reports dir: %w", err)
	}

	cfg.Store.Logger = logger
	store, err := storage.Open(context.Background(), cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Close(); err != nil {
		return nil, fmt.Errorf("close store: %w", err)
	}

	logger.Info("bootstrap.init.success", "root", r.Root())
	return &Info{Root: r.Root(), Driver: string(store.Dialect()), ReportsDir: cfg.reportsDir()}, nil
}

// Env is an opened workspace.
type Env struct {
	Repo    *repo.Repository
	Store   *storage.SQLBackend
	Reports *importer.ReportStore
}

// Open opens an initialized workspace. The caller closes it.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Env, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(cfg.Root); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", cfg.Root, ErrNotInitialized)
	}

	r, err := repo.Open(cfg.Root, repo.Options{ContentCacheSize: cfg.ContentCacheSize, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	cfg.Store.Logger = logger
	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	logger.Debug("bootstrap.open", "root", r.Root(), "driver", store.Dialect())
	return &Env{Repo: r, Store: store, Reports: importer.NewReportStore(cfg.reportsDir())}, nil
}

// Close releases the store.
func (e *Env) Close() error {
	if e == nil || e.Store == nil {
		return nil
	}
	return e.Store.Close()
}
