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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/kraklabs/factbase/internal/bootstrap"
	"github.com/kraklabs/factbase/internal/contract"
	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/repo"
	"github.com/kraklabs/factbase/pkg/storage"
)

const (
	configDirName  = ".factbase"
	configFileName = "config.yaml"
)

// errConfigNotFound is returned when no config file is found.
var errConfigNotFound = errors.New("no .factbase/config.yaml found")

// Config is the content of .factbase/config.yaml. Every field can be
// overridden by its FACTBASE_* environment variable. Relative paths are
// resolved against the directory holding .factbase.
type Config struct {
	Repository  RepositoryConfig  `yaml:"repository"`
	Store       StoreConfig       `yaml:"store"`
	Extract     ExtractConfig     `yaml:"extract"`
	Import      ImportConfig      `yaml:"import"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	ReportsDir  string            `yaml:"reports_dir" env:"FACTBASE_REPORTS_DIR" env-default:".factbase/reports"`

	base string
}

type RepositoryConfig struct {
	Root             string `yaml:"root" env:"FACTBASE_REPOSITORY" env-default:".factbase/repo"`
	ContentCacheSize int    `yaml:"content_cache_size" env:"FACTBASE_CONTENT_CACHE_SIZE" env-default:"256"`
	// Include and Exclude select units by key.
	Include []string `yaml:"include,omitempty" env:"FACTBASE_INCLUDE" env-separator:","`
	Exclude []string `yaml:"exclude,omitempty" env:"FACTBASE_EXCLUDE" env-separator:","`
}

type StoreConfig struct {
	Driver  string `yaml:"driver" env:"FACTBASE_STORE_DRIVER" env-default:"sqlite"`
	DSN     string `yaml:"dsn,omitempty" env:"FACTBASE_STORE_DSN"`
	DataDir string `yaml:"data_dir" env:"FACTBASE_STORE_DIR" env-default:".factbase/store"`
}

type ExtractConfig struct {
	Compression string `yaml:"compression" env:"FACTBASE_COMPRESSION" env-default:"zstd"`
	// ContentExclude drops project files by path.
	ContentExclude []string `yaml:"content_exclude,omitempty" env:"FACTBASE_CONTENT_EXCLUDE" env-separator:","`
}

type ImportConfig struct {
	BatchSize        int           `yaml:"batch_size" env:"FACTBASE_BATCH_SIZE" env-default:"500"`
	MaxArgs          int           `yaml:"max_args" env:"FACTBASE_MAX_ARGS" env-default:"0"`
	UnitTimeout      time.Duration `yaml:"unit_timeout" env:"FACTBASE_UNIT_TIMEOUT" env-default:"0s"`
	UnknownCacheSize int           `yaml:"unknown_cache_size" env:"FACTBASE_UNKNOWN_CACHE_SIZE" env-default:"10000"`
}

type FingerprintConfig struct {
	Shards  int `yaml:"shards" env:"FACTBASE_FINGERPRINT_SHARDS" env-default:"16"`
	Workers int `yaml:"workers" env:"FACTBASE_FINGERPRINT_WORKERS" env-default:"8"`
}

// ConfigPath returns the config file location for a workspace directory.
func ConfigPath(dir string) string {
	return filepath.Join(dir, configDirName, configFileName)
}

// DefaultConfig returns the defaults with environment overrides applied.
func DefaultConfig(base string) (*Config, error) {
	cfg := &Config{base: base}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return cfg, nil
}

// findConfig walks up from dir looking for .factbase/config.yaml.
func findConfig(dir string) (string, error) {
	for {
		p := ConfigPath(dir)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errConfigNotFound
		}
		dir = parent
	}
}

// LoadConfig reads the config at path, or searches upward from the current
// directory when path is empty.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get current directory: %w", err)
		}
		if path, err = findConfig(cwd); err != nil {
			return nil, err
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := cleanenv.ReadConfig(abs, cfg); err != nil {
		return nil, fmt.Errorf("read %s: %w", abs, err)
	}
	cfg.base = filepath.Dir(filepath.Dir(abs))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path atomically (temp file + rename).
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// Validate checks the values a command would otherwise reject late.
func (c *Config) Validate() error {
	if _, err := storage.ParseDialect(c.Store.Driver); err != nil {
		return fmt.Errorf("store.driver: %w", err)
	}
	if _, err := facts.ParseCompression(c.Extract.Compression); err != nil {
		return fmt.Errorf("extract.compression: %w", err)
	}
	if res := contract.ValidateBulk(c.Import.BatchSize, c.Import.MaxArgs, storage.MaxRowWidth()); !res.OK {
		return fmt.Errorf("import: %s", res.Message)
	}
	if _, _, err := c.Filters(); err != nil {
		return err
	}
	return nil
}

// abs resolves p against the workspace directory.
func (c *Config) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.base, p)
}

func (c *Config) UnitFilter() (*repo.Filter, error) {
	return repo.NewFilter(c.Repository.Include, c.Repository.Exclude)
}

func (c *Config) ContentFilter() (*repo.Filter, error) {
	return repo.NewFilter(nil, c.Extract.ContentExclude)
}

// Filters compiles the unit and content filters.
func (c *Config) Filters() (units, content *repo.Filter, err error) {
	if units, err = c.UnitFilter(); err != nil {
		return nil, nil, fmt.Errorf("repository filter: %w", err)
	}
	if content, err = c.ContentFilter(); err != nil {
		return nil, nil, fmt.Errorf("extract.content_exclude: %w", err)
	}
	return units, content, nil
}

// Bootstrap converts the config into workspace locations.
func (c *Config) Bootstrap() bootstrap.Config {
	return bootstrap.Config{
		Root: c.abs(c.Repository.Root),
		Store: storage.Config{
			Driver:  c.Store.Driver,
			DSN:     c.Store.DSN,
			DataDir: c.abs(c.Store.DataDir),
		},
		ContentCacheSize: c.Repository.ContentCacheSize,
		ReportsDir:       c.abs(c.ReportsDir),
	}
}

// LockPath is the import lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.base, configDirName, "import.lock")
}
