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

package repo

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/fingerprint"
)

// ErrUnitNotFound is returned when no unit exists under a key.
var ErrUnitNotFound = errors.New("repo: unit not found")

// Options configures a Repository.
type Options struct {
	// ContentCacheSize bounds the number of cached project listings.
	ContentCacheSize int
	Logger           *slog.Logger
}

// Repository is an on-disk tree of extracted units:
//
//	<root>/libraries/<name>/
//	<root>/maven/<group>/<artifact>/<version>/
//	<root>/projects/<batch>/<checkout>/
//
// Each unit directory holds properties.yaml, a facts/ bundle and, for
// projects, a content/ tree.
type Repository struct {
	root    string
	content *ContentCache
	logger  *slog.Logger
}

// Open opens the repository at root, creating the kind directories.
func Open(root string, opts Options) (*Repository, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve repository root: %w", err)
	}
	for _, k := range Kinds {
		if err := os.MkdirAll(filepath.Join(abs, k.Dir()), 0755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", k.Dir(), err)
		}
	}
	cache, err := NewContentCache(opts.ContentCacheSize, logger)
	if err != nil {
		return nil, err
	}
	return &Repository{root: abs, content: cache, logger: logger}, nil
}

// Root is the absolute repository root.
func (r *Repository) Root() string { return r.root }

func validKey(key string) error {
	if key == "" {
		return errors.New("empty unit key")
	}
	clean := path.Clean(filepath.ToSlash(key))
	if clean != filepath.ToSlash(key) || strings.HasPrefix(clean, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("invalid unit key %q", key)
	}
	return nil
}

func (r *Repository) unitDir(kind Kind, key string) string {
	return filepath.Join(r.root, kind.Dir(), filepath.FromSlash(key))
}

// Units lists the units of kind whose key passes f, sorted by key. Any
// directory holding a properties file is a unit; its subtree is not
// searched further.
func (r *Repository) Units(kind Kind, f *Filter) ([]*Unit, error) {
	base := filepath.Join(r.root, kind.Dir())
	var units []*Unit
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == base {
				return filepath.SkipDir
			}
			r.logger.Warn("repo.walk.error", "path", p, "err", err)
			return nil
		}
		if !d.IsDir() || p == base {
			return nil
		}
		if _, err := os.Stat(filepath.Join(p, PropertiesFile)); err != nil {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		if f.Match(key) {
			u, err := r.load(kind, key)
			if err != nil {
				r.logger.Warn("repo.unit.unreadable", "kind", kind, "key", key, "err", err)
			} else {
				units = append(units, u)
			}
		}
		return filepath.SkipDir
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(units, func(i, j int) bool { return units[i].key < units[j].key })
	return units, nil
}

func (r *Repository) load(kind Kind, key string) (*Unit, error) {
	dir := r.unitDir(kind, key)
	props, err := ReadProperties(dir)
	if err != nil {
		return nil, err
	}
	return &Unit{kind: kind, key: key, dir: dir, props: *props}, nil
}

// Unit loads a single unit.
func (r *Repository) Unit(kind Kind, key string) (*Unit, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	u, err := r.load(kind, key)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s %s: %w", kind, key, ErrUnitNotFound)
	}
	return u, err
}

// CreateUnit creates or overwrites the unit's properties with the extracted
// flag cleared.
func (r *Repository) CreateUnit(kind Kind, key string, props Properties) (*Unit, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	props.Kind = kind
	props.Extracted = false
	props.ExtractedAt = time.Time{}
	if props.Name == "" {
		props.Name = path.Base(key)
	}
	dir := r.unitDir(kind, key)
	if err := WriteProperties(dir, &props); err != nil {
		return nil, err
	}
	r.logger.Debug("repo.unit.create", "kind", kind, "key", key)
	return &Unit{kind: kind, key: key, dir: dir, props: props}, nil
}

// AddLibrary copies a jar into a new library unit keyed by the jar's base
// name without extension.
func (r *Repository) AddLibrary(jarPath string) (*Unit, error) {
	name := strings.TrimSuffix(filepath.Base(jarPath), filepath.Ext(jarPath))
	return r.addJar(KindLibrary, name, Properties{Name: name}, jarPath)
}

// AddMaven copies a jar into a maven unit keyed group/artifact/version.
func (r *Repository) AddMaven(group, artifact, version, jarPath string) (*Unit, error) {
	key := path.Join(group, artifact, version)
	props := Properties{Name: artifact + "-" + version, Group: group, Version: version}
	return r.addJar(KindMaven, key, props, jarPath)
}

func (r *Repository) addJar(kind Kind, key string, props Properties, jarPath string) (*Unit, error) {
	fp, err := fingerprint.ComputeFile(jarPath)
	if err != nil {
		return nil, fmt.Errorf("hash jar: %w", err)
	}
	props.Hash = fp.Primary
	props.Jar = filepath.Base(jarPath)
	u, err := r.CreateUnit(kind, key, props)
	if err != nil {
		return nil, err
	}
	if err := copyFile(jarPath, filepath.Join(u.dir, props.Jar)); err != nil {
		return nil, err
	}
	return u, nil
}

// AddProject creates a project unit batch/name and copies src into its
// content directory.
func (r *Repository) AddProject(batch, name, src string) (*Unit, error) {
	u, err := r.CreateUnit(KindProject, path.Join(batch, name), Properties{Name: name})
	if err != nil {
		return nil, err
	}
	if err := r.AddContent(u, src); err != nil {
		return nil, err
	}
	return u, nil
}

// AddContent copies a file or directory tree into the unit's content
// directory and invalidates its cached listing.
func (r *Repository) AddContent(u *Unit, src string) error {
	defer r.content.Invalidate(u.ContentDir())

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat content: %w", err)
	}
	if !info.IsDir() {
		return copyFile(src, filepath.Join(u.ContentDir(), filepath.Base(src)))
	}
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		dst := filepath.Join(u.ContentDir(), rel)
		if d.IsDir() {
			return os.MkdirAll(dst, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(p, dst)
	})
}

// Content returns the listing of the unit's content directory.
func (r *Repository) Content(u *Unit) (*FileSet, error) {
	return r.content.Get(u.ContentDir())
}

// MarkExtracted records a completed extraction. It must be the last write
// of an extraction.
func (r *Repository) MarkExtracted(u *Unit, hasSource bool) error {
	props := u.props
	props.Extracted = true
	props.HasSource = hasSource
	props.ExtractedAt = time.Now().UTC()
	props.Error = ""
	if err := WriteProperties(u.dir, &props); err != nil {
		return err
	}
	u.props = props
	return nil
}

// MarkFailed records an extraction failure and leaves the unit unextracted.
func (r *Repository) MarkFailed(u *Unit, cause error) error {
	props := u.props
	props.Extracted = false
	props.Error = cause.Error()
	if err := WriteProperties(u.dir, &props); err != nil {
		return err
	}
	u.props = props
	return nil
}

// Reset removes the unit's fact bundle and clears the extracted flag so the
// next extraction redoes it.
func (r *Repository) Reset(u *Unit) error {
	if err := facts.RemoveBundle(u.FactsDir()); err != nil {
		return fmt.Errorf("remove facts: %w", err)
	}
	props := u.props
	props.Extracted = false
	props.ExtractedAt = time.Time{}
	props.Error = ""
	if err := WriteProperties(u.dir, &props); err != nil {
		return err
	}
	u.props = props
	r.content.Invalidate(u.ContentDir())
	r.logger.Info("repo.unit.reset", "kind", u.kind, "key", u.key)
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
