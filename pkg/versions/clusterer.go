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

package versions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"

	"github.com/kraklabs/factbase/pkg/fingerprint"
)

// Clusterer keeps one Versions collection per key. Keys are type FQNs when
// clustering class files, or library names when clustering whole jars.
type Clusterer struct {
	byKey map[string]*Versions
}

func NewClusterer() *Clusterer {
	return &Clusterer{byKey: make(map[string]*Versions)}
}

// Add records that jar carries content fp under key.
func (c *Clusterer) Add(key string, fp fingerprint.Fingerprint, jar Jar) {
	vs, ok := c.byKey[key]
	if !ok {
		vs = NewVersions()
		c.byKey[key] = vs
	}
	vs.Add(fp, jar)
}

// Get returns the versions of key, or nil.
func (c *Clusterer) Get(key string) *Versions {
	return c.byKey[key]
}

func (c *Clusterer) Len() int {
	return len(c.byKey)
}

// Keys returns every key, sorted.
func (c *Clusterer) Keys() []string {
	keys := make([]string, 0, len(c.byKey))
	for k := range c.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Multi returns the sorted keys seen with more than one version.
func (c *Clusterer) Multi() []string {
	var keys []string
	for k, vs := range c.byKey {
		if vs.Count() > 1 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Merge folds other into c.
func (c *Clusterer) Merge(other *Clusterer) {
	for k, ovs := range other.byKey {
		if vs, ok := c.byKey[k]; ok {
			vs.Merge(ovs)
		} else {
			c.byKey[k] = ovs
		}
	}
}

// ClassName maps a jar entry name to a binary type name, reporting false
// for entries that are not type class files.
func ClassName(entry string) (string, bool) {
	if !strings.HasSuffix(entry, ".class") || strings.HasPrefix(entry, "META-INF/") {
		return "", false
	}
	base := path.Base(entry)
	if base == "package-info.class" || base == "module-info.class" {
		return "", false
	}
	return strings.ReplaceAll(strings.TrimSuffix(entry, ".class"), "/", "."), true
}

// ScanJar calls fn with the binary name and content fingerprint of every
// class file in the jar at jarPath. Every class is read before fn is first
// called, so a jar that fails partway contributes nothing.
func ScanJar(jarPath string, fn func(fqn string, fp fingerprint.Fingerprint) error) error {
	zr, err := zip.OpenReader(jarPath)
	if err != nil {
		return fmt.Errorf("open jar: %w", err)
	}
	defer func() { _ = zr.Close() }()

	type entry struct {
		fqn string
		fp  fingerprint.Fingerprint
	}
	var entries []entry
	for _, f := range zr.File {
		fqn, ok := ClassName(f.Name)
		if !ok {
			continue
		}
		fp, err := entryFingerprint(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
		entries = append(entries, entry{fqn: fqn, fp: fp})
	}

	for _, e := range entries {
		if err := fn(e.fqn, e.fp); err != nil {
			return err
		}
	}
	return nil
}

func entryFingerprint(f *zip.File) (fingerprint.Fingerprint, error) {
	rc, err := f.Open()
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}
	defer func() { _ = rc.Close() }()
	return fingerprint.Compute(io.Reader(rc))
}

// ClusterJars scans jars in parallel and clusters their class files by type
// name. Each worker fills its own Clusterer; they are merged at the end.
// Jars that cannot be read are logged and skipped.
func ClusterJars(ctx context.Context, jars []Jar, workers int, logger *slog.Logger) (*Clusterer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}

	jobs := make(chan Jar)
	partials := make([]*Clusterer, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		partials[w] = NewClusterer()
		wg.Add(1)
		go func(c *Clusterer) {
			defer wg.Done()
			for jar := range jobs {
				err := ScanJar(jar.Path, func(fqn string, fp fingerprint.Fingerprint) error {
					c.Add(fqn, fp, jar)
					return nil
				})
				if err != nil {
					logger.Warn("versions.jar.error", "jar", jar.Name, "path", jar.Path, "err", err)
				}
			}
		}(partials[w])
	}

	var cancelled error
	for _, jar := range jars {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		jobs <- jar
	}
	close(jobs)
	wg.Wait()
	if cancelled != nil {
		return nil, cancelled
	}

	out := NewClusterer()
	for _, c := range partials {
		out.Merge(c)
	}
	logger.Info("versions.cluster.complete", "jars", len(jars), "types", out.Len(), "multi_version", len(out.Multi()))
	return out, nil
}
