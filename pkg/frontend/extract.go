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

// Package frontend turns repository units into fact bundles.
//
// Jar units (libraries and Maven artifacts) are read through their class
// files. Projects are read from their Java sources, or from loose class
// files when a project ships no sources. Jars bundled in a project are not
// parsed; they are recorded as JAR file facts and used jars so the
// structural stage can join them to the matching library units by hash.
package frontend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/fingerprint"
	"github.com/kraklabs/factbase/pkg/frontend/classfile"
	"github.com/kraklabs/factbase/pkg/frontend/javasrc"
	"github.com/kraklabs/factbase/pkg/repo"
	"github.com/kraklabs/factbase/pkg/versions"
)

// Options configures an Extractor.
type Options struct {
	Compression facts.Compression
	// Filter excludes project content paths. May be nil.
	Filter *repo.Filter
	// Force re-extracts units already marked extracted.
	Force  bool
	Logger *slog.Logger
}

// Result summarizes one unit extraction.
type Result struct {
	Kind  string      `json:"kind"`
	Key   string      `json:"key"`
	Stats facts.Stats `json:"stats"`
	// Types is the number of type declarations walked.
	Types int `json:"types"`
	// SkippedClasses counts class files that could not be parsed.
	SkippedClasses int `json:"skipped_classes,omitempty"`
	// SkippedFacts counts facts dropped by the walker.
	SkippedFacts int  `json:"skipped_facts,omitempty"`
	HasSource    bool `json:"has_source"`
	// AlreadyExtracted is set when the unit was left untouched.
	AlreadyExtracted bool          `json:"already_extracted,omitempty"`
	Duration         time.Duration `json:"duration_ns"`
}

// Extractor writes fact bundles for units. It is not safe for concurrent
// use.
type Extractor struct {
	opts   Options
	logger *slog.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(opts Options) *Extractor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Extractor{opts: opts, logger: opts.Logger}
}

// ExtractUnit writes the fact bundle of u and marks it extracted. Any
// previous bundle is removed first. On failure the partial bundle is
// removed and the cause recorded in the unit's properties, so the unit
// stays unextracted and the importers skip it.
func (x *Extractor) ExtractUnit(ctx context.Context, r *repo.Repository, u *repo.Unit) (*Result, error) {
	res := &Result{Kind: u.Kind(), Key: u.Key()}
	if u.Extracted() && !x.opts.Force {
		res.AlreadyExtracted = true
		x.logger.Debug("extract.unit.skip", "kind", u.Kind(), "unit", u.Key(), "reason", "already extracted")
		return res, nil
	}
	start := time.Now()

	if err := facts.RemoveBundle(u.FactsDir()); err != nil {
		return res, fmt.Errorf("remove old facts: %w", err)
	}
	w, err := facts.NewWriter(u.FactsDir(), x.opts.Compression)
	if err != nil {
		return res, err
	}
	walker := facts.NewWalker(w, x.logger)

	if u.UnitKind().IsJar() {
		err = x.extractJar(ctx, u.JarPath(), u.Hash(), w, walker, res)
	} else {
		err = x.extractProject(ctx, r, u, w, walker, res)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	res.Stats = w.Stats()
	res.SkippedFacts = walker.Skipped()
	res.Duration = time.Since(start)

	if err != nil {
		_ = facts.RemoveBundle(u.FactsDir())
		if ctx.Err() == nil {
			if merr := r.MarkFailed(u, err); merr != nil {
				x.logger.Warn("extract.unit.mark_failed", "unit", u.Key(), "err", merr)
			}
		}
		x.logger.Warn("extract.unit.failed", "kind", u.Kind(), "unit", u.Key(), "err", err)
		return res, fmt.Errorf("extract %s: %w", u.Key(), err)
	}
	if err := r.MarkExtracted(u, res.HasSource); err != nil {
		_ = facts.RemoveBundle(u.FactsDir())
		return res, fmt.Errorf("mark %s extracted: %w", u.Key(), err)
	}

	x.logger.Info("extract.unit.done",
		"kind", u.Kind(),
		"unit", u.Key(),
		"types", res.Types,
		"entities", res.Stats.Entities,
		"relations", res.Stats.Relations,
		"skipped_classes", res.SkippedClasses,
		"duration", res.Duration,
	)
	return res, nil
}

// extractJar walks every class file of the jar and records the jar itself.
func (x *Extractor) extractJar(ctx context.Context, jarPath, hash string, w *facts.Writer, walker *facts.Walker, res *Result) error {
	if jarPath == "" {
		return fmt.Errorf("unit has no jar")
	}
	zr, err := zip.OpenReader(jarPath)
	if err != nil {
		return fmt.Errorf("open jar: %w", err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := versions.ClassName(f.Name); !ok {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
		if err := x.walkClass(data, f.Name, w, walker, res); err != nil {
			return err
		}
	}

	return w.File(facts.FileFact{Kind: facts.FileJar, Name: filepath.Base(jarPath), Hash: hash})
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// walkClass parses one class file. Unreadable class files are logged and
// counted, never fatal.
func (x *Extractor) walkClass(data []byte, name string, w *facts.Writer, walker *facts.Walker, res *Result) error {
	td, err := classfile.Parse(data)
	if err != nil {
		res.SkippedClasses++
		x.logger.Warn("extract.class.skip", "path", name, "err", err)
		return nil
	}
	td.Path = name
	if err := walker.Walk(td); err != nil {
		return err
	}
	res.Types++
	return w.File(facts.FileFact{Kind: facts.FileClass, Name: td.FQN, Path: name})
}

// extractProject records bundled jars, then walks the Java sources, or the
// loose class files when there are none.
func (x *Extractor) extractProject(ctx context.Context, r *repo.Repository, u *repo.Unit, w *facts.Writer, walker *facts.Walker, res *Result) error {
	set, err := r.Content(u)
	if err != nil {
		return fmt.Errorf("list content: %w", err)
	}
	set = set.Filtered(x.opts.Filter)

	for _, jar := range set.JarFiles() {
		fp, err := fingerprint.ComputeFile(jar.FullPath)
		if err != nil {
			return fmt.Errorf("hash %s: %w", jar.Path, err)
		}
		if err := w.File(facts.FileFact{Kind: facts.FileJar, Name: path.Base(jar.Path), Path: jar.Path, Hash: fp.Primary}); err != nil {
			return err
		}
		if err := w.UsedJar(facts.UsedJar{Hash: fp.Primary}); err != nil {
			return err
		}
	}

	if sources := set.JavaFiles(); len(sources) > 0 {
		res.HasSource = true
		return x.walkSources(ctx, sources, w, walker, res)
	}

	for _, cf := range set.ClassFiles() {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(cf.FullPath)
		if err != nil {
			return fmt.Errorf("read %s: %w", cf.Path, err)
		}
		if err := x.walkClass(data, cf.Path, w, walker, res); err != nil {
			return err
		}
	}
	return nil
}

func (x *Extractor) walkSources(ctx context.Context, sources []repo.ContentFile, w *facts.Writer, walker *facts.Walker, res *Result) error {
	parser := javasrc.NewParser(x.logger)
	defer parser.Close()

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(src.FullPath)
		if err != nil {
			return fmt.Errorf("read %s: %w", src.Path, err)
		}
		decls, err := parser.Parse(ctx, src.Path, data)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			x.logger.Warn("extract.source.skip", "path", src.Path, "err", err)
			continue
		}
		fp := fingerprint.ComputeBytes(data)
		if err := w.File(facts.FileFact{Kind: facts.FileSource, Name: path.Base(src.Path), Path: src.Path, Hash: fp.Primary}); err != nil {
			return err
		}
		for _, td := range decls {
			if err := walker.Walk(td); err != nil {
				return err
			}
			res.Types++
		}
	}
	return nil
}
