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

package importer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/storage"
)

// Candidate is a unit offered to an importer. repo.Unit satisfies it.
type Candidate interface {
	Key() string
	Kind() string
	Name() string
	Hash() string
	// Extracted reports whether the upstream extraction completed.
	Extracted() bool
	Facts() *facts.Reader
}

// Options tunes both importers.
type Options struct {
	// BatchSize is the number of rows per bulk INSERT. Defaults to 500.
	BatchSize int
	// MaxArgs caps bound arguments per statement. 0 uses the dialect limit.
	MaxArgs int
	// UnitTimeout bounds a single unit. A unit that times out is Failed and
	// the run continues.
	UnitTimeout time.Duration
	// UnknownCacheSize bounds the in-run placeholder cache.
	UnknownCacheSize int
	// OnUnit is called after each unit. May be nil.
	OnUnit func(UnitResult)
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 500
	}
	if o.UnknownCacheSize <= 0 {
		o.UnknownCacheSize = 10000
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// unitError confines a failure to one unit: the unit is reported Failed
// and the run moves on.
type unitError struct {
	err error
}

func (e *unitError) Error() string { return e.err.Error() }
func (e *unitError) Unwrap() error { return e.err }

// storeError marks an error raised by the store while a bundle was being
// streamed, so it is not mistaken for a bundle read error.
type storeError struct {
	err error
}

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

// classifyStream sorts an error returned by a bundle iteration.
func classifyStream(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var se *storeError
	if errors.As(err, &se) {
		return se.err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &unitError{err: err}
}

// unitLocks serializes work on a unit within the process.
var unitLocks sync.Map

func lockUnit(kind, key string) func() {
	v, _ := unitLocks.LoadOrStore(kind+"\x00"+key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

type stepFunc func(ctx context.Context, c Candidate, res *UnitResult) error

// base holds what both importers share.
type base struct {
	backend storage.Backend
	opts    Options
	logger  *slog.Logger
}

// run feeds candidates to step one at a time. Per-unit failures are
// recorded and skipped; store errors and cancellation end the run and are
// returned together with the partial report.
func (b *base) run(ctx context.Context, stage Stage, candidates []Candidate, step stepFunc) (*Report, error) {
	report := newReport(stage)
	b.logger.Info("import.run.start", "run_id", report.RunID, "stage", stage.String(), "units", len(candidates))

	var abort error
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			abort = err
			break
		}
		res, err := b.runUnit(ctx, stage, c, step)
		if err != nil {
			abort = err
			b.logger.Error("import.run.abort", "run_id", report.RunID, "unit", c.Key(), "err", err)
			break
		}
		report.add(res)
		recordUnit(stage, res)
		if b.opts.OnUnit != nil {
			b.opts.OnUnit(res)
		}
	}

	report.finish(abort)
	recordRun(report)
	b.logger.Info("import.run.complete",
		"run_id", report.RunID,
		"stage", stage.String(),
		"imported", report.Count(Imported),
		"reimported", report.Count(ReimportedAfterRollback),
		"skipped_complete", report.Count(SkippedComplete),
		"skipped_incomplete", report.Count(SkippedIncomplete),
		"skipped_unexpected", report.Count(SkippedUnexpectedStage),
		"failed", report.Count(Failed),
		"duration", report.Duration(),
	)
	return report, abort
}

// runUnit runs step for one candidate under the unit lock. A returned
// error aborts the run.
func (b *base) runUnit(ctx context.Context, stage Stage, c Candidate, step stepFunc) (UnitResult, error) {
	res := UnitResult{Unit: c.Name(), Kind: c.Kind(), Key: c.Key()}
	start := time.Now()

	unlock := lockUnit(c.Kind(), c.Key())
	defer unlock()

	uctx := ctx
	if b.opts.UnitTimeout > 0 {
		var cancel context.CancelFunc
		uctx, cancel = context.WithTimeout(ctx, b.opts.UnitTimeout)
		defer cancel()
	}

	b.logger.Debug("import.unit.start", "stage", stage.String(), "kind", c.Kind(), "unit", c.Key())
	err := step(uctx, c, &res)
	res.Duration = time.Since(start)

	if err == nil {
		b.logger.Debug("import.unit.done", "stage", stage.String(), "unit", c.Key(), "outcome", res.Outcome, "duration", res.Duration)
		return res, nil
	}

	var ue *unitError
	switch {
	case ctx.Err() != nil:
		return res, ctx.Err()
	case b.opts.UnitTimeout > 0 && errors.Is(err, context.DeadlineExceeded):
		res.Outcome = Failed
		res.Reason = "unit timeout exceeded"
	case errors.As(err, &ue):
		res.Outcome = Failed
		res.Reason = ue.err.Error()
	default:
		return res, err
	}
	b.logger.Warn("import.unit.failed", "stage", stage.String(), "kind", c.Kind(), "unit", c.Key(), "reason", res.Reason)
	return res, nil
}

func (b *base) skip(stage Stage, c Candidate, res *UnitResult, outcome Outcome, reason string) {
	res.Outcome = outcome
	res.Reason = reason
	b.logger.Info("import.unit.skip", "stage", stage.String(), "kind", c.Kind(), "unit", c.Key(), "outcome", outcome, "reason", reason)
}

// newBatcher returns a batcher whose flush errors are tagged as store
// errors.
func (b *base) newBatcher(q storage.Querier, table string, cols []string) *taggedBatcher {
	return &taggedBatcher{Batcher: storage.NewBatcher(q, table, cols, b.opts.BatchSize, b.opts.MaxArgs), table: table}
}

type taggedBatcher struct {
	*storage.Batcher
	table string
	rows  int
}

func (t *taggedBatcher) Add(ctx context.Context, row ...any) error {
	if err := t.Batcher.Add(ctx, row...); err != nil {
		return &storeError{err: err}
	}
	t.rows++
	return nil
}

func (t *taggedBatcher) Flush(ctx context.Context) error {
	if err := t.Batcher.Flush(ctx); err != nil {
		return &storeError{err: err}
	}
	recordRows(t.table, t.rows)
	t.rows = 0
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func nullID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}

func locationColumns(l facts.Location) []any {
	return []any{nullString(l.FQN), nullString(normalizePath(l.Path)), nullInt(l.Offset), nullInt(l.Length)}
}
