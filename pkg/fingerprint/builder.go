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

package fingerprint

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Input is one file occurrence to fingerprint.
type Input struct {
	Project string
	// Path is the path reported in groups.
	Path string
	// File is the filesystem location to read.
	File string
}

// BuildOptions tunes BuildSharded.
type BuildOptions struct {
	Shards  int
	Workers int
	// OnFile is called once per input after it is processed. May be nil.
	OnFile func()
	Logger *slog.Logger
}

// BuildResult is the outcome of a sharded build.
type BuildResult struct {
	Index  *Index
	Files  int
	Errors int
}

type shard struct {
	mu  sync.Mutex
	occ []occurrence
}

// occurrence is a fingerprinted input tagged with its position in the
// input slice.
type occurrence struct {
	seq int
	fp  Fingerprint
	in  Input
}

type job struct {
	seq int
	in  Input
}

// index replays the shard's occurrences in input order.
func (s *shard) index() *Index {
	sort.Slice(s.occ, func(i, j int) bool { return s.occ[i].seq < s.occ[j].seq })
	ix := NewIndex()
	for _, o := range s.occ {
		ix.Add(o.fp, o.in.Project, o.in.Path)
	}
	return ix
}

// BuildSharded fingerprints inputs with a worker pool. Each fingerprint is
// routed to one of opts.Shards indices by the xxhash of its primary hash, so
// shards hold disjoint groups and are merged once the workers finish.
// Group paths follow the order of inputs regardless of worker scheduling.
// Unreadable files are logged and counted, not fatal.
func BuildSharded(ctx context.Context, inputs []Input, opts BuildOptions) (*BuildResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Shards <= 0 {
		opts.Shards = 16
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	shards := make([]*shard, opts.Shards)
	for i := range shards {
		shards[i] = &shard{}
	}

	jobs := make(chan job)
	var errorCount int32
	var processed int32

	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				in := j.in
				fp, err := ComputeFile(in.File)
				atomic.AddInt32(&processed, 1)
				if opts.OnFile != nil {
					opts.OnFile()
				}
				if err != nil {
					atomic.AddInt32(&errorCount, 1)
					logger.Warn("fingerprint.file.error", "path", in.File, "err", err)
					continue
				}
				s := shards[xxhash.Sum64String(fp.Primary)%uint64(len(shards))]
				s.mu.Lock()
				s.occ = append(s.occ, occurrence{seq: j.seq, fp: fp, in: in})
				s.mu.Unlock()
			}
		}()
	}

	var cancelled error
feed:
	for seq, in := range inputs {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		case jobs <- job{seq: seq, in: in}:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		return nil, cancelled
	}

	merged := NewIndex()
	for _, s := range shards {
		merged.Merge(s.index())
	}

	logger.Info("fingerprint.build.complete",
		"files", processed,
		"groups", merged.Len(),
		"errors", errorCount,
		"shards", len(shards),
	)

	return &BuildResult{Index: merged, Files: int(processed), Errors: int(errorCount)}, nil
}
