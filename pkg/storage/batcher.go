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

package storage

import (
	"context"
	"fmt"
	"strings"
)

// BulkInsert writes rows into table with multi-row INSERT statements, each
// holding at most maxArgs bound values.
func BulkInsert(ctx context.Context, q Querier, table string, cols []string, rows [][]any, maxArgs int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if maxArgs <= 0 || maxArgs > q.Dialect().MaxArgs() {
		maxArgs = q.Dialect().MaxArgs()
	}
	perStmt := maxArgs / len(cols)
	if perStmt == 0 {
		return 0, fmt.Errorf("table %s: %d columns exceed %d arguments", table, len(cols), maxArgs)
	}

	var total int64
	for start := 0; start < len(rows); start += perStmt {
		end := min(start+perStmt, len(rows))
		query, args, err := insertStatement(table, cols, rows[start:end])
		if err != nil {
			return total, err
		}
		n, err := q.Execute(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

func insertStatement(table string, cols []string, rows [][]any) (string, []any, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES ")

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(cols))
	for i, row := range rows {
		if len(row) != len(cols) {
			return "", nil, fmt.Errorf("table %s: row has %d values, want %d", table, len(row), len(cols))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
		args = append(args, row...)
	}
	return b.String(), args, nil
}

// Batcher buffers rows for one table and flushes them with BulkInsert once
// targetRows rows are pending.
type Batcher struct {
	q          Querier
	table      string
	cols       []string
	targetRows int
	maxArgs    int

	pending [][]any
	written int64
	flushes int
}

// NewBatcher creates a batcher writing through q.
func NewBatcher(q Querier, table string, cols []string, targetRows, maxArgs int) *Batcher {
	if targetRows <= 0 {
		targetRows = 500
	}
	return &Batcher{
		q:          q,
		table:      table,
		cols:       cols,
		targetRows: targetRows,
		maxArgs:    maxArgs,
	}
}

// Add queues one row, flushing when the batch is full.
func (b *Batcher) Add(ctx context.Context, row ...any) error {
	if len(row) != len(b.cols) {
		return fmt.Errorf("table %s: row has %d values, want %d", b.table, len(row), len(b.cols))
	}
	b.pending = append(b.pending, row)
	if len(b.pending) >= b.targetRows {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes every pending row.
func (b *Batcher) Flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	n, err := BulkInsert(ctx, b.q, b.table, b.cols, b.pending, b.maxArgs)
	b.written += n
	b.pending = b.pending[:0]
	b.flushes++
	return err
}

// Written is the number of rows inserted so far.
func (b *Batcher) Written() int64 {
	return b.written
}

// Flushes is the number of Flush calls that reached the store.
func (b *Batcher) Flushes() int {
	return b.flushes
}
