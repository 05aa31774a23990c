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
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by every operation on a closed backend.
	ErrClosed = errors.New("storage: backend is closed")
	// ErrNotFound is returned when a single-row lookup matches nothing.
	ErrNotFound = errors.New("storage: not found")
)

// Querier runs statements against a backend or an open transaction.
// Statements are written with ? placeholders and rebound for the dialect.
type Querier interface {
	// Query runs a read statement and materializes every row.
	Query(ctx context.Context, query string, args ...any) (*QueryResult, error)

	// Execute runs a mutation and returns the number of affected rows.
	Execute(ctx context.Context, query string, args ...any) (int64, error)

	// InsertReturningID runs an INSERT ending in a RETURNING clause and
	// returns the single generated key.
	InsertReturningID(ctx context.Context, query string, args ...any) (int64, error)

	// Dialect reports the SQL flavor behind the querier.
	Dialect() Dialect
}

// Backend is the interface that all storage backends must implement.
type Backend interface {
	Querier

	// WithTx runs fn inside a transaction, committing when fn returns nil
	// and rolling back otherwise. fn must only use the Querier it is given.
	WithTx(ctx context.Context, fn func(Querier) error) error

	// Close releases any resources held by the backend.
	Close() error
}

// QueryResult holds the rows of a query. Values are normalized to int64,
// float64, string, bool or nil.
type QueryResult struct {
	Headers []string
	Rows    [][]any
}

// Len returns the number of rows.
func (r *QueryResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Int64 returns the value at row, col as an int64. NULL reads as 0.
func (r *QueryResult) Int64(row, col int) int64 {
	return AsInt64(r.Rows[row][col])
}

// String returns the value at row, col as a string. NULL reads as "".
func (r *QueryResult) String(row, col int) string {
	return AsString(r.Rows[row][col])
}

// NullString returns the value at row, col, or nil when it is NULL.
func (r *QueryResult) NullString(row, col int) *string {
	v := r.Rows[row][col]
	if v == nil {
		return nil
	}
	s := AsString(v)
	return &s
}

// AsInt64 converts a scanned value to int64.
func AsInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		var n int64
		_, _ = fmt.Sscan(x, &n)
		return n
	default:
		return 0
	}
}

// AsString converts a scanned value to string.
func AsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
