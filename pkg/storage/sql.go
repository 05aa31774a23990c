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
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

// DefaultDBFile is the sqlite file created under DataDir when no DSN is set.
const DefaultDBFile = "factbase.db"

// Config configures a SQL backend.
type Config struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string

	// DSN is the data source name. For sqlite it may be a plain file path.
	// Defaults to <DataDir>/factbase.db for sqlite.
	DSN string

	// DataDir holds the sqlite file when DSN is empty.
	DataDir string

	// SkipMigrations leaves the schema untouched on open.
	SkipMigrations bool

	Logger *slog.Logger
}

// SQLBackend implements Backend on database/sql. sqlite runs through the
// pure-Go modernc driver, postgres through pgx.
type SQLBackend struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
	mu      sync.RWMutex
	closed  bool
}

// Open connects to the configured store and applies pending migrations.
func Open(ctx context.Context, config Config) (*SQLBackend, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dialect, err := ParseDialect(config.Driver)
	if err != nil {
		return nil, err
	}

	dsn, err := resolveDSN(dialect, config)
	if err != nil {
		return nil, err
	}

	if !config.SkipMigrations {
		if err := Migrate(dialect, dsn, logger); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// One connection keeps writers serialized and transactions visible
		// to every statement of the run.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	logger.Debug("storage.open", "driver", string(dialect))
	return &SQLBackend{db: db, dialect: dialect, logger: logger}, nil
}

// resolveDSN fills in the sqlite default path and pragmas.
func resolveDSN(d Dialect, config Config) (string, error) {
	if d == DialectPostgres {
		if config.DSN == "" {
			return "", errors.New("postgres driver requires a DSN")
		}
		return config.DSN, nil
	}

	dsn := config.DSN
	if dsn == "" {
		dir := config.DataDir
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dir, DefaultDBFile)
	}
	return SQLiteDSN(dsn), nil
}

// SQLiteDSN appends the pragmas every connection needs unless the DSN
// already sets its own.
func SQLiteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	pragmas := url.Values{}
	for _, p := range []string{
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"foreign_keys(1)",
		"busy_timeout(5000)",
	} {
		pragmas.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn + sep + pragmas.Encode()
}

// Dialect reports the SQL flavor of the backend.
func (b *SQLBackend) Dialect() Dialect {
	return b.dialect
}

// DB returns the underlying handle for advanced operations.
// Use with caution - prefer the Backend interface methods.
func (b *SQLBackend) DB() *sql.DB {
	return b.db
}

func (b *SQLBackend) check(ctx context.Context) error {
	if b.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}

// Query executes a read statement.
func (b *SQLBackend) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.check(ctx); err != nil {
		return nil, err
	}
	return runQuery(ctx, b.db, b.dialect, query, args)
}

// Execute runs a mutation.
func (b *SQLBackend) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(ctx); err != nil {
		return 0, err
	}
	return runExec(ctx, b.db, b.dialect, query, args)
}

// InsertReturningID runs an INSERT ... RETURNING statement.
func (b *SQLBackend) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(ctx); err != nil {
		return 0, err
	}
	return runInsertReturning(ctx, b.db, b.dialect, query, args)
}

// WithTx runs fn in a transaction. The backend lock is held for the whole
// transaction.
func (b *SQLBackend) WithTx(ctx context.Context, fn func(Querier) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(ctx); err != nil {
		return err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txQuerier{tx: tx, dialect: b.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			b.logger.Error("storage.tx.rollback.error", "err", err, "rollback_err", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (b *SQLBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

type txQuerier struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *txQuerier) Dialect() Dialect { return t.dialect }

func (t *txQuerier) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	return runQuery(ctx, t.tx, t.dialect, query, args)
}

func (t *txQuerier) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	return runExec(ctx, t.tx, t.dialect, query, args)
}

func (t *txQuerier) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	return runInsertReturning(ctx, t.tx, t.dialect, query, args)
}

// runner is satisfied by *sql.DB and *sql.Tx.
type runner interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func runQuery(ctx context.Context, r runner, d Dialect, query string, args []any) (*QueryResult, error) {
	rows, err := r.QueryContext(ctx, d.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	result := &QueryResult{Headers: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i := range vals {
			vals[i] = normalize(vals[i])
		}
		result.Rows = append(result.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

func runExec(ctx context.Context, r runner, d Dialect, query string, args []any) (int64, error) {
	res, err := r.ExecContext(ctx, d.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("execute failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func runInsertReturning(ctx context.Context, r runner, d Dialect, query string, args []any) (int64, error) {
	var id int64
	if err := r.QueryRowContext(ctx, d.Rebind(query), args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert failed: %w", err)
	}
	return id, nil
}
