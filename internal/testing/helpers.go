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

package testing

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/storage"
)

// SetupTestStore creates a migrated sqlite store for testing.
// The store is automatically closed when the test finishes.
//
// This helper:
//   - Creates a temporary directory
//   - Opens a sqlite database file in it
//   - Applies the embedded migrations
//   - Registers cleanup to close the backend
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    store := testing.SetupTestStore(t)
//
//	    id := testing.InsertTestUnit(t, store, "library", "guava.jar", "END_ENTITY")
//	    testing.InsertTestEntity(t, store, id, "CLASS", "com.google.common.base.Joiner", "")
//
//	    // Run your tests...
//	}
func SetupTestStore(t *testing.T) *storage.SQLBackend {
	t.Helper()

	backend, err := storage.Open(context.Background(), storage.Config{
		Driver:  "sqlite",
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}

	t.Cleanup(func() {
		_ = backend.Close()
	})

	return backend
}

// InsertTestUnit adds a unit row with the given stage ("" leaves it NULL)
// and returns its id.
//
// Example:
//
//	id := testing.InsertTestUnit(t, store, "project", "batch/app", "")
func InsertTestUnit(t *testing.T, q storage.Querier, kind, key, stage string) int64 {
	t.Helper()

	ctx := context.Background()
	id, err := storage.InsertUnit(ctx, q, kind, key, filepath.Base(key), "")
	if err != nil {
		t.Fatalf("failed to insert unit %s: %v", key, err)
	}
	if stage != "" {
		if err := storage.SetUnitStage(ctx, q, id, stage); err != nil {
			t.Fatalf("failed to set stage of %s: %v", key, err)
		}
	}
	return id
}

// InsertTestEntity adds one entity row to a unit and returns its id.
func InsertTestEntity(t *testing.T, q storage.Querier, unitID int64, kind, fqn, params string) int64 {
	t.Helper()

	id, err := storage.InsertEntity(context.Background(), q, unitID, kind, fqn, params)
	if err != nil {
		t.Fatalf("failed to insert entity %s%s: %v", fqn, params, err)
	}
	return id
}

// CountRows counts the rows of table, restricted to unitID when it is
// positive.
func CountRows(t *testing.T, q storage.Querier, table string, unitID int64) int64 {
	t.Helper()

	n, err := storage.CountRows(context.Background(), q, table, unitID)
	if err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}

// UnitStage returns the recorded stage of a unit, "" when NULL.
func UnitStage(t *testing.T, q storage.Querier, kind, key string) string {
	t.Helper()

	row, err := storage.FindUnit(context.Background(), q, kind, key)
	if err != nil {
		t.Fatalf("failed to find unit %s: %v", key, err)
	}
	return row.StageName()
}

// Bundle is the content of a fact bundle written by WriteBundle.
type Bundle struct {
	Entities   []facts.Entity
	Relations  []facts.Relation
	Parameters []facts.Parameter
	Files      []facts.FileFact
	UsedJars   []facts.UsedJar
}

// WriteBundle writes b as an uncompressed bundle into dir.
//
// Example:
//
//	dir := t.TempDir()
//	testing.WriteBundle(t, dir, testing.Bundle{
//	    Entities: []facts.Entity{{Kind: facts.EntityClass, FQN: "a.B"}},
//	})
func WriteBundle(t *testing.T, dir string, b Bundle) {
	t.Helper()

	w, err := facts.NewWriter(dir, facts.CompressionNone)
	if err != nil {
		t.Fatalf("failed to create bundle: %v", err)
	}
	for _, e := range b.Entities {
		must(t, w.Entity(e))
	}
	for _, r := range b.Relations {
		must(t, w.Relation(r))
	}
	for _, p := range b.Parameters {
		must(t, w.Parameter(p))
	}
	for _, f := range b.Files {
		must(t, w.File(f))
	}
	for _, j := range b.UsedJars {
		must(t, w.UsedJar(j))
	}
	must(t, w.Close())
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("failed to write bundle: %v", err)
	}
}

// Unit is an in-memory import candidate backed by a bundle directory.
type Unit struct {
	UnitKind string
	UnitKey  string
	UnitHash string
	Dir      string
	Done     bool
}

func (u *Unit) Key() string  { return u.UnitKey }
func (u *Unit) Kind() string { return u.UnitKind }
func (u *Unit) Name() string { return filepath.Base(u.UnitKey) }
func (u *Unit) Hash() string { return u.UnitHash }

func (u *Unit) Extracted() bool { return u.Done }

func (u *Unit) Facts() *facts.Reader { return facts.NewReader(u.Dir) }

// NewUnit writes b into a fresh directory and returns an extracted unit
// reading it.
func NewUnit(t *testing.T, kind, key string, b Bundle) *Unit {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "facts")
	WriteBundle(t, dir, b)
	return &Unit{UnitKind: kind, UnitKey: key, Dir: dir, Done: true}
}
