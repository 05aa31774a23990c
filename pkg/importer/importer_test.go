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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	factest "github.com/kraklabs/factbase/internal/testing"
	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/storage"
)

func ptr(i int) *int { return &i }

func appBundle() factest.Bundle {
	loc := facts.Location{FQN: "a.B", Path: "./src/a/B.java", Offset: ptr(10), Length: ptr(42)}
	return factest.Bundle{
		Entities: []facts.Entity{
			{Kind: facts.EntityPackage, FQN: "a"},
			{Kind: facts.EntityClass, FQN: "a.B", Modifiers: facts.ModPublic, Location: loc},
			{Kind: facts.EntityField, FQN: "a.B.names", Location: loc},
			{Kind: facts.EntityMethod, FQN: "a.B.run", Params: "(int)", Location: loc},
			// duplicate declarations are stored once
			{Kind: facts.EntityMethod, FQN: "a.B.run", Params: "(int)", Location: loc},
		},
		Relations: []facts.Relation{
			{Kind: facts.RelationInside, Source: "a.B", Target: "a", Location: loc},
			{Kind: facts.RelationInside, Source: "a.B.run(int)", Target: "a.B", Location: loc},
			{Kind: facts.RelationExtends, Source: "a.B", Target: "lib.Base", Location: loc},
			{Kind: facts.RelationHolds, Source: "a.B.names", Target: "java.util.List<java.lang.String>", Location: loc},
			{Kind: facts.RelationReturns, Source: "a.B.run(int)", Target: "java.util.List", Location: loc},
		},
		Parameters: []facts.Parameter{
			{Name: "count", Position: 0, Type: "int", Owner: "a.B.run(int)", Location: loc},
		},
		Files: []facts.FileFact{
			{Kind: facts.FileSource, Name: "B.java", Path: "./src/a/B.java"},
		},
		UsedJars: []facts.UsedJar{{Hash: "j1"}, {Hash: "j1"}, {Hash: "j2"}},
	}
}

func libBundle() factest.Bundle {
	return factest.Bundle{
		Entities: []facts.Entity{
			{Kind: facts.EntityPackage, FQN: "lib"},
			{Kind: facts.EntityClass, FQN: "lib.Base"},
		},
		Relations: []facts.Relation{
			{Kind: facts.RelationInside, Source: "lib.Base", Target: "lib"},
			{Kind: facts.RelationExtends, Source: "lib.Base", Target: "java.lang.Object"},
		},
	}
}

func candidates(units ...*factest.Unit) []Candidate {
	out := make([]Candidate, len(units))
	for i, u := range units {
		out[i] = u
	}
	return out
}

// relationTargets maps each relation target of a unit to its resolved id.
func relationTargets(t *testing.T, q storage.Querier, unitID int64) map[string]int64 {
	t.Helper()
	r, err := q.Query(context.Background(), `SELECT target, target_eid FROM relations WHERE unit_id = ?`, unitID)
	require.NoError(t, err)
	out := make(map[string]int64, r.Len())
	for i := range r.Rows {
		out[r.String(i, 0)] = r.Int64(i, 1)
	}
	return out
}

func TestEntities_ImportThenSkip(t *testing.T) {
	store := factest.SetupTestStore(t)
	ctx := context.Background()
	app := factest.NewUnit(t, "project", "batch/app", appBundle())

	imp := NewEntitiesImporter(store, Options{BatchSize: 2})
	report, err := imp.Run(ctx, candidates(app))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	res := report.Results[0]
	assert.Equal(t, Imported, res.Outcome)
	assert.Equal(t, 4, res.Entities)
	assert.Equal(t, 1, res.Parameters)
	assert.Equal(t, 1, res.Files)
	assert.Positive(t, res.UnitID)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "END_ENTITY", report.Stage)

	assert.Equal(t, "END_ENTITY", factest.UnitStage(t, store, "project", "batch/app"))
	assert.Equal(t, int64(4), factest.CountRows(t, store, storage.TableEntities, res.UnitID))
	assert.Equal(t, int64(1), factest.CountRows(t, store, storage.TableParameters, res.UnitID))
	assert.Equal(t, int64(2), factest.CountRows(t, store, storage.TableUsedJars, res.UnitID))
	assert.Equal(t, int64(0), factest.CountRows(t, store, storage.TableRelations, res.UnitID))

	r, err := store.Query(ctx, `SELECT path FROM files WHERE unit_id = ?`, res.UnitID)
	require.NoError(t, err)
	assert.Equal(t, "src/a/B.java", r.String(0, 0))

	// Second run is a no-op.
	report, err = imp.Run(ctx, candidates(app))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(SkippedComplete))
	assert.Equal(t, res.UnitID, report.Results[0].UnitID)
	assert.Equal(t, int64(4), factest.CountRows(t, store, storage.TableEntities, 0))
	assert.Equal(t, int64(1), factest.CountRows(t, store, storage.TableUnits, 0))
}

func TestEntities_RollsBackPartialUnit(t *testing.T) {
	store := factest.SetupTestStore(t)
	ctx := context.Background()

	// A crashed import: unit row without stage and some of its entities.
	stale := factest.InsertTestUnit(t, store, "project", "batch/app", "")
	for _, fqn := range []string{"a.Old", "a.Old2", "a.B"} {
		factest.InsertTestEntity(t, store, stale, "CLASS", fqn, "")
	}

	app := factest.NewUnit(t, "project", "batch/app", appBundle())
	report, err := NewEntitiesImporter(store, Options{}).Run(ctx, candidates(app))
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, ReimportedAfterRollback, res.Outcome)
	assert.NotEqual(t, stale, res.UnitID)
	assert.Equal(t, "END_ENTITY", factest.UnitStage(t, store, "project", "batch/app"))
	assert.Equal(t, int64(1), factest.CountRows(t, store, storage.TableUnits, 0))
	assert.Equal(t, int64(4), factest.CountRows(t, store, storage.TableEntities, 0))
	assert.Equal(t, int64(0), factest.CountRows(t, store, storage.TableEntities, stale))
}

func TestEntities_SkipsIncompleteAndUnexpected(t *testing.T) {
	store := factest.SetupTestStore(t)
	ctx := context.Background()

	pending := factest.NewUnit(t, "project", "batch/pending", appBundle())
	pending.Done = false

	odd := factest.NewUnit(t, "project", "batch/odd", appBundle())
	id := factest.InsertTestUnit(t, store, "project", "batch/odd", "END_WORLD")

	report, err := NewEntitiesImporter(store, Options{}).Run(ctx, candidates(pending, odd))
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	assert.Equal(t, SkippedIncomplete, report.Results[0].Outcome)
	assert.Equal(t, SkippedUnexpectedStage, report.Results[1].Outcome)
	assert.Contains(t, report.Results[1].Reason, "END_WORLD")
	assert.Equal(t, id, report.Results[1].UnitID)

	_, err = storage.FindUnit(ctx, store, "project", "batch/pending")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, "END_WORLD", factest.UnitStage(t, store, "project", "batch/odd"))
}

func TestEntities_CorruptBundleFailsUnit(t *testing.T) {
	store := factest.SetupTestStore(t)
	ctx := context.Background()

	bad := factest.NewUnit(t, "project", "batch/bad", appBundle())
	require.NoError(t, os.WriteFile(filepath.Join(bad.Dir, facts.ParametersFile), []byte("{not json\n"), 0644))
	good := factest.NewUnit(t, "project", "batch/good", appBundle())

	var seen []Outcome
	opts := Options{OnUnit: func(r UnitResult) { seen = append(seen, r.Outcome) }}
	report, err := NewEntitiesImporter(store, opts).Run(ctx, candidates(bad, good))
	require.NoError(t, err)

	assert.Equal(t, []Outcome{Failed, Imported}, seen)
	assert.Contains(t, report.Results[0].Reason, facts.ParametersFile)
	assert.Zero(t, report.Results[0].UnitID)

	// The failed unit left nothing behind.
	_, err = storage.FindUnit(ctx, store, "project", "batch/bad")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, int64(4), factest.CountRows(t, store, storage.TableEntities, 0))
}

func TestEntities_StoreErrorAborts(t *testing.T) {
	store := factest.SetupTestStore(t)
	ctx := context.Background()

	first := factest.NewUnit(t, "project", "batch/first", appBundle())
	second := factest.NewUnit(t, "project", "batch/second", appBundle())

	opts := Options{OnUnit: func(UnitResult) { _ = store.Close() }}
	report, err := NewEntitiesImporter(store, opts).Run(ctx, candidates(first, second))
	require.ErrorIs(t, err, storage.ErrClosed)
	require.NotNil(t, report)

	require.Len(t, report.Results, 1)
	assert.Equal(t, Imported, report.Results[0].Outcome)
	assert.NotEmpty(t, report.Aborted)
	assert.False(t, report.Finished.IsZero())
}

func TestEntities_Cancelled(t *testing.T) {
	store := factest.SetupTestStore(t)
	app := factest.NewUnit(t, "project", "batch/app", appBundle())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewEntitiesImporter(store, Options{}).Run(ctx, candidates(app))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Results)
	assert.Equal(t, int64(0), factest.CountRows(t, store, storage.TableUnits, 0))
}

func TestEntities_UnitTimeoutFailsEachUnit(t *testing.T) {
	store := factest.SetupTestStore(t)
	ctx := context.Background()

	first := factest.NewUnit(t, "project", "batch/first", appBundle())
	second := factest.NewUnit(t, "library", "lib", libBundle())

	report, err := NewEntitiesImporter(store, Options{UnitTimeout: time.Nanosecond}).Run(ctx, candidates(first, second))
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		assert.Equal(t, Failed, res.Outcome, res.Key)
		assert.Equal(t, "unit timeout exceeded", res.Reason, res.Key)
		assert.Zero(t, res.UnitID, res.Key)
	}
	assert.Empty(t, report.Aborted)
	assert.Equal(t, int64(0), factest.CountRows(t, store, storage.TableUnits, 0))
	assert.Equal(t, int64(0), factest.CountRows(t, store, storage.TableEntities, 0))
}

func importEntities(t *testing.T, store storage.Backend, units ...*factest.Unit) {
	t.Helper()
	report, err := NewEntitiesImporter(store, Options{}).Run(context.Background(), candidates(units...))
	require.NoError(t, err)
	for _, res := range report.Results {
		require.Contains(t, []Outcome{Imported, SkippedComplete}, res.Outcome, res.Key)
	}
}

func TestStructural_ResolvesTargets(t *testing.T) {
	store := factest.SetupTestStore(t)
	ctx := context.Background()

	lib := factest.NewUnit(t, "library", "lib", libBundle())
	app := factest.NewUnit(t, "project", "batch/app", appBundle())
	importEntities(t, store, lib, app)

	report, err := NewStructuralImporter(store, Options{}).Run(ctx, candidates(lib, app))
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, 2, report.Count(Imported))
	assert.Equal(t, "END_STRUCTURAL", report.Stage)

	appRes := report.Results[1]
	assert.Equal(t, 5, appRes.Relations)
	assert.Equal(t, "END_STRUCTURAL", factest.UnitStage(t, store, "project", "batch/app"))

	libRow, err := storage.FindUnit(ctx, store, "library", "lib")
	require.NoError(t, err)
	base, err := storage.FindEntity(ctx, store, libRow.ID, "lib.Base", "")
	require.NoError(t, err)
	appClass, err := storage.FindEntity(ctx, store, appRes.UnitID, "a.B", "")
	require.NoError(t, err)
	pkg, err := storage.FindEntity(ctx, store, appRes.UnitID, "a", "")
	require.NoError(t, err)

	targets := relationTargets(t, store, appRes.UnitID)
	assert.Equal(t, pkg.ID, targets["a"], "unit-local target")
	assert.Equal(t, appClass.ID, targets["a.B"], "unit-local target")
	assert.Equal(t, base.ID, targets["lib.Base"], "library target")

	// Parameterized and raw uses of a missing type share one placeholder.
	list := targets["java.util.List"]
	assert.Positive(t, list)
	assert.Equal(t, list, targets["java.util.List<java.lang.String>"])

	system, err := storage.FindUnit(ctx, store, SystemUnitKind, SystemUnitKey)
	require.NoError(t, err)
	assert.Equal(t, "END_STRUCTURAL", system.StageName())
	placeholder, err := storage.FindEntity(ctx, store, system.ID, "java.util.List", "")
	require.NoError(t, err)
	assert.Equal(t, list, placeholder.ID)
	assert.Equal(t, 1, appRes.Unknowns)
	assert.Equal(t, 1, report.Results[0].Unknowns, "java.lang.Object from the library")

	// Second run is a no-op.
	report, err = NewStructuralImporter(store, Options{}).Run(ctx, candidates(lib, app))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(SkippedComplete))
	assert.Equal(t, int64(7), factest.CountRows(t, store, storage.TableRelations, 0))
}

func TestStructural_PrefersUsedJarVersion(t *testing.T) {
	store := factest.SetupTestStore(t)
	ctx := context.Background()

	v1 := factest.NewUnit(t, "library", "lib-1.0", libBundle())
	v1.UnitHash = "h1"
	v2 := factest.NewUnit(t, "library", "lib-2.0", libBundle())
	v2.UnitHash = "h2"
	bundle := appBundle()
	bundle.UsedJars = []facts.UsedJar{{Hash: "h2"}}
	app := factest.NewUnit(t, "project", "batch/app", bundle)
	other := factest.NewUnit(t, "project", "batch/other", appBundle())
	importEntities(t, store, v1, v2, app, other)

	report, err := NewStructuralImporter(store, Options{}).Run(ctx, candidates(v1, v2, app, other))
	require.NoError(t, err)
	require.Equal(t, 4, report.Count(Imported))

	base := func(key string) int64 {
		row, err := storage.FindUnit(ctx, store, "library", key)
		require.NoError(t, err)
		ref, err := storage.FindEntity(ctx, store, row.ID, "lib.Base", "")
		require.NoError(t, err)
		return ref.ID
	}
	oldBase, newBase := base("lib-1.0"), base("lib-2.0")
	require.Less(t, oldBase, newBase)

	assert.Equal(t, newBase, relationTargets(t, store, report.Results[2].UnitID)["lib.Base"], "used jar version")
	assert.Equal(t, oldBase, relationTargets(t, store, report.Results[3].UnitID)["lib.Base"], "no matching used jar")
}

func TestStructural_PlaceholdersStableAcrossRuns(t *testing.T) {
	store := factest.SetupTestStore(t)
	ctx := context.Background()

	first := factest.NewUnit(t, "project", "batch/first", appBundle())
	importEntities(t, store, first)
	report, err := NewStructuralImporter(store, Options{}).Run(ctx, candidates(first))
	require.NoError(t, err)
	firstTargets := relationTargets(t, store, report.Results[0].UnitID)

	second := factest.NewUnit(t, "project", "batch/second", appBundle())
	importEntities(t, store, second)
	report, err = NewStructuralImporter(store, Options{}).Run(ctx, candidates(second))
	require.NoError(t, err)
	secondTargets := relationTargets(t, store, report.Results[0].UnitID)

	assert.Equal(t, firstTargets["java.util.List"], secondTargets["java.util.List"])
	assert.Equal(t, firstTargets["lib.Base"], secondTargets["lib.Base"])
	assert.Zero(t, report.Results[0].Unknowns)

	system, err := storage.FindUnit(ctx, store, SystemUnitKind, SystemUnitKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), factest.CountRows(t, store, storage.TableEntities, system.ID))
}

func TestStructural_RequiresEntityStage(t *testing.T) {
	store := factest.SetupTestStore(t)
	ctx := context.Background()

	missing := factest.NewUnit(t, "project", "batch/missing", appBundle())
	unset := factest.NewUnit(t, "project", "batch/unset", appBundle())
	factest.InsertTestUnit(t, store, "project", "batch/unset", "")

	report, err := NewStructuralImporter(store, Options{}).Run(ctx, candidates(missing, unset))
	require.NoError(t, err)
	assert.Equal(t, SkippedIncomplete, report.Results[0].Outcome)
	assert.Equal(t, SkippedUnexpectedStage, report.Results[1].Outcome)
	assert.Equal(t, "", factest.UnitStage(t, store, "project", "batch/unset"))
}

func TestStructural_RollsBackPartialRelations(t *testing.T) {
	store := factest.SetupTestStore(t)
	ctx := context.Background()

	app := factest.NewUnit(t, "project", "batch/app", appBundle())
	importEntities(t, store, app)
	row, err := storage.FindUnit(ctx, store, "project", "batch/app")
	require.NoError(t, err)

	_, err = store.Execute(ctx, `INSERT INTO relations (unit_id, kind, source, target) VALUES (?, 'USES', 'a.B', 'x.Stale')`, row.ID)
	require.NoError(t, err)

	report, err := NewStructuralImporter(store, Options{}).Run(ctx, candidates(app))
	require.NoError(t, err)
	assert.Equal(t, ReimportedAfterRollback, report.Results[0].Outcome)
	assert.Equal(t, int64(5), factest.CountRows(t, store, storage.TableRelations, row.ID))
	assert.NotContains(t, relationTargets(t, store, row.ID), "x.Stale")
}

func TestStructural_CorruptRelationsFailUnit(t *testing.T) {
	store := factest.SetupTestStore(t)
	ctx := context.Background()

	app := factest.NewUnit(t, "project", "batch/app", appBundle())
	importEntities(t, store, app)
	require.NoError(t, os.WriteFile(filepath.Join(app.Dir, facts.RelationsFile), []byte(`{"kind":"USES","source":"a.B","target":"x.Missing"}`+"\n{bad\n"), 0644))

	report, err := NewStructuralImporter(store, Options{}).Run(ctx, candidates(app))
	require.NoError(t, err)
	assert.Equal(t, Failed, report.Results[0].Outcome)
	assert.Equal(t, "END_ENTITY", factest.UnitStage(t, store, "project", "batch/app"))
	assert.Equal(t, int64(0), factest.CountRows(t, store, storage.TableRelations, 0))

	// The placeholder created before the failure was rolled back.
	_, err = storage.FindUnit(ctx, store, SystemUnitKind, SystemUnitKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUnknownCache_DiscardForgetsRolledBackRows(t *testing.T) {
	store := factest.SetupTestStore(t)
	ctx := context.Background()

	cache, err := NewUnknownCache(8)
	require.NoError(t, err)

	err = store.WithTx(ctx, func(q storage.Querier) error {
		_, err := cache.Resolve(ctx, q, "x.Gone")
		require.NoError(t, err)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	cache.Discard()
	assert.Zero(t, cache.Len())

	var id1, id2 int64
	require.NoError(t, store.WithTx(ctx, func(q storage.Querier) error {
		var err error
		if id1, err = cache.Resolve(ctx, q, "x.Gone"); err != nil {
			return err
		}
		id2, err = cache.Resolve(ctx, q, "x.Gone")
		return err
	}))
	assert.Equal(t, 1, cache.Commit())
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, cache.Len())

	system, err := storage.FindUnit(ctx, store, SystemUnitKind, SystemUnitKey)
	require.NoError(t, err)
	ref, err := storage.FindEntity(ctx, store, system.ID, "x.Gone", "")
	require.NoError(t, err)
	assert.Equal(t, id1, ref.ID)
	assert.Equal(t, string(facts.EntityUnknown), ref.Kind)
}

func TestLibraryTypeModel(t *testing.T) {
	store := factest.SetupTestStore(t)
	ctx := context.Background()

	ready := factest.InsertTestUnit(t, store, "library", "ready", "END_ENTITY")
	cls := factest.InsertTestEntity(t, store, ready, "CLASS", "lib.A", "")
	factest.InsertTestEntity(t, store, ready, "METHOD", "lib.A.m", "()")
	partial := factest.InsertTestUnit(t, store, "library", "partial", "")
	factest.InsertTestEntity(t, store, partial, "CLASS", "lib.P", "")
	proj := factest.InsertTestUnit(t, store, "project", "batch/app", "END_STRUCTURAL")
	factest.InsertTestEntity(t, store, proj, "CLASS", "app.C", "")

	model, err := LoadLibraryTypeModel(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, model.Len())

	id, ok := model.Lookup("lib.A")
	assert.True(t, ok)
	assert.Equal(t, cls, id)
	id, ok = model.LookupIn([]int64{proj, ready}, "lib.A")
	assert.True(t, ok)
	assert.Equal(t, cls, id)
	_, ok = model.LookupIn([]int64{partial, proj}, "lib.A")
	assert.False(t, ok)
	for _, name := range []string{"lib.A.m()", "lib.P", "app.C"} {
		_, ok := model.Lookup(name)
		assert.False(t, ok, name)
	}

	var nilModel *LibraryTypeModel
	_, ok = nilModel.Lookup("lib.A")
	assert.False(t, ok)
	_, ok = nilModel.LookupIn([]int64{ready}, "lib.A")
	assert.False(t, ok)
}
