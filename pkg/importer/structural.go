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
	"fmt"

	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/storage"
)

// StructuralImporter runs the second stage: it loads the relations of
// units whose entities are imported, resolving each target to an entity
// id, and marks them END_STRUCTURAL.
type StructuralImporter struct {
	base

	types    *LibraryTypeModel
	unknowns *UnknownCache
}

// NewStructuralImporter creates an importer writing through backend.
func NewStructuralImporter(backend storage.Backend, opts Options) *StructuralImporter {
	opts = opts.withDefaults()
	return &StructuralImporter{base: base{backend: backend, opts: opts, logger: opts.Logger}}
}

// Run imports the relations of candidates in order. The library type model
// is loaded once up front and the unknown cache is shared by every unit of
// the run.
func (imp *StructuralImporter) Run(ctx context.Context, candidates []Candidate) (*Report, error) {
	types, err := LoadLibraryTypeModel(ctx, imp.backend)
	if err != nil {
		return nil, err
	}
	unknowns, err := NewUnknownCache(imp.opts.UnknownCacheSize)
	if err != nil {
		return nil, err
	}
	imp.types, imp.unknowns = types, unknowns
	imp.logger.Info("import.types.loaded", "names", types.Len())

	return imp.run(ctx, StageEndStructural, candidates, imp.importUnit)
}

func (imp *StructuralImporter) importUnit(ctx context.Context, c Candidate, res *UnitResult) error {
	if !c.Extracted() {
		imp.skip(StageEndStructural, c, res, SkippedIncomplete, "extraction incomplete")
		return nil
	}

	row, err := storage.FindUnit(ctx, imp.backend, c.Kind(), c.Key())
	if errors.Is(err, storage.ErrNotFound) {
		imp.skip(StageEndStructural, c, res, SkippedIncomplete, "entities not imported")
		return nil
	}
	if err != nil {
		return err
	}
	res.UnitID = row.ID

	stage, perr := ParseStage(row.StageName())
	switch {
	case perr != nil:
		imp.skip(StageEndStructural, c, res, SkippedUnexpectedStage, perr.Error())
		return nil
	case stage == StageEndStructural:
		imp.skip(StageEndStructural, c, res, SkippedComplete, "stage "+stage.String())
		return nil
	case stage != StageEndEntity:
		imp.skip(StageEndStructural, c, res, SkippedUnexpectedStage, "stage "+stage.String())
		return nil
	}

	outcome := Imported
	err = imp.backend.WithTx(ctx, func(q storage.Querier) error {
		removed, err := storage.DeleteRelations(ctx, q, row.ID)
		if err != nil {
			return err
		}
		if removed > 0 {
			imp.logger.Info("import.unit.rollback", "stage", StageEndStructural.String(), "kind", c.Kind(), "unit", c.Key(), "relations", removed)
			outcome = ReimportedAfterRollback
		}
		if err := imp.load(ctx, q, c, row.ID, res); err != nil {
			return err
		}
		return storage.SetUnitStage(ctx, q, row.ID, StageEndStructural.Column())
	})
	if err != nil {
		imp.unknowns.Discard()
		res.Unknowns = 0
		return err
	}
	res.Unknowns = imp.unknowns.Commit()
	recordUnknowns(res.Unknowns)
	if outcome == ReimportedAfterRollback {
		recordRollback()
	}
	res.Outcome = outcome
	return nil
}

// load streams the unit's relations into the store.
func (imp *StructuralImporter) load(ctx context.Context, q storage.Querier, c Candidate, unitID int64, res *UnitResult) error {
	refs, err := storage.UnitEntities(ctx, q, unitID)
	if err != nil {
		return fmt.Errorf("load unit entities: %w", err)
	}
	local := make(map[string]int64, len(refs))
	for _, ref := range refs {
		if _, ok := local[ref.Key()]; !ok {
			local[ref.Key()] = ref.ID
		}
	}
	used, err := storage.UsedJarUnits(ctx, q, unitID, libraryKinds, StagesFrom(StageEndEntity))
	if err != nil {
		return fmt.Errorf("load used jars: %w", err)
	}

	relations := imp.newBatcher(q, storage.TableRelations, storage.RelationColumns)
	err = c.Facts().Relations(func(r facts.Relation) error {
		target, err := imp.resolve(ctx, q, local, used, r.Target)
		if err != nil {
			return &storeError{err: err}
		}
		row := append([]any{unitID, string(r.Kind), r.Source, r.Target, nullID(local[r.Source]), nullID(target)}, locationColumns(r.Location)...)
		if err := relations.Add(ctx, row...); err != nil {
			return err
		}
		res.Relations++
		return nil
	})
	if err == nil {
		err = relations.Flush(ctx)
	}
	return classifyStream(ctx, err)
}

// resolve finds the entity a relation target names: the unit's own
// entities first, then the libraries whose jars the unit uses, then any
// library, then a placeholder.
func (imp *StructuralImporter) resolve(ctx context.Context, q storage.Querier, local map[string]int64, used []int64, target string) (int64, error) {
	if target == "" {
		return 0, nil
	}
	erased := erasureOf(target)
	if id, ok := local[target]; ok {
		return id, nil
	}
	if id, ok := local[erased]; ok {
		return id, nil
	}
	if id, ok := imp.types.LookupIn(used, target); ok {
		return id, nil
	}
	if id, ok := imp.types.LookupIn(used, erased); ok {
		return id, nil
	}
	if id, ok := imp.types.Lookup(target); ok {
		return id, nil
	}
	if id, ok := imp.types.Lookup(erased); ok {
		return id, nil
	}
	return imp.unknowns.Resolve(ctx, q, erased)
}
