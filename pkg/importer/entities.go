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

// EntitiesImporter runs the first stage: it loads the entities,
// parameters, files and used jars of each unit and marks it END_ENTITY.
type EntitiesImporter struct {
	base
}

// NewEntitiesImporter creates an importer writing through backend.
func NewEntitiesImporter(backend storage.Backend, opts Options) *EntitiesImporter {
	opts = opts.withDefaults()
	return &EntitiesImporter{base: base{backend: backend, opts: opts, logger: opts.Logger}}
}

// Run imports candidates in order. The returned report covers every unit
// processed before an abort.
func (imp *EntitiesImporter) Run(ctx context.Context, candidates []Candidate) (*Report, error) {
	return imp.run(ctx, StageEndEntity, candidates, imp.importUnit)
}

func (imp *EntitiesImporter) importUnit(ctx context.Context, c Candidate, res *UnitResult) error {
	if !c.Extracted() {
		imp.skip(StageEndEntity, c, res, SkippedIncomplete, "extraction incomplete")
		return nil
	}

	outcome := Imported
	row, err := storage.FindUnit(ctx, imp.backend, c.Kind(), c.Key())
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return err
	default:
		stage, perr := ParseStage(row.StageName())
		if perr != nil {
			res.UnitID = row.ID
			imp.skip(StageEndEntity, c, res, SkippedUnexpectedStage, perr.Error())
			return nil
		}
		if stage.AtLeast(StageEndEntity) {
			res.UnitID = row.ID
			imp.skip(StageEndEntity, c, res, SkippedComplete, "stage "+stage.String())
			return nil
		}

		imp.logger.Info("import.unit.rollback", "stage", StageEndEntity.String(), "kind", c.Kind(), "unit", c.Key(), "unit_id", row.ID)
		if err := imp.backend.WithTx(ctx, func(q storage.Querier) error {
			return storage.DeleteUnit(ctx, q, row.ID)
		}); err != nil {
			return fmt.Errorf("roll back unit %s: %w", c.Key(), err)
		}
		recordRollback()
		outcome = ReimportedAfterRollback
	}

	err = imp.backend.WithTx(ctx, func(q storage.Querier) error {
		id, err := storage.InsertUnit(ctx, q, c.Kind(), c.Key(), c.Name(), c.Hash())
		if err != nil {
			return err
		}
		res.UnitID = id
		if err := imp.load(ctx, q, c, id, res); err != nil {
			return err
		}
		return storage.SetUnitStage(ctx, q, id, StageEndEntity.Column())
	})
	if err != nil {
		res.UnitID = 0
		return err
	}
	res.Outcome = outcome
	return nil
}

// load streams the unit's bundle into the store.
func (imp *EntitiesImporter) load(ctx context.Context, q storage.Querier, c Candidate, unitID int64, res *UnitResult) error {
	reader := c.Facts()

	entities := imp.newBatcher(q, storage.TableEntities, storage.EntityColumns)
	seen := make(map[string]struct{})
	err := reader.Entities(func(e facts.Entity) error {
		if _, dup := seen[e.Key()]; dup {
			imp.logger.Debug("import.entity.duplicate", "unit", c.Key(), "entity", e.Key())
			return nil
		}
		seen[e.Key()] = struct{}{}
		row := append([]any{unitID, string(e.Kind), e.FQN, e.Params, int64(e.Modifiers)}, locationColumns(e.Location)...)
		if err := entities.Add(ctx, row...); err != nil {
			return err
		}
		res.Entities++
		return nil
	})
	if err == nil {
		err = entities.Flush(ctx)
	}
	if err := classifyStream(ctx, err); err != nil {
		return err
	}

	params := imp.newBatcher(q, storage.TableParameters, storage.ParameterColumns)
	err = reader.Parameters(func(p facts.Parameter) error {
		row := append([]any{unitID, p.Owner, p.Name, int64(p.Position), p.Type, int64(p.Modifiers)}, locationColumns(p.Location)...)
		if err := params.Add(ctx, row...); err != nil {
			return err
		}
		res.Parameters++
		return nil
	})
	if err == nil {
		err = params.Flush(ctx)
	}
	if err := classifyStream(ctx, err); err != nil {
		return err
	}

	files := imp.newBatcher(q, storage.TableFiles, storage.FileColumns)
	err = reader.Files(func(f facts.FileFact) error {
		if err := files.Add(ctx, unitID, string(f.Kind), f.Name, normalizePath(f.Path), f.Hash); err != nil {
			return err
		}
		res.Files++
		return nil
	})
	if err == nil {
		err = files.Flush(ctx)
	}
	if err := classifyStream(ctx, err); err != nil {
		return err
	}

	jars := imp.newBatcher(q, storage.TableUsedJars, storage.UsedJarColumns)
	seenJars := make(map[string]struct{})
	err = reader.UsedJars(func(j facts.UsedJar) error {
		if _, dup := seenJars[j.Hash]; dup || j.Hash == "" {
			return nil
		}
		seenJars[j.Hash] = struct{}{}
		return jars.Add(ctx, unitID, j.Hash)
	})
	if err == nil {
		err = jars.Flush(ctx)
	}
	return classifyStream(ctx, err)
}
