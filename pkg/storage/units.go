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
)

// Table names.
const (
	TableUnits      = "units"
	TableEntities   = "entities"
	TableRelations  = "relations"
	TableParameters = "parameters"
	TableFiles      = "files"
	TableUsedJars   = "used_jars"
)

// Column lists used for bulk inserts, in row order.
var (
	EntityColumns    = []string{"unit_id", "kind", "fqn", "params", "modifiers", "loc_fqn", "loc_path", "loc_offset", "loc_length"}
	RelationColumns  = []string{"unit_id", "kind", "source", "target", "source_eid", "target_eid", "loc_fqn", "loc_path", "loc_offset", "loc_length"}
	ParameterColumns = []string{"unit_id", "owner", "name", "position", "type", "modifiers", "loc_fqn", "loc_path", "loc_offset", "loc_length"}
	FileColumns      = []string{"unit_id", "kind", "name", "path", "hash"}
	UsedJarColumns   = []string{"unit_id", "hash"}
)

// UnitTables lists the per-unit fact tables in deletion order.
var UnitTables = []string{TableRelations, TableParameters, TableFiles, TableUsedJars, TableEntities}

// MaxRowWidth is the column count of the widest fact table.
func MaxRowWidth() int {
	w := 0
	for _, cols := range [][]string{EntityColumns, RelationColumns, ParameterColumns, FileColumns, UsedJarColumns} {
		w = max(w, len(cols))
	}
	return w
}

// UnitRow is one row of the units table. Stage is nil while no stage has
// been recorded.
type UnitRow struct {
	ID    int64
	Kind  string
	Key   string
	Name  string
	Hash  string
	Stage *string
}

// StageName returns the recorded stage or "" when it is NULL.
func (u *UnitRow) StageName() string {
	if u.Stage == nil {
		return ""
	}
	return *u.Stage
}

const unitSelect = `SELECT unit_id, kind, unit_key, name, hash, stage FROM units`

func unitFromRow(r *QueryResult, i int) *UnitRow {
	return &UnitRow{
		ID:    r.Int64(i, 0),
		Kind:  r.String(i, 1),
		Key:   r.String(i, 2),
		Name:  r.String(i, 3),
		Hash:  r.String(i, 4),
		Stage: r.NullString(i, 5),
	}
}

// FindUnit looks a unit up by kind and key. It returns ErrNotFound when no
// row matches.
func FindUnit(ctx context.Context, q Querier, kind, key string) (*UnitRow, error) {
	r, err := q.Query(ctx, unitSelect+` WHERE kind = ? AND unit_key = ?`, kind, key)
	if err != nil {
		return nil, err
	}
	if r.Len() == 0 {
		return nil, ErrNotFound
	}
	return unitFromRow(r, 0), nil
}

// ListUnits returns every unit of kind, or all units when kind is empty,
// ordered by id.
func ListUnits(ctx context.Context, q Querier, kind string) ([]*UnitRow, error) {
	var (
		r   *QueryResult
		err error
	)
	if kind == "" {
		r, err = q.Query(ctx, unitSelect+` ORDER BY unit_id`)
	} else {
		r, err = q.Query(ctx, unitSelect+` WHERE kind = ? ORDER BY unit_id`, kind)
	}
	if err != nil {
		return nil, err
	}
	out := make([]*UnitRow, 0, r.Len())
	for i := range r.Rows {
		out = append(out, unitFromRow(r, i))
	}
	return out, nil
}

// InsertUnit creates a unit row with a NULL stage and returns its id.
func InsertUnit(ctx context.Context, q Querier, kind, key, name, hash string) (int64, error) {
	return q.InsertReturningID(ctx,
		`INSERT INTO units (kind, unit_key, name, hash, stage) VALUES (?, ?, ?, ?, NULL) RETURNING unit_id`,
		kind, key, name, hash)
}

// SetUnitStage records stage on the unit. An empty stage writes NULL.
func SetUnitStage(ctx context.Context, q Querier, unitID int64, stage string) error {
	var v any
	if stage != "" {
		v = stage
	}
	n, err := q.Execute(ctx, `UPDATE units SET stage = ? WHERE unit_id = ?`, v, unitID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("unit %d: %w", unitID, ErrNotFound)
	}
	return nil
}

// DeleteUnitFacts removes every fact row of the unit, keeping the unit row.
func DeleteUnitFacts(ctx context.Context, q Querier, unitID int64) error {
	for _, table := range UnitTables {
		if _, err := q.Execute(ctx, `DELETE FROM `+table+` WHERE unit_id = ?`, unitID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// DeleteUnit removes the unit row together with every fact row.
func DeleteUnit(ctx context.Context, q Querier, unitID int64) error {
	if err := DeleteUnitFacts(ctx, q, unitID); err != nil {
		return err
	}
	if _, err := q.Execute(ctx, `DELETE FROM units WHERE unit_id = ?`, unitID); err != nil {
		return fmt.Errorf("delete unit: %w", err)
	}
	return nil
}

// DeleteRelations removes the relation rows of a unit and returns how many
// there were.
func DeleteRelations(ctx context.Context, q Querier, unitID int64) (int64, error) {
	n, err := q.Execute(ctx, `DELETE FROM relations WHERE unit_id = ?`, unitID)
	if err != nil {
		return 0, fmt.Errorf("delete relations: %w", err)
	}
	return n, nil
}

// CountRows counts the rows of table, optionally restricted to one unit
// when unitID is positive.
func CountRows(ctx context.Context, q Querier, table string, unitID int64) (int64, error) {
	var (
		r   *QueryResult
		err error
	)
	if unitID > 0 {
		r, err = q.Query(ctx, `SELECT COUNT(*) FROM `+table+` WHERE unit_id = ?`, unitID)
	} else {
		r, err = q.Query(ctx, `SELECT COUNT(*) FROM `+table)
	}
	if err != nil {
		return 0, err
	}
	if r.Len() == 0 {
		return 0, nil
	}
	return r.Int64(0, 0), nil
}

// StageCount is one row of the per kind, per stage unit summary.
type StageCount struct {
	Kind  string
	Stage string
	Units int64
}

// CountUnitsByStage summarizes units grouped by kind and stage. NULL stages
// are reported as "".
func CountUnitsByStage(ctx context.Context, q Querier) ([]StageCount, error) {
	r, err := q.Query(ctx,
		`SELECT kind, COALESCE(stage, ''), COUNT(*) FROM units GROUP BY kind, COALESCE(stage, '') ORDER BY kind, COALESCE(stage, '')`)
	if err != nil {
		return nil, err
	}
	out := make([]StageCount, 0, r.Len())
	for i := range r.Rows {
		out = append(out, StageCount{Kind: r.String(i, 0), Stage: r.String(i, 1), Units: r.Int64(i, 2)})
	}
	return out, nil
}
