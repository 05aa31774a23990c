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
	"strings"
)

// EntityRef is the referential identity of an entity row.
type EntityRef struct {
	ID     int64
	Kind   string
	FQN    string
	Params string
	UnitID int64
}

// Key is FQN followed by Params.
func (e EntityRef) Key() string {
	return e.FQN + e.Params
}

func entityRefs(r *QueryResult) []EntityRef {
	out := make([]EntityRef, 0, r.Len())
	for i := range r.Rows {
		out = append(out, EntityRef{
			ID:     r.Int64(i, 0),
			Kind:   r.String(i, 1),
			FQN:    r.String(i, 2),
			Params: r.String(i, 3),
			UnitID: r.Int64(i, 4),
		})
	}
	return out
}

// UnitEntities returns the entities of one unit.
func UnitEntities(ctx context.Context, q Querier, unitID int64) ([]EntityRef, error) {
	r, err := q.Query(ctx,
		`SELECT entity_id, kind, fqn, params, unit_id FROM entities WHERE unit_id = ? ORDER BY entity_id`, unitID)
	if err != nil {
		return nil, err
	}
	return entityRefs(r), nil
}

// EntitiesOfUnits returns the entities of every unit whose kind is in kinds
// and whose stage is in stages, restricted to the given entity kinds when
// entityKinds is non-empty.
func EntitiesOfUnits(ctx context.Context, q Querier, kinds, stages, entityKinds []string) ([]EntityRef, error) {
	if len(kinds) == 0 || len(stages) == 0 {
		return nil, nil
	}
	var b strings.Builder
	b.WriteString(`SELECT e.entity_id, e.kind, e.fqn, e.params, e.unit_id FROM entities e JOIN units u ON u.unit_id = e.unit_id WHERE u.kind IN (`)
	b.WriteString(placeholders(len(kinds)))
	b.WriteString(`) AND u.stage IN (`)
	b.WriteString(placeholders(len(stages)))
	b.WriteString(`)`)
	args := make([]any, 0, len(kinds)+len(stages)+len(entityKinds))
	for _, k := range kinds {
		args = append(args, k)
	}
	for _, s := range stages {
		args = append(args, s)
	}
	if len(entityKinds) > 0 {
		b.WriteString(` AND e.kind IN (`)
		b.WriteString(placeholders(len(entityKinds)))
		b.WriteString(`)`)
		for _, k := range entityKinds {
			args = append(args, k)
		}
	}
	b.WriteString(` ORDER BY e.entity_id`)

	r, err := q.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	return entityRefs(r), nil
}

// FindEntity returns the entity of unitID with the given fqn and params.
func FindEntity(ctx context.Context, q Querier, unitID int64, fqn, params string) (EntityRef, error) {
	r, err := q.Query(ctx,
		`SELECT entity_id, kind, fqn, params, unit_id FROM entities WHERE unit_id = ? AND fqn = ? AND params = ?`,
		unitID, fqn, params)
	if err != nil {
		return EntityRef{}, err
	}
	if r.Len() == 0 {
		return EntityRef{}, ErrNotFound
	}
	return entityRefs(r)[0], nil
}

// InsertEntity inserts a single entity row and returns its id.
func InsertEntity(ctx context.Context, q Querier, unitID int64, kind, fqn, params string) (int64, error) {
	return q.InsertReturningID(ctx,
		`INSERT INTO entities (unit_id, kind, fqn, params, modifiers) VALUES (?, ?, ?, ?, 0) RETURNING entity_id`,
		unitID, kind, fqn, params)
}

// UsedJarUnits returns the ids of the units, other than unitID, whose hash
// matches one of the jars unitID declares as used. Only units whose kind is
// in kinds and whose stage is in stages are returned.
func UsedJarUnits(ctx context.Context, q Querier, unitID int64, kinds, stages []string) ([]int64, error) {
	if len(kinds) == 0 || len(stages) == 0 {
		return nil, nil
	}
	var b strings.Builder
	b.WriteString(`SELECT DISTINCT u.unit_id FROM used_jars j JOIN units u ON u.hash = j.hash WHERE j.unit_id = ? AND u.unit_id <> ? AND u.kind IN (`)
	b.WriteString(placeholders(len(kinds)))
	b.WriteString(`) AND u.stage IN (`)
	b.WriteString(placeholders(len(stages)))
	b.WriteString(`) ORDER BY u.unit_id`)
	args := make([]any, 0, 2+len(kinds)+len(stages))
	args = append(args, unitID, unitID)
	for _, k := range kinds {
		args = append(args, k)
	}
	for _, s := range stages {
		args = append(args, s)
	}

	r, err := q.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, r.Len())
	for i := range r.Rows {
		ids = append(ids, r.Int64(i, 0))
	}
	return ids, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
