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
	"fmt"

	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/repo"
	"github.com/kraklabs/factbase/pkg/storage"
)

// LibraryTypeModel maps the type and package names declared by library
// units to their entity ids. It is loaded once per structural run and
// shared by every unit of the run.
type LibraryTypeModel struct {
	ids    map[string]int64
	byUnit map[int64]map[string]int64
}

// libraryKinds are the unit kinds whose declarations resolve targets of
// other units.
var libraryKinds = []string{string(repo.KindLibrary), string(repo.KindMaven)}

// LoadLibraryTypeModel reads the types and packages of every library unit
// whose entities are imported. When a name is declared by several
// libraries the lowest entity id wins.
func LoadLibraryTypeModel(ctx context.Context, q storage.Querier) (*LibraryTypeModel, error) {
	kinds := []string{
		string(facts.EntityPackage), string(facts.EntityClass), string(facts.EntityInterface),
		string(facts.EntityAnnotation), string(facts.EntityEnum),
	}
	refs, err := storage.EntitiesOfUnits(ctx, q, libraryKinds, StagesFrom(StageEndEntity), kinds)
	if err != nil {
		return nil, fmt.Errorf("load library types: %w", err)
	}
	m := &LibraryTypeModel{
		ids:    make(map[string]int64, len(refs)),
		byUnit: make(map[int64]map[string]int64),
	}
	for _, ref := range refs {
		if _, ok := m.ids[ref.Key()]; !ok {
			m.ids[ref.Key()] = ref.ID
		}
		names := m.byUnit[ref.UnitID]
		if names == nil {
			names = make(map[string]int64)
			m.byUnit[ref.UnitID] = names
		}
		if _, ok := names[ref.Key()]; !ok {
			names[ref.Key()] = ref.ID
		}
	}
	return m, nil
}

// Lookup returns the entity id declaring name.
func (m *LibraryTypeModel) Lookup(name string) (int64, bool) {
	if m == nil {
		return 0, false
	}
	id, ok := m.ids[name]
	return id, ok
}

// LookupIn returns the entity id declaring name within the given library
// units. When several of them declare it the lowest entity id wins.
func (m *LibraryTypeModel) LookupIn(units []int64, name string) (int64, bool) {
	if m == nil {
		return 0, false
	}
	var best int64
	for _, unit := range units {
		if id, ok := m.byUnit[unit][name]; ok && (best == 0 || id < best) {
			best = id
		}
	}
	return best, best != 0
}

// Len returns the number of names in the model.
func (m *LibraryTypeModel) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ids)
}
