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

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/storage"
)

// The system unit owns every UNKNOWN placeholder entity.
const (
	SystemUnitKind = "system"
	SystemUnitKey  = "unknowns"
)

// UnknownCache hands out one placeholder entity per unresolved name.
// Placeholders live in the store under the system unit, so a name maps to
// the same entity id across runs. The LRU only saves lookups.
//
// Resolve is called inside a unit transaction. Commit or Discard must
// follow the transaction's outcome so the cache never holds ids that were
// rolled back.
type UnknownCache struct {
	cache *lru.Cache[string, int64]

	systemID      int64
	systemPending bool

	pending []string
	created int
}

// NewUnknownCache creates a cache holding up to size names.
func NewUnknownCache(size int) (*UnknownCache, error) {
	cache, err := lru.New[string, int64](size)
	if err != nil {
		return nil, fmt.Errorf("create unknown cache: %w", err)
	}
	return &UnknownCache{cache: cache}, nil
}

// Resolve returns the placeholder id for name, creating it when needed.
func (c *UnknownCache) Resolve(ctx context.Context, q storage.Querier, name string) (int64, error) {
	if id, ok := c.cache.Get(name); ok {
		return id, nil
	}
	unitID, err := c.systemUnit(ctx, q)
	if err != nil {
		return 0, err
	}

	ref, err := storage.FindEntity(ctx, q, unitID, name, "")
	switch {
	case err == nil:
		c.remember(name, ref.ID)
		return ref.ID, nil
	case !errors.Is(err, storage.ErrNotFound):
		return 0, err
	}

	id, err := storage.InsertEntity(ctx, q, unitID, string(facts.EntityUnknown), name, "")
	if err != nil {
		return 0, fmt.Errorf("insert unknown %s: %w", name, err)
	}
	c.created++
	c.remember(name, id)
	return id, nil
}

func (c *UnknownCache) remember(name string, id int64) {
	c.cache.Add(name, id)
	c.pending = append(c.pending, name)
}

func (c *UnknownCache) systemUnit(ctx context.Context, q storage.Querier) (int64, error) {
	if c.systemID > 0 {
		return c.systemID, nil
	}
	row, err := storage.FindUnit(ctx, q, SystemUnitKind, SystemUnitKey)
	if err == nil {
		c.systemID = row.ID
		return row.ID, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}

	id, err := storage.InsertUnit(ctx, q, SystemUnitKind, SystemUnitKey, SystemUnitKey, "")
	if err != nil {
		return 0, fmt.Errorf("create system unit: %w", err)
	}
	if err := storage.SetUnitStage(ctx, q, id, StageEndStructural.Column()); err != nil {
		return 0, err
	}
	c.systemID = id
	c.systemPending = true
	return id, nil
}

// Commit accepts everything resolved since the last Commit or Discard and
// returns how many placeholders were created.
func (c *UnknownCache) Commit() int {
	n := c.created
	c.pending = c.pending[:0]
	c.created = 0
	c.systemPending = false
	return n
}

// Discard forgets everything resolved since the last Commit or Discard.
func (c *UnknownCache) Discard() {
	for _, name := range c.pending {
		c.cache.Remove(name)
	}
	c.pending = c.pending[:0]
	c.created = 0
	if c.systemPending {
		c.systemID = 0
		c.systemPending = false
	}
}

// Len returns the number of cached names.
func (c *UnknownCache) Len() int {
	return c.cache.Len()
}
