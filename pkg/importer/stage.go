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
	"errors"
	"fmt"
)

// ErrUnknownStage is returned for a persisted stage value no release wrote.
var ErrUnknownStage = errors.New("importer: unknown stage")

// Stage is the import progress recorded on a unit. Stages are totally
// ordered: StageUnset < StageEndEntity < StageEndStructural.
type Stage int

const (
	// StageUnset is persisted as NULL: the unit row exists but no stage
	// completed, which means a crashed or in-flight import.
	StageUnset Stage = iota
	StageEndEntity
	StageEndStructural
)

const (
	endEntity     = "END_ENTITY"
	endStructural = "END_STRUCTURAL"
)

// String returns the persisted name, or "UNSET".
func (s Stage) String() string {
	switch s {
	case StageEndEntity:
		return endEntity
	case StageEndStructural:
		return endStructural
	default:
		return "UNSET"
	}
}

// Column is the value written to the stage column; "" means NULL.
func (s Stage) Column() string {
	if s == StageUnset {
		return ""
	}
	return s.String()
}

// AtLeast reports whether s is o or later.
func (s Stage) AtLeast(o Stage) bool {
	return s >= o
}

// ParseStage reads a persisted stage. "" (NULL) is StageUnset.
func ParseStage(v string) (Stage, error) {
	switch v {
	case "":
		return StageUnset, nil
	case endEntity:
		return StageEndEntity, nil
	case endStructural:
		return StageEndStructural, nil
	default:
		return StageUnset, fmt.Errorf("%w: %q", ErrUnknownStage, v)
	}
}

// StagesFrom returns the persisted names of s and every later stage.
func StagesFrom(s Stage) []string {
	var out []string
	for st := s; st <= StageEndStructural; st++ {
		if st != StageUnset {
			out = append(out, st.String())
		}
	}
	return out
}
