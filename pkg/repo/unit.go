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

package repo

import (
	"path/filepath"

	"github.com/kraklabs/factbase/pkg/facts"
)

// Subdirectories of a unit.
const (
	FactsDir   = "facts"
	ContentDir = "content"
)

// Unit is one extracted library jar, maven jar or project checkout.
type Unit struct {
	kind  Kind
	key   string
	dir   string
	props Properties
}

// Key identifies the unit within its kind: the library name for libraries
// and the slash-separated path below the kind directory otherwise.
func (u *Unit) Key() string { return u.key }

// Kind returns the unit kind as stored in the units table.
func (u *Unit) Kind() string { return string(u.kind) }

// UnitKind returns the typed kind.
func (u *Unit) UnitKind() Kind { return u.kind }

// Name is the display name from the properties file, or the key.
func (u *Unit) Name() string {
	if u.props.Name != "" {
		return u.props.Name
	}
	return u.key
}

// Hash is the jar hash, empty for projects.
func (u *Unit) Hash() string { return u.props.Hash }

// Extracted reports whether extraction completed.
func (u *Unit) Extracted() bool { return u.props.Extracted }

// Facts opens the unit's fact bundle for reading.
func (u *Unit) Facts() *facts.Reader {
	return facts.NewReader(u.FactsDir())
}

// Dir is the unit's directory.
func (u *Unit) Dir() string { return u.dir }

// FactsDir is where the fact bundle lives.
func (u *Unit) FactsDir() string { return filepath.Join(u.dir, FactsDir) }

// ContentDir is where project sources and jars live.
func (u *Unit) ContentDir() string { return filepath.Join(u.dir, ContentDir) }

// JarPath is the absolute path of the unit's jar, or "" when none is set.
func (u *Unit) JarPath() string {
	if u.props.Jar == "" {
		return ""
	}
	if filepath.IsAbs(u.props.Jar) {
		return u.props.Jar
	}
	return filepath.Join(u.dir, u.props.Jar)
}

// Properties returns a copy of the unit's metadata.
func (u *Unit) Properties() Properties { return u.props }
