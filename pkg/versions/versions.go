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

// Package versions clusters jars into versions by content fingerprint.
package versions

import (
	"sort"

	"github.com/kraklabs/factbase/pkg/fingerprint"
)

// Jar identifies a binary artifact.
type Jar struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
	Hash string `json:"hash,omitempty"`
}

// JarSet is a set of jars. The zero value is empty and ready to use.
type JarSet struct {
	m map[Jar]struct{}
}

// Add inserts j and returns the set.
func (s *JarSet) Add(j Jar) *JarSet {
	if s.m == nil {
		s.m = make(map[Jar]struct{})
	}
	s.m[j] = struct{}{}
	return s
}

func (s *JarSet) Contains(j Jar) bool {
	_, ok := s.m[j]
	return ok
}

func (s *JarSet) Len() int {
	return len(s.m)
}

// Slice returns the jars sorted by name then path.
func (s *JarSet) Slice() []Jar {
	out := make([]Jar, 0, len(s.m))
	for j := range s.m {
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Name != out[b].Name {
			return out[a].Name < out[b].Name
		}
		return out[a].Path < out[b].Path
	})
	return out
}

// Version is one fingerprint and the jars carrying it.
type Version struct {
	fp   fingerprint.Fingerprint
	jars JarSet
}

func newVersion(fp fingerprint.Fingerprint, j Jar) *Version {
	v := &Version{fp: fp}
	v.jars.Add(j)
	return v
}

func (v *Version) Fingerprint() fingerprint.Fingerprint {
	return v.fp
}

// Jars returns the version's jars, sorted.
func (v *Version) Jars() []Jar {
	return v.jars.Slice()
}

func (v *Version) Contains(j Jar) bool {
	return v.jars.Contains(j)
}

// Versions is the set of versions seen for one key.
//
// Almost every key has exactly one version, so the first version is held in
// a single field and the map is only allocated once a second distinct
// fingerprint shows up. The jar set is maintained on every Add regardless.
type Versions struct {
	jars   JarSet
	single *Version
	multi  map[fingerprint.Fingerprint]*Version
}

// NewVersions returns an empty collection.
func NewVersions() *Versions {
	return &Versions{}
}

// Add records that jar carries content fp.
func (vs *Versions) Add(fp fingerprint.Fingerprint, jar Jar) {
	vs.jars.Add(jar)
	switch {
	case vs.multi != nil:
		if v, ok := vs.multi[fp]; ok {
			v.jars.Add(jar)
		} else {
			vs.multi[fp] = newVersion(fp, jar)
		}
	case vs.single == nil:
		vs.single = newVersion(fp, jar)
	case vs.single.fp == fp:
		vs.single.jars.Add(jar)
	default:
		vs.multi = map[fingerprint.Fingerprint]*Version{
			vs.single.fp: vs.single,
			fp:           newVersion(fp, jar),
		}
		vs.single = nil
	}
}

// Count is the number of distinct versions.
func (vs *Versions) Count() int {
	if vs.multi != nil {
		return len(vs.multi)
	}
	if vs.single != nil {
		return 1
	}
	return 0
}

// Jars returns every jar added across all versions, sorted. The slice is
// a copy.
func (vs *Versions) Jars() []Jar {
	return vs.jars.Slice()
}

// JarCount is the number of distinct jars added.
func (vs *Versions) JarCount() int {
	return vs.jars.Len()
}

// All returns each distinct version once. Order is not significant.
func (vs *Versions) All() []*Version {
	if vs.multi != nil {
		out := make([]*Version, 0, len(vs.multi))
		for _, v := range vs.multi {
			out = append(out, v)
		}
		return out
	}
	if vs.single != nil {
		return []*Version{vs.single}
	}
	return nil
}

// Merge adds every (fingerprint, jar) pair of other.
func (vs *Versions) Merge(other *Versions) {
	for _, v := range other.All() {
		for j := range v.jars.m {
			vs.Add(v.fp, j)
		}
	}
}

func (vs *Versions) promoted() bool {
	return vs.multi != nil
}
