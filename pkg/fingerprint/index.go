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

package fingerprint

import (
	"sort"
	"strconv"
	"strings"
)

// Group collects every occurrence of one fingerprint.
type Group struct {
	fp       Fingerprint
	projects map[string]struct{}
	paths    []string
}

func newGroup(fp Fingerprint) *Group {
	return &Group{fp: fp, projects: make(map[string]struct{})}
}

// Fingerprint returns the content identity of the group.
func (g *Group) Fingerprint() Fingerprint {
	return g.fp
}

// Add records one occurrence. A project contributing the same content twice
// counts once in ProjectCount but twice in Paths.
func (g *Group) Add(project, path string) {
	g.projects[project] = struct{}{}
	g.paths = append(g.paths, path)
}

// ProjectCount is the number of distinct projects holding this content.
func (g *Group) ProjectCount() int {
	return len(g.projects)
}

// Paths returns every recorded path in insertion order.
func (g *Group) Paths() []string {
	out := make([]string, len(g.paths))
	copy(out, g.paths)
	return out
}

// Projects returns the distinct project ids, sorted.
func (g *Group) Projects() []string {
	out := make([]string, 0, len(g.projects))
	for p := range g.projects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Equal compares fingerprints only.
func (g *Group) Equal(other *Group) bool {
	return other != nil && g.fp == other.fp
}

// String renders the project count followed by every path.
func (g *Group) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(g.projects)))
	for _, p := range g.paths {
		b.WriteByte(' ')
		b.WriteString(p)
	}
	return b.String()
}

func (g *Group) merge(other *Group) {
	for p := range other.projects {
		g.projects[p] = struct{}{}
	}
	g.paths = append(g.paths, other.paths...)
}

// Index maps fingerprints to groups. It is not safe for concurrent use;
// BuildSharded gives each worker its own Index and merges them serially.
type Index struct {
	groups map[Fingerprint]*Group
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{groups: make(map[Fingerprint]*Group)}
}

// Add records that project holds content fp at path.
func (ix *Index) Add(fp Fingerprint, project, path string) {
	g, ok := ix.groups[fp]
	if !ok {
		g = newGroup(fp)
		ix.groups[fp] = g
	}
	g.Add(project, path)
}

// Get returns the group for fp, or nil.
func (ix *Index) Get(fp Fingerprint) *Group {
	return ix.groups[fp]
}

// Len is the number of distinct fingerprints.
func (ix *Index) Len() int {
	return len(ix.groups)
}

// Merge folds other into ix. Groups with equal fingerprints are unioned;
// paths of other are appended after those of ix. other must not be used
// afterwards.
func (ix *Index) Merge(other *Index) {
	for fp, og := range other.groups {
		if g, ok := ix.groups[fp]; ok {
			g.merge(og)
		} else {
			ix.groups[fp] = og
		}
	}
}

// Groups returns every group, largest project count first, ties broken by
// fingerprint so output is stable.
func (ix *Index) Groups() []*Group {
	out := make([]*Group, 0, len(ix.groups))
	for _, g := range ix.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if a, b := out[i].ProjectCount(), out[j].ProjectCount(); a != b {
			return a > b
		}
		if a, b := len(out[i].paths), len(out[j].paths); a != b {
			return a > b
		}
		return out[i].fp.String() < out[j].fp.String()
	})
	return out
}

// Duplicates returns the groups shared by at least minProjects projects.
func (ix *Index) Duplicates(minProjects int) []*Group {
	var out []*Group
	for _, g := range ix.Groups() {
		if g.ProjectCount() >= minProjects {
			out = append(out, g)
		}
	}
	return out
}
