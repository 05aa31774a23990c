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
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

// Filter selects keys or paths with include and exclude glob patterns.
// Patterns use '/' as separator, so '*' stays within one segment and '**'
// crosses segments. An empty include list matches everything.
type Filter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewFilter compiles the patterns.
func NewFilter(include, exclude []string) (*Filter, error) {
	inc, err := compileGlobs(include)
	if err != nil {
		return nil, err
	}
	exc, err := compileGlobs(exclude)
	if err != nil {
		return nil, err
	}
	return &Filter{include: inc, exclude: exc}, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Match reports whether s passes the filter. A nil filter matches all.
func (f *Filter) Match(s string) bool {
	if f == nil {
		return true
	}
	s = filepath.ToSlash(s)
	for _, g := range f.exclude {
		if g.Match(s) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, g := range f.include {
		if g.Match(s) {
			return true
		}
	}
	return false
}

// Excluded reports whether s matches an exclude pattern.
func (f *Filter) Excluded(s string) bool {
	if f == nil {
		return false
	}
	s = filepath.ToSlash(s)
	for _, g := range f.exclude {
		if g.Match(s) {
			return true
		}
	}
	return false
}
