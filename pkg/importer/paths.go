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
	"path/filepath"

	"github.com/kraklabs/factbase/pkg/signature"
)

// normalizePath makes stored file paths identical across platforms:
//   - leading ./ removed
//   - separators converted to forward slashes
//   - redundant separators cleaned
//   - leading slash dropped
func normalizePath(path string) string {
	if path == "" {
		return ""
	}
	if len(path) >= 2 && path[0:2] == "./" {
		path = path[2:]
	}
	path = filepath.ToSlash(filepath.Clean(path))
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return path
}

// erasureOf reduces a relation target to the name an entity would carry.
// Targets that are not canonical type names (referential names of
// executables) are returned unchanged.
func erasureOf(target string) string {
	if _, err := signature.Parse(target); err != nil {
		return target
	}
	return signature.Erasure(target)
}
