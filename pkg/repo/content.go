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
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ContentFile is one file below a project's content directory.
type ContentFile struct {
	// Path is relative to the content directory, slash separated.
	Path     string
	FullPath string
	Size     int64
}

// FileSet is the listing of a project's content directory.
type FileSet struct {
	Files []ContentFile
}

func (s *FileSet) withSuffix(suffix string) []ContentFile {
	var out []ContentFile
	for _, f := range s.Files {
		if strings.HasSuffix(f.Path, suffix) {
			out = append(out, f)
		}
	}
	return out
}

// JavaFiles returns the .java sources.
func (s *FileSet) JavaFiles() []ContentFile { return s.withSuffix(".java") }

// JarFiles returns the bundled .jar files.
func (s *FileSet) JarFiles() []ContentFile { return s.withSuffix(".jar") }

// ClassFiles returns loose .class files.
func (s *FileSet) ClassFiles() []ContentFile { return s.withSuffix(".class") }

// Filtered returns a new set without the files f excludes.
func (s *FileSet) Filtered(f *Filter) *FileSet {
	out := &FileSet{}
	for _, file := range s.Files {
		if !f.Excluded(file.Path) {
			out.Files = append(out.Files, file)
		}
	}
	return out
}

// listContent walks root and collects regular files. Unreadable entries are
// logged and skipped; a missing root yields an empty set.
func listContent(root string, logger *slog.Logger) (*FileSet, error) {
	set := &FileSet{}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return set, nil
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("repo.walk.error", "path", path, "err", err)
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		set.Files = append(set.Files, ContentFile{
			Path:     filepath.ToSlash(rel),
			FullPath: path,
			Size:     info.Size(),
		})
		return nil
	})
	return set, err
}

// ContentCache keeps recently listed project file sets. Entries are evicted
// by size bound and invalidated explicitly whenever content changes.
type ContentCache struct {
	cache  *lru.Cache[string, *FileSet]
	logger *slog.Logger
}

// NewContentCache creates a cache of at most size file sets.
func NewContentCache(size int, logger *slog.Logger) (*ContentCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = 64
	}
	c, err := lru.NewWithEvict(size, func(key string, _ *FileSet) {
		logger.Debug("repo.content.evict", "dir", key)
	})
	if err != nil {
		return nil, err
	}
	return &ContentCache{cache: c, logger: logger}, nil
}

// Get returns the file set of dir, listing it on a miss.
func (c *ContentCache) Get(dir string) (*FileSet, error) {
	if set, ok := c.cache.Get(dir); ok {
		return set, nil
	}
	set, err := listContent(dir, c.logger)
	if err != nil {
		return nil, err
	}
	c.cache.Add(dir, set)
	return set, nil
}

// Invalidate drops the cached listing of dir.
func (c *ContentCache) Invalidate(dir string) {
	c.cache.Remove(dir)
}

// Len is the number of cached listings.
func (c *ContentCache) Len() int {
	return c.cache.Len()
}
