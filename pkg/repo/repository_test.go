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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/fingerprint"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := Open(t.TempDir(), Options{ContentCacheSize: 4})
	require.NoError(t, err)
	return r
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"library":   KindLibrary,
		"Libraries": KindLibrary,
		"maven":     KindMaven,
		"projects":  KindProject,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("system")
	assert.Error(t, err)
	assert.True(t, KindMaven.IsJar())
	assert.False(t, KindProject.IsJar())
}

func TestProperties_RoundTripAndAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	p := &Properties{Name: "guava", Kind: KindLibrary, Hash: "abc", Jar: "guava.jar", Extracted: true}
	require.NoError(t, WriteProperties(dir, p))

	_, err := os.Stat(filepath.Join(dir, PropertiesFile+".tmp"))
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")

	got, err := ReadProperties(dir)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Kind, got.Kind)
	assert.True(t, got.Extracted)

	writeFile(t, filepath.Join(dir, PropertiesFile), "name: [unterminated")
	_, err = ReadProperties(dir)
	assert.Error(t, err)
}

func TestRepository_UnitsByKind(t *testing.T) {
	r := openTestRepo(t)

	_, err := r.CreateUnit(KindLibrary, "guava-31", Properties{})
	require.NoError(t, err)
	_, err = r.CreateUnit(KindLibrary, "asm-9", Properties{})
	require.NoError(t, err)
	_, err = r.CreateUnit(KindMaven, "org.ow2/asm/9.5", Properties{})
	require.NoError(t, err)
	_, err = r.CreateUnit(KindProject, "batch0/alpha", Properties{})
	require.NoError(t, err)
	_, err = r.CreateUnit(KindProject, "batch1/beta", Properties{})
	require.NoError(t, err)

	// A stray directory without properties is not a unit.
	require.NoError(t, os.MkdirAll(filepath.Join(r.Root(), "libraries", "stray"), 0755))

	libs, err := r.Units(KindLibrary, nil)
	require.NoError(t, err)
	require.Len(t, libs, 2)
	assert.Equal(t, "asm-9", libs[0].Key())
	assert.Equal(t, "library", libs[0].Kind())

	maven, err := r.Units(KindMaven, nil)
	require.NoError(t, err)
	require.Len(t, maven, 1)
	assert.Equal(t, "org.ow2/asm/9.5", maven[0].Key())
	assert.Equal(t, "9.5", maven[0].Name())

	f, err := NewFilter([]string{"batch1/*"}, nil)
	require.NoError(t, err)
	projects, err := r.Units(KindProject, f)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "batch1/beta", projects[0].Key())
}

func TestRepository_UnitLookup(t *testing.T) {
	r := openTestRepo(t)
	_, err := r.Unit(KindLibrary, "missing")
	assert.True(t, errors.Is(err, ErrUnitNotFound))

	for _, bad := range []string{"", "../escape", "/abs", "a/../b"} {
		_, err := r.Unit(KindLibrary, bad)
		assert.Error(t, err, bad)
		_, err = r.CreateUnit(KindLibrary, bad, Properties{})
		assert.Error(t, err, bad)
	}

	created, err := r.CreateUnit(KindLibrary, "x", Properties{Name: "X lib", Extracted: true})
	require.NoError(t, err)
	assert.False(t, created.Extracted(), "creation always clears the extracted flag")

	u, err := r.Unit(KindLibrary, "x")
	require.NoError(t, err)
	assert.Equal(t, "X lib", u.Name())
}

func TestRepository_AddLibraryAndMaven(t *testing.T) {
	r := openTestRepo(t)
	src := filepath.Join(t.TempDir(), "commons-io-2.11.jar")
	writeFile(t, src, "jar bytes")

	u, err := r.AddLibrary(src)
	require.NoError(t, err)
	assert.Equal(t, "commons-io-2.11", u.Key())
	assert.Equal(t, fingerprint.ComputeBytes([]byte("jar bytes")).Primary, u.Hash())
	data, err := os.ReadFile(u.JarPath())
	require.NoError(t, err)
	assert.Equal(t, "jar bytes", string(data))

	m, err := r.AddMaven("commons-io", "commons-io", "2.11", src)
	require.NoError(t, err)
	assert.Equal(t, "commons-io/commons-io/2.11", m.Key())
	assert.Equal(t, "commons-io-2.11", m.Name())
	assert.Equal(t, "2.11", m.Properties().Version)
}

func TestRepository_ExtractedLifecycle(t *testing.T) {
	r := openTestRepo(t)
	u, err := r.CreateUnit(KindProject, "b/p", Properties{})
	require.NoError(t, err)
	assert.False(t, u.Extracted())

	w, err := facts.NewWriter(u.FactsDir(), facts.CompressionNone)
	require.NoError(t, err)
	require.NoError(t, w.Entity(facts.Entity{Kind: facts.EntityClass, FQN: "a.B"}))
	require.NoError(t, w.Close())

	require.NoError(t, r.MarkFailed(u, errors.New("parse error")))
	reloaded, err := r.Unit(KindProject, "b/p")
	require.NoError(t, err)
	assert.False(t, reloaded.Extracted())
	assert.Equal(t, "parse error", reloaded.Properties().Error)

	require.NoError(t, r.MarkExtracted(u, true))
	reloaded, err = r.Unit(KindProject, "b/p")
	require.NoError(t, err)
	assert.True(t, reloaded.Extracted())
	assert.True(t, reloaded.Properties().HasSource)
	assert.Empty(t, reloaded.Properties().Error)
	assert.False(t, reloaded.Properties().ExtractedAt.IsZero())

	stats, err := reloaded.Facts().Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entities)

	require.NoError(t, r.Reset(reloaded))
	assert.False(t, reloaded.Extracted())
	stats, err = reloaded.Facts().Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Entities)
}

func TestRepository_ContentCacheInvalidation(t *testing.T) {
	r := openTestRepo(t)
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "src", "a", "A.java"), "class A {}")
	writeFile(t, filepath.Join(src, "lib", "dep.jar"), "jar")
	writeFile(t, filepath.Join(src, "build", "A.class"), "cafebabe")

	u, err := r.AddProject("batch0", "demo", src)
	require.NoError(t, err)

	set, err := r.Content(u)
	require.NoError(t, err)
	assert.Len(t, set.Files, 3)
	assert.Len(t, set.JavaFiles(), 1)
	assert.Equal(t, "src/a/A.java", set.JavaFiles()[0].Path)
	assert.Len(t, set.JarFiles(), 1)
	assert.Len(t, set.ClassFiles(), 1)

	// Cached listing is reused until content changes.
	again, err := r.Content(u)
	require.NoError(t, err)
	assert.Same(t, set, again)

	extra := filepath.Join(t.TempDir(), "B.java")
	writeFile(t, extra, "class B {}")
	require.NoError(t, r.AddContent(u, extra))

	fresh, err := r.Content(u)
	require.NoError(t, err)
	assert.NotSame(t, set, fresh)
	assert.Len(t, fresh.JavaFiles(), 2)

	f, err := NewFilter(nil, []string{"build/**"})
	require.NoError(t, err)
	assert.Len(t, fresh.Filtered(f).Files, 3)
}

func TestContentCache_MissingDirIsEmpty(t *testing.T) {
	c, err := NewContentCache(1, nil)
	require.NoError(t, err)
	set, err := c.Get(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, set.Files)

	_, err = c.Get(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len(), "size bound evicts the oldest listing")
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		in      string
		want    bool
	}{
		{"empty matches all", nil, nil, "any/thing", true},
		{"include star one segment", []string{"batch0/*"}, nil, "batch0/p", true},
		{"star does not cross slash", []string{"batch0/*"}, nil, "batch0/p/q", false},
		{"double star crosses", []string{"batch0/**"}, nil, "batch0/p/q", true},
		{"exclude wins", []string{"**"}, []string{"**/test/**"}, "src/test/A.java", false},
		{"not included", []string{"guava*"}, nil, "asm-9", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(tt.include, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Match(tt.in))
		})
	}

	_, err := NewFilter([]string{"[unclosed"}, nil)
	assert.Error(t, err)

	var nilFilter *Filter
	assert.True(t, nilFilter.Match("x"))
	assert.False(t, nilFilter.Excluded("x"))
}
