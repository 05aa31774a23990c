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

package frontend

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/factbase/pkg/facts"
	"github.com/kraklabs/factbase/pkg/fingerprint"
	"github.com/kraklabs/factbase/pkg/repo"
)

// emptyClass assembles a public class with no members extending Object.
func emptyClass(name string) []byte {
	var b bytes.Buffer
	u2 := func(v int) { _ = binary.Write(&b, binary.BigEndian, uint16(v)) }
	utf8 := func(s string) {
		b.WriteByte(1)
		u2(len(s))
		b.WriteString(s)
	}
	_ = binary.Write(&b, binary.BigEndian, uint32(0xCAFEBABE))
	u2(0)
	u2(52)
	u2(5)
	utf8(name)
	b.WriteByte(7)
	u2(1)
	utf8("java/lang/Object")
	b.WriteByte(7)
	u2(3)
	u2(0x0021)
	u2(2)
	u2(4)
	u2(0) // interfaces
	u2(0) // fields
	u2(0) // methods
	u2(0) // attributes
	return b.Bytes()
}

func writeJar(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func openRepo(t *testing.T) *repo.Repository {
	t.Helper()
	r, err := repo.Open(filepath.Join(t.TempDir(), "repo"), repo.Options{})
	require.NoError(t, err)
	return r
}

func readBundle(t *testing.T, u *repo.Unit) (map[string]facts.EntityKind, []facts.FileFact, []facts.UsedJar) {
	t.Helper()
	entities := map[string]facts.EntityKind{}
	var files []facts.FileFact
	var jars []facts.UsedJar
	rd := u.Facts()
	require.NoError(t, rd.Entities(func(e facts.Entity) error {
		entities[e.FQN] = e.Kind
		return nil
	}))
	require.NoError(t, rd.Files(func(f facts.FileFact) error {
		files = append(files, f)
		return nil
	}))
	require.NoError(t, rd.UsedJars(func(j facts.UsedJar) error {
		jars = append(jars, j)
		return nil
	}))
	return entities, files, jars
}

func filesOfKind(files []facts.FileFact, kind facts.FileKind) []facts.FileFact {
	var out []facts.FileFact
	for _, f := range files {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func TestExtractUnit_Project(t *testing.T) {
	r := openRepo(t)
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "src", "a"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "lib"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "src", "a", "B.java"),
		[]byte("package a;\n\npublic class B extends lib.Base {\n  int size;\n  void run() {}\n}\n"), 0644))
	jarPath := filepath.Join(src, "lib", "dep.jar")
	writeJar(t, jarPath, map[string][]byte{"lib/Base.class": emptyClass("lib/Base")})

	u, err := r.AddProject("batch", "app", src)
	require.NoError(t, err)

	x := NewExtractor(Options{})
	res, err := x.ExtractUnit(context.Background(), r, u)
	require.NoError(t, err)

	assert.True(t, res.HasSource)
	assert.Equal(t, 1, res.Types)
	assert.True(t, u.Extracted())
	assert.True(t, u.Properties().HasSource)

	entities, files, jars := readBundle(t, u)
	assert.Equal(t, facts.EntityPackage, entities["a"])
	assert.Equal(t, facts.EntityClass, entities["a.B"])
	assert.NotContains(t, entities, "lib.Base", "bundled jars are not parsed")

	fp, err := fingerprint.ComputeFile(jarPath)
	require.NoError(t, err)
	require.Len(t, jars, 1)
	assert.Equal(t, fp.Primary, jars[0].Hash)

	jarFacts := filesOfKind(files, facts.FileJar)
	require.Len(t, jarFacts, 1)
	assert.Equal(t, "dep.jar", jarFacts[0].Name)
	assert.Equal(t, "lib/dep.jar", jarFacts[0].Path)

	sources := filesOfKind(files, facts.FileSource)
	require.Len(t, sources, 1)
	assert.Equal(t, "src/a/B.java", sources[0].Path)
	assert.NotEmpty(t, sources[0].Hash)
}

func TestExtractUnit_ProjectWithoutSources(t *testing.T) {
	r := openRepo(t)
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "classes", "a"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "classes", "a", "C.class"), emptyClass("a/C"), 0644))

	u, err := r.AddProject("batch", "bin", src)
	require.NoError(t, err)

	res, err := NewExtractor(Options{}).ExtractUnit(context.Background(), r, u)
	require.NoError(t, err)
	assert.False(t, res.HasSource)
	assert.Equal(t, 1, res.Types)

	entities, files, _ := readBundle(t, u)
	assert.Equal(t, facts.EntityClass, entities["a.C"])
	classes := filesOfKind(files, facts.FileClass)
	require.Len(t, classes, 1)
	assert.Equal(t, "a.C", classes[0].Name)
}

func TestExtractUnit_Library(t *testing.T) {
	r := openRepo(t)
	jarPath := filepath.Join(t.TempDir(), "lib-1.0.jar")
	writeJar(t, jarPath, map[string][]byte{
		"lib/Base.class":         emptyClass("lib/Base"),
		"lib/Broken.class":       []byte("not a class"),
		"lib/package-info.class": []byte("ignored"),
		"META-INF/MANIFEST.MF":   []byte("Manifest-Version: 1.0\n"),
	})
	u, err := r.AddLibrary(jarPath)
	require.NoError(t, err)

	res, err := NewExtractor(Options{}).ExtractUnit(context.Background(), r, u)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Types)
	assert.Equal(t, 1, res.SkippedClasses)
	assert.False(t, res.HasSource)

	entities, files, jars := readBundle(t, u)
	assert.Equal(t, facts.EntityPackage, entities["lib"])
	assert.Equal(t, facts.EntityClass, entities["lib.Base"])
	assert.Empty(t, jars)

	jarFacts := filesOfKind(files, facts.FileJar)
	require.Len(t, jarFacts, 1)
	assert.Equal(t, u.Hash(), jarFacts[0].Hash)
	assert.Len(t, filesOfKind(files, facts.FileClass), 1)
}

func TestExtractUnit_AlreadyExtracted(t *testing.T) {
	r := openRepo(t)
	jarPath := filepath.Join(t.TempDir(), "lib.jar")
	writeJar(t, jarPath, map[string][]byte{"lib/Base.class": emptyClass("lib/Base")})
	u, err := r.AddLibrary(jarPath)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = NewExtractor(Options{}).ExtractUnit(ctx, r, u)
	require.NoError(t, err)

	res, err := NewExtractor(Options{}).ExtractUnit(ctx, r, u)
	require.NoError(t, err)
	assert.True(t, res.AlreadyExtracted)

	res, err = NewExtractor(Options{Force: true}).ExtractUnit(ctx, r, u)
	require.NoError(t, err)
	assert.False(t, res.AlreadyExtracted)
	assert.Equal(t, 1, res.Types)
}

func TestExtractUnit_FailureLeavesUnitUnextracted(t *testing.T) {
	r := openRepo(t)
	jarPath := filepath.Join(t.TempDir(), "broken.jar")
	require.NoError(t, os.WriteFile(jarPath, []byte("not a zip"), 0644))
	u, err := r.AddLibrary(jarPath)
	require.NoError(t, err)

	_, err = NewExtractor(Options{}).ExtractUnit(context.Background(), r, u)
	require.Error(t, err)

	assert.False(t, u.Extracted())
	assert.NotEmpty(t, u.Properties().Error)
	_, statErr := os.Stat(filepath.Join(u.FactsDir(), facts.EntitiesFile))
	assert.True(t, os.IsNotExist(statErr), "partial bundle removed")
}

func TestExtractUnit_Filter(t *testing.T) {
	r := openRepo(t)
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "generated"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "A.java"), []byte("class A {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "generated", "G.java"), []byte("class G {}\n"), 0644))
	u, err := r.AddProject("batch", "filtered", src)
	require.NoError(t, err)

	filter, err := repo.NewFilter(nil, []string{"generated/**"})
	require.NoError(t, err)

	res, err := NewExtractor(Options{Filter: filter}).ExtractUnit(context.Background(), r, u)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Types)

	entities, _, _ := readBundle(t, u)
	assert.Contains(t, entities, "A")
	assert.NotContains(t, entities, "G")
}

func TestExtractUnit_Cancelled(t *testing.T) {
	r := openRepo(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "A.java"), []byte("class A {}\n"), 0644))
	u, err := r.AddProject("batch", "cancelled", src)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewExtractor(Options{}).ExtractUnit(ctx, r, u)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, u.Extracted())
	assert.Empty(t, u.Properties().Error, "cancellation is not recorded as a failure")
}
