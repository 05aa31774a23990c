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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	fp, err := Compute(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", fp.Primary)
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", fp.Secondary)
	assert.Equal(t, int64(5), fp.Length)
	assert.Equal(t, fp, ComputeBytes([]byte("hello")))
	assert.False(t, fp.IsZero())
}

func TestIndex_ProjectCountVersusPaths(t *testing.T) {
	ix := NewIndex()
	fp := ComputeBytes([]byte("shared"))

	ix.Add(fp, "p1", "p1/a/Util.java")
	ix.Add(fp, "p1", "p1/b/Util.java")
	ix.Add(fp, "p2", "p2/Util.java")

	g := ix.Get(fp)
	require.NotNil(t, g)
	assert.Equal(t, 2, g.ProjectCount())
	assert.Equal(t, []string{"p1/a/Util.java", "p1/b/Util.java", "p2/Util.java"}, g.Paths())
	assert.Equal(t, []string{"p1", "p2"}, g.Projects())
	assert.Equal(t, "2 p1/a/Util.java p1/b/Util.java p2/Util.java", g.String())
}

func TestIndex_ProjectCountBound(t *testing.T) {
	ix := NewIndex()
	fp := ComputeBytes([]byte("x"))
	projects := []string{"a", "b", "a", "c", "b", "a"}
	distinct := map[string]bool{}
	for i, p := range projects {
		ix.Add(fp, p, fmt.Sprintf("%s/%d", p, i))
		distinct[p] = true
		assert.LessOrEqual(t, ix.Get(fp).ProjectCount(), len(distinct))
	}
	assert.Equal(t, 3, ix.Get(fp).ProjectCount())

	// Each project contributing once: count equals the number of projects.
	once := NewIndex()
	for i := 0; i < 5; i++ {
		once.Add(fp, fmt.Sprintf("p%d", i), "x")
	}
	assert.Equal(t, 5, once.Get(fp).ProjectCount())
}

func TestIndex_AllComponentsMustMatch(t *testing.T) {
	base := Fingerprint{Primary: "m", Secondary: "s", Length: 10}
	otherSha := Fingerprint{Primary: "m", Secondary: "t", Length: 10}
	otherLen := Fingerprint{Primary: "m", Secondary: "s", Length: 11}

	ix := NewIndex()
	ix.Add(base, "p", "a")
	ix.Add(otherSha, "p", "b")
	ix.Add(otherLen, "p", "c")
	assert.Equal(t, 3, ix.Len())

	assert.True(t, ix.Get(base).Equal(newGroup(base)))
	assert.False(t, ix.Get(base).Equal(ix.Get(otherSha)))
	assert.False(t, ix.Get(base).Equal(nil))
}

func TestIndex_Merge(t *testing.T) {
	a := ComputeBytes([]byte("a"))
	b := ComputeBytes([]byte("b"))

	left := NewIndex()
	left.Add(a, "p1", "p1/a")
	right := NewIndex()
	right.Add(a, "p2", "p2/a")
	right.Add(a, "p1", "p1/a2")
	right.Add(b, "p3", "p3/b")

	left.Merge(right)
	assert.Equal(t, 2, left.Len())
	assert.Equal(t, 2, left.Get(a).ProjectCount())
	assert.Equal(t, []string{"p1/a", "p2/a", "p1/a2"}, left.Get(a).Paths())

	groups := left.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, a, groups[0].Fingerprint())

	dups := left.Duplicates(2)
	require.Len(t, dups, 1)
	assert.Equal(t, a, dups[0].Fingerprint())
}

func TestIndex_MergeCommutes(t *testing.T) {
	build := func(entries ...[3]string) *Index {
		ix := NewIndex()
		for _, e := range entries {
			ix.Add(ComputeBytes([]byte(e[0])), e[1], e[2])
		}
		return ix
	}
	x := [][3]string{{"one", "p1", "x1"}, {"two", "p2", "x2"}}
	y := [][3]string{{"one", "p3", "y1"}, {"three", "p3", "y3"}}

	xy := build(x...)
	xy.Merge(build(y...))
	yx := build(y...)
	yx.Merge(build(x...))

	require.Equal(t, xy.Len(), yx.Len())
	for _, g := range xy.Groups() {
		other := yx.Get(g.Fingerprint())
		require.NotNil(t, other)
		assert.Equal(t, g.Projects(), other.Projects())
		assert.ElementsMatch(t, g.Paths(), other.Paths())
	}
}

func TestBuildSharded(t *testing.T) {
	dir := t.TempDir()
	var inputs []Input
	write := func(project, name, content string) {
		path := filepath.Join(dir, project, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		inputs = append(inputs, Input{Project: project, Path: project + "/" + name, File: path})
	}
	for i := 0; i < 20; i++ {
		write(fmt.Sprintf("p%d", i), "LICENSE", "apache")
		write(fmt.Sprintf("p%d", i), "Main.java", fmt.Sprintf("class Main%d {}", i))
	}
	inputs = append(inputs, Input{Project: "ghost", Path: "ghost/x", File: filepath.Join(dir, "missing")})

	res, err := BuildSharded(context.Background(), inputs, BuildOptions{Shards: 4, Workers: 3, OnFile: func() {}})
	require.NoError(t, err)
	assert.Equal(t, 41, res.Files)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 21, res.Index.Len())

	license := res.Index.Get(ComputeBytes([]byte("apache")))
	require.NotNil(t, license)
	assert.Equal(t, 20, license.ProjectCount())
	assert.Len(t, license.Paths(), 20)
}

func TestBuildSharded_PathsFollowInputOrder(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "NOTICE")
	require.NoError(t, os.WriteFile(file, []byte("notice"), 0644))

	var inputs []Input
	var want []string
	for i := 0; i < 50; i++ {
		path := fmt.Sprintf("p%02d/NOTICE", i)
		inputs = append(inputs, Input{Project: fmt.Sprintf("p%02d", i), Path: path, File: file})
		want = append(want, path)
	}

	for run := 0; run < 5; run++ {
		res, err := BuildSharded(context.Background(), inputs, BuildOptions{Shards: 3, Workers: 8})
		require.NoError(t, err)
		group := res.Index.Get(ComputeBytes([]byte("notice")))
		require.NotNil(t, group)
		assert.Equal(t, want, group.Paths(), "run %d", run)
	}
}

func TestBuildSharded_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inputs := make([]Input, 100)
	for i := range inputs {
		inputs[i] = Input{Project: "p", Path: "x", File: "/nonexistent"}
	}
	_, err := BuildSharded(ctx, inputs, BuildOptions{Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
