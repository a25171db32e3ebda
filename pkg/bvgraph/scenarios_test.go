package bvgraph

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vorteil/webgraph/pkg/graph"
)

func TestScenarioTriangle(t *testing.T) {
	src, err := graph.FromArcs(3, [][2]int{{0, 1}, {1, 2}, {2, 0}, {2, 1}})
	require.NoError(t, err)

	g := storeAndLoad(t, src, DefaultStoreArgs(), LoadInMemory)
	defer g.Close()

	assert.Equal(t, int64(4), g.NumArcs())
	for x, want := range []int{1, 1, 2} {
		d, err := g.Outdegree(x)
		require.NoError(t, err)
		assert.Equal(t, want, d)
	}
	succ, err := g.SuccessorArray(2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, succ)
}

func TestScenarioCycle(t *testing.T) {
	succ := make([][]int, 10)
	for i := range succ {
		succ[i] = []int{(i + 1) % 10}
	}
	src, err := graph.NewArrayGraph(succ)
	require.NoError(t, err)

	args := DefaultStoreArgs()
	args.WindowSize = 7
	g := storeAndLoad(t, src, args, LoadInMemory)
	defer g.Close()

	for x := 0; x < 10; x++ {
		d, err := g.Outdegree(x)
		require.NoError(t, err)
		assert.Equal(t, 1, d)
	}
	assertSame(t, src, g)
}

func TestScenarioCompleteGraph(t *testing.T) {
	succ := make([][]int, 5)
	for i := range succ {
		succ[i] = []int{0, 1, 2, 3, 4}
	}
	src, err := graph.NewArrayGraph(succ)
	require.NoError(t, err)

	g := storeAndLoad(t, src, DefaultStoreArgs(), LoadInMemory)
	defer g.Close()

	assert.Equal(t, int64(25), g.NumArcs())
	for x := 0; x < 5; x++ {
		succ, err := g.SuccessorArray(x)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2, 3, 4}, succ)
	}
}

func TestScenarioBinaryTreeNoReferences(t *testing.T) {
	succ := make([][]int, 15)
	for i := 0; i <= 6; i++ {
		succ[i] = []int{2*i + 1, 2*i + 2}
	}
	src, err := graph.NewArrayGraph(succ)
	require.NoError(t, err)

	args := DefaultStoreArgs()
	args.WindowSize = 0
	g := storeAndLoad(t, src, args, LoadInMemory)
	defer g.Close()

	for i := 0; i < 15; i++ {
		s, err := g.SuccessorArray(i)
		require.NoError(t, err)
		if i <= 6 {
			assert.Equal(t, []int{2*i + 1, 2*i + 2}, s)
		} else {
			assert.Empty(t, s)
		}
	}
}

func TestScenarioBandedGraph(t *testing.T) {
	if testing.Short() {
		t.Skip("large banded graph")
	}
	const n = 100_000
	succ := make([][]int, n)
	for i := range succ {
		s := make([]int, 0, 50)
		for k := 1; k <= 50; k++ {
			s = append(s, (i+k)%n)
		}
		sort.Ints(s)
		succ[i] = s
	}
	src, err := graph.NewArrayGraph(succ)
	require.NoError(t, err)

	store := func(window int) *Stats {
		args := DefaultStoreArgs()
		args.WindowSize = window
		args.MinIntervalLength = 4
		basename := filepath.Join(t.TempDir(), "g")
		require.NoError(t, Store(context.Background(), src, basename, args))
		g, err := Load(basename, &LoadArgs{Mode: LoadInMemory})
		require.NoError(t, err)
		defer g.Close()

		for _, x := range []int{0, 1, 63, n / 2, n - 51, n - 1} {
			s, err := g.SuccessorArray(x)
			require.NoError(t, err)
			assert.Equal(t, succ[x], s)
		}
		return g.Properties().Stats
	}

	flat := store(0)
	windowed := store(7)

	require.NotNil(t, flat)
	require.NotNil(t, windowed)
	assert.Less(t, windowed.TotalBits, flat.TotalBits,
		"referential compression must beat plain interval coding on a banded graph")
	assert.Greater(t, flat.IntervalisedArcs, flat.ResidualArcs,
		"consecutive successor runs must be intervalised")
	assert.Greater(t, windowed.CopiedArcs, int64(0))
}

func TestScenarioForcedCopyDecision(t *testing.T) {
	succ := [][]int{{}, {}, {0, 1, 2}, {0, 1, 2}}
	src, err := graph.NewArrayGraph(succ)
	require.NoError(t, err)

	args := DefaultStoreArgs()
	args.WindowSize = 1
	basename := filepath.Join(t.TempDir(), "g")
	require.NoError(t, Store(context.Background(), src, basename, args))
	g, err := Load(basename, &LoadArgs{Mode: LoadInMemory})
	require.NoError(t, err)
	defer g.Close()

	for _, x := range []int{2, 3} {
		s, err := g.SuccessorArray(x)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2}, s)
	}

	// node 3 can only copy node 2's whole list or nothing; copying all of it
	// is cheapest, so three arcs must be recorded as copied
	stats := g.Properties().Stats
	require.NotNil(t, stats)
	assert.Equal(t, int64(3), stats.CopiedArcs)
}

func TestEmptyAndSingletonGraphs(t *testing.T) {
	empty, err := graph.NewArrayGraph(nil)
	require.NoError(t, err)
	g := storeAndLoad(t, empty, DefaultStoreArgs(), LoadInMemory)
	assert.Equal(t, 0, g.NumNodes())
	assert.Equal(t, -1, g.NodeIterator(0).NextNode())
	g.Close()

	loop, err := graph.NewArrayGraph([][]int{{0}})
	require.NoError(t, err)
	g = storeAndLoad(t, loop, DefaultStoreArgs(), LoadInMemory)
	s, err := g.SuccessorArray(0)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, s)
	g.Close()
}
