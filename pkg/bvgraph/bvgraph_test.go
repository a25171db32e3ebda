package bvgraph

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bufio"
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vorteil/webgraph/pkg/bitio"
	"github.com/vorteil/webgraph/pkg/graph"
)

func storeAndLoad(t *testing.T, src *graph.ArrayGraph, args *StoreArgs, mode LoadMode) *Graph {
	t.Helper()
	basename := filepath.Join(t.TempDir(), "g")
	require.NoError(t, Store(context.Background(), src, basename, args))
	g, err := Load(basename, &LoadArgs{Mode: mode})
	require.NoError(t, err)
	return g
}

func randomGraph(t *testing.T, n int, seed int64) *graph.ArrayGraph {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	succ := make([][]int, n)
	for x := range succ {
		switch {
		case x > 0 && rng.Intn(100) < 30:
			// perturbed copy of the previous list, to exercise referential
			// compression
			s := append([]int(nil), succ[x-1]...)
			if len(s) > 0 && rng.Intn(2) == 0 {
				s = s[:len(s)-1]
			}
			if extra := rng.Intn(n); !contains(s, extra) {
				s = insertSorted(s, extra)
			}
			succ[x] = s
		case rng.Intn(100) < 10:
			// consecutive run, to exercise intervals
			start := rng.Intn(n)
			length := 4 + rng.Intn(8)
			var s []int
			for v := start; v < start+length && v < n; v++ {
				s = append(s, v)
			}
			succ[x] = s
		default:
			d := rng.Intn(10)
			var s []int
			for i := 0; i < d; i++ {
				if v := rng.Intn(n); !contains(s, v) {
					s = insertSorted(s, v)
				}
			}
			succ[x] = s
		}
	}
	g, err := graph.NewArrayGraph(succ)
	require.NoError(t, err)
	return g
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func insertSorted(s []int, v int) []int {
	i := 0
	for i < len(s) && s[i] < v {
		i++
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func assertSame(t *testing.T, src *graph.ArrayGraph, g *Graph) {
	t.Helper()
	require.Equal(t, src.NumNodes(), g.NumNodes())
	assert.Equal(t, src.NumArcs(), g.NumArcs())

	// random access
	for x := 0; x < src.NumNodes(); x++ {
		d, err := g.Outdegree(x)
		require.NoError(t, err, "outdegree of %d", x)
		assert.Equal(t, src.Outdegree(x), d, "outdegree of %d", x)

		succ, err := g.SuccessorArray(x)
		require.NoError(t, err, "successors of %d", x)
		assert.Equal(t, norm(src.SuccessorArray(x)), norm(succ), "successors of %d", x)

		it, err := g.Successors(x)
		require.NoError(t, err)
		assert.Equal(t, norm(src.SuccessorArray(x)), collectOrEmpty(it), "lazy successors of %d", x)
	}

	// sequential access must agree with random access
	it := g.NodeIterator(0)
	for x := it.NextNode(); x != -1; x = it.NextNode() {
		assert.Equal(t, src.Outdegree(x), it.Outdegree())
		assert.Equal(t, norm(src.SuccessorArray(x)), norm(it.SuccessorArray()))
	}
}

func norm(s []int) []int {
	return append([]int{}, s...)
}

func collectOrEmpty(it graph.Iterator) []int {
	out := []int{}
	for v := it.Next(); v != -1; v = it.Next() {
		out = append(out, v)
	}
	return out
}

func TestRoundTripParameterGrid(t *testing.T) {
	src := randomGraph(t, 400, 1)
	residualCodes := []Code{CodeGamma, CodeDelta, CodeZeta, CodeNibble}

	for _, window := range []int{0, 1, 7} {
		for _, maxRef := range []int{1, 3} {
			for _, minInterval := range []int{0, 2, 4} {
				for _, res := range residualCodes {
					args := DefaultStoreArgs()
					args.WindowSize = window
					args.MaxRefCount = maxRef
					args.MinIntervalLength = minInterval
					args.Flags.Residuals = res
					g := storeAndLoad(t, src, args, LoadInMemory)
					assertSame(t, src, g)
					require.NoError(t, g.Close())
				}
			}
		}
	}
}

func TestOffsetMonotonicity(t *testing.T) {
	src := randomGraph(t, 300, 2)
	basename := filepath.Join(t.TempDir(), "g")
	require.NoError(t, Store(context.Background(), src, basename, nil))

	info, err := os.Stat(graphPath(basename))
	require.NoError(t, err)

	f, err := os.Open(offsetsPath(basename))
	require.NoError(t, err)
	defer f.Close()
	ibs := bitio.NewReader(bufio.NewReader(f))

	var value int64
	assert.Equal(t, int64(0), ibs.ReadGamma(), "first offset must be zero")
	for i := 0; i < src.NumNodes(); i++ {
		delta := ibs.ReadGamma()
		require.NoError(t, ibs.Err())
		assert.Greater(t, delta, int64(0), "offsets must be strictly increasing")
		value += delta
	}
	assert.LessOrEqual(t, value, info.Size()*8)
	assert.Greater(t, value, (info.Size()-1)*8, "graph stream must be byte aligned at the end")
}

func TestRandomVsSequentialAndSplits(t *testing.T) {
	src := randomGraph(t, 1000, 3)
	g := storeAndLoad(t, src, DefaultStoreArgs(), LoadMapped)
	defer g.Close()

	for _, howMany := range []int{1, 2, 7, 32} {
		its := g.SplitNodeIterators(howMany)
		require.Len(t, its, howMany)
		next := 0
		for _, it := range its {
			for x := it.NextNode(); x != -1; x = it.NextNode() {
				require.Equal(t, next, x, "split iteration must visit every node once, in order")
				expected := src.SuccessorArray(x)
				assert.Equal(t, norm(expected), norm(it.SuccessorArray()))
				next++
			}
		}
		assert.Equal(t, src.NumNodes(), next, "howMany=%d", howMany)
	}
}

func TestParallelStoreEquivalence(t *testing.T) {
	src := randomGraph(t, 2000, 4)
	single := storeAndLoad(t, src, DefaultStoreArgs(), LoadInMemory)
	defer single.Close()

	for _, threads := range []int{2, 7} {
		args := DefaultStoreArgs()
		args.Threads = threads
		g := storeAndLoad(t, src, args, LoadInMemory)
		assertSame(t, src, g)
		assert.True(t, graph.Equals(single, g), "threads=%d", threads)
		require.NoError(t, g.Close())
	}
}

func TestNodeIteratorFrom(t *testing.T) {
	src := randomGraph(t, 500, 5)
	g := storeAndLoad(t, src, DefaultStoreArgs(), LoadInMemory)
	defer g.Close()

	for _, from := range []int{0, 1, 7, 8, 250, 499} {
		it := g.NodeIterator(from)
		x := it.NextNode()
		require.Equal(t, from, x)
		for ; x != -1; x = it.NextNode() {
			assert.Equal(t, norm(src.SuccessorArray(x)), norm(it.SuccessorArray()), "node %d starting from %d", x, from)
		}
	}

	// one past the last node is a valid, empty starting point
	it := g.NodeIterator(g.NumNodes())
	assert.Equal(t, -1, it.NextNode())

	bad := g.NodeIterator(g.NumNodes() + 1)
	assert.Equal(t, -1, bad.NextNode())
	assert.Error(t, bad.(interface{ Err() error }).Err())
}

func TestCopyIterator(t *testing.T) {
	src := randomGraph(t, 200, 6)
	g := storeAndLoad(t, src, DefaultStoreArgs(), LoadInMemory)
	defer g.Close()

	it := g.NodeIterator(0)
	for i := 0; i < 50; i++ {
		require.NotEqual(t, -1, it.NextNode())
	}
	cp := it.(graph.CopyableNodeIterator).CopyIterator(100)
	require.NotNil(t, cp)

	// the copy continues from node 50 and stops at the bound
	count := 0
	for x := cp.NextNode(); x != -1; x = cp.NextNode() {
		assert.Equal(t, 50+count, x)
		assert.Equal(t, norm(src.SuccessorArray(x)), norm(cp.SuccessorArray()))
		count++
	}
	assert.Equal(t, 50, count)

	// the original is unaffected
	assert.Equal(t, 50, it.NextNode())
}

func TestReaderCopyConcurrent(t *testing.T) {
	src := randomGraph(t, 300, 7)
	g := storeAndLoad(t, src, DefaultStoreArgs(), LoadMapped)
	defer g.Close()

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		r := g.Copy()
		go func() {
			for x := 0; x < src.NumNodes(); x++ {
				succ, err := r.SuccessorArray(x)
				if err != nil {
					done <- err
					return
				}
				expected := src.SuccessorArray(x)
				if len(succ) != len(expected) {
					done <- assert.AnError
					return
				}
			}
			done <- nil
		}()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}
}

func TestOfflineMode(t *testing.T) {
	src := randomGraph(t, 300, 8)
	basename := filepath.Join(t.TempDir(), "g")
	require.NoError(t, Store(context.Background(), src, basename, nil))

	g, err := Load(basename, &LoadArgs{Mode: LoadOffline})
	require.NoError(t, err)

	_, err = g.Outdegree(0)
	assert.Equal(t, ErrOffline, err)
	_, err = g.SuccessorArray(0)
	assert.Equal(t, ErrOffline, err)

	it := g.NodeIterator(0)
	for x := it.NextNode(); x != -1; x = it.NextNode() {
		assert.Equal(t, norm(src.SuccessorArray(x)), norm(it.SuccessorArray()))
	}

	// offline graphs cannot split
	assert.Len(t, g.SplitNodeIterators(4), 1)

	// but they can still start mid-stream
	it = g.NodeIterator(100)
	assert.Equal(t, 100, it.NextNode())
	assert.Equal(t, norm(src.SuccessorArray(100)), norm(it.SuccessorArray()))
}

func TestOffsetCache(t *testing.T) {
	src := randomGraph(t, 200, 9)
	basename := filepath.Join(t.TempDir(), "g")
	require.NoError(t, Store(context.Background(), src, basename, nil))

	g, err := Load(basename, nil)
	require.NoError(t, err)
	g.Close()

	_, err = os.Stat(offsetCachePath(basename))
	require.NoError(t, err, "first load must persist the offset cache")

	// a reload picks up the cache and reads correctly
	g, err = Load(basename, nil)
	require.NoError(t, err)
	assertSame(t, src, g)
	g.Close()

	// a stale cache is ignored and rebuilt
	rawInfo, err := os.Stat(offsetsPath(basename))
	require.NoError(t, err)
	stale := rawInfo.ModTime().Add(-time.Hour)
	require.NoError(t, os.Chtimes(offsetCachePath(basename), stale, stale))
	g, err = Load(basename, nil)
	require.NoError(t, err)
	assertSame(t, src, g)
	g.Close()

	// caching can be disabled
	require.NoError(t, os.Remove(offsetCachePath(basename)))
	g, err = Load(basename, &LoadArgs{SkipOffsetCache: true})
	require.NoError(t, err)
	g.Close()
	_, err = os.Stat(offsetCachePath(basename))
	assert.True(t, os.IsNotExist(err))
}

func TestLoaderRejections(t *testing.T) {
	src := randomGraph(t, 50, 10)
	basename := filepath.Join(t.TempDir(), "g")
	require.NoError(t, Store(context.Background(), src, basename, nil))

	rewrite := func(t *testing.T, old, new string) {
		t.Helper()
		data, err := os.ReadFile(propertiesPath(basename))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(propertiesPath(basename), []byte(replaceLine(string(data), old, new)), 0o644))
	}

	rewrite(t, "version = 0", "version = 99")
	_, err := Load(basename, nil)
	assert.Error(t, err, "newer versions must be rejected")

	rewrite(t, "version = 99", "version = 0")
	rewrite(t, "graphclass = "+GraphClass, "graphclass = some.other.Codec")
	_, err = Load(basename, nil)
	assert.Error(t, err, "unknown graph classes must be rejected")

	rewrite(t, "graphclass = some.other.Codec", "graphclass = "+GraphClass)
	rewrite(t, "compressionflags = ", "compressionflags = RESIDUALS_GOLOMB")
	_, err = Load(basename, nil)
	assert.Error(t, err, "golomb residuals must be rejected at load time")
}

func TestCorruptStream(t *testing.T) {
	src := randomGraph(t, 50, 11)
	basename := filepath.Join(t.TempDir(), "g")
	require.NoError(t, Store(context.Background(), src, basename, nil))

	// an all-zero graph stream decodes to an impossible outdegree or runs
	// off the end of the stream
	data, err := os.ReadFile(graphPath(basename))
	require.NoError(t, err)
	for i := range data {
		data[i] = 0
	}
	require.NoError(t, os.WriteFile(graphPath(basename), data, 0o644))

	g, err := Load(basename, &LoadArgs{SkipOffsetCache: true})
	require.NoError(t, err)
	defer g.Close()

	_, err = g.SuccessorArray(0)
	assert.Error(t, err)

	// the reader stays usable for other operations after a fault
	assert.Equal(t, src.NumNodes(), g.NumNodes())
}

func replaceLine(content, old, new string) string {
	return strings.Replace(content, old, new, 1)
}
