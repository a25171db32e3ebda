package graph

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"sort"

	"github.com/pkg/errors"
)

// ArrayGraph is an immutable in-memory graph backed by adjacency slices. It
// is the reference source implementation used for recompression inputs and
// as a test fixture.
type ArrayGraph struct {
	succ [][]int
	arcs int64
}

// NewArrayGraph builds a graph over len(succ) nodes. Each successor list must
// be strictly increasing with targets inside [0, len(succ)).
func NewArrayGraph(succ [][]int) (*ArrayGraph, error) {
	n := len(succ)
	var arcs int64
	for x, s := range succ {
		for i, t := range s {
			if t < 0 || t >= n {
				return nil, errors.Errorf("node %d: successor %d outside [0, %d)", x, t, n)
			}
			if i > 0 && t <= s[i-1] {
				return nil, errors.Errorf("node %d: successor list is not strictly increasing at position %d", x, i)
			}
		}
		arcs += int64(len(s))
	}
	return &ArrayGraph{succ: succ, arcs: arcs}, nil
}

// FromArcs builds an ArrayGraph over n nodes from an unordered arc list.
// Duplicate arcs are rejected.
func FromArcs(n int, arcs [][2]int) (*ArrayGraph, error) {
	succ := make([][]int, n)
	for _, a := range arcs {
		src, dst := a[0], a[1]
		if src < 0 || src >= n {
			return nil, errors.Errorf("arc source %d outside [0, %d)", src, n)
		}
		succ[src] = append(succ[src], dst)
	}
	for x := range succ {
		sort.Ints(succ[x])
		for i := 1; i < len(succ[x]); i++ {
			if succ[x][i] == succ[x][i-1] {
				return nil, errors.Errorf("duplicate arc %d -> %d", x, succ[x][i])
			}
		}
	}
	return NewArrayGraph(succ)
}

// NumNodes returns the number of nodes.
func (g *ArrayGraph) NumNodes() int {
	return len(g.succ)
}

// NumArcs returns the number of arcs.
func (g *ArrayGraph) NumArcs() int64 {
	return g.arcs
}

// Outdegree returns the outdegree of x.
func (g *ArrayGraph) Outdegree(x int) int {
	return len(g.succ[x])
}

// SuccessorArray returns the successor list of x. The caller must not mutate
// it.
func (g *ArrayGraph) SuccessorArray(x int) []int {
	return g.succ[x]
}

// NodeIterator returns an iterator over nodes from onward.
func (g *ArrayGraph) NodeIterator(from int) NodeIterator {
	return &arrayNodeIterator{g: g, curr: from - 1, upperBound: len(g.succ)}
}

// SplitNodeIterators partitions the node range into howMany contiguous
// chunks.
func (g *ArrayGraph) SplitNodeIterators(howMany int) []NodeIterator {
	return SplitContiguous(len(g.succ), howMany, func(from, upperBound int) NodeIterator {
		return &arrayNodeIterator{g: g, curr: from - 1, upperBound: upperBound}
	})
}

type arrayNodeIterator struct {
	g          *ArrayGraph
	curr       int
	upperBound int
}

func (it *arrayNodeIterator) NextNode() int {
	if it.curr+1 >= it.upperBound {
		return -1
	}
	it.curr++
	return it.curr
}

func (it *arrayNodeIterator) Outdegree() int {
	return len(it.g.succ[it.curr])
}

func (it *arrayNodeIterator) Successors() Iterator {
	return SliceIterator(it.g.succ[it.curr])
}

func (it *arrayNodeIterator) SuccessorArray() []int {
	return it.g.succ[it.curr]
}

func (it *arrayNodeIterator) CopyIterator(upperBound int) NodeIterator {
	if upperBound > it.upperBound {
		upperBound = it.upperBound
	}
	return &arrayNodeIterator{g: it.g, curr: it.curr, upperBound: upperBound}
}

// SplitContiguous divides [0, n) into howMany contiguous ranges and builds an
// iterator per range. Ranges cover the interval exactly; when n < howMany the
// trailing iterators are empty.
func SplitContiguous(n, howMany int, build func(from, upperBound int) NodeIterator) []NodeIterator {
	if howMany < 1 {
		howMany = 1
	}
	out := make([]NodeIterator, howMany)
	per := (n + howMany - 1) / howMany
	for i := 0; i < howMany; i++ {
		from := i * per
		upper := from + per
		if from > n {
			from = n
		}
		if upper > n {
			upper = n
		}
		out[i] = build(from, upper)
	}
	return out
}
