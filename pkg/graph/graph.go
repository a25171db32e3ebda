// Package graph defines the immutable directed-graph abstractions shared by
// graph sources and compressed readers. A graph maps each node in [0, n) to a
// strictly increasing sequence of successors. Graphs are presented through
// node iterators so that sources too large to hold in memory can still be
// compressed.
package graph

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

// Iterator lazily yields non-negative integers in strictly increasing order
// and returns -1 once exhausted. Calling Next after exhaustion keeps
// returning -1.
type Iterator interface {
	Next() int
}

// NodeIterator walks the nodes of a graph in increasing order.
//
// Outdegree, Successors and SuccessorArray are valid only after a successful
// NextNode, and only until the following NextNode call.
type NodeIterator interface {
	// NextNode advances to the next node and returns it, or -1 when the
	// iterator is exhausted.
	NextNode() int

	// Outdegree returns the outdegree of the current node.
	Outdegree() int

	// Successors returns a lazy iterator over the successors of the current
	// node.
	Successors() Iterator

	// SuccessorArray returns the successors of the current node as a slice.
	// The caller must not mutate it and must not retain it across NextNode.
	SuccessorArray() []int
}

// CopyableNodeIterator is implemented by node iterators that can snapshot
// their state. Copies are independent and may be used from another goroutine.
type CopyableNodeIterator interface {
	NodeIterator

	// CopyIterator returns an independent iterator that continues from the
	// current position and stops before upperBound.
	CopyIterator(upperBound int) NodeIterator
}

// Graph is an immutable directed graph.
type Graph interface {
	// NumNodes returns the number of nodes.
	NumNodes() int

	// NodeIterator returns an iterator over nodes from (inclusive) onward.
	NodeIterator(from int) NodeIterator

	// SplitNodeIterators returns iterators over disjoint contiguous node
	// ranges that together cover the whole graph, for parallel scans.
	// Implementations that cannot split return a single iterator in a
	// one-element slice.
	SplitNodeIterators(howMany int) []NodeIterator
}

type sliceIterator struct {
	s []int
	i int
}

func (it *sliceIterator) Next() int {
	if it.i >= len(it.s) {
		return -1
	}
	v := it.s[it.i]
	it.i++
	return v
}

// SliceIterator returns an Iterator over s.
func SliceIterator(s []int) Iterator {
	return &sliceIterator{s: s}
}

// EmptyIterator is an Iterator with no elements.
var EmptyIterator Iterator = &sliceIterator{}

// Collect drains it into a freshly allocated slice.
func Collect(it Iterator) []int {
	out := []int{}
	for v := it.Next(); v != -1; v = it.Next() {
		out = append(out, v)
	}
	return out
}

// Equals reports whether g and h have the same node count and identical
// successor lists for every node.
func Equals(g, h Graph) bool {
	if g.NumNodes() != h.NumNodes() {
		return false
	}
	gi := g.NodeIterator(0)
	hi := h.NodeIterator(0)
	for {
		a := gi.NextNode()
		b := hi.NextNode()
		if a != b {
			return false
		}
		if a == -1 {
			return true
		}
		as := gi.SuccessorArray()
		bs := hi.SuccessorArray()
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
	}
}
