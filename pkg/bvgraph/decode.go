package bvgraph

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"github.com/pkg/errors"

	"github.com/vorteil/webgraph/pkg/bitio"
	"github.com/vorteil/webgraph/pkg/graph"
)

// parseRecord decodes the record of node x from ibs, which must be positioned
// immediately after the outdegree field, and returns a lazy iterator over the
// successors of x. d is the outdegree already read.
//
// In sequential mode window and outd hold the last W decoded lists and their
// lengths, indexed by node mod W, and reference lists are fetched from there.
// In random-access mode (window == nil) reference lists are resolved by
// recursively decoding node x-r from a fresh bit reader; depth tracks the
// recursion and is bounded by the maximum reference chain length.
func (g *Graph) parseRecord(x, d int, ibs *bitio.InputBitStream, window [][]int, outd []int, depth int) (graph.Iterator, error) {
	if d == 0 {
		return graph.EmptyIterator, nil
	}

	ref := 0
	if g.windowSize > 0 {
		r := readCode(ibs, g.flags.References, g.zetaK)
		if err := ibs.Err(); err != nil {
			return nil, errors.Wrapf(err, "reading reference of node %d", x)
		}
		if r < 0 || r > int64(g.windowSize) {
			return nil, errors.Errorf("node %d: reference %d exceeds window size %d", x, r, g.windowSize)
		}
		ref = int(r)
		if ref > x {
			return nil, errors.Errorf("node %d: reference %d points before node 0", x, ref)
		}
	}

	var refIt graph.Iterator
	var blocks []int
	copied := 0
	if ref > 0 {
		var refDeg int
		if window != nil {
			slot := (x - ref + len(window)) % len(window)
			refDeg = outd[slot]
			refIt = graph.SliceIterator(window[slot][:refDeg])
		} else {
			if depth >= g.maxRefCount {
				return nil, errors.Errorf("node %d: reference chain exceeds depth %d", x, g.maxRefCount)
			}
			var err error
			refIt, refDeg, err = g.recursiveSuccessors(x-ref, depth+1)
			if err != nil {
				return nil, err
			}
		}

		b := readCode(ibs, g.flags.BlockCount, g.zetaK)
		if err := ibs.Err(); err != nil {
			return nil, errors.Wrapf(err, "reading block count of node %d", x)
		}
		if b < 0 || b > int64(refDeg)+1 {
			return nil, errors.Errorf("node %d: block count %d cannot partition a reference list of length %d", x, b, refDeg)
		}

		blocks = make([]int, b)
		total := 0
		for i := range blocks {
			v := readCode(ibs, g.flags.Blocks, g.zetaK)
			if i > 0 {
				v++
			}
			if v < 0 {
				return nil, errors.Errorf("node %d: negative copy block", x)
			}
			blocks[i] = int(v)
			total += int(v)
			if i%2 == 0 {
				copied += int(v)
			}
		}
		if err := ibs.Err(); err != nil {
			return nil, errors.Wrapf(err, "reading copy blocks of node %d", x)
		}
		if total > refDeg {
			return nil, errors.Errorf("node %d: copy blocks span %d entries of a reference list of length %d", x, total, refDeg)
		}
		if len(blocks)%2 == 0 {
			copied += refDeg - total
		}
		if copied > d {
			return nil, errors.Errorf("node %d: %d copied successors exceed outdegree %d", x, copied, d)
		}
	}

	extra := d - copied

	var intervals [][2]int
	intervalised := 0
	if extra > 0 && g.minIntervalLength > 0 {
		icount := ibs.ReadGamma()
		if err := ibs.Err(); err != nil {
			return nil, errors.Wrapf(err, "reading interval count of node %d", x)
		}
		if icount < 0 || icount > int64(extra) {
			return nil, errors.Errorf("node %d: interval count %d exceeds %d leftover successors", x, icount, extra)
		}
		if icount > 0 {
			intervals = make([][2]int, icount)
			var prev int64
			for i := range intervals {
				var left int64
				if i == 0 {
					left = int64(x) + bitio.Nat2Int(ibs.ReadGamma())
				} else {
					left = prev + ibs.ReadGamma() + 1
				}
				length := ibs.ReadGamma() + int64(g.minIntervalLength)
				if err := ibs.Err(); err != nil {
					return nil, errors.Wrapf(err, "reading interval %d of node %d", i, x)
				}
				if left < 0 || length < int64(g.minIntervalLength) || left+length > int64(g.n) {
					return nil, errors.Errorf("node %d: interval [%d, %d) outside [0, %d)", x, left, left+length, g.n)
				}
				intervals[i] = [2]int{int(left), int(length)}
				prev = left + length
				intervalised += int(length)
			}
			extra -= intervalised
			if extra < 0 {
				return nil, errors.Errorf("node %d: intervals cover %d successors but only %d remain", x, intervalised, extra+intervalised)
			}
		}
	}

	var extraIt graph.Iterator
	switch {
	case len(intervals) == 0 && extra == 0:
		extraIt = nil
	case len(intervals) == 0:
		extraIt = newResidualIterator(g, ibs, x, extra)
	case extra == 0:
		extraIt = &intervalIterator{intervals: intervals}
	default:
		extraIt = newMergeIterator(&intervalIterator{intervals: intervals}, newResidualIterator(g, ibs, x, extra))
	}

	if ref == 0 {
		if extraIt == nil {
			return nil, errors.Errorf("node %d: outdegree %d but empty record body", x, d)
		}
		return extraIt, nil
	}
	masked := &maskedIterator{inner: refIt, mask: blocks}
	if extraIt == nil {
		return masked, nil
	}
	return newMergeIterator(masked, extraIt), nil
}

// recursiveSuccessors resolves the successor iterator and outdegree of a
// referenced node in random-access mode, using a fresh bit reader so the
// outer cursor is not perturbed.
func (g *Graph) recursiveSuccessors(x, depth int) (graph.Iterator, int, error) {
	d, pos, err := g.outdegreeAndPos(x)
	if err != nil {
		return nil, 0, err
	}
	ibs := g.data.newBitReader()
	if err = ibs.Position(pos); err != nil {
		return nil, 0, errors.Wrapf(err, "positioning at node %d", x)
	}
	it, err := g.parseRecord(x, d, ibs, nil, nil, depth)
	if err != nil {
		return nil, 0, err
	}
	return it, d, nil
}

// maskedIterator filters a reference list through alternating copy/skip
// blocks, starting in copy mode. When the mask has even length the tail of
// the reference list beyond the last block is copied.
type maskedIterator struct {
	inner graph.Iterator
	mask  []int
	idx   int
	left  int // remaining yields in the current copy block; -1 for the tail
}

func (it *maskedIterator) Next() int {
	for {
		if it.left < 0 {
			return it.inner.Next()
		}
		if it.left > 0 {
			it.left--
			return it.inner.Next()
		}
		if it.idx >= len(it.mask) {
			if len(it.mask)%2 == 0 {
				it.left = -1
				continue
			}
			return -1
		}
		n := it.mask[it.idx]
		if it.idx%2 == 1 {
			for ; n > 0; n-- {
				it.inner.Next()
			}
		} else {
			it.left = n
		}
		it.idx++
	}
}

// intervalIterator enumerates the integers covered by a list of (left,
// length) intervals in increasing order.
type intervalIterator struct {
	intervals [][2]int
	i         int
	cur       int
	left      int
}

func (it *intervalIterator) Next() int {
	for it.left == 0 {
		if it.i >= len(it.intervals) {
			return -1
		}
		it.cur = it.intervals[it.i][0]
		it.left = it.intervals[it.i][1]
		it.i++
	}
	v := it.cur
	it.cur++
	it.left--
	return v
}

// residualIterator lazily decodes the gap-coded residual list. The first
// residual is coded relative to the owning node through Int2Nat; subsequent
// residuals are strict gaps.
type residualIterator struct {
	g         *Graph
	ibs       *bitio.InputBitStream
	x         int
	remaining int
	prev      int64
	first     bool
}

func newResidualIterator(g *Graph, ibs *bitio.InputBitStream, x, count int) *residualIterator {
	return &residualIterator{g: g, ibs: ibs, x: x, remaining: count, first: true}
}

func (it *residualIterator) Next() int {
	if it.remaining == 0 {
		return -1
	}
	raw := readCode(it.ibs, it.g.flags.Residuals, it.g.zetaK)
	var v int64
	if it.first {
		v = int64(it.x) + bitio.Nat2Int(raw)
		it.first = false
	} else {
		v = it.prev + raw + 1
	}
	if it.ibs.Err() != nil {
		it.remaining = 0
		return -1
	}
	if v < 0 || v >= int64(it.g.n) {
		it.ibs.Fail(errors.Errorf("node %d: residual %d outside [0, %d)", it.x, v, it.g.n))
		it.remaining = 0
		return -1
	}
	it.prev = v
	it.remaining--
	return int(v)
}

// mergeIterator yields the duplicate-free union of two strictly increasing
// iterators.
type mergeIterator struct {
	a, b   graph.Iterator
	va, vb int
	primed bool
}

func newMergeIterator(a, b graph.Iterator) *mergeIterator {
	return &mergeIterator{a: a, b: b}
}

func (it *mergeIterator) Next() int {
	if !it.primed {
		it.va = it.a.Next()
		it.vb = it.b.Next()
		it.primed = true
	}
	switch {
	case it.va == -1 && it.vb == -1:
		return -1
	case it.vb == -1 || (it.va != -1 && it.va < it.vb):
		v := it.va
		it.va = it.a.Next()
		return v
	case it.va == -1 || it.vb < it.va:
		v := it.vb
		it.vb = it.b.Next()
		return v
	default: // equal
		v := it.va
		it.va = it.a.Next()
		it.vb = it.b.Next()
		return v
	}
}
