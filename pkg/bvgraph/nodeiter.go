package bvgraph

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/vorteil/webgraph/pkg/bitio"
	"github.com/vorteil/webgraph/pkg/graph"
)

// serialIterator walks the graph stream node by node, keeping the last W
// decoded successor lists in a cyclic window so that referenced lists are
// never decoded recursively.
type serialIterator struct {
	g          *Graph
	ibs        *bitio.InputBitStream
	curr       int
	upperBound int
	window     [][]int
	outd       []int
	err        error
	closer     io.Closer
}

func (g *Graph) newSerialIterator(ibs *bitio.InputBitStream, from, upperBound int, closer io.Closer) *serialIterator {
	w := g.windowSize + 1
	return &serialIterator{
		g:          g,
		ibs:        ibs,
		curr:       from - 1,
		upperBound: upperBound,
		window:     make([][]int, w),
		outd:       make([]int, w),
		closer:     closer,
	}
}

// NodeIterator returns a sequential iterator over nodes from onward. For a
// random-access graph starting mid-stream, the window is pre-filled by
// decoding the preceding nodes through the offset index; an offline graph
// reaches the start node by decoding from the beginning of the stream.
func (g *Graph) NodeIterator(from int) graph.NodeIterator {
	it, err := g.nodeIterator(from)
	if err != nil {
		return &failedIterator{err: err}
	}
	return it
}

func (g *Graph) nodeIterator(from int) (*serialIterator, error) {
	if from < 0 || from > g.n {
		return nil, errors.Errorf("start node %d outside [0, %d]", from, g.n)
	}

	if g.data == nil {
		f, err := os.Open(graphPath(g.basename))
		if err != nil {
			return nil, errors.Wrap(err, "opening graph stream")
		}
		it := g.newSerialIterator(bitio.NewReader(bufio.NewReaderSize(f, 1<<16)), 0, g.n, f)
		// skip-decode up to the requested start
		for it.curr+1 < from {
			if it.NextNode() == -1 {
				break
			}
		}
		return it, it.err
	}

	ibs := g.data.newBitReader()
	it := g.newSerialIterator(ibs, from, g.n, nil)
	if from > 0 {
		for i := from - g.windowSize; i < from; i++ {
			if i < 0 {
				continue
			}
			succ, err := g.SuccessorArray(i)
			if err != nil {
				return nil, err
			}
			slot := i % len(it.window)
			it.window[slot] = succ
			it.outd[slot] = len(succ)
		}
	}
	if err := ibs.Position(g.idx.OffsetAt(int64(from))); err != nil {
		return nil, errors.Wrapf(err, "positioning at node %d", from)
	}
	return it, nil
}

// SplitNodeIterators returns howMany iterators over contiguous node ranges
// covering the whole graph. An offline graph cannot split and returns a
// single iterator.
func (g *Graph) SplitNodeIterators(howMany int) []graph.NodeIterator {
	if g.data == nil || howMany < 2 {
		return []graph.NodeIterator{g.NodeIterator(0)}
	}
	return graph.SplitContiguous(g.n, howMany, func(from, upperBound int) graph.NodeIterator {
		it, err := g.nodeIterator(from)
		if err != nil {
			return &failedIterator{err: err}
		}
		it.upperBound = upperBound
		return it
	})
}

// NextNode decodes the next record into the window and returns its node, or
// -1 at the end of the range or on a decode fault (see Err).
func (it *serialIterator) NextNode() int {
	if it.err != nil {
		return -1
	}
	if it.curr+1 >= it.upperBound {
		it.release()
		return -1
	}
	x := it.curr + 1
	g := it.g

	d64 := readCode(it.ibs, g.flags.Outdegrees, g.zetaK)
	if err := it.ibs.Err(); err != nil {
		it.fail(errors.Wrapf(err, "reading outdegree of node %d", x))
		return -1
	}
	if d64 < 0 || d64 > int64(g.n) {
		it.fail(errors.Errorf("node %d: outdegree %d outside [0, %d]", x, d64, g.n))
		return -1
	}
	d := int(d64)

	slot := x % len(it.window)
	it.outd[slot] = d
	rec, err := g.parseRecord(x, d, it.ibs, it.window, it.outd, 0)
	if err != nil {
		it.fail(err)
		return -1
	}

	if cap(it.window[slot]) < d {
		it.window[slot] = make([]int, d)
	}
	arr := it.window[slot][:d]
	for i := 0; i < d; i++ {
		v := rec.Next()
		if v == -1 {
			if err = it.ibs.Err(); err == nil {
				err = errors.Errorf("node %d: record yields %d successors, outdegree says %d", x, i, d)
			}
			it.fail(errors.Wrapf(err, "decoding node %d", x))
			return -1
		}
		arr[i] = v
	}
	if rec.Next() != -1 {
		it.fail(errors.Errorf("node %d: record yields more than %d successors", x, d))
		return -1
	}
	it.window[slot] = arr

	it.curr = x
	return x
}

// Outdegree returns the outdegree of the current node.
func (it *serialIterator) Outdegree() int {
	return it.outd[it.curr%len(it.window)]
}

// Successors returns a lazy iterator over the current node's successors.
func (it *serialIterator) Successors() graph.Iterator {
	return graph.SliceIterator(it.SuccessorArray())
}

// SuccessorArray returns the current node's successors; the slice is owned by
// the window and must not be mutated or retained across NextNode.
func (it *serialIterator) SuccessorArray() []int {
	slot := it.curr % len(it.window)
	return it.window[slot][:it.outd[slot]]
}

// CopyIterator snapshots the iterator at its current position, deep-copying
// the window, for use from another goroutine. It returns nil when the backing
// store does not support independent bit-stream positions (offline mode).
func (it *serialIterator) CopyIterator(upperBound int) graph.NodeIterator {
	if it.closer != nil || it.g.data == nil {
		return nil
	}
	if upperBound > it.g.n {
		upperBound = it.g.n
	}
	cp := it.g.newSerialIterator(it.g.data.newBitReader(), it.curr+1, upperBound, nil)
	cp.curr = it.curr
	if err := cp.ibs.Position(it.ibs.Pos()); err != nil {
		return &failedIterator{err: err}
	}
	for i, w := range it.window {
		cp.window[i] = append([]int(nil), w...)
		cp.outd[i] = it.outd[i]
	}
	return cp
}

// Err returns the decode fault that terminated the iteration early, if any.
func (it *serialIterator) Err() error {
	return it.err
}

func (it *serialIterator) fail(err error) {
	it.err = err
	it.release()
}

func (it *serialIterator) release() {
	if it.closer != nil {
		it.closer.Close()
		it.closer = nil
	}
}

// failedIterator reports a construction error through the NodeIterator
// surface.
type failedIterator struct {
	err error
}

func (it *failedIterator) NextNode() int              { return -1 }
func (it *failedIterator) Outdegree() int             { return 0 }
func (it *failedIterator) Successors() graph.Iterator { return graph.EmptyIterator }
func (it *failedIterator) SuccessorArray() []int      { return nil }
func (it *failedIterator) Err() error                 { return it.err }
