// Package bvgraph implements an immutable compressed web-graph codec: a
// bit-stream format encoding very large directed graphs with differential,
// interval and residual compression of adjacency lists, random access through
// a monotone offset index, and a parallel recompression driver.
//
// A stored graph with basename B consists of B.graph (the record bit stream),
// B.offsets (gap-coded record offsets), B.properties (key=value parameters)
// and optionally B.obl (a serialised offset index reused across opens).
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
	"github.com/vorteil/webgraph/pkg/elog"
	"github.com/vorteil/webgraph/pkg/graph"
	"github.com/vorteil/webgraph/pkg/offsets"
)

// Default compression parameters.
const (
	DefaultWindowSize        = 7
	DefaultMaxRefCount       = 3
	DefaultMinIntervalLength = 4
	DefaultZetaK             = 3
)

// ErrOffline is returned when a random-access operation is invoked on a graph
// loaded in offline mode.
var ErrOffline = errors.New("graph was loaded offline: only sequential access is available")

// LoadMode selects how the graph bit stream is backed after loading.
type LoadMode int

const (
	// LoadMapped memory-maps the graph file.
	LoadMapped LoadMode = iota
	// LoadInMemory copies the graph file into memory.
	LoadInMemory
	// LoadOffline keeps the graph on disk; only sequential iteration is
	// available and each iterator opens the file afresh.
	LoadOffline
)

// LoadArgs collects the optional arguments to Load.
type LoadArgs struct {
	Mode LoadMode

	// SkipOffsetCache disables both reading and writing the .obl side file.
	SkipOffsetCache bool

	Logger elog.View
}

// Graph is a loaded compressed graph. All read operations on one instance
// are single-threaded; use Copy to obtain independent readers for other
// goroutines. The backing bytes and the offset index are shared by copies.
type Graph struct {
	basename string
	props    *Properties

	n                 int
	arcs              int64
	windowSize        int
	maxRefCount       int
	minIntervalLength int
	zetaK             uint
	flags             Flags

	mode LoadMode
	data *region
	idx  *offsets.Index

	odIbs       *bitio.InputBitStream
	odCacheNode int
	odCacheDeg  int
	odCachePos  int64

	log elog.View
}

// Load opens the graph stored under basename.
func Load(basename string, args *LoadArgs) (*Graph, error) {
	if args == nil {
		args = &LoadArgs{}
	}
	log := args.Logger
	if log == nil {
		log = elog.Nil()
	}

	props, err := loadProperties(basename)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		basename:          basename,
		props:             props,
		n:                 props.Nodes,
		arcs:              props.Arcs,
		windowSize:        props.WindowSize,
		maxRefCount:       props.MaxRefCount,
		minIntervalLength: props.MinIntervalLength,
		zetaK:             props.ZetaK,
		flags:             props.Flags.resolve(),
		mode:              args.Mode,
		odCacheNode:       -1,
		log:               log,
	}

	if args.Mode == LoadOffline {
		return g, nil
	}

	if g.data, err = openRegion(graphPath(basename), args.Mode); err != nil {
		return nil, err
	}

	if !args.SkipOffsetCache {
		if idx, ok := loadOffsetCache(basename, int64(g.n)+1); ok {
			log.Debugf("reusing offset index from %s", offsetCachePath(basename))
			g.idx = idx
		}
	}
	if g.idx == nil {
		if g.idx, err = buildOffsetIndex(basename, int64(g.n)+1, g.data.size*8, g.flags, g.zetaK); err != nil {
			return nil, err
		}
		if !args.SkipOffsetCache {
			if err = saveOffsetCache(basename, g.idx); err != nil {
				log.Debugf("could not persist offset index: %v", err)
			}
		}
	}

	return g, nil
}

// buildOffsetIndex constructs the monotone index from the raw gap-coded
// offset stream.
func buildOffsetIndex(basename string, count, upperBound int64, flags Flags, zetaK uint) (*offsets.Index, error) {
	f, err := os.Open(offsetsPath(basename))
	if err != nil {
		return nil, errors.Wrap(err, "opening offset stream")
	}
	defer f.Close()

	ibs := bitio.NewReader(bufio.NewReaderSize(f, 1<<16))
	idx, err := offsets.New(count, upperBound, func() (int64, error) {
		d := readCode(ibs, flags.Offsets, zetaK)
		return d, ibs.Err()
	})
	if err != nil {
		return nil, errors.Wrap(err, "building offset index")
	}
	return idx, nil
}

// Basename returns the basename the graph was loaded from.
func (g *Graph) Basename() string {
	return g.basename
}

// Properties returns the parameters and statistics stored alongside the
// graph. The caller must not mutate them.
func (g *Graph) Properties() *Properties {
	return g.props
}

// NumNodes returns the number of nodes.
func (g *Graph) NumNodes() int {
	return g.n
}

// NumArcs returns the number of arcs.
func (g *Graph) NumArcs() int64 {
	return g.arcs
}

// RandomAccess reports whether the graph supports random-access reads.
func (g *Graph) RandomAccess() bool {
	return g.data != nil
}

// Copy returns an independent reader over the same graph, safe for use from
// another goroutine. The backing bytes and offset index are shared.
func (g *Graph) Copy() *Graph {
	ng := *g
	ng.odIbs = nil
	ng.odCacheNode = -1
	return &ng
}

// Close releases the resources backing the graph. Copies share the backing
// region, so a graph must be closed only once no reader derived from it is in
// use.
func (g *Graph) Close() error {
	if g.data == nil {
		return nil
	}
	return g.data.close()
}

func (g *Graph) checkNode(x int) error {
	if x < 0 || x >= g.n {
		return errors.Errorf("node %d outside [0, %d)", x, g.n)
	}
	return nil
}

// outdegreeAndPos returns the outdegree of x and the bit position right after
// the outdegree field, caching the result so that a successors call following
// an outdegree call does not re-read the record header.
func (g *Graph) outdegreeAndPos(x int) (int, int64, error) {
	if g.data == nil {
		return 0, 0, ErrOffline
	}
	if err := g.checkNode(x); err != nil {
		return 0, 0, err
	}
	if x == g.odCacheNode {
		return g.odCacheDeg, g.odCachePos, nil
	}
	if g.odIbs == nil {
		g.odIbs = g.data.newBitReader()
	}
	if err := g.odIbs.Position(g.idx.OffsetAt(int64(x))); err != nil {
		return 0, 0, errors.Wrapf(err, "positioning at node %d", x)
	}
	d := readCode(g.odIbs, g.flags.Outdegrees, g.zetaK)
	if err := g.odIbs.Err(); err != nil {
		return 0, 0, errors.Wrapf(err, "reading outdegree of node %d", x)
	}
	if d < 0 || d > int64(g.n) {
		return 0, 0, errors.Errorf("node %d: outdegree %d outside [0, %d]", x, d, g.n)
	}
	g.odCacheNode = x
	g.odCacheDeg = int(d)
	g.odCachePos = g.odIbs.Pos()
	return g.odCacheDeg, g.odCachePos, nil
}

// Outdegree returns the outdegree of x. Requires random access.
func (g *Graph) Outdegree(x int) (int, error) {
	d, _, err := g.outdegreeAndPos(x)
	return d, err
}

// Successors returns a lazy iterator over the successors of x in increasing
// order. Requires random access. The iterator must be consumed by a single
// goroutine.
func (g *Graph) Successors(x int) (graph.Iterator, error) {
	d, pos, err := g.outdegreeAndPos(x)
	if err != nil {
		return nil, err
	}
	ibs := g.data.newBitReader()
	if err = ibs.Position(pos); err != nil {
		return nil, errors.Wrapf(err, "positioning at node %d", x)
	}
	return g.parseRecord(x, d, ibs, nil, nil, 0)
}

// SuccessorArray returns the successors of x as a freshly allocated slice,
// fully validating the record. Requires random access.
func (g *Graph) SuccessorArray(x int) ([]int, error) {
	d, pos, err := g.outdegreeAndPos(x)
	if err != nil {
		return nil, err
	}
	ibs := g.data.newBitReader()
	if err = ibs.Position(pos); err != nil {
		return nil, errors.Wrapf(err, "positioning at node %d", x)
	}
	it, err := g.parseRecord(x, d, ibs, nil, nil, 0)
	if err != nil {
		return nil, err
	}
	out := make([]int, d)
	for i := range out {
		v := it.Next()
		if v == -1 {
			if err = ibs.Err(); err != nil {
				return nil, errors.Wrapf(err, "decoding successors of node %d", x)
			}
			return nil, errors.Errorf("node %d: record yields %d successors, outdegree says %d", x, i, d)
		}
		out[i] = v
	}
	if it.Next() != -1 {
		return nil, errors.Errorf("node %d: record yields more than %d successors", x, d)
	}
	if err = ibs.Err(); err != nil {
		return nil, errors.Wrapf(err, "decoding successors of node %d", x)
	}
	return out, nil
}

// region backs the graph bit stream with either a single byte slice or, for
// very large in-memory graphs, a list of fixed-size segments.
type region struct {
	data   []byte
	segs   [][]byte
	size   int64
	mapped bool
}

const regionSegmentSize = 1 << 30

func (r *region) newBitReader() *bitio.InputBitStream {
	if r.data != nil || r.size == 0 {
		return bitio.NewSliceReader(r.data)
	}
	return bitio.NewReaderAt(r)
}

// ReadAt implements io.ReaderAt over the segment list.
func (r *region) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > r.size {
		return 0, errors.Errorf("offset %d outside region of size %d", off, r.size)
	}
	n := 0
	for n < len(p) && off < r.size {
		seg := r.segs[off/regionSegmentSize]
		c := copy(p[n:], seg[off%regionSegmentSize:])
		n += c
		off += int64(c)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *region) close() error {
	if r.mapped && r.data != nil {
		data := r.data
		r.data = nil
		return munmapFile(data)
	}
	r.data = nil
	r.segs = nil
	return nil
}

func openRegion(path string, mode LoadMode) (*region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening graph stream")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "opening graph stream")
	}
	size := info.Size()
	r := &region{size: size}
	if size == 0 {
		return r, nil
	}

	if mode == LoadMapped {
		if r.data, err = mmapFile(f, size); err != nil {
			return nil, errors.Wrap(err, "mapping graph stream")
		}
		r.mapped = true
		return r, nil
	}

	if size < regionSegmentSize {
		r.data = make([]byte, size)
		if _, err = io.ReadFull(f, r.data); err != nil {
			return nil, errors.Wrap(err, "reading graph stream")
		}
		return r, nil
	}

	for off := int64(0); off < size; off += regionSegmentSize {
		l := size - off
		if l > regionSegmentSize {
			l = regionSegmentSize
		}
		seg := make([]byte, l)
		if _, err = io.ReadFull(f, seg); err != nil {
			return nil, errors.Wrap(err, "reading graph stream")
		}
		r.segs = append(r.segs, seg)
	}
	return r, nil
}
