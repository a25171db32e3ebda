package bvgraph

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/vorteil/webgraph/pkg/bitio"
	"github.com/vorteil/webgraph/pkg/elog"
	"github.com/vorteil/webgraph/pkg/graph"
)

// StoreArgs collects the arguments of Store. Use DefaultStoreArgs as the
// starting point; the zero value of WindowSize and MinIntervalLength is
// meaningful (references and intervals disabled, respectively), so defaults
// are not applied field by field.
type StoreArgs struct {
	// WindowSize is the number of previous lists considered as references;
	// 0 disables referential compression.
	WindowSize int

	// MaxRefCount bounds the length of reference chains.
	MaxRefCount int

	// MinIntervalLength is the minimum run length stored as an interval;
	// 0 disables intervals.
	MinIntervalLength int

	// ZetaK is the shrinking factor of the zeta code.
	ZetaK uint

	// Flags selects the code per record field; zero-valued fields use the
	// format defaults.
	Flags Flags

	// Threads is the number of parallel compression workers; 0 picks a
	// default based on the machine and the graph size.
	Threads int

	// TmpDir overrides the directory holding per-worker temporary files.
	TmpDir string

	Logger elog.View
}

// DefaultStoreArgs returns StoreArgs with the default compression
// parameters.
func DefaultStoreArgs() *StoreArgs {
	return &StoreArgs{
		WindowSize:        DefaultWindowSize,
		MaxRefCount:       DefaultMaxRefCount,
		MinIntervalLength: DefaultMinIntervalLength,
		ZetaK:             DefaultZetaK,
	}
}

func (args *StoreArgs) validate() error {
	if args.WindowSize < 0 {
		return errors.Errorf("negative window size %d", args.WindowSize)
	}
	if args.MaxRefCount < 1 {
		return errors.Errorf("maximum reference count %d must be positive", args.MaxRefCount)
	}
	if args.MinIntervalLength < 0 {
		return errors.Errorf("negative minimum interval length %d", args.MinIntervalLength)
	}
	if args.MinIntervalLength == 1 {
		return errors.New("minimum interval length 1 is not expressible (interval lengths are stored reduced by the minimum)")
	}
	if args.ZetaK < 1 || args.ZetaK > 8 {
		return errors.Errorf("zeta parameter %d outside [1, 8]", args.ZetaK)
	}
	return args.Flags.validate()
}

// Store compresses src into the three files of basename using the sliding
// window differential codec. The input is split into contiguous node ranges
// compressed in parallel; per-range streams are concatenated bit-exactly, so
// the output is identical to a single-threaded store except that windows
// restart at range boundaries.
func Store(ctx context.Context, src graph.Graph, basename string, args *StoreArgs) error {
	if args == nil {
		args = DefaultStoreArgs()
	}
	if err := args.validate(); err != nil {
		return err
	}
	log := args.Logger
	if log == nil {
		log = elog.Nil()
	}

	n := src.NumNodes()
	if n < 0 || int64(n) > 1<<31-1 {
		return errors.Errorf("cannot store a graph with %d nodes", n)
	}

	threads := args.Threads
	if threads <= 0 {
		threads = n / 100_000
		if cpus := runtime.NumCPU(); threads > cpus {
			threads = cpus
		}
	}
	if threads < 1 {
		threads = 1
	}

	iters := src.SplitNodeIterators(threads)
	if len(iters) == 0 {
		return errors.New("source graph provided no node iterators")
	}
	if len(iters) != threads {
		// the source cannot provide disjoint copy-safe iterators
		iters = iters[:1]
		threads = 1
	}

	tmpDir := args.TmpDir
	if tmpDir == "" {
		tmpDir = filepath.Dir(basename)
	}
	tmp, err := os.MkdirTemp(tmpDir, "webgraph-store-")
	if err != nil {
		return errors.Wrap(err, "creating temporary directory")
	}
	defer os.RemoveAll(tmp)

	log.Infof("storing %d nodes with %d threads", n, threads)
	progress := log.NewProgress("Compressing graph", "nodes", int64(n))
	defer progress.Finish(false)
	shared := &lockedProgress{p: progress}

	results := make([]*rangeResult, threads)
	group, ctx := errgroup.WithContext(ctx)
	for i := range iters {
		i := i
		group.Go(func() error {
			res, err := storeRange(ctx, iters[i], resolvedParams(args, n), rangePathsFor(tmp, i), shared)
			if err != nil {
				return errors.Wrapf(err, "compressing range %d", i)
			}
			results[i] = res
			return nil
		})
	}
	if err = group.Wait(); err != nil {
		return err
	}

	var nodes, graphBits int64
	stats := &Stats{}
	for _, res := range results {
		nodes += res.nodes
		graphBits += res.graphBits
		stats.add(&res.stats)
	}
	if nodes != int64(n) {
		return errors.Errorf("source iterators visited %d nodes, expected %d", nodes, n)
	}
	stats.TotalBits = graphBits

	if err = concatenate(basename, results, args); err != nil {
		os.Remove(graphPath(basename))
		os.Remove(offsetsPath(basename))
		return err
	}

	props := &Properties{
		GraphClass:        GraphClass,
		Version:           FormatVersion,
		Nodes:             n,
		Arcs:              stats.CopiedArcs + stats.IntervalisedArcs + stats.ResidualArcs,
		WindowSize:        args.WindowSize,
		MaxRefCount:       args.MaxRefCount,
		MinIntervalLength: args.MinIntervalLength,
		ZetaK:             args.ZetaK,
		Flags:             args.Flags,
		Stats:             stats,
	}
	if err = props.write(basename); err != nil {
		return err
	}

	progress.Finish(true)
	log.Infof("stored %d nodes, %d arcs, %s bits/link", n, props.Arcs, ratio(graphBits, props.Arcs))
	return nil
}

type storeParams struct {
	windowSize        int
	maxRefCount       int
	minIntervalLength int
	zetaK             uint
	flags             Flags
	n                 int
}

func resolvedParams(args *StoreArgs, n int) storeParams {
	return storeParams{
		windowSize:        args.WindowSize,
		maxRefCount:       args.MaxRefCount,
		minIntervalLength: args.MinIntervalLength,
		zetaK:             args.ZetaK,
		flags:             args.Flags.resolve(),
		n:                 n,
	}
}

type rangePaths struct {
	graph, offsets string
}

func rangePathsFor(tmp string, i int) rangePaths {
	return rangePaths{
		graph:   filepath.Join(tmp, fmt.Sprintf("graph-%d", i)),
		offsets: filepath.Join(tmp, fmt.Sprintf("offsets-%d", i)),
	}
}

type rangeResult struct {
	paths      rangePaths
	graphBits  int64
	offsetBits int64
	nodes      int64
	stats      Stats
}

type lockedProgress struct {
	mu sync.Mutex
	p  elog.Progress
}

func (lp *lockedProgress) Increment(n int64) {
	lp.mu.Lock()
	lp.p.Increment(n)
	lp.mu.Unlock()
}

// storeRange compresses one contiguous node range into temporary graph and
// offset files, with a fresh window at the range start.
func storeRange(ctx context.Context, it graph.NodeIterator, params storeParams, paths rangePaths, progress *lockedProgress) (*rangeResult, error) {
	gf, err := os.Create(paths.graph)
	if err != nil {
		return nil, errors.Wrap(err, "creating temporary graph file")
	}
	defer gf.Close()
	of, err := os.Create(paths.offsets)
	if err != nil {
		return nil, errors.Wrap(err, "creating temporary offsets file")
	}
	defer of.Close()

	gw := bufio.NewWriterSize(gf, 1<<16)
	ow := bufio.NewWriterSize(of, 1<<16)
	obs := bitio.NewWriter(gw)
	oos := bitio.NewWriter(ow)

	// every range stream starts with a zero offset; all but the first are
	// dropped during concatenation
	if _, err = writeCode(oos, params.flags.Offsets, params.zetaK, 0); err != nil {
		return nil, err
	}

	comp := newCompressor(params, obs)
	res := &rangeResult{paths: paths}
	var lastBits int64

	for x := it.NextNode(); x != -1; x = it.NextNode() {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		if err = comp.writeNode(x, it.SuccessorArray()); err != nil {
			return nil, err
		}
		written := obs.Written()
		if _, err = writeCode(oos, params.flags.Offsets, params.zetaK, written-lastBits); err != nil {
			return nil, err
		}
		lastBits = written
		res.nodes++
		if res.nodes%8192 == 0 {
			progress.Increment(8192)
		}
	}
	if errIt, ok := it.(interface{ Err() error }); ok {
		if err = errIt.Err(); err != nil {
			return nil, errors.Wrap(err, "reading source graph")
		}
	}
	progress.Increment(res.nodes % 8192)

	res.graphBits = obs.Written()
	res.offsetBits = oos.Written()
	res.stats = comp.stats

	if err = obs.Close(); err != nil {
		return nil, err
	}
	if err = oos.Close(); err != nil {
		return nil, err
	}
	if err = gw.Flush(); err != nil {
		return nil, errors.Wrap(err, "flushing temporary graph file")
	}
	if err = ow.Flush(); err != nil {
		return nil, errors.Wrap(err, "flushing temporary offsets file")
	}
	if err = gf.Close(); err != nil {
		return nil, err
	}
	return res, of.Close()
}

// concatenate assembles the final graph and offset streams from the
// per-range temporaries, preserving node order and dropping the leading zero
// offset of every range but the first.
func concatenate(basename string, results []*rangeResult, args *StoreArgs) error {
	flags := args.Flags.resolve()

	gf, err := os.Create(graphPath(basename))
	if err != nil {
		return errors.Wrap(err, "creating graph file")
	}
	defer gf.Close()
	of, err := os.Create(offsetsPath(basename))
	if err != nil {
		return errors.Wrap(err, "creating offsets file")
	}
	defer of.Close()

	gw := bufio.NewWriterSize(gf, 1<<16)
	ow := bufio.NewWriterSize(of, 1<<16)
	obs := bitio.NewWriter(gw)
	oos := bitio.NewWriter(ow)

	for i, res := range results {
		if err = copyBits(res.paths.graph, obs, res.graphBits, 0, flags, args.ZetaK); err != nil {
			return errors.Wrapf(err, "concatenating graph range %d", i)
		}
		skip := 0
		if i > 0 {
			skip = 1
		}
		if err = copyBits(res.paths.offsets, oos, res.offsetBits, skip, flags, args.ZetaK); err != nil {
			return errors.Wrapf(err, "concatenating offsets range %d", i)
		}
	}

	if err = obs.Close(); err != nil {
		return err
	}
	if err = oos.Close(); err != nil {
		return err
	}
	if err = gw.Flush(); err != nil {
		return errors.Wrap(err, "flushing graph file")
	}
	if err = ow.Flush(); err != nil {
		return errors.Wrap(err, "flushing offsets file")
	}
	if err = gf.Close(); err != nil {
		return err
	}
	return of.Close()
}

// copyBits streams bits bits from path into out, first discarding skip
// offset-coded values.
func copyBits(path string, out *bitio.OutputBitStream, bits int64, skip int, flags Flags, zetaK uint) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening temporary file")
	}
	defer f.Close()

	in := bitio.NewReader(bufio.NewReaderSize(f, 1<<16))
	for i := 0; i < skip; i++ {
		readCode(in, flags.Offsets, zetaK)
		if err = in.Err(); err != nil {
			return err
		}
	}
	_, err = out.CopyFrom(in, bits-in.Pos())
	return err
}
