package bvgraph

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"github.com/pkg/errors"

	"github.com/vorteil/webgraph/pkg/bitio"
)

// compressor encodes successor lists one node at a time, choosing for each
// node the reference within the sliding window that minimises the encoded
// size. It is single-threaded; the parallel store runs one compressor per
// node range.
type compressor struct {
	params storeParams
	w      int
	obs    *bitio.OutputBitStream

	// counting stream used to price candidate references
	counter *bitio.OutputBitStream

	window   [][]int
	outd     []int
	refCount []int
	count    int // nodes encoded so far in this range

	stats Stats

	// scratch for the differential walk
	blocks    []int
	extras    []int
	residuals []int
	ileft     []int
	ilen      []int
}

func newCompressor(params storeParams, obs *bitio.OutputBitStream) *compressor {
	w := params.windowSize + 1
	return &compressor{
		params:   params,
		w:        w,
		obs:      obs,
		counter:  bitio.NewBitCounter(),
		window:   make([][]int, w),
		outd:     make([]int, w),
		refCount: make([]int, w),
	}
}

// writeNode emits the record of node x with successor list list. The list
// must be strictly increasing with targets in [0, n).
func (c *compressor) writeNode(x int, list []int) error {
	d := len(list)
	if int64(d) > 1<<31-1 {
		return errors.Errorf("node %d: outdegree %d exceeds the format limit", x, d)
	}
	for i, v := range list {
		if v < 0 || v >= c.params.n {
			return errors.Errorf("node %d: successor %d outside [0, %d)", x, v, c.params.n)
		}
		if i > 0 && v <= list[i-1] {
			return errors.Errorf("node %d: successor list is not strictly increasing at position %d", x, i)
		}
	}

	nbits, err := writeCode(c.obs, c.params.flags.Outdegrees, c.params.zetaK, int64(d))
	if err != nil {
		return err
	}
	c.stats.BitsForOutdegrees += nbits
	c.stats.Records++

	slot := x % c.w
	if d == 0 {
		c.outd[slot] = 0
		c.refCount[slot] = 0
		c.count++
		return nil
	}

	// price every usable reference distance, keeping the smallest distance
	// on equal cost
	bestRef := 0
	c.counter.Reset()
	bestCost, err := c.diffComp(c.counter, x, 0, nil, list, true)
	if err != nil {
		return err
	}
	maxRef := c.params.windowSize
	if c.count < maxRef {
		maxRef = c.count
	}
	for r := 1; r <= maxRef; r++ {
		cand := (x - r) % c.w
		if c.refCount[cand] >= c.params.maxRefCount || c.outd[cand] == 0 {
			continue
		}
		c.counter.Reset()
		cost, err := c.diffComp(c.counter, x, r, c.window[cand][:c.outd[cand]], list, true)
		if err != nil {
			return err
		}
		if cost < bestCost {
			bestCost = cost
			bestRef = r
		}
	}

	var ref []int
	if bestRef > 0 {
		cand := (x - bestRef) % c.w
		ref = c.window[cand][:c.outd[cand]]
		c.refCount[slot] = c.refCount[cand] + 1
	} else {
		c.refCount[slot] = 0
	}
	if _, err = c.diffComp(c.obs, x, bestRef, ref, list, false); err != nil {
		return err
	}

	c.stats.SumRef += int64(bestRef)
	for _, v := range list {
		dist := int64(v - x)
		if dist < 0 {
			dist = -dist
		}
		c.stats.SumDist += dist
	}

	c.window[slot] = append(c.window[slot][:0], list...)
	c.outd[slot] = d
	c.count++
	return nil
}

// diffComp differentially encodes list against the reference list at
// distance r (empty for r = 0) and returns the number of bits emitted. With
// countOnly the stream must be the counting stream and no statistics are
// collected.
func (c *compressor) diffComp(obs *bitio.OutputBitStream, x, r int, ref, list []int, countOnly bool) (int64, error) {
	p := &c.params

	// two-pointer walk over list and ref, alternating copy and skip blocks
	// starting with copy
	blocks := c.blocks[:0]
	extras := c.extras[:0]
	j, k := 0, 0
	copying := true
	cur := 0
	for j < len(list) && k < len(ref) {
		if copying {
			switch {
			case list[j] > ref[k]:
				blocks = append(blocks, cur)
				cur = 0
				copying = false
			case list[j] < ref[k]:
				extras = append(extras, list[j])
				j++
			default:
				cur++
				j++
				k++
			}
		} else {
			switch {
			case list[j] > ref[k]:
				cur++
				k++
			case list[j] < ref[k]:
				extras = append(extras, list[j])
				j++
			default:
				blocks = append(blocks, cur)
				cur = 0
				copying = true
			}
		}
	}
	// the open block is stored only when copying stopped short of the end of
	// the reference list; an exhausted reference leaves the tail copy
	// implicit in the block count parity
	if copying && k < len(ref) {
		blocks = append(blocks, cur)
	}
	for ; j < len(list); j++ {
		extras = append(extras, list[j])
	}
	c.blocks = blocks
	c.extras = extras

	var total int64
	emit := func(bits int64, err error, sink *int64) error {
		if err != nil {
			return err
		}
		total += bits
		if !countOnly && sink != nil {
			*sink += bits
		}
		return nil
	}

	if p.windowSize > 0 {
		bits, err := writeCode(obs, p.flags.References, p.zetaK, int64(r))
		if err := emit(bits, err, &c.stats.BitsForReferences); err != nil {
			return 0, err
		}
	}

	if r > 0 {
		bits, err := writeCode(obs, p.flags.BlockCount, p.zetaK, int64(len(blocks)))
		if err := emit(bits, err, &c.stats.BitsForBlocks); err != nil {
			return 0, err
		}
		for i, b := range blocks {
			if i > 0 {
				b--
			}
			if b < 0 {
				return 0, errors.Errorf("node %d: internal error: empty copy block", x)
			}
			bits, err := writeCode(obs, p.flags.Blocks, p.zetaK, int64(b))
			if err := emit(bits, err, &c.stats.BitsForBlocks); err != nil {
				return 0, err
			}
		}
	}

	// intervalise the extras: maximal runs of consecutive integers of at
	// least the minimum length become (left, length) pairs
	residuals := c.residuals[:0]
	ileft := c.ileft[:0]
	ilen := c.ilen[:0]
	if p.minIntervalLength > 0 {
		for i := 0; i < len(extras); {
			j := i + 1
			for j < len(extras) && extras[j] == extras[j-1]+1 {
				j++
			}
			if j-i >= p.minIntervalLength {
				ileft = append(ileft, extras[i])
				ilen = append(ilen, j-i)
			} else {
				residuals = append(residuals, extras[i:j]...)
			}
			i = j
		}
	} else {
		residuals = append(residuals, extras...)
	}
	c.residuals = residuals
	c.ileft = ileft
	c.ilen = ilen

	if len(extras) > 0 && p.minIntervalLength > 0 {
		bits, err := obs.WriteGamma(int64(len(ileft)))
		if err := emit(bits, err, &c.stats.BitsForIntervals); err != nil {
			return 0, err
		}
		prev := 0
		for i := range ileft {
			if i == 0 {
				bits, err = obs.WriteGamma(bitio.Int2Nat(int64(ileft[0] - x)))
			} else {
				bits, err = obs.WriteGamma(int64(ileft[i] - prev - 1))
			}
			if err := emit(bits, err, &c.stats.BitsForIntervals); err != nil {
				return 0, err
			}
			bits, err = obs.WriteGamma(int64(ilen[i] - p.minIntervalLength))
			if err := emit(bits, err, &c.stats.BitsForIntervals); err != nil {
				return 0, err
			}
			prev = ileft[i] + ilen[i]
		}
	}

	prev := 0
	for i, v := range residuals {
		var bits int64
		var err error
		if i == 0 {
			bits, err = writeCode(obs, p.flags.Residuals, p.zetaK, bitio.Int2Nat(int64(v-x)))
		} else {
			if v == prev {
				return 0, errors.Errorf("node %d: repeated residual %d", x, v)
			}
			bits, err = writeCode(obs, p.flags.Residuals, p.zetaK, int64(v-prev-1))
		}
		if err := emit(bits, err, &c.stats.BitsForResiduals); err != nil {
			return 0, err
		}
		prev = v
	}

	if !countOnly {
		intervalised := 0
		for _, l := range ilen {
			intervalised += l
		}
		c.stats.CopiedArcs += int64(len(list) - len(extras))
		c.stats.IntervalisedArcs += int64(intervalised)
		c.stats.ResidualArcs += int64(len(residuals))
	}
	return total, nil
}
