// Package offsets provides a compressed, random-access index over a monotone
// sequence of bit offsets. The layout is the Elias-Fano representation: each
// value is split into l low bits, stored verbatim, and high bits, stored as
// gaps in unary inside a bit array. Retrieval is one select operation over the
// high-bit array plus one low-bits fetch.
package offsets

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
	"math/bits"

	"github.com/pkg/errors"
)

// selectQuantum is the spacing, in ones, of the select directory over the
// high-bit array.
const selectQuantum = 256

// Index answers OffsetAt(i) for i in [0, Count) in near-constant time.
// An Index is immutable and safe for concurrent readers.
type Index struct {
	count  int64
	bound  int64
	l      uint
	lower  []uint64
	upper  []uint64
	selOne []int64
}

// New builds an Index over count monotone values presented as successive
// differences: the i-th value is the sum of the first i+1 differences
// returned by next. upperBound must be at least the largest value.
func New(count, upperBound int64, next func() (int64, error)) (*Index, error) {
	if count < 1 {
		return nil, errors.Errorf("cannot index %d values", count)
	}
	if upperBound < 0 {
		return nil, errors.Errorf("negative upper bound %d", upperBound)
	}

	var l uint
	if upperBound/count > 0 {
		l = uint(bits.Len64(uint64(upperBound / count))) - 1
	}

	idx := &Index{
		count:  count,
		bound:  upperBound,
		l:      l,
		lower:  make([]uint64, (uint64(count)*uint64(l)+63)/64),
		upper:  make([]uint64, ((upperBound>>l)+count+63)/64+1),
		selOne: make([]int64, 0, count/selectQuantum+1),
	}

	var value int64
	for i := int64(0); i < count; i++ {
		delta, err := next()
		if err != nil {
			return nil, errors.Wrapf(err, "reading difference %d", i)
		}
		if delta < 0 {
			return nil, errors.Errorf("negative difference %d at position %d", delta, i)
		}
		value += delta
		if value > upperBound {
			return nil, errors.Errorf("value %d at position %d exceeds upper bound %d", value, i, upperBound)
		}
		idx.setLower(i, uint64(value)&(1<<l-1))
		high := (value >> l) + i
		idx.upper[high>>6] |= 1 << (uint(high) & 63)
		if i%selectQuantum == 0 {
			idx.selOne = append(idx.selOne, high)
		}
	}
	return idx, nil
}

// Count returns the number of indexed values.
func (idx *Index) Count() int64 {
	return idx.count
}

// Bound returns the upper bound the index was built with.
func (idx *Index) Bound() int64 {
	return idx.bound
}

// OffsetAt returns the i-th monotone value. It panics if i is out of range;
// an out-of-range index is a programmer error, not a data fault.
func (idx *Index) OffsetAt(i int64) int64 {
	if i < 0 || i >= idx.count {
		panic(fmt.Sprintf("offsets: index %d out of range [0, %d)", i, idx.count))
	}
	high := idx.selectOne(i) - i
	return high<<idx.l | int64(idx.getLower(i))
}

// selectOne returns the bit position of the i-th one (zero-based) in the
// high-bit array.
func (idx *Index) selectOne(i int64) int64 {
	start := idx.selOne[i/selectQuantum]
	skip := int(i % selectQuantum)

	word := start >> 6
	w := idx.upper[word] >> (uint(start) & 63) << (uint(start) & 63)
	for {
		c := bits.OnesCount64(w)
		if c > skip {
			for ; skip > 0; skip-- {
				w &= w - 1
			}
			return word<<6 + int64(bits.TrailingZeros64(w))
		}
		skip -= c
		word++
		w = idx.upper[word]
	}
}

func (idx *Index) setLower(i int64, v uint64) {
	if idx.l == 0 {
		return
	}
	bitPos := uint64(i) * uint64(idx.l)
	word, shift := bitPos>>6, uint(bitPos&63)
	idx.lower[word] |= v << shift
	if shift+idx.l > 64 {
		idx.lower[word+1] |= v >> (64 - shift)
	}
}

func (idx *Index) getLower(i int64) uint64 {
	if idx.l == 0 {
		return 0
	}
	bitPos := uint64(i) * uint64(idx.l)
	word, shift := bitPos>>6, uint(bitPos&63)
	v := idx.lower[word] >> shift
	if shift+idx.l > 64 {
		v |= idx.lower[word+1] << (64 - shift)
	}
	return v & (1<<idx.l - 1)
}
