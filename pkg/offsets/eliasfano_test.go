package offsets

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deltaFeed(deltas []int64) func() (int64, error) {
	i := 0
	return func() (int64, error) {
		d := deltas[i]
		i++
		return d, nil
	}
}

func TestIndexSmall(t *testing.T) {
	deltas := []int64{0, 3, 1, 10, 2, 2}
	values := []int64{0, 3, 4, 14, 16, 18}

	idx, err := New(int64(len(deltas)), 18, deltaFeed(deltas))
	require.NoError(t, err)
	assert.Equal(t, int64(len(values)), idx.Count())
	for i, v := range values {
		assert.Equal(t, v, idx.OffsetAt(int64(i)))
	}
}

func TestIndexRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const count = 100_000

	deltas := make([]int64, count)
	values := make([]int64, count)
	var sum int64
	for i := range deltas {
		deltas[i] = rng.Int63n(2000)
		sum += deltas[i]
		values[i] = sum
	}

	idx, err := New(count, sum, deltaFeed(deltas))
	require.NoError(t, err)

	for _, i := range []int64{0, 1, 255, 256, 257, 1000, count / 2, count - 2, count - 1} {
		assert.Equal(t, values[i], idx.OffsetAt(i), "index %d", i)
	}
	for trial := 0; trial < 1000; trial++ {
		i := rng.Int63n(count)
		assert.Equal(t, values[i], idx.OffsetAt(i))
	}
}

func TestIndexDense(t *testing.T) {
	// all-equal and strictly dense sequences exercise the l = 0 branch
	idx, err := New(100, 0, func() (int64, error) { return 0, nil })
	require.NoError(t, err)
	for i := int64(0); i < 100; i++ {
		assert.Equal(t, int64(0), idx.OffsetAt(i))
	}

	n := int64(0)
	idx, err = New(100, 99, func() (int64, error) {
		if n == 0 {
			n++
			return 0, nil
		}
		return 1, nil
	})
	require.NoError(t, err)
	for i := int64(0); i < 100; i++ {
		assert.Equal(t, i, idx.OffsetAt(i))
	}
}

func TestIndexErrors(t *testing.T) {
	_, err := New(0, 10, deltaFeed(nil))
	assert.Error(t, err)

	_, err = New(2, 10, deltaFeed([]int64{0, -1}))
	assert.Error(t, err)

	_, err = New(2, 10, deltaFeed([]int64{0, 11}))
	assert.Error(t, err)

	idx, err := New(2, 10, deltaFeed([]int64{0, 10}))
	require.NoError(t, err)
	assert.Panics(t, func() { idx.OffsetAt(2) })
	assert.Panics(t, func() { idx.OffsetAt(-1) })
}

func TestSerialRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const count = 10_000
	deltas := make([]int64, count)
	values := make([]int64, count)
	var sum int64
	for i := range deltas {
		deltas[i] = rng.Int63n(5000)
		sum += deltas[i]
		values[i] = sum
	}
	idx, err := New(count, sum, deltaFeed(deltas))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, idx.WriteTo(&buf))

	loaded, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, idx.Count(), loaded.Count())
	assert.Equal(t, idx.Bound(), loaded.Bound())
	for trial := 0; trial < 500; trial++ {
		i := rng.Int63n(count)
		assert.Equal(t, values[i], loaded.OffsetAt(i))
	}

	_, err = Read(bytes.NewReader([]byte("junk junk junk junk junk junk junk junk junk junk junk junk junk junk")))
	assert.Error(t, err)
}
