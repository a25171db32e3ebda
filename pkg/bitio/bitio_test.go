package bitio

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sample values spanning [0, 2^60], denser at the low end where the codes
// specialise.
func sampleValues() []int64 {
	vals := []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 15, 16, 31, 63, 64, 100, 127, 128, 255, 1000, 1 << 20, 1<<20 + 1}
	for shift := uint(21); shift <= 60; shift += 3 {
		v := int64(1) << shift
		vals = append(vals, v-1, v, v+1)
	}
	return vals
}

func TestInt2Nat(t *testing.T) {
	for _, z := range []int64{-100, -3, -2, -1, 0, 1, 2, 3, 100, 1 << 40, -(1 << 40)} {
		assert.Equal(t, z, Nat2Int(Int2Nat(z)))
	}
	for n := int64(0); n < 1000; n++ {
		assert.Equal(t, n, Int2Nat(Nat2Int(n)))
	}
	assert.Equal(t, int64(0), Int2Nat(0))
	assert.Equal(t, int64(2), Int2Nat(1))
	assert.Equal(t, int64(1), Int2Nat(-1))
	assert.Equal(t, int64(3), Int2Nat(-2))
}

func TestCodeRoundTrips(t *testing.T) {
	vals := sampleValues()

	codecs := []struct {
		name  string
		write func(*OutputBitStream, int64) (int64, error)
		read  func(*InputBitStream) int64
	}{
		{"gamma", (*OutputBitStream).WriteGamma, (*InputBitStream).ReadGamma},
		{"delta", (*OutputBitStream).WriteDelta, (*InputBitStream).ReadDelta},
		{"nibble", (*OutputBitStream).WriteNibble, (*InputBitStream).ReadNibble},
		{"zeta2", func(o *OutputBitStream, x int64) (int64, error) { return o.WriteZeta(x, 2) },
			func(i *InputBitStream) int64 { return i.ReadZeta(2) }},
		{"zeta3", func(o *OutputBitStream, x int64) (int64, error) { return o.WriteZeta(x, 3) },
			func(i *InputBitStream) int64 { return i.ReadZeta(3) }},
		{"zeta5", func(o *OutputBitStream, x int64) (int64, error) { return o.WriteZeta(x, 5) },
			func(i *InputBitStream) int64 { return i.ReadZeta(5) }},
		{"golomb7", func(o *OutputBitStream, x int64) (int64, error) { return o.WriteGolomb(x, 7) },
			func(i *InputBitStream) int64 { return i.ReadGolomb(7) }},
		{"golomb256", func(o *OutputBitStream, x int64) (int64, error) { return o.WriteGolomb(x, 256) },
			func(i *InputBitStream) int64 { return i.ReadGolomb(256) }},
	}

	for _, c := range codecs {
		t.Run(c.name, func(t *testing.T) {
			var buf bytes.Buffer
			out := NewWriter(&buf)
			var total int64
			for _, v := range vals {
				if c.name == "golomb7" || c.name == "golomb256" {
					if v > 1<<20 {
						continue // unary quotient would be enormous
					}
				}
				n, err := c.write(out, v)
				require.NoError(t, err)
				assert.True(t, n > 0)
				total += n
			}
			require.NoError(t, out.Close())
			assert.Equal(t, total, out.Written())

			in := NewSliceReader(buf.Bytes())
			for _, v := range vals {
				if (c.name == "golomb7" || c.name == "golomb256") && v > 1<<20 {
					continue
				}
				assert.Equal(t, v, c.read(in), "value %d", v)
			}
			require.NoError(t, in.Err())
			assert.Equal(t, total, in.Pos())
		})
	}
}

func TestUnaryRoundTrip(t *testing.T) {
	vals := []int64{0, 1, 2, 7, 8, 55, 56, 57, 100, 1000}
	var buf bytes.Buffer
	out := NewWriter(&buf)
	for _, v := range vals {
		n, err := out.WriteUnary(v)
		require.NoError(t, err)
		assert.Equal(t, v+1, n)
	}
	require.NoError(t, out.Close())

	in := NewSliceReader(buf.Bytes())
	for _, v := range vals {
		assert.Equal(t, v, in.ReadUnary())
	}
	require.NoError(t, in.Err())
}

func TestMinimalBinary(t *testing.T) {
	for _, b := range []int64{1, 2, 3, 5, 7, 8, 9, 100, 1000} {
		var buf bytes.Buffer
		out := NewWriter(&buf)
		for x := int64(0); x < b; x++ {
			_, err := out.WriteMinimalBinary(x, b)
			require.NoError(t, err)
		}
		require.NoError(t, out.Close())
		in := NewSliceReader(buf.Bytes())
		for x := int64(0); x < b; x++ {
			assert.Equal(t, x, in.ReadMinimalBinary(b), "bound %d", b)
		}
		require.NoError(t, in.Err())
	}

	_, err := NewWriter(&bytes.Buffer{}).WriteMinimalBinary(3, 3)
	assert.Error(t, err)
}

func TestRawBits(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf)
	_, err := out.WriteBits(0x5, 3)
	require.NoError(t, err)
	_, err = out.WriteBits(0xDEADBEEFCAFE, 48)
	require.NoError(t, err)
	_, err = out.WriteBits(0xFFFFFFFFFFFFFFFF, 64)
	require.NoError(t, err)
	require.NoError(t, out.Close())
	assert.Equal(t, int64(3+48+64), out.Written())

	in := NewSliceReader(buf.Bytes())
	assert.Equal(t, uint64(0x5), in.ReadBits(3))
	assert.Equal(t, uint64(0xDEADBEEFCAFE), in.ReadBits(48))
	assert.Equal(t, uint64(0xFFFFFFFFFFFFFFFF), in.ReadBits(64))
	require.NoError(t, in.Err())
}

func TestPosition(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf)
	positions := make([]int64, 0, 100)
	for v := int64(0); v < 100; v++ {
		positions = append(positions, out.Written())
		_, err := out.WriteGamma(v)
		require.NoError(t, err)
	}
	require.NoError(t, out.Close())

	in := NewSliceReader(buf.Bytes())
	for v := int64(99); v >= 0; v-- {
		require.NoError(t, in.Position(positions[v]))
		assert.Equal(t, v, in.ReadGamma())
	}
	require.NoError(t, in.Err())

	// past the end of the backing buffer
	assert.Error(t, in.Position(int64(buf.Len())*8+9))
}

func TestReaderAtSource(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf)
	positions := make([]int64, 0, 1000)
	for v := int64(0); v < 1000; v++ {
		positions = append(positions, out.Written())
		_, err := out.WriteDelta(v * 3)
		require.NoError(t, err)
	}
	require.NoError(t, out.Close())

	in := NewReaderAt(bytes.NewReader(buf.Bytes()))
	for _, v := range []int64{999, 0, 500, 1, 998} {
		require.NoError(t, in.Position(positions[v]))
		assert.Equal(t, v*3, in.ReadDelta())
	}
	require.NoError(t, in.Err())
}

func TestStreamNotPositionable(t *testing.T) {
	in := NewReader(bytes.NewReader([]byte{0xFF}))
	assert.Equal(t, int64(0), in.ReadUnary())
	assert.Equal(t, ErrNotPositionable, in.Position(0))
}

func TestStickyError(t *testing.T) {
	in := NewSliceReader([]byte{0x80}) // a single one bit then zeroes
	assert.Equal(t, int64(0), in.ReadUnary())
	in.ReadUnary() // runs off the end
	assert.Error(t, in.Err())
	// reads after a fault keep returning zero without panicking
	assert.Equal(t, int64(0), in.ReadGamma())
	assert.Error(t, in.Err())

	// repositioning clears the fault
	require.NoError(t, in.Position(0))
	assert.Equal(t, int64(0), in.ReadUnary())
	require.NoError(t, in.Err())
}

func TestBitCounter(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf)
	counter := NewBitCounter()
	for v := int64(0); v < 2000; v += 17 {
		n, err := out.WriteZeta(v, 3)
		require.NoError(t, err)
		m, err := counter.WriteZeta(v, 3)
		require.NoError(t, err)
		assert.Equal(t, n, m)
	}
	require.NoError(t, out.Close())
	assert.Equal(t, out.Written(), counter.Written())

	counter.Reset()
	assert.Equal(t, int64(0), counter.Written())
}

func TestCopyFrom(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf)
	for v := int64(0); v < 300; v++ {
		_, err := out.WriteGamma(v)
		require.NoError(t, err)
	}
	bitLen := out.Written()
	require.NoError(t, out.Close())

	// copy at an unaligned destination position
	var dst bytes.Buffer
	cat := NewWriter(&dst)
	_, err := cat.WriteBits(0x2, 3)
	require.NoError(t, err)
	n, err := cat.CopyFrom(NewSliceReader(buf.Bytes()), bitLen)
	require.NoError(t, err)
	assert.Equal(t, bitLen, n)
	require.NoError(t, cat.Close())

	in := NewSliceReader(dst.Bytes())
	assert.Equal(t, uint64(0x2), in.ReadBits(3))
	for v := int64(0); v < 300; v++ {
		assert.Equal(t, v, in.ReadGamma())
	}
	require.NoError(t, in.Err())
}
