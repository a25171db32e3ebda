package bitio

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bufio"
	"io"
	"math/bits"

	"github.com/pkg/errors"
)

// ErrNotPositionable is returned by Position when the backing byte source does
// not support random access.
var ErrNotPositionable = errors.New("bit stream is not positionable")

type byteSource interface {
	io.ByteReader
	seek(byteOffset int64) error
}

type sliceSource struct {
	data []byte
	off  int64
}

func (s *sliceSource) ReadByte() (byte, error) {
	if s.off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	b := s.data[s.off]
	s.off++
	return b, nil
}

func (s *sliceSource) seek(byteOffset int64) error {
	if byteOffset < 0 || byteOffset > int64(len(s.data)) {
		return errors.Errorf("position %d outside byte buffer of length %d", byteOffset, len(s.data))
	}
	s.off = byteOffset
	return nil
}

// readerAtSource buffers reads from an io.ReaderAt so that many bit streams
// can read from different parts of a single backing region at once.
type readerAtSource struct {
	ra  io.ReaderAt
	pos int64
	buf []byte
	all [1 << 16]byte
	err error
}

func (r *readerAtSource) fill() {
	r.buf = r.all[:]
	n, err := r.ra.ReadAt(r.buf, r.pos)
	r.pos += int64(n)
	r.buf = r.buf[:n]
	r.err = err
}

func (r *readerAtSource) ReadByte() (byte, error) {
	if len(r.buf) == 0 {
		r.fill()
		if len(r.buf) == 0 {
			if r.err == nil {
				r.err = io.EOF
			}
			return 0, r.err
		}
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b, nil
}

func (r *readerAtSource) seek(byteOffset int64) error {
	r.pos = byteOffset
	r.buf = nil
	r.err = nil
	return nil
}

type streamSource struct {
	br io.ByteReader
}

func (s *streamSource) ReadByte() (byte, error) { return s.br.ReadByte() }

func (s *streamSource) seek(int64) error { return ErrNotPositionable }

// InputBitStream reads variable-length codes from a byte source, most
// significant bit first. Read methods do not return an error; instead the
// first failure is retained and every subsequent read returns zero. Callers
// check Err after a batch of reads.
type InputBitStream struct {
	src  byteSource
	acc  uint64
	fill uint
	pos  int64
	err  error
}

// NewSliceReader returns an InputBitStream positioned at bit 0 of data. The
// stream supports Position in O(1).
func NewSliceReader(data []byte) *InputBitStream {
	return &InputBitStream{src: &sliceSource{data: data}}
}

// NewReaderAt returns a positionable InputBitStream over an io.ReaderAt.
func NewReaderAt(ra io.ReaderAt) *InputBitStream {
	return &InputBitStream{src: &readerAtSource{ra: ra}}
}

// NewReader returns a forward-only InputBitStream over r. Position is not
// supported.
func NewReader(r io.Reader) *InputBitStream {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &InputBitStream{src: &streamSource{br: br}}
}

// Err returns the first error encountered by any read, or nil.
func (in *InputBitStream) Err() error {
	return in.err
}

// Fail records err as the stream's sticky error if none is set. Decoders use
// it to surface invariant violations found in otherwise well-formed codes.
func (in *InputBitStream) Fail(err error) {
	if in.err == nil {
		in.err = err
	}
}

// Pos returns the absolute bit position of the next unread bit.
func (in *InputBitStream) Pos() int64 {
	return in.pos
}

// Position seeks to an absolute bit position. The accumulator is discarded
// and the sticky error cleared, so a reader remains usable after a failed
// decode by repositioning it.
func (in *InputBitStream) Position(bitPos int64) error {
	if bitPos < 0 {
		return errors.Errorf("negative bit position %d", bitPos)
	}
	if err := in.src.seek(bitPos >> 3); err != nil {
		return err
	}
	in.acc = 0
	in.fill = 0
	in.err = nil
	in.pos = bitPos &^ 7
	if r := uint(bitPos & 7); r != 0 {
		in.ReadBits(r)
	}
	return in.err
}

func (in *InputBitStream) refill() bool {
	b, err := in.src.ReadByte()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		in.err = err
		return false
	}
	in.acc = in.acc<<8 | uint64(b)
	in.fill += 8
	return true
}

// ReadBit reads a single bit.
func (in *InputBitStream) ReadBit() int64 {
	return int64(in.ReadBits(1))
}

// ReadBits reads width raw bits, 0 <= width <= 64, and returns them in the
// least-significant part of a uint64.
func (in *InputBitStream) ReadBits(width uint) uint64 {
	if in.err != nil || width == 0 {
		return 0
	}
	if width > 64 {
		in.err = errors.Errorf("cannot read %d bits at once", width)
		return 0
	}
	if width > 56 {
		hi := in.ReadBits(width - 32)
		lo := in.ReadBits(32)
		return hi<<32 | lo
	}
	for in.fill < width {
		if !in.refill() {
			return 0
		}
	}
	in.pos += int64(width)
	in.fill -= width
	return (in.acc >> in.fill) & (1<<width - 1)
}

// ReadUnary returns the number of zero bits preceding the next one bit.
func (in *InputBitStream) ReadUnary() int64 {
	if in.err != nil {
		return 0
	}
	var n int64
	for {
		if in.fill == 0 && !in.refill() {
			return 0
		}
		window := in.acc & (1<<in.fill - 1)
		if window == 0 {
			n += int64(in.fill)
			in.pos += int64(in.fill)
			in.fill = 0
			continue
		}
		z := in.fill - uint(bits.Len64(window))
		n += int64(z)
		in.pos += int64(z + 1)
		in.fill -= z + 1
		return n
	}
}

// ReadGamma decodes a gamma-coded natural number.
func (in *InputBitStream) ReadGamma() int64 {
	l := in.ReadUnary()
	if l > 62 {
		in.corrupt("gamma code with %d-bit mantissa", l)
		return 0
	}
	return int64(uint64(1)<<uint(l)|in.ReadBits(uint(l))) - 1
}

// ReadDelta decodes a delta-coded natural number.
func (in *InputBitStream) ReadDelta() int64 {
	l := in.ReadGamma()
	if l < 0 || l > 62 {
		in.corrupt("delta code with %d-bit mantissa", l)
		return 0
	}
	return int64(uint64(1)<<uint(l)|in.ReadBits(uint(l))) - 1
}

// ReadZeta decodes a zeta_k-coded natural number.
func (in *InputBitStream) ReadZeta(k uint) int64 {
	if k == 0 {
		in.corrupt("zeta code with shrinking factor 0")
		return 0
	}
	h := uint(in.ReadUnary())
	if h*k > 62 || h*k+k-1 > 64 {
		in.corrupt("zeta code with %d-bit mantissa", h*k+k)
		return 0
	}
	left := uint64(1) << (h * k)
	m := in.ReadBits(h*k + k - 1)
	if m < left {
		return int64(m + left - 1)
	}
	if h*k+k > 63 {
		in.corrupt("zeta code with %d-bit mantissa", h*k+k)
		return 0
	}
	return int64(m<<1|uint64(in.ReadBit())) - 1
}

// ReadNibble decodes a nibble-coded natural number: groups of one stop bit
// followed by three data bits, most significant group first.
func (in *InputBitStream) ReadNibble() int64 {
	var x int64
	for i := 0; ; i++ {
		if i > 21 || in.err != nil {
			in.corrupt("nibble code over %d groups", i)
			return 0
		}
		b := in.ReadBit()
		x = x<<3 | int64(in.ReadBits(3))
		if b != 0 {
			return x
		}
	}
}

// ReadMinimalBinary decodes a minimal binary code over [0, b).
func (in *InputBitStream) ReadMinimalBinary(b int64) int64 {
	if b < 1 {
		in.corrupt("minimal binary code with bound %d", b)
		return 0
	}
	s := uint(bits.Len64(uint64(b)) - 1)
	m := int64(1)<<(s+1) - b
	x := int64(in.ReadBits(s))
	if x < m {
		return x
	}
	return x<<1 + in.ReadBit() - m
}

// ReadGolomb decodes a Golomb code with modulus b.
func (in *InputBitStream) ReadGolomb(b int64) int64 {
	if b < 1 {
		in.corrupt("golomb code with modulus %d", b)
		return 0
	}
	q := in.ReadUnary()
	return q*b + in.ReadMinimalBinary(b)
}

func (in *InputBitStream) corrupt(format string, x ...interface{}) {
	if in.err == nil {
		in.err = errors.Errorf("corrupt bit stream at bit %d: "+format, append([]interface{}{in.pos}, x...)...)
	}
}
