package bitio

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"io"
	"math/bits"

	"github.com/pkg/errors"
)

// OutputBitStream writes variable-length codes to an io.Writer, most
// significant bit first. Every write operation reports the number of bits it
// emitted. A counting-only stream (NewBitCounter) performs no I/O and is used
// by the compressor to price candidate encodings.
type OutputBitStream struct {
	w       io.Writer
	acc     uint64
	fill    uint
	buf     []byte
	written int64
}

const outputBufferSize = 8 * 1024

// NewWriter returns an OutputBitStream writing to w.
func NewWriter(w io.Writer) *OutputBitStream {
	return &OutputBitStream{w: w, buf: make([]byte, 0, outputBufferSize)}
}

// NewBitCounter returns an OutputBitStream that discards output and only
// counts bits.
func NewBitCounter() *OutputBitStream {
	return &OutputBitStream{}
}

// Written returns the total number of bits written so far.
func (out *OutputBitStream) Written() int64 {
	return out.written
}

// Reset rewinds a counting-only stream to zero written bits.
func (out *OutputBitStream) Reset() {
	if out.w == nil {
		out.written = 0
		out.acc = 0
		out.fill = 0
	}
}

func (out *OutputBitStream) flushBuf() error {
	if len(out.buf) == 0 {
		return nil
	}
	_, err := out.w.Write(out.buf)
	out.buf = out.buf[:0]
	return errors.Wrap(err, "flushing bit stream")
}

func (out *OutputBitStream) pushByte(b byte) error {
	out.buf = append(out.buf, b)
	if len(out.buf) == cap(out.buf) {
		return out.flushBuf()
	}
	return nil
}

// WriteBits writes the width least-significant bits of v, 0 <= width <= 64.
func (out *OutputBitStream) WriteBits(v uint64, width uint) (int64, error) {
	if width > 64 {
		return 0, errors.Errorf("cannot write %d bits at once", width)
	}
	if out.w == nil {
		out.written += int64(width)
		return int64(width), nil
	}
	if width == 0 {
		return 0, nil
	}
	if width > 56 {
		if _, err := out.WriteBits(v>>32, width-32); err != nil {
			return 0, err
		}
		if _, err := out.WriteBits(v&0xFFFFFFFF, 32); err != nil {
			return 0, err
		}
		return int64(width), nil
	}
	out.acc = out.acc<<width | v&(1<<width-1)
	out.fill += width
	for out.fill >= 8 {
		out.fill -= 8
		if err := out.pushByte(byte(out.acc >> out.fill)); err != nil {
			return 0, err
		}
	}
	out.written += int64(width)
	return int64(width), nil
}

// WriteBit writes a single bit.
func (out *OutputBitStream) WriteBit(bit int) (int64, error) {
	return out.WriteBits(uint64(bit)&1, 1)
}

// WriteUnary writes x in unary: x zeroes followed by a one.
func (out *OutputBitStream) WriteUnary(x int64) (int64, error) {
	if x < 0 {
		return 0, errors.Errorf("negative value %d", x)
	}
	if out.w == nil {
		out.written += x + 1
		return x + 1, nil
	}
	total := x + 1
	for x >= 56 {
		if _, err := out.WriteBits(0, 56); err != nil {
			return 0, err
		}
		x -= 56
	}
	if _, err := out.WriteBits(1, uint(x)+1); err != nil {
		return 0, err
	}
	return total, nil
}

// WriteGamma writes x in gamma code.
func (out *OutputBitStream) WriteGamma(x int64) (int64, error) {
	if x < 0 {
		return 0, errors.Errorf("negative value %d", x)
	}
	l := uint(bits.Len64(uint64(x+1)) - 1)
	n, err := out.WriteUnary(int64(l))
	if err != nil {
		return 0, err
	}
	m, err := out.WriteBits(uint64(x+1), l)
	if err != nil {
		return 0, err
	}
	return n + m, nil
}

// WriteDelta writes x in delta code.
func (out *OutputBitStream) WriteDelta(x int64) (int64, error) {
	if x < 0 {
		return 0, errors.Errorf("negative value %d", x)
	}
	l := uint(bits.Len64(uint64(x+1)) - 1)
	n, err := out.WriteGamma(int64(l))
	if err != nil {
		return 0, err
	}
	m, err := out.WriteBits(uint64(x+1), l)
	if err != nil {
		return 0, err
	}
	return n + m, nil
}

// WriteZeta writes x in zeta_k code.
func (out *OutputBitStream) WriteZeta(x int64, k uint) (int64, error) {
	if x < 0 {
		return 0, errors.Errorf("negative value %d", x)
	}
	if k == 0 {
		return 0, errors.New("zeta shrinking factor must be positive")
	}
	h := uint(bits.Len64(uint64(x+1))-1) / k
	n, err := out.WriteUnary(int64(h))
	if err != nil {
		return 0, err
	}
	left := int64(1) << (h * k)
	var m int64
	if x+1-left < left {
		m, err = out.WriteBits(uint64(x+1-left), h*k+k-1)
	} else {
		m, err = out.WriteBits(uint64(x+1), h*k+k)
	}
	if err != nil {
		return 0, err
	}
	return n + m, nil
}

// WriteNibble writes x in nibble code.
func (out *OutputBitStream) WriteNibble(x int64) (int64, error) {
	if x < 0 {
		return 0, errors.Errorf("negative value %d", x)
	}
	if x == 0 {
		return out.WriteBits(8, 4)
	}
	msb := uint(bits.Len64(uint64(x)) - 1)
	h := int(msb / 3)
	var total int64
	for i := h; i >= 0; i-- {
		stop := uint64(0)
		if i == 0 {
			stop = 1
		}
		if _, err := out.WriteBits(stop, 1); err != nil {
			return 0, err
		}
		if _, err := out.WriteBits(uint64(x)>>(uint(i)*3), 3); err != nil {
			return 0, err
		}
		total += 4
	}
	return total, nil
}

// WriteMinimalBinary writes x using a minimal binary code over [0, b).
func (out *OutputBitStream) WriteMinimalBinary(x, b int64) (int64, error) {
	if b < 1 || x < 0 || x >= b {
		return 0, errors.Errorf("value %d outside minimal binary bound [0, %d)", x, b)
	}
	s := uint(bits.Len64(uint64(b)) - 1)
	m := int64(1)<<(s+1) - b
	if x < m {
		return out.WriteBits(uint64(x), s)
	}
	return out.WriteBits(uint64(m+x), s+1)
}

// WriteGolomb writes x using a Golomb code with modulus b.
func (out *OutputBitStream) WriteGolomb(x, b int64) (int64, error) {
	if b < 1 {
		return 0, errors.Errorf("golomb modulus %d must be positive", b)
	}
	n, err := out.WriteUnary(x / b)
	if err != nil {
		return 0, err
	}
	m, err := out.WriteMinimalBinary(x%b, b)
	if err != nil {
		return 0, err
	}
	return n + m, nil
}

// CopyFrom transfers exactly n bits from in to out. It is used to concatenate
// per-range bit streams without byte alignment between them.
func (out *OutputBitStream) CopyFrom(in *InputBitStream, n int64) (int64, error) {
	left := n
	for left >= 56 {
		v := in.ReadBits(56)
		if err := in.Err(); err != nil {
			return n - left, err
		}
		if _, err := out.WriteBits(v, 56); err != nil {
			return n - left, err
		}
		left -= 56
	}
	if left > 0 {
		v := in.ReadBits(uint(left))
		if err := in.Err(); err != nil {
			return n - left, err
		}
		if _, err := out.WriteBits(v, uint(left)); err != nil {
			return n - left, err
		}
	}
	return n, nil
}

// Align pads the stream with zeroes up to the next byte boundary.
func (out *OutputBitStream) Align() error {
	if out.fill == 0 {
		return nil
	}
	_, err := out.WriteBits(0, 8-out.fill)
	return err
}

// Close aligns the stream to a byte boundary and flushes buffered bytes. It
// does not close the underlying writer.
func (out *OutputBitStream) Close() error {
	if out.w == nil {
		return nil
	}
	if err := out.Align(); err != nil {
		return err
	}
	return out.flushBuf()
}
