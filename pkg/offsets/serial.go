package offsets

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	serialMagic   = 0x45464F49 // "EFOI"
	serialVersion = 0
)

// WriteTo serialises the index so it can be reloaded with Read, skipping
// reconstruction from the raw offset stream.
func (idx *Index) WriteTo(w io.Writer) error {
	header := []int64{
		serialMagic,
		serialVersion,
		idx.count,
		idx.bound,
		int64(idx.l),
		int64(len(idx.lower)),
		int64(len(idx.upper)),
		int64(len(idx.selOne)),
	}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return errors.Wrap(err, "writing index header")
		}
	}
	for _, arr := range [][]uint64{idx.lower, idx.upper} {
		if err := binary.Write(w, binary.LittleEndian, arr); err != nil {
			return errors.Wrap(err, "writing index payload")
		}
	}
	if err := binary.Write(w, binary.LittleEndian, idx.selOne); err != nil {
		return errors.Wrap(err, "writing index payload")
	}
	return nil
}

// Read deserialises an index previously written with WriteTo.
func Read(r io.Reader) (*Index, error) {
	header := make([]int64, 8)
	if err := binary.Read(r, binary.LittleEndian, header); err != nil {
		return nil, errors.Wrap(err, "reading index header")
	}
	if header[0] != serialMagic {
		return nil, errors.New("not a serialised offset index")
	}
	if header[1] != serialVersion {
		return nil, errors.Errorf("unsupported offset index version %d", header[1])
	}
	idx := &Index{
		count:  header[2],
		bound:  header[3],
		l:      uint(header[4]),
		lower:  make([]uint64, header[5]),
		upper:  make([]uint64, header[6]),
		selOne: make([]int64, header[7]),
	}
	if idx.count < 1 || idx.l > 63 {
		return nil, errors.New("corrupt serialised offset index")
	}
	for _, arr := range [][]uint64{idx.lower, idx.upper} {
		if err := binary.Read(r, binary.LittleEndian, arr); err != nil {
			return nil, errors.Wrap(err, "reading index payload")
		}
	}
	if err := binary.Read(r, binary.LittleEndian, idx.selOne); err != nil {
		return nil, errors.Wrap(err, "reading index payload")
	}
	return idx, nil
}
