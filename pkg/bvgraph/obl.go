package bvgraph

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/vorteil/webgraph/pkg/offsets"
)

// loadOffsetCache loads the serialised offset index side file, if it exists,
// matches the expected entry count, and is newer than the raw offset stream.
func loadOffsetCache(basename string, count int64) (*offsets.Index, bool) {
	cacheInfo, err := os.Stat(offsetCachePath(basename))
	if err != nil {
		return nil, false
	}
	rawInfo, err := os.Stat(offsetsPath(basename))
	if err != nil {
		return nil, false
	}
	if cacheInfo.ModTime().Before(rawInfo.ModTime()) {
		return nil, false
	}

	f, err := os.Open(offsetCachePath(basename))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, false
	}
	defer zr.Close()

	idx, err := offsets.Read(zr)
	if err != nil || idx.Count() != count {
		return nil, false
	}
	return idx, true
}

// saveOffsetCache persists the offset index so later opens skip the rebuild.
func saveOffsetCache(basename string, idx *offsets.Index) error {
	f, err := os.Create(offsetCachePath(basename))
	if err != nil {
		return errors.Wrap(err, "creating offset index cache")
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return errors.Wrap(err, "creating offset index cache")
	}
	if err = idx.WriteTo(zw); err != nil {
		zw.Close()
		return errors.Wrap(err, "writing offset index cache")
	}
	if err = zw.Close(); err != nil {
		return errors.Wrap(err, "writing offset index cache")
	}
	return f.Close()
}
