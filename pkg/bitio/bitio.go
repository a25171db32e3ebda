// Package bitio implements positionable bit-level readers and writers for the
// variable-length instantaneous codes used by the compressed graph format:
// unary, gamma, delta, zeta_k, nibble, Golomb and minimal binary. All codes are
// defined on non-negative integers; possibly-negative values are bijected
// through Int2Nat before coding.
//
// Readers keep a sticky error so that batched decodes can be checked once with
// Err. Writers report the number of bits emitted by every operation, and can
// run in counting-only mode for cost estimation.
package bitio

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

// Int2Nat maps a signed integer onto a natural number: 2z for z >= 0, and
// -2z-1 for z < 0.
func Int2Nat(z int64) int64 {
	if z >= 0 {
		return z << 1
	}
	return -z<<1 - 1
}

// Nat2Int is the inverse of Int2Nat.
func Nat2Int(n int64) int64 {
	if n&1 == 0 {
		return n >> 1
	}
	return -(n + 1) >> 1
}
