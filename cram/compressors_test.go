// elCram: a compression-header planner for CRAM files.
// Copyright (c) 2020-2026 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elcram/blob/master/LICENSE.txt>.

package cram

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGzipRoundTrip(t *testing.T) {
	compressor := NewGzipCompressor()
	assert.Equal(t, MethodGzip, compressor.Method())
	data := bytes.Repeat([]byte("the quick brown fox "), 100)
	compressed, err := compressor.Compress(data)
	require.NoError(t, err)
	uncompressed, err := compressor.Uncompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, uncompressed)
}

func TestRansRoundTrip(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = "ACGT"[rand.Intn(4)]
	}
	for _, order := range []uint{RansOrderZero, RansOrderOne} {
		compressor := NewRansCompressor(order)
		assert.Equal(t, MethodRans, compressor.Method())
		assert.Equal(t, order, compressor.Order())
		compressed, err := compressor.Compress(data)
		require.NoError(t, err)
		uncompressed, err := compressor.Uncompress(compressed)
		require.NoError(t, err)
		assert.Equal(t, data, uncompressed)
	}
	require.Panics(t, func() { NewRansCompressor(2) })
}

func TestBestExternalCompressor(t *testing.T) {
	data := bytes.Repeat([]byte("ACGTACGTTTTTTTTA"), 500)
	best := BestExternalCompressor(data)

	lengths := make(map[ExternalCompressor]int)
	for _, compressor := range []ExternalCompressor{
		ransZeroCompressor, ransOneCompressor, gzipCompressor,
	} {
		compressed, err := compressor.Compress(data)
		require.NoError(t, err)
		lengths[compressor] = len(compressed)
	}

	// the winner compresses at least as well as every candidate, and
	// ties go to rANS order zero, then order one, then gzip
	for _, length := range lengths {
		assert.LessOrEqual(t, lengths[best], length)
	}
	switch {
	case lengths[ransZeroCompressor] == lengths[best]:
		assert.Same(t, ExternalCompressor(ransZeroCompressor), best)
	case lengths[ransOneCompressor] == lengths[best]:
		assert.Same(t, ExternalCompressor(ransOneCompressor), best)
	default:
		assert.Same(t, ExternalCompressor(gzipCompressor), best)
	}
}

func TestBestExternalCompressorDeterministic(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 1000)
	best := BestExternalCompressor(data)
	for i := 0; i < 3; i++ {
		assert.Same(t, best, BestExternalCompressor(data))
	}
}

func TestUnusedByte(t *testing.T) {
	assert.Equal(t, 0, UnusedByte([]byte{1, 2, 3}))
	assert.Equal(t, 3, UnusedByte([]byte{0, 1, 2, 4}))
	assert.Equal(t, 0, UnusedByte(nil))

	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	assert.Equal(t, AllBytesUsed, UnusedByte(all))
	assert.Equal(t, 255, UnusedByte(all[:255]))
}
