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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestITF8RoundTrip(t *testing.T) {
	values := []int32{
		0, 1, 127,
		128, 16383,
		16384, (1 << 21) - 1,
		1 << 21, (1 << 28) - 1,
		1 << 28, math.MaxInt32,
		-1, math.MinInt32,
	}
	expectedSizes := []int{1, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 5, 5}
	for i, value := range values {
		buf := AppendITF8(nil, value)
		assert.Len(t, buf, expectedSizes[i], "value %v", value)
		decoded, n := ReadITF8(buf)
		assert.Equal(t, value, decoded)
		assert.Equal(t, len(buf), n)
	}
	require.Panics(t, func() { ReadITF8(nil) })
}

func TestExternalEncodings(t *testing.T) {
	params := ExternalByteEncoding(5)
	assert.Equal(t, ExternalEncodingID, params.ID)
	assert.Equal(t, []byte{5}, params.Args)

	// external encodings share their parameter layout across value types
	assert.Equal(t, params, ExternalIntegerEncoding(5))
}

func TestByteArrayStopEncoding(t *testing.T) {
	params := ByteArrayStopEncoding('\t', 200)
	assert.Equal(t, ByteArrayStopEncodingID, params.ID)
	assert.Equal(t, []byte{'\t', 0x80, 200}, params.Args)
}

func TestCanonicalHuffmanIntegerEncoding(t *testing.T) {
	params := CanonicalHuffmanIntegerEncoding([]int32{5}, []int32{0})
	assert.Equal(t, HuffmanEncodingID, params.ID)
	assert.Equal(t, []byte{1, 5, 1, 0}, params.Args)

	require.Panics(t, func() {
		CanonicalHuffmanIntegerEncoding([]int32{5, 6}, []int32{0})
	})
}

func TestByteArrayLenEncoding(t *testing.T) {
	lengths := CanonicalHuffmanIntegerEncoding([]int32{5}, []int32{0})
	values := ExternalByteEncoding(100)
	params := ByteArrayLenEncoding(lengths, values)
	assert.Equal(t, ByteArrayLenEncodingID, params.ID)
	assert.Equal(t, []byte{
		byte(HuffmanEncodingID), 4, 1, 5, 1, 0,
		byte(ExternalEncodingID), 1, 100,
	}, params.Args)
}

func TestFixedLenTagEncoding(t *testing.T) {
	tagID := TagID("XA", 'Z')
	params := fixedLenTagEncoding(5, tagID)
	assert.Equal(t, ByteArrayLenEncoding(
		CanonicalHuffmanIntegerEncoding([]int32{5}, singleZero),
		ExternalByteEncoding(tagID)), params)
}
