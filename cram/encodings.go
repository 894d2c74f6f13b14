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

import "log"

// EncodingID identifies an encoding family, with the numeric values the
// CRAM format assigns to them.
type EncodingID byte

const (
	NullEncodingID          EncodingID = 0
	ExternalEncodingID      EncodingID = 1
	HuffmanEncodingID       EncodingID = 3
	ByteArrayLenEncodingID  EncodingID = 4
	ByteArrayStopEncodingID EncodingID = 5
)

// EncodingParams is a serialized description of an encoding: the
// encoding id plus its parameter bytes in the CRAM wire layout.
type EncodingParams struct {
	ID   EncodingID
	Args []byte
}

// AppendITF8 appends the ITF8 variable-length representation of value
// to buf. ITF8 stores a 32-bit integer in one to five bytes, with the
// number of leading one bits in the first byte giving the number of
// bytes that follow it.
func AppendITF8(buf []byte, value int32) []byte {
	v := uint32(value)
	switch {
	case v>>7 == 0:
		return append(buf, byte(v))
	case v>>14 == 0:
		return append(buf, byte(v>>8)|0x80, byte(v))
	case v>>21 == 0:
		return append(buf, byte(v>>16)|0xC0, byte(v>>8), byte(v))
	case v>>28 == 0:
		return append(buf, byte(v>>24)|0xE0, byte(v>>16), byte(v>>8), byte(v))
	default:
		return append(buf, byte(v>>28)|0xF0, byte(v>>20), byte(v>>12), byte(v>>4), byte(v&0xF))
	}
}

// ReadITF8 decodes an ITF8 value from buf, returning the value and the
// number of bytes consumed.
func ReadITF8(buf []byte) (int32, int) {
	if len(buf) == 0 {
		log.Panic("truncated ITF8 value")
	}
	b0 := uint32(buf[0])
	switch {
	case b0>>7 == 0:
		return int32(b0), 1
	case b0>>6 == 0b10:
		return int32((b0&0x7F)<<8 | uint32(buf[1])), 2
	case b0>>5 == 0b110:
		return int32((b0&0x3F)<<16 | uint32(buf[1])<<8 | uint32(buf[2])), 3
	case b0>>4 == 0b1110:
		return int32((b0&0x1F)<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])), 4
	default:
		return int32((b0&0x0F)<<28 | uint32(buf[1])<<20 | uint32(buf[2])<<12 |
			uint32(buf[3])<<4 | uint32(buf[4])&0xF), 5
	}
}

// ExternalByteEncoding places the bytes of a series in the external
// block with the given content id.
func ExternalByteEncoding(blockID int32) EncodingParams {
	return EncodingParams{ID: ExternalEncodingID, Args: AppendITF8(nil, blockID)}
}

// ExternalIntegerEncoding places the ITF8 integers of a series in the
// external block with the given content id. The parameter bytes are the
// same as for the byte variant; only the value type differs.
func ExternalIntegerEncoding(blockID int32) EncodingParams {
	return EncodingParams{ID: ExternalEncodingID, Args: AppendITF8(nil, blockID)}
}

// ByteArrayStopEncoding stores byte arrays delimited by the stop byte
// in the external block with the given content id.
func ByteArrayStopEncoding(stopByte byte, blockID int32) EncodingParams {
	return EncodingParams{
		ID:   ByteArrayStopEncodingID,
		Args: AppendITF8([]byte{stopByte}, blockID),
	}
}

// ByteArrayLenEncoding stores byte arrays as a length encoding followed
// by a value encoding. The parameter bytes nest the two sub-encodings,
// each as id, parameter length, parameter bytes.
func ByteArrayLenEncoding(lengths, values EncodingParams) EncodingParams {
	var args []byte
	for _, sub := range []EncodingParams{lengths, values} {
		args = append(args, byte(sub.ID))
		args = AppendITF8(args, int32(len(sub.Args)))
		args = append(args, sub.Args...)
	}
	return EncodingParams{ID: ByteArrayLenEncodingID, Args: args}
}

// CanonicalHuffmanIntegerEncoding encodes integers with a canonical
// Huffman code over the given symbols and their code bit lengths. A
// single symbol with bit length zero denotes a constant series that
// occupies no bits at all.
func CanonicalHuffmanIntegerEncoding(symbols, bitLengths []int32) EncodingParams {
	if len(symbols) != len(bitLengths) {
		log.Panicf("huffman symbol/length count mismatch: %v symbols, %v lengths",
			len(symbols), len(bitLengths))
	}
	args := AppendITF8(nil, int32(len(symbols)))
	for _, symbol := range symbols {
		args = AppendITF8(args, symbol)
	}
	args = AppendITF8(args, int32(len(bitLengths)))
	for _, bitLength := range bitLengths {
		args = AppendITF8(args, bitLength)
	}
	return EncodingParams{ID: HuffmanEncodingID, Args: args}
}

// singleZero is the bit-length list for one-symbol Huffman encodings.
var singleZero = []int32{0}

// fixedLenTagEncoding describes tag values that all serialize to the
// same number of bytes: the length is a one-symbol Huffman code, the
// value bytes live in the tag's external block.
func fixedLenTagEncoding(tagValueSize int32, tagID int32) EncodingParams {
	return ByteArrayLenEncoding(
		CanonicalHuffmanIntegerEncoding([]int32{tagValueSize}, singleZero),
		ExternalByteEncoding(tagID))
}
