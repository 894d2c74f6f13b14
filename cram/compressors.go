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
	"io"
	"log"

	"github.com/bits-and-blooms/bitset"
	"github.com/flanglet/kanzi-go/v2/bitstream"
	"github.com/flanglet/kanzi-go/v2/entropy"
	"github.com/klauspost/compress/gzip"
)

// CompressionMethod identifies an external block compressor, with the
// numeric values the CRAM format assigns to them.
type CompressionMethod byte

const (
	MethodRaw   CompressionMethod = 0
	MethodGzip  CompressionMethod = 1
	MethodBzip2 CompressionMethod = 2
	MethodLzma  CompressionMethod = 3
	MethodRans  CompressionMethod = 4
)

// ExternalCompressor compresses and decompresses the contents of one
// external block. Implementations are stateless and safe for concurrent
// use.
type ExternalCompressor interface {
	Method() CompressionMethod
	Compress(data []byte) ([]byte, error)
	Uncompress(data []byte) ([]byte, error)
}

// GzipCompressor compresses external blocks with gzip.
type GzipCompressor struct{}

// NewGzipCompressor returns the gzip external compressor.
func NewGzipCompressor() *GzipCompressor { return &GzipCompressor{} }

// Method implements the ExternalCompressor interface.
func (*GzipCompressor) Method() CompressionMethod { return MethodGzip }

// Compress implements the ExternalCompressor interface.
func (*GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Uncompress implements the ExternalCompressor interface.
func (*GzipCompressor) Uncompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	result, err := io.ReadAll(r)
	if nerr := r.Close(); err == nil {
		err = nerr
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

const (
	// RansOrderZero models symbols independently.
	RansOrderZero = 0
	// RansOrderOne conditions each symbol on the previous one.
	RansOrderOne = 1
)

const ransBitStreamBufferSize = 65536

// RansCompressor compresses external blocks with a range-ANS entropy
// coder of order zero or one. The uncompressed length is prefixed to
// the coder output as ITF8, since the raw bitstream does not record it.
type RansCompressor struct {
	order uint
}

// NewRansCompressor returns the rANS external compressor for the given
// order, which must be RansOrderZero or RansOrderOne.
func NewRansCompressor(order uint) *RansCompressor {
	if order > 1 {
		log.Panicf("invalid rANS order %v", order)
	}
	return &RansCompressor{order: order}
}

// Method implements the ExternalCompressor interface.
func (*RansCompressor) Method() CompressionMethod { return MethodRans }

// Order returns the context order of this compressor.
func (c *RansCompressor) Order() uint { return c.order }

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Compress implements the ExternalCompressor interface.
func (c *RansCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	obs, err := bitstream.NewDefaultOutputBitStream(nopWriteCloser{&buf}, ransBitStreamBufferSize)
	if err != nil {
		return nil, err
	}
	encoder, err := entropy.NewANSRangeEncoder(obs, c.order)
	if err != nil {
		return nil, err
	}
	if _, err := encoder.Write(data); err != nil {
		return nil, err
	}
	encoder.Dispose()
	if err := obs.Close(); err != nil {
		return nil, err
	}
	return append(AppendITF8(nil, int32(len(data))), buf.Bytes()...), nil
}

// Uncompress implements the ExternalCompressor interface.
func (c *RansCompressor) Uncompress(data []byte) ([]byte, error) {
	size, n := ReadITF8(data)
	result := make([]byte, size)
	ibs, err := bitstream.NewDefaultInputBitStream(io.NopCloser(bytes.NewReader(data[n:])), ransBitStreamBufferSize)
	if err != nil {
		return nil, err
	}
	decoder, err := entropy.NewANSRangeDecoder(ibs, c.order)
	if err != nil {
		return nil, err
	}
	if _, err := decoder.Read(result); err != nil {
		return nil, err
	}
	decoder.Dispose()
	if err := ibs.Close(); err != nil {
		return nil, err
	}
	return result, nil
}

var (
	gzipCompressor     = NewGzipCompressor()
	ransZeroCompressor = NewRansCompressor(RansOrderZero)
	ransOneCompressor  = NewRansCompressor(RansOrderOne)
)

func mustCompressedLen(compressor ExternalCompressor, data []byte) int {
	compressed, err := compressor.Compress(data)
	if err != nil {
		log.Panic(err)
	}
	return len(compressed)
}

// BestExternalCompressor compresses data with gzip, rANS order zero,
// and rANS order one, and returns the compressor that yields the
// smallest output. Ties go to rANS order zero, then rANS order one,
// then gzip.
func BestExternalCompressor(data []byte) ExternalCompressor {
	gzipLen := mustCompressedLen(gzipCompressor, data)
	rans0Len := mustCompressedLen(ransZeroCompressor, data)
	rans1Len := mustCompressedLen(ransOneCompressor, data)

	minLen := min(gzipLen, rans0Len, rans1Len)
	switch minLen {
	case rans0Len:
		return ransZeroCompressor
	case rans1Len:
		return ransOneCompressor
	default:
		return gzipCompressor
	}
}

// AllBytesUsed is returned by UnusedByte when every byte value occurs
// in the input.
const AllBytesUsed = -1

const byteSpaceSize = 256

// UnusedByte returns the smallest byte value that does not occur in
// data, or AllBytesUsed if all 256 values are present.
func UnusedByte(data []byte) int {
	usage := bitset.New(byteSpaceSize)
	for _, b := range data {
		usage.Set(uint(b))
	}
	if unused, found := usage.NextClear(0); found && unused < byteSpaceSize {
		return int(unused)
	}
	return AllBytesUsed
}
