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
	"log"
	"math"
	"sort"
)

// DataSeries identifies a logical data series. Its numeric value is the
// content id of the external block the series is stored in.
type DataSeries int32

const (
	BitFlags                   DataSeries = iota + 1 // BF
	CompressionBitFlags                              // CF
	RefID                                            // RI
	ReadLengths                                      // RL
	AlignmentPositionOffset                          // AP
	ReadGroups                                       // RG
	ReadNames                                        // RN
	MateBitFlags                                     // MF
	NextFragmentReferenceID                          // NS
	NextFragmentAlignmentStart                       // NP
	TemplateSize                                     // TS
	RecordsToNextFragment                            // NF
	TagIDList                                        // TL
	NumberOfReadFeatures                             // FN
	FeatureCodes                                     // FC
	FeaturePositions                                 // FP
	DeletionLengths                                  // DL
	StretchesOfBases                                 // BB, never installed
	StretchesOfScores                                // QQ, never installed
	BaseSubstitutionCodes                            // BS
	Insertions                                       // IN
	ReferenceSkipLengths                             // RS
	Padding                                          // PD
	HardClips                                        // HC
	SoftClips                                        // SC
	MappingQualities                                 // MQ
	Bases                                            // BA
	QualityScores                                    // QS
	TagCounts                                        // TC
	TagNamesAndTypes                                 // TN
)

// ContentID returns the external block content id of the series.
func (series DataSeries) ContentID() int32 { return int32(series) }

// CompressionHeader describes how a batch of records is to be encoded:
// an encoding per fixed data series, an encoding per tag id, an external
// compressor per external block, the tag-id dictionary, and the
// substitution matrix.
type CompressionHeader struct {
	// APDelta is true when alignment positions are stored as deltas,
	// which requires the batch to be coordinate-sorted.
	APDelta             bool
	ExternalIDs         []int32
	ExternalCompressors map[int32]ExternalCompressor
	EncodingMap         map[DataSeries]EncodingParams
	TagEncodingMap      map[int32]EncodingParams
	TagIDDictionary     [][][]byte
	SubstitutionMatrix  *SubstitutionMatrix
}

func newCompressionHeader(coordinateSorted bool) *CompressionHeader {
	return &CompressionHeader{
		APDelta:             coordinateSorted,
		ExternalCompressors: make(map[int32]ExternalCompressor),
		EncodingMap:         make(map[DataSeries]EncodingParams),
		TagEncodingMap:      make(map[int32]EncodingParams),
	}
}

func (header *CompressionHeader) addExternalEncoding(series DataSeries, params EncodingParams, compressor ExternalCompressor) {
	id := series.ContentID()
	header.ExternalIDs = append(header.ExternalIDs, id)
	header.ExternalCompressors[id] = compressor
	header.EncodingMap[series] = params
}

// addExternalScalarEncoding installs a plain external encoding for the
// series. External encodings share their parameter layout across value
// types, so no type needs to be picked here.
func (header *CompressionHeader) addExternalScalarEncoding(series DataSeries, compressor ExternalCompressor) {
	header.addExternalEncoding(series, ExternalByteEncoding(series.ContentID()), compressor)
}

func (header *CompressionHeader) addExternalGzipEncoding(series DataSeries) {
	header.addExternalScalarEncoding(series, gzipCompressor)
}

func (header *CompressionHeader) addExternalRansOrderZeroEncoding(series DataSeries) {
	header.addExternalScalarEncoding(series, ransZeroCompressor)
}

func (header *CompressionHeader) addExternalRansOrderOneEncoding(series DataSeries) {
	header.addExternalScalarEncoding(series, ransOneCompressor)
}

func (header *CompressionHeader) addExternalByteArrayStopTabGzipEncoding(series DataSeries) {
	header.addExternalEncoding(series,
		ByteArrayStopEncoding('\t', series.ContentID()),
		gzipCompressor)
}

func (header *CompressionHeader) addTagEncoding(tagID int32, details encodingDetails) {
	header.ExternalIDs = append(header.ExternalIDs, tagID)
	header.ExternalCompressors[tagID] = details.compressor
	header.TagEncodingMap[tagID] = details.params
}

// encodingDetails pairs the encoding parameters for a tag with the
// external compressor for its block. This is all that is needed to
// encode the tag's data series.
type encodingDetails struct {
	params     EncodingParams
	compressor ExternalCompressor
}

// CompressionHeaderFactory decides which encodings to use for batches
// of records. It leans on gzip and rANS throughout. Encoding decisions
// per tag id are cached across batches, so a factory is not safe for
// concurrent use; give each goroutine its own, or serialize calls.
type CompressionHeaderFactory struct {
	bestEncodings map[int32]encodingDetails
	// tagValues is the scratch buffer that tag values are concatenated
	// into, reset for every tag id. TagData returns views of it.
	tagValues []byte
}

// NewCompressionHeaderFactory returns an empty factory.
func NewCompressionHeaderFactory() *CompressionHeaderFactory {
	return &CompressionHeaderFactory{
		bestEncodings: make(map[int32]encodingDetails),
		tagValues:     make([]byte, 0, 1024*1024),
	}
}

// Build decides on the encodings and external compressors for the given
// batch of records and returns the compression header describing them.
// Records are mutated in place: tags are sorted by tag id, the tag-id
// dictionary index cell is attached, and substitution read features
// receive their codes. Set coordinateSorted when the batch is sorted by
// alignment position; alignment positions are then stored as deltas.
func (factory *CompressionHeaderFactory) Build(records []*Record, coordinateSorted bool) *CompressionHeader {
	header := newCompressionHeader(coordinateSorted)

	header.addExternalRansOrderZeroEncoding(AlignmentPositionOffset)
	header.addExternalRansOrderOneEncoding(Bases)
	// BB is not used
	header.addExternalRansOrderOneEncoding(BitFlags)
	header.addExternalGzipEncoding(BaseSubstitutionCodes)
	header.addExternalRansOrderOneEncoding(CompressionBitFlags)
	header.addExternalGzipEncoding(DeletionLengths)
	header.addExternalGzipEncoding(FeatureCodes)
	header.addExternalGzipEncoding(NumberOfReadFeatures)
	header.addExternalGzipEncoding(FeaturePositions)
	header.addExternalGzipEncoding(HardClips)
	header.addExternalByteArrayStopTabGzipEncoding(Insertions)
	header.addExternalGzipEncoding(MateBitFlags)
	header.addExternalGzipEncoding(MappingQualities)
	header.addExternalGzipEncoding(RecordsToNextFragment)
	header.addExternalGzipEncoding(NextFragmentAlignmentStart)
	header.addExternalRansOrderOneEncoding(NextFragmentReferenceID)
	header.addExternalGzipEncoding(Padding)
	// QQ is not used
	header.addExternalRansOrderOneEncoding(QualityScores)
	header.addExternalRansOrderOneEncoding(ReadGroups)
	header.addExternalRansOrderZeroEncoding(RefID)
	header.addExternalRansOrderOneEncoding(ReadLengths)
	header.addExternalByteArrayStopTabGzipEncoding(ReadNames)
	header.addExternalGzipEncoding(ReferenceSkipLengths)
	header.addExternalByteArrayStopTabGzipEncoding(SoftClips)
	header.addExternalGzipEncoding(TagCounts)
	header.addExternalGzipEncoding(TagIDList)
	header.addExternalGzipEncoding(TagNamesAndTypes)
	header.addExternalRansOrderOneEncoding(TemplateSize)

	header.TagIDDictionary = buildTagIDDictionary(records)

	factory.buildTagEncodings(records, header)

	matrix := NewSubstitutionMatrix(records)
	updateSubstitutionCodes(records, matrix)
	header.SubstitutionMatrix = matrix

	return header
}

// buildTagIDDictionary collects the distinct sequences of sorted tag
// ids across the batch, orders them by length then bytewise, and
// attaches to every record the cell that ends up holding its row index.
// Row 0 is always the empty sequence. While the dictionary is under
// construction the cells hold occurrence counts; the final pass rewrites
// them to row indices.
func buildTagIDDictionary(records []*Record) [][][]byte {
	cells := map[string]*int32{"": new(int32)}
	var keyBuf []byte
	for _, record := range records {
		if len(record.Tags) == 0 {
			cell := cells[""]
			*cell++
			record.TagIDsIndex = cell
			continue
		}
		record.sortTags()
		keyBuf = keyBuf[:0]
		for _, tag := range record.Tags {
			keyBuf = append(keyBuf, byte(tag.ID>>16), byte(tag.ID>>8), byte(tag.ID))
		}
		key := string(keyBuf)
		cell, found := cells[key]
		if !found {
			cell = new(int32)
			cells[key] = cell
		}
		*cell++
		record.TagIDsIndex = cell
	}

	keys := make([]string, 0, len(cells))
	for key := range cells {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})

	dictionary := make([][][]byte, len(keys))
	for row, key := range keys {
		ids := make([][]byte, len(key)/3)
		for j := range ids {
			ids[j] = []byte(key[3*j : 3*j+3])
		}
		dictionary[row] = ids
		*cells[key] = int32(row)
	}
	return dictionary
}

// distinctTagIDs returns the distinct tag ids in the batch, in
// ascending order, so that the resulting header is a pure function of
// the batch contents.
func distinctTagIDs(records []*Record) []int32 {
	seen := make(map[int32]bool)
	var tagIDs []int32
	for _, record := range records {
		for _, tag := range record.Tags {
			if !seen[tag.ID] {
				seen[tag.ID] = true
				tagIDs = append(tagIDs, tag.ID)
			}
		}
	}
	sort.Slice(tagIDs, func(i, j int) bool { return tagIDs[i] < tagIDs[j] })
	return tagIDs
}

// buildTagEncodings registers an encoding for every tag id found in the
// batch, reusing decisions cached from earlier batches.
func (factory *CompressionHeaderFactory) buildTagEncodings(records []*Record, header *CompressionHeader) {
	for _, tagID := range distinctTagIDs(records) {
		details, found := factory.bestEncodings[tagID]
		if !found {
			details = factory.buildEncodingForTag(records, tagID)
			factory.bestEncodings[tagID] = details
		}
		header.addTagEncoding(tagID, details)
	}
}

// TagData concatenates the raw serializations of all values of the
// given tag id in the batch. The result is a view of the factory's
// scratch buffer and is only valid until the next call.
func (factory *CompressionHeaderFactory) TagData(records []*Record, tagID int32) []byte {
	factory.tagValues = factory.tagValues[:0]
	typ := TagType(tagID)
	for _, record := range records {
		for _, tag := range record.Tags {
			if tag.ID != tagID {
				continue
			}
			factory.tagValues = AppendTagValue(factory.tagValues, typ, tag.Value)
		}
	}
	return factory.tagValues
}

type byteSizeRange struct {
	min, max int
}

func tagValueSizeRange(records []*Record, tagID int32) byteSizeRange {
	stats := byteSizeRange{min: math.MaxInt32, max: math.MinInt32}
	typ := TagType(tagID)
	for _, record := range records {
		for _, tag := range record.Tags {
			if tag.ID != tagID {
				continue
			}
			size := TagValueByteSize(typ, tag.Value)
			if size < stats.min {
				stats.min = size
			}
			if size > stats.max {
				stats.max = size
			}
		}
	}
	return stats
}

// stopByteSizeThreshold is the minimum value size above which variable
// 'B' tags are worth a stop-byte search.
const stopByteSizeThreshold = 100

// buildEncodingForTag decides the encoding and the external compressor
// for one tag id, from the shapes of its values in the batch.
func (factory *CompressionHeaderFactory) buildEncodingForTag(records []*Record, tagID int32) encodingDetails {
	data := factory.TagData(records, tagID)
	details := encodingDetails{compressor: BestExternalCompressor(data)}

	typ := TagType(tagID)
	switch typ {
	case 'A', 'c', 'C':
		details.params = fixedLenTagEncoding(1, tagID)
		return details

	case 's', 'S':
		details.params = fixedLenTagEncoding(2, tagID)
		return details

	case 'i', 'I', 'f':
		details.params = fixedLenTagEncoding(4, tagID)
		return details

	case 'Z', 'B':
		stats := tagValueSizeRange(records, tagID)
		if stats.min == stats.max {
			details.params = fixedLenTagEncoding(int32(stats.min), tagID)
			return details
		}

		if typ == 'Z' {
			details.params = ByteArrayStopEncoding('\t', tagID)
			return details
		}

		if stats.min > stopByteSizeThreshold {
			if unused := UnusedByte(data); unused > AllBytesUsed {
				details.params = ByteArrayStopEncoding(byte(unused), tagID)
				return details
			}
		}

		details.params = ByteArrayLenEncoding(
			ExternalIntegerEncoding(tagID),
			ExternalByteEncoding(tagID))
		return details

	default:
		log.Panicf("unknown tag type: %c", typ)
		return details
	}
}

// updateSubstitutionCodes stamps the substitution code onto every
// substitution read feature that still carries the sentinel.
func updateSubstitutionCodes(records []*Record, matrix *SubstitutionMatrix) {
	for _, record := range records {
		for _, feature := range record.ReadFeatures {
			if feature.Operator() != SubstitutionOperator {
				continue
			}
			substitution := feature.(*Substitution)
			if substitution.Code == NoSubstitutionCode {
				substitution.Code = int8(matrix.Code(substitution.ReferenceBase, substitution.Base))
			}
		}
	}
}
