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
	"encoding/binary"
	"log"
	"math"
	"sort"

	psort "github.com/exascience/pargo/sort"
)

// Record is one alignment record as it is handed to the compression
// planner. The planner mutates records in place: it sorts Tags by tag id,
// attaches TagIDsIndex, and fills in substitution codes on ReadFeatures.
type Record struct {
	Name           string
	ReferenceID    int32
	AlignmentStart int32
	ReadLength     int32
	Tags           []Tag
	ReadFeatures   []ReadFeature

	// TagIDsIndex points to a cell shared between all records whose sorted
	// tag-id sequences are equal. While the tag-id dictionary is being
	// built the cell holds an occurrence count; once the dictionary is
	// final it holds the dictionary row index.
	TagIDsIndex *int32
}

// Tag is an auxiliary field attached to a record. ID packs the two
// ASCII name letters and the ASCII type character as
// (name[0]<<16)|(name[1]<<8)|type.
type Tag struct {
	ID    int32
	Value interface{}
}

// TagID packs a two-letter tag name and a type character into a tag id.
func TagID(name string, typ byte) int32 {
	if len(name) != 2 {
		log.Panicf("invalid tag name %v - must be two characters", name)
	}
	return int32(name[0])<<16 | int32(name[1])<<8 | int32(typ)
}

// NewTag returns a tag for the given name, type character, and value.
func NewTag(name string, typ byte, value interface{}) Tag {
	return Tag{ID: TagID(name, typ), Value: value}
}

// TagType returns the type character of a tag id, its lowest byte.
func TagType(tagID int32) byte { return byte(tagID) }

// TagName returns the two-letter name of a tag id.
func TagName(tagID int32) string {
	return string([]byte{byte(tagID >> 16), byte(tagID >> 8)})
}

func (tag Tag) Type() byte { return TagType(tag.ID) }

// TagValueByteSize returns the number of bytes the raw serialization of a
// tag value occupies, based on its type character.
func TagValueByteSize(typ byte, value interface{}) int {
	switch typ {
	case 'A', 'c', 'C':
		return 1
	case 's', 'S':
		return 2
	case 'i', 'I', 'f':
		return 4
	case 'Z':
		return len(value.(string)) + 1
	case 'B':
		switch array := value.(type) {
		case []byte:
			return 1 + 4 + len(array)
		case []int8:
			return 1 + 4 + len(array)
		case []int16:
			return 1 + 4 + 2*len(array)
		case []uint16:
			return 1 + 4 + 2*len(array)
		case []int32:
			return 1 + 4 + 4*len(array)
		case []uint32:
			return 1 + 4 + 4*len(array)
		case []float32:
			return 1 + 4 + 4*len(array)
		default:
			log.Panicf("unknown tag array value %v", value)
			return 0
		}
	default:
		log.Panicf("unknown tag type: %c", typ)
		return 0
	}
}

func appendUint16(buf []byte, value uint16) []byte {
	return binary.LittleEndian.AppendUint16(buf, value)
}

func appendUint32(buf []byte, value uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, value)
}

// AppendTagValue appends the raw serialization of a tag value to buf,
// in the little-endian layout the tag data blocks use. 'B' arrays are
// prefixed with their element type character and element count.
func AppendTagValue(buf []byte, typ byte, value interface{}) []byte {
	switch typ {
	case 'A':
		return append(buf, value.(byte))
	case 'c':
		return append(buf, byte(value.(int8)))
	case 'C':
		return append(buf, value.(byte))
	case 's':
		return appendUint16(buf, uint16(value.(int16)))
	case 'S':
		return appendUint16(buf, value.(uint16))
	case 'i':
		return appendUint32(buf, uint32(value.(int32)))
	case 'I':
		return appendUint32(buf, value.(uint32))
	case 'f':
		return appendUint32(buf, math.Float32bits(value.(float32)))
	case 'Z':
		return append(append(buf, value.(string)...), 0)
	case 'B':
		switch array := value.(type) {
		case []byte:
			buf = appendUint32(append(buf, 'C'), uint32(len(array)))
			return append(buf, array...)
		case []int8:
			buf = appendUint32(append(buf, 'c'), uint32(len(array)))
			for _, element := range array {
				buf = append(buf, byte(element))
			}
			return buf
		case []int16:
			buf = appendUint32(append(buf, 's'), uint32(len(array)))
			for _, element := range array {
				buf = appendUint16(buf, uint16(element))
			}
			return buf
		case []uint16:
			buf = appendUint32(append(buf, 'S'), uint32(len(array)))
			for _, element := range array {
				buf = appendUint16(buf, element)
			}
			return buf
		case []int32:
			buf = appendUint32(append(buf, 'i'), uint32(len(array)))
			for _, element := range array {
				buf = appendUint32(buf, uint32(element))
			}
			return buf
		case []uint32:
			buf = appendUint32(append(buf, 'I'), uint32(len(array)))
			for _, element := range array {
				buf = appendUint32(buf, element)
			}
			return buf
		case []float32:
			buf = appendUint32(append(buf, 'f'), uint32(len(array)))
			for _, element := range array {
				buf = appendUint32(buf, math.Float32bits(element))
			}
			return buf
		default:
			log.Panicf("unknown tag array value %v", value)
			return nil
		}
	default:
		log.Panicf("unknown tag type: %c", typ)
		return nil
	}
}

// sortTags sorts the tags of a record in place by ascending tag id.
func (record *Record) sortTags() {
	sort.SliceStable(record.Tags, func(i, j int) bool {
		return record.Tags[i].ID < record.Tags[j].ID
	})
}

// ReadFeature is one entry in a record's read-feature list, identified
// by its operator byte.
type ReadFeature interface {
	Operator() byte
}

// NoSubstitutionCode is the sentinel for a substitution whose code has
// not been assigned yet.
const NoSubstitutionCode int8 = -1

// SubstitutionOperator identifies substitution read features.
const SubstitutionOperator byte = 'X'

// Substitution is a base substitution in read coordinates. Base and
// ReferenceBase must be one of ACGTN. Code is derived state: the planner
// stamps it from the substitution matrix, so it takes no part in
// equality.
type Substitution struct {
	Position      int32
	Base          byte
	ReferenceBase byte
	Code          int8
}

// NewSubstitution returns a substitution with an unassigned code.
func NewSubstitution(position int32, base, referenceBase byte) *Substitution {
	return &Substitution{
		Position:      position,
		Base:          base,
		ReferenceBase: referenceBase,
		Code:          NoSubstitutionCode,
	}
}

// Operator implements the ReadFeature interface.
func (*Substitution) Operator() byte { return SubstitutionOperator }

// Equal compares two substitutions by position, read base, and
// reference base.
func (sub *Substitution) Equal(other *Substitution) bool {
	return sub.Position == other.Position &&
		sub.Base == other.Base &&
		sub.ReferenceBase == other.ReferenceBase
}

// DeletionOperator identifies deletion read features.
const DeletionOperator byte = 'D'

// Deletion is a deletion of Length reference bases at a read position.
type Deletion struct {
	Position int32
	Length   int32
}

// Operator implements the ReadFeature interface.
func (*Deletion) Operator() byte { return DeletionOperator }

// CoordinateLess compares two records by reference id and alignment
// start, with unmapped records (negative reference id) last.
func CoordinateLess(r1, r2 *Record) bool {
	refid1 := r1.ReferenceID
	refid2 := r2.ReferenceID
	switch {
	case refid1 < refid2:
		return refid1 >= 0
	case refid2 < refid1:
		return refid2 < 0
	default:
		return r1.AlignmentStart < r2.AlignmentStart
	}
}

type (
	// By is a comparison function over records, for sorting batches.
	By func(r1, r2 *Record) bool

	// RecordSorter sorts batches of records.
	RecordSorter struct {
		records []*Record
		by      By
	}
)

// SequentialSort implements the psort.StableSorter interface.
func (s RecordSorter) SequentialSort(i, j int) {
	records, by := s.records[i:j], s.by
	sort.SliceStable(records, func(i, j int) bool {
		return by(records[i], records[j])
	})
}

// NewTemp implements the psort.StableSorter interface.
func (s RecordSorter) NewTemp() psort.StableSorter {
	return RecordSorter{make([]*Record, len(s.records)), s.by}
}

// Len implements the psort.StableSorter interface.
func (s RecordSorter) Len() int {
	return len(s.records)
}

// Less implements the psort.StableSorter interface.
func (s RecordSorter) Less(i, j int) bool {
	return s.by(s.records[i], s.records[j])
}

// Assign implements the psort.StableSorter interface.
func (s RecordSorter) Assign(p psort.StableSorter) func(i, j, len int) {
	dst, src := s.records, p.(RecordSorter).records
	return func(i, j, len int) {
		for k := 0; k < len; k++ {
			dst[i+k] = src[j+k]
		}
	}
}

// ParallelStableSort sorts a batch of records by the given comparison
// function. Batches must be coordinate-sorted before they are handed to
// the planner with coordinateSorted set to true.
func (by By) ParallelStableSort(records []*Record) {
	psort.StableSort(RecordSorter{records, by})
}
