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

package fasta

import (
	"bufio"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/exascience/elcram/internal"
)

// FaiReference is one entry in an FAI file: the name of a reference
// sequence, its total number of bases, the byte offset of its first
// base, and its line geometry.
type FaiReference struct {
	Contig    string
	Length    int64
	Offset    int64
	LineBases int32
	LineWidth int32

	sequenceIndex int32
}

// SequenceIndex returns the 0-based position of this entry in its
// index, assigned at insertion.
func (ref *FaiReference) SequenceIndex() int32 {
	return ref.sequenceIndex
}

// Equal compares two entries by contig, length, offset, and line
// geometry.
func (ref *FaiReference) Equal(other *FaiReference) bool {
	return ref.Contig == other.Contig &&
		ref.Length == other.Length &&
		ref.Offset == other.Offset &&
		ref.LineBases == other.LineBases &&
		ref.LineWidth == other.LineWidth
}

// FaiIndex is the index of a FASTA file: one FaiReference per reference
// sequence, in insertion order, with hashed lookup by contig name.
type FaiIndex struct {
	entries  []*FaiReference
	byContig map[string]*FaiReference
}

// NewFaiIndex returns an empty index.
func NewFaiIndex() *FaiIndex {
	return &FaiIndex{byContig: make(map[string]*FaiReference)}
}

// truncateContigName cuts a sequence name at the first whitespace, the
// same rule SAM applies to sequence names.
func truncateContigName(contig string) string {
	if i := strings.IndexAny(contig, " \t\n\v\f\r"); i >= 0 {
		return contig[:i]
	}
	return contig
}

// Add appends an entry to the index, assigning its sequence index. The
// contig name is truncated at the first whitespace. Adding a duplicate
// contig is an error.
func (fai *FaiIndex) Add(ref FaiReference) *FaiReference {
	ref.Contig = truncateContigName(ref.Contig)
	if _, found := fai.byContig[ref.Contig]; found {
		log.Panicf("contig %v already exists in fasta index", ref.Contig)
	}
	ref.sequenceIndex = int32(len(fai.entries))
	entry := &ref
	fai.entries = append(fai.entries, entry)
	fai.byContig[entry.Contig] = entry
	return entry
}

// Has tells whether the index contains an entry for the given contig.
func (fai *FaiIndex) Has(contig string) bool {
	_, found := fai.byContig[contig]
	return found
}

// Get returns the entry for the given contig. A missing contig is an
// error.
func (fai *FaiIndex) Get(contig string) *FaiReference {
	entry, found := fai.byContig[contig]
	if !found {
		log.Panicf("no entry for contig %v in fasta index", contig)
	}
	return entry
}

// Size returns the number of entries in the index.
func (fai *FaiIndex) Size() int {
	return len(fai.entries)
}

// Entries returns the entries of the index in insertion order.
func (fai *FaiIndex) Entries() []*FaiReference {
	return fai.entries
}

// Equal compares two indexes: same size, same entries in the same
// order.
func (fai *FaiIndex) Equal(other *FaiIndex) bool {
	if len(fai.entries) != len(other.entries) {
		return false
	}
	for i, entry := range fai.entries {
		if !entry.Equal(other.entries[i]) {
			return false
		}
	}
	return true
}

// ParseFai parses an FAI file. Lines that are not exactly five
// tab-separated fields with numeric counts are rejected.
func ParseFai(filename string) *FaiIndex {
	file := internal.FileOpen(filename)
	defer internal.Close(file)

	fai := NewFaiIndex()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, "\t")
		if len(fields) != 5 || fields[0] == "" {
			log.Panicf("badly formatted fai line %q - expecting five tab-separated fields", line)
		}
		parse := func(field string, bitSize int) int64 {
			value, err := strconv.ParseInt(field, 10, bitSize)
			if err != nil {
				log.Panicf("badly formatted fai line %q - %v", line, err)
			}
			return value
		}
		fai.Add(FaiReference{
			Contig:    fields[0],
			Length:    parse(fields[1], 64),
			Offset:    parse(fields[2], 64),
			LineBases: int32(parse(fields[3], 32)),
			LineWidth: int32(parse(fields[4], 32)),
		})
	}
	if err := scanner.Err(); err != nil {
		log.Panic(err)
	}

	return fai
}

func (ref *FaiReference) appendLine(buf []byte) []byte {
	buf = append(buf, ref.Contig...)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, ref.Length, 10)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, ref.Offset, 10)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(ref.LineBases), 10)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(ref.LineWidth), 10)
	return append(buf, '\n')
}

// Format emits the tab-delimited index lines to the given writer in
// insertion order.
func (fai *FaiIndex) Format(w io.Writer) error {
	buf := internal.ReserveByteBuffer()
	defer func() { internal.ReleaseByteBuffer(buf) }()

	for _, entry := range fai.entries {
		buf = entry.appendLine(buf[:0])
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func (fai *FaiIndex) writeFile(filename string) {
	file := internal.FileCreate(filename)
	defer internal.Close(file)

	if err := fai.Format(file); err != nil {
		log.Panic(err)
	}
}

// Write emits the index in the .fai format. The index is first written
// to a uniquely named file next to the target, which then atomically
// replaces it.
func (fai *FaiIndex) Write(filename string) {
	tmp := filename + "." + uuid.New().String() + ".tmp"
	fai.writeFile(tmp)
	if err := os.Rename(tmp, filename); err != nil {
		log.Panic(err)
	}
}
