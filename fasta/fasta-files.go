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
	"unicode"

	"github.com/exascience/elcram/internal"
	"github.com/exascience/elcram/utils"
)

func contigFromHeader(b []byte) string {
	i := 1
	for ; i < len(b); i++ {
		if c := b[i]; c >= '!' && c <= '~' {
			break
		}
	}
	j := i + 1
	for ; j < len(b); j++ {
		if c := b[j]; c < '!' || c > '~' {
			break
		}
	}
	return string(b[i:j])
}

func initSeq(contig string, fai *FaiIndex) []byte {
	if fai != nil && fai.Has(contig) {
		return make([]byte, 0, fai.Get(contig).Length)
	}
	return nil
}

var iupacTable = map[byte]byte{
	'A': 'A', 'a': 'a',
	'C': 'C', 'c': 'c',
	'G': 'G', 'g': 'g',
	'T': 'T', 't': 't',
	'N': 'N', 'n': 'N',
	'R': 'N', 'r': 'N',
	'Y': 'N', 'y': 'N',
	'M': 'N', 'm': 'N',
	'K': 'N', 'k': 'N',
	'W': 'N', 'w': 'N',
	'S': 'N', 's': 'N',
	'B': 'N', 'b': 'N',
	'D': 'N', 'd': 'N',
	'H': 'N', 'h': 'N',
	'V': 'N', 'v': 'N',
}

// ToN can be used to normalize ambiguity codes in FASTA references.
func ToN(base byte) byte {
	if n, ok := iupacTable[base]; ok {
		return n
	}
	return base
}

var iupacUpperTable = map[byte]byte{
	'A': 'A', 'a': 'A',
	'C': 'C', 'c': 'C',
	'G': 'G', 'g': 'G',
	'T': 'T', 't': 'T',
	'N': 'N', 'n': 'N',
	'R': 'N', 'r': 'N',
	'Y': 'N', 'y': 'N',
	'M': 'N', 'm': 'N',
	'K': 'N', 'k': 'N',
	'W': 'N', 'w': 'N',
	'S': 'N', 's': 'N',
	'B': 'N', 'b': 'N',
	'D': 'N', 'd': 'N',
	'H': 'N', 'h': 'N',
	'V': 'N', 'v': 'N',
}

// ToUpperAndN can be used to normalize ambiguity codes in FASTA references,
// and convert all codes to upper case.
func ToUpperAndN(base byte) byte {
	if n, ok := iupacUpperTable[base]; ok {
		return n
	}
	return base
}

// ParseFasta sequentially parses a FASTA file, plain or bgzip-compressed.
//
// If fai is given, the sequences can be pre-allocated
// to reduce pressure on the garbage collector.
// If toUpper is true, the contents are converted to upper case.
// If toN is true, ambiguity codes are normalized.
func ParseFasta(filename string, fai *FaiIndex, toUpper, toN bool) (fasta map[string][]byte) {
	f := internal.FileOpen(filename)
	defer internal.Close(f)

	scanner := bufio.NewScanner(utils.HandleBGZF(bufio.NewReader(f)))

	if !scanner.Scan() {
		log.Panicf("empty fasta file %v", filename)
	}
	b := scanner.Bytes()
	for len(b) == 0 {
		if !scanner.Scan() {
			log.Panicf("empty fasta file %v", filename)
		}
		b = scanner.Bytes()
	}
	if b[0] != '>' {
		log.Panicf("invalid fasta file %v - missing first header", filename)
	}

	contig := contigFromHeader(b)
	seq := initSeq(contig, fai)
	fasta = make(map[string][]byte)

scanLoop:
	for scanner.Scan() {
		b := scanner.Bytes()
		if len(b) == 0 {
			if !scanner.Scan() {
				break scanLoop
			}
			b = scanner.Bytes()
			for len(b) == 0 {
				if !scanner.Scan() {
					break scanLoop
				}
				b = scanner.Bytes()
			}
			if b[0] != '>' {
				log.Panicf("invalid fasta file %v - empty line", filename)
			}
		}
		if b[0] == '>' {
			fasta[contig] = seq
			contig = contigFromHeader(b)
			seq = initSeq(contig, fai)
		} else {
			if toUpper {
				for i, c := range b {
					b[i] = byte(unicode.ToUpper(rune(c)))
				}
			}
			if toN {
				for i, c := range b {
					if n, ok := iupacTable[c]; ok {
						b[i] = n
					}
				}
			}
			seq = append(seq, b...)
		}
	}

	fasta[contig] = seq

	if err := scanner.Err(); err != nil {
		log.Panic(err)
	}

	return fasta
}

// BuildFai scans a FASTA file and constructs its index: per sequence
// the total number of bases, the byte offset of the first base, and the
// line geometry. The input must be plain text, since the recorded
// offsets are file offsets. Sequence bodies must use a fixed line
// width; only the last line of a body may be shorter.
func BuildFai(filename string) *FaiIndex {
	file := internal.FileOpen(filename)
	defer internal.Close(file)

	fai := NewFaiIndex()
	reader := bufio.NewReader(file)

	var offset, seqOffset, length int64
	var lineBases, lineWidth int32
	var contig string
	started := false // seen at least one header
	first := false   // the next sequence line starts a body
	short := false   // a short or blank line ended the current body

	flush := func() {
		if started {
			fai.Add(FaiReference{
				Contig:    contig,
				Length:    length,
				Offset:    seqOffset,
				LineBases: lineBases,
				LineWidth: lineWidth,
			})
		}
	}

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			log.Panic(err)
		}
		if len(line) > 0 {
			width := int64(len(line))
			body := line
			for len(body) > 0 && (body[len(body)-1] == '\n' || body[len(body)-1] == '\r') {
				body = body[:len(body)-1]
			}
			switch {
			case len(body) > 0 && body[0] == '>':
				flush()
				contig = contigFromHeader(body)
				started = true
				seqOffset = offset + width
				length = 0
				lineBases = 0
				lineWidth = 0
				first = true
				short = false
			case !started:
				if len(body) > 0 {
					log.Panicf("invalid fasta file %v - missing first header", filename)
				}
			case len(body) == 0:
				short = true
			default:
				if short {
					log.Panicf("invalid fasta file %v - ragged sequence lines for %v", filename, contig)
				}
				if first {
					lineBases = int32(len(body))
					lineWidth = int32(width)
					first = false
				} else if int32(len(body)) > lineBases || int32(width) > lineWidth {
					log.Panicf("invalid fasta file %v - ragged sequence lines for %v", filename, contig)
				}
				if int32(len(body)) < lineBases || int32(width) < lineWidth {
					short = true
				}
				length += int64(len(body))
			}
			offset += width
		}
		if err == io.EOF {
			break
		}
	}
	flush()

	return fai
}
