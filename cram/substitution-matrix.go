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
	"sort"
)

// SubstitutionBases are the bases a substitution may mention, in their
// canonical rank order.
const SubstitutionBases = "ACGTN"

const nofSubstitutionBases = len(SubstitutionBases)

var substitutionBaseIndex [256]int8

func init() {
	for i := range substitutionBaseIndex {
		substitutionBaseIndex[i] = -1
	}
	for i := 0; i < nofSubstitutionBases; i++ {
		substitutionBaseIndex[SubstitutionBases[i]] = int8(i)
	}
}

func substitutionBase(base byte) int8 {
	index := substitutionBaseIndex[base]
	if index < 0 {
		log.Panicf("invalid substitution base %c", base)
	}
	return index
}

// SubstitutionMatrix ranks, for every reference base in ACGTN, the four
// other bases by how often they substitute it in a batch of records.
// A substitution code is the rank of the read base in the row of its
// reference base.
type SubstitutionMatrix struct {
	// bases[r][c] is the read base with code c under reference base r.
	bases [nofSubstitutionBases][4]byte
	// codes[r][b] is the code of read base b under reference base r,
	// or -1 for the reference base itself.
	codes [nofSubstitutionBases][nofSubstitutionBases]int8
}

// NewSubstitutionMatrix builds a substitution matrix from the
// substitution read features of the given records. Bases with equal
// counts, including unobserved ones, rank by ascending base letter
// (A, C, G, N, T), so the matrix is total. Substitutions mentioning a
// base outside ACGTN are rejected.
func NewSubstitutionMatrix(records []*Record) *SubstitutionMatrix {
	var frequencies [nofSubstitutionBases][nofSubstitutionBases]int64
	for _, record := range records {
		for _, feature := range record.ReadFeatures {
			if feature.Operator() != SubstitutionOperator {
				continue
			}
			substitution := feature.(*Substitution)
			refIndex := substitutionBase(substitution.ReferenceBase)
			baseIndex := substitutionBase(substitution.Base)
			frequencies[refIndex][baseIndex]++
		}
	}

	matrix := new(SubstitutionMatrix)
	var candidates [4]int8
	for r := 0; r < nofSubstitutionBases; r++ {
		n := 0
		for b := 0; b < nofSubstitutionBases; b++ {
			matrix.codes[r][b] = -1
			if b != r {
				candidates[n] = int8(b)
				n++
			}
		}
		row := candidates[:]
		sort.SliceStable(row, func(i, j int) bool {
			fi, fj := frequencies[r][row[i]], frequencies[r][row[j]]
			if fi != fj {
				return fi > fj
			}
			return SubstitutionBases[row[i]] < SubstitutionBases[row[j]]
		})
		for code, b := range row {
			matrix.bases[r][code] = SubstitutionBases[b]
			matrix.codes[r][b] = int8(code)
		}
	}
	return matrix
}

// Code returns the substitution code for a read base observed against
// a reference base. Both bases must be in ACGTN and must differ.
func (matrix *SubstitutionMatrix) Code(referenceBase, readBase byte) byte {
	code := matrix.codes[substitutionBase(referenceBase)][substitutionBase(readBase)]
	if code < 0 {
		log.Panicf("no substitution code for read base %c against reference base %c",
			readBase, referenceBase)
	}
	return byte(code)
}

// Base returns the read base a substitution code selects for the given
// reference base.
func (matrix *SubstitutionMatrix) Base(referenceBase byte, code byte) byte {
	if code > 3 {
		log.Panicf("invalid substitution code %v", code)
	}
	return matrix.bases[substitutionBase(referenceBase)][code]
}

// Encode packs the matrix into its five-byte wire form: one byte per
// reference base in ACGTN order, holding the 2-bit codes of the other
// bases in ACGTN order, from the highest bits down.
func (matrix *SubstitutionMatrix) Encode() (encoded [5]byte) {
	for r := 0; r < nofSubstitutionBases; r++ {
		var packed byte
		for b := 0; b < nofSubstitutionBases; b++ {
			if b == r {
				continue
			}
			packed = packed<<2 | byte(matrix.codes[r][b])
		}
		encoded[r] = packed
	}
	return encoded
}

func (matrix *SubstitutionMatrix) String() string {
	result := make([]byte, 0, 5*7)
	for r := 0; r < nofSubstitutionBases; r++ {
		result = append(result, SubstitutionBases[r], ':')
		result = append(result, matrix.bases[r][:]...)
		result = append(result, '\n')
	}
	return string(result)
}
