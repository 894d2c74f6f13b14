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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func substitutionRecord(base, referenceBase byte) *Record {
	return &Record{ReadFeatures: []ReadFeature{NewSubstitution(0, base, referenceBase)}}
}

func TestDefaultSubstitutionMatrix(t *testing.T) {
	matrix := NewSubstitutionMatrix(nil)
	// without observations every row falls back to ascending base order
	for _, row := range []struct {
		ref   byte
		bases string
	}{
		{'A', "CGNT"},
		{'C', "AGNT"},
		{'G', "ACNT"},
		{'T', "ACGN"},
		{'N', "ACGT"},
	} {
		for code := byte(0); code < 4; code++ {
			assert.Equal(t, row.bases[code], matrix.Base(row.ref, code))
			assert.Equal(t, code, matrix.Code(row.ref, row.bases[code]))
		}
	}
}

func TestSubstitutionMatrixRanking(t *testing.T) {
	var records []*Record
	for i := 0; i < 10; i++ {
		records = append(records, substitutionRecord('T', 'A'))
	}
	for i := 0; i < 5; i++ {
		records = append(records, substitutionRecord('G', 'A'))
	}
	records = append(records, substitutionRecord('C', 'A'))
	// deletions are not substitutions and must be ignored
	records = append(records, &Record{ReadFeatures: []ReadFeature{&Deletion{Position: 1, Length: 3}}})

	matrix := NewSubstitutionMatrix(records)
	assert.Equal(t, byte('T'), matrix.Base('A', 0))
	assert.Equal(t, byte('G'), matrix.Base('A', 1))
	assert.Equal(t, byte('C'), matrix.Base('A', 2))
	assert.Equal(t, byte('N'), matrix.Base('A', 3))
	assert.Equal(t, byte(0), matrix.Code('A', 'T'))
	assert.Equal(t, byte(3), matrix.Code('A', 'N'))

	// unobserved rows keep the canonical order
	assert.Equal(t, byte('A'), matrix.Base('C', 0))
}

func TestSubstitutionMatrixTieBreak(t *testing.T) {
	records := []*Record{
		substitutionRecord('T', 'A'),
		substitutionRecord('G', 'A'),
	}
	matrix := NewSubstitutionMatrix(records)
	// equal frequencies rank by ascending base letter
	assert.Equal(t, byte('G'), matrix.Base('A', 0))
	assert.Equal(t, byte('T'), matrix.Base('A', 1))
	assert.Equal(t, byte('C'), matrix.Base('A', 2))
	assert.Equal(t, byte('N'), matrix.Base('A', 3))
}

func TestSubstitutionMatrixTotality(t *testing.T) {
	records := []*Record{substitutionRecord('C', 'A'), substitutionRecord('A', 'N')}
	matrix := NewSubstitutionMatrix(records)
	for r := 0; r < len(SubstitutionBases); r++ {
		ref := SubstitutionBases[r]
		seen := make(map[byte]bool)
		for code := byte(0); code < 4; code++ {
			base := matrix.Base(ref, code)
			assert.NotEqual(t, ref, base)
			assert.False(t, seen[base])
			seen[base] = true
		}
		assert.Len(t, seen, 4)
	}
}

func TestSubstitutionMatrixEncode(t *testing.T) {
	matrix := NewSubstitutionMatrix(nil)
	assert.Equal(t, [5]byte{30, 30, 30, 27, 27}, matrix.Encode())
	assert.Equal(t, "A:CGNT\nC:AGNT\nG:ACNT\nT:ACGN\nN:ACGT\n", matrix.String())
}

func TestSubstitutionMatrixInvalidBase(t *testing.T) {
	require.Panics(t, func() {
		NewSubstitutionMatrix([]*Record{substitutionRecord('Q', 'A')})
	})
	matrix := NewSubstitutionMatrix(nil)
	require.Panics(t, func() { matrix.Code('A', 'Q') })
	require.Panics(t, func() { matrix.Code('A', 'A') })
	require.Panics(t, func() { matrix.Base('Z', 0) })
	require.Panics(t, func() { matrix.Base('A', 4) })
}
