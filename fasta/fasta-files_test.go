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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFasta = ">chr1 homo sapiens\n" +
	"ACGT\n" +
	"ACGT\n" +
	"AC\n" +
	">chr2\n" +
	"GGGG\n"

func TestBuildFai(t *testing.T) {
	filename := writeTestFile(t, "ref.fasta", testFasta)
	fai := BuildFai(filename)

	require.Equal(t, 2, fai.Size())

	chr1 := fai.Get("chr1")
	assert.EqualValues(t, 10, chr1.Length)
	assert.EqualValues(t, 19, chr1.Offset)
	assert.EqualValues(t, 4, chr1.LineBases)
	assert.EqualValues(t, 5, chr1.LineWidth)

	chr2 := fai.Get("chr2")
	assert.EqualValues(t, 4, chr2.Length)
	assert.EqualValues(t, 19+5+5+3+6, chr2.Offset)
	assert.EqualValues(t, 4, chr2.LineBases)
	assert.EqualValues(t, 5, chr2.LineWidth)
	assert.EqualValues(t, 1, chr2.SequenceIndex())
}

func TestBuildFaiNoTrailingNewline(t *testing.T) {
	filename := writeTestFile(t, "ref.fasta", ">c1\nACGT\nAC")
	fai := BuildFai(filename)
	require.Equal(t, 1, fai.Size())
	assert.EqualValues(t, 6, fai.Get("c1").Length)
	assert.EqualValues(t, 4, fai.Get("c1").Offset)
}

func TestBuildFaiRagged(t *testing.T) {
	for _, contents := range []string{
		">c1\nAC\nACGT\n",       // line longer than the first
		">c1\nACGT\nAC\nACGT\n", // line after a short line
		"ACGT\n",                // missing first header
	} {
		filename := writeTestFile(t, "bad.fasta", contents)
		require.Panics(t, func() { BuildFai(filename) }, "contents %q", contents)
	}
}

func TestBuildFaiRoundTrip(t *testing.T) {
	filename := writeTestFile(t, "ref.fasta", testFasta)
	fai := BuildFai(filename)

	out := filename + ".fai"
	fai.Write(out)
	assert.True(t, fai.Equal(ParseFai(out)))
}

func TestParseFasta(t *testing.T) {
	filename := writeTestFile(t, "ref.fasta", testFasta)
	fai := BuildFai(filename)

	fasta := ParseFasta(filename, fai, false, false)
	require.Len(t, fasta, 2)
	assert.Equal(t, "ACGTACGTAC", string(fasta["chr1"]))
	assert.Equal(t, "GGGG", string(fasta["chr2"]))

	// without an index the sequences parse the same
	fasta = ParseFasta(filename, nil, false, false)
	assert.Equal(t, "ACGTACGTAC", string(fasta["chr1"]))
}

func TestParseFastaNormalization(t *testing.T) {
	filename := writeTestFile(t, "ref.fasta", ">c1\nacgtry\n")
	fasta := ParseFasta(filename, nil, true, true)
	assert.Equal(t, "ACGTNN", string(fasta["c1"]))
}

func TestToN(t *testing.T) {
	assert.Equal(t, byte('N'), ToN('R'))
	assert.Equal(t, byte('a'), ToN('a'))
	assert.Equal(t, byte('A'), ToUpperAndN('a'))
	assert.Equal(t, byte('N'), ToUpperAndN('y'))
	assert.Equal(t, byte('-'), ToUpperAndN('-'))
}
