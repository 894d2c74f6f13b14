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

package utils

import (
	"bufio"
	"io"
	"log"

	"github.com/klauspost/compress/gzip"
)

// IsGzip determines if the given byte scanner produces a gzip file.
// It uses ReadByte and UnreadByte to check only the initial byte from
// the input.
func IsGzip(scanner io.ByteScanner) (bool, error) {
	b, err := scanner.ReadByte()
	if err != nil {
		return false, err
	}
	if err := scanner.UnreadByte(); err != nil {
		return false, err
	}
	return b == 0x1f, nil
}

// HandleBGZF checks if the given reader produces a gzip file by looking
// at the initial byte. It then either returns a gzip reader, or returns
// the given reader unchanged. BGZF files are sequences of gzip members,
// so the multistream gzip reader handles them transparently, including
// the empty terminating block. HandleBGZF uses ReadByte and UnreadByte.
func HandleBGZF(buf *bufio.Reader) io.Reader {
	ok, err := IsGzip(buf)
	if err != nil {
		log.Panic(err)
	}
	if !ok {
		return buf
	}
	r, err := gzip.NewReader(buf)
	if err != nil {
		log.Panic(err)
	}
	return r
}
