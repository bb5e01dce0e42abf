// seehuhn.de/go/pdfcore - a library for reading PDF files
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package flate implements the FlateDecode filter.
package flate

import (
	"bufio"
	"compress/flate"
	"compress/zlib"
	"io"
)

// Decode returns a reader which decompresses zlib data.  If the data does
// not start with a valid zlib header, it is read as raw deflate data.
func Decode(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(2)
	if len(head) == 2 && validHeader(head[0], head[1]) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

func validHeader(cmf, flg byte) bool {
	if cmf&0x0f != 8 || cmf>>4 > 7 {
		return false
	}
	if flg&0x20 != 0 { // preset dictionary
		return false
	}
	return (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// Encode returns a writer which compresses data in zlib format.
func Encode(w io.Writer) io.WriteCloser {
	return zlib.NewWriter(w)
}
