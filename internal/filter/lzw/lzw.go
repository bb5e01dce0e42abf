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

// Package lzw implements the LZWDecode filter.
//
// PDF uses the variable-width LZW code of TIFF, with the bits packed
// most-significant bit first.  By default the code width is increased one
// code early ("EarlyChange 1"); this variant is read by
// golang.org/x/image/tiff/lzw.  Streams with EarlyChange 0 use the
// standard library decoder.
package lzw

import (
	"compress/lzw"
	"io"

	tiff "golang.org/x/image/tiff/lzw"
)

// Decode returns a reader which decompresses LZW data.
func Decode(r io.Reader, earlyChange bool) io.ReadCloser {
	if earlyChange {
		return tiff.NewReader(r, tiff.MSB, 8)
	}
	return lzw.NewReader(r, lzw.MSB, 8)
}

// Encode returns a writer which compresses data with EarlyChange 0.
// The caller must close the returned writer to flush the data.
func Encode(w io.Writer) io.WriteCloser {
	return lzw.NewWriter(w, lzw.MSB, 8)
}
