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

// Package ccittfax implements the CCITTFaxDecode filter.
//
// Pure one-dimensional (K = 0) and pure two-dimensional (K < 0) data is
// decoded using golang.org/x/image/ccitt.  Mixed Group 3 data (K > 0) is
// handled by a decoder in this package.
package ccittfax

import (
	"errors"
	"io"

	"golang.org/x/image/ccitt"
)

// Params holds the values from a CCITTFaxDecode /DecodeParms dictionary.
type Params struct {
	// K selects the encoding scheme: K < 0 is pure two-dimensional
	// (Group 4), K = 0 is pure one-dimensional (Group 3), and K > 0
	// mixes one- and two-dimensional lines (Group 3, 2-D).
	K int

	// Columns is the width of the image in pixels.
	Columns int

	// Rows is the height of the image.  If Rows is 0, decoding continues
	// until the end-of-block marker.
	Rows int

	// BlackIs1 specifies that 1 bits represent black pixels.
	BlackIs1 bool

	// EncodedByteAlign specifies that encoded lines are padded to byte
	// boundaries.
	EncodedByteAlign bool
}

// DefaultColumns is the value of /Columns if the entry is missing.
const DefaultColumns = 1728

// Decode returns a reader which decompresses CCITT fax data.  The output
// has one bit per pixel, each row is padded to a whole number of bytes.
func Decode(r io.Reader, p *Params) (io.Reader, error) {
	width := p.Columns
	if width == 0 {
		width = DefaultColumns
	}
	if width < 0 || width > maxWidth {
		return nil, errors.New("invalid number of columns")
	}

	var sf ccitt.SubFormat
	switch {
	case p.K < 0:
		sf = ccitt.Group4
	case p.K == 0:
		sf = ccitt.Group3
	default:
		return newMixedReader(r, p, width), nil
	}
	height := p.Rows
	if height <= 0 {
		height = ccitt.AutoDetectHeight
	}

	opts := &ccitt.Options{
		Align:  p.EncodedByteAlign,
		Invert: p.BlackIs1,
	}
	return ccitt.NewReader(r, ccitt.MSB, sf, width, height, opts), nil
}
