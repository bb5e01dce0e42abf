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

// Package dct implements the DCTDecode filter, using the JPEG decoder
// from the standard library.
package dct

import (
	"image"
	"image/color"
	"image/jpeg"
	"io"
)

// Decode returns a reader for the samples of the JPEG image in r.  The
// JPEG data is only decoded on the first call to Read.
//
// Samples are interleaved and rows are not padded.  Gray images give one
// byte per pixel and CMYK images four bytes.  All other images are
// converted to RGB.
func Decode(r io.Reader) io.Reader {
	return &reader{src: r}
}

type reader struct {
	src io.Reader
	img image.Image
	y   int // next row to convert

	buf []byte
	row []byte // unread part of the current row
	err error
}

func (d *reader) Read(p []byte) (int, error) {
	if d.img == nil && d.err == nil {
		d.img, d.err = jpeg.Decode(d.src)
		if d.err == nil {
			d.y = d.img.Bounds().Min.Y
		}
	}

	n := 0
	for n < len(p) {
		if len(d.row) == 0 {
			if d.err != nil {
				break
			}
			if d.y >= d.img.Bounds().Max.Y {
				d.err = io.EOF
				break
			}
			d.buf = appendRow(d.buf[:0], d.img, d.y)
			d.row = d.buf
			d.y++
		}
		k := copy(p[n:], d.row)
		d.row = d.row[k:]
		n += k
	}
	if n > 0 {
		return n, nil
	}
	return 0, d.err
}

// appendRow appends the samples of row y to buf.
func appendRow(buf []byte, img image.Image, y int) []byte {
	b := img.Bounds()
	switch img := img.(type) {
	case *image.Gray:
		i := img.PixOffset(b.Min.X, y)
		return append(buf, img.Pix[i:i+b.Dx()]...)
	case *image.CMYK:
		i := img.PixOffset(b.Min.X, y)
		return append(buf, img.Pix[i:i+4*b.Dx()]...)
	case *image.YCbCr:
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.YCbCrAt(x, y)
			red, green, blue := color.YCbCrToRGB(c.Y, c.Cb, c.Cr)
			buf = append(buf, red, green, blue)
		}
		return buf
	default:
		for x := b.Min.X; x < b.Max.X; x++ {
			red, green, blue, _ := img.At(x, y).RGBA()
			buf = append(buf, byte(red>>8), byte(green>>8), byte(blue>>8))
		}
		return buf
	}
}
