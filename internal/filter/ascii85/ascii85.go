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

// Package ascii85 implements the ASCII85Decode filter.
//
// The group encoding is done by encoding/ascii85.  This package adds the
// "~>" end-of-data marker and restricts white space to the PDF white
// space characters.
package ascii85

import (
	"bufio"
	"encoding/ascii85"
	"errors"
	"io"
)

var (
	errInvalidChar = errors.New("invalid character in ASCII85 stream")
	errEndMarker   = errors.New("invalid end marker in ASCII85 stream")
)

// Decode returns a reader which decodes ASCII base-85 data.  Decoding stops
// at the "~>" marker.  If the input ends without the marker, the data read
// so far is decoded as if the marker had been present.
func Decode(r io.Reader) io.Reader {
	return ascii85.NewDecoder(&body{r: bufio.NewReader(r)})
}

// body passes on the encoded data up to the end marker.
type body struct {
	r   *bufio.Reader
	err error
}

func (b *body) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && b.err == nil {
		c, err := b.r.ReadByte()
		switch {
		case err != nil:
			b.err = err
		case c == '~':
			if next, err := b.r.ReadByte(); err != nil || next != '>' {
				b.err = errEndMarker
			} else {
				b.err = io.EOF
			}
		case c < ' ' && !isSpace(c):
			b.err = errInvalidChar
		default:
			p[n] = c
			n++
		}
	}
	if n > 0 {
		return n, nil
	}
	return 0, b.err
}

func isSpace(c byte) bool {
	return c == 0 || c == 9 || c == 10 || c == 12 || c == 13 || c == 32
}

// lineLength is the maximal number of encoded characters per line.
const lineLength = 78

// Encode returns a writer which encodes data in ASCII base-85 form.
// Close writes the "~>" end marker; it does not close w.
func Encode(w io.Writer) io.WriteCloser {
	lw := &lineWriter{w: w}
	return &writer{lw: lw, enc: ascii85.NewEncoder(lw)}
}

type writer struct {
	lw  *lineWriter
	enc io.WriteCloser
}

func (w *writer) Write(p []byte) (int, error) {
	return w.enc.Write(p)
}

func (w *writer) Close() error {
	if err := w.enc.Close(); err != nil {
		return err
	}
	_, err := w.lw.w.Write([]byte("~>\n"))
	return err
}

// lineWriter breaks the encoded data into lines.
type lineWriter struct {
	w   io.Writer
	col int
	buf []byte
}

func (l *lineWriter) Write(p []byte) (int, error) {
	l.buf = l.buf[:0]
	for _, c := range p {
		if l.col == lineLength {
			l.buf = append(l.buf, '\n')
			l.col = 0
		}
		l.buf = append(l.buf, c)
		l.col++
	}
	if _, err := l.w.Write(l.buf); err != nil {
		return 0, err
	}
	return len(p), nil
}
