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

// Package asciihex implements the ASCIIHexDecode filter.
package asciihex

import (
	"bufio"
	"encoding/hex"
	"io"
)

// Decode returns a reader which decodes data in ASCII hexadecimal form.
// White space is ignored, and a final odd digit is padded with zero.
// Input ending without the ">" marker is accepted.
func Decode(r io.Reader) io.Reader {
	return &reader{src: bufio.NewReader(r)}
}

type reader struct {
	src    *bufio.Reader
	digits []byte // hex digits not yet decoded
	err    error
}

func (r *reader) Read(p []byte) (int, error) {
	for len(r.digits) < 2*len(p) && r.err == nil {
		c, err := r.src.ReadByte()
		switch {
		case err != nil:
			r.err = err
		case c == '>':
			r.err = io.EOF
		case !isSpace(c):
			r.digits = append(r.digits, c)
		}
	}
	if r.err == io.EOF && len(r.digits)%2 == 1 {
		r.digits = append(r.digits, '0')
	}

	k := len(r.digits) &^ 1
	n, err := hex.Decode(p, r.digits[:k])
	if err != nil {
		r.err = err
		r.digits = nil
	} else {
		r.digits = append(r.digits[:0], r.digits[k:]...)
	}
	if n > 0 {
		return n, nil
	}
	return 0, r.err
}

func isSpace(c byte) bool {
	return c == 0 || c == 9 || c == 10 || c == 12 || c == 13 || c == 32
}

// lineBytes is the number of input bytes encoded per output line.
const lineBytes = 32

// Encode returns a writer which encodes data in ASCII hexadecimal form.
// Close writes the ">" end marker; it does not close w.
func Encode(w io.Writer) io.WriteCloser {
	return &writer{w: w}
}

type writer struct {
	w       io.Writer
	pending []byte // start of an incomplete line
}

func (w *writer) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	full := len(w.pending) / lineBytes * lineBytes
	if full == 0 {
		return len(p), nil
	}
	var out []byte
	for i := 0; i < full; i += lineBytes {
		out = hex.AppendEncode(out, w.pending[i:i+lineBytes])
		out = append(out, '\n')
	}
	w.pending = append(w.pending[:0], w.pending[full:]...)
	if _, err := w.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *writer) Close() error {
	out := append(hex.AppendEncode(nil, w.pending), '>')
	w.pending = nil
	_, err := w.w.Write(out)
	return err
}
