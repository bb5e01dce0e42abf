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

// Package runlength implements the RunLengthDecode filter.
package runlength

import (
	"bufio"
	"io"
)

// Decode returns a reader which decodes data in run-length format.
// Input ending without the end-of-data byte is accepted.
func Decode(r io.Reader) io.Reader {
	return &reader{br: bufio.NewReader(r)}
}

type reader struct {
	br      *bufio.Reader
	err     error
	literal bool
	count   int
	value   byte
}

func (r *reader) Read(p []byte) (n int, err error) {
	for n < len(p) && r.err == nil {
		if r.count > 0 {
			count := min(r.count, len(p)-n)
			if r.literal {
				k, err := io.ReadFull(r.br, p[n:n+count])
				n += k
				r.count -= k
				if err != nil {
					r.err = io.ErrUnexpectedEOF
				}
			} else {
				for i := n; i < n+count; i++ {
					p[i] = r.value
				}
				n += count
				r.count -= count
			}
			continue
		}

		length, err := r.br.ReadByte()
		if err != nil {
			r.err = err
			break
		}
		switch {
		case length == 128:
			r.err = io.EOF
		case length < 128:
			r.count = int(length) + 1 // 1, ..., 128
			r.literal = true
		default:
			b, err := r.br.ReadByte()
			if err != nil {
				r.err = io.ErrUnexpectedEOF
				break
			}
			r.count = 257 - int(length) // 2, ..., 128
			r.literal = false
			r.value = b
		}
	}
	if n > 0 {
		return n, nil
	}
	return 0, r.err
}

// Encode returns a writer which encodes data in run-length format.
// Close writes the end-of-data byte; it does not close w.
func Encode(w io.Writer) io.WriteCloser {
	return &writer{w: w}
}

type writer struct {
	w       io.Writer
	pending []byte
}

func (w *writer) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	rest, err := w.encode(w.pending, false)
	w.pending = append(w.pending[:0], rest...)
	return len(p), err
}

func (w *writer) Close() error {
	_, err := w.encode(w.pending, true)
	w.pending = nil
	if err != nil {
		return err
	}
	_, err = w.w.Write([]byte{128})
	return err
}

// encode writes data as a sequence of literal and repeated runs.  Runs of
// three or more equal bytes are stored as repeated runs.  Unless final is
// set, a run touching the end of data and a literal block shorter than
// 128 bytes are returned unwritten, since more input may extend them.
func (w *writer) encode(data []byte, final bool) ([]byte, error) {
	var out []byte
	lit := 0 // start of the current literal run
	i := 0
	for i < len(data) {
		j := i + 1
		for j < len(data) && j-i < 128 && data[j] == data[i] {
			j++
		}
		if j == len(data) && !final {
			break
		}
		if j-i < 3 {
			i = j
			continue
		}
		out = appendLiteral(out, data[lit:i])
		out = append(out, byte(257-(j-i)), data[i])
		i = j
		lit = j
	}

	end := len(data)
	if !final {
		end = lit + (i-lit)/128*128
	}
	out = appendLiteral(out, data[lit:end])
	if len(out) > 0 {
		if _, err := w.w.Write(out); err != nil {
			return nil, err
		}
	}
	return data[end:], nil
}

func appendLiteral(out, data []byte) []byte {
	for len(data) > 0 {
		k := min(len(data), 128)
		out = append(out, byte(k-1))
		out = append(out, data[:k]...)
		data = data[k:]
	}
	return out
}
