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

package ccittfax

import (
	"bufio"
	"errors"
	"io"
)

// maxWidth limits the number of columns for the mixed decoder.
const maxWidth = 1 << 20

var (
	errInvalidCode = errors.New("invalid CCITT code")
	errRunOverflow = errors.New("CCITT run extends past the end of the line")
	errExtension   = errors.New("CCITT extension codes are not supported")
)

// mixedReader decodes Group 3 data where one-dimensional and
// two-dimensional lines are mixed (K > 0).  Every line starts with an
// end-of-line code, followed by a tag bit which is 1 for a
// one-dimensional line and 0 for a two-dimensional line.
//
// Pixels are stored one per byte, with 1 for black.
type mixedReader struct {
	br       bitReader
	width    int
	rows     int // rows still to decode, or -1 if unknown
	align    bool
	blackIs1 bool

	ref, cur []byte

	out []byte // the current row, packed
	pos int
	err error
}

func newMixedReader(r io.Reader, p *Params, width int) *mixedReader {
	rows := p.Rows
	if rows <= 0 {
		rows = -1
	}
	return &mixedReader{
		br:       bitReader{r: bufio.NewReader(r)},
		width:    width,
		rows:     rows,
		align:    p.EncodedByteAlign,
		blackIs1: p.BlackIs1,
		ref:      make([]byte, width),
		cur:      make([]byte, width),
		out:      make([]byte, 0, (width+7)/8),
	}
}

func (m *mixedReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if m.pos < len(m.out) {
			k := copy(p[n:], m.out[m.pos:])
			n += k
			m.pos += k
			continue
		}
		if m.err != nil {
			break
		}
		m.err = m.decodeRow()
		if m.err == nil {
			m.pack()
		}
	}
	if n > 0 {
		return n, nil
	}
	return 0, m.err
}

func (m *mixedReader) decodeRow() error {
	if m.rows == 0 {
		return io.EOF
	}

	// Fill bits before the EOL are zeros, so they are consumed together
	// with the EOL itself.
	found, err := m.br.skipEOL()
	if err == nil && !found && m.align {
		m.br.alignToByte()
		found, err = m.br.skipEOL()
	}
	if err != nil {
		return err
	}

	tag, err := m.br.readBit()
	if err != nil {
		return err
	}
	if found && tag == 1 {
		// a second EOL marks the end of the block
		if code, _ := m.br.peek(12); code == eolCode {
			return io.EOF
		}
	}

	if tag == 1 {
		err = m.decode1D()
	} else {
		err = m.decode2D()
	}
	if err != nil {
		return err
	}

	m.ref, m.cur = m.cur, m.ref
	if m.rows > 0 {
		m.rows--
	}
	return nil
}

func (m *mixedReader) decode1D() error {
	a0 := 0
	var color byte
	for a0 < m.width {
		n, err := m.run(color)
		if err != nil {
			return err
		}
		if n > m.width-a0 {
			return errRunOverflow
		}
		fill(m.cur[a0:a0+n], color)
		a0 += n
		color ^= 1
	}
	return nil
}

func (m *mixedReader) decode2D() error {
	a0 := -1 // imaginary white pixel before the start of the line
	var color byte
	for a0 < m.width {
		mode, err := m.br.decode(modeTable)
		if err != nil {
			return err
		}
		start := max(a0, 0)

		switch mode {
		case modePass:
			_, b2 := m.findB(a0, color, true)
			if b2 < start {
				return errRunOverflow
			}
			fill(m.cur[start:b2], color)
			a0 = b2

		case modeHorizontal:
			n1, err := m.run(color)
			if err != nil {
				return err
			}
			n2, err := m.run(color ^ 1)
			if err != nil {
				return err
			}
			if n1 > m.width-start || n2 > m.width-start-n1 {
				return errRunOverflow
			}
			fill(m.cur[start:start+n1], color)
			fill(m.cur[start+n1:start+n1+n2], color^1)
			a0 = start + n1 + n2

		case modeExtension:
			return errExtension

		default:
			b1, _ := m.findB(a0, color, false)
			a1 := b1 + verticalOffset[mode]
			if a1 < start || a1 > m.width {
				return errRunOverflow
			}
			fill(m.cur[start:a1], color)
			a0 = a1
			color ^= 1
		}
	}
	return nil
}

// findB locates the changing elements b1 and b2 on the reference line.
// b1 is the first changing element to the right of a0 which has the
// opposite colour to a0, b2 is the next changing element after b1.
// Missing elements are placed just past the end of the line.
func (m *mixedReader) findB(a0 int, color byte, needB2 bool) (b1, b2 int) {
	b1 = m.width
	for j := a0 + 1; j < m.width; j++ {
		if m.ref[j] != color && m.refChanges(j) {
			b1 = j
			break
		}
	}
	if !needB2 {
		return b1, 0
	}
	b2 = m.width
	for j := b1 + 1; j < m.width; j++ {
		if m.refChanges(j) {
			b2 = j
			break
		}
	}
	return b1, b2
}

func (m *mixedReader) refChanges(j int) bool {
	if j == 0 {
		return m.ref[0] != 0
	}
	return m.ref[j] != m.ref[j-1]
}

// run reads a run length, made up of zero or more make-up codes
// followed by a terminating code.
func (m *mixedReader) run(color byte) (int, error) {
	table := whiteCodes
	if color != 0 {
		table = blackCodes
	}
	total := 0
	for {
		n, err := m.br.decode(table)
		if err != nil {
			return 0, err
		}
		total += n
		if total > m.width {
			return 0, errRunOverflow
		}
		if n < 64 {
			return total, nil
		}
	}
}

// pack converts the row in m.ref to one bit per pixel.  Unless BlackIs1
// is set, white pixels are represented by 1 bits.
func (m *mixedReader) pack() {
	m.out = m.out[:0]
	m.pos = 0
	var b byte
	for i, pix := range m.ref {
		bit := pix ^ 1
		if m.blackIs1 {
			bit = pix
		}
		b |= bit << (7 - i%8)
		if i%8 == 7 {
			m.out = append(m.out, b)
			b = 0
		}
	}
	if m.width%8 != 0 {
		m.out = append(m.out, b)
	}
}

func fill(dst []byte, color byte) {
	for i := range dst {
		dst[i] = color
	}
}

const eolCode = 0b000000000001

// bitReader reads MSB first bits from a byte stream.
type bitReader struct {
	r   io.ByteReader
	buf uint64 // the low n bits are valid
	n   uint
	err error
}

func (b *bitReader) fill(k uint) {
	for b.n < k && b.err == nil {
		c, err := b.r.ReadByte()
		if err != nil {
			b.err = err
			return
		}
		b.buf = b.buf<<8 | uint64(c)
		b.n += 8
	}
}

// peek returns the next k bits without consuming them, together with the
// number of bits available.  If fewer than k bits are left, the result is
// padded with zeros on the right.
func (b *bitReader) peek(k uint) (uint32, uint) {
	b.fill(k)
	mask := uint32(1)<<k - 1
	if b.n >= k {
		return uint32(b.buf>>(b.n-k)) & mask, k
	}
	return uint32(b.buf<<(k-b.n)) & mask, b.n
}

func (b *bitReader) readBit() (uint32, error) {
	v, n := b.peek(1)
	if n == 0 {
		return 0, b.unexpected()
	}
	b.n--
	return v, nil
}

func (b *bitReader) alignToByte() {
	b.n -= b.n % 8
}

// skipEOL consumes zero fill bits and an end-of-line code, if present.
// At the end of the input, only zero padding may remain and io.EOF is
// returned.
func (b *bitReader) skipEOL() (bool, error) {
	for {
		code, n := b.peek(12)
		switch {
		case n < 12 && code == 0:
			if b.err != nil && b.err != io.EOF {
				return false, b.err
			}
			return false, io.EOF
		case n < 12:
			return false, nil
		case code == eolCode:
			b.n -= 12
			return true, nil
		case code == 0:
			b.n--
		default:
			return false, nil
		}
	}
}

// decode reads one code from the given table.
func (b *bitReader) decode(t codeTable) (int, error) {
	key := uint32(1)
	for range 13 {
		bit, err := b.readBit()
		if err != nil {
			return 0, err
		}
		key = key<<1 | bit
		if val, ok := t[key]; ok {
			return val, nil
		}
	}
	return 0, errInvalidCode
}

func (b *bitReader) unexpected() error {
	if b.err == nil || b.err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return b.err
}
