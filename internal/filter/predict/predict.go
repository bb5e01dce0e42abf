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

// Package predict implements the TIFF and PNG predictors which can be
// combined with the LZWDecode and FlateDecode filters.
package predict

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/exp/slices"
)

// Params holds the predictor entries of a /DecodeParms dictionary.
type Params struct {
	// Predictor is 1 for no prediction, 2 for TIFF horizontal
	// differencing, and 10 to 15 for the PNG filters.  When decoding PNG
	// data, the tag byte of each row selects the filter.
	Predictor int

	Colors           int // components per pixel
	BitsPerComponent int // 1, 2, 4, 8 or 16
	Columns          int // pixels per row
}

const maxColumns = 1 << 20

// Validate checks that p describes a supported predictor.  For predictor
// 1, the other fields are ignored.
func (p *Params) Validate() error {
	switch {
	case p.Predictor == 1:
		return nil
	case p.Predictor != 2 && (p.Predictor < 10 || p.Predictor > 15):
		return fmt.Errorf("unsupported predictor %d", p.Predictor)
	}

	maxColors := 256
	if p.Predictor == 2 {
		maxColors = 60
	}
	if p.Colors < 1 || p.Colors > maxColors {
		return fmt.Errorf("invalid number of colour components %d", p.Colors)
	}
	if !slices.Contains([]int{1, 2, 4, 8, 16}, p.BitsPerComponent) {
		return fmt.Errorf("invalid BitsPerComponent %d", p.BitsPerComponent)
	}
	if p.Columns < 1 || p.Columns > min(maxColumns, (1<<31-1)/p.pixelBits()) {
		return errors.New("invalid number of columns")
	}
	return nil
}

func (p *Params) pixelBits() int {
	return p.Colors * p.BitsPerComponent
}

// rowBytes is the length of a row of samples, without the PNG tag byte.
func (p *Params) rowBytes() int {
	return (p.Columns*p.pixelBits() + 7) / 8
}

// pixelBytes is the distance used by the PNG filters to find the left
// neighbour of a byte.
func (p *Params) pixelBytes() int {
	return (p.pixelBits() + 7) / 8
}

// NewReader returns a reader which undoes the prediction applied to the
// data read from r.  For predictor 1, r is returned unchanged.
//
// For the PNG predictors, the tag byte at the start of each row selects
// the algorithm, independently of the value of p.Predictor.  A final
// incomplete row is decoded as far as possible.
func NewReader(r io.Reader, p *Params) (io.Reader, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Predictor == 1 {
		return r, nil
	}

	n := p.rowBytes()
	res := &reader{
		r:      r,
		p:      *p,
		isPNG:  p.Predictor >= 10,
		prev:   make([]byte, n),
		cur:    make([]byte, n),
		rowLen: n,
	}
	if res.isPNG {
		res.in = make([]byte, n+1)
	}
	return res, nil
}

type reader struct {
	r     io.Reader
	p     Params
	isPNG bool

	in     []byte
	prev   []byte
	cur    []byte
	rowLen int

	ready []byte
	err   error
}

func (r *reader) Read(buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		if len(r.ready) > 0 {
			k := copy(buf[n:], r.ready)
			n += k
			r.ready = r.ready[k:]
			continue
		}
		if r.err != nil {
			break
		}
		r.nextRow()
	}
	if n > 0 {
		return n, nil
	}
	return 0, r.err
}

// nextRow reads and decodes one row of data.
func (r *reader) nextRow() {
	in := r.cur
	if r.isPNG {
		in = r.in
	}
	k, err := io.ReadFull(r.r, in)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	r.err = err

	if r.isPNG {
		if k < 2 {
			return
		}
		tag := in[0]
		copy(r.cur, in[1:k])
		row := r.cur[:k-1]
		err := unpredictPNG(tag, row, r.prev, r.p.pixelBytes())
		if err != nil {
			r.err = err
			return
		}
		r.ready = row
	} else {
		if k == 0 {
			return
		}
		row := r.cur[:k]
		unpredictTIFF(row, r.p.Colors, r.p.BitsPerComponent, r.p.Columns)
		r.ready = row
	}
	r.prev, r.cur = r.cur, r.prev
}

func unpredictPNG(tag byte, row, prev []byte, bpp int) error {
	switch tag {
	case 0:
		// pass
	case 1:
		for i := bpp; i < len(row); i++ {
			row[i] += row[i-bpp]
		}
	case 2:
		for i := range row {
			row[i] += prev[i]
		}
	case 3:
		for i := range row {
			var left int
			if i >= bpp {
				left = int(row[i-bpp])
			}
			row[i] += byte((left + int(prev[i])) / 2)
		}
	case 4:
		for i := range row {
			var left, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			row[i] += paeth(left, prev[i], upLeft)
		}
	default:
		return fmt.Errorf("invalid PNG predictor tag %d", tag)
	}
	return nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// unpredictTIFF undoes horizontal differencing in place.
func unpredictTIFF(row []byte, colors, bpc, columns int) {
	switch bpc {
	case 8:
		for i := colors; i < len(row); i++ {
			row[i] += row[i-colors]
		}
	case 16:
		for i := 2 * colors; i+1 < len(row); i += 2 {
			v := uint16(row[i])<<8 | uint16(row[i+1])
			left := uint16(row[i-2*colors])<<8 | uint16(row[i-2*colors+1])
			v += left
			row[i] = byte(v >> 8)
			row[i+1] = byte(v)
		}
	default:
		mask := uint32(1)<<bpc - 1
		samples := min(colors*columns, len(row)*8/bpc)
		for i := colors; i < samples; i++ {
			v := getSample(row, i, bpc) + getSample(row, i-colors, bpc)
			setSample(row, i, bpc, v&mask)
		}
	}
}

// predictTIFF applies horizontal differencing in place.
func predictTIFF(row []byte, colors, bpc, columns int) {
	switch bpc {
	case 8:
		for i := len(row) - 1; i >= colors; i-- {
			row[i] -= row[i-colors]
		}
	case 16:
		for i := (len(row)/2 - 1) * 2; i >= 2*colors; i -= 2 {
			v := uint16(row[i])<<8 | uint16(row[i+1])
			left := uint16(row[i-2*colors])<<8 | uint16(row[i-2*colors+1])
			v -= left
			row[i] = byte(v >> 8)
			row[i+1] = byte(v)
		}
	default:
		mask := uint32(1)<<bpc - 1
		samples := min(colors*columns, len(row)*8/bpc)
		for i := samples - 1; i >= colors; i-- {
			v := getSample(row, i, bpc) - getSample(row, i-colors, bpc)
			setSample(row, i, bpc, v&mask)
		}
	}
}

func getSample(row []byte, i, bpc int) uint32 {
	bit := i * bpc
	shift := 8 - bpc - bit%8
	return uint32(row[bit/8]>>shift) & (1<<bpc - 1)
}

func setSample(row []byte, i, bpc int, v uint32) {
	bit := i * bpc
	shift := 8 - bpc - bit%8
	mask := byte(1<<bpc-1) << shift
	row[bit/8] = row[bit/8]&^mask | byte(v)<<shift
}

// NewWriter returns a writer which applies the prediction p to the data
// before passing it on to w.  Close encodes a final incomplete row; it does
// not close w.
//
// For predictor 15, every row is encoded with the Paeth algorithm.
func NewWriter(w io.Writer, p *Params) (io.WriteCloser, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Predictor == 1 {
		return nopCloser{w}, nil
	}
	n := p.rowBytes()
	return &writer{
		w:    w,
		p:    *p,
		prev: make([]byte, n),
		row:  make([]byte, 0, n),
		out:  make([]byte, n+1),
	}, nil
}

type writer struct {
	w    io.Writer
	p    Params
	prev []byte
	row  []byte
	out  []byte
}

func (w *writer) Write(data []byte) (int, error) {
	n := 0
	for len(data) > 0 {
		k := min(len(data), cap(w.row)-len(w.row))
		w.row = append(w.row, data[:k]...)
		data = data[k:]
		n += k
		if len(w.row) == cap(w.row) {
			err := w.flushRow()
			if err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

func (w *writer) Close() error {
	if len(w.row) > 0 {
		return w.flushRow()
	}
	return nil
}

func (w *writer) flushRow() error {
	row := w.row
	var out []byte
	switch {
	case w.p.Predictor == 2:
		out = w.out[:len(row)]
		copy(out, row)
		predictTIFF(out, w.p.Colors, w.p.BitsPerComponent, w.p.Columns)
	default:
		tag := byte(w.p.Predictor - 10)
		if tag > 4 {
			tag = 4
		}
		out = w.out[:len(row)+1]
		out[0] = tag
		predictPNG(tag, out[1:], row, w.prev, w.p.pixelBytes())
		copy(w.prev, row)
	}
	_, err := w.w.Write(out)
	w.row = w.row[:0]
	return err
}

func predictPNG(tag byte, dst, row, prev []byte, bpp int) {
	for i := range row {
		var left, upLeft byte
		if i >= bpp {
			left = row[i-bpp]
			upLeft = prev[i-bpp]
		}
		up := prev[i]
		var pred byte
		switch tag {
		case 1:
			pred = left
		case 2:
			pred = up
		case 3:
			pred = byte((int(left) + int(up)) / 2)
		case 4:
			pred = paeth(left, up, upLeft)
		}
		dst[i] = row[i] - pred
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}
