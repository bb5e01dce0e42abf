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

package pdfcore

import (
	"bytes"
	"errors"
	"io"
	"os"

	"golang.org/x/exp/mmap"
)

// Source is a random-access byte source with known total length.
// The chunked range loader in package loader implements this interface.
type Source interface {
	io.ReaderAt
	Size() int64
}

type sizedReaderAt struct {
	io.ReaderAt
	size int64
}

func (s sizedReaderAt) Size() int64 {
	return s.size
}

// NewSource combines an io.ReaderAt with the total length of the data.
func NewSource(r io.ReaderAt, size int64) Source {
	if src, ok := r.(Source); ok && src.Size() == size {
		return src
	}
	return sizedReaderAt{ReaderAt: r, size: size}
}

// BytesSource returns a Source which reads from an in-memory buffer.
func BytesSource(data []byte) Source {
	return bytes.NewReader(data)
}

type mmapSource struct {
	*mmap.ReaderAt
}

func (m mmapSource) Size() int64 {
	return int64(m.Len())
}

// section restricts a Source to the bytes starting at offset off.
func section(src Source, off int64) Source {
	if off <= 0 {
		return src
	}
	size := src.Size() - off
	return sizedReaderAt{
		ReaderAt: io.NewSectionReader(src, off, size),
		size:     size,
	}
}

// readRange reads up to n bytes starting at off.  If the range extends beyond
// the end of src, the available prefix is returned together with
// ErrShortRead.  Callers should truncate gracefully in this case.
func readRange(src Source, off int64, n int) ([]byte, error) {
	size := src.Size()
	if off < 0 || off > size {
		return nil, ErrShortRead
	}
	short := false
	if int64(n) > size-off {
		n = int(size - off)
		short = true
	}
	buf := make([]byte, n)
	k, err := src.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return buf[:k], err
	}
	if k < n || short {
		return buf[:k], ErrShortRead
	}
	return buf, nil
}

// Open opens the named PDF file for reading.  The file is closed when the
// returned Reader is closed.
func Open(fname string, opt *ReaderOptions) (*Reader, error) {
	fd, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	fi, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, err
	}
	r, err := NewReader(NewSource(fd, fi.Size()), opt)
	if err != nil {
		fd.Close()
		return nil, err
	}
	r.closer = fd
	return r, nil
}

// OpenMmap opens the named PDF file and maps it into memory.  The mapping is
// released when the returned Reader is closed.
func OpenMmap(fname string, opt *ReaderOptions) (*Reader, error) {
	m, err := mmap.Open(fname)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(mmapSource{m}, opt)
	if err != nil {
		m.Close()
		return nil, err
	}
	r.closer = m
	return r, nil
}
