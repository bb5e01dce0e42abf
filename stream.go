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
	"fmt"
	"io"
)

// StreamReader reads the data of a stream.  The decryption and decoding
// stages are set up on the first call to Read, so that opening a stream
// does not cause any I/O.
//
// If the data cannot be decoded, the stream ends early: the bytes decoded
// so far are returned, followed by io.EOF, and the problem can be retrieved
// using [StreamReader.Err].  If the Reader uses [ErrorHandlingStop], the
// error is returned by Read instead of io.EOF.
type StreamReader struct {
	r       *Reader
	stm     *Stream
	resolve func(Object) (Object, error)
	decode  bool

	body    io.Reader
	stages  []io.Closer
	started bool
	done    bool
	err     error
}

// GetStreamReader returns a reader for the decrypted and decoded data of a
// stream.  If obj is a reference, it is resolved first.  A null object
// gives an error.
func (r *Reader) GetStreamReader(obj Object) (*StreamReader, error) {
	return r.openStreamObject(obj, true)
}

// OpenRawStream returns a reader for the data of a stream after decryption
// but before the filters are applied.  This can be used to access data
// encoded with filters which are not supported by this library, for
// example JPXDecode.
func (r *Reader) OpenRawStream(obj Object) (*StreamReader, error) {
	return r.openStreamObject(obj, false)
}

func (r *Reader) openStreamObject(obj Object, decode bool) (*StreamReader, error) {
	stm, err := GetStream(r, obj)
	if err != nil {
		return nil, err
	}
	if stm == nil {
		return nil, &MalformedFileError{
			Err: errors.New("missing stream"),
		}
	}
	return r.openStream(stm, r.Resolve, decode), nil
}

// openStream returns a reader for the data of stm.  The function resolve
// is used for /Length, /Filter and /DecodeParms.  If decode is false, the
// filters are not applied.
func (r *Reader) openStream(stm *Stream, resolve func(Object) (Object, error), decode bool) *StreamReader {
	return &StreamReader{
		r:       r,
		stm:     stm,
		resolve: resolve,
		decode:  decode,
	}
}

// Read implements the io.Reader interface.
func (s *StreamReader) Read(p []byte) (int, error) {
	if !s.started {
		s.started = true
		if err := s.open(); err != nil {
			s.fail(err)
		}
	}
	if s.done {
		return 0, s.endErr()
	}

	n, err := s.body.Read(p)
	if err == io.EOF {
		s.done = true
		return n, io.EOF
	} else if err != nil {
		s.fail(err)
		if n > 0 {
			return n, nil
		}
		return 0, s.endErr()
	}
	return n, nil
}

// Close releases the resources held by the decoding stages.  Calling Close
// is optional, and Close can be called more than once.
func (s *StreamReader) Close() error {
	s.started = true
	s.done = true
	for i := len(s.stages) - 1; i >= 0; i-- {
		s.stages[i].Close()
	}
	s.stages = nil
	return nil
}

// Err returns the problem which caused the stream to end early, or nil if
// the stream data could be decoded without problems.  Usually the error is
// a *DecodeError.
func (s *StreamReader) Err() error {
	return s.err
}

func (s *StreamReader) fail(err error) {
	s.done = true
	if s.err != nil {
		return
	}
	var dErr *DecodeError
	if !errors.As(err, &dErr) {
		var mErr *MalformedFileError
		if !errors.As(err, &mErr) {
			err = &DecodeError{Err: err}
		}
	}
	s.err = err
	s.r.softError(err, s.stm.Ref)
}

func (s *StreamReader) endErr() error {
	if s.err != nil && s.r.errorHandling == ErrorHandlingStop {
		return s.err
	}
	return io.EOF
}

func (s *StreamReader) open() error {
	r := s.r
	stm := s.stm

	n, err := r.streamLength(stm, s.resolve)
	if err != nil {
		if r.errorHandling == ErrorHandlingStop {
			return err
		}
		r.softError(err, stm.Ref)
	}

	var filters []FilterInfo
	if s.decode || r.enc != nil {
		filters, err = filtersFromDict(stm.Dict, s.resolve)
		if err != nil {
			return err
		}
	}

	var body io.Reader = io.NewSectionReader(r.src, stm.pos, n)
	if r.enc != nil && !stm.plain {
		if cf := r.enc.streamFilter(stm, filters); cf != nil {
			body = &stage{r: r.enc.decryptReader(stm.Ref, body, cf)}
		}
	}

	if s.decode {
		for _, fi := range filters {
			next, err := fi.decode(body)
			if err != nil {
				return &DecodeError{Filter: fi.Name, Err: err}
			}
			st := &stage{r: next, name: fi.Name}
			s.stages = append(s.stages, st)
			body = st
		}
	}
	s.body = body
	return nil
}

// streamLength determines the number of bytes of stream data.  If the
// /Length entry is missing or wrong, the data is taken to extend up to the
// next "endstream" keyword, or to the end of the file.  In this case, the
// returned error describes the problem; the length is valid in any case.
//
// If resolve is nil, an indirect /Length is not followed.
func (r *Reader) streamLength(stm *Stream, resolve func(Object) (Object, error)) (int64, error) {
	avail := r.size - stm.pos
	if avail < 0 {
		avail = 0
	}

	length := stm.length
	_, isRef := length.(Reference)
	switch {
	case isRef && resolve == nil:
		length = nil
	case isRef:
		obj, err := resolve(length)
		if err != nil {
			length = nil
		} else {
			length = obj
		}
	}

	n, isInt := length.(Integer)
	if isInt && n >= 0 && int64(n) <= avail && r.hasEndstream(stm.pos+int64(n)) {
		return int64(n), nil
	}

	if k, ok := r.findEndstream(stm.pos); ok {
		if isRef && resolve == nil {
			return k, nil
		}
		return k, &MalformedFileError{
			Pos: stm.pos,
			Err: fmt.Errorf("wrong stream length %s, using %d", Format(stm.length), k),
		}
	}

	if isInt && n >= 0 && int64(n) < avail {
		avail = int64(n)
	}
	return avail, &MalformedFileError{
		Pos: stm.pos,
		Err: errors.New("missing \"endstream\", stream data truncated"),
	}
}

// hasEndstream checks whether the keyword "endstream" follows at pos,
// possibly after white space.
func (r *Reader) hasEndstream(pos int64) bool {
	buf, _ := readRange(r.src, pos, 32)
	buf = bytes.TrimLeft(buf, "\x00\t\n\f\r ")
	return bytes.HasPrefix(buf, []byte("endstream"))
}

// findEndstream searches for the keyword "endstream" after pos and returns
// the length of the stream data before the keyword.  The end-of-line marker
// before the keyword is not part of the data.
func (r *Reader) findEndstream(pos int64) (int64, bool) {
	const kw = "endstream"
	const chunkSize = 16 * 1024

	for start := pos; start < r.size; start += chunkSize {
		buf, err := readRange(r.src, start, chunkSize+len(kw)-1)
		if err != nil && err != ErrShortRead {
			return 0, false
		}
		idx := bytes.Index(buf, []byte(kw))
		if idx < 0 {
			if err == ErrShortRead {
				break
			}
			continue
		}

		end := start + int64(idx)
		pre, _ := readRange(r.src, max(end-2, pos), int(min(end-pos, 2)))
		switch {
		case bytes.HasSuffix(pre, []byte("\r\n")):
			end -= 2
		case bytes.HasSuffix(pre, []byte("\n")), bytes.HasSuffix(pre, []byte("\r")):
			end--
		}
		return end - pos, true
	}
	return 0, false
}
