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
	"strconv"
)

// objStm holds the decoded contents of an object stream.
type objStm struct {
	data  []byte
	first int64
	idx   []objStmEntry
}

type objStmEntry struct {
	number uint32
	offs   int64
}

// loadObjStm reads and indexes the object stream ref.
// The caller must hold r.mu for writing.
func (r *Reader) loadObjStm(ref Reference) (*objStm, error) {
	if stm, ok := r.objStms.Get(ref); ok {
		return stm, nil
	}
	if r.loadingObjStm[ref] {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("%w: object stream %s depends on itself", ErrReferenceCycle, ref),
		}
	}
	r.loadingObjStm[ref] = true
	defer delete(r.loadingObjStm, ref)

	obj, err := r.getLocked(ref)
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*Stream)
	if !ok {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("object stream %s: expected stream but got %T", ref, obj),
			Loc: []string{"object stream " + ref.String()},
		}
	}
	stm, err := r.decodeObjStm(stream)
	if err != nil {
		return nil, wrap(err, "object stream "+ref.String())
	}

	r.objStms.Put(ref, stm)
	return stm, nil
}

func (r *Reader) decodeObjStm(stream *Stream) (*objStm, error) {
	g := lockedGetter{r}
	if tp, _ := stream.Dict["Type"].(Name); tp != "ObjStm" {
		err := r.softError(&MalformedFileError{
			Err: fmt.Errorf("object stream has /Type /%s", tp),
		}, stream.Ref)
		if err != nil {
			return nil, err
		}
	}
	n, err := GetInt(g, stream.Dict["N"])
	if err != nil {
		return nil, err
	}
	first, err := GetInt(g, stream.Dict["First"])
	if err != nil {
		return nil, err
	}
	if n < 0 || first < 0 || n > 1<<24 {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("invalid object stream header N=%d First=%d", n, first),
		}
	}

	// Decoding problems are reported by the StreamReader.  Under
	// ErrorHandlingStop, ReadAll returns them.
	body := r.openStream(stream, g.resolve, true)
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) < int64(first) {
		return nil, &MalformedFileError{
			Err: errors.New("object stream is shorter than its header"),
		}
	}

	lex := newLexer(bytes.NewReader(data), int64(first), 0)
	// each index entry takes at least four bytes
	idx := make([]objStmEntry, 0, min(int(n), int(first)/4+1))
	for i := 0; i < int(n); i++ {
		t1, err1 := lex.nextToken()
		t2, err2 := lex.nextToken()
		if err1 != nil || err2 != nil || t1.kind != tokNumber || t2.kind != tokNumber {
			err := r.softError(&MalformedFileError{
				Pos: t1.pos,
				Err: fmt.Errorf("object stream index ends after %d of %d entries", i, n),
			}, stream.Ref)
			if err != nil {
				return nil, err
			}
			break
		}
		num, err1 := strconv.ParseUint(string(t1.val), 10, 32)
		offs, err2 := strconv.ParseInt(string(t2.val), 10, 64)
		if err1 != nil || err2 != nil || offs < 0 || int64(first)+offs > int64(len(data)) {
			err := r.softError(&MalformedFileError{
				Pos: t1.pos,
				Err: fmt.Errorf("invalid object stream entry %s %s", t1.val, t2.val),
			}, stream.Ref)
			if err != nil {
				return nil, err
			}
			continue
		}
		idx = append(idx, objStmEntry{number: uint32(num), offs: offs})
	}

	return &objStm{
		data:  data,
		first: int64(first),
		idx:   idx,
	}, nil
}

// getCompressed reads object number num from an object stream.
// The caller must hold r.mu for writing.
func (r *Reader) getCompressed(num uint32, entry *xRefEntry) (Object, error) {
	container := NewReference(entry.InStream, 0)
	stm, err := r.loadObjStm(container)
	if err != nil {
		return nil, err
	}

	offs := int64(-1)
	if entry.Pos >= 0 && entry.Pos < int64(len(stm.idx)) && stm.idx[entry.Pos].number == num {
		offs = stm.idx[entry.Pos].offs
	} else {
		// the index given in the xref entry is wrong, search for the number
		for _, e := range stm.idx {
			if e.number == num {
				offs = e.offs
				break
			}
		}
	}
	if offs < 0 {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("object %d not found in object stream %s", num, container),
		}
	}

	ref := NewReference(num, 0)
	p := newParser(newLexer(bytes.NewReader(stm.data), int64(len(stm.data)), stm.first+offs))
	p.ref = ref
	p.depth = 1 // no streams inside object streams
	obj, err := p.parseObject()
	for _, e := range p.errs {
		if e := r.softError(e, ref); e != nil {
			return nil, e
		}
	}
	if err != nil {
		return obj, wrap(err, "object "+ref.String())
	}
	if t, err := p.peekToken(0); err == nil && t.is("stream") {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("stream %s inside object stream %s", ref, container),
		}
	}
	return obj, nil
}

// objStmMembers lists the objects contained in the object stream ref.
// This is used when rebuilding the cross-reference table.
// The caller must hold r.mu for writing.
func (r *Reader) objStmMembers(ref Reference) ([]uint32, error) {
	stm, err := r.loadObjStm(ref)
	if err != nil {
		return nil, err
	}
	res := make([]uint32, len(stm.idx))
	for i, e := range stm.idx {
		res[i] = e.number
	}
	return res, nil
}
