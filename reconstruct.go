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

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	scanWindow    = 64 * 1024
	scanLookBack  = 64
	scanLookAhead = 16
)

// scanHit is a keyword found while scanning the file.
type scanHit struct {
	pos       int64 // start of the object header, or of "trailer"
	isTrailer bool
}

// reconstruct rebuilds the cross-reference table by scanning the whole file
// for object headers and trailer dictionaries.  This can only happen once
// per Reader; a second call gives a DocumentUnreadableError.
//
// Members of object streams are added in a second step, by
// addObjStmMembers, once the decryption context is known.
func (r *Reader) reconstruct(cause error) error {
	if r.reconstructed {
		return &DocumentUnreadableError{Err: cause}
	}
	r.reconstructed = true
	r.state = XRefReconstructing
	r.log.Info("reconstructing cross-reference table", "cause", cause)

	xref := make(map[uint32]*xRefEntry)
	trailer := Dict{}
	var catalog Reference
	var objStms []Reference

	skipUntil := int64(0)
	handle := func(hit scanHit) {
		if hit.pos < skipUntil {
			return
		}
		if hit.isTrailer {
			p := r.parserAt(hit.pos + int64(len("trailer")))
			obj, _ := p.parseObject()
			if dict, ok := obj.(Dict); ok {
				for key, val := range dict {
					if !trailerOnlyKeys[key] {
						trailer[key] = val
					}
				}
			}
			return
		}

		p := r.parserAt(hit.pos)
		ref, obj, _ := p.parseIndirect()
		if obj == nil {
			return
		}
		xref[ref.Number()] = &xRefEntry{
			Kind:       entryOffset,
			Pos:        hit.pos,
			Generation: ref.Generation(),
		}

		var dict Dict
		switch obj := obj.(type) {
		case Dict:
			dict = obj
		case *Stream:
			dict = obj.Dict
			// Only skip the stream data if a direct /Length is confirmed
			// by "endstream".  Otherwise the data may run into the
			// following objects.
			if n, ok := obj.length.(Integer); ok && n >= 0 &&
				obj.pos+int64(n) <= r.size && r.hasEndstream(obj.pos+int64(n)) {
				skipUntil = obj.pos + int64(n)
			}

			switch dict["Type"] {
			case Name("XRef"):
				r.special[ref] = true
				if _, hasRoot := dict["Root"]; hasRoot {
					for key, val := range dict {
						if !trailerOnlyKeys[key] {
							trailer[key] = val
						}
					}
				}
			case Name("ObjStm"):
				objStms = append(objStms, ref)
			}
		}
		if dict["Type"] == Name("Catalog") {
			catalog = ref
		}
	}

	err := r.scanFile(handle)
	if err != nil {
		return &DocumentUnreadableError{Err: err}
	}

	if len(xref) == 0 {
		return &DocumentUnreadableError{
			Err: errors.New("no objects found"),
		}
	}
	if _, ok := trailer["Root"].(Reference); !ok && catalog != 0 {
		trailer["Root"] = catalog
	}

	r.xref = xref
	r.trailer = trailer
	r.sections = nil
	r.pendingObjStms = objStms
	r.state = XRefReconstructed
	r.log.Info("cross-reference table reconstructed",
		"objects", len(xref), "objectStreams", len(objStms))
	return nil
}

// addObjStmMembers adds the members of the object streams found during
// reconstruction to the cross-reference table.  Free-standing objects take
// precedence over objects in object streams.
func (r *Reader) addObjStmMembers() error {
	stms := r.pendingObjStms
	r.pendingObjStms = nil

	var catalog Reference
	for _, ref := range stms {
		members, err := r.objStmMembers(ref)
		if err != nil {
			if e := r.softError(err, ref); e != nil {
				return e
			}
			continue
		}
		for i, num := range members {
			if entry, ok := r.xref[num]; ok && entry.Kind == entryOffset {
				continue
			}
			r.xref[num] = &xRefEntry{
				Kind:     entryCompressed,
				Pos:      int64(i),
				InStream: ref.Number(),
			}
		}
	}

	if _, ok := r.trailer["Root"].(Reference); ok {
		return nil
	}

	// look for the catalog inside the object streams
	nums := maps.Keys(r.xref)
	slices.Sort(nums)
	for _, num := range nums {
		entry := r.xref[num]
		if entry.Kind != entryCompressed {
			continue
		}
		obj, err := r.getCompressed(num, entry)
		if dict, ok := obj.(Dict); ok && err == nil && dict["Type"] == Name("Catalog") {
			catalog = NewReference(num, 0)
		}
	}
	if catalog == 0 {
		return &DocumentUnreadableError{
			Err: errors.New("document catalog not found"),
		}
	}
	r.trailer["Root"] = catalog
	return nil
}

// scanFile calls handle for every object header and every "trailer" keyword
// in the file, in order of increasing file position.
func (r *Reader) scanFile(handle func(scanHit)) error {
	for start := int64(0); start < r.size; start += scanWindow {
		from := start - scanLookBack
		if from < 0 {
			from = 0
		}
		buf, err := readRange(r.src, from, int(start-from)+scanWindow+scanLookAhead)
		if err != nil && err != ErrShortRead {
			return err
		}
		if len(buf) == 0 {
			break
		}

		var hits []scanHit
		lo := int(start - from)
		hi := lo + scanWindow
		atEOF := from+int64(len(buf)) >= r.size
		hits = findObjHeaders(buf, lo, hi, from, atEOF, hits)
		hits = findTrailers(buf, lo, hi, from, atEOF, hits)
		slices.SortFunc(hits, func(a, b scanHit) int {
			switch {
			case a.pos < b.pos:
				return -1
			case a.pos > b.pos:
				return 1
			}
			return 0
		})
		for _, hit := range hits {
			handle(hit)
		}
		if atEOF {
			break
		}
	}
	return nil
}

// findObjHeaders finds "n g obj" headers where the keyword starts in
// buf[lo:hi].  Positions are reported as file offsets, using base as the
// file offset of buf[0].
func findObjHeaders(buf []byte, lo, hi int, base int64, atEOF bool, hits []scanHit) []scanHit {
	for i := lo; i < hi && i < len(buf); {
		k := bytes.Index(buf[i:], []byte("obj"))
		if k < 0 {
			break
		}
		kw := i + k
		i = kw + 3
		if kw >= hi || !endsKeyword(buf, kw+3, atEOF) {
			continue
		}
		if start, ok := objHeaderStart(buf, kw); ok {
			hits = append(hits, scanHit{pos: base + int64(start)})
		}
	}
	return hits
}

// objHeaderStart walks backwards from the "obj" keyword at kw over the
// generation and object numbers.
func objHeaderStart(buf []byte, kw int) (int, bool) {
	j := kw
	skip := func(accept func(c byte) bool) int {
		n := 0
		for j > 0 && accept(buf[j-1]) {
			j--
			n++
		}
		return n
	}
	isSpace := func(c byte) bool { return charClass[c] == classSpace }
	isDigit := func(c byte) bool { return c >= '0' && c <= '9' }

	if skip(isSpace) == 0 || skip(isDigit) == 0 || skip(isSpace) == 0 || skip(isDigit) == 0 {
		return 0, false
	}
	if j > 0 && charClass[buf[j-1]] == classRegular {
		return 0, false
	}
	return j, true
}

func findTrailers(buf []byte, lo, hi int, base int64, atEOF bool, hits []scanHit) []scanHit {
	const kwTrailer = "trailer"
	for i := lo; i < hi && i < len(buf); {
		k := bytes.Index(buf[i:], []byte(kwTrailer))
		if k < 0 {
			break
		}
		kw := i + k
		i = kw + len(kwTrailer)
		if kw >= hi || !endsKeyword(buf, kw+len(kwTrailer), atEOF) {
			continue
		}
		if kw > 0 && charClass[buf[kw-1]] == classRegular {
			continue
		}
		hits = append(hits, scanHit{pos: base + int64(kw), isTrailer: true})
	}
	return hits
}

// endsKeyword checks whether a keyword ending just before buf[i] is complete.
func endsKeyword(buf []byte, i int, atEOF bool) bool {
	if i >= len(buf) {
		return atEOF
	}
	return charClass[buf[i]] != classRegular
}
