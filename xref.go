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

// XRefState describes how far the cross-reference information of a file
// has been processed.
type XRefState int

// These are the states of the cross-reference resolver.
const (
	XRefUnloaded XRefState = iota
	XRefTrailerLocated
	XRefChainWalked
	XRefReady
	XRefReconstructing
	XRefReconstructed
)

func (s XRefState) String() string {
	switch s {
	case XRefUnloaded:
		return "unloaded"
	case XRefTrailerLocated:
		return "trailer located"
	case XRefChainWalked:
		return "section chain walked"
	case XRefReady:
		return "ready"
	case XRefReconstructing:
		return "reconstructing"
	case XRefReconstructed:
		return "reconstructed"
	default:
		return "XRefState(" + strconv.Itoa(int(s)) + ")"
	}
}

// SectionKind distinguishes the different forms of cross-reference sections.
type SectionKind int

// These are the supported kinds of cross-reference sections.
const (
	// SectionTable is a classic "xref" table.
	SectionTable SectionKind = iota

	// SectionStream is a cross-reference stream.
	SectionStream

	// SectionHybrid is a classic table whose trailer points to an
	// additional cross-reference stream via /XRefStm.
	SectionHybrid
)

func (k SectionKind) String() string {
	switch k {
	case SectionTable:
		return "table"
	case SectionStream:
		return "stream"
	case SectionHybrid:
		return "hybrid"
	default:
		return "SectionKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// XRefSection describes one cross-reference section of a file.
type XRefSection struct {
	// Pos is the file offset of the section.
	Pos int64

	// Prev is the offset of the previous section, or -1 if there is none.
	Prev int64

	Kind SectionKind

	// Entries is the number of entries defined by this section.
	Entries int
}

type entryKind uint8

const (
	entryFree entryKind = iota
	entryOffset
	entryCompressed
)

// xRefEntry describes where an object is stored.  For compressed objects,
// Pos is the index of the object inside the object stream.
type xRefEntry struct {
	Kind       entryKind
	Pos        int64
	InStream   uint32
	Generation uint16
}

func (entry *xRefEntry) IsFree() bool {
	return entry == nil || entry.Kind == entryFree
}

// trailerOnlyKeys lists keys of cross-reference stream dictionaries which
// describe the stream itself and are not copied into the trailer.
var trailerOnlyKeys = map[Name]bool{
	"Prev":         true,
	"XRefStm":      true,
	"Type":         true,
	"W":            true,
	"Index":        true,
	"Length":       true,
	"Filter":       true,
	"DecodeParms":  true,
	"F":            true,
	"FFilter":      true,
	"FDecodeParms": true,
	"DL":           true,
}

func corruptXRef(pos int64, format string, args ...any) error {
	return &MalformedFileError{
		Pos: pos,
		Err: fmt.Errorf("%w: "+format, append([]any{ErrCorruptXRef}, args...)...),
	}
}

func (r *Reader) findXRef() (int64, error) {
	pos, err := r.lastOccurence("startxref")
	if err != nil {
		return 0, err
	}

	p := r.parserAt(pos + 9)
	t, err := p.next()
	if err != nil || t.kind != tokNumber {
		return 0, &MalformedFileError{
			Pos: pos,
			Err: fmt.Errorf("%w: missing offset after startxref", ErrTrailerNotFound),
		}
	}
	xRefPos, err := strconv.ParseInt(string(t.val), 10, 64)
	if err != nil || xRefPos <= 0 || xRefPos >= r.size {
		return 0, &MalformedFileError{
			Pos: t.pos,
			Err: fmt.Errorf("%w: invalid xref position %s", ErrTrailerNotFound, t.val),
		}
	}
	return xRefPos, nil
}

// lastOccurence finds the last occurrence of pat in the file, searching
// backwards from the end in chunks of 1 KiB.
func (r *Reader) lastOccurence(pat string) (int64, error) {
	const chunkSize = 1024

	buf := make([]byte, chunkSize)
	k := int64(len(pat))
	pos := r.size
	for pos >= k {
		start := pos - chunkSize
		if start < 0 {
			start = 0
		}
		n, err := r.src.ReadAt(buf[:pos-start], start)
		if err != nil && err != io.EOF {
			return 0, err
		}

		idx := bytes.LastIndex(buf[:n], []byte(pat))
		if idx >= 0 {
			return start + int64(idx), nil
		}

		if start == 0 {
			break
		}
		pos = start + k - 1
	}
	return 0, &MalformedFileError{
		Err: fmt.Errorf("%w: %s not found", ErrTrailerNotFound, pat),
	}
}

// readXRef walks the chain of cross-reference sections, starting with the
// newest one.  Entries from newer sections shadow entries from older
// sections, and keys from newer trailers shadow keys from older trailers.
func (r *Reader) readXRef() error {
	start, err := r.findXRef()
	if err != nil {
		if r.lin == nil || r.lin.firstXRef <= 0 {
			return err
		}
		r.log.Debug("using first-page xref of linearized file",
			"pos", r.lin.firstXRef)
		start = r.lin.firstXRef
	}
	r.state = XRefTrailerLocated

	xref := make(map[uint32]*xRefEntry)
	trailer := Dict{}
	var sections []XRefSection
	seen := make(map[int64]bool)
	for pos := start; pos >= 0; {
		if seen[pos] {
			if err := r.softError(corruptXRef(pos, "loop in /Prev chain"), 0); err != nil {
				return err
			}
			break
		}
		seen[pos] = true

		entries, dict, sec, err := r.readSection(pos)
		if err != nil {
			return wrap(err, "xref section at "+strconv.FormatInt(pos, 10))
		}
		for num, entry := range entries {
			if _, ok := xref[num]; !ok {
				xref[num] = entry
			}
		}
		for key, val := range dict {
			if _, ok := trailer[key]; !ok && !trailerOnlyKeys[key] {
				trailer[key] = val
			}
		}

		pos = -1
		switch prev := dict["Prev"].(type) {
		case Integer:
			if prev <= 0 || int64(prev) >= r.size {
				return corruptXRef(sec.Pos, "invalid /Prev value %d", prev)
			}
			pos = int64(prev)
		case nil:
			// pass
		default:
			return corruptXRef(sec.Pos, "invalid /Prev value %s", Format(prev))
		}
		sec.Prev = pos
		sections = append(sections, sec)
		r.log.Debug("read xref section",
			"pos", sec.Pos, "kind", sec.Kind.String(), "entries", sec.Entries)
	}
	r.state = XRefChainWalked

	if _, ok := trailer["Root"].(Reference); !ok {
		return corruptXRef(start, "trailer has no valid /Root")
	}

	r.xref = xref
	r.trailer = trailer
	r.sections = sections
	return nil
}

// readSection reads the cross-reference section starting at pos.
func (r *Reader) readSection(pos int64) (map[uint32]*xRefEntry, Dict, XRefSection, error) {
	sec := XRefSection{Pos: pos, Prev: -1}

	p := r.parserAt(pos)
	t, err := p.peekToken(0)
	if err != nil {
		return nil, nil, sec, corruptXRef(pos, "cannot read xref section: %v", err)
	}

	if !t.is("xref") {
		sec.Kind = SectionStream
		entries, dict, err := r.readXRefStream(p)
		sec.Entries = len(entries)
		return entries, dict, sec, err
	}

	sec.Kind = SectionTable
	entries, dict, err := r.readXRefTable(p)
	if err != nil {
		return nil, nil, sec, err
	}

	if obj, ok := dict["XRefStm"]; ok {
		zStart, ok := obj.(Integer)
		if !ok || zStart <= 0 || int64(zStart) >= r.size {
			err := r.softError(corruptXRef(pos, "invalid /XRefStm value %s", Format(obj)), 0)
			if err != nil {
				return nil, nil, sec, err
			}
		} else {
			sec.Kind = SectionHybrid
			zEntries, _, err := r.readXRefStream(r.parserAt(int64(zStart)))
			if err != nil {
				if err := r.softError(err, 0); err != nil {
					return nil, nil, sec, err
				}
			}
			// In-use table entries take precedence over the stream.
			for num, entry := range zEntries {
				if old, ok := entries[num]; !ok || old.IsFree() {
					entries[num] = entry
				}
			}
		}
	}
	sec.Entries = len(entries)
	return entries, dict, sec, nil
}

// readXRefTable reads a classic cross-reference table and the following
// trailer dictionary.  The table is read token by token, so that entries
// which do not have the prescribed 20-byte layout are still understood.
func (r *Reader) readXRefTable(p *parser) (map[uint32]*xRefEntry, Dict, error) {
	_, err := p.next() // "xref"
	if err != nil {
		return nil, nil, err
	}

	entries := make(map[uint32]*xRefEntry)
	firstSubsection := true
	for {
		t, err := p.next()
		if err != nil {
			return nil, nil, corruptXRef(p.pos(), "unexpected end of xref table")
		}
		if t.is("trailer") {
			break
		}
		t2, err := p.next()
		if err != nil || t.kind != tokNumber || t2.kind != tokNumber {
			return nil, nil, corruptXRef(t.pos, "malformed xref subsection header")
		}
		start, err1 := strconv.ParseUint(string(t.val), 10, 32)
		count, err2 := strconv.ParseUint(string(t2.val), 10, 32)
		if err1 != nil || err2 != nil || start+count > 1<<32 {
			return nil, nil, corruptXRef(t.pos, "invalid xref subsection %s %s", t.val, t2.val)
		}

		for i := uint64(0); i < count; i++ {
			a, err := p.next()
			if err == nil && a.is("trailer") {
				err := r.softError(corruptXRef(a.pos, "xref subsection is too short"), 0)
				if err != nil {
					return nil, nil, err
				}
				p.pushBack(a)
				break
			}
			b, err2 := p.next()
			c, err3 := p.next()
			if err != nil || err2 != nil || err3 != nil ||
				a.kind != tokNumber || b.kind != tokNumber || c.kind != tokKeyword {
				return nil, nil, corruptXRef(a.pos, "malformed xref entry")
			}

			offs, err1 := strconv.ParseInt(string(a.val), 10, 64)
			gen, err2 := strconv.ParseUint(string(b.val), 10, 32)
			if err1 != nil || err2 != nil {
				return nil, nil, corruptXRef(a.pos, "malformed xref entry")
			}
			if gen > 65535 {
				// fix a common error in some PDF files
				if offs == 0 && gen == 65536 {
					gen = 65535
				} else {
					return nil, nil, corruptXRef(a.pos, "invalid generation number %d", gen)
				}
			}

			// Some writers start the first subsection at 1 instead of 0.
			if firstSubsection && i == 0 && start == 1 && offs == 0 &&
				gen == 65535 && c.is("f") {
				start = 0
			}

			num := uint32(start + i)
			if _, dup := entries[num]; dup {
				continue
			}
			switch {
			case c.is("n"):
				entries[num] = &xRefEntry{
					Kind:       entryOffset,
					Pos:        offs,
					Generation: uint16(gen),
				}
			case c.is("f"):
				entries[num] = &xRefEntry{
					Kind:       entryFree,
					Generation: uint16(gen),
				}
			default:
				return nil, nil, corruptXRef(c.pos, "invalid xref entry type %q", c.val)
			}
		}
		firstSubsection = false
	}

	obj, err := p.parseObject()
	if err != nil {
		return nil, nil, wrap(err, "trailer")
	}
	dict, ok := obj.(Dict)
	if !ok {
		return nil, nil, corruptXRef(p.pos(), "trailer is not a dictionary")
	}
	return entries, dict, nil
}

type xRefSubSection struct {
	Start, Size uint32
}

// readXRefStream reads a cross-reference stream.  The stream data is decoded
// without the help of the resolver, so /Length, /Filter and /DecodeParms must
// be direct objects.
func (r *Reader) readXRefStream(p *parser) (map[uint32]*xRefEntry, Dict, error) {
	start := p.pos()
	ref, obj, err := p.parseIndirect()
	if err != nil {
		return nil, nil, corruptXRef(start, "cannot read xref stream: %v", err)
	}
	stream, ok := obj.(*Stream)
	if !ok {
		return nil, nil, corruptXRef(start, "invalid xref stream")
	}
	if tp, ok := stream.Dict["Type"].(Name); ok && tp != "XRef" {
		return nil, nil, corruptXRef(start, "invalid xref stream type /%s", tp)
	}
	stream.plain = true
	r.special[ref] = true

	w, ss, err := checkXRefStreamDict(stream.Dict)
	if err != nil {
		return nil, nil, wrap(err, "xref stream at "+strconv.FormatInt(start, 10))
	}

	body, err := r.bootstrapStream(stream)
	if err != nil {
		return nil, nil, err
	}
	entries, err := decodeXRefStream(body, w, ss)
	if err != nil {
		return nil, nil, corruptXRef(start, "%v", err)
	}
	return entries, stream.Dict, nil
}

func checkXRefStreamDict(dict Dict) ([]int, []xRefSubSection, error) {
	size, ok := dict["Size"].(Integer)
	if !ok || size < 0 {
		return nil, nil, corruptXRef(0, "missing /Size in xref stream")
	}
	W, ok := dict["W"].(Array)
	if !ok || len(W) < 3 {
		return nil, nil, corruptXRef(0, "invalid /W in xref stream")
	}
	var w []int
	for i, Wi := range W {
		wi, ok := Wi.(Integer)
		if !ok || wi < 0 || i < 3 && wi > 8 {
			return nil, nil, corruptXRef(0, "invalid /W in xref stream")
		}
		w = append(w, int(wi))
	}

	var ss []xRefSubSection
	switch ind := dict["Index"].(type) {
	case nil:
		ss = append(ss, xRefSubSection{0, uint32(size)})
	case Array:
		if len(ind)%2 != 0 {
			return nil, nil, corruptXRef(0, "invalid /Index in xref stream")
		}
		for i := 0; i < len(ind); i += 2 {
			start, ok1 := ind[i].(Integer)
			size, ok2 := ind[i+1].(Integer)
			if !ok1 || !ok2 || start < 0 || size < 0 ||
				start > 1<<32 || size > 1<<32 || start+size > 1<<32 {
				return nil, nil, corruptXRef(0, "invalid /Index in xref stream")
			}
			ss = append(ss, xRefSubSection{uint32(start), uint32(size)})
		}
	default:
		return nil, nil, corruptXRef(0, "invalid /Index in xref stream")
	}
	return w, ss, nil
}

func decodeXRefStream(r io.Reader, w []int, ss []xRefSubSection) (map[uint32]*xRefEntry, error) {
	wTotal := 0
	for _, wi := range w {
		wTotal += wi
	}
	if wTotal == 0 {
		return nil, errors.New("xref stream entries have zero width")
	}
	buf := make([]byte, wTotal)

	w0 := w[0]
	w1 := w[1]
	w2 := w[2]
	entries := make(map[uint32]*xRefEntry)
	for _, sec := range ss {
		for i := uint64(sec.Start); i < uint64(sec.Start)+uint64(sec.Size); i++ {
			_, err := io.ReadFull(r, buf)
			if err != nil {
				return nil, fmt.Errorf("xref stream data: %w", err)
			}

			num := uint32(i)
			if _, dup := entries[num]; dup {
				continue
			}

			tp := decodeInt(buf[:w0])
			if w0 == 0 {
				tp = 1
			}
			a := decodeInt(buf[w0 : w0+w1])
			b := decodeInt(buf[w0+w1 : w0+w1+w2])
			switch tp {
			case 0:
				// free object; a = next free object, b = generation
				entries[num] = &xRefEntry{
					Kind:       entryFree,
					Generation: uint16(b),
				}
			case 1:
				// a = byte offset of the object, b = generation
				entries[num] = &xRefEntry{
					Kind:       entryOffset,
					Pos:        a,
					Generation: uint16(b),
				}
			case 2:
				// a = number of the object stream, b = index within the stream
				entries[num] = &xRefEntry{
					Kind:     entryCompressed,
					Pos:      b,
					InStream: uint32(a),
				}
			default:
				// Unknown types are treated as references to the null object.
				entries[num] = &xRefEntry{Kind: entryFree}
			}
		}
	}
	return entries, nil
}

func decodeInt(buf []byte) (res int64) {
	for _, x := range buf {
		res = res<<8 | int64(x)
	}
	return res
}
