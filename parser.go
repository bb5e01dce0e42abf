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
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// maxNesting limits the depth of nested arrays and dictionaries.
const maxNesting = 256

// parser reads PDF objects from a token stream.  A window of two tokens is
// used to recognise references of the form "n g R".
type parser struct {
	lex   *lexer
	ahead []token

	// ref is the reference of the indirect object currently being parsed.
	ref Reference

	// decrypt, if set, is applied to every string.
	decrypt func(ref Reference, s String) String

	// errs collects soft errors which did not prevent parsing.
	errs []error

	depth int
}

func newParser(lex *lexer) *parser {
	return &parser{lex: lex}
}

// reset moves the parser to a new file offset.
func (p *parser) reset(pos int64) {
	p.ahead = p.ahead[:0]
	p.lex.seek(pos)
	p.depth = 0
}

// pos returns the file offset of the next unread token.
func (p *parser) pos() int64 {
	if len(p.ahead) > 0 {
		return p.ahead[0].pos
	}
	return p.lex.filePos()
}

func (p *parser) softError(err error) {
	p.errs = append(p.errs, err)
}

// lexToken reads a token from the lexer.  Lexical errors are recorded as
// soft errors and the lexer resynchronizes after the offending input.
func (p *parser) lexToken() (token, error) {
	for {
		t, err := p.lex.nextToken()
		if err == nil {
			return t, nil
		}
		var mErr *MalformedFileError
		if !errors.As(err, &mErr) {
			return token{}, err
		}
		p.softError(err)
		if t.kind != 0 {
			return t, nil
		}
	}
}

func (p *parser) next() (token, error) {
	if len(p.ahead) > 0 {
		t := p.ahead[0]
		p.ahead = p.ahead[1:]
		return t, nil
	}
	return p.lexToken()
}

func (p *parser) peekToken(i int) (token, error) {
	for len(p.ahead) <= i {
		t, err := p.lexToken()
		if err != nil {
			return token{}, err
		}
		p.ahead = append(p.ahead, t)
	}
	return p.ahead[i], nil
}

func (p *parser) pushBack(t token) {
	p.ahead = append([]token{t}, p.ahead...)
}

func syntaxError(pos int64, format string, args ...any) error {
	return &MalformedFileError{
		Pos: pos,
		Err: fmt.Errorf("%w: "+format, append([]any{ErrSyntax}, args...)...),
	}
}

// parseObject reads the next object.  For malformed arrays and dictionaries,
// the partial value is returned together with an error.
func (p *parser) parseObject() (Object, error) {
	t, err := p.next()
	if err == io.EOF {
		return nil, &MalformedFileError{Pos: p.lex.filePos(), Err: io.ErrUnexpectedEOF}
	} else if err != nil {
		return nil, err
	}
	return p.parseFrom(t)
}

func (p *parser) parseFrom(t token) (Object, error) {
	switch t.kind {
	case tokNumber:
		x := parseNumber(t.val)
		if _, isInt := x.(Integer); isInt && isDigits(t.val) {
			return p.maybeReference(t, x.(Integer))
		}
		return x, nil
	case tokName:
		return Name(t.val), nil
	case tokString, tokHexString:
		s := String(t.val)
		if p.decrypt != nil {
			s = p.decrypt(p.ref, s)
		}
		return s, nil
	case tokArrayStart:
		return p.parseArray(t.pos)
	case tokDictStart:
		return p.parseDict(t.pos)
	case tokKeyword:
		switch string(t.val) {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		case "null":
			return nil, nil
		}
		return nil, syntaxError(t.pos, "unexpected keyword %q", t.val)
	default:
		return nil, syntaxError(t.pos, "unexpected %s", t.kind)
	}
}

// maybeReference checks whether the integer x is the start of a reference
// "n g R".
func (p *parser) maybeReference(t token, x Integer) (Object, error) {
	t1, err := p.peekToken(0)
	if err != nil || t1.kind != tokNumber || !isDigits(t1.val) {
		return x, nil
	}
	t2, err := p.peekToken(1)
	if err != nil || !t2.is("R") {
		return x, nil
	}
	p.ahead = p.ahead[2:]

	gen, err := strconv.ParseUint(string(t1.val), 10, 64)
	if err != nil || gen > math.MaxUint16 || x > math.MaxUint32 {
		p.softError(syntaxError(t.pos, "invalid reference %s %s R", t.val, t1.val))
		return nil, nil
	}
	return NewReference(uint32(x), uint16(gen)), nil
}

func isDigits(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isValueKeyword(t token) bool {
	return t.is("true") || t.is("false") || t.is("null")
}

func (p *parser) enter(pos int64) error {
	if p.depth >= maxNesting {
		return syntaxError(pos, "objects nested too deeply")
	}
	p.depth++
	return nil
}

func (p *parser) leave() {
	p.depth--
}

// parseArray reads an array, starting after the opening "[".
func (p *parser) parseArray(start int64) (Array, error) {
	err := p.enter(start)
	if err != nil {
		return nil, err
	}
	defer p.leave()

	var array Array
	for {
		t, err := p.next()
		if err == io.EOF {
			return array, syntaxError(start, "unterminated array")
		} else if err != nil {
			return array, err
		}

		switch {
		case t.kind == tokArrayEnd:
			return array, nil
		case t.kind == tokDictEnd, t.kind == tokKeyword && !isValueKeyword(t):
			p.pushBack(t)
			return array, syntaxError(start, "unterminated array")
		}

		obj, err := p.parseFrom(t)
		if err != nil {
			if obj != nil {
				array = append(array, obj)
			}
			return array, err
		}
		array = append(array, obj)
	}
}

// parseDict reads a dictionary, starting after the opening "<<".
// If a top-level dictionary is followed by the keyword "stream", a
// [*Stream] is returned.
func (p *parser) parseDict(start int64) (Object, error) {
	err := p.enter(start)
	if err != nil {
		return nil, err
	}
	dict, err := p.parseDictEntries(start)
	p.leave()
	if err != nil {
		return dict, err
	}

	if p.depth > 0 {
		return dict, nil
	}
	t, err := p.peekToken(0)
	if err != nil || !t.is("stream") {
		return dict, nil
	}
	return p.parseStream(dict, t), nil
}

func (p *parser) parseDictEntries(start int64) (Dict, error) {
	dict := Dict{}
	for {
		t, err := p.next()
		if err == io.EOF {
			return dict, syntaxError(start, "unterminated dictionary")
		} else if err != nil {
			return dict, err
		}

		if t.kind == tokDictEnd {
			return dict, nil
		}
		if t.kind != tokName {
			if t.kind == tokKeyword && !isValueKeyword(t) || t.kind == tokArrayEnd {
				p.pushBack(t)
				return dict, syntaxError(start, "unterminated dictionary")
			}
			p.softError(syntaxError(t.pos, "dictionary key is a %s", t.kind))
			_, err := p.parseFrom(t)
			if err != nil {
				return dict, err
			}
			continue
		}
		key := Name(t.val)

		v, err := p.next()
		if err == io.EOF {
			return dict, syntaxError(start, "unterminated dictionary")
		} else if err != nil {
			return dict, err
		}
		if v.kind == tokDictEnd {
			p.softError(syntaxError(v.pos, "missing value for key /%s", key))
			return dict, nil
		}
		if v.kind == tokKeyword && !isValueKeyword(v) || v.kind == tokArrayEnd {
			p.pushBack(v)
			return dict, syntaxError(start, "unterminated dictionary")
		}

		val, err := p.parseFrom(v)
		if val != nil {
			dict[key] = val
		}
		if err != nil {
			return dict, err
		}
	}
}

// parseStream converts dict into a stream, after the keyword "stream" has
// been seen.  The stream data starts after the end-of-line marker following
// the keyword.
func (p *parser) parseStream(dict Dict, kw token) *Stream {
	p.ahead = p.ahead[:0]
	p.lex.seek(kw.pos + int64(len("stream")))
	p.lex.skipEOL()
	return &Stream{
		Dict:   dict,
		Ref:    p.ref,
		pos:    p.lex.filePos(),
		length: dict["Length"],
	}
}

// parseIndirect reads an indirect object "n g obj ... endobj".
// A missing "endobj" is tolerated.
func (p *parser) parseIndirect() (Reference, Object, error) {
	start := p.pos()
	var header [3]token
	for i := range header {
		t, err := p.next()
		if err == io.EOF {
			return 0, nil, &MalformedFileError{Pos: start, Err: io.ErrUnexpectedEOF}
		} else if err != nil {
			return 0, nil, err
		}
		header[i] = t
	}
	if header[0].kind != tokNumber || header[1].kind != tokNumber || !header[2].is("obj") {
		return 0, nil, syntaxError(start, "expected object header")
	}
	num, err1 := strconv.ParseUint(string(header[0].val), 10, 32)
	gen, err2 := strconv.ParseUint(string(header[1].val), 10, 16)
	if err1 != nil || err2 != nil {
		return 0, nil, syntaxError(start, "invalid object header %s %s obj",
			header[0].val, header[1].val)
	}
	ref := NewReference(uint32(num), uint16(gen))
	p.ref = ref

	obj, err := p.parseObject()
	if err != nil {
		return ref, obj, err
	}
	if _, isStream := obj.(*Stream); !isStream {
		t, err := p.peekToken(0)
		if err == nil && t.is("endobj") {
			p.ahead = p.ahead[1:]
		}
	}
	return ref, obj, nil
}

// parseNumber converts the text of a number token into an Integer or a Real.
// Malformed numbers are read leniently: repeated signs are ignored, a second
// decimal point ends the number, and integers which overflow int64 are
// returned as Real values.
func parseNumber(b []byte) Object {
	if x, err := strconv.ParseInt(string(b), 10, 64); err == nil {
		return Integer(x)
	}

	i := 0
	neg := false
	for i < len(b) && (b[i] == '+' || b[i] == '-') {
		if b[i] == '-' {
			neg = true
		}
		i++
	}
	var digits []byte
	hasDot := false
	for ; i < len(b); i++ {
		c := b[i]
		if c >= '0' && c <= '9' {
			digits = append(digits, c)
		} else if c == '.' && !hasDot {
			hasDot = true
			digits = append(digits, c)
		} else {
			break
		}
	}

	if !hasDot {
		if len(digits) == 0 {
			return Integer(0)
		}
		if x, err := strconv.ParseInt(string(digits), 10, 64); err == nil {
			if neg {
				x = -x
			}
			return Integer(x)
		}
	}
	if len(digits) == 0 || string(digits) == "." {
		return Real(0)
	}
	x, _ := strconv.ParseFloat(string(digits), 64)
	if neg {
		x = -x
	}
	return Real(x)
}
