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

const lexerBufSize = 4096

type tokenKind int

const (
	tokNumber tokenKind = iota + 1
	tokName
	tokString
	tokHexString
	tokArrayStart
	tokArrayEnd
	tokDictStart
	tokDictEnd
	tokProcStart
	tokProcEnd
	tokKeyword
)

func (k tokenKind) String() string {
	switch k {
	case tokNumber:
		return "number"
	case tokName:
		return "name"
	case tokString, tokHexString:
		return "string"
	case tokArrayStart:
		return "["
	case tokArrayEnd:
		return "]"
	case tokDictStart:
		return "<<"
	case tokDictEnd:
		return ">>"
	case tokProcStart:
		return "{"
	case tokProcEnd:
		return "}"
	case tokKeyword:
		return "keyword"
	default:
		return "token#" + strconv.Itoa(int(k))
	}
}

// token is a lexical token of the PDF syntax.  For strings and names, val
// holds the decoded bytes.  For numbers and keywords, val holds the raw text.
type token struct {
	kind tokenKind
	val  []byte
	pos  int64
}

func (t token) is(keyword string) bool {
	return t.kind == tokKeyword && string(t.val) == keyword
}

// lexer splits the contents of an io.ReaderAt into PDF tokens.
// The lexer reads through a buffer window; no more than one byte beyond
// the current token is examined.
type lexer struct {
	r    io.ReaderAt
	size int64

	buf       []byte
	bufPos    int64 // file offset of buf[0]
	used, pos int
}

func newLexer(r io.ReaderAt, size int64, pos int64) *lexer {
	return &lexer{
		r:      r,
		size:   size,
		buf:    make([]byte, lexerBufSize),
		bufPos: pos,
	}
}

func (l *lexer) filePos() int64 {
	return l.bufPos + int64(l.pos)
}

// seek moves the read position to the given file offset.
func (l *lexer) seek(pos int64) {
	if pos >= l.bufPos && pos <= l.bufPos+int64(l.used) {
		l.pos = int(pos - l.bufPos)
		return
	}
	l.bufPos = pos
	l.used = 0
	l.pos = 0
}

func (l *lexer) atEOF() bool {
	return l.bufPos+int64(l.used) >= l.size
}

// refill discards the read part of the buffer and reads as much new data as
// possible.
func (l *lexer) refill() error {
	l.bufPos += int64(l.pos)
	copy(l.buf, l.buf[l.pos:l.used])
	l.used -= l.pos
	l.pos = 0

	want := len(l.buf) - l.used
	avail := l.size - l.bufPos - int64(l.used)
	if int64(want) > avail {
		want = int(avail)
	}
	if want <= 0 {
		return nil
	}

	n, err := l.r.ReadAt(l.buf[l.used:l.used+want], l.bufPos+int64(l.used))
	l.used += n
	if errors.Is(err, io.EOF) {
		// The source is shorter than announced.
		l.size = l.bufPos + int64(l.used)
		err = nil
	}
	return err
}

// peek returns a view of the next n bytes of input.  At the end of the
// input, the returned slice may be shorter than n.
func (l *lexer) peek(n int) ([]byte, error) {
	if n > lexerBufSize {
		panic("peek window too large")
	}
	var err error
	if l.pos+n > l.used && !l.atEOF() {
		err = l.refill()
	}
	if l.pos+n > l.used {
		return l.buf[l.pos:l.used], err
	}
	return l.buf[l.pos : l.pos+n], nil
}

func (l *lexer) hasPrefix(pat string) bool {
	buf, _ := l.peek(len(pat))
	return string(buf) == pat
}

// scanBytes advances over the input as long as accept returns true.
// Reaching the end of input is not an error.
func (l *lexer) scanBytes(accept func(c byte) bool) error {
	for {
		for l.pos < l.used {
			if !accept(l.buf[l.pos]) {
				return nil
			}
			l.pos++
		}
		if l.atEOF() {
			return nil
		}
		err := l.refill()
		if err != nil {
			return err
		}
		if l.pos >= l.used {
			return nil
		}
	}
}

// skipWhiteSpace skips white space and comments.
func (l *lexer) skipWhiteSpace() error {
	isComment := false
	return l.scanBytes(func(c byte) bool {
		if isComment {
			if c == '\r' || c == '\n' {
				isComment = false
			}
		} else if c == '%' {
			isComment = true
		} else {
			return charClass[c] == classSpace
		}
		return true
	})
}

// skipEOL skips a single end-of-line marker (CR, LF or CRLF), if present.
func (l *lexer) skipEOL() {
	buf, _ := l.peek(2)
	switch {
	case len(buf) >= 2 && buf[0] == '\r' && buf[1] == '\n':
		l.pos += 2
	case len(buf) >= 1 && (buf[0] == '\n' || buf[0] == '\r'):
		l.pos++
	}
}

// skipAfter advances the read position to just after the next occurrence of
// pat.  If pat is not found, io.EOF is returned.
func (l *lexer) skipAfter(pat string) error {
	patBytes := []byte(pat)
	n := len(patBytes)
	for {
		idx := bytes.Index(l.buf[l.pos:l.used], patBytes)
		if idx >= 0 {
			l.pos += idx + n
			return nil
		}
		if l.atEOF() {
			l.pos = l.used
			return io.EOF
		}
		// keep a possible partial match at the end of the buffer
		keep := l.used - n + 1
		if keep > l.pos {
			l.pos = keep
		}
		err := l.refill()
		if err != nil {
			return err
		}
	}
}

func (l *lexer) lexError(pos int64, format string, args ...any) error {
	return &MalformedFileError{
		Pos: pos,
		Err: fmt.Errorf("%w: "+format, append([]any{ErrLexical}, args...)...),
	}
}

// nextToken returns the next token.  At the end of input, io.EOF is returned.
// After a lexical error, the lexer is positioned after the offending byte
// so that the next call resynchronizes.
func (l *lexer) nextToken() (token, error) {
	err := l.skipWhiteSpace()
	if err != nil {
		return token{}, err
	}
	buf, err := l.peek(2)
	if len(buf) == 0 {
		if err == nil {
			err = io.EOF
		}
		return token{}, err
	}

	start := l.filePos()
	c := buf[0]
	switch c {
	case '/':
		l.pos++
		name, err := l.readName()
		return token{kind: tokName, val: name, pos: start}, err
	case '(':
		l.pos++
		s, err := l.readLiteralString(start)
		return token{kind: tokString, val: s, pos: start}, err
	case '<':
		if len(buf) > 1 && buf[1] == '<' {
			l.pos += 2
			return token{kind: tokDictStart, pos: start}, nil
		}
		l.pos++
		s, err := l.readHexString(start)
		return token{kind: tokHexString, val: s, pos: start}, err
	case '>':
		if len(buf) > 1 && buf[1] == '>' {
			l.pos += 2
			return token{kind: tokDictEnd, pos: start}, nil
		}
		l.pos++
		return token{}, l.lexError(start, "unexpected %q", c)
	case ')':
		l.pos++
		return token{}, l.lexError(start, "unexpected %q", c)
	case '[':
		l.pos++
		return token{kind: tokArrayStart, pos: start}, nil
	case ']':
		l.pos++
		return token{kind: tokArrayEnd, pos: start}, nil
	case '{':
		l.pos++
		return token{kind: tokProcStart, pos: start}, nil
	case '}':
		l.pos++
		return token{kind: tokProcEnd, pos: start}, nil
	}

	var word []byte
	err = l.scanBytes(func(c byte) bool {
		if charClass[c] != classRegular {
			return false
		}
		word = append(word, c)
		return true
	})
	if err != nil {
		return token{}, err
	}
	kind := tokKeyword
	if c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.' {
		kind = tokNumber
	}
	return token{kind: kind, val: word, pos: start}, nil
}

// readName reads a name, starting after the "/".
func (l *lexer) readName() ([]byte, error) {
	var res []byte
	hex := 0
	var hexDigits [2]byte
	err := l.scanBytes(func(c byte) bool {
		if hex > 0 {
			if _, ok := hexValue(c); ok && charClass[c] == classRegular {
				hexDigits[2-hex] = c
				hex--
				if hex == 0 {
					hi, _ := hexValue(hexDigits[0])
					lo, _ := hexValue(hexDigits[1])
					res = append(res, hi<<4|lo)
				}
				return true
			}
			// not a valid escape, keep the characters as they are
			res = append(res, '#')
			res = append(res, hexDigits[:2-hex]...)
			hex = 0
		}
		if charClass[c] != classRegular {
			return false
		}
		if c == '#' {
			hex = 2
		} else {
			res = append(res, c)
		}
		return true
	})
	if hex > 0 {
		res = append(res, '#')
		res = append(res, hexDigits[:2-hex]...)
	}
	return res, err
}

// readLiteralString reads a ()-delimited string, starting after the opening
// bracket.
func (l *lexer) readLiteralString(start int64) ([]byte, error) {
	var res []byte
	depth := 0
	escape := false
	ignoreLF := false
	octal := 0
	var octalVal byte
	closed := false
	err := l.scanBytes(func(c byte) bool {
		if octal > 0 {
			if octal < 3 && c >= '0' && c <= '7' {
				octalVal = octalVal*8 + (c - '0')
				octal++
				return true
			}
			res = append(res, octalVal)
			octal = 0
		}
		if ignoreLF {
			ignoreLF = false
			if c == '\n' {
				return true
			}
		}
		if escape {
			escape = false
			switch c {
			case '\n':
				return true
			case '\r':
				ignoreLF = true
				return true
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case 't':
				c = '\t'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			case '0', '1', '2', '3', '4', '5', '6', '7':
				octal = 1
				octalVal = c - '0'
				return true
			}
			res = append(res, c)
			return true
		}
		switch c {
		case '\\':
			escape = true
			return true
		case '(':
			depth++
		case ')':
			if depth == 0 {
				closed = true
				return false
			}
			depth--
		case '\r':
			c = '\n'
			ignoreLF = true
		}
		res = append(res, c)
		return true
	})
	if octal > 0 {
		res = append(res, octalVal)
	}
	if err != nil {
		return res, err
	}
	if !closed {
		return res, &MalformedFileError{
			Pos: start,
			Err: fmt.Errorf("%w: unterminated string", ErrSyntax),
		}
	}
	l.pos++ // we have already seen the closing ")"
	return res, nil
}

// readHexString reads a <>-delimited string, starting after the opening
// angled bracket.
func (l *lexer) readHexString(start int64) ([]byte, error) {
	var res []byte
	var hexVal byte
	first := true
	closed := false
	err := l.scanBytes(func(c byte) bool {
		if c == '>' {
			closed = true
			return false
		}
		d, ok := hexValue(c)
		if !ok {
			return true
		}
		if first {
			hexVal = d
		} else {
			res = append(res, hexVal<<4|d)
		}
		first = !first
		return true
	})
	if !first {
		res = append(res, hexVal<<4)
	}
	if err != nil {
		return res, err
	}
	if !closed {
		return res, &MalformedFileError{
			Pos: start,
			Err: fmt.Errorf("%w: unterminated hex string", ErrSyntax),
		}
	}
	l.pos++
	return res, nil
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

const (
	classRegular = iota
	classSpace
	classDelimiter
)

var charClass [256]byte

func init() {
	for _, c := range []byte{0, 9, 10, 12, 13, 32} {
		charClass[c] = classSpace
	}
	for _, c := range []byte("()<>[]{}/%") {
		charClass[c] = classDelimiter
	}
}
