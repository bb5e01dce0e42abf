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
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Object represents an object in a PDF file.  There are nine basic types of
// PDF objects, which implement this interface: [Array], [Bool], [Dict],
// [Integer], [Name], [Real], [Reference], [*Stream], and [String].
// The PDF null object is represented by a nil Object.
//
// Objects are plain values.  References are never followed implicitly;
// use [Reader.Resolve] to dereference them.
type Object interface {
	// PDF writes the PDF file representation of the object to w.
	PDF(w io.Writer) error
}

// Bool is a PDF boolean.
type Bool bool

// Integer is a PDF integer.
type Integer int64

// Real is a PDF real number.
type Real float64

// String is a PDF string, as a sequence of bytes.  How the bytes map to
// characters depends on where the string is used.
type String []byte

// Name is a PDF name, without the leading slash.
type Name string

// Array is a PDF array.
type Array []Object

// Dict is a PDF dictionary.  Entries with a nil value are equivalent to
// missing entries.
type Dict map[Name]Object

// Stream is a PDF stream object.
//
// A Stream only records where its data is located in the file.  The data
// is read, decrypted and decoded by [Reader.GetStreamReader].
type Stream struct {
	Dict

	// Ref is the reference of the indirect object containing the stream.
	Ref Reference

	// pos is the file offset of the first byte of stream data.
	pos int64

	// length is the value of the /Length entry; it may be a Reference.
	length Object

	// plain is set for streams which are stored without encryption, e.g.
	// cross-reference streams.
	plain bool
}

// Reference identifies an indirect object.  The object number is stored
// in the low 32 bits, the generation number in the 16 bits above.
type Reference uint64

// NewReference creates a new reference object.
func NewReference(number uint32, generation uint16) Reference {
	return Reference(number) | Reference(generation)<<32
}

// Number returns the object number of the reference.
func (x Reference) Number() uint32 {
	return uint32(x)
}

// Generation returns the generation number of the reference.
func (x Reference) Generation() uint16 {
	return uint16(x >> 32)
}

// PDF implements the [Object] interface.
func (x Bool) PDF(w io.Writer) error { return writeObject(w, x) }

// PDF implements the [Object] interface.
func (x Integer) PDF(w io.Writer) error { return writeObject(w, x) }

// PDF implements the [Object] interface.
func (x Real) PDF(w io.Writer) error { return writeObject(w, x) }

// PDF implements the [Object] interface.
func (x String) PDF(w io.Writer) error { return writeObject(w, x) }

// PDF implements the [Object] interface.
func (x Name) PDF(w io.Writer) error { return writeObject(w, x) }

// PDF implements the [Object] interface.
func (x Array) PDF(w io.Writer) error { return writeObject(w, x) }

// PDF implements the [Object] interface.  A nil Dict is written as null.
func (x Dict) PDF(w io.Writer) error { return writeObject(w, x) }

// PDF implements the [Object] interface.  Only the stream dictionary is
// written; the stream data is not part of the object value.
func (x *Stream) PDF(w io.Writer) error { return writeObject(w, x) }

// PDF implements the [Object] interface.
func (x Reference) PDF(w io.Writer) error { return writeObject(w, x) }

func writeObject(w io.Writer, obj Object) error {
	_, err := w.Write(appendObject(nil, obj))
	return err
}

// Format returns the PDF file representation of obj.
func Format(obj Object) string {
	return string(appendObject(nil, obj))
}

// appendObject appends the PDF file representation of obj to buf.
// Dictionary keys are sorted, so that the output is deterministic.
func appendObject(buf []byte, obj Object) []byte {
	switch x := obj.(type) {
	case nil:
		return append(buf, "null"...)
	case Bool:
		return strconv.AppendBool(buf, bool(x))
	case Integer:
		return strconv.AppendInt(buf, int64(x), 10)
	case Real:
		s := strconv.FormatFloat(float64(x), 'f', -1, 64)
		buf = append(buf, s...)
		if !strings.Contains(s, ".") {
			buf = append(buf, '.')
		}
		return buf
	case String:
		return appendString(buf, x)
	case Name:
		return appendName(buf, x)
	case Reference:
		return fmt.Appendf(buf, "%d %d R", x.Number(), x.Generation())
	case Array:
		buf = append(buf, '[')
		for i, elem := range x {
			if i > 0 {
				buf = append(buf, ' ')
			}
			buf = appendObject(buf, elem)
		}
		return append(buf, ']')
	case Dict:
		if x == nil {
			return append(buf, "null"...)
		}
		keys := maps.Keys(x)
		slices.Sort(keys)
		buf = append(buf, "<<"...)
		for _, key := range keys {
			if x[key] == nil {
				continue
			}
			buf = append(buf, '\n')
			buf = appendName(buf, key)
			buf = append(buf, ' ')
			buf = appendObject(buf, x[key])
		}
		return append(buf, "\n>>"...)
	case *Stream:
		buf = appendObject(buf, x.Dict)
		return append(buf, "\nstream\n...\nendstream"...)
	default:
		w := bytes.NewBuffer(buf)
		obj.PDF(w)
		return w.Bytes()
	}
}

// appendString writes s as a literal string, unless more than a third of
// the bytes would need to be escaped.  In this case the hexadecimal form
// is used.  Parentheses are only escaped if they are unbalanced.
func appendString(buf []byte, s String) []byte {
	escapeParens := !balancedParens(s)
	needsEscape := func(c byte) bool {
		return c < 0x20 || c >= 0x7f || c == '\\' ||
			escapeParens && (c == '(' || c == ')')
	}

	n := 0
	for _, c := range s {
		if needsEscape(c) {
			n++
		}
	}
	if 3*n > len(s) {
		buf = append(buf, '<')
		buf = hex.AppendEncode(buf, s)
		return append(buf, '>')
	}

	buf = append(buf, '(')
	for _, c := range s {
		switch {
		case !needsEscape(c):
			buf = append(buf, c)
		case stringEscapes[c] != 0:
			buf = append(buf, '\\', stringEscapes[c])
		default:
			buf = fmt.Appendf(buf, `\%03o`, c)
		}
	}
	return append(buf, ')')
}

var stringEscapes = [256]byte{
	'\r': 'r', '\n': 'n', '\t': 't', '\b': 'b', '\f': 'f',
	'(': '(', ')': ')', '\\': '\\',
}

func balancedParens(s []byte) bool {
	depth := 0
	for _, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return false
			}
			depth--
		}
	}
	return depth == 0
}

// appendName writes n with a leading slash.  Delimiters, white space, '#'
// and bytes outside the printable ASCII range use the #xx notation.
func appendName(buf []byte, n Name) []byte {
	buf = append(buf, '/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c > 0x20 && c < 0x7f && c != '#' && charClass[c] == classRegular {
			buf = append(buf, c)
		} else {
			buf = fmt.Appendf(buf, "#%02x", c)
		}
	}
	return buf
}

func (x Array) String() string {
	return fmt.Sprintf("<Array, %d elements>", len(x))
}

func (x Dict) String() string {
	entries := "1 entry"
	if len(x) != 1 {
		entries = strconv.Itoa(len(x)) + " entries"
	}
	return describe("Dict", x, entries)
}

func (x *Stream) String() string {
	var details []string
	if n, ok := x.Dict["Length"].(Integer); ok {
		details = append(details, strconv.FormatInt(int64(n), 10)+" bytes")
	}
	for _, name := range x.Filters() {
		details = append(details, string(name))
	}
	return describe("Stream", x.Dict, details...)
}

// describe builds the short descriptions used by the String methods,
// e.g. "<Page Dict, 5 entries>".
func describe(kind string, dict Dict, details ...string) string {
	if tp, ok := dict["Type"].(Name); ok {
		kind = string(tp) + " " + kind
	}
	return "<" + strings.Join(append([]string{kind}, details...), ", ") + ">"
}

func (x Reference) String() string {
	s := "obj_" + strconv.FormatUint(uint64(x.Number()), 10)
	if gen := x.Generation(); gen > 0 {
		s += "@" + strconv.Itoa(int(gen))
	}
	return s
}

// Filters returns the names of the filters declared in the stream
// dictionary, in the order in which they must be undone.  References
// in the /Filter entry are not followed.
func (x *Stream) Filters() []Name {
	switch filter := x.Dict["Filter"].(type) {
	case Name:
		return []Name{filter}
	case Array:
		var res []Name
		for _, f := range filter {
			if name, ok := f.(Name); ok {
				res = append(res, name)
			}
		}
		return res
	}
	return nil
}
