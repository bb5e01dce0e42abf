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
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
)

// AsTextString decodes a PDF text string to UTF-8.  The encoding is
// UTF-16BE or UTF-8 if the corresponding byte order mark is present, and
// PDFDocEncoding otherwise.
func (x String) AsTextString() string {
	if bytes.HasPrefix(x, bomUTF16BE) {
		buf, err := utf16BE.NewDecoder().Bytes(x)
		if err != nil {
			return ""
		}
		return string(buf)
	}
	if rest, ok := bytes.CutPrefix(x, bomUTF8); ok {
		return string(bytes.ToValidUTF8(rest, []byte("\uFFFD")))
	}

	var b strings.Builder
	b.Grow(len(x))
	for _, c := range x {
		b.WriteRune(pdfDocDecoding[c])
	}
	return b.String()
}

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

// AsDate parses a PDF date string like "D:20260102150405+01'00'".
// Missing trailing fields take their default values.  The string "D:"
// gives the zero time.
func (x String) AsDate() (time.Time, error) {
	s := strings.ReplaceAll(x.AsTextString(), "'", "")
	if s == "D:" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errNoDate
}

// dateLayouts lists the accepted date formats, longest first.  Some
// writers use "Z00" or "Z0000" for UTC, and some write ANSI C dates.
var dateLayouts = []string{
	"D:20060102150405-0700",
	"D:20060102150405-07",
	"D:20060102150405Z0000",
	"D:20060102150405Z00",
	"D:20060102150405Z",
	"D:20060102150405",
	"D:200601021504",
	"D:2006010215",
	"D:20060102",
	"D:200601",
	"D:2006",
	time.ANSIC,
}

// pdfDocEncode converts s to PDFDocEncoding.  Runes missing from
// PDFDocEncoding are tried in Windows-1252.  The result is false if some
// rune cannot be represented.
func pdfDocEncode(s string) ([]byte, bool) {
	res := make([]byte, 0, len(s))
	for _, r := range s {
		c, ok := pdfDocEncoding[r]
		if !ok && r != utf8.RuneError {
			c, ok = charmap.Windows1252.EncodeRune(r)
		}
		if !ok {
			return nil, false
		}
		res = append(res, c)
	}
	return res, true
}

var (
	pdfDocDecoding [256]rune
	pdfDocEncoding map[rune]byte
)

func init() {
	for i := range pdfDocDecoding {
		pdfDocDecoding[i] = rune(i)
	}
	copy(pdfDocDecoding[0x18:], []rune{
		0x02D8, 0x02C7, 0x02C6, 0x02D9, 0x02DD, 0x02DB, 0x02DA, 0x02DC,
	})
	copy(pdfDocDecoding[0x80:], []rune{
		0x2022, 0x2020, 0x2021, 0x2026, 0x2014, 0x2013, 0x0192, 0x2044,
		0x2039, 0x203A, 0x2212, 0x2030, 0x201E, 0x201C, 0x201D, 0x2018,
		0x2019, 0x201A, 0x2122, 0xFB01, 0xFB02, 0x0141, 0x0152, 0x0160,
		0x0178, 0x017D, 0x0131, 0x0142, 0x0153, 0x0161, 0x017E, 0xFFFD,
		0x20AC,
	})
	pdfDocDecoding[0x7F] = 0xFFFD
	pdfDocDecoding[0xAD] = 0xFFFD

	pdfDocEncoding = make(map[rune]byte, 256)
	for i := 255; i >= 0; i-- {
		r := pdfDocDecoding[i]
		if r != 0xFFFD {
			pdfDocEncoding[r] = byte(i)
		}
	}
}
