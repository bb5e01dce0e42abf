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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/pdfcore/internal/filter/ascii85"
	"seehuhn.de/go/pdfcore/internal/filter/flate"
	"seehuhn.de/go/pdfcore/internal/filter/lzw"
	"seehuhn.de/go/pdfcore/internal/filter/predict"
)

func TestFlate(t *testing.T) {
	parmsss := []Dict{
		nil,
		{"Predictor": Integer(1)},
		{"Predictor": Integer(12), "Columns": Integer(5)},
	}
	for _, parms := range parmsss {
		fi := FilterInfo{Name: "FlateDecode", Parms: parms}
		p := &predict.Params{
			Predictor:        fi.intParm("Predictor", 1),
			Colors:           1,
			BitsPerComponent: 8,
			Columns:          fi.intParm("Columns", 1),
		}
		for _, in := range []string{"", "12345", "1234567890"} {
			buf := &bytes.Buffer{}
			zw := flate.Encode(buf)
			w, err := predict.NewWriter(zw, p)
			if err != nil {
				t.Fatal(err)
			}
			_, err = w.Write([]byte(in))
			if err != nil {
				t.Error(in, err)
				continue
			}
			if err := w.Close(); err != nil {
				t.Error(in, err)
				continue
			}
			if err := zw.Close(); err != nil {
				t.Error(in, err)
				continue
			}

			r, err := fi.decode(buf)
			if err != nil {
				t.Error(in, err)
				continue
			}
			out, err := io.ReadAll(r)
			if err != nil {
				t.Error(in, err)
				continue
			}
			if in != string(out) {
				t.Errorf("wrong results: %q vs %q", in, string(out))
			}
		}
	}
}

func TestLZWEarlyChange(t *testing.T) {
	in := strings.Repeat("TOBEORNOTTOBEORTOBEORNOT", 20)
	buf := &bytes.Buffer{}
	w := lzw.Encode(buf)
	w.Write([]byte(in))
	w.Close()

	fi := FilterInfo{Name: "LZWDecode", Parms: Dict{"EarlyChange": Integer(0)}}
	r, err := fi.decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != in {
		t.Errorf("wrong result %q", out)
	}
}

func TestFiltersFromDict(t *testing.T) {
	ref := NewReference(9, 0)
	objs := map[Reference]Object{ref: Integer(12)}
	resolve := func(obj Object) (Object, error) {
		if r, ok := obj.(Reference); ok {
			return objs[r], nil
		}
		return obj, nil
	}

	cases := []struct {
		dict Dict
		want []FilterInfo
	}{
		{Dict{}, nil},
		{
			Dict{"Filter": Name("Fl")},
			[]FilterInfo{{Name: "FlateDecode"}},
		},
		{
			Dict{
				"Filter":      Name("FlateDecode"),
				"DecodeParms": Dict{"Predictor": ref},
			},
			[]FilterInfo{{Name: "FlateDecode", Parms: Dict{"Predictor": Integer(12)}}},
		},
		{
			Dict{
				"Filter":      Array{Name("A85"), Name("LZW")},
				"DecodeParms": Array{nil, Dict{"EarlyChange": Integer(0)}},
			},
			[]FilterInfo{
				{Name: "ASCII85Decode"},
				{Name: "LZWDecode", Parms: Dict{"EarlyChange": Integer(0)}},
			},
		},
		{
			// a dictionary only applies to the first filter
			Dict{
				"Filter":      Array{Name("AHx"), Name("CCF")},
				"DecodeParms": Dict{"K": Integer(-1)},
			},
			[]FilterInfo{
				{Name: "ASCIIHexDecode", Parms: Dict{"K": Integer(-1)}},
				{Name: "CCITTFaxDecode"},
			},
		},
	}
	for i, c := range cases {
		got, err := filtersFromDict(c.dict, resolve)
		if err != nil {
			t.Errorf("%d: %v", i, err)
			continue
		}
		if d := cmp.Diff(c.want, got); d != "" {
			t.Errorf("%d: (-want +got):\n%s", i, d)
		}
	}

	for _, bad := range []Dict{
		{"Filter": Integer(1)},
		{"Filter": Array{Name("FlateDecode"), String("x")}},
	} {
		_, err := filtersFromDict(bad, resolve)
		var mErr *MalformedFileError
		if !errors.As(err, &mErr) {
			t.Errorf("%v: expected MalformedFileError, got %v", bad, err)
		}
	}

	_, err := filtersFromDict(Dict{"Filter": ref}, noRefs)
	if err == nil {
		t.Error("reference accepted by noRefs")
	}
}

func TestFilterChainError(t *testing.T) {
	buf := &bytes.Buffer{}
	w := ascii85.Encode(buf)
	w.Write([]byte("this is not flate data"))
	w.Close()

	var body io.Reader = buf
	for _, fi := range []FilterInfo{{Name: "ASCII85Decode"}, {Name: "FlateDecode"}} {
		next, err := fi.decode(body)
		if err != nil {
			t.Fatal(err)
		}
		body = &stage{r: next, name: fi.Name}
	}
	_, err := io.ReadAll(body)
	var dErr *DecodeError
	if !errors.As(err, &dErr) || dErr.Filter != "FlateDecode" {
		t.Errorf("expected DecodeError for FlateDecode, got %v", err)
	}
}

func TestUnsupportedFilters(t *testing.T) {
	for _, name := range []Name{"JPXDecode", "JBIG2Decode", "NoSuchDecode"} {
		_, err := FilterInfo{Name: name}.decode(strings.NewReader("x"))
		if !errors.Is(err, ErrUnsupportedFilter) {
			t.Errorf("%s: got %v", name, err)
		}
	}
	r := strings.NewReader("x")
	got, err := FilterInfo{Name: "Crypt"}.decode(r)
	if err != nil || got != io.Reader(r) {
		t.Errorf("Crypt: got %v %v", got, err)
	}
}
