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

package predict

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		p  Params
		ok bool
	}{
		{Params{Colors: 1, BitsPerComponent: 1, Columns: 1, Predictor: 1}, true},
		{Params{Predictor: 1}, true},
		{Params{Colors: 3, BitsPerComponent: 8, Columns: 100, Predictor: 2}, true},
		{Params{Colors: 4, BitsPerComponent: 8, Columns: 50, Predictor: 12}, true},
		{Params{Colors: 3, BitsPerComponent: 16, Columns: 10, Predictor: 15}, true},
		{Params{Colors: 0, BitsPerComponent: 8, Columns: 10, Predictor: 2}, false},
		{Params{Colors: 61, BitsPerComponent: 8, Columns: 10, Predictor: 2}, false},
		{Params{Colors: 257, BitsPerComponent: 8, Columns: 10, Predictor: 12}, false},
		{Params{Colors: 3, BitsPerComponent: 3, Columns: 10, Predictor: 2}, false},
		{Params{Colors: 3, BitsPerComponent: 32, Columns: 10, Predictor: 2}, false},
		{Params{Colors: 3, BitsPerComponent: 8, Columns: 0, Predictor: 2}, false},
		{Params{Colors: 3, BitsPerComponent: 8, Columns: 10, Predictor: 5}, false},
		{Params{Colors: 3, BitsPerComponent: 8, Columns: 10, Predictor: 16}, false},
	}
	for _, c := range cases {
		err := c.p.Validate()
		if (err == nil) != c.ok {
			t.Errorf("%v: unexpected result %v", c.p, err)
		}
	}
}

func TestPNGUp(t *testing.T) {
	p := &Params{Colors: 1, BitsPerComponent: 8, Columns: 3, Predictor: 12}
	encoded := []byte{
		2, 1, 2, 3,
		2, 1, 1, 1,
		2, 0, 0, 255,
	}
	want := []byte{1, 2, 3, 2, 3, 4, 2, 3, 3}

	r, err := NewReader(bytes.NewReader(encoded), p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Error(d)
	}
}

func TestTIFF(t *testing.T) {
	p := &Params{Colors: 2, BitsPerComponent: 8, Columns: 3, Predictor: 2}
	encoded := []byte{10, 20, 1, 2, 1, 2}
	want := []byte{10, 20, 11, 22, 12, 24}

	r, err := NewReader(bytes.NewReader(encoded), p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Error(d)
	}
}

func TestInvalidTag(t *testing.T) {
	p := &Params{Colors: 1, BitsPerComponent: 8, Columns: 2, Predictor: 15}
	encoded := []byte{0, 7, 8, 9, 1, 1}
	r, err := NewReader(bytes.NewReader(encoded), p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	if err == nil {
		t.Error("invalid tag not detected")
	}
	if d := cmp.Diff([]byte{7, 8}, got); d != "" {
		t.Error(d)
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var cases []Params
	for _, pred := range []int{1, 2, 10, 11, 12, 13, 14, 15} {
		for _, bpc := range []int{1, 2, 4, 8, 16} {
			if pred >= 10 && bpc < 8 && pred != 10 {
				// sub-byte samples are only tested with TIFF and PNG None
				continue
			}
			for _, colors := range []int{1, 3} {
				cases = append(cases, Params{
					Colors:           colors,
					BitsPerComponent: bpc,
					Columns:          7,
					Predictor:        pred,
				})
			}
		}
	}

	for _, p := range cases {
		t.Run(fmt.Sprintf("P%d-C%d-B%d", p.Predictor, p.Colors, p.BitsPerComponent), func(t *testing.T) {
			rowBytes := p.rowBytes()
			// the last row is incomplete
			data := make([]byte, 5*rowBytes+rowBytes/2+1)
			rng.Read(data)
			if p.Predictor == 2 && p.BitsPerComponent < 8 {
				// clear the padding bits at the end of each row
				pad := rowBytes*8 - p.Colors*p.Columns*p.BitsPerComponent
				for i := rowBytes - 1; i < len(data); i += rowBytes {
					data[i] &^= byte(1<<pad - 1)
				}
			}

			buf := &bytes.Buffer{}
			w, err := NewWriter(buf, &p)
			if err != nil {
				t.Fatal(err)
			}
			for i := 0; i < len(data); i += 5 {
				_, err = w.Write(data[i:min(i+5, len(data))])
				if err != nil {
					t.Fatal(err)
				}
			}
			err = w.Close()
			if err != nil {
				t.Fatal(err)
			}

			r, err := NewReader(buf, &p)
			if err != nil {
				t.Fatal(err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatal(err)
			}
			if d := cmp.Diff(data, got); d != "" {
				t.Error(d)
			}
		})
	}
}
