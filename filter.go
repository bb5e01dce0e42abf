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

	"seehuhn.de/go/pdfcore/internal/filter/ascii85"
	"seehuhn.de/go/pdfcore/internal/filter/asciihex"
	"seehuhn.de/go/pdfcore/internal/filter/ccittfax"
	"seehuhn.de/go/pdfcore/internal/filter/dct"
	"seehuhn.de/go/pdfcore/internal/filter/flate"
	"seehuhn.de/go/pdfcore/internal/filter/lzw"
	"seehuhn.de/go/pdfcore/internal/filter/predict"
	"seehuhn.de/go/pdfcore/internal/filter/runlength"
)

// FilterInfo describes one stage of the filter chain of a stream.
type FilterInfo struct {
	// Name is the full name of the filter.  Abbreviated names, as used
	// in inline images, are expanded.
	Name Name

	// Parms holds the decode parameters for this filter.  References
	// in the top level of the dictionary have been resolved.
	Parms Dict
}

var filterAbbrev = map[Name]Name{
	"AHx": "ASCIIHexDecode",
	"A85": "ASCII85Decode",
	"LZW": "LZWDecode",
	"Fl":  "FlateDecode",
	"RL":  "RunLengthDecode",
	"CCF": "CCITTFaxDecode",
	"DCT": "DCTDecode",
}

// StreamFilters returns the filter chain of a stream, in the order in which
// the filters must be applied to decode the stream data.
func (r *Reader) StreamFilters(stm *Stream) ([]FilterInfo, error) {
	return filtersFromDict(stm.Dict, r.Resolve)
}

// filtersFromDict reads /Filter and /DecodeParms from a stream dictionary.
func filtersFromDict(dict Dict, resolve func(Object) (Object, error)) ([]FilterInfo, error) {
	filter, err := resolve(dict["Filter"])
	if err != nil {
		return nil, err
	}
	parms, err := resolve(dict["DecodeParms"])
	if err != nil {
		return nil, err
	}

	var names Array
	switch f := filter.(type) {
	case nil:
		return nil, nil
	case Name:
		names = Array{f}
	case Array:
		names = f
	default:
		return nil, &MalformedFileError{
			Err: fmt.Errorf("invalid /Filter %s", Format(filter)),
		}
	}

	res := make([]FilterInfo, 0, len(names))
	for i, obj := range names {
		obj, err := resolve(obj)
		if err != nil {
			return nil, err
		}
		name, ok := obj.(Name)
		if !ok {
			return nil, &MalformedFileError{
				Err: fmt.Errorf("invalid filter name %s", Format(obj)),
			}
		}
		if full, ok := filterAbbrev[name]; ok {
			name = full
		}

		var p Object
		switch parms := parms.(type) {
		case Array:
			if i < len(parms) {
				p = parms[i]
			}
		case Dict:
			if i == 0 {
				p = parms
			}
		}
		p, err = resolve(p)
		if err != nil {
			return nil, err
		}
		pDict, _ := p.(Dict)
		if pDict != nil {
			resolved := make(Dict, len(pDict))
			for key, val := range pDict {
				val, err := resolve(val)
				if err != nil {
					return nil, err
				}
				resolved[key] = val
			}
			pDict = resolved
		}
		res = append(res, FilterInfo{Name: name, Parms: pDict})
	}
	return res, nil
}

// noRefs is used to decode streams before the cross-reference table is
// available.
func noRefs(obj Object) (Object, error) {
	if ref, ok := obj.(Reference); ok {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("unexpected reference %s in cross-reference stream", ref),
		}
	}
	return obj, nil
}

// decode adds the decoding stage for this filter on top of r.
// For the /Crypt filter, r is returned unchanged since decryption is
// handled separately.
func (fi FilterInfo) decode(r io.Reader) (io.Reader, error) {
	switch fi.Name {
	case "ASCIIHexDecode":
		return asciihex.Decode(r), nil
	case "ASCII85Decode":
		return ascii85.Decode(r), nil
	case "LZWDecode":
		early := fi.intParm("EarlyChange", 1)
		return fi.withPredictor(lzw.Decode(r, early != 0))
	case "FlateDecode":
		zr, err := flate.Decode(r)
		if err != nil {
			return nil, err
		}
		return fi.withPredictor(zr)
	case "RunLengthDecode":
		return runlength.Decode(r), nil
	case "CCITTFaxDecode":
		p := &ccittfax.Params{
			K:       fi.intParm("K", 0),
			Columns: fi.intParm("Columns", ccittfax.DefaultColumns),
			Rows:    fi.intParm("Rows", 0),
		}
		blackIs1, _ := fi.Parms["BlackIs1"].(Bool)
		byteAlign, _ := fi.Parms["EncodedByteAlign"].(Bool)
		p.BlackIs1 = bool(blackIs1)
		p.EncodedByteAlign = bool(byteAlign)
		return ccittfax.Decode(r, p)
	case "DCTDecode":
		return dct.Decode(r), nil
	case "Crypt":
		return r, nil
	case "JPXDecode", "JBIG2Decode":
		return nil, ErrUnsupportedFilter
	default:
		return nil, fmt.Errorf("%w /%s", ErrUnsupportedFilter, fi.Name)
	}
}

func (fi FilterInfo) withPredictor(r io.Reader) (io.Reader, error) {
	p := &predict.Params{
		Predictor:        fi.intParm("Predictor", 1),
		Colors:           fi.intParm("Colors", 1),
		BitsPerComponent: fi.intParm("BitsPerComponent", 8),
		Columns:          fi.intParm("Columns", 1),
	}
	res, err := predict.NewReader(r, p)
	if err != nil {
		return nil, err
	}
	if c, ok := r.(io.Closer); ok && res != r {
		return readCloser{res, c}, nil
	}
	return res, nil
}

func (fi FilterInfo) intParm(key Name, dflt int) int {
	if x, ok := fi.Parms[key].(Integer); ok {
		return int(x)
	}
	return dflt
}

type readCloser struct {
	io.Reader
	io.Closer
}

// stage wraps the output of one filter, converting errors into
// DecodeErrors which name the filter.
type stage struct {
	r    io.Reader
	name Name
}

func (s *stage) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		var dErr *DecodeError
		if !errors.As(err, &dErr) {
			err = &DecodeError{Filter: s.name, Err: err}
		}
	}
	return n, err
}

func (s *stage) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// bootstrapStream returns the decoded data of a cross-reference stream.
// This is used while the cross-reference table is being built, so
// /Length, /Filter and /DecodeParms must be direct objects.  An indirect
// /Length is ignored and the end of the stream data is found by searching
// for the "endstream" keyword.
func (r *Reader) bootstrapStream(stm *Stream) (io.Reader, error) {
	n, err := r.streamLength(stm, nil)
	if err != nil {
		if e := r.softError(err, stm.Ref); e != nil {
			return nil, e
		}
	}
	filters, err := filtersFromDict(stm.Dict, noRefs)
	if err != nil {
		return nil, err
	}

	var body io.Reader = io.NewSectionReader(r.src, stm.pos, n)
	for _, fi := range filters {
		next, err := fi.decode(body)
		if err != nil {
			return nil, &DecodeError{Filter: fi.Name, Err: err}
		}
		body = &stage{r: next, name: fi.Name}
	}
	return body, nil
}
