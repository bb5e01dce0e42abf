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

// Linearization holds the values from the linearization parameter dictionary
// of a linearized ("fast web view") file.
//
// The linearization dictionary is documented in Annex F of ISO 32000-2:2020.
type Linearization struct {
	// Length is the length of the file in bytes (/L).
	Length int64

	// HintOffset and HintLength locate the primary hint stream (/H).
	HintOffset, HintLength int64

	// FirstPageObject is the object number of the first page (/O).
	FirstPageObject uint32

	// FirstPageEnd is the offset of the end of the first page (/E).
	FirstPageEnd int64

	// NumPages is the number of pages in the document (/N).
	NumPages int

	// MainXRefOffset is the offset of the first entry of the main
	// cross-reference table (/T).
	MainXRefOffset int64

	// firstXRef is the position just after the linearization dictionary,
	// where the first-page cross-reference section starts.
	firstXRef int64
}

// readLinearization checks whether the first object of the file is a
// linearization parameter dictionary.  The dictionary is only accepted if
// its /L entry matches the file size.
func (r *Reader) readLinearization() *Linearization {
	p := r.parserAt(0) // the header is a comment
	_, obj, err := p.parseIndirect()
	if err != nil {
		return nil
	}
	dict, ok := obj.(Dict)
	if !ok {
		return nil
	}
	if _, ok := dict["Linearized"]; !ok {
		return nil
	}
	L, ok := dict["L"].(Integer)
	if !ok || int64(L) != r.size {
		r.log.Debug("ignoring stale linearization dictionary",
			"L", int64(L), "size", r.size)
		return nil
	}

	lin := &Linearization{
		Length:    int64(L),
		firstXRef: p.pos(),
	}
	if H, ok := dict["H"].(Array); ok && len(H) >= 2 {
		a, _ := H[0].(Integer)
		b, _ := H[1].(Integer)
		lin.HintOffset = int64(a)
		lin.HintLength = int64(b)
	}
	if O, ok := dict["O"].(Integer); ok && O >= 0 {
		lin.FirstPageObject = uint32(O)
	}
	if E, ok := dict["E"].(Integer); ok {
		lin.FirstPageEnd = int64(E)
	}
	if N, ok := dict["N"].(Integer); ok {
		lin.NumPages = int(N)
	}
	if T, ok := dict["T"].(Integer); ok {
		lin.MainXRefOffset = int64(T)
	}
	return lin
}
