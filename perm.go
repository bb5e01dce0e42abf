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

// Perm describes which operations are permitted when accessing the document
// with User access (but not Owner access).  The user can always view the
// document.
//
// The permissions are only reported, enforcing them is left to the caller.
type Perm int

const (
	// PermCopy allows to extract text and graphics.
	PermCopy Perm = 1 << iota

	// PermPrintDegraded allows printing of a possibly degraded
	// representation of the page.
	PermPrintDegraded

	// PermPrint allows faithful printing.  This implies PermPrintDegraded.
	PermPrint

	// PermForms allows to fill in form fields, including signature fields.
	PermForms

	// PermAnnotate allows to add or modify annotations.  This implies
	// PermForms.
	PermAnnotate

	// PermAssemble allows to insert, rotate, or delete pages and to create
	// bookmarks or thumbnail images.
	PermAssemble

	// PermModify allows other changes to the document.  This implies
	// PermAssemble.
	PermModify

	permEnd

	// PermAll is the set of all permissions.  User access with PermAll is
	// equivalent to owner access.
	PermAll = permEnd - 1
)

// permFromP converts the /P value of the standard security handler
// into a Perm.  Bits are numbered from 1, as in ISO 32000-2 table 22.
func permFromP(R int, P uint32) Perm {
	set := func(bit int) bool { return P&(1<<(bit-1)) != 0 }

	perm := PermAll
	switch {
	case !set(3) && (R == 2 || !set(12)):
		perm &^= PermPrint | PermPrintDegraded
	case !set(3):
		// bit 12 without bit 3 is taken to allow printing
	case R >= 3 && !set(12):
		perm &^= PermPrint
	}

	// A cleared "parent" bit leaves the weaker permission to the
	// second bit.
	rules := []struct {
		bit, weakBit int
		strong, weak Perm
	}{
		{4, 11, PermModify, PermAssemble},
		{6, 9, PermAnnotate, PermForms},
	}
	for _, rule := range rules {
		if !set(rule.bit) {
			perm &^= rule.strong
			if !set(rule.weakBit) {
				perm &^= rule.weak
			}
		}
	}
	if !set(5) {
		perm &^= PermCopy
	}
	return perm
}
