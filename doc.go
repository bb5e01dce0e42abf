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

// Package pdfcore implements the object layer of a PDF reader.
//
// This package treats PDF files as containers holding numbered objects
// (typically dictionaries and streams), which can be read in any order.
// Damaged files are read on a best effort basis: if the cross-reference
// information is broken, it is rebuilt by scanning the file.
//
// A [Reader] gives access to the objects of an existing PDF file:
//
//	r, err := pdfcore.Open("in.pdf", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//	catalog, err := r.Catalog()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pages, err := pdfcore.GetDict(r, catalog["Pages"])
//	...
//
// Stream data is read using [Reader.GetStreamReader], which applies the
// filters named in the stream dictionary.  Encrypted files are decrypted
// transparently; [ReaderOptions.ReadPassword] is consulted if the empty
// password does not work.  How recoverable problems are treated is
// controlled by [ReaderOptions.ErrorHandling].
//
// The following types implement the native PDF object types.
// All of these implement the [Object] interface:
//
//	Array
//	Bool
//	Dict
//	Integer
//	Name
//	Real
//	Reference
//	*Stream
//	String
//
// The PDF null object is represented by nil.
//
// The subpackage loader provides a [Source] which fetches file data over
// HTTP or from a slow [io.ReaderAt], and passwd provides an interactive
// password prompt.
package pdfcore
