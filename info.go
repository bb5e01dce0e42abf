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

import "time"

// DocInfo represents a PDF Document Information Dictionary.
//
// All fields are optional.  The Document Information Dictionary is
// documented in section 14.3.3 of ISO 32000-2:2020.
type DocInfo struct {
	Title    string
	Author   string
	Subject  string
	Keywords string

	// Creator gives the name of the application that created the original
	// document, if the document was converted to PDF from another format.
	Creator string

	// Producer gives the name of the application that converted the document.
	Producer string

	CreationDate time.Time
	ModDate      time.Time

	// Trapped is one of "True", "False", or "Unknown".  If the entry is
	// missing or invalid, the value is "Unknown".
	Trapped Name

	// Custom contains non-standard text fields from the dictionary.
	Custom map[string]string
}

var stdInfoKeys = map[Name]bool{
	"Title": true, "Author": true, "Subject": true, "Keywords": true,
	"Creator": true, "Producer": true, "CreationDate": true, "ModDate": true,
	"Trapped": true,
}

// ExtractInfo decodes a document information dictionary.
// If obj is null, the function returns nil.
//
// Entries of the wrong type are ignored.  Errors are only returned if
// the dictionary itself cannot be read.
func ExtractInfo(r Getter, obj Object) (*DocInfo, error) {
	dict, err := GetDict(r, obj)
	if err != nil {
		return nil, err
	}
	if dict == nil {
		return nil, nil
	}

	text := func(key Name) string {
		s, _ := GetString(r, dict[key])
		return s.AsTextString()
	}
	date := func(key Name) time.Time {
		s, _ := GetString(r, dict[key])
		if s == nil {
			return time.Time{}
		}
		t, _ := s.AsDate()
		return t
	}

	info := &DocInfo{
		Title:        text("Title"),
		Author:       text("Author"),
		Subject:      text("Subject"),
		Keywords:     text("Keywords"),
		Creator:      text("Creator"),
		Producer:     text("Producer"),
		CreationDate: date("CreationDate"),
		ModDate:      date("ModDate"),
		Trapped:      "Unknown",
	}
	if trapped, _ := GetName(r, dict["Trapped"]); trapped == "True" || trapped == "False" {
		info.Trapped = trapped
	} else if b, ok := dict["Trapped"].(Bool); ok {
		// PDF 1.3 files use a boolean here
		info.Trapped = "False"
		if b {
			info.Trapped = "True"
		}
	}

	for key := range dict {
		if stdInfoKeys[key] {
			continue
		}
		if s := text(key); s != "" {
			if info.Custom == nil {
				info.Custom = make(map[string]string)
			}
			info.Custom[string(key)] = s
		}
	}
	return info, nil
}

// DocInfo returns the decoded document information dictionary.
// If the file has no /Info entry in the trailer, nil is returned.
func (r *Reader) DocInfo() (*DocInfo, error) {
	return ExtractInfo(r, r.Trailer()["Info"])
}
