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
	"fmt"

	"golang.org/x/exp/slices"
)

// Version is a version of the PDF standard.  The zero value does not
// denote any version.
type Version int

// The PDF versions known to this package.
const (
	_ Version = iota
	V1_0
	V1_1
	V1_2
	V1_3
	V1_4
	V1_5
	V1_6
	V1_7
	V2_0
)

var versionNames = [...]string{
	V1_0: "1.0", V1_1: "1.1", V1_2: "1.2", V1_3: "1.3",
	V1_4: "1.4", V1_5: "1.5", V1_6: "1.6", V1_7: "1.7",
	V2_0: "2.0",
}

// ParseVersion converts a version string from a file header or from the
// /Version entry of the catalog, for example "1.7".
func ParseVersion(s string) (Version, error) {
	idx := slices.Index(versionNames[1:], s)
	if idx < 0 {
		return 0, errVersion
	}
	return Version(idx + 1), nil
}

// ToString is like String, but gives an error for unknown versions.
func (ver Version) ToString() (string, error) {
	if ver < V1_0 || ver > V2_0 {
		return "", errVersion
	}
	return versionNames[ver], nil
}

func (ver Version) String() string {
	if s, err := ver.ToString(); err == nil {
		return s
	}
	return fmt.Sprintf("pdfcore.Version(%d)", int(ver))
}
