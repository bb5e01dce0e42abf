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

// Package passwd provides password callbacks for opening encrypted PDF
// files.  The functions in this package return values which can be used
// for pdfcore.ReaderOptions.ReadPassword.
package passwd

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Func is the type of a password callback.  The first call for each
// authentication attempt has try == 0.  Returning the empty string aborts
// the attempt.
type Func = func(ID []byte, try int) string

// List returns a callback which tries the given passwords in order.
func List(pw ...string) Func {
	return func(_ []byte, try int) string {
		if try < len(pw) {
			return pw[try]
		}
		return ""
	}
}

// Terminal returns a callback which asks the user for a password on the
// controlling terminal.  Input is not echoed.  If standard input is not a
// terminal, the callback returns the empty string.
func Terminal(prompt string) Func {
	return terminal(int(os.Stdin.Fd()), os.Stderr, prompt)
}

var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
)

func terminal(fd int, w io.Writer, prompt string) Func {
	return func(ID []byte, try int) string {
		if !isTerminal(fd) {
			return ""
		}
		if try > 0 {
			fmt.Fprintln(w, "wrong password, please try again")
		}
		fmt.Fprint(w, prompt)
		passwd, err := readPassword(fd)
		fmt.Fprintln(w)
		if err != nil {
			return ""
		}
		return string(passwd)
	}
}

// Combine returns a callback which first uses the passwords from a, and
// then the ones from b.
func Combine(a, b Func) Func {
	offset := -1
	return func(ID []byte, try int) string {
		if try == 0 {
			offset = -1
		}
		if offset < 0 {
			if pw := a(ID, try); pw != "" {
				return pw
			}
			offset = try
		}
		return b(ID, try-offset)
	}
}
