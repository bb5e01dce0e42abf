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
	"strconv"
	"strings"
)

var (
	// ErrLexical indicates a malformed token.
	ErrLexical = errors.New("malformed token")

	// ErrSyntax indicates a malformed object, for example an unterminated
	// array or dictionary.
	ErrSyntax = errors.New("syntax error")

	// ErrShortRead is returned together with the available data when a
	// read extends beyond the end of the input.
	ErrShortRead = errors.New("short read")

	// ErrTrailerNotFound indicates that no usable "startxref" or trailer
	// was found.
	ErrTrailerNotFound = errors.New("trailer not found")

	// ErrCorruptXRef indicates that the cross-reference information of a
	// file cannot be used.
	ErrCorruptXRef = errors.New("corrupt cross-reference information")

	// ErrReferenceCycle indicates a chain of references which does not end
	// in a direct object.
	ErrReferenceCycle = errors.New("too many levels of indirection")

	// ErrUnsupportedFilter is used when a stream uses a filter which is not
	// implemented by this library.
	ErrUnsupportedFilter = errors.New("unsupported filter")

	errVersion         = errors.New("unsupported PDF version")
	errCorrupted       = errors.New("corrupted ciphertext")
	errInvalidPassword = errors.New("invalid password")
	errNoDate          = errors.New("not a valid date string")
)

// MalformedFileError indicates that a PDF file could not be parsed.
type MalformedFileError struct {
	Pos int64
	Err error
	Loc []string
}

func (err *MalformedFileError) Error() string {
	parts := []string{}
	for i := len(err.Loc) - 1; i >= 0; i-- {
		parts = append(parts, err.Loc[i])
	}
	middle := ""
	if err.Err != nil {
		parts = append(parts, err.Err.Error())
	}
	if len(parts) > 0 {
		middle = ": " + strings.Join(parts, ": ")
	}
	tail := ""
	if err.Pos > 0 {
		tail = " (at byte " + strconv.FormatInt(err.Pos, 10) + ")"
	}
	return "not a valid PDF file" + middle + tail
}

func (err *MalformedFileError) Unwrap() error {
	return err.Err
}

// wrap adds location information to an error.
// If err is not a MalformedFileError, it is returned unchanged.
func wrap(err error, loc string) error {
	var e *MalformedFileError
	if !errors.As(err, &e) {
		return err
	}
	e.Loc = append(e.Loc, loc)
	return err
}

// DocumentUnreadableError is returned when neither the cross-reference
// information nor a full scan of the file lead to a usable document.
type DocumentUnreadableError struct {
	Err error
}

func (err *DocumentUnreadableError) Error() string {
	if err.Err == nil {
		return "PDF document is unreadable"
	}
	return "PDF document is unreadable: " + err.Err.Error()
}

func (err *DocumentUnreadableError) Unwrap() error {
	return err.Err
}

// DecodeError records a problem found while decoding stream data.
// Data decoded before the problem was found has already been delivered
// to the reader of the stream.
type DecodeError struct {
	Filter Name
	Err    error
}

func (err *DecodeError) Error() string {
	if err.Filter == "" {
		return "stream decoding failed: " + err.Err.Error()
	}
	return fmt.Sprintf("%s: %s", err.Filter, err.Err)
}

func (err *DecodeError) Unwrap() error {
	return err.Err
}

// AuthenticationError indicates that none of the supplied passwords could
// unlock the document.
type AuthenticationError struct {
	ID []byte
}

func (err *AuthenticationError) Error() string {
	return "authentication failed for document ID " + fmt.Sprintf("%x", err.ID)
}

// ErrorHandling selects how a Reader deals with recoverable problems in a
// file.
type ErrorHandling int

const (
	// ErrorHandlingRecover replaces damaged objects by null, truncates
	// damaged streams, and logs the problem.
	ErrorHandlingRecover ErrorHandling = iota

	// ErrorHandlingReport behaves like ErrorHandlingRecover, and
	// additionally collects all problems.  The collected errors can be
	// retrieved using [Reader.Errors].
	ErrorHandlingReport

	// ErrorHandlingStop returns recoverable errors to the caller.
	ErrorHandlingStop
)
