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
)

// defaultMaxDepth bounds the length of reference chains.
const defaultMaxDepth = 16

// Getter represents a source of indirect objects, for example a [Reader].
type Getter interface {
	Get(Reference) (Object, error)
}

// Resolve follows references through g until a direct object is found.
// Objects which are not references are returned unchanged.
//
// When g is a [*Reader], this is the same as [Reader.Resolve].  For other
// getters, a chain of more than 16 references gives an error wrapping
// [ErrReferenceCycle].
func Resolve(g Getter, obj Object) (Object, error) {
	if r, ok := g.(*Reader); ok {
		return r.Resolve(obj)
	}

	start, _ := obj.(Reference)
	for depth := 0; ; depth++ {
		ref, ok := obj.(Reference)
		if !ok {
			return obj, nil
		}
		if depth == defaultMaxDepth {
			return nil, &MalformedFileError{
				Err: ErrReferenceCycle,
				Loc: []string{"object " + start.String()},
			}
		}
		var err error
		if obj, err = g.Get(ref); err != nil {
			return nil, err
		}
	}
}

// The Get* functions resolve obj and check its type.  A null object gives
// the zero value and no error, an object of a different type gives a
// [*MalformedFileError].

func resolveAndCast[T Object](g Getter, obj Object) (T, error) {
	var zero T
	obj, err := Resolve(g, obj)
	if err != nil || obj == nil {
		return zero, err
	}
	if x, ok := obj.(T); ok {
		return x, nil
	}
	return zero, wrongType(zero, obj)
}

func wrongType(want, got Object) error {
	return &MalformedFileError{
		Err: fmt.Errorf("expected %T but got %T", want, got),
	}
}

// GetArray returns obj, resolved, as [Array].
func GetArray(g Getter, obj Object) (Array, error) { return resolveAndCast[Array](g, obj) }

// GetBool returns obj, resolved, as [Bool].
func GetBool(g Getter, obj Object) (Bool, error) { return resolveAndCast[Bool](g, obj) }

// GetDict returns obj, resolved, as [Dict].
func GetDict(g Getter, obj Object) (Dict, error) { return resolveAndCast[Dict](g, obj) }

// GetInt returns obj, resolved, as [Integer].
func GetInt(g Getter, obj Object) (Integer, error) { return resolveAndCast[Integer](g, obj) }

// GetName returns obj, resolved, as [Name].
func GetName(g Getter, obj Object) (Name, error) { return resolveAndCast[Name](g, obj) }

// GetReal returns obj, resolved, as [Real].
func GetReal(g Getter, obj Object) (Real, error) { return resolveAndCast[Real](g, obj) }

// GetStream returns obj, resolved, as a stream.
func GetStream(g Getter, obj Object) (*Stream, error) { return resolveAndCast[*Stream](g, obj) }

// GetString returns obj, resolved, as [String].
func GetString(g Getter, obj Object) (String, error) { return resolveAndCast[String](g, obj) }

// GetNumber resolves obj and converts [Integer] and [Real] values to
// float64.
func GetNumber(g Getter, obj Object) (float64, error) {
	obj, err := Resolve(g, obj)
	switch x := obj.(type) {
	case Integer:
		return float64(x), nil
	case Real:
		return float64(x), nil
	case nil:
		return 0, err
	default:
		return 0, wrongType(Real(0), obj)
	}
}
