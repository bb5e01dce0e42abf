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
	"bytes"
	"fmt"
	"io"
	"testing"
	"testing/iotest"
)

func TestComputeOU(t *testing.T) {
	P := -4
	sec := &stdSecHandler{
		P:        uint32(P),
		ID:       testID,
		R:        4,
		keyBytes: 16,
	}
	pw, err := padPasswd("test")
	if err != nil {
		t.Fatal(err)
	}

	O := computeO(sec, pw, pw)
	goodO := "badad1e86442699427116d3e5d5271bc80a27814fc5e80f815efeef839354c5f"
	if fmt.Sprintf("%x", O) != goodO {
		t.Fatalf("wrong O value %x", O)
	}
	sec.O = O

	key := sec.fileKey(pw)
	U := sec.computeU(key)
	goodU := "a5b5fc1fcc399c6845fedcdfac82027c00000000000000000000000000000000"
	if fmt.Sprintf("%x", U) != goodU {
		t.Fatalf("wrong U value %x", U)
	}
}

func TestAuthenticate(t *testing.T) {
	for _, R := range []int{3, 4, 6} {
		e := newTestEncryption(R, "user", "owner", -4)
		fresh := func() *stdSecHandler {
			return &stdSecHandler{
				R:        R,
				ID:       testID,
				keyBytes: e.sec.keyBytes,
				O:        e.sec.O,
				U:        e.sec.U,
				OE:       e.sec.OE,
				UE:       e.sec.UE,
				Perms:    e.sec.Perms,
				P:        e.sec.P,
			}
		}

		sec := fresh()
		if sec.tryPassword("wrong", false) || sec.tryPassword("", false) {
			t.Errorf("R%d: wrong password accepted", R)
		}

		sec = fresh()
		if !sec.tryPassword("user", false) {
			t.Errorf("R%d: user password rejected", R)
		} else if sec.ownerAuthenticated || !bytes.Equal(sec.key, e.sec.key) {
			t.Errorf("R%d: wrong state after user authentication", R)
		}
		if sec.tryPassword("user", true) {
			t.Errorf("R%d: user password accepted as owner password", R)
		}

		sec = fresh()
		if !sec.tryPassword("owner", true) {
			t.Errorf("R%d: owner password rejected", R)
		} else if !sec.ownerAuthenticated || !bytes.Equal(sec.key, e.sec.key) {
			t.Errorf("R%d: wrong state after owner authentication", R)
		}
	}
}

func TestGetKey(t *testing.T) {
	e := newTestEncryption(4, "user", "owner", -4)
	var tries []int
	sec := &stdSecHandler{
		R:        4,
		ID:       testID,
		keyBytes: 16,
		O:        e.sec.O,
		U:        e.sec.U,
		P:        e.sec.P,
		readPwd: func(ID []byte, try int) string {
			tries = append(tries, try)
			if try < 2 {
				return "guess"
			}
			return "user"
		},
	}
	key, err := sec.GetKey(false)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(key, e.sec.key) {
		t.Error("wrong key")
	}
	if fmt.Sprint(tries) != "[0 1 2]" {
		t.Errorf("wrong password requests %v", tries)
	}
}

func TestDecryptStream(t *testing.T) {
	ref := NewReference(7, 0)
	for _, R := range []int{3, 4, 6} {
		e := newTestEncryption(R, "", "", -4)
		enc := &decryptContext{sec: e.sec}
		cf := &cryptFilter{cipher: e.cipher}
		for _, n := range []int{0, 1, 15, 16, 17, 511, 512, 1000} {
			data := e.random(n)
			sealed := e.encrypt(ref, data)

			for _, slow := range []bool{false, true} {
				var in io.Reader = bytes.NewReader(sealed)
				if slow {
					in = iotest.OneByteReader(in)
				}
				got, err := io.ReadAll(enc.decryptReader(ref, in, cf))
				if err != nil {
					t.Errorf("R%d, n=%d: %v", R, n, err)
					continue
				}
				if !bytes.Equal(got, data) {
					t.Errorf("R%d, n=%d: wrong data", R, n)
				}
			}
		}
	}
}

func TestDecryptBytes(t *testing.T) {
	ref := NewReference(12, 3)
	e := newTestEncryption(4, "", "", -4)
	enc := &decryptContext{sec: e.sec}
	enc.filters[purposeString] = &cryptFilter{cipher: cipherAES, bits: 128}

	sealed := e.encrypt(ref, []byte("a secret"))
	got, err := enc.decrypt(ref, sealed, purposeString)
	if err != nil || string(got) != "a secret" {
		t.Errorf("got %q %v", got, err)
	}

	for _, n := range []int{17, 20, 31} {
		_, err = enc.decrypt(ref, make([]byte, n), purposeString)
		if err != errCorrupted {
			t.Errorf("%d bytes: expected errCorrupted, got %v", n, err)
		}
	}

	// a truncated stream
	sealed = e.encrypt(ref, make([]byte, 40))
	_, err = io.ReadAll(enc.decryptReader(ref, bytes.NewReader(sealed[:40]), enc.filters[purposeString]))
	if err != errCorrupted {
		t.Errorf("expected errCorrupted, got %v", err)
	}
}

func TestPermissions(t *testing.T) {
	cases := []struct {
		R    int
		P    int32
		want Perm
	}{
		{3, -4, PermAll},
		{3, -4 &^ (1 << 2), PermAll},
		{3, -4 &^ (1 << 2) &^ (1 << 11), PermAll &^ PermPrint &^ PermPrintDegraded},
		{3, -4 &^ (1 << 11), PermAll &^ PermPrint},
		{3, -4 &^ (1 << 4), PermAll &^ PermCopy},
		{4, -4 &^ (1 << 3), PermAll &^ PermModify},
		{4, -4 &^ (1 << 3) &^ (1 << 10), PermAll &^ PermModify &^ PermAssemble},
		{4, -4 &^ (1 << 5), PermAll &^ PermAnnotate},
		{4, -4 &^ (1 << 5) &^ (1 << 8), PermAll &^ PermAnnotate &^ PermForms},
		{2, -4 &^ (1 << 2), PermAll &^ PermPrint &^ PermPrintDegraded},
	}
	for _, c := range cases {
		got := permFromP(c.R, uint32(c.P))
		if got != c.want {
			t.Errorf("R=%d P=%032b: got %07b, want %07b", c.R, uint32(c.P), got, c.want)
		}
	}
}

func TestPasswords(t *testing.T) {
	padded, err := padPasswd("")
	if err != nil || !bytes.Equal(padded, passwdPad) {
		t.Errorf("wrong padding %x %v", padded, err)
	}
	padded, err = padPasswd("abc")
	if err != nil || string(padded[:3]) != "abc" || !bytes.Equal(padded[3:], passwdPad[:29]) {
		t.Errorf("wrong padding %x %v", padded, err)
	}

	// SASLprep maps non-ASCII spaces to ASCII space
	prepped, err := utf8Passwd("a\u00a0b")
	if err != nil || string(prepped) != "a b" {
		t.Errorf("got %q %v", prepped, err)
	}
}

func TestReadFilters(t *testing.T) {
	stdCF := func(method string) Dict {
		return Dict{"StdCF": Dict{"CFM": Name(method)}}
	}
	cases := []struct {
		name     string
		dict     Dict
		want     [numPurposes]string // string, stream, embedded file
		keyBytes int
	}{
		{"V1", Dict{"V": Integer(1), "Length": Integer(128)},
			[numPurposes]string{"RC4-40", "RC4-40", "RC4-40"}, 5},
		{"V2", Dict{"V": Integer(2), "Length": Integer(128)},
			[numPurposes]string{"RC4-128", "RC4-128", "RC4-128"}, 16},
		{"V4", Dict{"V": Integer(4), "CF": stdCF("AESV2"), "StmF": Name("StdCF"), "StrF": Name("StdCF")},
			[numPurposes]string{"AES-128", "AES-128", "AES-128"}, 16},
		{"V4 plain strings", Dict{"V": Integer(4), "CF": stdCF("V2"), "StmF": Name("StdCF"), "StrF": Name("Identity")},
			[numPurposes]string{"none", "RC4-128", "RC4-128"}, 16},
		{"V5 embedded files only", Dict{"V": Integer(5), "CF": stdCF("AESV3"), "EFF": Name("StdCF")},
			[numPurposes]string{"none", "none", "AES-256"}, 32},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dc := &decryptContext{}
			keyBytes, err := dc.readFilters(mapGetter{}, c.dict)
			if err != nil {
				t.Fatal(err)
			}
			var got [numPurposes]string
			for i, cf := range dc.filters {
				got[i] = "none"
				if cf != nil {
					got[i] = cf.String()
				}
			}
			if got != c.want || keyBytes != c.keyBytes {
				t.Errorf("got %v %d, want %v %d", got, keyBytes, c.want, c.keyBytes)
			}
		})
	}

	for _, dict := range []Dict{
		{"V": Integer(2), "Length": Integer(41)},
		{"V": Integer(7)},
		{"V": Integer(4), "CF": stdCF("ROT13"), "StmF": Name("StdCF")},
		{"V": Integer(4), "StmF": Name("StdCF")},
	} {
		dc := &decryptContext{}
		if _, err := dc.readFilters(mapGetter{}, dict); err == nil {
			t.Errorf("%s: no error", dict)
		}
	}
}

// TestDecryptPurpose checks that strings and streams use their own crypt
// filters.
func TestDecryptPurpose(t *testing.T) {
	ref := NewReference(5, 0)
	e := newTestEncryption(4, "", "", -4)
	dc := &decryptContext{sec: e.sec}
	dc.filters[purposeStream] = &cryptFilter{cipher: cipherAES, bits: 128}

	got, err := dc.decrypt(ref, []byte("plain"), purposeString)
	if err != nil || string(got) != "plain" {
		t.Errorf("string: got %q %v", got, err)
	}

	sealed := e.encrypt(ref, []byte("sealed"))
	got, err = dc.decrypt(ref, sealed, purposeStream)
	if err != nil || string(got) != "sealed" {
		t.Errorf("stream: got %q %v", got, err)
	}
}
