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
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rc4"
	"errors"
	"fmt"
	"io"
)

// cryptPurpose distinguishes the kinds of data in an encrypted file.  From
// PDF 1.5 on, each kind can use its own crypt filter.
type cryptPurpose int

const (
	purposeString cryptPurpose = iota
	purposeStream
	purposeEmbeddedFile

	numPurposes
)

// decryptContext holds everything needed to decrypt the strings and
// streams of a document.  It is built once, when the file is opened.
// After the password has been checked, only the owner authentication
// state of the security handler can change.
type decryptContext struct {
	sec *stdSecHandler

	// filters gives the crypt filter for each purpose.  A nil entry
	// means that the data is stored in plain text.
	filters [numPurposes]*cryptFilter

	// named holds the entries of /CF, for streams with a /Crypt filter.
	named map[Name]*cryptFilter

	userPerm Perm
}

// cipherKind is the block or stream cipher used by a crypt filter.
type cipherKind uint8

const (
	cipherRC4 cipherKind = iota + 1
	cipherAES
)

func (c cipherKind) String() string {
	switch c {
	case cipherRC4:
		return "RC4"
	case cipherAES:
		return "AES"
	}
	return fmt.Sprintf("cipher%d", uint8(c))
}

type cryptFilter struct {
	cipher cipherKind
	bits   int // key length
}

func (cf *cryptFilter) String() string {
	return fmt.Sprintf("%s-%d", cf.cipher, cf.bits)
}

// newDecryptContext reads the encryption dictionary and sets up the
// security handler.  The password is not checked here.
func newDecryptContext(g Getter, encObj Object, ID []byte, readPwd ReadPwdFunc) (*decryptContext, error) {
	dict, err := GetDict(g, encObj)
	if err != nil {
		return nil, err
	}
	if dict == nil {
		return nil, &MalformedFileError{Err: errors.New("missing encryption dictionary")}
	}

	handler, err := GetName(g, dict["Filter"])
	if err != nil {
		return nil, err
	}
	if handler != "Standard" {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("unsupported security handler /%s", handler),
		}
	}

	c := &decryptContext{}
	keyBytes, err := c.readFilters(g, dict)
	if err != nil {
		return nil, err
	}

	c.sec, err = newStdSecHandler(g, dict, keyBytes, ID, readPwd)
	if err != nil {
		return nil, wrap(err, "standard security handler")
	}
	c.userPerm = permFromP(c.sec.R, c.sec.P)
	return c, nil
}

// readFilters sets up the crypt filters for the algorithm /V and returns
// the length of the file encryption key in bytes.
func (c *decryptContext) readFilters(g Getter, dict Dict) (int, error) {
	V, err := GetInt(g, dict["V"])
	if err != nil {
		return 0, err
	}

	if V == 1 || V == 2 || V == 3 {
		// the same RC4 key for everything
		cf := &cryptFilter{cipher: cipherRC4, bits: 40}
		if length, ok := dict["Length"].(Integer); ok && V > 1 {
			if length < 40 || length > 128 || length%8 != 0 {
				return 0, &MalformedFileError{
					Err: fmt.Errorf("invalid key length %d", length),
				}
			}
			cf.bits = int(length)
		}
		for i := range c.filters {
			c.filters[i] = cf
		}
		return cf.bits / 8, nil
	}
	if V != 4 && V != 5 {
		return 0, &MalformedFileError{
			Err: fmt.Errorf("unsupported encryption algorithm V=%d", V),
		}
	}

	CF, _ := GetDict(g, dict["CF"])
	c.named = make(map[Name]*cryptFilter, len(CF))
	for name := range CF {
		cf, err := lookupCryptFilter(g, CF, name)
		if err != nil {
			return 0, wrap(err, "CF")
		}
		c.named[name] = cf
	}

	entries := [numPurposes]Name{
		purposeString:       "StrF",
		purposeStream:       "StmF",
		purposeEmbeddedFile: "EFF",
	}
	for purpose, key := range entries {
		name, ok := dict[key].(Name)
		if !ok {
			continue
		}
		cf, err := lookupCryptFilter(g, CF, name)
		if err != nil {
			return 0, wrap(err, string(key))
		}
		c.filters[purpose] = cf
	}
	if _, ok := dict["EFF"].(Name); !ok {
		c.filters[purposeEmbeddedFile] = c.filters[purposeStream]
	}

	if V == 4 {
		return 16, nil
	}
	return 32, nil
}

// lookupCryptFilter returns the crypt filter called name.  The Identity
// filter, and filters without encryption, are represented by nil.
func lookupCryptFilter(g Getter, CF Dict, name Name) (*cryptFilter, error) {
	if name == "Identity" {
		return nil, nil
	}
	cfDict, err := GetDict(g, CF[name])
	if err != nil || cfDict == nil {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("crypt filter /%s not found", name),
		}
	}

	method, _ := GetName(g, cfDict["CFM"])
	switch method {
	case "None":
		return nil, nil
	case "V2":
		return &cryptFilter{cipher: cipherRC4, bits: 128}, nil
	case "AESV2":
		return &cryptFilter{cipher: cipherAES, bits: 128}, nil
	case "AESV3":
		return &cryptFilter{cipher: cipherAES, bits: 256}, nil
	}
	return nil, &MalformedFileError{Err: fmt.Errorf("unknown crypt filter method /%s", method)}
}

// decrypt decrypts data which belongs to the indirect object ref.  The
// contents of data are overwritten.
func (c *decryptContext) decrypt(ref Reference, data []byte, purpose cryptPurpose) ([]byte, error) {
	cf := c.filters[purpose]
	if cf == nil || len(data) == 0 {
		return data, nil
	}

	key := c.sec.objectKey(ref, cf.cipher)
	if cf.cipher == cipherRC4 {
		s, err := rc4.NewCipher(key)
		if err != nil {
			return nil, err
		}
		s.XORKeyStream(data, data)
		return data, nil
	}

	if len(data) < 2*aes.BlockSize || len(data)%aes.BlockSize != 0 {
		return nil, errCorrupted
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv, body := data[:aes.BlockSize], data[aes.BlockSize:]
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(body, body)
	return unpad(body)
}

// decryptReader is the streaming form of decrypt.  Decryption starts on
// the first call to Read.
func (c *decryptContext) decryptReader(ref Reference, r io.Reader, cf *cryptFilter) io.Reader {
	key := c.sec.objectKey(ref, cf.cipher)
	if cf.cipher == cipherRC4 {
		s, _ := rc4.NewCipher(key)
		return &cipher.StreamReader{S: s, R: r}
	}
	return &aesReader{src: r, key: key}
}

// streamFilter selects the crypt filter for a stream.  The result is nil
// if the stream data is not encrypted.
func (c *decryptContext) streamFilter(stm *Stream, filters []FilterInfo) *cryptFilter {
	if len(filters) > 0 && filters[0].Name == "Crypt" {
		name, _ := filters[0].Parms["Name"].(Name)
		if name == "" || name == "Identity" {
			return nil
		}
		return c.named[name]
	}

	switch stm.Dict["Type"] {
	case Name("XRef"):
		return nil
	case Name("Metadata"):
		if c.sec.plainMetadata {
			return nil
		}
	case Name("EmbeddedFile"):
		return c.filters[purposeEmbeddedFile]
	}
	return c.filters[purposeStream]
}

// objectKey computes the key for the strings and streams of one object,
// using Algorithm 1 of ISO 32000-2.  From revision 5 on, the file key is
// used unchanged.
func (sec *stdSecHandler) objectKey(ref Reference, kind cipherKind) []byte {
	if sec.R >= 5 {
		return sec.key
	}

	num, gen := ref.Number(), ref.Generation()
	h := md5.New()
	h.Write(sec.key)
	h.Write([]byte{byte(num), byte(num >> 8), byte(num >> 16), byte(gen), byte(gen >> 8)})
	if kind == cipherAES {
		h.Write([]byte("sAlT"))
	}
	return h.Sum(nil)[:min(sec.keyBytes+5, 16)]
}

func unpad(plain []byte) ([]byte, error) {
	if len(plain) == 0 {
		return nil, errCorrupted
	}
	n := int(plain[len(plain)-1])
	if n < 1 || n > aes.BlockSize || n > len(plain) {
		return nil, errCorrupted
	}
	return plain[:len(plain)-n], nil
}

// aesReader decrypts AES-CBC data.  The first block of the input is the
// initialization vector.  Since the padding can only be removed at the end
// of the data, the last decrypted block is held back until more input
// arrives.
type aesReader struct {
	src  io.Reader
	key  []byte
	mode cipher.BlockMode

	chunk []byte // ciphertext
	plain []byte
	held  []byte
	out   []byte

	done bool
	err  error
}

const aesChunkSize = 32 * aes.BlockSize

func (a *aesReader) Read(p []byte) (int, error) {
	for len(a.out) == 0 {
		if a.err != nil {
			return 0, a.err
		}
		a.err = a.next()
	}
	n := copy(p, a.out)
	a.out = a.out[n:]
	return n, nil
}

// next decrypts the next chunk of input and makes the result available
// in a.out.
func (a *aesReader) next() error {
	if a.done {
		return io.EOF
	}

	if a.mode == nil {
		iv := make([]byte, aes.BlockSize)
		_, err := io.ReadFull(a.src, iv)
		if err == io.EOF {
			return io.EOF
		} else if err == io.ErrUnexpectedEOF {
			return errCorrupted
		} else if err != nil {
			return err
		}
		block, err := aes.NewCipher(a.key)
		if err != nil {
			return err
		}
		a.mode = cipher.NewCBCDecrypter(block, iv)
		a.chunk = make([]byte, aesChunkSize)
	}

	n, err := io.ReadFull(a.src, a.chunk)
	last := err == io.EOF || err == io.ErrUnexpectedEOF
	if err != nil && !last {
		return err
	}
	if n%aes.BlockSize != 0 {
		return errCorrupted
	}
	data := a.chunk[:n]
	a.mode.CryptBlocks(data, data)

	a.plain = append(append(a.plain[:0], a.held...), data...)
	if !last {
		keep := len(a.plain) - aes.BlockSize
		a.held = append(a.held[:0], a.plain[keep:]...)
		a.out = a.plain[:keep]
		return nil
	}

	a.done = true
	a.held = nil
	if len(a.plain) == 0 {
		return io.EOF
	}
	a.out, err = unpad(a.plain)
	return err
}
