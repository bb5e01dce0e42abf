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
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"

	"github.com/xdg-go/stringprep"
)

// stdSecHandler implements the password based standard security handler
// of ISO 32000-2, section 7.6.4.  Revisions 2 to 4 derive the keys with
// MD5 and RC4, revisions 5 and 6 use SHA-2 and AES-256.
type stdSecHandler struct {
	R  int
	ID []byte // first element of the trailer /ID

	// O and U are the owner and user validation strings.  For R >= 5,
	// bytes 32 to 39 are the validation salt and bytes 40 to 47 are the
	// key salt.
	O, U []byte

	// OE and UE hold the file key, encrypted with the owner and user
	// password (R >= 5 only).
	OE, UE []byte

	Perms []byte // R = 6 only
	P     uint32

	keyBytes int

	// plainMetadata is set if /EncryptMetadata is false.
	plainMetadata bool

	readPwd ReadPwdFunc

	// key is the file encryption key, once a password has been accepted.
	key                []byte
	ownerAuthenticated bool
}

func newStdSecHandler(g Getter, dict Dict, keyBytes int, ID []byte, readPwd ReadPwdFunc) (*stdSecHandler, error) {
	invalid := func(key Name) error {
		return &MalformedFileError{Err: fmt.Errorf("invalid /%s in encryption dictionary", key)}
	}
	str := func(key Name, minLen, maxLen int) ([]byte, error) {
		s, err := GetString(g, dict[key])
		if err != nil || len(s) < minLen || len(s) > maxLen {
			return nil, invalid(key)
		}
		return []byte(s), nil
	}

	R, err := GetInt(g, dict["R"])
	if err != nil || R < 2 || R > 6 {
		return nil, invalid("R")
	}
	if R <= 4 && ID == nil {
		return nil, &MalformedFileError{Err: errors.New("encrypted file without /ID")}
	}
	P, err := GetInt(g, dict["P"])
	if err != nil {
		return nil, invalid("P")
	}

	sec := &stdSecHandler{
		R:        int(R),
		ID:       ID,
		P:        uint32(P),
		keyBytes: keyBytes,
		readPwd:  readPwd,
	}
	if V, _ := GetInt(g, dict["V"]); V >= 4 {
		emd, ok := dict["EncryptMetadata"].(Bool)
		sec.plainMetadata = ok && !bool(emd)
	}

	// Some writers pad O and U, only the first 32 or 48 bytes are used.
	n := 32
	if R >= 5 {
		n = 48
	}
	if sec.O, err = str("O", n, 1<<16); err != nil {
		return nil, err
	}
	if sec.U, err = str("U", n, 1<<16); err != nil {
		return nil, err
	}
	sec.O, sec.U = sec.O[:n], sec.U[:n]

	if R >= 5 {
		if sec.OE, err = str("OE", 32, 32); err != nil {
			return nil, err
		}
		if sec.UE, err = str("UE", 32, 32); err != nil {
			return nil, err
		}
	}
	if R == 6 {
		if sec.Perms, err = str("Perms", 16, 16); err != nil {
			return nil, err
		}
	}
	return sec, nil
}

// GetKey returns the file encryption key.  The empty password is tried
// first.  After that, passwords are obtained from the readPwd callback
// until one is accepted or the callback returns the empty string.  If
// needOwner is set, only the owner password is accepted.
func (sec *stdSecHandler) GetKey(needOwner bool) ([]byte, error) {
	if sec.key != nil && (sec.ownerAuthenticated || !needOwner) {
		return sec.key, nil
	}

	passwd := ""
	for try := 0; ; try++ {
		if sec.tryPassword(passwd, needOwner) {
			return sec.key, nil
		}
		passwd = ""
		if sec.readPwd != nil {
			passwd = sec.readPwd(sec.ID, try)
		}
		if passwd == "" {
			return nil, &AuthenticationError{sec.ID}
		}
	}
}

// tryPassword checks passwd, first as the owner password and then, unless
// needOwner is set, as the user password.  On success, the file key is
// stored in sec.
func (sec *stdSecHandler) tryPassword(passwd string, needOwner bool) bool {
	var pw []byte
	var err error
	ownerKey, userKey := sec.ownerKeyRC4, sec.userKeyRC4
	if sec.R >= 5 {
		pw, err = utf8Passwd(passwd)
		ownerKey, userKey = sec.ownerKeyAES, sec.userKeyAES
	} else {
		pw, err = padPasswd(passwd)
	}
	if err != nil {
		return false
	}

	if key := ownerKey(pw); key != nil {
		sec.key = key
		sec.ownerAuthenticated = true
		return true
	}
	if needOwner {
		return false
	}
	if key := userKey(pw); key != nil {
		sec.key = key
		return true
	}
	return false
}

// fileKey derives the file encryption key from a padded user password
// (Algorithm 2, R <= 4).
func (sec *stdSecHandler) fileKey(paddedUser []byte) []byte {
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], sec.P)

	h := md5.New()
	for _, part := range [][]byte{paddedUser, sec.O, p[:], sec.ID} {
		h.Write(part)
	}
	if sec.R >= 4 && sec.plainMetadata {
		h.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}
	key := h.Sum(nil)

	if sec.R >= 3 {
		for range 50 {
			sum := md5.Sum(key[:sec.keyBytes])
			key = sum[:]
		}
	}
	return key[:sec.keyBytes]
}

// rc4OwnerKey computes the RC4 key which protects the padded user
// password inside O (Algorithm 3, steps a to d).
func (sec *stdSecHandler) rc4OwnerKey(paddedOwner []byte) []byte {
	sum := md5.Sum(paddedOwner)
	key := sum[:]
	if sec.R >= 3 {
		// Each round only hashes the first keyBytes bytes.
		for range 50 {
			sum = md5.Sum(key[:sec.keyBytes])
			key = sum[:]
		}
	}
	return key[:sec.keyBytes]
}

// rc4Passes encrypts buf in place with RC4, once for each of the keys
// key XOR i, where i runs from first to last.  The loop counts down if
// first > last.
func rc4Passes(key, buf []byte, first, last int) {
	step := 1
	if first > last {
		step = -1
	}
	k := make([]byte, len(key))
	for i := first; ; i += step {
		for j := range k {
			k[j] = key[j] ^ byte(i)
		}
		c, _ := rc4.NewCipher(k)
		c.XORKeyStream(buf, buf)
		if i == last {
			return
		}
	}
}

// computeU computes the value of U for a given file key (Algorithms 4
// and 5).  For R >= 3, the last 16 bytes are zero padding.
func (sec *stdSecHandler) computeU(key []byte) []byte {
	if sec.R == 2 {
		U := bytes.Clone(passwdPad)
		rc4Passes(key, U, 0, 0)
		return U
	}

	h := md5.New()
	h.Write(passwdPad)
	h.Write(sec.ID)
	U := h.Sum(make([]byte, 0, 32))
	rc4Passes(key, U, 0, 19)
	return append(U, make([]byte, 16)...)
}

// userKeyRC4 checks a padded user password (Algorithm 6) and returns the
// file key, or nil if the password is wrong.
func (sec *stdSecHandler) userKeyRC4(paddedUser []byte) []byte {
	key := sec.fileKey(paddedUser)
	n := 16
	if sec.R == 2 {
		n = 32
	}
	if !bytes.Equal(sec.computeU(key)[:n], sec.U[:n]) {
		return nil
	}
	return key
}

// ownerKeyRC4 checks a padded owner password (Algorithm 7).  O contains
// the encrypted user password, so the check is completed by
// userKeyRC4.
func (sec *stdSecHandler) ownerKeyRC4(paddedOwner []byte) []byte {
	key := sec.rc4OwnerKey(paddedOwner)
	user := bytes.Clone(sec.O[:32])
	if sec.R == 2 {
		rc4Passes(key, user, 0, 0)
	} else {
		rc4Passes(key, user, 19, 0)
	}
	return sec.userKeyRC4(user)
}

// userKeyAES checks a user password for R >= 5 (Algorithm 11).
func (sec *stdSecHandler) userKeyAES(pw []byte) []byte {
	return sec.unwrapKey(pw, sec.U, nil, sec.UE)
}

// ownerKeyAES checks an owner password for R >= 5 (Algorithm 12).  The
// owner hashes include the full U string.
func (sec *stdSecHandler) ownerKeyAES(pw []byte) []byte {
	return sec.unwrapKey(pw, sec.O, sec.U, sec.OE)
}

// unwrapKey compares the password hash with the first 32 bytes of
// validation, and if they agree decrypts the file key from wrapped.
func (sec *stdSecHandler) unwrapKey(pw, validation, extra, wrapped []byte) []byte {
	if !bytes.Equal(sec.hash6(pw, validation[32:40], extra), validation[:32]) {
		return nil
	}
	block, _ := aes.NewCipher(sec.hash6(pw, validation[40:48], extra))
	key := make([]byte, 32)
	cipher.NewCBCDecrypter(block, zero16).CryptBlocks(key, wrapped)
	if !sec.permsMatch(key) {
		return nil
	}
	return key
}

// permsMatch decrypts /Perms and compares it to P and /EncryptMetadata
// (Algorithm 13).  Revision 5 has no /Perms entry.
func (sec *stdSecHandler) permsMatch(key []byte) bool {
	if sec.R < 6 {
		return true
	}
	block, _ := aes.NewCipher(key)
	var buf [16]byte
	block.Decrypt(buf[:], sec.Perms)

	emd := byte('T')
	if sec.plainMetadata {
		emd = 'F'
	}
	return string(buf[9:12]) == "adb" &&
		binary.LittleEndian.Uint32(buf[:4]) == sec.P &&
		buf[8] == emd
}

// hash6 is the password hash for R >= 5.  Revision 5, an Adobe extension
// to PDF 1.7, uses a plain SHA-256 hash.
func (sec *stdSecHandler) hash6(pw, salt, extra []byte) []byte {
	if sec.R == 5 {
		h := sha256.New()
		h.Write(pw)
		h.Write(salt)
		h.Write(extra)
		return h.Sum(nil)
	}
	return hashR6(pw, salt, extra)
}

// hashR6 implements Algorithm 2.B of ISO 32000-2.
func hashR6(pw, salt, extra []byte) []byte {
	h := sha256.New()
	h.Write(pw)
	h.Write(salt)
	h.Write(extra)
	K := h.Sum(nil)

	var seq, E []byte
	for round := 1; ; round++ {
		seq = seq[:0]
		for range 64 {
			seq = append(seq, pw...)
			seq = append(seq, K...)
			seq = append(seq, extra...)
		}
		if cap(E) < len(seq) {
			E = make([]byte, len(seq))
		}
		E = E[:len(seq)]
		block, _ := aes.NewCipher(K[:16])
		cipher.NewCBCEncrypter(block, K[16:32]).CryptBlocks(E, seq)

		// 256 = 1 (mod 3), so the 16 byte number is congruent to the
		// sum of its bytes
		var s int
		for _, b := range E[:16] {
			s += int(b)
		}
		var next hash.Hash
		switch s % 3 {
		case 0:
			next = sha256.New()
		case 1:
			next = sha512.New384()
		default:
			next = sha512.New()
		}
		next.Write(E)
		K = next.Sum(K[:0])

		if round >= 64 && int(E[len(E)-1]) <= round-32 {
			return K[:32]
		}
	}
}

// utf8Passwd prepares a password for R >= 5, using SASLprep.  The
// result is truncated to 127 bytes.
func utf8Passwd(passwd string) ([]byte, error) {
	s, err := stringprep.SASLprep.Prepare(passwd)
	if err != nil {
		return nil, errInvalidPassword
	}
	return []byte(s)[:min(len(s), 127)], nil
}

// padPasswd converts a password to PDFDocEncoding and pads or truncates
// it to 32 bytes, for R <= 4.
func padPasswd(passwd string) ([]byte, error) {
	enc, ok := pdfDocEncode(passwd)
	if !ok {
		return nil, errInvalidPassword
	}
	return append(enc[:min(len(enc), 32):min(len(enc), 32)], passwdPad...)[:32], nil
}

var passwdPad = []byte{
	0x28, 0xbf, 0x4e, 0x5e, 0x4e, 0x75, 0x8a, 0x41,
	0x64, 0x00, 0x4e, 0x56, 0xff, 0xfa, 0x01, 0x08,
	0x2e, 0x2e, 0x00, 0xb6, 0xd0, 0x68, 0x3e, 0x80,
	0x2f, 0x0c, 0xa9, 0xfe, 0x64, 0x53, 0x69, 0x7a,
}

var zero16 = make([]byte, 16)
