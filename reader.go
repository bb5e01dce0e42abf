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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"seehuhn.de/go/xmp"
)

// Reader represents a PDF file opened for reading.  Use [Open], [OpenMmap]
// or [NewReader] to create a new Reader.
//
// A Reader is safe for concurrent use.
type Reader struct {
	src    Source
	size   int64
	closer io.Closer

	version Version
	id      [][]byte
	lin     *Linearization
	enc     *decryptContext

	errorHandling ErrorHandling
	log           *slog.Logger
	maxDepth      int

	// mu protects the fields below.
	mu             sync.RWMutex
	state          XRefState
	xref           map[uint32]*xRefEntry
	trailer        Dict
	sections       []XRefSection
	special        map[Reference]bool
	objects        map[Reference]Object
	objStms        *lruCache[*objStm]
	loadingObjStm  map[Reference]bool
	reconstructed  bool
	setupDone      bool
	pendingObjStms []Reference

	errMu sync.Mutex
	errs  []error
}

// ReadPwdFunc describes a function which can be used to query the user for a
// password for the document with the given ID.  The first call for each
// authentication attempt has try == 0.  If the returned password was wrong,
// the function is called again, repeatedly, with sequentially increasing
// values of try.  If the ReadPwdFunc return the empty string, the
// authentication attempt is aborted and an AuthenticationError is reported to
// the caller.
type ReadPwdFunc func(ID []byte, try int) string

// ReaderOptions provides additional information for opening a PDF file.
type ReaderOptions struct {
	// ReadPassword is used to query the password of encrypted files.
	// If this is nil, only the empty password is tried.
	ReadPassword ReadPwdFunc

	// ErrorHandling selects how problems in malformed files are dealt with.
	ErrorHandling ErrorHandling

	// Logger receives messages about problems found in the file.
	// If this is nil, messages are discarded.
	Logger *slog.Logger

	// ObjStmCacheSize is the number of decoded object streams kept in
	// memory.  The default is 16.
	ObjStmCacheSize int

	// MaxReferenceDepth limits the length of chains of references followed
	// by [Reader.Resolve].  The default is 16.
	MaxReferenceDepth int
}

const defaultObjStmCacheSize = 16

// headerSearchLimit is the number of bytes at the start of the file which
// are searched for the "%PDF-" header.
const headerSearchLimit = 1024

// errHeaderMismatch indicates that an xref entry points to the wrong object.
var errHeaderMismatch = errors.New("object header does not match xref entry")

// NewReader creates a new Reader which reads the PDF file from src.
//
// Problems with the cross-reference information are repaired where
// possible, by scanning the whole file if necessary.  Under the default
// error handling policy, the only errors returned are
// [*DocumentUnreadableError], [*AuthenticationError], and I/O errors
// from src.
func NewReader(src Source, opt *ReaderOptions) (*Reader, error) {
	if opt == nil {
		opt = &ReaderOptions{}
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cacheSize := opt.ObjStmCacheSize
	if cacheSize <= 0 {
		cacheSize = defaultObjStmCacheSize
	}
	maxDepth := opt.MaxReferenceDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}

	r := &Reader{
		src:           src,
		size:          src.Size(),
		errorHandling: opt.ErrorHandling,
		log:           logger,
		maxDepth:      maxDepth,
		special:       make(map[Reference]bool),
		objects:       make(map[Reference]Object),
		objStms:       newCache[*objStm](cacheSize),
		loadingObjStm: make(map[Reference]bool),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.readHeader()
	if err != nil {
		return nil, err
	}

	r.lin = r.readLinearization()
	err = r.readXRef()
	if err == nil {
		err = r.checkRoot()
	}
	if err != nil {
		if isIOError(err) {
			return nil, err
		}
		if e := r.softError(err, 0); e != nil {
			return nil, e
		}
		err = r.reconstruct(err)
		if err != nil {
			return nil, err
		}
	} else {
		r.state = XRefReady
	}

	r.id = r.readID()

	if encObj, ok := r.trailer["Encrypt"]; ok && encObj != nil {
		err = r.setupEncryption(encObj, opt.ReadPassword)
		if err != nil {
			return nil, err
		}
	}

	r.setupDone = true
	if r.reconstructed {
		err = r.addObjStmMembers()
		if err != nil {
			return nil, err
		}
	}

	catalog, err := GetDict(lockedGetter{r}, r.trailer["Root"])
	if err != nil {
		if e := r.softError(err, 0); e != nil {
			return nil, e
		}
	}
	if v, ok := catalog["Version"].(Name); ok {
		if ver, err := ParseVersion(string(v)); err == nil && ver > r.version {
			r.version = ver
		}
	}

	return r, nil
}

// readHeader reads the "%PDF-x.y" header.  Junk before the header is
// ignored; all file offsets are taken relative to the start of the header.
func (r *Reader) readHeader() error {
	buf, err := readRange(r.src, 0, headerSearchLimit)
	if err != nil && err != ErrShortRead {
		return err
	}
	idx := bytes.Index(buf, []byte("%PDF-"))
	if idx < 0 {
		r.version = V1_0
		return r.softError(&MalformedFileError{
			Err: errors.New("PDF header not found"),
		}, 0)
	}
	if idx > 0 {
		r.log.Warn("ignoring junk before PDF header", "pos", int64(idx))
		r.src = section(r.src, int64(idx))
		r.size = r.src.Size()
		buf = buf[idx:]
	}

	verString := buf[5:]
	if len(verString) > 3 {
		verString = verString[:3]
	}
	ver, err := ParseVersion(string(verString))
	if err != nil {
		r.version = V1_0
		return r.softError(&MalformedFileError{
			Err: fmt.Errorf("invalid PDF version %q", verString),
		}, 0)
	}
	r.version = ver
	return nil
}

// checkRoot verifies that the /Root entry of the trailer points to an
// object which is present in the cross-reference table.
func (r *Reader) checkRoot() error {
	root := r.trailer["Root"].(Reference)
	entry := r.xref[root.Number()]
	switch {
	case entry.IsFree():
		return corruptXRef(0, "document catalog %s is not in the xref table", root)
	case entry.Kind == entryOffset:
		got, ok := r.objectHeaderAt(entry.Pos)
		if !ok || got != root {
			return corruptXRef(entry.Pos, "%w for the document catalog", errHeaderMismatch)
		}
	}
	return nil
}

func (r *Reader) readID() [][]byte {
	ID, err := GetArray(lockedGetter{r}, r.trailer["ID"])
	if err != nil || len(ID) < 2 {
		return nil
	}
	var res [][]byte
	for _, obj := range ID[:2] {
		s, ok := obj.(String)
		if !ok {
			return nil
		}
		res = append(res, []byte(s))
	}
	return res
}

func (r *Reader) setupEncryption(encObj Object, readPwd ReadPwdFunc) error {
	if ref, ok := encObj.(Reference); ok {
		r.special[ref] = true
	}
	var ID []byte
	if len(r.id) > 0 {
		ID = r.id[0]
	}
	enc, err := newDecryptContext(lockedGetter{r}, encObj, ID, readPwd)
	if err != nil {
		if isIOError(err) {
			return err
		}
		return &DocumentUnreadableError{Err: wrap(err, "encryption dictionary")}
	}
	_, err = enc.sec.GetKey(false)
	if err != nil {
		return err
	}
	r.enc = enc

	// objects read so far have not been decrypted
	clear(r.objects)
	r.objStms = newCache[*objStm](r.objStms.capacity)
	return nil
}

// isIOError reports whether err is an I/O error of the underlying byte
// source, as opposed to a problem with the file contents.
func isIOError(err error) bool {
	var mErr *MalformedFileError
	var uErr *DocumentUnreadableError
	var aErr *AuthenticationError
	var dErr *DecodeError
	switch {
	case errors.As(err, &mErr), errors.As(err, &uErr),
		errors.As(err, &aErr), errors.As(err, &dErr):
		return false
	case errors.Is(err, ErrShortRead), errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return false
	}
	return true
}

// parserAt returns a parser which reads from file position pos.
func (r *Reader) parserAt(pos int64) *parser {
	return newParser(newLexer(r.src, r.size, pos))
}

// objectHeaderAt reads an object header "n g obj" at pos.
func (r *Reader) objectHeaderAt(pos int64) (Reference, bool) {
	p := r.parserAt(pos)
	var header [3]token
	for i := range header {
		t, err := p.next()
		if err != nil {
			return 0, false
		}
		header[i] = t
	}
	if header[0].kind != tokNumber || header[1].kind != tokNumber || !header[2].is("obj") {
		return 0, false
	}
	num, err1 := strconv.ParseUint(string(header[0].val), 10, 32)
	gen, err2 := strconv.ParseUint(string(header[1].val), 10, 16)
	if err1 != nil || err2 != nil {
		return 0, false
	}
	return NewReference(uint32(num), uint16(gen)), true
}

// softError deals with a recoverable problem, according to the error
// handling policy.  If the policy is ErrorHandlingStop, err is returned.
// Otherwise, the problem is logged and nil is returned.
func (r *Reader) softError(err error, ref Reference) error {
	if r.errorHandling == ErrorHandlingStop {
		return err
	}

	attrs := []any{}
	var mErr *MalformedFileError
	if errors.As(err, &mErr) && mErr.Pos > 0 {
		attrs = append(attrs, "pos", mErr.Pos)
	}
	if ref != 0 {
		attrs = append(attrs, "obj", ref.String())
	}
	attrs = append(attrs, "err", err)
	r.log.Warn("recovered from malformed PDF data", attrs...)

	if r.errorHandling == ErrorHandlingReport {
		r.errMu.Lock()
		r.errs = append(r.errs, err)
		r.errMu.Unlock()
	}
	return nil
}

// Get reads an indirect object from the file.  Free and missing objects
// are returned as nil.  Objects are cached, so that repeated calls for the
// same reference return the same value.  The returned object is shared
// with the cache and must not be modified by the caller.
//
// Get does not follow references inside the returned object.
func (r *Reader) Get(ref Reference) (Object, error) {
	r.mu.RLock()
	obj, ok := r.objects[ref]
	r.mu.RUnlock()
	if ok {
		return obj, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(ref)
}

// getLocked is like Get, but the caller must hold r.mu for writing.
func (r *Reader) getLocked(ref Reference) (Object, error) {
	if obj, ok := r.objects[ref]; ok {
		return obj, nil
	}

	obj, err := r.fetch(ref)
	if err != nil {
		var uErr *DocumentUnreadableError
		if errors.As(err, &uErr) || isIOError(err) {
			return nil, err
		}
		if e := r.softError(wrap(err, "object "+ref.String()), ref); e != nil {
			return nil, e
		}
		obj = nil
	}
	r.objects[ref] = obj
	return obj, nil
}

func (r *Reader) fetch(ref Reference) (Object, error) {
	entry := r.xref[ref.Number()]
	if entry.IsFree() {
		return nil, nil
	}

	if entry.Kind == entryCompressed {
		if ref.Generation() != 0 {
			return nil, nil
		}
		return r.getCompressed(ref.Number(), entry)
	}

	if entry.Generation != ref.Generation() {
		return nil, nil
	}
	obj, err := r.readObjectAt(entry.Pos, ref)
	if errors.Is(err, errHeaderMismatch) {
		err = r.reconstruct(err)
		if err != nil {
			return nil, err
		}
		if r.setupDone {
			err = r.addObjStmMembers()
			if err != nil {
				return nil, err
			}
		}
		return r.fetch(ref)
	}
	return obj, err
}

// readObjectAt reads the indirect object ref, which is expected to start at
// file position pos.
func (r *Reader) readObjectAt(pos int64, ref Reference) (Object, error) {
	got, ok := r.objectHeaderAt(pos)
	if !ok || got != ref {
		return nil, &MalformedFileError{
			Pos: pos,
			Err: fmt.Errorf("%w: expected %s", errHeaderMismatch, ref),
		}
	}

	p := r.parserAt(pos)
	if r.enc != nil && !r.special[ref] {
		p.decrypt = func(ref Reference, s String) String {
			buf, err := r.enc.decrypt(ref, []byte(s), purposeString)
			if err != nil {
				p.softError(&MalformedFileError{
					Pos: pos,
					Err: fmt.Errorf("cannot decrypt string: %w", err),
				})
				return s
			}
			return String(buf)
		}
	}
	_, obj, err := p.parseIndirect()
	for _, e := range p.errs {
		if e := r.softError(e, ref); e != nil {
			return nil, e
		}
	}
	if stm, ok := obj.(*Stream); ok {
		stm.plain = r.special[ref]
	}
	return obj, err
}

// Resolve follows references until a direct object is found.  If obj is not
// a [Reference], it is returned unchanged.
//
// Chains of references longer than ReaderOptions.MaxReferenceDepth are
// treated as cycles.  Unless the error handling policy is
// [ErrorHandlingStop], these resolve to nil.
func (r *Reader) Resolve(obj Object) (Object, error) {
	return r.resolveWith(obj, r.Get)
}

// resolveLocked is like Resolve, but the caller must hold r.mu for writing.
func (r *Reader) resolveLocked(obj Object) (Object, error) {
	return r.resolveWith(obj, r.getLocked)
}

func (r *Reader) resolveWith(obj Object, get func(Reference) (Object, error)) (Object, error) {
	orig, isRef := obj.(Reference)
	if !isRef {
		return obj, nil
	}
	for depth := 0; ; depth++ {
		ref, isRef := obj.(Reference)
		if !isRef {
			return obj, nil
		}
		if depth >= r.maxDepth {
			err := &MalformedFileError{
				Err: ErrReferenceCycle,
				Loc: []string{"object " + orig.String()},
			}
			if e := r.softError(err, orig); e != nil {
				return nil, e
			}
			return nil, nil
		}
		var err error
		obj, err = get(ref)
		if err != nil {
			return nil, err
		}
	}
}

// lockedGetter gives access to the objects of a Reader while r.mu is held.
type lockedGetter struct {
	r *Reader
}

func (g lockedGetter) Get(ref Reference) (Object, error) {
	return g.r.getLocked(ref)
}

func (g lockedGetter) resolve(obj Object) (Object, error) {
	return g.r.resolveLocked(obj)
}

// Close closes the file underlying the reader.  This only has an effect if
// the Reader was created by [Open] or [OpenMmap].
func (r *Reader) Close() error {
	r.mu.Lock()
	closer := r.closer
	r.closer = nil
	r.mu.Unlock()
	if closer != nil {
		return closer.Close()
	}
	return nil
}

// Trailer returns the merged trailer dictionary of the file.
// The returned dictionary must not be modified.
func (r *Reader) Trailer() Dict {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trailer
}

// Catalog returns the document catalog.
func (r *Reader) Catalog() (Dict, error) {
	return GetDict(r, r.Trailer()["Root"])
}

// Info returns the document information dictionary, or nil if the file
// does not have one.
func (r *Reader) Info() (Dict, error) {
	return GetDict(r, r.Trailer()["Info"])
}

// ID returns the file identifier, a slice of two byte slices (the
// original ID of the file, and the ID of the current version).  If the file
// does not specify an ID, nil is returned.
func (r *Reader) ID() [][]byte {
	return r.id
}

// Version returns the PDF version of the file.  This is the version from the
// file header, unless the /Version entry of the document catalog specifies
// a later version.
func (r *Reader) Version() Version {
	return r.version
}

// Sections lists the cross-reference sections of the file, newest first.
// After reconstruction, the list is empty.
func (r *Reader) Sections() []XRefSection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.sections)
}

// Linearization returns the linearization parameters of the file, or nil if
// the file is not linearized.
func (r *Reader) Linearization() *Linearization {
	return r.lin
}

// XRefState returns the state of the cross-reference resolver.
func (r *Reader) XRefState() XRefState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// ObjectNumbers returns the numbers of all objects which are marked as in
// use in the cross-reference table, in increasing order.
func (r *Reader) ObjectNumbers() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nums := maps.Keys(r.xref)
	res := nums[:0]
	for _, num := range nums {
		if !r.xref[num].IsFree() {
			res = append(res, num)
		}
	}
	slices.Sort(res)
	return res
}

// Permissions returns the permissions granted to the user of an encrypted
// document.  For unencrypted documents, and if the owner password was
// supplied, PermAll is returned.
func (r *Reader) Permissions() Perm {
	if r.enc == nil {
		return PermAll
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.enc.sec.ownerAuthenticated {
		return PermAll
	}
	return r.enc.userPerm
}

// IsEncrypted reports whether the file is encrypted.
func (r *Reader) IsEncrypted() bool {
	return r.enc != nil
}

// OwnerAuthenticated reports whether the owner password of an encrypted
// file has been supplied.  For unencrypted files, the result is true.
func (r *Reader) OwnerAuthenticated() bool {
	if r.enc == nil {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enc.sec.ownerAuthenticated
}

// AuthenticateOwner tries to authenticate the owner of a document.  If a
// password is required, this calls the ReadPassword function from the
// ReaderOptions.  The return value is nil if the owner was authenticated
// (or if no authentication is required), and an [*AuthenticationError] if
// the required password was not supplied.
func (r *Reader) AuthenticateOwner() error {
	if r.enc == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc.sec.ownerAuthenticated {
		return nil
	}
	_, err := r.enc.sec.GetKey(true)
	return err
}

// Errors returns the problems found in the file so far.  Errors are only
// collected if the Reader uses [ErrorHandlingReport].
func (r *Reader) Errors() []error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return slices.Clone(r.errs)
}

// Metadata reads the XMP metadata stream referenced by the document
// catalog.  If the document has no metadata, nil is returned.
func (r *Reader) Metadata() (*xmp.Packet, error) {
	catalog, err := r.Catalog()
	if err != nil {
		return nil, err
	}
	obj, ok := catalog["Metadata"]
	if !ok || obj == nil {
		return nil, nil
	}
	body, err := r.GetStreamReader(obj)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	packet, err := xmp.Read(body)
	if err != nil {
		return nil, err
	}
	if err := body.Err(); err != nil {
		return nil, err
	}
	return packet, nil
}
