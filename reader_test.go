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
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/language"
	"seehuhn.de/go/xmp"

	"seehuhn.de/go/pdfcore/loader"
)

func readStream(t *testing.T, r *Reader, obj Object) ([]byte, error) {
	t.Helper()
	body, err := r.GetStreamReader(obj)
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return data, err
	}
	return data, body.Err()
}

func TestThreeObjects(t *testing.T) {
	r := threeObjectDoc().reader(t, nil)

	if r.Version() != V1_4 {
		t.Errorf("wrong version %s", r.Version())
	}
	catalog, err := r.Catalog()
	if err != nil {
		t.Fatal(err)
	}
	if catalog["Type"] != Name("Catalog") {
		t.Errorf("wrong catalog %s", catalog)
	}
	pages, err := GetDict(r, catalog["Pages"])
	if err != nil || pages["Count"] != Integer(0) {
		t.Errorf("wrong page tree %s %v", pages, err)
	}

	data, err := readStream(t, r, NewReference(3, 0))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "BT /F1 12 Tf (Hello) Tj ET" {
		t.Errorf("wrong stream data %q", data)
	}

	if d := cmp.Diff([]uint32{1, 2, 3}, r.ObjectNumbers()); d != "" {
		t.Error(d)
	}
	secs := r.Sections()
	if len(secs) != 1 || secs[0].Kind != SectionTable || secs[0].Prev != -1 {
		t.Errorf("wrong sections %v", secs)
	}
	if r.IsEncrypted() || r.Permissions() != PermAll {
		t.Error("document should not be encrypted")
	}
	if r.Linearization() != nil {
		t.Error("document should not be linearized")
	}
}

func TestReferenceObject(t *testing.T) {
	d := newTestDoc("1.7")
	d.add(1, Dict{"Type": Name("Foo")})
	d.addStream(2, nil, []byte("0123456789"))
	d.add(3, NewReference(1, 0))
	d.add(4, Dict{"Type": Name("Catalog")})
	d.writeXRefTable(Dict{"Root": NewReference(4, 0)})
	r := d.reader(t, nil)

	obj, err := r.Get(NewReference(3, 0))
	if err != nil || obj != NewReference(1, 0) {
		t.Errorf("Get: %v %v", obj, err)
	}
	obj, err = r.Resolve(NewReference(3, 0))
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(Dict{"Type": Name("Foo")}, obj); d != "" {
		t.Errorf("object 3 (-want +got):\n%s", d)
	}

	data, err := readStream(t, r, NewReference(2, 0))
	if err != nil || string(data) != "0123456789" {
		t.Errorf("stream: %q %v", data, err)
	}
}

func TestGetCached(t *testing.T) {
	r := threeObjectDoc().reader(t, nil)
	ref := NewReference(3, 0)

	obj1, err := r.Get(ref)
	if err != nil {
		t.Fatal(err)
	}
	obj2, err := r.Get(ref)
	if err != nil {
		t.Fatal(err)
	}
	stm1, ok1 := obj1.(*Stream)
	stm2, ok2 := obj2.(*Stream)
	if !ok1 || !ok2 || stm1 != stm2 {
		t.Errorf("repeated Get gave %v and %v", obj1, obj2)
	}
}

func TestMissingObjects(t *testing.T) {
	r := threeObjectDoc().reader(t, nil)
	for _, ref := range []Reference{
		NewReference(0, 65535), // free
		NewReference(99, 0),    // beyond the end of the table
		NewReference(1, 1),     // wrong generation
	} {
		obj, err := r.Get(ref)
		if obj != nil || err != nil {
			t.Errorf("%s: got %v %v", ref, obj, err)
		}
	}
}

func TestIncrementalUpdates(t *testing.T) {
	d := threeObjectDoc()
	root := Dict{"Root": NewReference(1, 0)}

	d.add(2, Dict{"Type": Name("Pages"), "Kids": Array{}, "Count": Integer(1)})
	d.writeXRefTable(root)
	d.add(2, Dict{"Type": Name("Pages"), "Kids": Array{}, "Count": Integer(2)})
	d.add(4, Dict{"Title": String("new")})
	d.writeXRefStream(5, root, nil)

	r := d.reader(t, nil)
	pages, err := GetDict(r, NewReference(2, 0))
	if err != nil {
		t.Fatal(err)
	}
	if pages["Count"] != Integer(2) {
		t.Errorf("wrong revision of object 2: %s", pages)
	}

	secs := r.Sections()
	if len(secs) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(secs))
	}
	kinds := []SectionKind{secs[0].Kind, secs[1].Kind, secs[2].Kind}
	if d := cmp.Diff([]SectionKind{SectionStream, SectionTable, SectionTable}, kinds); d != "" {
		t.Error(d)
	}
	for i := 0; i < 2; i++ {
		if secs[i].Prev != secs[i+1].Pos {
			t.Errorf("section %d: Prev=%d, expected %d", i, secs[i].Prev, secs[i+1].Pos)
		}
	}
	if secs[2].Prev != -1 {
		t.Errorf("oldest section has Prev=%d", secs[2].Prev)
	}
	if size := r.Trailer()["Size"]; size != Integer(6) {
		t.Errorf("wrong trailer /Size %v", size)
	}
}

func TestObjectStreams(t *testing.T) {
	d := newTestDoc("1.5")
	d.addObjStm(5, map[uint32]Object{
		1: Dict{"Type": Name("Catalog"), "Pages": NewReference(2, 0)},
		2: Dict{"Type": Name("Pages"), "Kids": Array{}, "Count": Integer(0)},
		3: Array{Integer(1), String("two")},
	})
	d.add(4, Dict{"Y": Integer(2)})

	// object 7 is a stream inside an object stream, which is not allowed
	head := "7 0 "
	d.addStream(6, Dict{
		"Type":  Name("ObjStm"),
		"N":     Integer(1),
		"First": Integer(len(head)),
	}, []byte(head+"<< /Length 3 >>\nstream\nabc\nendstream\n"))

	d.writeXRefStream(8, Dict{"Root": NewReference(1, 0)}, map[uint32][2]int{
		1: {5, 0},
		2: {5, 1},
		3: {5, 2},
		7: {6, 0},
	})

	r := d.reader(t, &ReaderOptions{ErrorHandling: ErrorHandlingReport})
	catalog, err := r.Catalog()
	if err != nil || catalog["Type"] != Name("Catalog") {
		t.Fatalf("wrong catalog %s %v", catalog, err)
	}
	obj, err := r.Get(NewReference(3, 0))
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(Array{Integer(1), String("two")}, obj); d != "" {
		t.Error(d)
	}
	obj, err = r.Get(NewReference(4, 0))
	if err != nil || !cmp.Equal(obj, Dict{"Y": Integer(2)}) {
		t.Errorf("got %v %v", obj, err)
	}

	// compressed objects always have generation 0
	obj, err = r.Get(NewReference(3, 1))
	if obj != nil || err != nil {
		t.Errorf("got %v %v", obj, err)
	}

	if len(r.Errors()) != 0 {
		t.Errorf("unexpected errors %v", r.Errors())
	}
	obj, err = r.Get(NewReference(7, 0))
	if obj != nil || err != nil {
		t.Errorf("stream in object stream: got %v %v", obj, err)
	}
	if len(r.Errors()) != 1 {
		t.Errorf("expected one error, got %v", r.Errors())
	}
}

// shortIndexDoc has an object stream whose /N claims more entries than
// the index holds.
func shortIndexDoc(N int) []byte {
	d := newTestDoc("1.5")
	d.add(1, Dict{"Type": Name("Catalog")})
	head := "5 0 "
	d.addStream(4, Dict{
		"Type":  Name("ObjStm"),
		"N":     Integer(N),
		"First": Integer(len(head)),
	}, []byte(head+"42\n"))
	d.writeXRefStream(8, Dict{"Root": NewReference(1, 0)}, map[uint32][2]int{
		5: {4, 0},
	})
	return d.bytes()
}

func TestObjStmShortIndex(t *testing.T) {
	b := shortIndexDoc(3)

	r, err := NewReader(BytesSource(b), &ReaderOptions{ErrorHandling: ErrorHandlingReport})
	if err != nil {
		t.Fatal(err)
	}
	obj, err := r.Get(NewReference(5, 0))
	if err != nil || obj != Integer(42) {
		t.Errorf("Report: got %v %v", obj, err)
	}
	if len(r.Errors()) != 1 {
		t.Errorf("Report: errors %v", r.Errors())
	}

	r, err = NewReader(BytesSource(b), &ReaderOptions{ErrorHandling: ErrorHandlingStop})
	if err != nil {
		t.Fatal(err)
	}
	obj, err = r.Get(NewReference(5, 0))
	var mErr *MalformedFileError
	if obj != nil || !errors.As(err, &mErr) {
		t.Errorf("Stop: got %v %v", obj, err)
	}
}

func TestObjStmHugeN(t *testing.T) {
	b := shortIndexDoc(1 << 24)
	r, err := NewReader(BytesSource(b), nil)
	if err != nil {
		t.Fatal(err)
	}

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	obj, err := r.Get(NewReference(5, 0))
	runtime.ReadMemStats(&after)

	if err != nil || obj != Integer(42) {
		t.Errorf("got %v %v", obj, err)
	}
	if n := after.TotalAlloc - before.TotalAlloc; n > 1<<24 {
		t.Errorf("reading a tiny object stream allocated %d bytes", n)
	}
}

func TestHybridFile(t *testing.T) {
	d := newTestDoc("1.5")
	root := NewReference(1, 0)
	d.add(1, Dict{"Type": Name("Catalog"), "Pages": NewReference(2, 0)})
	d.addObjStm(3, map[uint32]Object{
		2: Dict{"Type": Name("Pages"), "Kids": Array{}, "Count": Integer(7)},
	})

	// The stream section lists only the compressed object, the table
	// lists the rest.
	pending := d.pending
	d.pending = make(map[uint32]int64)
	stmPos := d.buf.Len()
	d.writeXRefStream(4, Dict{"Root": root}, map[uint32][2]int{2: {3, 0}})
	d.pending = pending
	d.prev = 0
	d.writeXRefTable(Dict{"Root": root, "XRefStm": Integer(stmPos)})

	r := d.reader(t, nil)
	secs := r.Sections()
	if len(secs) != 1 || secs[0].Kind != SectionHybrid {
		t.Fatalf("wrong sections %v", secs)
	}
	pages, err := GetDict(r, NewReference(2, 0))
	if err != nil {
		t.Fatal(err)
	}
	if pages["Count"] != Integer(7) {
		t.Errorf("wrong page tree %s", pages)
	}
	if _, ok := r.Trailer()["XRefStm"]; ok {
		t.Error("/XRefStm copied into the trailer")
	}
}

func checkCatalog(t *testing.T, r *Reader) {
	t.Helper()
	catalog, err := r.Catalog()
	if err != nil {
		t.Fatal(err)
	}
	if catalog["Type"] != Name("Catalog") {
		t.Errorf("wrong catalog %s", catalog)
	}
}

func checkRepaired(t *testing.T, r *Reader) {
	t.Helper()
	checkCatalog(t, r)
	data, err := readStream(t, r, NewReference(3, 0))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "BT /F1 12 Tf (Hello) Tj ET" {
		t.Errorf("wrong stream data %q", data)
	}
	if r.XRefState() != XRefReconstructed {
		t.Errorf("wrong state %s", r.XRefState())
	}
	if len(r.Sections()) != 0 {
		t.Errorf("sections after reconstruction: %v", r.Sections())
	}
}

func TestReconstructNoTrailer(t *testing.T) {
	d := threeObjectDoc()
	b := d.bytes()
	b = b[:bytes.Index(b, []byte("xref\n"))]

	opt := &ReaderOptions{ErrorHandling: ErrorHandlingReport}
	r, err := NewReader(BytesSource(b), opt)
	if err != nil {
		t.Fatal(err)
	}
	checkRepaired(t, r)
	if len(r.Errors()) == 0 {
		t.Error("missing trailer was not reported")
	}

	opt = &ReaderOptions{ErrorHandling: ErrorHandlingStop}
	_, err = NewReader(BytesSource(b), opt)
	if !errors.Is(err, ErrTrailerNotFound) {
		t.Errorf("expected ErrTrailerNotFound, got %v", err)
	}
}

func TestReconstructBrokenStream(t *testing.T) {
	for _, tail := range []string{"", "4 0 obj\n<</Length 3>>\nstream\nabc\nendstream\nendobj\n"} {
		b := []byte("%PDF-1.4\n" +
			"1 0 obj\n<</Length 9 0 R>>\nstream\nabcdef\n" +
			"2 0 obj\n<</Type/Catalog>>\nendobj\n" +
			"3 0 obj\n(hello)\nendobj\n" + tail)

		r, err := NewReader(BytesSource(b), nil)
		if err != nil {
			t.Fatal(err)
		}
		checkCatalog(t, r)
		obj, err := r.Get(NewReference(3, 0))
		if err != nil {
			t.Fatal(err)
		}
		if d := cmp.Diff(String("hello"), obj); d != "" {
			t.Errorf("object 3 (-want +got):\n%s", d)
		}
	}
}

func TestReconstructTruncated(t *testing.T) {
	b := threeObjectDoc().bytes()
	b = b[:bytes.Index(b, []byte("trailer"))+12]

	r, err := NewReader(BytesSource(b), nil)
	if err != nil {
		t.Fatal(err)
	}
	checkRepaired(t, r)
}

func TestReconstructShiftedFile(t *testing.T) {
	b := threeObjectDoc().bytes()
	eol := bytes.IndexByte(b, '\n') + 1
	var shifted []byte
	shifted = append(shifted, b[:eol]...)
	shifted = append(shifted, "% some extra bytes\n"...)
	shifted = append(shifted, b[eol:]...)

	r, err := NewReader(BytesSource(shifted), nil)
	if err != nil {
		t.Fatal(err)
	}
	checkRepaired(t, r)
}

func TestReconstructWrongOffset(t *testing.T) {
	b := threeObjectDoc().bytes()
	off1 := bytes.Index(b, []byte("1 0 obj"))
	off2 := bytes.Index(b, []byte("2 0 obj"))
	good := fmt.Sprintf("%010d 00000 n", off2)
	bad := fmt.Sprintf("%010d 00000 n", off1)
	b = bytes.Replace(b, []byte(good), []byte(bad), 1)

	r, err := NewReader(BytesSource(b), nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.XRefState() != XRefReady {
		t.Errorf("wrong state %s", r.XRefState())
	}

	// reading object 2 finds object 1 and triggers reconstruction
	pages, err := GetDict(r, NewReference(2, 0))
	if err != nil {
		t.Fatal(err)
	}
	if pages["Type"] != Name("Pages") {
		t.Errorf("wrong object %s", pages)
	}
	checkRepaired(t, r)
}

func TestReconstructObjStm(t *testing.T) {
	d := newTestDoc("1.5")
	d.addObjStm(5, map[uint32]Object{
		1: Dict{"Type": Name("Catalog"), "Pages": NewReference(2, 0)},
		2: Dict{"Type": Name("Pages"), "Kids": Array{}, "Count": Integer(0)},
	})
	d.add(4, Dict{"Y": Integer(2)})

	r, err := NewReader(BytesSource(d.bytes()), nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Trailer()["Root"] != NewReference(1, 0) {
		t.Errorf("wrong /Root %v", r.Trailer()["Root"])
	}
	pages, err := GetDict(r, NewReference(2, 0))
	if err != nil || pages["Type"] != Name("Pages") {
		t.Errorf("got %s %v", pages, err)
	}
	if d := cmp.Diff([]uint32{1, 2, 4, 5}, r.ObjectNumbers()); d != "" {
		t.Error(d)
	}
}

func TestUnreadable(t *testing.T) {
	for _, in := range []string{
		"",
		"%PDF-1.7\n",
		"%PDF-1.7\nthis is not a PDF file\n%%EOF\n",
	} {
		_, err := NewReader(BytesSource([]byte(in)), nil)
		var uErr *DocumentUnreadableError
		if !errors.As(err, &uErr) {
			t.Errorf("%q: expected DocumentUnreadableError, got %v", in, err)
		}
	}
}

func TestJunkBeforeHeader(t *testing.T) {
	b := append([]byte("Content-Type: application/pdf\r\n\r\n"), threeObjectDoc().bytes()...)
	r, err := NewReader(BytesSource(b), nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.XRefState() != XRefReady {
		t.Errorf("wrong state %s", r.XRefState())
	}
	if r.Version() != V1_4 {
		t.Errorf("wrong version %s", r.Version())
	}
	data, err := readStream(t, r, NewReference(3, 0))
	if err != nil || len(data) == 0 {
		t.Errorf("got %q %v", data, err)
	}
}

func TestCatalogVersion(t *testing.T) {
	d := newTestDoc("1.4")
	d.add(1, Dict{"Type": Name("Catalog"), "Version": Name("1.7")})
	d.writeXRefTable(Dict{"Root": NewReference(1, 0)})
	r := d.reader(t, nil)
	if r.Version() != V1_7 {
		t.Errorf("wrong version %s", r.Version())
	}
}

func TestStreamFilters(t *testing.T) {
	rl := []byte{4, 'H', 'e', 'l', 'l', 'o', 128}
	hex := []byte(fmt.Sprintf("%x>", rl))

	d := newTestDoc("1.7")
	d.add(1, Dict{"Type": Name("Catalog")})
	d.addStream(2, Dict{"Filter": Array{Name("AHx"), Name("RL")}}, hex)
	d.addStream(3, Dict{"Filter": Array{Name("RL"), Name("AHx")}}, hex)
	d.addStream(4, Dict{"Filter": Name("FooDecode")}, []byte("abc"))
	d.addStream(5, Dict{"Filter": Name("JPXDecode")}, []byte("raw jpx"))
	d.add(6, Integer(11))
	d.addStream(7, Dict{"Length": NewReference(6, 0)}, []byte("Hello World"))
	d.addStream(8, Dict{"Length": Integer(3)}, []byte("Hello World"))
	d.addStream(9, Dict{
		"Filter":      Array{Name("ASCIIHexDecode"), Name("RunLengthDecode")},
		"DecodeParms": Array{nil, Dict{"X": NewReference(6, 0)}},
	}, hex)
	d.writeXRefTable(Dict{"Root": NewReference(1, 0)})

	r := d.reader(t, &ReaderOptions{ErrorHandling: ErrorHandlingReport})

	data, err := readStream(t, r, NewReference(2, 0))
	if err != nil || string(data) != "Hello" {
		t.Errorf("AHx RL: got %q %v", data, err)
	}
	data, _ = readStream(t, r, NewReference(3, 0))
	if string(data) == "Hello" {
		t.Error("filter order ignored")
	}

	data, err = readStream(t, r, NewReference(4, 0))
	if len(data) != 0 || !errors.Is(err, ErrUnsupportedFilter) {
		t.Errorf("unknown filter: got %q %v", data, err)
	}

	data, err = readStream(t, r, NewReference(5, 0))
	if len(data) != 0 || !errors.Is(err, ErrUnsupportedFilter) {
		t.Errorf("JPX: got %q %v", data, err)
	}
	raw, err := r.OpenRawStream(NewReference(5, 0))
	if err != nil {
		t.Fatal(err)
	}
	data, err = io.ReadAll(raw)
	if err != nil || string(data) != "raw jpx" {
		t.Errorf("raw JPX: got %q %v", data, err)
	}

	nErr := len(r.Errors())
	data, err = readStream(t, r, NewReference(7, 0))
	if err != nil || string(data) != "Hello World" {
		t.Errorf("indirect length: got %q %v", data, err)
	}
	if len(r.Errors()) != nErr {
		t.Errorf("unexpected errors %v", r.Errors()[nErr:])
	}

	data, err = readStream(t, r, NewReference(8, 0))
	if err != nil || string(data) != "Hello World" {
		t.Errorf("wrong length: got %q %v", data, err)
	}
	if len(r.Errors()) != nErr+1 {
		t.Errorf("wrong length not reported: %v", r.Errors())
	}

	stm, err := GetStream(r, NewReference(9, 0))
	if err != nil {
		t.Fatal(err)
	}
	filters, err := r.StreamFilters(stm)
	if err != nil {
		t.Fatal(err)
	}
	want := []FilterInfo{
		{Name: "ASCIIHexDecode"},
		{Name: "RunLengthDecode", Parms: Dict{"X": Integer(11)}},
	}
	if d := cmp.Diff(want, filters); d != "" {
		t.Error(d)
	}
}

func TestStreamErrorStop(t *testing.T) {
	d := newTestDoc("1.7")
	d.add(1, Dict{"Type": Name("Catalog")})
	d.addStream(2, Dict{"Filter": Name("FooDecode")}, []byte("abc"))
	d.writeXRefTable(Dict{"Root": NewReference(1, 0)})

	r := d.reader(t, &ReaderOptions{ErrorHandling: ErrorHandlingStop})
	body, err := r.GetStreamReader(NewReference(2, 0))
	if err != nil {
		t.Fatal(err)
	}
	_, err = io.ReadAll(body)
	var dErr *DecodeError
	if !errors.As(err, &dErr) || !errors.Is(err, ErrUnsupportedFilter) {
		t.Errorf("expected DecodeError, got %v", err)
	}

	_, err = r.GetStreamReader(nil)
	if err == nil {
		t.Error("missing error for null stream")
	}
}

func TestReferenceCycle(t *testing.T) {
	d := newTestDoc("1.7")
	d.add(1, Dict{"Type": Name("Catalog")})
	d.add(5, NewReference(6, 0))
	d.add(6, NewReference(5, 0))
	d.add(7, NewReference(8, 0))
	d.add(8, Integer(42))
	d.writeXRefTable(Dict{"Root": NewReference(1, 0)})

	r := d.reader(t, nil)
	obj, err := r.Resolve(NewReference(5, 0))
	if obj != nil || err != nil {
		t.Errorf("got %v %v", obj, err)
	}
	obj, err = r.Resolve(NewReference(7, 0))
	if obj != Integer(42) || err != nil {
		t.Errorf("got %v %v", obj, err)
	}

	r = d.reader(t, &ReaderOptions{ErrorHandling: ErrorHandlingStop})
	_, err = r.Resolve(NewReference(5, 0))
	if !errors.Is(err, ErrReferenceCycle) {
		t.Errorf("expected ErrReferenceCycle, got %v", err)
	}
}

func encryptedDoc(e *testEncryption) *testDoc {
	d := newTestDoc("1.7")
	extra := d.encryptWith(e, 10)
	extra["Root"] = NewReference(1, 0)
	d.add(1, Dict{"Type": Name("Catalog"), "Pages": NewReference(2, 0)})
	d.add(2, Dict{"Type": Name("Pages"), "Kids": Array{}, "Count": Integer(0)})
	d.addStream(3, nil, []byte("secret stream data"))
	d.add(4, Dict{"Title": String("secret title"), "N": Integer(4)})
	d.writeXRefTable(extra)
	return d
}

func password(pw string) ReadPwdFunc {
	return func(ID []byte, try int) string {
		if try == 0 {
			return pw
		}
		return ""
	}
}

func TestEncryption(t *testing.T) {
	const P = -4 &^ (1 << 4) // no copying
	for _, R := range []int{3, 4, 6} {
		t.Run(fmt.Sprintf("R%d", R), func(t *testing.T) {
			d := encryptedDoc(newTestEncryption(R, "user", "owner", P))

			_, err := NewReader(BytesSource(d.bytes()), nil)
			var aErr *AuthenticationError
			if !errors.As(err, &aErr) {
				t.Fatalf("expected AuthenticationError, got %v", err)
			}
			_, err = NewReader(BytesSource(d.bytes()), &ReaderOptions{
				ReadPassword: password("wrong"),
			})
			if !errors.As(err, &aErr) {
				t.Fatalf("expected AuthenticationError, got %v", err)
			}

			r := d.reader(t, &ReaderOptions{ReadPassword: password("user")})
			if !r.IsEncrypted() || r.OwnerAuthenticated() {
				t.Error("wrong authentication state")
			}
			if r.Permissions() != PermAll&^PermCopy {
				t.Errorf("wrong permissions %b", r.Permissions())
			}
			info, err := GetDict(r, NewReference(4, 0))
			if err != nil {
				t.Fatal(err)
			}
			if d := cmp.Diff(Dict{"Title": String("secret title"), "N": Integer(4)}, info); d != "" {
				t.Error(d)
			}
			data, err := readStream(t, r, NewReference(3, 0))
			if err != nil || string(data) != "secret stream data" {
				t.Errorf("got %q %v", data, err)
			}
			if err := r.AuthenticateOwner(); err == nil {
				t.Error("owner authenticated without password")
			}

			r = d.reader(t, &ReaderOptions{ReadPassword: password("owner")})
			if !r.OwnerAuthenticated() || r.Permissions() != PermAll {
				t.Error("owner not authenticated")
			}
			data, err = readStream(t, r, NewReference(3, 0))
			if err != nil || string(data) != "secret stream data" {
				t.Errorf("got %q %v", data, err)
			}
		})
	}
}

func TestEmptyUserPassword(t *testing.T) {
	d := encryptedDoc(newTestEncryption(4, "", "owner", -4))
	r := d.reader(t, nil)
	catalog, err := r.Catalog()
	if err != nil || catalog["Type"] != Name("Catalog") {
		t.Errorf("got %s %v", catalog, err)
	}
	info, err := GetDict(r, NewReference(4, 0))
	if err != nil || !cmp.Equal(info["Title"], String("secret title")) {
		t.Errorf("got %s %v", info, err)
	}
}

func TestLinearized(t *testing.T) {
	const placeholder = 1234567890

	build := func() []byte {
		d := newTestDoc("1.6")
		d.add(1, Dict{
			"Linearized": Integer(1),
			"L":          Integer(placeholder),
			"N":          Integer(1),
			"O":          Integer(4),
			"H":          Array{Integer(100), Integer(20)},
			"E":          Integer(300),
			"T":          Integer(400),
		})
		d.add(2, Dict{"Type": Name("Catalog"), "Pages": NewReference(3, 0)})
		d.add(3, Dict{"Type": Name("Pages"), "Kids": Array{NewReference(4, 0)}, "Count": Integer(1)})
		d.add(4, Dict{"Type": Name("Page"), "Parent": NewReference(3, 0)})
		d.writeXRefTable(Dict{"Root": NewReference(2, 0)})
		return d.bytes()
	}

	b := build()
	old := []byte(fmt.Sprint(placeholder))
	b = bytes.Replace(b, old, []byte(fmt.Sprintf("%010d", len(b))), 1)
	r, err := NewReader(BytesSource(b), nil)
	if err != nil {
		t.Fatal(err)
	}
	lin := r.Linearization()
	if lin == nil {
		t.Fatal("linearization dictionary not found")
	}
	want := &Linearization{
		Length:          int64(len(b)),
		HintOffset:      100,
		HintLength:      20,
		FirstPageObject: 4,
		FirstPageEnd:    300,
		NumPages:        1,
		MainXRefOffset:  400,
	}
	if d := cmp.Diff(want, lin, cmp.AllowUnexported(Linearization{}), cmpIgnoreFirstXRef); d != "" {
		t.Error(d)
	}

	// a stale dictionary, after the file has been updated, is ignored
	b = append(build(), "% appended\n"...)
	r, err = NewReader(BytesSource(b), nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Linearization() != nil {
		t.Error("stale linearization dictionary accepted")
	}
}

var cmpIgnoreFirstXRef = cmp.FilterPath(func(p cmp.Path) bool {
	return p.Last().String() == ".firstXRef"
}, cmp.Ignore())

func TestMetadata(t *testing.T) {
	r := threeObjectDoc().reader(t, nil)
	packet, err := r.Metadata()
	if packet != nil || err != nil {
		t.Errorf("got %v %v", packet, err)
	}

	packet = xmp.NewPacket()
	dc := &xmp.DublinCore{}
	dc.Title.Set(language.Und, "Test Document")
	dc.Creator.Append(xmp.NewProperName("Test Author"))
	if err := packet.Set(dc); err != nil {
		t.Fatal(err)
	}
	buf := &bytes.Buffer{}
	if err := packet.Write(buf, nil); err != nil {
		t.Fatal(err)
	}

	d := newTestDoc("1.7")
	d.add(1, Dict{
		"Type":     Name("Catalog"),
		"Pages":    NewReference(2, 0),
		"Metadata": NewReference(3, 0),
	})
	d.add(2, Dict{"Type": Name("Pages"), "Kids": Array{}, "Count": Integer(0)})
	d.addStream(3, Dict{"Type": Name("Metadata"), "Subtype": Name("XML")}, buf.Bytes())
	d.writeXRefTable(Dict{"Root": NewReference(1, 0)})
	r = d.reader(t, nil)

	got, err := r.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	var want, gotDC xmp.DublinCore
	packet.Get(&want)
	got.Get(&gotDC)
	if d := cmp.Diff(want, gotDC); d != "" {
		t.Errorf("metadata (-want +got):\n%s", d)
	}
}

func TestLoaderSource(t *testing.T) {
	b := threeObjectDoc().bytes()
	ctx := context.Background()
	f, err := loader.New(ctx, loader.FromReaderAt(bytes.NewReader(b), int64(len(b))),
		&loader.Options{ChunkSize: 64})
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewReader(f, nil)
	if err != nil {
		t.Fatal(err)
	}
	data, err := readStream(t, r, NewReference(3, 0))
	if err != nil || string(data) != "BT /F1 12 Tf (Hello) Tj ET" {
		t.Errorf("got %q %v", data, err)
	}
}

func TestConcurrentGet(t *testing.T) {
	d := newTestDoc("1.5")
	objs := make(map[uint32]Object)
	compressed := make(map[uint32][2]int)
	for i := uint32(2); i < 50; i++ {
		objs[i] = Dict{"N": Integer(i)}
		compressed[i] = [2]int{100, int(i - 2)}
	}
	d.add(1, Dict{"Type": Name("Catalog")})
	d.addObjStm(100, objs)
	d.writeXRefStream(101, Dict{"Root": NewReference(1, 0)}, compressed)
	r := d.reader(t, nil)

	errs := make(chan error, 4)
	for k := 0; k < 4; k++ {
		go func() {
			for i := uint32(2); i < 50; i++ {
				dict, err := GetDict(r, NewReference(i, 0))
				if err == nil && dict["N"] != Integer(i) {
					err = fmt.Errorf("object %d: wrong value %s", i, dict)
				}
				if err != nil {
					errs <- err
					return
				}
			}
			errs <- nil
		}()
	}
	for k := 0; k < 4; k++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}

func TestAuthenticateOwnerConcurrent(t *testing.T) {
	const P = -4 &^ (1 << 4)
	d := encryptedDoc(newTestEncryption(4, "user", "owner", P))
	calls := 0
	readPwd := func(ID []byte, try int) string {
		calls++
		if calls == 1 {
			return "user"
		}
		if try == 0 {
			return "owner"
		}
		return ""
	}
	r := d.reader(t, &ReaderOptions{ReadPassword: readPwd})

	done := make(chan Perm)
	go func() {
		var p Perm
		for range 100 {
			p = r.Permissions()
		}
		done <- p
	}()
	if err := r.AuthenticateOwner(); err != nil {
		t.Fatal(err)
	}
	<-done
	if p := r.Permissions(); p != PermAll {
		t.Errorf("wrong permissions %b", p)
	}
}
