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

// Package loader implements a byte source which loads a file in chunks, on
// demand.  This allows to open large remote PDF files without downloading
// them completely.
//
// A [File] can be passed to pdfcore.NewReader.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is the default size of the chunks in which data is
// loaded.
const DefaultChunkSize = 8192

const defaultParallel = 4

// Range describes a range of bytes in a file.
type Range struct {
	Offset int64
	Length int64
}

func (r Range) String() string {
	return fmt.Sprintf("bytes %d-%d", r.Offset, r.Offset+r.Length-1)
}

// A Loader gives access to the bytes of a file.
type Loader interface {
	// Size returns the total length of the file.
	Size(ctx context.Context) (int64, error)

	// Load returns the bytes in the given range.  The range is always
	// contained in the file.
	Load(ctx context.Context, r Range) ([]byte, error)
}

// Options control the behaviour of a File.
type Options struct {
	// ChunkSize is the granularity of loads.  The default is
	// DefaultChunkSize.
	ChunkSize int

	// MaxParallel is the maximal number of concurrent calls to
	// Loader.Load.  The default is 4.
	MaxParallel int
}

// File is a random access view of a file, which loads data on demand.
// Loaded data is kept in memory for the lifetime of the File.
//
// A File is safe for concurrent use.
type File struct {
	loader    Loader
	size      int64
	chunkSize int64
	parallel  int

	mu     sync.Mutex
	chunks []*chunk
}

type chunk struct {
	done chan struct{} // closed when the load has finished
	data []byte
	err  error
}

// New returns a File which uses l to load data.  The length of the file is
// queried immediately.
func New(ctx context.Context, l Loader, opt *Options) (*File, error) {
	if opt == nil {
		opt = &Options{}
	}
	chunkSize := opt.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	parallel := opt.MaxParallel
	if parallel <= 0 {
		parallel = defaultParallel
	}

	size, err := l.Size(ctx)
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, errors.New("loader: invalid file size")
	}

	numChunks := (size + int64(chunkSize) - 1) / int64(chunkSize)
	return &File{
		loader:    l,
		size:      size,
		chunkSize: int64(chunkSize),
		parallel:  parallel,
		chunks:    make([]*chunk, numChunks),
	}, nil
}

// Size returns the length of the file in bytes.
func (f *File) Size() int64 {
	return f.size
}

// ReadAt implements the io.ReaderAt interface.  Missing data is loaded
// before ReadAt returns.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("loader: negative offset")
	}
	if off >= f.size {
		return 0, io.EOF
	}
	n := int64(len(p))
	if n > f.size-off {
		n = f.size - off
	}
	if n == 0 {
		return 0, nil
	}

	first := off / f.chunkSize
	last := (off + n - 1) / f.chunkSize
	chunks, err := f.acquire(context.Background(), first, last)
	if err != nil {
		return 0, err
	}

	k := 0
	for i, c := range chunks {
		start := (first + int64(i)) * f.chunkSize
		from := int64(0)
		if off > start {
			from = off - start
		}
		k += copy(p[k:n], c.data[from:])
	}
	if k < len(p) {
		return k, io.EOF
	}
	return k, nil
}

// Prefetch loads the given byte ranges.  Missing chunks are loaded in as
// few calls to the Loader as possible, by combining adjacent chunks.
// If ranges is empty, the whole file is loaded.
func (f *File) Prefetch(ctx context.Context, ranges []Range) error {
	if len(ranges) == 0 {
		ranges = []Range{{Offset: 0, Length: f.size}}
	}

	needed := make(map[int64]bool)
	for _, r := range ranges {
		if r.Length <= 0 || r.Offset >= f.size {
			continue
		}
		start := max(r.Offset, 0)
		end := min(r.Offset+r.Length, f.size)
		for i := start / f.chunkSize; i <= (end-1)/f.chunkSize; i++ {
			needed[i] = true
		}
	}

	for first := int64(0); first < int64(len(f.chunks)); first++ {
		if !needed[first] {
			continue
		}
		last := first
		for needed[last+1] {
			last++
		}
		_, err := f.acquire(ctx, first, last)
		if err != nil {
			return err
		}
		first = last
	}
	return nil
}

// acquire returns the chunks first, ..., last, loading them if needed.
func (f *File) acquire(ctx context.Context, first, last int64) ([]*chunk, error) {
	res := make([]*chunk, 0, last-first+1)
	var mine []int64

	f.mu.Lock()
	for i := first; i <= last; i++ {
		c := f.chunks[i]
		if c == nil {
			c = &chunk{done: make(chan struct{})}
			f.chunks[i] = c
			mine = append(mine, i)
		}
		res = append(res, c)
	}
	f.mu.Unlock()

	if len(mine) > 0 {
		f.load(ctx, mine)
	}

	for _, c := range res {
		select {
		case <-c.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if c.err != nil {
			return nil, c.err
		}
	}
	return res, nil
}

// load fetches the given chunks, which must be in increasing order.
// Runs of consecutive chunks are combined into a single call to the Loader.
func (f *File) load(ctx context.Context, idx []int64) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.parallel)

	for len(idx) > 0 {
		n := 1
		for n < len(idx) && idx[n] == idx[0]+int64(n) {
			n++
		}
		run := idx[:n]
		idx = idx[n:]

		g.Go(func() error {
			err := f.loadRun(gctx, run)
			if err != nil {
				f.fail(run, err)
			}
			return err
		})
	}
	g.Wait()
}

func (f *File) loadRun(ctx context.Context, run []int64) error {
	offset := run[0] * f.chunkSize
	length := min(int64(len(run))*f.chunkSize, f.size-offset)
	r := Range{Offset: offset, Length: length}

	data, err := f.loader.Load(ctx, r)
	if err != nil {
		return fmt.Errorf("loader: %s: %w", r, err)
	}
	if int64(len(data)) != length {
		return fmt.Errorf("loader: %s: got %d bytes", r, len(data))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for k, i := range run {
		c := f.chunks[i]
		start := int64(k) * f.chunkSize
		end := min(start+f.chunkSize, length)
		c.data = data[start:end:end]
		close(c.done)
	}
	return nil
}

// fail marks the chunks in run as failed.  Subsequent reads will try to
// load the data again.
func (f *File) fail(run []int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, i := range run {
		c := f.chunks[i]
		c.err = err
		close(c.done)
		f.chunks[i] = nil
	}
}

// FromReaderAt returns a Loader which reads from r.  This is mostly useful
// for testing.
func FromReaderAt(r io.ReaderAt, size int64) Loader {
	return &readerAtLoader{r: r, size: size}
}

type readerAtLoader struct {
	r    io.ReaderAt
	size int64
}

func (l *readerAtLoader) Size(context.Context) (int64, error) {
	return l.size, nil
}

func (l *readerAtLoader) Load(ctx context.Context, r Range) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, r.Length)
	n, err := l.r.ReadAt(buf, r.Offset)
	if err == io.EOF && int64(n) == r.Length {
		err = nil
	}
	return buf[:n], err
}
