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

package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// HTTP loads byte ranges of a file from a web server, using HTTP range
// requests.
type HTTP struct {
	URL string

	// Client is used for all requests.  If this is nil,
	// http.DefaultClient is used.
	Client *http.Client

	// Header holds additional header fields for all requests.
	Header http.Header
}

var errNoRanges = errors.New("server does not support range requests")

// OpenURL returns a File which reads the given URL in chunks.
func OpenURL(ctx context.Context, url string, opt *Options) (*File, error) {
	return New(ctx, &HTTP{URL: url}, opt)
}

func (h *HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}

func (h *HTTP) newRequest(ctx context.Context, method string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.URL, nil)
	if err != nil {
		return nil, err
	}
	for key, vals := range h.Header {
		for _, val := range vals {
			req.Header.Add(key, val)
		}
	}
	return req, nil
}

// Size determines the length of the file.  A HEAD request is tried first.
// If the server does not report the length, a request for the first byte
// of the file is used instead.
func (h *HTTP) Size(ctx context.Context) (int64, error) {
	req, err := h.newRequest(ctx, http.MethodHead)
	if err != nil {
		return 0, err
	}
	resp, err := h.client().Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK && resp.ContentLength >= 0 {
		return resp.ContentLength, nil
	}

	req, err = h.newRequest(ctx, http.MethodGet)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err = h.client().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("%s: %s", h.URL, resp.Status)
	}
	return parseContentRangeSize(resp.Header.Get("Content-Range"))
}

// parseContentRangeSize extracts the total length from a Content-Range
// header of the form "bytes 0-0/1234".
func parseContentRangeSize(s string) (int64, error) {
	_, total, ok := strings.Cut(s, "/")
	if !ok || !strings.HasPrefix(s, "bytes ") {
		return 0, fmt.Errorf("malformed Content-Range %q", s)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("malformed Content-Range %q", s)
	}
	return size, nil
}

// Load fetches a range of bytes using a "Range: bytes=a-b" request.
func (h *HTTP) Load(ctx context.Context, r Range) ([]byte, error) {
	req, err := h.newRequest(ctx, http.MethodGet)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", r.Offset, r.Offset+r.Length-1))
	resp, err := h.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	switch resp.StatusCode {
	case http.StatusPartialContent:
		// pass
	case http.StatusOK:
		// The server ignored the range and sends the whole file.
		if r.Offset > 0 {
			_, err := io.CopyN(io.Discard, body, r.Offset)
			if err != nil {
				return nil, err
			}
		}
	case http.StatusRequestedRangeNotSatisfiable:
		return nil, errNoRanges
	default:
		return nil, fmt.Errorf("%s: %s", h.URL, resp.Status)
	}

	buf := make([]byte, r.Length)
	_, err = io.ReadFull(body, buf)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
