// Copyright 2026 The TLSFront Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httprelay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxHeaderBytes is the default limit on the size of a client request
// header, terminator included.
const DefaultMaxHeaderBytes = 64 * 1024

// endOfHeader returns the index just past the header terminator in buf, or -1
// if the header is still incomplete. Both CRLF CRLF and bare LF LF terminate,
// whichever comes first.
func endOfHeader(buf []byte) int {
	end := -1
	if i := bytes.Index(buf, []byte("\r\n\r\n")); i >= 0 {
		end = i + 4
	}
	if i := bytes.Index(buf, []byte("\n\n")); i >= 0 && (end < 0 || i+2 < end) {
		end = i + 2
	}
	return end
}

// readHeader reads from r until the blank line that terminates a request
// header and returns the header with the terminator included. A header that
// does not terminate within maxBytes is rejected no matter how its bytes are
// chunked across reads, so a client cannot make the relay buffer without
// bound. EOF before the terminator is reported as [io.ErrUnexpectedEOF].
func readHeader(r io.Reader, maxBytes int) ([]byte, error) {
	buf := make([]byte, 0, 1024)
	chunk := make([]byte, 1024)
	for {
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		end := endOfHeader(buf)
		if end > maxBytes || (end < 0 && len(buf) > maxBytes) {
			return nil, fmt.Errorf("request header exceeds %v bytes", maxBytes)
		}
		if end >= 0 {
			return buf[:end], nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

// HostFromRequest scans a request header for the first Host line and returns
// its value with surrounding whitespace trimmed. The field name match is
// case-insensitive and later duplicates are ignored. It returns
// [ErrMissingHost] when no Host line exists.
func HostFromRequest(header []byte) (string, error) {
	for _, line := range strings.Split(string(header), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if len(line) >= 5 && strings.EqualFold(line[:5], "Host:") {
			return strings.TrimSpace(line[5:]), nil
		}
	}
	return "", ErrMissingHost
}
