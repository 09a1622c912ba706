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
	"io"
)

// buildRequest returns the request sent to every destination. The relay
// always fetches the root document over HTTP/1.1 and asks the server to
// close the connection, so EOF marks the end of the response.
func buildRequest(host string) []byte {
	return []byte("GET / HTTP/1.1\r\nHost: " + host + "\r\nConnection: close\r\n\r\n")
}

// sendRequest writes the fixed request for host to w in a single call.
func sendRequest(w io.Writer, host string) error {
	_, err := w.Write(buildRequest(host))
	return err
}

// readResponse reads r to EOF and returns everything the destination sent,
// status line and headers included. The bytes are relayed back verbatim, so
// no parsing happens here.
func readResponse(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}
