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

// Package split provides a dialer that forces a segment boundary at a fixed
// position of the outgoing byte stream. Splitting the first bytes written on
// a connection breaks the TLS ClientHello across TCP segments.
package split

import (
	"context"
	"errors"

	"github.com/beelabe/tlsfront/transport"
)

type splitDialer struct {
	dialer      transport.StreamDialer
	prefixBytes int64
}

var _ transport.StreamDialer = (*splitDialer)(nil)

// NewStreamDialer creates a [transport.StreamDialer] that splits the outgoing
// stream after prefixBytes bytes.
func NewStreamDialer(dialer transport.StreamDialer, prefixBytes int64) (transport.StreamDialer, error) {
	if dialer == nil {
		return nil, errors.New("argument dialer must not be nil")
	}
	return &splitDialer{dialer: dialer, prefixBytes: prefixBytes}, nil
}

// DialStream implements [transport.StreamDialer].
func (d *splitDialer) DialStream(ctx context.Context, remoteAddr string) (transport.StreamConn, error) {
	innerConn, err := d.dialer.DialStream(ctx, remoteAddr)
	if err != nil {
		return nil, err
	}
	return transport.WrapConn(innerConn, innerConn, NewWriter(innerConn, d.prefixBytes)), nil
}
