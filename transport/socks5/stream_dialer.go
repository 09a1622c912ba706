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

package socks5

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/beelabe/tlsfront/transport"
)

// StreamDialer routes stream connections through a SOCKS5 proxy.
type StreamDialer struct {
	proxyEndpoint transport.StreamEndpoint
}

var _ transport.StreamDialer = (*StreamDialer)(nil)

// NewStreamDialer creates a [transport.StreamDialer] that tunnels connections
// through the SOCKS5 proxy at the given endpoint. Only the no-authentication
// method is offered.
func NewStreamDialer(proxyEndpoint transport.StreamEndpoint) (*StreamDialer, error) {
	if proxyEndpoint == nil {
		return nil, errors.New("argument proxyEndpoint must not be nil")
	}
	return &StreamDialer{proxyEndpoint: proxyEndpoint}, nil
}

// DialStream implements [transport.StreamDialer] using SOCKS5. The method
// selection and the connect request are sent in a single write: only one
// authentication method is offered, so there is no reason to wait for the
// method reply first, and merging them saves a round trip. If the proxy
// refuses the request, the returned error matches the [ReplyCode] constants
// of this package via [errors.Is].
func (d *StreamDialer) DialStream(ctx context.Context, remoteAddr string) (transport.StreamConn, error) {
	proxyConn, err := d.proxyEndpoint.ConnectStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not connect to SOCKS5 proxy: %w", err)
	}
	dialSuccess := false
	defer func() {
		if !dialSuccess {
			proxyConn.Close()
		}
	}()

	// Method selection (VER=5, NMETHODS=1, METHODS=[no-auth]) followed by the
	// connect request (VER=5, CMD=1, RSV=0, DST.ADDR, DST.PORT). See
	// https://datatracker.ietf.org/doc/html/rfc1928#section-3.
	// Sized for the largest request: 3 method bytes, 3 request bytes, and a
	// domain name address of up to 1+1+255+2 bytes.
	var buffer [3 + 3 + 259]byte
	b := append(buffer[:0], 5, 1, authMethodNoAuth)
	b = append(b, 5, cmdConnect, 0)
	b, err = appendAddress(b, remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode SOCKS5 address: %w", err)
	}
	if _, err = proxyConn.Write(b); err != nil {
		return nil, fmt.Errorf("failed to write SOCKS5 request: %w", err)
	}

	// Method reply: VER, METHOD.
	if _, err = io.ReadFull(proxyConn, buffer[:2]); err != nil {
		return nil, fmt.Errorf("failed to read method reply: %w", err)
	}
	if buffer[0] != 5 {
		return nil, fmt.Errorf("invalid protocol version %v, expected 5", buffer[0])
	}
	if buffer[1] != authMethodNoAuth {
		return nil, fmt.Errorf("unsupported authentication method %v", buffer[1])
	}

	// Connect reply: VER, REP, RSV, ATYP, BND.ADDR, BND.PORT. See
	// https://datatracker.ietf.org/doc/html/rfc1928#section-6.
	if _, err = io.ReadFull(proxyConn, buffer[:4]); err != nil {
		return nil, fmt.Errorf("failed to read connect reply: %w", err)
	}
	if buffer[0] != 5 {
		return nil, fmt.Errorf("invalid protocol version %v, expected 5", buffer[0])
	}
	if buffer[1] != 0 {
		return nil, ReplyCode(buffer[1])
	}

	// The bound address and port are read and discarded.
	var bndAddrLen int
	switch buffer[3] {
	case addrTypeIPv4:
		bndAddrLen = 4
	case addrTypeIPv6:
		bndAddrLen = 16
	case addrTypeDomainName:
		if _, err := io.ReadFull(proxyConn, buffer[:1]); err != nil {
			return nil, fmt.Errorf("failed to read bound address length: %w", err)
		}
		bndAddrLen = int(buffer[0])
	default:
		return nil, fmt.Errorf("invalid address type %v", buffer[3])
	}
	if _, err := io.ReadFull(proxyConn, buffer[:bndAddrLen+2]); err != nil {
		return nil, fmt.Errorf("failed to read bound address: %w", err)
	}

	dialSuccess = true
	return proxyConn, nil
}
