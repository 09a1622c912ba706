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

// Package httprelay implements a plaintext-to-TLS fetch relay. Each client
// connection carries one HTTP request; the relay reads its header, opens a
// validated TLS connection to port 443 of the Host header value, fetches the
// root document with a fixed request and relays the response bytes back
// unmodified. The client request is otherwise discarded.
package httprelay

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/beelabe/tlsfront/transport"
	"github.com/beelabe/tlsfront/transport/tls"
)

// Handler relays one client connection to the destination named by its Host
// header. The zero value is not usable; construct it with [NewHandler].
type Handler struct {
	dialer     transport.StreamDialer
	tlsOptions []tls.ClientOption

	// MaxHeaderBytes caps the client request header size.
	// Zero means [DefaultMaxHeaderBytes].
	MaxHeaderBytes int
	// ReadHeaderTimeout limits reading the client request header.
	ReadHeaderTimeout time.Duration
	// DialTimeout limits connecting to the destination, TLS handshake
	// included.
	DialTimeout time.Duration
	// ExchangeTimeout limits sending the request and reading the full
	// response from the destination.
	ExchangeTimeout time.Duration
	// WriteTimeout limits writing the response back to the client.
	// A zero timeout disables the corresponding deadline.
	WriteTimeout time.Duration
}

// NewHandler creates a [Handler] that reaches destinations through baseDialer
// and configures destination TLS with tlsOptions. All timeouts start
// disabled.
func NewHandler(baseDialer transport.StreamDialer, tlsOptions ...tls.ClientOption) (*Handler, error) {
	if baseDialer == nil {
		return nil, errors.New("base dialer must not be nil")
	}
	return &Handler{dialer: baseDialer, tlsOptions: tlsOptions}, nil
}

// Handle serves one client connection and returns the stage error that ended
// it, or nil once the full response has been relayed. On failure nothing is
// written back, the client just sees its connection close. Handle closes the
// destination connection it opens; clientConn stays owned by the caller.
func (h *Handler) Handle(ctx context.Context, clientConn net.Conn) error {
	if h.ReadHeaderTimeout > 0 {
		clientConn.SetReadDeadline(time.Now().Add(h.ReadHeaderTimeout))
	}
	maxBytes := h.MaxHeaderBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxHeaderBytes
	}
	header, err := readHeader(clientConn, maxBytes)
	if h.ReadHeaderTimeout > 0 {
		clientConn.SetReadDeadline(time.Time{})
	}
	if err != nil {
		return stageError(ErrRequest, err)
	}

	host, err := HostFromRequest(header)
	if err != nil {
		return err
	}
	if err := tls.ValidateServerName(host); err != nil {
		return stageError(ErrServerName, err)
	}

	targetConn, err := h.connect(ctx, host)
	if err != nil {
		return err
	}
	defer targetConn.Close()

	if h.ExchangeTimeout > 0 {
		targetConn.SetDeadline(time.Now().Add(h.ExchangeTimeout))
	}
	if err := sendRequest(targetConn, host); err != nil {
		return stageError(ErrWrite, err)
	}
	response, err := readResponse(targetConn)
	if err != nil {
		return stageError(ErrRead, err)
	}

	if h.WriteTimeout > 0 {
		clientConn.SetWriteDeadline(time.Now().Add(h.WriteTimeout))
	}
	if _, err := clientConn.Write(response); err != nil {
		return stageError(ErrRespond, err)
	}
	return nil
}

// connect opens the transport connection to port 443 of host and wraps it in
// TLS. The host was already validated, so no outbound connection is ever made
// for a name that cannot be verified.
func (h *Handler) connect(ctx context.Context, host string) (transport.StreamConn, error) {
	if h.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.DialTimeout)
		defer cancel()
	}
	innerConn, err := h.dialer.DialStream(ctx, net.JoinHostPort(host, "443"))
	if err != nil {
		return nil, stageError(ErrConnect, err)
	}
	targetConn, err := tls.WrapConn(ctx, innerConn, host, h.tlsOptions...)
	if err != nil {
		innerConn.Close()
		return nil, stageError(ErrHandshake, err)
	}
	return targetConn, nil
}
