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

// Package transport defines the stream connection and dialer abstractions the
// relay is built on. Dialers can be composed: each layer wraps the connection
// produced by the layer below it.
package transport

import (
	"context"
	"io"
	"net"
)

// StreamConn is a [net.Conn] whose read and write ends can be closed
// independently, supporting the half-open state.
type StreamConn interface {
	net.Conn
	// CloseRead closes the read end. No more reads should happen after it is
	// called, and resources associated with reading may be released.
	CloseRead() error
	// CloseWrite closes the write end, typically signaling EOF or FIN to the
	// other side. Reads are still allowed.
	CloseWrite() error
}

// StreamDialer establishes stream connections to any "host:port" address,
// where host may be a domain name or an IP address.
type StreamDialer interface {
	DialStream(ctx context.Context, remoteAddr string) (StreamConn, error)
}

// FuncStreamDialer adapts a dial function to the [StreamDialer] interface.
type FuncStreamDialer func(ctx context.Context, remoteAddr string) (StreamConn, error)

var _ StreamDialer = (FuncStreamDialer)(nil)

// DialStream implements [StreamDialer].
func (f FuncStreamDialer) DialStream(ctx context.Context, remoteAddr string) (StreamConn, error) {
	return f(ctx, remoteAddr)
}

// TCPDialer is a [StreamDialer] that connects over TCP using its embedded
// [net.Dialer]. The zero value is ready to use.
type TCPDialer struct {
	Dialer net.Dialer
}

var _ StreamDialer = (*TCPDialer)(nil)

// DialStream implements [StreamDialer].
func (d *TCPDialer) DialStream(ctx context.Context, remoteAddr string) (StreamConn, error) {
	conn, err := d.Dialer.DialContext(ctx, "tcp", remoteAddr)
	if err != nil {
		return nil, err
	}
	return conn.(*net.TCPConn), nil
}

// StreamEndpoint establishes stream connections to a fixed destination.
// Useful when a (dialer, address) pair would otherwise be passed around
// together, as with a proxy address.
type StreamEndpoint interface {
	ConnectStream(ctx context.Context) (StreamConn, error)
}

// FuncStreamEndpoint adapts a connect function to the [StreamEndpoint] interface.
type FuncStreamEndpoint func(ctx context.Context) (StreamConn, error)

var _ StreamEndpoint = (FuncStreamEndpoint)(nil)

// ConnectStream implements [StreamEndpoint].
func (f FuncStreamEndpoint) ConnectStream(ctx context.Context) (StreamConn, error) {
	return f(ctx)
}

// TCPEndpoint is a [StreamEndpoint] that connects to Address over TCP.
type TCPEndpoint struct {
	// Address of the endpoint, in "host:port" form.
	Address string
	// Dialer used on ConnectStream.
	Dialer net.Dialer
}

var _ StreamEndpoint = (*TCPEndpoint)(nil)

// ConnectStream implements [StreamEndpoint].
func (e *TCPEndpoint) ConnectStream(ctx context.Context) (StreamConn, error) {
	conn, err := e.Dialer.DialContext(ctx, "tcp", e.Address)
	if err != nil {
		return nil, err
	}
	return conn.(*net.TCPConn), nil
}

// StreamDialerEndpoint binds a [StreamDialer] to a fixed address, giving a
// [StreamEndpoint].
type StreamDialerEndpoint struct {
	Dialer  StreamDialer
	Address string
}

var _ StreamEndpoint = (*StreamDialerEndpoint)(nil)

// ConnectStream implements [StreamEndpoint].
func (e *StreamDialerEndpoint) ConnectStream(ctx context.Context) (StreamConn, error) {
	return e.Dialer.DialStream(ctx, e.Address)
}

type duplexConnAdaptor struct {
	StreamConn
	r io.Reader
	w io.Writer
}

var _ StreamConn = (*duplexConnAdaptor)(nil)

func (dc *duplexConnAdaptor) Read(b []byte) (int, error) {
	return dc.r.Read(b)
}
func (dc *duplexConnAdaptor) WriteTo(w io.Writer) (int64, error) {
	return io.Copy(w, dc.r)
}
func (dc *duplexConnAdaptor) CloseRead() error {
	return dc.StreamConn.CloseRead()
}
func (dc *duplexConnAdaptor) Write(b []byte) (int, error) {
	return dc.w.Write(b)
}
func (dc *duplexConnAdaptor) ReadFrom(r io.Reader) (int64, error) {
	return io.Copy(dc.w, r)
}
func (dc *duplexConnAdaptor) CloseWrite() error {
	return dc.StreamConn.CloseWrite()
}

// WrapConn replaces the read and write paths of an existing [StreamConn]
// while preserving its CloseRead and CloseWrite behavior.
func WrapConn(c StreamConn, r io.Reader, w io.Writer) StreamConn {
	conn := c
	// Unnest adaptors so stacked wraps stay one level deep.
	if a, ok := c.(*duplexConnAdaptor); ok {
		conn = a.StreamConn
	}
	return &duplexConnAdaptor{StreamConn: conn, r: r, w: w}
}
