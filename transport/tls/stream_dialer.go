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

// Package tls provides client-side TLS on top of [transport.StreamDialer],
// with certificate validation against an explicit root pool.
package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/idna"

	"github.com/beelabe/tlsfront/transport"
)

// ErrInvalidServerName means the requested name cannot be used for SNI or
// certificate verification. It is reported before any connection is dialed.
var ErrInvalidServerName = errors.New("invalid server name")

// SystemRootCAs loads the certificate pool of the operating system trust
// store. The pool is meant to be loaded once at startup and shared across
// connections via [WithRootCAs].
func SystemRootCAs() (*x509.CertPool, error) {
	roots, err := x509.SystemCertPool()
	if err != nil {
		return nil, fmt.Errorf("failed to load system trust store: %w", err)
	}
	return roots, nil
}

// ValidateServerName checks that name is usable as a TLS server name: an IP
// literal, or a hostname accepted by the IDNA lookup rules. Values carrying a
// port, a path, or other junk fail. Errors match [ErrInvalidServerName].
func ValidateServerName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidServerName)
	}
	if net.ParseIP(name) != nil {
		return nil
	}
	if _, err := idna.Lookup.ToASCII(name); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidServerName, name, err)
	}
	return nil
}

// StreamDialer is a [transport.StreamDialer] that wraps connections from the
// inner StreamDialer with TLS.
type StreamDialer struct {
	// dialer provides the underlying connection to be wrapped.
	dialer transport.StreamDialer
	// options to configure the tls.Config.
	options []ClientOption
}

var _ transport.StreamDialer = (*StreamDialer)(nil)

// NewStreamDialer creates a [StreamDialer] that wraps the connections from the
// baseDialer with TLS configured with the given options.
func NewStreamDialer(baseDialer transport.StreamDialer, options ...ClientOption) (*StreamDialer, error) {
	if baseDialer == nil {
		return nil, errors.New("base dialer must not be nil")
	}
	return &StreamDialer{baseDialer, options}, nil
}

// DialStream implements [transport.StreamDialer]. The host part of remoteAddr
// is validated as a server name before the inner dial happens, so an invalid
// name never opens a connection.
func (d *StreamDialer) DialStream(ctx context.Context, remoteAddr string) (transport.StreamConn, error) {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	if err := ValidateServerName(host); err != nil {
		return nil, err
	}
	innerConn, err := d.dialer.DialStream(ctx, remoteAddr)
	if err != nil {
		return nil, err
	}
	conn, err := WrapConn(ctx, innerConn, host, d.options...)
	if err != nil {
		innerConn.Close()
		return nil, err
	}
	return conn, nil
}

// streamConn provides a [transport.StreamConn] view of a [tls.Conn].
type streamConn struct {
	*tls.Conn
	innerConn transport.StreamConn
}

var _ transport.StreamConn = (*streamConn)(nil)

func (c streamConn) CloseWrite() error {
	tlsErr := c.Conn.CloseWrite()
	return errors.Join(tlsErr, c.innerConn.CloseWrite())
}

func (c streamConn) CloseRead() error {
	return c.innerConn.CloseRead()
}

// ClientConfig encodes the parameters for a TLS client connection.
type ClientConfig struct {
	// The host name sent in the Server Name Indication (SNI).
	ServerName string
	// The host name the server certificate must be valid for.
	CertificateName string
	// Roots the certificate chain must verify against. When nil, platform
	// default verification applies.
	Roots *x509.CertPool
	// The protocol id list for protocol negotiation (ALPN).
	NextProtos []string
}

// toStdConfig creates a [tls.Config] based on the configured parameters.
func (cfg *ClientConfig) toStdConfig() *tls.Config {
	return &tls.Config{
		ServerName: cfg.ServerName,
		NextProtos: cfg.NextProtos,
		// Standard validation is replaced so the certificate name and the
		// root pool stay under our control. InsecureSkipVerify does not
		// disable VerifyConnection. See the example in
		// https://pkg.go.dev/crypto/tls#example-Config-VerifyConnection
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			opts := x509.VerifyOptions{
				DNSName:       cfg.CertificateName,
				Roots:         cfg.Roots,
				Intermediates: x509.NewCertPool(),
			}
			for _, cert := range cs.PeerCertificates[1:] {
				opts.Intermediates.AddCert(cert)
			}
			_, err := cs.PeerCertificates[0].Verify(opts)
			return err
		},
	}
}

// ClientOption adjusts the parameters of a client TLS connection.
type ClientOption func(serverName string, config *ClientConfig)

// WrapConn wraps a [transport.StreamConn] in a TLS client connection and runs
// the handshake. It only returns a connection whose certificate chain
// verified; on any failure the caller still owns conn and should close it.
func WrapConn(ctx context.Context, conn transport.StreamConn, serverName string, options ...ClientOption) (transport.StreamConn, error) {
	cfg := ClientConfig{ServerName: serverName, CertificateName: serverName}
	normName := normalizeHost(serverName)
	for _, option := range options {
		option(normName, &cfg)
	}
	tlsConn := tls.Client(conn, cfg.toStdConfig())
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return streamConn{tlsConn, conn}, nil
}

func normalizeHost(host string) string {
	return strings.ToLower(host)
}

// WithSNI sets the host name for [Server Name Indication] (SNI).
// If absent, defaults to the dialed hostname.
// Note that this only changes what is sent in the SNI, not the host used for
// certificate verification.
//
// [Server Name Indication]: https://datatracker.ietf.org/doc/html/rfc6066#section-3
func WithSNI(hostName string) ClientOption {
	return func(_ string, config *ClientConfig) {
		config.ServerName = hostName
	}
}

// WithCertificateName sets the host name used for certificate verification.
// If absent, defaults to the dialed hostname.
func WithCertificateName(hostName string) ClientOption {
	return func(_ string, config *ClientConfig) {
		config.CertificateName = hostName
	}
}

// WithRootCAs sets the certificate pool the server chain must verify against,
// typically the pool from [SystemRootCAs].
func WithRootCAs(roots *x509.CertPool) ClientOption {
	return func(_ string, config *ClientConfig) {
		config.Roots = roots
	}
}

// WithALPN sets the protocol name list for [Application-Layer Protocol Negotiation] (ALPN).
//
// [Application-Layer Protocol Negotiation]: https://datatracker.ietf.org/doc/html/rfc7301
func WithALPN(protocolNameList []string) ClientOption {
	return func(_ string, config *ClientConfig) {
		config.NextProtos = protocolNameList
	}
}
