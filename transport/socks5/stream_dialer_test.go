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
	"net"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/things-go/go-socks5"

	"github.com/beelabe/tlsfront/transport"
)

func TestNewStreamDialerNilEndpoint(t *testing.T) {
	dialer, err := NewStreamDialer(nil)
	require.Nil(t, dialer)
	require.Error(t, err)
}

func TestDialStreamProxyUnreachable(t *testing.T) {
	dialer, err := NewStreamDialer(&transport.TCPEndpoint{Address: "127.0.0.0:0"})
	require.NotNil(t, dialer)
	require.NoError(t, err)
	_, err = dialer.DialStream(context.Background(), "example.com:443")
	require.Error(t, err)
}

func TestDialStreamBadAddress(t *testing.T) {
	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err, "Failed to create TCP listener: %v", err)
	defer listener.Close()

	dialer, err := NewStreamDialer(&transport.TCPEndpoint{Address: listener.Addr().String()})
	require.NoError(t, err)

	_, err = dialer.DialStream(context.Background(), "noport")
	require.Error(t, err)
}

func TestDialStreamAddressTypes(t *testing.T) {
	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err, "Failed to create TCP listener: %v", err)
	defer listener.Close()

	testExchange(t, listener, "example.com:443", []byte("Request"), []byte("Response"), 0)
	testExchange(t, listener, "198.51.100.8:444", []byte("Request"), []byte("Response"), 0)
	testExchange(t, listener, "[2001:db8::8]:853", []byte("Request"), []byte("Response"), 0)
}

func TestDialStreamReplyCodes(t *testing.T) {
	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err, "Failed to create TCP listener: %v", err)
	defer listener.Close()

	for _, replyCode := range []ReplyCode{
		ErrGeneralServerFailure,
		ErrConnectionNotAllowedByRuleset,
		ErrNetworkUnreachable,
		ErrHostUnreachable,
		ErrConnectionRefused,
		ErrTTLExpired,
		ErrCommandNotSupported,
		ErrAddressTypeNotSupported,
		ReplyCode(0xff),
	} {
		t.Run(fmt.Sprintf("ReplyCode=%v", replyCode), func(t *testing.T) {
			testExchange(t, listener, "example.com:443", nil, nil, replyCode)
		})
	}
}

// testExchange runs a scripted SOCKS5 server against the dialer and relays
// request and response over the tunneled connection. A non-zero replyCode
// makes the server refuse the connect request.
func testExchange(tb testing.TB, listener *net.TCPListener, destAddr string, request []byte, response []byte, replyCode ReplyCode) {
	var running sync.WaitGroup
	running.Add(2)

	// Client
	go func() {
		defer running.Done()
		proxyEndpoint := transport.FuncStreamEndpoint(func(ctx context.Context) (transport.StreamConn, error) {
			return (&transport.TCPDialer{}).DialStream(ctx, listener.Addr().String())
		})
		dialer, err := NewStreamDialer(proxyEndpoint)
		require.NoError(tb, err)
		serverConn, err := dialer.DialStream(context.Background(), destAddr)
		if replyCode != 0 {
			require.ErrorIs(tb, err, replyCode)
			var extractedReplyCode ReplyCode
			require.True(tb, errors.As(err, &extractedReplyCode))
			require.Equal(tb, replyCode, extractedReplyCode)
			return
		}
		require.NoError(tb, err, "DialStream failed")
		require.Equal(tb, listener.Addr().String(), serverConn.RemoteAddr().String())
		defer serverConn.Close()

		n, err := serverConn.Write(request)
		require.NoError(tb, err)
		require.Equal(tb, len(request), n)
		assert.NoError(tb, serverConn.CloseWrite())

		err = iotest.TestReader(serverConn, response)
		require.NoError(tb, err, "Response read failed: %v", err)
	}()

	// Server
	go func() {
		defer running.Done()
		clientConn, err := listener.AcceptTCP()
		require.NoError(tb, err, "AcceptTCP failed: %v", err)
		defer clientConn.Close()

		// The method and connect requests arrive together, before any server
		// response is written.
		expected := []byte{5, 1, 0, 5, 1, 0}
		expected, err = appendAddress(expected, destAddr)
		require.NoError(tb, err)
		err = iotest.TestReader(io.LimitReader(clientConn, int64(len(expected))), expected)
		assert.NoError(tb, err, "Request read failed: %v", err)

		// Method reply (VER=5, METHOD=0) and connect reply with an IPv4
		// bound address.
		_, err = clientConn.Write([]byte{5, 0, 5, byte(replyCode), 0, 1, 0, 0, 0, 0, 0, 0})
		assert.NoError(tb, err, "Write failed: %v", err)

		if request != nil {
			err = iotest.TestReader(clientConn, request)
			assert.NoError(tb, err, "Request read failed: %v", err)
		}

		if response != nil {
			n, err := clientConn.Write(response)
			require.NoError(tb, err)
			require.Equal(tb, len(response), n)
		}

		// On refused requests the client may close before our CloseWrite,
		// so its error is not fatal.
		if err := clientConn.CloseWrite(); err != nil {
			tb.Logf("CloseWrite failed: %v", err)
		}
	}()

	running.Wait()
}

// TestDialStreamRealServer tunnels an exchange through an actual SOCKS5
// server to a local echo server.
func TestDialStreamRealServer(t *testing.T) {
	// Echo target.
	targetListener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer targetListener.Close()
	go func() {
		for {
			conn, err := targetListener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				io.Copy(conn, conn)
			}()
		}
	}()

	// SOCKS5 proxy with the default no-auth configuration.
	proxyListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer proxyListener.Close()
	proxySrv := socks5.NewServer()
	go func() {
		err := proxySrv.Serve(proxyListener)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			t.Logf("proxy serve: %v", err)
		}
	}()

	dialer, err := NewStreamDialer(&transport.TCPEndpoint{Address: proxyListener.Addr().String()})
	require.NoError(t, err)

	conn, err := dialer.DialStream(context.Background(), targetListener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello through socks"))
	require.NoError(t, err)
	buf := make([]byte, len("hello through socks"))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	require.Equal(t, "hello through socks", string(buf))
}
