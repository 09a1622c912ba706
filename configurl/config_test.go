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

package configurl

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/things-go/go-socks5"

	"github.com/beelabe/tlsfront/transport"
)

func TestWrapStreamDialerEmptyConfig(t *testing.T) {
	base := &transport.TCPDialer{}
	dialer, err := WrapStreamDialer(base, "  ")
	require.NoError(t, err)
	require.Equal(t, transport.StreamDialer(base), dialer)
}

func TestWrapStreamDialerNilBase(t *testing.T) {
	_, err := WrapStreamDialer(nil, "split:2")
	require.Error(t, err)
}

func TestUnsupportedScheme(t *testing.T) {
	_, err := NewStreamDialer("quantum:1")
	require.Error(t, err)
}

func TestSplitConfig(t *testing.T) {
	_, err := NewStreamDialer("split:2")
	require.NoError(t, err)

	_, err = NewStreamDialer("split:two")
	require.Error(t, err)
}

func TestTLSConfig(t *testing.T) {
	_, err := NewStreamDialer("tls:sni=decoy.example.com&certname=real.example.com")
	require.NoError(t, err)

	_, err = NewStreamDialer("tls:unknownoption=1")
	require.Error(t, err)
}

func Test_newOverrideFromURL(t *testing.T) {
	parse := func(t *testing.T, config string) *url.URL {
		cfgURL, err := url.Parse(config)
		require.NoError(t, err)
		return cfgURL
	}
	t.Run("Host Override", func(t *testing.T) {
		override, err := newOverrideFromURL(parse(t, "override:host=upstream.example.com"))
		require.NoError(t, err)
		addr, err := override("www.example.org:443")
		require.NoError(t, err)
		require.Equal(t, "upstream.example.com:443", addr)
	})
	t.Run("Port Override", func(t *testing.T) {
		override, err := newOverrideFromURL(parse(t, "override:port=8443"))
		require.NoError(t, err)
		addr, err := override("192.0.2.1:443")
		require.NoError(t, err)
		require.Equal(t, "192.0.2.1:8443", addr)
	})
	t.Run("Full Override", func(t *testing.T) {
		override, err := newOverrideFromURL(parse(t, "override:host=192.0.2.1&port=8443"))
		require.NoError(t, err)
		addr, err := override("www.example.org:443")
		require.NoError(t, err)
		require.Equal(t, "192.0.2.1:8443", addr)
	})
	t.Run("Invalid Address", func(t *testing.T) {
		override, err := newOverrideFromURL(parse(t, "override:host=upstream.example.com"))
		require.NoError(t, err)
		_, err = override("foo bar")
		require.Error(t, err)
	})
	t.Run("Unknown Option", func(t *testing.T) {
		_, err := newOverrideFromURL(parse(t, "override:path=/x"))
		require.Error(t, err)
	})
}

// startEchoListener runs a TCP echo server and returns its address.
func startEchoListener(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				io.Copy(conn, conn)
			}()
		}
	}()
	return listener.Addr().String()
}

func TestOverrideDialerRedirects(t *testing.T) {
	echoAddr := startEchoListener(t)
	_, echoPort, err := net.SplitHostPort(echoAddr)
	require.NoError(t, err)

	dialer, err := NewStreamDialer("override:host=127.0.0.1&port=" + echoPort)
	require.NoError(t, err)

	conn, err := dialer.DialStream(context.Background(), "www.example.org:443")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))
}

// TestChainedDialer composes split and socks5 parts and tunnels an exchange
// through a real SOCKS5 server to a local echo server.
func TestChainedDialer(t *testing.T) {
	echoAddr := startEchoListener(t)

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

	dialer, err := NewStreamDialer("split:3|socks5://" + proxyListener.Addr().String())
	require.NoError(t, err)

	conn, err := dialer.DialStream(context.Background(), echoAddr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("chained ping"))
	require.NoError(t, err)
	buf := make([]byte, len("chained ping"))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	require.Equal(t, "chained ping", string(buf))
}
