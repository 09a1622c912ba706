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

/*
Package configurl builds the relay's upstream stream dialer from a text
config, so the path to the destination can be changed without code changes.

# Config Format

The configuration string is composed of parts separated by the `|` symbol,
which define nested dialers. For example, `A|B` means dialer `B` takes dialer
`A` as its input. An empty string represents the direct TCP dialer, and is
used as the input to the first configured dialer.

Each part follows a URL format, where the scheme selects the dialer type:

SOCKS5 proxy (no authentication, package [socks5])

	socks5://[HOST]:[PORT]

Stream split (package [split]). The stream is split once PREFIX_LENGTH bytes
have been written:

	split:[PREFIX_LENGTH]

Address override. Rewrites the host, the port, or both of every dialed
address before passing it to the input dialer:

	override:host=[HOST]&port=[PORT]

TLS (package [tls]). The sni parameter sets the name sent in the TLS SNI and
may be empty; certname sets the name the server certificate is validated
against:

	tls:sni=[SNI]&certname=[CERT_NAME]

# Examples

To reach the destination through a local SOCKS5 proxy, splitting the bytes
the relay first writes to the proxy on byte 2:

	split:2|socks5://127.0.0.1:1080

To send all upstream connections to a fixed address:

	override:host=upstream.example.com&port=8443
*/
package configurl

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/beelabe/tlsfront/transport"
	"github.com/beelabe/tlsfront/transport/socks5"
	"github.com/beelabe/tlsfront/transport/split"
)

func parseConfigPart(oneDialerConfig string) (*url.URL, error) {
	oneDialerConfig = strings.TrimSpace(oneDialerConfig)
	if oneDialerConfig == "" {
		return nil, errors.New("empty config part")
	}
	// Add a ":" suffix to a bare "<scheme>" so it parses as a URL.
	if !strings.Contains(oneDialerConfig, ":") {
		oneDialerConfig += ":"
	}
	url, err := url.Parse(oneDialerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config part: %w", err)
	}
	return url, nil
}

// NewStreamDialer creates a [transport.StreamDialer] according to the given
// config, with the direct TCP dialer as its base.
func NewStreamDialer(transportConfig string) (transport.StreamDialer, error) {
	return WrapStreamDialer(&transport.TCPDialer{}, transportConfig)
}

// WrapStreamDialer creates a [transport.StreamDialer] according to
// transportConfig, using dialer as the base. The given dialer must not be nil.
func WrapStreamDialer(dialer transport.StreamDialer, transportConfig string) (transport.StreamDialer, error) {
	if dialer == nil {
		return nil, errors.New("base dialer must not be nil")
	}
	transportConfig = strings.TrimSpace(transportConfig)
	if transportConfig == "" {
		return dialer, nil
	}
	var err error
	for _, part := range strings.Split(transportConfig, "|") {
		dialer, err = newStreamDialerFromPart(dialer, part)
		if err != nil {
			return nil, err
		}
	}
	return dialer, nil
}

func newStreamDialerFromPart(innerDialer transport.StreamDialer, oneDialerConfig string) (transport.StreamDialer, error) {
	url, err := parseConfigPart(oneDialerConfig)
	if err != nil {
		return nil, err
	}

	// Please keep scheme list sorted.
	switch strings.ToLower(url.Scheme) {
	case "override":
		return wrapStreamDialerWithOverride(innerDialer, url)

	case "socks5":
		endpoint := transport.StreamDialerEndpoint{Dialer: innerDialer, Address: url.Host}
		return socks5.NewStreamDialer(&endpoint)

	case "split":
		prefixBytesStr := url.Opaque
		prefixBytes, err := strconv.Atoi(prefixBytesStr)
		if err != nil {
			return nil, fmt.Errorf("prefixBytes is not a number: %v. Split config should be in split:<number> format", prefixBytesStr)
		}
		return split.NewStreamDialer(innerDialer, int64(prefixBytes))

	case "tls":
		return wrapStreamDialerWithTLS(innerDialer, url)

	default:
		return nil, fmt.Errorf("config scheme '%v' is not supported", url.Scheme)
	}
}
