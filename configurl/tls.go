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
	"fmt"
	"net/url"
	"strings"

	"github.com/beelabe/tlsfront/transport"
	"github.com/beelabe/tlsfront/transport/tls"
)

func parseTLSOptions(configURL *url.URL) ([]tls.ClientOption, error) {
	values, err := url.ParseQuery(configURL.Opaque)
	if err != nil {
		return nil, err
	}
	options := []tls.ClientOption{}
	for key, values := range values {
		switch strings.ToLower(key) {
		case "sni":
			if len(values) != 1 {
				return nil, fmt.Errorf("sni option must have one value, found %v", len(values))
			}
			options = append(options, tls.WithSNI(values[0]))
		case "certname":
			if len(values) != 1 {
				return nil, fmt.Errorf("certname option must have one value, found %v", len(values))
			}
			options = append(options, tls.WithCertificateName(values[0]))
		default:
			return nil, fmt.Errorf("unsupported option %v", key)
		}
	}
	return options, nil
}

func wrapStreamDialerWithTLS(innerDialer transport.StreamDialer, configURL *url.URL) (transport.StreamDialer, error) {
	options, err := parseTLSOptions(configURL)
	if err != nil {
		return nil, err
	}
	return tls.NewStreamDialer(innerDialer, options...)
}
