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

// Package config loads the relay daemon configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/beelabe/tlsfront/httprelay"
)

// Duration is a [time.Duration] that unmarshals from YAML strings like "45s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(data []byte) error {
	var text string
	if err := yaml.Unmarshal(data, &text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the relay daemon configuration.
type Config struct {
	// Listen is the address the relay accepts clients on.
	Listen string `yaml:"listen"`
	// Concurrency bounds how many connections are relayed at once.
	Concurrency int `yaml:"concurrency"`
	// Transport configures the dialer used to reach destinations, in the
	// [github.com/beelabe/tlsfront/configurl] format. Empty means direct
	// TCP.
	Transport string `yaml:"transport"`
	// MaxHeaderBytes caps the client request header size.
	MaxHeaderBytes int `yaml:"max_header_bytes"`
	// Timeouts are the per-stage limits of a relayed connection.
	Timeouts Timeouts `yaml:"timeouts"`
}

// Timeouts bound the stages of a relayed connection. A zero value disables
// that limit.
type Timeouts struct {
	// ReadHeader limits reading the client request header.
	ReadHeader Duration `yaml:"read_header"`
	// Dial limits connecting to the destination, TLS handshake included.
	Dial Duration `yaml:"dial"`
	// Exchange limits sending the request and reading the full response.
	Exchange Duration `yaml:"exchange"`
	// Write limits writing the response back to the client.
	Write Duration `yaml:"write"`
}

// Default returns the configuration used before any file overrides.
func Default() Config {
	return Config{
		Listen:         "127.0.0.1:8080",
		Concurrency:    httprelay.DefaultConcurrency,
		MaxHeaderBytes: httprelay.DefaultMaxHeaderBytes,
		Timeouts: Timeouts{
			ReadHeader: Duration(10 * time.Second),
			Dial:       Duration(20 * time.Second),
			Exchange:   Duration(60 * time.Second),
			Write:      Duration(30 * time.Second),
		},
	}
}

// Load reads the YAML file at path on top of [Default], so a file only needs
// the settings that differ. Unknown fields are rejected to catch typos.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.UnmarshalWithOptions(raw, &cfg, yaml.Strict()); err != nil {
		return Config{}, fmt.Errorf("could not parse config file %v: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Listen == "" {
		return errors.New("listen address must not be empty")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %v", c.Concurrency)
	}
	if c.MaxHeaderBytes < 1 {
		return fmt.Errorf("max_header_bytes must be at least 1, got %v", c.MaxHeaderBytes)
	}
	if c.Timeouts.ReadHeader < 0 || c.Timeouts.Dial < 0 || c.Timeouts.Exchange < 0 || c.Timeouts.Write < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}
