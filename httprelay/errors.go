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

package httprelay

import (
	"errors"
)

// Errors returned by [Handler.Handle], one per stage of the relay. They only
// ever fail the connection that hit them; the serving loop stays up. Use
// [errors.Is] to match the stage and [errors.Unwrap] to reach the cause.
var (
	// ErrRequest means the client request header could not be read: the
	// connection closed early, the read timed out, or the header exceeded
	// the configured size limit.
	ErrRequest = errors.New("reading client request failed")
	// ErrMissingHost means the request header has no Host line.
	ErrMissingHost = errors.New("no Host header in request")
	// ErrServerName means the Host value cannot be used as a TLS server
	// name. Reported before any outbound connection is made.
	ErrServerName = errors.New("host is not a usable server name")
	// ErrConnect means the transport connection to the destination failed.
	ErrConnect = errors.New("connecting to destination failed")
	// ErrHandshake means the TLS handshake or certificate validation failed.
	ErrHandshake = errors.New("TLS handshake with destination failed")
	// ErrWrite means sending the request to the destination failed.
	ErrWrite = errors.New("sending request to destination failed")
	// ErrRead means the destination response could not be read to EOF.
	ErrRead = errors.New("reading destination response failed")
	// ErrRespond means relaying the response back to the client failed.
	ErrRespond = errors.New("writing response to client failed")
)

// relayError ties a stage sentinel to its cause, so callers can match the
// stage with [errors.Is] while keeping the cause reachable for [errors.As].
type relayError struct {
	stage error
	cause error
}

var _ error = (*relayError)(nil)

func (e *relayError) Error() string {
	return e.stage.Error() + ": " + e.cause.Error()
}

func (e *relayError) Is(target error) bool {
	return target == e.stage
}

func (e *relayError) Unwrap() error {
	return e.cause
}

func stageError(stage, cause error) error {
	if cause == nil {
		return stage
	}
	return &relayError{stage: stage, cause: cause}
}

// IsTimeout reports whether err was caused by a deadline expiry, either a
// socket deadline or a dial context timeout.
func IsTimeout(err error) bool {
	var timeErr interface{ Timeout() bool }
	return errors.As(err, &timeErr) && timeErr.Timeout()
}
