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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// DefaultConcurrency bounds how many connections a [Server] relays at once
// when [Server.Concurrency] is left zero.
const DefaultConcurrency = 16

// Server accepts client connections and relays each one through a [Handler].
// A fixed-size worker pool bounds how many connections are in flight; when
// every slot is busy the accept loop pauses until one frees up, so a burst of
// clients queues in the listen backlog instead of exhausting the process.
type Server struct {
	// Handler relays the accepted connections. Must not be nil.
	Handler *Handler
	// Concurrency bounds in-flight connections. 1 serializes handling
	// completely; zero means [DefaultConcurrency].
	Concurrency int
	// Logger receives per-connection outcomes. Nil means [slog.Default].
	Logger *slog.Logger

	mu       sync.Mutex
	closed   bool
	listener net.Listener
	cancel   context.CancelFunc
	handlers sync.WaitGroup
}

// ListenAndServe binds a TCP listener on address and serves it. A failure to
// bind is returned immediately so startup can fail loudly; after that the
// only way to make it return is [Server.Shutdown].
func (s *Server) ListenAndServe(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("could not listen on address %v: %w", address, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections from listener until [Server.Shutdown] closes it,
// then returns nil. Accept errors other than closure are logged and accepting
// continues, so one failed accept never takes the relay down.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	// The relay context outlives Serve so closing the listener does not
	// abort connections already in flight. Shutdown cancels it.
	ctx, cancel := context.WithCancel(context.Background())
	s.listener = listener
	s.cancel = cancel
	s.mu.Unlock()

	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	slots := make(chan struct{}, concurrency)
	logger := s.logger()
	logger.Info("Relay serving", "listen", listener.Addr(), "concurrency", concurrency)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warn("Failed to accept connection", "error", err)
			continue
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.handlers.Add(1)
		s.mu.Unlock()
		slots <- struct{}{}
		go func() {
			defer func() {
				conn.Close()
				<-slots
				s.handlers.Done()
			}()
			logger.Debug("Connection accepted", "client", conn.RemoteAddr())
			if err := s.Handler.Handle(ctx, conn); err != nil {
				logger.Warn("Connection failed",
					"client", conn.RemoteAddr(), "error", err, "timeout", IsTimeout(err))
				return
			}
			logger.Debug("Connection served", "client", conn.RemoteAddr())
		}()
	}
}

// Shutdown closes the listener and waits for in-flight connections to finish.
// When ctx expires first it cancels pending destination dials and returns
// ctx.Err(); connections past dialing are left to their own deadlines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	listener := s.listener
	s.mu.Unlock()
	if listener != nil {
		listener.Close()
	}
	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancelRelays()
		return nil
	case <-ctx.Done():
		s.cancelRelays()
		return ctx.Err()
	}
}

func (s *Server) cancelRelays() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
