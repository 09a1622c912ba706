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

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"github.com/beelabe/tlsfront/configurl"
	"github.com/beelabe/tlsfront/httprelay"
	"github.com/beelabe/tlsfront/internal/config"
	"github.com/beelabe/tlsfront/transport/tls"
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags...]\n", path.Base(os.Args[0]))
		flag.PrintDefaults()
	}
}

func main() {
	configFlag := flag.String("config", "", "Path to the YAML config file")
	listenFlag := flag.String("listen", "", "Listen address, overrides the config file")
	transportFlag := flag.String("transport", "", "Transport config, overrides the config file")
	verboseFlag := flag.Bool("v", false, "Enable debug output")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verboseFlag {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(
		os.Stderr,
		&tint.Options{NoColor: !term.IsTerminal(int(os.Stderr.Fd())), Level: logLevel},
	))
	slog.SetDefault(logger)

	cfg := config.Default()
	if *configFlag != "" {
		var err error
		cfg, err = config.Load(*configFlag)
		if err != nil {
			logger.Error("Invalid configuration", "error", err)
			os.Exit(1)
		}
	}
	if *listenFlag != "" {
		cfg.Listen = *listenFlag
	}
	if *transportFlag != "" {
		cfg.Transport = *transportFlag
	}

	if err := run(logger, cfg); err != nil {
		logger.Error("Relay failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, cfg config.Config) error {
	roots, err := tls.SystemRootCAs()
	if err != nil {
		return err
	}
	dialer, err := configurl.NewStreamDialer(cfg.Transport)
	if err != nil {
		return fmt.Errorf("could not create transport: %w", err)
	}
	handler, err := httprelay.NewHandler(dialer,
		tls.WithRootCAs(roots),
		tls.WithALPN([]string{"http/1.1"}),
	)
	if err != nil {
		return err
	}
	handler.MaxHeaderBytes = cfg.MaxHeaderBytes
	handler.ReadHeaderTimeout = time.Duration(cfg.Timeouts.ReadHeader)
	handler.DialTimeout = time.Duration(cfg.Timeouts.Dial)
	handler.ExchangeTimeout = time.Duration(cfg.Timeouts.Exchange)
	handler.WriteTimeout = time.Duration(cfg.Timeouts.Write)

	server := &httprelay.Server{Handler: handler, Concurrency: cfg.Concurrency, Logger: logger}
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe(cfg.Listen) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		// Startup failed before any signal, typically a bind error.
		return err
	case sig := <-sigCh:
		logger.Info("Shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("Shutdown incomplete, dropping connections", "error", err)
	}
	return <-serveErr
}
