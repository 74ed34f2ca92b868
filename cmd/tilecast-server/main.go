// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

// Tilecast-server serves map tiles and rendered map images over HTTP.
//
// On startup:
//  1. Loads and validates the configuration file.
//  2. Opens every configured tile archive and registers it.
//  3. Loads every configured style and builds its renderer pools.
//  4. Serves the /data and /styles routes until SIGINT or SIGTERM.
//
// An archive that fails to open is logged and skipped so one bad
// source does not hold down the rest. The exception is a remote
// location handed to a deployment that can never serve it: the
// operator asked for something this build cannot do, and silently
// skipping the archive would hide that, so startup fails instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/tilecast/tilecast/lib/archive"
	"github.com/tilecast/tilecast/lib/config"
	"github.com/tilecast/tilecast/lib/render"
	"github.com/tilecast/tilecast/lib/serve"
	"github.com/tilecast/tilecast/lib/source"
	"github.com/tilecast/tilecast/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		bind        string
		verbose     bool
		showVersion bool
	)

	flags := pflag.NewFlagSet("tilecast-server", pflag.ContinueOnError)
	flags.StringVarP(&configPath, "config", "c", "", "path to configuration file (required)")
	flags.StringVar(&bind, "bind", "", "listen address, overriding the configured one")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("tilecast-server %s\n", version.Full())
		return nil
	}
	if configPath == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if bind != "" {
		cfg.Options.Bind = bind
	}

	logger := serve.NewLogger(verbose)
	logger.Info("starting tilecast-server",
		"version", version.Info(),
		"config", configPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := serve.NewApp(serve.AppConfig{
		Config: cfg,
		Drivers: map[string]archive.Driver{
			"dir": archive.DirDriver{},
		},
		Engine:  render.NewRasterEngine(render.RasterEngineConfig{Logger: logger}),
		Sources: source.Config{Logger: logger},
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	for _, id := range sortedKeys(cfg.Data) {
		if err := app.RegisterData(ctx, id, cfg.Data[id]); err != nil {
			if errors.Is(err, archive.ErrRemoteUnsupported) {
				return err
			}
			logger.Error("skipping tile source", "id", id, "error", err)
		}
	}
	for _, id := range sortedKeys(cfg.Styles) {
		if err := app.RegisterStyle(id, cfg.Styles[id]); err != nil {
			logger.Error("skipping style", "id", id, "error", err)
		}
	}

	server := serve.NewServer(serve.ServerConfig{
		Address: cfg.Options.Bind,
		Handler: app.Handler(),
		Logger:  logger,
	})

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()

	select {
	case <-server.Ready():
		logger.Info("serving", "address", server.Addr().String())
	case err := <-serveDone:
		return err
	case <-ctx.Done():
		return <-serveDone
	}

	if err := <-serveDone; err != nil {
		return err
	}
	logger.Info("shut down cleanly")
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
