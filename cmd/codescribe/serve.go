// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codescribe/internal/bootstrap"
	"github.com/kraklabs/codescribe/internal/errors"
	"github.com/kraklabs/codescribe/internal/httpapi"
	"github.com/kraklabs/codescribe/internal/ui"
)

// runServe executes the 'serve' command: the HTTP API until SIGINT or
// SIGTERM, then a graceful drain of requests and running jobs.
func runServe(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (default: listen_addr from the configuration)")
	drain := fs.Duration("drain-timeout", 30*time.Second, "How long running jobs may finish on shutdown")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codescribe serve [options]

Starts the CodeScribe HTTP API. Batch jobs run in the background and are
kept for job_retention_seconds after they finish.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(errors.ExitInput)
	}

	cfg := loadConfig(globals)
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	logger := slog.Default()
	app, err := bootstrap.New(cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		errors.FatalError(errors.FromError(err), globals.JSON)
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Config:    cfg,
		Service:   app.Service,
		Jobs:      app.Jobs,
		Exports:   app.Exports,
		Limiter:   app.Limiter,
		Languages: app.Registry.Languages(),
	}, httpapi.WithLogger(logger), httpapi.WithVersion(version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(cfg.ListenAddr) }()
	if !globals.Quiet {
		ui.Successf("CodeScribe listening on %s (provider: %s)", cfg.ListenAddr, app.Provider.Name())
	}

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			closeApp(app)
			errors.FatalError(errors.NewNetworkError("Cannot start the HTTP server", err.Error(),
				"Pick another address with --addr", err), globals.JSON)
		}
	case <-ctx.Done():
	}

	logger.Info("serve.shutdown", "drain_timeout", drain.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), *drain)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("serve.shutdown.http", "err", err)
	}
	if err := app.Close(shutdownCtx); err != nil {
		logger.Warn("serve.shutdown.jobs", "err", err)
	}
}
