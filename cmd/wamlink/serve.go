// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/wamlink/services/wam/config"
	"github.com/AleutianAI/wamlink/services/wam/engine"
	"github.com/AleutianAI/wamlink/services/wam/image"
	"github.com/AleutianAI/wamlink/services/wam/server"
	"github.com/AleutianAI/wamlink/services/wam/telemetry"
	"github.com/AleutianAI/wamlink/services/wam/watch"
)

var (
	serveAddr      string // Listen address override
	serveWatch     bool   // Re-consult listings when they change
	serveFromImage bool   // Start from the saved image instead of booting
	serveDebug     bool   // Gin debug mode
	serveTraces    string // Trace exporter override
)

// serveCmd exposes one machine over HTTP.
//
// # Examples
//
//	wamlink serve app.pl
//	wamlink serve app.pl --watch
//	wamlink serve --from-image --image ./app.img --addr :8787
//
// # Endpoints
//
//	POST /v1/wam/consult   consult a listing
//	POST /v1/wam/query     evaluate a clause, directive or query
//	GET  /v1/wam/predicates
//	GET  /v1/wam/modules
//	GET  /v1/wam/code
//	POST /v1/wam/image     save the machine image
//	GET  /v1/wam/health
//	GET  /metrics
var serveCmd = &cobra.Command{
	Use:   "serve [file...]",
	Short: "Serve a machine over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Re-consult listings when they change")
	serveCmd.Flags().BoolVar(&serveFromImage, "from-image", false, "Start from the saved machine image")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable gin debug mode")
	serveCmd.Flags().StringVar(&serveTraces, "traces", "", "Trace exporter: none, stdout or otlp (default from config)")
}

func versionString() string { return server.Version }

func runServe(cmd *cobra.Command, args []string) error {
	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	if serveWatch && len(args) == 0 {
		return errors.New("--watch needs at least one listing")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := logger.Slog()

	tc := cfg.Telemetry
	if serveTraces != "" {
		tc.Traces = serveTraces
	}
	shutdown, err := initTelemetry(ctx, tc)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown.WithTimeout(5 * time.Second)(); err != nil {
			log.Warn("telemetry shutdown", "error", err)
		}
	}()

	var store *image.Store
	if cfg.Image.Path != "" {
		s, err := openImage(cfg, log)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	e, err := startEngine(ctx, cfg, log, store, serveFromImage)
	if err != nil {
		return err
	}
	if err := consultAll(ctx, e, args); err != nil {
		return err
	}

	shared := engine.NewShared(e)
	handlers := server.NewHandlers(shared, log)
	if store != nil {
		handlers = handlers.WithImageStore(store)
	}
	router := server.NewRouter(handlers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, addr, router, log)
	})
	if serveWatch {
		w, err := watch.New(args, reconsult(shared), watch.Options{
			Debounce: cfg.Watch.Debounce,
			Logger:   log,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	return g.Wait()
}

// initTelemetry installs the otel tracer and meter providers.
func initTelemetry(ctx context.Context, tc config.TelemetryConfig) (telemetry.Shutdown, error) {
	return telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "wamlink",
		ServiceVersion: versionString(),
		Traces:         tc.Traces,
		Metrics:        tc.Metrics,
		OTLPEndpoint:   tc.OTLPEndpoint,
		OTLPInsecure:   tc.OTLPInsecure,
	})
}

// startEngine boots a fresh engine or restores the saved image.
func startEngine(ctx context.Context, c config.Config, log *slog.Logger, store *image.Store, fromImage bool) (*engine.Engine, error) {
	if !fromImage {
		return bootEngine(ctx, c, log)
	}
	if store == nil {
		return nil, errors.New("--from-image needs an image path")
	}
	flags, err := c.ReaderFlags()
	if err != nil {
		return nil, err
	}
	return engine.Restore(ctx, store.Load, engine.WithLogger(log), engine.WithFlags(flags))
}

// reconsult consults a changed listing while holding the engine lock.
func reconsult(shared *engine.Shared) watch.ConsultFunc {
	return func(ctx context.Context, path string) error {
		return shared.Do(func(e *engine.Engine) error {
			_, err := e.ConsultFile(ctx, path)
			return err
		})
	}
}
