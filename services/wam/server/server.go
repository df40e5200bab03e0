// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes an engine over HTTP.
//
// # Endpoints
//
//	POST /v1/wam/consult     compile a listing
//	POST /v1/wam/query       evaluate one clause, directive or query
//	GET  /v1/wam/predicates  global code directory
//	GET  /v1/wam/modules     module registry
//	GET  /v1/wam/code        code segment listing
//	POST /v1/wam/image       save the machine image
//	GET  /v1/wam/health      liveness
//	GET  /metrics            Prometheus metrics
//
// # Thread Safety
//
// Handlers reach the engine only through engine.Shared, one request at a
// time.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "wamlink"

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "wamlink_server_requests_total",
	Help: "HTTP requests by route and status",
}, []string{"route", "status"})

func countRequests(c *gin.Context) {
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	requestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
}

// RegisterRoutes registers the /wam endpoints on rg, typically /v1.
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	wam := rg.Group("/wam")
	wam.POST("/consult", h.HandleConsult)
	wam.POST("/query", h.HandleQuery)
	wam.GET("/predicates", h.HandlePredicates)
	wam.GET("/modules", h.HandleModules)
	wam.GET("/code", h.HandleCode)
	wam.POST("/image", h.HandleSaveImage)
	wam.GET("/health", h.HandleHealth)
}

// NewRouter builds the full HTTP handler with tracing and metrics.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(countRequests)

	RegisterRoutes(router.Group("/v1"), h)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// Serve runs handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
