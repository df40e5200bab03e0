// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry installs the OpenTelemetry tracer and meter providers
// used by `wamlink serve`.
//
// The tracer provider is always an SDK provider so compile spans and
// otelgin request spans carry real trace IDs; an exporter is attached only
// when one is configured. Meter instruments go to the Prometheus exporter,
// which registers with the default registry scraped at /metrics.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ErrUnknownExporter is returned for an exporter name Init does not know.
var ErrUnknownExporter = errors.New("unknown exporter type")

// Exporter names accepted by Config.
const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterOTLP       = "otlp"
	ExporterPrometheus = "prometheus"
)

// Config selects the exporters.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Traces is "otlp", "stdout" or "none".
	Traces string
	// Metrics is "prometheus" or "none".
	Metrics string

	// OTLPEndpoint is host:port of the OTLP gRPC receiver.
	OTLPEndpoint string
	OTLPInsecure bool

	// StdoutWriter receives stdout spans. Defaults to os.Stdout.
	StdoutWriter io.Writer
	// Registerer receives the Prometheus collector. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// Shutdown flushes and stops the installed providers.
type Shutdown func(context.Context) error

// Init builds the providers described by cfg and installs them as the
// otel globals together with the W3C trace-context propagator.
func Init(ctx context.Context, cfg Config) (Shutdown, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "wamlink"
	}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	var closers []Shutdown
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	closers = append(closers, tp.Shutdown)

	mp, err := newMeterProvider(cfg, res)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("init meter: %w", err)
	}
	if mp != nil {
		closers = append(closers, mp.Shutdown)
		otel.SetMeterProvider(mp)
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return shutdown, nil
}

// WithTimeout wraps s so it gives up after d.
func (s Shutdown) WithTimeout(d time.Duration) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), d)
		defer cancel()
		return s(ctx)
	}
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Traces {
	case "", ExporterNone:
	case ExporterStdout:
		w := cfg.StdoutWriter
		if w == nil {
			w = os.Stdout
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w))
	case ExporterOTLP:
		var o []otlptracegrpc.Option
		if cfg.OTLPEndpoint != "" {
			o = append(o, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			o = append(o, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, o...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Traces)
	}
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

// newMeterProvider returns nil when metrics are disabled.
func newMeterProvider(cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	switch cfg.Metrics {
	case ExporterNone:
		return nil, nil
	case "", ExporterPrometheus:
		reg := cfg.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		return sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Metrics)
	}
}
