// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// keepGlobals restores the otel globals Init replaces.
func keepGlobals(t *testing.T) {
	t.Helper()
	tp, mp, prop := otel.GetTracerProvider(), otel.GetMeterProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestInitStdoutTraces(t *testing.T) {
	keepGlobals(t)
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Config{
		Traces:       ExporterStdout,
		Metrics:      ExporterNone,
		StdoutWriter: &buf,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("wamlink.test").Start(context.Background(), "consult_listing")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, shutdown.WithTimeout(5*time.Second)())
	assert.Contains(t, buf.String(), "consult_listing")
	assert.Contains(t, buf.String(), "wamlink")
}

func TestInitNoExporterStillRecords(t *testing.T) {
	keepGlobals(t)
	shutdown, err := Init(context.Background(), Config{Traces: ExporterNone, Metrics: ExporterNone})
	require.NoError(t, err)
	defer shutdown(context.Background())

	_, span := otel.Tracer("wamlink.test").Start(context.Background(), "packet")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.IsRecording())
}

func TestInitPrometheusMetrics(t *testing.T) {
	keepGlobals(t)
	reg := prometheus.NewRegistry()
	shutdown, err := Init(context.Background(), Config{
		Traces:     ExporterNone,
		Metrics:    ExporterPrometheus,
		Registerer: reg,
	})
	require.NoError(t, err)
	defer shutdown(context.Background())

	hist, err := otel.Meter("wamlink.test").Float64Histogram("wamlink_test_duration")
	require.NoError(t, err)
	hist.Record(context.Background(), 0.25)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "wamlink_test_duration") {
			found = true
		}
	}
	assert.True(t, found, "histogram not exported")
}

func TestInitUnknownExporter(t *testing.T) {
	keepGlobals(t)
	_, err := Init(context.Background(), Config{Traces: "zipkin"})
	assert.ErrorIs(t, err, ErrUnknownExporter)

	_, err = Init(context.Background(), Config{Traces: ExporterNone, Metrics: "statsd"})
	assert.ErrorIs(t, err, ErrUnknownExporter)
}
