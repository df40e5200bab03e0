// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compile

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("wamlink.compile")
	meter  = otel.Meter("wamlink.compile")
)

var (
	listingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wamlink_listings_total",
		Help: "Listings compiled, by result",
	}, []string{"result"})

	packetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wamlink_packets_total",
		Help: "Top-level packets evaluated, by kind and result",
	}, []string{"kind", "result"})

	instructionsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wamlink_instructions_emitted_total",
		Help: "Instructions handed to the machine",
	})
)

var (
	listingLatency metric.Float64Histogram
	packetLatency  metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		listingLatency, err = meter.Float64Histogram(
			"wam_listing_duration_seconds",
			metric.WithDescription("Duration of listing compilation"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		packetLatency, err = meter.Float64Histogram(
			"wam_packet_duration_seconds",
			metric.WithDescription("Duration of top-level packet evaluation"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func startListingSpan(ctx context.Context, startSize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "wam.compile.Listing",
		trace.WithAttributes(attribute.Int("wam.code_size", startSize)),
	)
}

func startPacketSpan(ctx context.Context, kind string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "wam.compile.Packet",
		trace.WithAttributes(attribute.String("wam.packet_kind", kind)),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func recordListing(ctx context.Context, duration time.Duration, emitted int, err error) {
	listingsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err == nil {
		instructionsEmitted.Add(float64(emitted))
	}
	if initMetrics() != nil {
		return
	}
	listingLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.Bool("success", err == nil),
	))
}

func recordPacket(ctx context.Context, kind string, duration time.Duration, emitted int, err error) {
	packetsTotal.WithLabelValues(kind, resultLabel(err)).Inc()
	if err == nil {
		instructionsEmitted.Add(float64(emitted))
	}
	if initMetrics() != nil {
		return
	}
	packetLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", err == nil),
	))
}
