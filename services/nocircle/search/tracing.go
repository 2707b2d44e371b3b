// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/AleutianAI/nocircle/services/nocircle/search"

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// startScanSpan opens the span covering one subset-size scan.
func startScanSpan(ctx context.Context, tracer trace.Tracer, n, points, workers int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "search.scan",
		trace.WithAttributes(
			attribute.Int("n", n),
			attribute.Int("points", points),
			attribute.Int("workers", workers),
		),
	)
}

// endScanSpan records the scan outcome on span and ends it.
func endScanSpan(span trace.Span, outcome Outcome, err error) {
	span.SetAttributes(
		attribute.Bool("found", outcome.Found),
		attribute.Int64("examined", int64(outcome.Examined)),
		attribute.Int64("duration_ms", outcome.Duration.Milliseconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
