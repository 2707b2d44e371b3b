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
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/AleutianAI/nocircle/cmd/nocircle/config"
	"github.com/AleutianAI/nocircle/services/nocircle/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "nocircle"

// telemetry owns the metrics registry, the optional /metrics server, and
// the optional stdout tracer provider of one search command.
type telemetry struct {
	registry *prometheus.Registry
	metrics  *search.Metrics

	// tracer is nil unless span export is enabled; the driver then uses
	// the global no-op provider.
	tracer trace.Tracer

	// metricsAddr is the bound listen address, "" when not serving.
	metricsAddr string

	shutdownFuncs []func(context.Context) error
}

// startTelemetry sets up metrics and tracing for a run.
//
// Description:
//
//	Metrics are always collected on a private registry. When
//	cfg.MetricsAddr is set, the registry is served at /metrics; the
//	listener is bound before returning so address errors surface
//	immediately. When cfg.TraceStdout is set, spans are exported as
//	pretty-printed JSON to traceOut.
//
// Inputs:
//   - cfg: Telemetry section of the configuration.
//   - runID: Attached to the trace resource.
//   - traceOut: Destination of exported spans.
//   - logger: For server errors.
//
// Outputs:
//   - *telemetry: Call Shutdown when the run ends.
//   - error: Listener or exporter setup failure.
func startTelemetry(cfg config.TelemetryConfig, runID string, traceOut io.Writer, logger *slog.Logger) (*telemetry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	t := &telemetry{
		registry: reg,
		metrics:  search.NewMetrics(reg),
	}

	if cfg.MetricsAddr != "" {
		if err := t.serveMetrics(cfg.MetricsAddr, logger); err != nil {
			return nil, err
		}
	}

	if cfg.TraceStdout {
		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(traceOut),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			_ = t.Shutdown(context.Background())
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		res := resource.NewWithAttributes(
			"",
			attribute.String("service.name", serviceName),
			attribute.String("service.instance.id", runID),
		)
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		t.tracer = tp.Tracer("github.com/AleutianAI/nocircle/cmd/nocircle")
		t.shutdownFuncs = append(t.shutdownFuncs, tp.Shutdown)
	}
	return t, nil
}

func (t *telemetry) serveMetrics(addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on metrics address %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{Registry: t.registry}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	t.metricsAddr = ln.Addr().String()
	t.shutdownFuncs = append(t.shutdownFuncs, srv.Shutdown)
	logger.Info("serving metrics", slog.String("addr", t.metricsAddr))
	return nil
}

// Shutdown flushes spans and stops the metrics server.
func (t *telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdownFuncs = nil
	return errors.Join(errs...)
}
