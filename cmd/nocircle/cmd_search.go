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
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/nocircle/cmd/nocircle/config"
	"github.com/AleutianAI/nocircle/pkg/logging"
	"github.com/AleutianAI/nocircle/services/nocircle/search"
	"github.com/google/uuid"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

const telemetryShutdownTimeout = 5 * time.Second

// runSearch loads the configuration, applies flag overrides, and runs the
// driver with results on stdout and logs on stderr.
func runSearch(cmd *cobra.Command, opts *searchOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applySearchFlags(cmd, opts, &cfg)

	params, err := cfg.ToParams()
	if err != nil {
		return err
	}
	logCfg, err := cfg.LoggerConfig()
	if err != nil {
		return err
	}
	logCfg.Output = cmd.ErrOrStderr()
	logger := logging.New(logCfg)
	defer logger.Close()
	if err := logger.FileError(); err != nil {
		logger.Warn("file logging disabled", slog.String("error", err.Error()))
	}

	runID := uuid.NewString()
	cliLog := logger.With(
		slog.String("component", "cli"),
		slog.String("run_id", runID),
	)
	if path := logger.FilePath(); path != "" {
		cliLog.Info("logging to file", slog.String("path", path))
	}

	if opts.cpuProfile != "" {
		cliLog.Info("cpu profiling enabled", slog.String("dir", opts.cpuProfile))
		defer profile.Start(
			profile.CPUProfile,
			profile.ProfilePath(opts.cpuProfile),
			profile.NoShutdownHook,
			profile.Quiet,
		).Stop()
	}

	tel, err := startTelemetry(cfg.Telemetry, runID, cmd.ErrOrStderr(), cliLog.Slog())
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			cliLog.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	reporter := newTextReporter(cmd.OutOrStdout())
	driver, err := search.NewDriver(params,
		search.WithReporter(reporter),
		search.WithLogger(logger.Slog()),
		search.WithMetrics(tel.metrics),
		search.WithTracer(tel.tracer),
		search.WithRunID(runID),
	)
	if err != nil {
		return err
	}

	result, err := driver.Run(cmd.Context())
	if err != nil {
		return err
	}
	if err := reporter.Err(); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if largest, ok := result.Largest(); ok {
		cliLog.Info("largest qualifying subset",
			slog.Int("n", largest.N),
			slog.String("points", largest.Subset.String()),
		)
	}
	return nil
}

// applySearchFlags copies explicitly set flags over cfg.
func applySearchFlags(cmd *cobra.Command, opts *searchOptions, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("side") {
		cfg.Grid.Side = opts.side
	}
	if f.Changed("min") {
		cfg.Search.MinSize = opts.minSize
	}
	if f.Changed("max") {
		cfg.Search.MaxSize = opts.maxSize
	}
	if f.Changed("progress-interval") {
		cfg.Search.ProgressInterval = opts.progressInterval
	}
	if f.Changed("workers") {
		cfg.Search.Workers = opts.workers
	}
	if f.Changed("epsilon") {
		cfg.Predicate.Epsilon = opts.epsilon
	}
	if f.Changed("tolerance") {
		cfg.Predicate.Tolerance = opts.tolerance
	}
	if f.Changed("determinant") {
		cfg.Predicate.Determinant = opts.determinant
	}
	if f.Changed("metrics-addr") {
		cfg.Telemetry.MetricsAddr = opts.metricsAddr
	}
	if f.Changed("trace-stdout") {
		cfg.Telemetry.TraceStdout = opts.traceStdout
	}
	if f.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if f.Changed("log-json") {
		cfg.Logging.JSON = opts.logJSON
	}
	if f.Changed("log-dir") {
		cfg.Logging.Dir = opts.logDir
	}
	if f.Changed("log-quiet") {
		cfg.Logging.Quiet = opts.logQuiet
	}
}
