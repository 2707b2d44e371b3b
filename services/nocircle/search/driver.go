// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search finds, for increasing subset sizes, the first subset of an
// integer grid that contains no four concyclic points.
//
// Architecture:
//
//	┌───────────────────────────────────────────────────────────────┐
//	│                           Driver                              │
//	│   for n := MinSize; n <= MaxSize; n++                         │
//	│      Searching(n) ──found──▶ Found(n, subset) ──▶ n+1         │
//	│           │                                                   │
//	│           └──exhausted──▶ NotFound(n) ──▶ Halted              │
//	│   range done without NotFound ──▶ Exhausted                   │
//	└──────────────┬────────────────────────────────┬───────────────┘
//	               │ sequential                     │ Workers > 1
//	               ▼                                ▼
//	     combin.Cursor (all tuples)       errgroup over prefix shards,
//	                                      smallest shard hit wins
//	               │                                │
//	               └────────── HasForbiddenQuadruple ┘
//
// The first qualifying subset is defined by lexicographic order of grid
// indices; both scan modes return the same subset.
//
// The driver halts at the first size with no qualifying subset and does
// not try larger sizes. That early exit assumes failure is monotonic in n,
// which is plausible for this problem but not proven.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/AleutianAI/nocircle/services/nocircle/combin"
	"github.com/AleutianAI/nocircle/services/nocircle/geometry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// checkMask sets how often scans look at the context and flush metrics:
// every checkMask+1 candidates.
const checkMask = 1<<12 - 1

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

// State is the terminal state of a run.
type State int

const (
	// StateSearching means the run has not finished.
	StateSearching State = iota

	// StateHalted means some size had no qualifying subset.
	StateHalted

	// StateExhausted means every size up to MaxSize had a qualifying subset.
	StateExhausted

	// StateCancelled means the context ended the run early.
	StateCancelled
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateHalted:
		return "halted"
	case StateExhausted:
		return "exhausted"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is the result of scanning one subset size.
type Outcome struct {
	N        int
	Found    bool
	Subset   Subset
	Examined uint64
	Duration time.Duration
}

// Result is the result of a whole run.
type Result struct {
	RunID    string
	Params   Params
	Outcomes []Outcome
	State    State

	// HaltedAt is the size with no qualifying subset when State is
	// StateHalted, 0 otherwise.
	HaltedAt int
}

// Largest returns the outcome with the largest qualifying size.
func (r *Result) Largest() (Outcome, bool) {
	for i := len(r.Outcomes) - 1; i >= 0; i-- {
		if r.Outcomes[i].Found {
			return r.Outcomes[i], true
		}
	}
	return Outcome{}, false
}

// -----------------------------------------------------------------------------
// Driver
// -----------------------------------------------------------------------------

// Driver runs the size loop and the per-size scans.
//
// Description:
//
//	A Driver owns the read-only grid and the per-scan counters. Events go
//	to the Reporter; logs go to the slog logger; Prometheus metrics and
//	OpenTelemetry spans are recorded when configured.
//
// Thread Safety: Run must not be called concurrently on one Driver.
type Driver struct {
	params   Params
	grid     *geometry.Grid
	reporter Reporter
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	now      func() time.Time
	runID    string

	// reportMu serializes reporter calls from parallel workers.
	reportMu sync.Mutex
}

// Option configures a Driver.
type Option func(*Driver)

// WithReporter sets the event reporter. Default: NopReporter.
func WithReporter(r Reporter) Option {
	return func(d *Driver) {
		if r != nil {
			d.reporter = r
		}
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the Prometheus collectors. Default: none.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithTracer sets the OpenTelemetry tracer. Default: the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(d *Driver) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithClock overrides the time source used for progress timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

// WithRunID sets the run identifier. Default: a random UUID.
func WithRunID(id string) Option {
	return func(d *Driver) {
		if id != "" {
			d.runID = id
		}
	}
}

// NewDriver validates params and builds the grid.
//
// Inputs:
//   - params: Search parameters. See Params.Validate.
//   - opts: Optional reporter, logger, metrics, tracer, clock, run id.
//
// Outputs:
//   - *Driver: The driver.
//   - error: Wraps ErrInvalidParams when params are invalid.
func NewDriver(params Params, opts ...Option) (*Driver, error) {
	if err := params.Validate(); err != nil {
		return nil, &SearchError{Operation: "NewDriver", Err: err}
	}
	grid, err := geometry.NewGrid(params.Side)
	if err != nil {
		return nil, &SearchError{Operation: "NewDriver", Err: err}
	}
	d := &Driver{
		params:   params,
		grid:     grid,
		reporter: NopReporter{},
		logger:   slog.Default(),
		tracer:   defaultTracer(),
		now:      time.Now,
		runID:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(
		slog.String("component", "search_driver"),
		slog.String("run_id", d.runID),
	)
	return d, nil
}

// Grid returns the driver's grid.
func (d *Driver) Grid() *geometry.Grid { return d.grid }

// Params returns the driver's parameters.
func (d *Driver) Params() Params { return d.params }

// Run scans sizes MinSize..MaxSize in order.
//
// Description:
//
//	For each size it emits Universe, scans, and emits Found or NotFound.
//	The run halts after the first NotFound. If every size qualifies the
//	run ends in StateExhausted. Done is emitted for both terminal states.
//
// Inputs:
//   - ctx: Cancellation. Checked every few thousand candidates.
//
// Outputs:
//   - *Result: Outcomes of the completed sizes. Never nil.
//   - error: Wraps ErrCancelled if ctx ended the run. The outcome of the
//     interrupted size is not included and Done is not emitted.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	ctx, span := d.tracer.Start(ctx, "search.run",
		trace.WithAttributes(
			attribute.String("run_id", d.runID),
			attribute.Int("side", d.params.Side),
			attribute.Int("min_size", d.params.MinSize),
			attribute.Int("max_size", d.params.MaxSize),
		),
	)
	defer span.End()

	result := &Result{RunID: d.runID, Params: d.params, State: StateSearching}

	d.emit(func(r Reporter) {
		r.Start(StartEvent{
			RunID:     d.runID,
			Side:      d.grid.Side(),
			Dimension: d.grid.Dimension(),
			Points:    d.grid.Len(),
			MinSize:   d.params.MinSize,
			MaxSize:   d.params.MaxSize,
			Workers:   d.params.Workers,
		})
	})
	d.logger.Info("search started",
		slog.Int("side", d.params.Side),
		slog.Int("points", d.grid.Len()),
		slog.Int("min_size", d.params.MinSize),
		slog.Int("max_size", d.params.MaxSize),
		slog.Int("workers", d.params.Workers),
		slog.String("tolerance", d.params.Predicate.Tolerance.String()),
		slog.String("determinant", d.params.Predicate.Method.String()),
	)

	for n := d.params.MinSize; n <= d.params.MaxSize; n++ {
		d.emit(func(r Reporter) { r.Universe(n, d.grid.Len()) })

		outcome, err := d.Scan(ctx, n)
		if err != nil {
			result.State = StateCancelled
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			d.logger.Warn("search interrupted",
				slog.Int("n", n),
				slog.Uint64("examined", outcome.Examined),
				slog.String("error", err.Error()),
			)
			return result, err
		}
		result.Outcomes = append(result.Outcomes, outcome)

		if outcome.Found {
			d.emit(func(r Reporter) { r.Found(n, outcome.Subset) })
			continue
		}

		d.emit(func(r Reporter) { r.NotFound(n) })
		result.State = StateHalted
		result.HaltedAt = n
		break
	}
	if result.State == StateSearching {
		result.State = StateExhausted
	}

	span.SetAttributes(
		attribute.String("state", result.State.String()),
		attribute.Int("halted_at", result.HaltedAt),
	)
	d.logger.Info("search finished",
		slog.String("state", result.State.String()),
		slog.Int("halted_at", result.HaltedAt),
		slog.Int("sizes_scanned", len(result.Outcomes)),
	)
	d.emit(func(r Reporter) { r.Done(result) })
	return result, nil
}

// Scan searches subsets of size n and returns the first qualifying one in
// lexicographic index order, or Found=false when none exists.
//
// Scan does not emit Universe/Found/NotFound; Run does. Progress events
// are emitted.
func (d *Driver) Scan(ctx context.Context, n int) (Outcome, error) {
	ctx, span := startScanSpan(ctx, d.tracer, n, d.grid.Len(), d.params.Workers)
	d.metrics.scanStarted(n)
	start := time.Now()

	var (
		outcome Outcome
		err     error
	)
	if d.params.Workers > 1 {
		outcome, err = d.scanParallel(ctx, n)
	} else {
		outcome, err = d.scanSequential(ctx, n)
	}
	outcome.N = n
	outcome.Duration = time.Since(start)

	label := outcomeNotFound
	switch {
	case err != nil:
		label = outcomeCancelled
	case outcome.Found:
		label = outcomeFound
	}
	d.metrics.scanFinished(n, label, outcome.Duration)
	endScanSpan(span, outcome, err)

	if err == nil {
		d.logger.Info("scan finished",
			slog.Int("n", n),
			slog.Bool("found", outcome.Found),
			slog.Uint64("examined", outcome.Examined),
			slog.Duration("duration", outcome.Duration),
		)
	}
	return outcome, err
}

// scanSequential walks every tuple in order on the calling goroutine.
func (d *Driver) scanSequential(ctx context.Context, n int) (Outcome, error) {
	size := d.grid.Len()
	cursor := combin.NewCursor(size, n)
	buf := make([]geometry.Point, n)
	total := d.total(n)
	pred := d.params.Predicate
	interval := d.params.ProgressInterval

	var examined, flushed uint64
	defer func() { d.metrics.addExamined(examined - flushed) }()

	for cursor.Next() {
		examined++
		if examined&checkMask == 0 {
			if err := ctx.Err(); err != nil {
				return Outcome{Examined: examined}, cancelled("scan", n, err)
			}
			d.metrics.addExamined(examined - flushed)
			flushed = examined
		}

		combin.CheckTuple(cursor.Indices(), size, n)
		points := d.grid.Select(cursor.Indices(), buf)
		if !HasForbiddenQuadruple(points, pred) {
			return Outcome{
				Found:    true,
				Subset:   d.subset(cursor.Indices()),
				Examined: examined,
			}, nil
		}
		if examined%interval == 0 {
			d.progress(n, examined, total)
		}
	}
	return Outcome{Examined: examined}, nil
}

// subset copies a tuple and its points out of the scan buffers.
func (d *Driver) subset(indices []int) Subset {
	idx := slices.Clone(indices)
	return Subset{Indices: idx, Points: d.grid.Select(idx, nil)}
}

func (d *Driver) total(n int) uint64 {
	total, ok := combin.Binomial(d.grid.Len(), n)
	if !ok {
		return 0
	}
	return total
}

func (d *Driver) progress(n int, examined, total uint64) {
	d.emit(func(r Reporter) { r.Progress(d.progressEvent(n, examined, total)) })
}

// progressEvent builds the event for examined and logs it at debug level.
// The timestamp is taken here so events reach the reporter in time order.
func (d *Driver) progressEvent(n int, examined, total uint64) ProgressEvent {
	d.logger.Debug("scan progress",
		slog.Int("n", n),
		slog.Uint64("examined", examined),
		slog.Uint64("total", total),
	)
	return ProgressEvent{
		N:        n,
		Examined: examined,
		Interval: d.params.ProgressInterval,
		Ticks:    examined / d.params.ProgressInterval,
		Total:    total,
		At:       d.now(),
	}
}

// emit serializes reporter calls.
func (d *Driver) emit(fn func(Reporter)) {
	d.reportMu.Lock()
	defer d.reportMu.Unlock()
	fn(d.reporter)
}
