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
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/AleutianAI/nocircle/services/nocircle/geometry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Test helpers
// -----------------------------------------------------------------------------

type recordingReporter struct {
	start    []StartEvent
	universe []int
	progress []ProgressEvent
	found    map[int]Subset
	notFound []int
	done     []*Result
	sequence []string
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{found: make(map[int]Subset)}
}

func (r *recordingReporter) Start(ev StartEvent) {
	r.start = append(r.start, ev)
	r.sequence = append(r.sequence, "start")
}

func (r *recordingReporter) Universe(n, points int) {
	r.universe = append(r.universe, points)
	r.sequence = append(r.sequence, "universe")
}

func (r *recordingReporter) Progress(ev ProgressEvent) {
	r.progress = append(r.progress, ev)
}

func (r *recordingReporter) Found(n int, subset Subset) {
	r.found[n] = subset
	r.sequence = append(r.sequence, "found")
}

func (r *recordingReporter) NotFound(n int) {
	r.notFound = append(r.notFound, n)
	r.sequence = append(r.sequence, "not_found")
}

func (r *recordingReporter) Done(result *Result) {
	r.done = append(r.done, result)
	r.sequence = append(r.sequence, "done")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func smallParams(side, minSize, maxSize int) Params {
	p := DefaultParams()
	p.Side = side
	p.MinSize = minSize
	p.MaxSize = maxSize
	return p
}

func newTestDriver(t *testing.T, params Params, opts ...Option) (*Driver, *recordingReporter) {
	t.Helper()
	rep := newRecordingReporter()
	opts = append([]Option{WithReporter(rep), WithLogger(quietLogger()), WithRunID("test-run")}, opts...)
	d, err := NewDriver(params, opts...)
	require.NoError(t, err)
	return d, rep
}

// assertQualifying checks a subset independently with the exact predicate.
func assertQualifying(t *testing.T, s Subset) {
	t.Helper()
	pts := s.Points
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			for k := j + 1; k < len(pts); k++ {
				for l := k + 1; l < len(pts); l++ {
					require.False(t, geometry.ExactConcyclic4(pts[i], pts[j], pts[k], pts[l]),
						"subset %v contains concyclic %v %v %v %v", s, pts[i], pts[j], pts[k], pts[l])
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Params
// -----------------------------------------------------------------------------

func TestDefaultParams_Reference(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 6, p.Side)
	assert.Equal(t, 13, p.MinSize)
	assert.Equal(t, 25, p.MaxSize)
	assert.Equal(t, uint64(10_000_000), p.ProgressInterval)
	assert.Equal(t, geometry.DefaultEpsilon, p.Predicate.Epsilon)
	assert.Equal(t, 1, p.Workers)
	assert.NoError(t, p.Validate())
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"negative side", func(p *Params) { p.Side = -1 }},
		{"side too large", func(p *Params) { p.Side = geometry.MaxSafeSide + 1 }},
		{"zero min", func(p *Params) { p.MinSize = 0 }},
		{"max below min", func(p *Params) { p.MinSize, p.MaxSize = 10, 9 }},
		{"max above points", func(p *Params) { p.MaxSize = 50 }},
		{"zero interval", func(p *Params) { p.ProgressInterval = 0 }},
		{"zero workers", func(p *Params) { p.Workers = 0 }},
		{"zero epsilon", func(p *Params) { p.Predicate.Epsilon = 0 }},
		{"absolute tolerance above exact side", func(p *Params) { p.Side = geometry.MaxExactFloatSide + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParams)

			_, err := NewDriver(p)
			var se *SearchError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "NewDriver", se.Operation)
		})
	}
}

func TestParams_ValidateExactFloatSide(t *testing.T) {
	p := DefaultParams()
	p.Side = geometry.MaxExactFloatSide
	assert.NoError(t, p.Validate())

	p.Side = geometry.MaxExactFloatSide + 1
	assert.ErrorIs(t, p.Validate(), geometry.ErrInexactTolerance)

	p.Predicate.Tolerance = geometry.ToleranceRelative
	assert.NoError(t, p.Validate())
}

// -----------------------------------------------------------------------------
// Sequential driver
// -----------------------------------------------------------------------------

func TestDriver_SmallGridHaltsAtSix(t *testing.T) {
	d, rep := newTestDriver(t, smallParams(2, 4, 9))

	result, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateHalted, result.State)
	assert.Equal(t, 6, result.HaltedAt)
	assert.Equal(t, "test-run", result.RunID)
	require.Len(t, result.Outcomes, 3)

	four := result.Outcomes[0]
	assert.True(t, four.Found)
	assert.Equal(t, uint64(1), four.Examined)
	assert.Equal(t, []int{0, 1, 2, 3}, four.Subset.Indices)

	five := result.Outcomes[1]
	assert.True(t, five.Found)
	assert.Equal(t, uint64(4), five.Examined)
	assert.Equal(t, []int{0, 1, 2, 3, 7}, five.Subset.Indices)
	assert.Equal(t, []geometry.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: 2}, {X: 1, Y: 0}, {X: 2, Y: 1}}, five.Subset.Points)
	assert.Equal(t, "[(0, 0) (0, 1) (0, 2) (1, 0) (2, 1)]", five.Subset.String())

	six := result.Outcomes[2]
	assert.False(t, six.Found)
	assert.Equal(t, uint64(84), six.Examined, "exhaustive scan of C(9,6)")

	largest, ok := result.Largest()
	require.True(t, ok)
	assert.Equal(t, 5, largest.N)

	// Events.
	require.Len(t, rep.start, 1)
	assert.Equal(t, 3, rep.start[0].Dimension)
	assert.Equal(t, 9, rep.start[0].Points)
	assert.Equal(t, []int{9, 9, 9}, rep.universe)
	assert.Equal(t, []int{6}, rep.notFound)
	assert.Len(t, rep.found, 2)
	assert.Equal(t, []string{
		"start",
		"universe", "found",
		"universe", "found",
		"universe", "not_found",
		"done",
	}, rep.sequence)
	require.Len(t, rep.done, 1)
	assert.Same(t, result, rep.done[0])
}

func TestDriver_FoundSubsetsHaveNoConcyclicQuadruple(t *testing.T) {
	d, rep := newTestDriver(t, smallParams(3, 4, 16))

	result, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateHalted, result.State)
	assert.Equal(t, 8, result.HaltedAt)

	for n, subset := range rep.found {
		require.Len(t, subset.Points, n)
		assertQualifying(t, subset)
	}
	seven := result.Outcomes[len(result.Outcomes)-2]
	assert.Equal(t, 7, seven.N)
	assert.Equal(t, uint64(954), seven.Examined)
	assert.Equal(t, []int{0, 1, 3, 5, 8, 10, 14}, seven.Subset.Indices)
}

func TestDriver_ExhaustedRange(t *testing.T) {
	d, rep := newTestDriver(t, smallParams(2, 3, 5))

	result, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateExhausted, result.State)
	assert.Zero(t, result.HaltedAt)
	assert.Len(t, result.Outcomes, 3)
	assert.Empty(t, rep.notFound)
	require.Len(t, rep.done, 1)
	assert.Equal(t, StateExhausted, rep.done[0].State)
}

func TestDriver_ProgressEveryInterval(t *testing.T) {
	params := smallParams(2, 6, 6)
	params.ProgressInterval = 10
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	d, rep := newTestDriver(t, params, WithClock(func() time.Time { return at }))

	_, err := d.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.progress, 8, "84 candidates, one event per 10")
	for i, ev := range rep.progress {
		assert.Equal(t, 6, ev.N)
		assert.Equal(t, uint64(i+1), ev.Ticks)
		assert.Equal(t, uint64((i+1)*10), ev.Examined)
		assert.Equal(t, uint64(84), ev.Total)
		assert.Equal(t, at, ev.At)
	}
}

func TestDriver_ScanSingleSize(t *testing.T) {
	d, rep := newTestDriver(t, smallParams(2, 1, 9))

	outcome, err := d.Scan(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, outcome.Found)
	assert.Equal(t, 5, outcome.N)
	assert.Empty(t, rep.sequence, "Scan leaves size events to Run")
}

func TestDriver_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, rep := newTestDriver(t, smallParams(3, 8, 8))
	result, err := d.Run(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	var se *SearchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 8, se.N)

	require.NotNil(t, result)
	assert.Equal(t, StateCancelled, result.State)
	assert.Empty(t, result.Outcomes, "interrupted scan is not a result")
	assert.Empty(t, rep.done)
	assert.Empty(t, rep.notFound)
}

func TestDriver_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	d, _ := newTestDriver(t, smallParams(2, 4, 9), WithMetrics(m))

	_, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, float64(1+4+84), testutil.ToFloat64(m.examined))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scans.WithLabelValues("4", outcomeFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scans.WithLabelValues("5", outcomeFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scans.WithLabelValues("6", outcomeNotFound)))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.currentSize))
	assert.Equal(t, 3, testutil.CollectAndCount(m.scans))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.addExamined(10)
		m.scanStarted(4)
		m.scanFinished(4, outcomeFound, time.Second)
	})
}

// -----------------------------------------------------------------------------
// Parallel driver
// -----------------------------------------------------------------------------

func TestDriver_ParallelMatchesSequential(t *testing.T) {
	for _, workers := range []int{2, 3, 8} {
		seqDriver, _ := newTestDriver(t, smallParams(3, 4, 16))
		seq, err := seqDriver.Run(context.Background())
		require.NoError(t, err)

		params := smallParams(3, 4, 16)
		params.Workers = workers
		parDriver, rep := newTestDriver(t, params)
		par, err := parDriver.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, seq.State, par.State, "workers=%d", workers)
		assert.Equal(t, seq.HaltedAt, par.HaltedAt, "workers=%d", workers)
		require.Len(t, par.Outcomes, len(seq.Outcomes))
		for i := range seq.Outcomes {
			assert.Equal(t, seq.Outcomes[i].Found, par.Outcomes[i].Found, "workers=%d n=%d", workers, seq.Outcomes[i].N)
			assert.Equal(t, seq.Outcomes[i].Subset, par.Outcomes[i].Subset, "workers=%d n=%d", workers, seq.Outcomes[i].N)
		}
		// A size with no qualifying subset is scanned exhaustively in both modes.
		last := par.Outcomes[len(par.Outcomes)-1]
		assert.Equal(t, uint64(12870), last.Examined)
		assert.Equal(t, []int{8}, rep.notFound)
	}
}

func TestDriver_ParallelProgressCount(t *testing.T) {
	params := smallParams(2, 6, 6)
	params.ProgressInterval = 10
	params.Workers = 4
	d, rep := newTestDriver(t, params)

	_, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.progress, 8)
	for i, ev := range rep.progress {
		assert.Equal(t, uint64(i+1), ev.Ticks)
		assert.Equal(t, uint64(i+1)*10, ev.Examined)
	}
}

func TestDriver_ShardProgressInOrder(t *testing.T) {
	params := smallParams(2, 6, 6)
	params.ProgressInterval = 10
	d, rep := newTestDriver(t, params)
	s := &shardScan{n: 6, total: 84}

	// The worker holding tick 3 takes the lock before the one holding tick 2.
	d.shardProgress(s, 30)
	d.shardProgress(s, 20)
	d.shardProgress(s, 40)

	require.Len(t, rep.progress, 4)
	for i, ev := range rep.progress {
		assert.Equal(t, uint64(i+1), ev.Ticks)
		assert.Equal(t, uint64(i+1)*10, ev.Examined)
		assert.Equal(t, uint64(84), ev.Total)
	}
}

func TestDriver_ParallelCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	params := smallParams(3, 5, 8)
	params.Workers = 4
	d, _ := newTestDriver(t, params)

	result, err := d.Run(ctx)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.Equal(t, StateCancelled, result.State)
}
