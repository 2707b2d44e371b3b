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
	"time"

	"github.com/AleutianAI/nocircle/services/nocircle/geometry"
)

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

// StartEvent is emitted once before the first scan.
type StartEvent struct {
	RunID     string
	Side      int
	Dimension int
	Points    int
	MinSize   int
	MaxSize   int
	Workers   int
}

// ProgressEvent is emitted each time the examined count of a scan reaches a
// multiple of the progress interval.
type ProgressEvent struct {
	N        int
	Examined uint64
	Interval uint64

	// Ticks is Examined / Interval.
	Ticks uint64

	// Total is C(points, n), or 0 when it does not fit in a uint64.
	Total uint64

	At time.Time
}

// Subset is a qualifying subset, identified by its grid indices.
type Subset struct {
	Indices []int            `json:"indices"`
	Points  []geometry.Point `json:"points"`
}

// String formats the subset's points as "[(x, y) ...]".
func (s Subset) String() string {
	return geometry.FormatPoints(s.Points)
}

// -----------------------------------------------------------------------------
// Reporter
// -----------------------------------------------------------------------------

// Reporter receives the observable events of a search run.
//
// Description:
//
//	The driver calls Start once, then Universe before each scan, Progress
//	during scans, and Found or NotFound when a scan ends. Done is called
//	once when the run ends without error, with the final result.
//
// Thread Safety: The driver serializes all calls, including those made
// from parallel workers, so implementations need no locking of their own.
type Reporter interface {
	Start(ev StartEvent)
	Universe(n, points int)
	Progress(ev ProgressEvent)
	Found(n int, subset Subset)
	NotFound(n int)
	Done(result *Result)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) Start(StartEvent)       {}
func (NopReporter) Universe(int, int)      {}
func (NopReporter) Progress(ProgressEvent) {}
func (NopReporter) Found(int, Subset)      {}
func (NopReporter) NotFound(int)           {}
func (NopReporter) Done(*Result)           {}

var _ Reporter = NopReporter{}
