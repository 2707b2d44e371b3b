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
	"fmt"
	"io"
	"time"

	"github.com/AleutianAI/nocircle/services/nocircle/search"
)

// textReporter prints search events as plain lines on stdout.
//
// Output:
//
//	grid size is 7x7
//	universe has 49 points
//	subset with no four concyclic points exists for n = 13: [(0, 0) ...]
//	universe has 49 points
//	2025-03-01T12:00:00+09:00: 1 x 10000000 combinations examined (n = 14)
//	n = 14: does not exist
//
// The first write error stops all further output and is kept in err.
type textReporter struct {
	w   io.Writer
	err error
}

func newTextReporter(w io.Writer) *textReporter {
	return &textReporter{w: w}
}

func (r *textReporter) printf(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format+"\n", args...)
}

func (r *textReporter) Start(ev search.StartEvent) {
	r.printf("grid size is %dx%d", ev.Dimension, ev.Dimension)
}

func (r *textReporter) Universe(_, points int) {
	r.printf("universe has %d points", points)
}

func (r *textReporter) Progress(ev search.ProgressEvent) {
	r.printf("%s: %d x %d combinations examined (n = %d)",
		ev.At.Format(time.RFC3339), ev.Ticks, ev.Interval, ev.N)
}

func (r *textReporter) Found(n int, subset search.Subset) {
	r.printf("subset with no four concyclic points exists for n = %d: %s", n, subset)
}

func (r *textReporter) NotFound(n int) {
	r.printf("n = %d: does not exist", n)
}

func (r *textReporter) Done(result *search.Result) {
	if result.State == search.StateExhausted {
		r.printf("no qualifying subset was found at all")
	}
}

// Err returns the first write error, if any.
func (r *textReporter) Err() error {
	return r.err
}

var _ search.Reporter = (*textReporter)(nil)
