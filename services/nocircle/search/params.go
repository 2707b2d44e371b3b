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
	"fmt"
	"math"

	"github.com/AleutianAI/nocircle/services/nocircle/geometry"
)

// Reference search constants.
const (
	DefaultSide             = 6
	DefaultMinSize          = 13
	DefaultMaxSize          = 25
	DefaultProgressInterval = 10_000_000
	DefaultWorkers          = 1
)

// Params is the immutable configuration of one search run.
//
// Params is passed by value to NewDriver; the driver never mutates it.
type Params struct {
	// Side is the largest grid coordinate H. The grid has (H+1)^2 points.
	Side int

	// MinSize and MaxSize bound the subset sizes n, inclusive.
	MinSize int
	MaxSize int

	// ProgressInterval is the number of examined combinations between
	// progress events.
	ProgressInterval uint64

	// Predicate decides four-point concyclicity.
	Predicate geometry.Predicate

	// Workers > 1 scans prefix shards concurrently. The result is the same
	// as the sequential scan.
	Workers int
}

// DefaultParams returns the reference parameters: 7x7 grid, n from 13 to
// 25, progress every ten million combinations, one worker.
func DefaultParams() Params {
	return Params{
		Side:             DefaultSide,
		MinSize:          DefaultMinSize,
		MaxSize:          DefaultMaxSize,
		ProgressInterval: DefaultProgressInterval,
		Predicate:        geometry.DefaultPredicate(),
		Workers:          DefaultWorkers,
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidParams.
func (p Params) Validate() error {
	points := (p.Side + 1) * (p.Side + 1)
	switch {
	case p.Side < 0:
		return fmt.Errorf("%w: side %d is negative", ErrInvalidParams, p.Side)
	case p.Side > geometry.MaxSafeSide:
		return fmt.Errorf("%w: side %d: %w", ErrInvalidParams, p.Side, geometry.ErrSideTooLarge)
	case p.MinSize < 1:
		return fmt.Errorf("%w: min size %d must be at least 1", ErrInvalidParams, p.MinSize)
	case p.MaxSize < p.MinSize:
		return fmt.Errorf("%w: max size %d is below min size %d", ErrInvalidParams, p.MaxSize, p.MinSize)
	case p.MaxSize > points:
		return fmt.Errorf("%w: max size %d exceeds the %d grid points", ErrInvalidParams, p.MaxSize, points)
	case p.ProgressInterval == 0:
		return fmt.Errorf("%w: progress interval must be positive", ErrInvalidParams)
	case p.Workers < 1:
		return fmt.Errorf("%w: workers %d must be at least 1", ErrInvalidParams, p.Workers)
	case math.IsNaN(p.Predicate.Epsilon) || p.Predicate.Epsilon <= 0:
		return fmt.Errorf("%w: epsilon %g must be positive", ErrInvalidParams, p.Predicate.Epsilon)
	}
	if err := p.Predicate.CheckSide(p.Side); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return nil
}
