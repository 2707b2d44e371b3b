// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package geometry provides integer lattice points, the square grid they are
// drawn from, and the collinearity and concyclicity predicates the subset
// search relies on.
//
// All predicates are pure functions over value types and are safe for
// concurrent use.
package geometry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNegativeSide is returned when a grid side length is below zero.
	ErrNegativeSide = errors.New("grid side must not be negative")

	// ErrSideTooLarge is returned when a grid side would let the exact
	// predicates overflow int64.
	ErrSideTooLarge = errors.New("grid side exceeds the overflow-safe maximum")

	// ErrInvalidPoint is returned by ParsePoint for malformed input.
	ErrInvalidPoint = errors.New("invalid point")

	// ErrInexactTolerance is returned when an absolute-tolerance predicate
	// is asked to cover coordinates it cannot evaluate exactly.
	ErrInexactTolerance = errors.New("absolute tolerance is not exact at this grid side")
)

// MaxSafeSide is the largest grid side for which SignedArea2 and Incircle
// stay inside int64. The incircle determinant is bounded by roughly 12*H^4.
const MaxSafeSide = 1 << 14

// MaxExactFloatSide is the largest grid side for which the float64
// cofactor expansion of the lifted determinant is exact.
//
// With coordinates in [0, H] every product and partial sum of det4 is an
// integer of magnitude at most 24*H^4, which stays below 2^53 for
// H <= 2^12. Above that, exact zeros can round to small nonzero values and
// an absolute tolerance misclassifies concyclic quadruples. Points with
// coordinates in [-H/2, H/2] stay inside the same bound.
const MaxExactFloatSide = 1 << 12

// -----------------------------------------------------------------------------
// Point
// -----------------------------------------------------------------------------

// Point is an integer lattice point. Equality is by value.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

// String formats the point as "(x, y)".
func (p Point) String() string {
	return "(" + strconv.Itoa(p.X) + ", " + strconv.Itoa(p.Y) + ")"
}

// ParsePoint parses "x,y", "(x, y)" or "x y".
func ParsePoint(s string) (Point, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "(")
	trimmed = strings.TrimSuffix(trimmed, ")")
	fields := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != 2 {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidPoint, s)
	}
	x, err := strconv.Atoi(fields[0])
	if err != nil {
		return Point{}, fmt.Errorf("%w: %q: %v", ErrInvalidPoint, s, err)
	}
	y, err := strconv.Atoi(fields[1])
	if err != nil {
		return Point{}, fmt.Errorf("%w: %q: %v", ErrInvalidPoint, s, err)
	}
	return Point{X: x, Y: y}, nil
}

// FormatPoints renders points as "[(x, y) (x, y) ...]".
func FormatPoints(points []Point) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range points {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.String())
	}
	b.WriteByte(']')
	return b.String()
}

// -----------------------------------------------------------------------------
// Grid
// -----------------------------------------------------------------------------

// Grid is the ordered set of all points (x, y) with 0 <= x, y <= side.
//
// Description:
//
//	Points are ordered x-major, y-minor: (0,0), (0,1), ..., (0,side),
//	(1,0), ... The order is part of the search contract because the first
//	qualifying subset is defined by lexicographic order of grid indices.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Grid struct {
	side   int
	points []Point
}

// NewGrid builds the (side+1) x (side+1) grid.
//
// Inputs:
//   - side: Largest coordinate value. Must be in [0, MaxSafeSide].
//
// Outputs:
//   - *Grid: The grid.
//   - error: ErrNegativeSide or ErrSideTooLarge.
func NewGrid(side int) (*Grid, error) {
	if side < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeSide, side)
	}
	if side > MaxSafeSide {
		return nil, fmt.Errorf("%w: %d > %d", ErrSideTooLarge, side, MaxSafeSide)
	}
	dim := side + 1
	points := make([]Point, 0, dim*dim)
	for x := 0; x <= side; x++ {
		for y := 0; y <= side; y++ {
			points = append(points, Point{X: x, Y: y})
		}
	}
	return &Grid{side: side, points: points}, nil
}

// Side returns the largest coordinate value H.
func (g *Grid) Side() int { return g.side }

// Dimension returns H+1, the number of points along one edge.
func (g *Grid) Dimension() int { return g.side + 1 }

// Len returns the number of grid points, (H+1)^2.
func (g *Grid) Len() int { return len(g.points) }

// At returns the point at index i. Panics if i is out of range.
func (g *Grid) At(i int) Point { return g.points[i] }

// Points returns a copy of all grid points in grid order.
func (g *Grid) Points() []Point {
	out := make([]Point, len(g.points))
	copy(out, g.points)
	return out
}

// Index returns the grid index of p, or false if p is not on the grid.
func (g *Grid) Index(p Point) (int, bool) {
	if p.X < 0 || p.X > g.side || p.Y < 0 || p.Y > g.side {
		return 0, false
	}
	return p.X*(g.side+1) + p.Y, true
}

// Select copies the points at the given indices into dst and returns it.
//
// Description:
//
//	dst is grown when its capacity is too small; passing a reused buffer
//	of capacity len(indices) makes Select allocation free. Indices out of
//	range panic, since callers only pass indices produced by an enumerator
//	over this grid.
func (g *Grid) Select(indices []int, dst []Point) []Point {
	if cap(dst) < len(indices) {
		dst = make([]Point, len(indices))
	}
	dst = dst[:len(indices)]
	for i, idx := range indices {
		dst[i] = g.points[idx]
	}
	return dst
}
