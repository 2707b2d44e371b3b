// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package geometry

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// DefaultEpsilon is the absolute determinant tolerance used by
// AreConcyclic4. The cofactor determinant is an exactly evaluated integer
// for sides up to MaxExactFloatSide, so any epsilon below 1 separates zero
// from nonzero there.
const DefaultEpsilon = 1e-12

// -----------------------------------------------------------------------------
// Orientation
// -----------------------------------------------------------------------------

// SignedArea2 returns twice the signed area of triangle p1 p2 p3.
//
// Description:
//
//	Computed as the exact integer cross product
//	(x2-x1)*(y3-y1) - (y2-y1)*(x3-x1) in int64. The result is zero iff the
//	three points are collinear, and it changes sign when p1 and p2 swap.
//	For coordinates bounded by H the magnitude is at most 2*(2H)^2.
func SignedArea2(p1, p2, p3 Point) int64 {
	x1, y1 := int64(p1.X), int64(p1.Y)
	x2, y2 := int64(p2.X), int64(p2.Y)
	x3, y3 := int64(p3.X), int64(p3.Y)
	return (x2-x1)*(y3-y1) - (y2-y1)*(x3-x1)
}

// AreCollinear4 reports whether all four points lie on one line.
//
// Description:
//
//	True iff p1,p2,p3 are collinear and p1,p2,p4 are collinear. The test
//	is only sufficient when p1 != p2; grid points taken at distinct indices
//	never coincide, so the search never violates this assumption.
func AreCollinear4(p1, p2, p3, p4 Point) bool {
	return SignedArea2(p1, p2, p3) == 0 && SignedArea2(p1, p2, p4) == 0
}

// -----------------------------------------------------------------------------
// Predicate configuration
// -----------------------------------------------------------------------------

// Tolerance selects how the determinant threshold is derived.
type Tolerance int

const (
	// ToleranceAbsolute compares |det| against Epsilon directly.
	ToleranceAbsolute Tolerance = iota

	// ToleranceRelative lifts the points after translating p4 to the
	// origin and compares |det| against Epsilon scaled by the Hadamard
	// bound of that matrix (product of its row norms). The threshold then
	// follows the spread of the points rather than their distance from
	// the origin.
	ToleranceRelative
)

// String returns "absolute" or "relative".
func (t Tolerance) String() string {
	switch t {
	case ToleranceAbsolute:
		return "absolute"
	case ToleranceRelative:
		return "relative"
	default:
		return fmt.Sprintf("Tolerance(%d)", int(t))
	}
}

// ParseTolerance parses "absolute" or "relative" (case-insensitive).
func ParseTolerance(s string) (Tolerance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "absolute":
		return ToleranceAbsolute, nil
	case "relative":
		return ToleranceRelative, nil
	default:
		return ToleranceAbsolute, fmt.Errorf("unknown tolerance %q (want absolute or relative)", s)
	}
}

// DeterminantMethod selects how the 4x4 lifted determinant is evaluated.
type DeterminantMethod int

const (
	// DeterminantCofactor uses cofactor expansion along the first row.
	DeterminantCofactor DeterminantMethod = iota

	// DeterminantLU uses gonum's LU-based mat.Det.
	DeterminantLU
)

// String returns "cofactor" or "lu".
func (m DeterminantMethod) String() string {
	switch m {
	case DeterminantCofactor:
		return "cofactor"
	case DeterminantLU:
		return "lu"
	default:
		return fmt.Sprintf("DeterminantMethod(%d)", int(m))
	}
}

// ParseDeterminantMethod parses "cofactor" or "lu" (case-insensitive).
func ParseDeterminantMethod(s string) (DeterminantMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cofactor":
		return DeterminantCofactor, nil
	case "lu":
		return DeterminantLU, nil
	default:
		return DeterminantCofactor, fmt.Errorf("unknown determinant method %q (want cofactor or lu)", s)
	}
}

// Predicate evaluates four-point concyclicity under a tolerance policy.
//
// The zero value is not useful; start from DefaultPredicate.
type Predicate struct {
	// Epsilon is the determinant threshold (absolute or relative).
	Epsilon float64

	// Tolerance selects absolute or magnitude-relative thresholding.
	Tolerance Tolerance

	// Method selects the determinant evaluation.
	Method DeterminantMethod
}

// DefaultPredicate returns the absolute 1e-12 cofactor predicate.
func DefaultPredicate() Predicate {
	return Predicate{
		Epsilon:   DefaultEpsilon,
		Tolerance: ToleranceAbsolute,
		Method:    DeterminantCofactor,
	}
}

// CheckSide reports whether p can be used on a grid of the given side.
//
// An absolute tolerance is only meaningful while the cofactor determinant
// is exact, so sides above MaxExactFloatSide return ErrInexactTolerance.
// Relative tolerance scales with the matrix and accepts any side up to
// MaxSafeSide.
func (p Predicate) CheckSide(side int) error {
	if p.Tolerance == ToleranceAbsolute && side > MaxExactFloatSide {
		return fmt.Errorf("%w: side %d > %d; use relative tolerance", ErrInexactTolerance, side, MaxExactFloatSide)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Concyclicity
// -----------------------------------------------------------------------------

// AreConcyclic4 reports whether the four points lie on a common circle,
// using DefaultPredicate.
//
// Collinear quadruples are reported as concyclic. This keeps degenerate
// "circles through a line" out of valid subsets, matching the established
// search results; it is a policy, not geometry.
func AreConcyclic4(p1, p2, p3, p4 Point) bool {
	return DefaultPredicate().Concyclic(p1, p2, p3, p4)
}

// Concyclic reports whether the four points lie on a common circle.
//
// Description:
//
//	1. Collinear quadruples return true (see AreConcyclic4).
//	2. Otherwise the determinant of the lifted matrix with rows
//	   [x^2+y^2, x, y, 1] is evaluated in float64.
//	3. The result is true iff |det| is below the tolerance threshold.
//
// Limitations:
//
//	With ToleranceAbsolute the threshold does not scale with the grid. The
//	cofactor determinant is exact only up to MaxExactFloatSide (see
//	CheckSide); larger grids need ToleranceRelative or ExactConcyclic4.
//	DeterminantLU divides, so its result is approximate at any size.
//
// Thread Safety: Safe for concurrent use.
func (p Predicate) Concyclic(p1, p2, p3, p4 Point) bool {
	if AreCollinear4(p1, p2, p3, p4) {
		return true
	}
	var m matrix4
	if p.Tolerance == ToleranceRelative {
		m = liftedMatrix(p1.sub(p4), p2.sub(p4), p3.sub(p4), Point{})
	} else {
		m = liftedMatrix(p1, p2, p3, p4)
	}

	var det float64
	switch p.Method {
	case DeterminantLU:
		det = detLU(&m)
	default:
		det = det4(&m)
	}

	threshold := p.Epsilon
	if p.Tolerance == ToleranceRelative {
		threshold *= hadamardBound(&m)
	}
	return math.Abs(det) < threshold
}

// LiftedDeterminant returns the float64 cofactor determinant of the lifted
// matrix for the four points. Exposed for diagnostics and tests.
func LiftedDeterminant(p1, p2, p3, p4 Point) float64 {
	m := liftedMatrix(p1, p2, p3, p4)
	return det4(&m)
}

// ExactConcyclic4 is the exact integer counterpart of AreConcyclic4.
//
// Collinear quadruples return true; otherwise the incircle determinant is
// evaluated in int64 and compared to zero. Exact for sides up to
// MaxSafeSide.
func ExactConcyclic4(p1, p2, p3, p4 Point) bool {
	if AreCollinear4(p1, p2, p3, p4) {
		return true
	}
	return Incircle(p1, p2, p3, p4) == 0
}

// Incircle returns the incircle determinant of p1, p2, p3 against p4,
// computed exactly in int64 after translating p4 to the origin.
//
// It is zero iff the points are concyclic or all collinear. It agrees with
// the lifted 4x4 determinant up to sign.
func Incircle(p1, p2, p3, p4 Point) int64 {
	ax, ay := int64(p1.X-p4.X), int64(p1.Y-p4.Y)
	bx, by := int64(p2.X-p4.X), int64(p2.Y-p4.Y)
	cx, cy := int64(p3.X-p4.X), int64(p3.Y-p4.Y)
	as := ax*ax + ay*ay
	bs := bx*bx + by*by
	cs := cx*cx + cy*cy
	return ax*(by*cs-bs*cy) - ay*(bx*cs-bs*cx) + as*(bx*cy-by*cx)
}

// -----------------------------------------------------------------------------
// Matrix helpers
// -----------------------------------------------------------------------------

type matrix4 [4][4]float64

func (p Point) sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

func liftedMatrix(p1, p2, p3, p4 Point) matrix4 {
	var m matrix4
	for i, p := range [4]Point{p1, p2, p3, p4} {
		x, y := float64(p.X), float64(p.Y)
		m[i] = [4]float64{x*x + y*y, x, y, 1}
	}
	return m
}

// det4 expands along the first row.
func det4(m *matrix4) float64 {
	var d float64
	sign := 1.0
	for col := 0; col < 4; col++ {
		var sub [3][3]float64
		for r := 1; r < 4; r++ {
			sc := 0
			for c := 0; c < 4; c++ {
				if c == col {
					continue
				}
				sub[r-1][sc] = m[r][c]
				sc++
			}
		}
		d += sign * m[0][col] * det3(&sub)
		sign = -sign
	}
	return d
}

func det3(m *[3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

func detLU(m *matrix4) float64 {
	data := make([]float64, 0, 16)
	for _, row := range m {
		data = append(data, row[:]...)
	}
	return mat.Det(mat.NewDense(4, 4, data))
}

// hadamardBound returns the product of the Euclidean row norms, an upper
// bound on |det(m)|.
func hadamardBound(m *matrix4) float64 {
	bound := 1.0
	for _, row := range m {
		var sq float64
		for _, v := range row {
			sq += v * v
		}
		bound *= math.Sqrt(sq)
	}
	return bound
}
