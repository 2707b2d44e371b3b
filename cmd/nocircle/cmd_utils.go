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
	"errors"
	"fmt"

	"github.com/AleutianAI/nocircle/cmd/nocircle/config"
	"github.com/AleutianAI/nocircle/services/nocircle/combin"
	"github.com/AleutianAI/nocircle/services/nocircle/geometry"
	"github.com/AleutianAI/nocircle/services/nocircle/search"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ErrForbiddenQuadruple is returned by verify when four of the given
// points are concyclic.
var ErrForbiddenQuadruple = errors.New("point list contains four concyclic points")

// runVerify checks the points given as arguments.
func runVerify(cmd *cobra.Command, opts *verifyOptions, args []string) error {
	tol, err := geometry.ParseTolerance(opts.tolerance)
	if err != nil {
		return err
	}
	method, err := geometry.ParseDeterminantMethod(opts.determinant)
	if err != nil {
		return err
	}
	if !(opts.epsilon > 0) {
		return fmt.Errorf("epsilon %g must be positive", opts.epsilon)
	}
	if opts.side > geometry.MaxSafeSide {
		return fmt.Errorf("side %d: %w", opts.side, geometry.ErrSideTooLarge)
	}
	pred := geometry.Predicate{Epsilon: opts.epsilon, Tolerance: tol, Method: method}
	if opts.side >= 0 {
		if err := pred.CheckSide(opts.side); err != nil {
			return err
		}
	}

	points := make([]geometry.Point, 0, len(args))
	seen := make(map[geometry.Point]int, len(args))
	for i, arg := range args {
		p, err := geometry.ParsePoint(arg)
		if err != nil {
			return err
		}
		if err := checkCoordinates(p, opts.side, tol); err != nil {
			return err
		}
		if j, dup := seen[p]; dup {
			return fmt.Errorf("point %v given twice (arguments %d and %d)", p, j+1, i+1)
		}
		seen[p] = i
		points = append(points, p)
	}

	out := cmd.OutOrStdout()
	quad, found := search.FirstForbiddenQuadruple(points, pred)
	if !found {
		_, err := fmt.Fprintf(out, "ok: no four of the %d points are concyclic\n", len(points))
		return err
	}
	concyclic := []geometry.Point{points[quad[0]], points[quad[1]], points[quad[2]], points[quad[3]]}
	kind := "concyclic"
	if geometry.AreCollinear4(concyclic[0], concyclic[1], concyclic[2], concyclic[3]) {
		kind = "collinear"
	}
	if _, err := fmt.Fprintf(out, "%s: %s\n", kind, geometry.FormatPoints(concyclic)); err != nil {
		return err
	}
	return ErrForbiddenQuadruple
}

// checkCoordinates bounds a point to the grid of the given side. When side
// is negative it bounds the point to the range the predicate evaluates
// exactly: ±MaxExactFloatSide/2 for an absolute tolerance, the int64-safe
// ±MaxSafeSide otherwise.
func checkCoordinates(p geometry.Point, side int, tol geometry.Tolerance) error {
	if side >= 0 {
		if p.X < 0 || p.Y < 0 || p.X > side || p.Y > side {
			return fmt.Errorf("%w: %v is outside the %dx%d grid", geometry.ErrInvalidPoint, p, side+1, side+1)
		}
		return nil
	}
	lim := geometry.MaxSafeSide
	if tol == geometry.ToleranceAbsolute {
		lim = geometry.MaxExactFloatSide / 2
	}
	if p.X < -lim || p.Y < -lim || p.X > lim || p.Y > lim {
		err := geometry.ErrInvalidPoint
		if tol == geometry.ToleranceAbsolute && max(abs(p.X), abs(p.Y)) <= geometry.MaxSafeSide {
			err = geometry.ErrInexactTolerance
		}
		return fmt.Errorf("%w: %v has a coordinate beyond ±%d", err, p, lim)
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// runCount prints C((side+1)^2, n).
func runCount(cmd *cobra.Command, opts *countOptions) error {
	switch {
	case opts.side < 0:
		return fmt.Errorf("side %d: %w", opts.side, geometry.ErrNegativeSide)
	case opts.side > geometry.MaxSafeSide:
		return fmt.Errorf("side %d: %w", opts.side, geometry.ErrSideTooLarge)
	}
	points := (opts.side + 1) * (opts.side + 1)
	if opts.n < 0 || opts.n > points {
		return fmt.Errorf("subset size %d is outside 0..%d", opts.n, points)
	}
	total, ok := combin.Binomial(points, opts.n)
	if !ok {
		return fmt.Errorf("C(%d, %d) does not fit in 64 bits", points, opts.n)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "C(%d, %d) = %d\n", points, opts.n, total)
	return err
}

// runConfigShow prints the effective configuration.
func runConfigShow(cmd *cobra.Command, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// runConfigInit writes the default configuration file.
func runConfigInit(cmd *cobra.Command, path string) error {
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote default configuration to %s\n", path)
	return err
}
