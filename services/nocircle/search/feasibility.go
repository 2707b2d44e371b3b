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
	"github.com/AleutianAI/nocircle/services/nocircle/combin"
	"github.com/AleutianAI/nocircle/services/nocircle/geometry"
)

// HasForbiddenQuadruple reports whether any four of the points are
// concyclic under pred.
//
// Description:
//
//	Tries every 4-combination i<j<k<l and stops at the first concyclic one.
//	Returns false only after all C(len(points), 4) combinations; fewer than
//	four points always return false. Cost is O(n^4) predicate calls and
//	dominates the search.
//
// Thread Safety: Safe for concurrent use; points is only read.
func HasForbiddenQuadruple(points []geometry.Point, pred geometry.Predicate) bool {
	n := len(points)
	for i := 0; i < n-3; i++ {
		for j := i + 1; j < n-2; j++ {
			for k := j + 1; k < n-1; k++ {
				for l := k + 1; l < n; l++ {
					if pred.Concyclic(points[i], points[j], points[k], points[l]) {
						return true
					}
				}
			}
		}
	}
	return false
}

// FirstForbiddenQuadruple returns the positions (within points) of the
// first concyclic quadruple in lexicographic order. It visits quadruples in
// the same order as HasForbiddenQuadruple and is meant for reporting, not
// for the scan loop.
func FirstForbiddenQuadruple(points []geometry.Point, pred geometry.Predicate) ([4]int, bool) {
	for q := range combin.All(len(points), 4) {
		if pred.Concyclic(points[q[0]], points[q[1]], points[q[2]], points[q[3]]) {
			return [4]int{q[0], q[1], q[2], q[3]}, true
		}
	}
	return [4]int{}, false
}
