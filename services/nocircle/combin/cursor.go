// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package combin enumerates k-element index subsets of an ordered universe
// in lexicographic order without materializing them.
//
// Architecture:
//
//	A Cursor holds only the current index tuple (O(k) state) and advances it
//	in place. Tuples are produced in strictly increasing lexicographic order:
//
//	  (0,1,2) (0,1,3) (0,1,4) (0,2,3) ... (2,3,4)     universe 5, k 3
//
//	The space can be partitioned into prefix shards, one per possible first
//	index. Shard f holds exactly the tuples starting with f, and shards are
//	themselves ordered, so the concatenation of shards 0..size-k is the full
//	lexicographic sequence. The parallel scanner relies on this.
package combin

import (
	"fmt"
	"iter"
	"math"
	"math/bits"
)

// -----------------------------------------------------------------------------
// Cursor
// -----------------------------------------------------------------------------

// Cursor walks k-element index tuples of [0, size) in lexicographic order.
//
// Description:
//
//	Call Next before reading the first tuple. Indices returns a view of the
//	current tuple that is overwritten by the following Next; callers that
//	keep a tuple must copy it. The cursor is forward-only; Reset rewinds
//	it to before the first tuple.
//
// Thread Safety: Not safe for concurrent use. Give each goroutine its own.
type Cursor struct {
	size    int
	k       int
	first   int // fixed first index, or -1 when unrestricted
	idx     []int
	started bool
	done    bool
}

// NewCursor creates a cursor over all k-subsets of [0, size).
//
// A k outside [0, size] yields no tuples. k == 0 yields one empty tuple.
func NewCursor(size, k int) *Cursor {
	c := &Cursor{size: size, k: k, first: -1}
	if k >= 0 {
		c.idx = make([]int, k)
	}
	return c
}

// NewCursorWithPrefix creates a cursor over the k-subsets of [0, size)
// whose first index equals first.
//
// The shard is empty when k < 1 or first is outside [0, size-k].
func NewCursorWithPrefix(size, k, first int) *Cursor {
	c := NewCursor(size, k)
	c.first = first
	return c
}

// Size returns the universe size.
func (c *Cursor) Size() int { return c.size }

// K returns the tuple length.
func (c *Cursor) K() int { return c.k }

// Next advances to the next tuple and reports whether one exists.
func (c *Cursor) Next() bool {
	if c.done {
		return false
	}
	if !c.started {
		c.started = true
		if !c.valid() {
			c.done = true
			return false
		}
		start := 0
		if c.first >= 0 {
			start = c.first
		}
		for i := range c.idx {
			c.idx[i] = start + i
		}
		return true
	}

	// Rightmost position that can still move right. A prefix shard never
	// moves position 0.
	lowest := 0
	if c.first >= 0 {
		lowest = 1
	}
	i := c.k - 1
	for i >= lowest && c.idx[i] == c.size-c.k+i {
		i--
	}
	if i < lowest {
		c.done = true
		return false
	}
	c.idx[i]++
	for j := i + 1; j < c.k; j++ {
		c.idx[j] = c.idx[j-1] + 1
	}
	return true
}

// Indices returns the current tuple. The slice is owned by the cursor.
func (c *Cursor) Indices() []int {
	return c.idx
}

// Reset rewinds the cursor so the next Next yields the first tuple again.
func (c *Cursor) Reset() {
	c.started = false
	c.done = false
}

// Done reports whether the cursor has been exhausted.
func (c *Cursor) Done() bool { return c.done }

func (c *Cursor) valid() bool {
	if c.k < 0 || c.k > c.size {
		return false
	}
	if c.first >= 0 {
		return c.k >= 1 && c.first <= c.size-c.k
	}
	return c.first == -1
}

// -----------------------------------------------------------------------------
// Sequences
// -----------------------------------------------------------------------------

// All returns a lazy sequence of the k-subsets of [0, size).
//
// Each range over the returned sequence starts from the first tuple. The
// yielded slice is reused between iterations.
func All(size, k int) iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		c := NewCursor(size, k)
		for c.Next() {
			if !yield(c.Indices()) {
				return
			}
		}
	}
}

// Shards returns the number of prefix shards of the k-subsets of [0, size),
// which is size-k+1 for 1 <= k <= size and 0 otherwise.
func Shards(size, k int) int {
	if k < 1 || k > size {
		return 0
	}
	return size - k + 1
}

// ShardSize returns the number of tuples in prefix shard first, which is
// C(size-first-1, k-1).
func ShardSize(size, k, first int) (uint64, bool) {
	if first < 0 || first >= Shards(size, k) {
		return 0, true
	}
	return Binomial(size-first-1, k-1)
}

// -----------------------------------------------------------------------------
// Counting
// -----------------------------------------------------------------------------

// Binomial returns C(n, k) and whether it fits in a uint64.
//
// Out-of-range k returns (0, true).
func Binomial(n, k int) (uint64, bool) {
	if k < 0 || n < 0 || k > n {
		return 0, true
	}
	if k > n-k {
		k = n - k
	}
	var result uint64 = 1
	for i := 1; i <= k; i++ {
		// result * (n-k+i) / i stays integral at every step.
		hi, lo := bits.Mul64(result, uint64(n-k+i))
		if hi >= uint64(i) {
			return math.MaxUint64, false
		}
		q, _ := bits.Div64(hi, lo, uint64(i))
		result = q
	}
	return result, true
}

// CheckTuple panics unless idx is a strictly increasing k-tuple inside
// [0, size). The scan loops call it on every tuple they test.
func CheckTuple(idx []int, size, k int) {
	if len(idx) != k {
		panic(fmt.Sprintf("combin: tuple has %d indices, want %d", len(idx), k))
	}
	for i, v := range idx {
		if v < 0 || v >= size {
			panic(fmt.Sprintf("combin: index %d out of range [0, %d)", v, size))
		}
		if i > 0 && idx[i-1] >= v {
			panic(fmt.Sprintf("combin: tuple %v is not strictly increasing", idx))
		}
	}
}
