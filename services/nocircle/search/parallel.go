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
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/nocircle/services/nocircle/combin"
	"github.com/AleutianAI/nocircle/services/nocircle/geometry"
	"golang.org/x/sync/errgroup"
)

// shardScan is the state shared by the workers of one parallel scan.
type shardScan struct {
	n        int
	total    uint64
	examined atomic.Uint64

	// best is the smallest shard index with a hit, math.MaxInt64 if none.
	best atomic.Int64

	mu  sync.Mutex
	hit []int

	// ticks is the last progress tick reported. Guarded by Driver.reportMu.
	ticks uint64
}

// scanParallel scans prefix shards concurrently.
//
// Description:
//
//	Shard f holds the tuples whose first index is f, in lexicographic
//	order, and shards are dispatched in increasing f. Each worker stops at
//	the first hit in its shard. The smallest shard with a hit holds the
//	lexicographically first qualifying tuple overall, so once shard f has
//	a hit, shards above f stop and shards below f keep running.
//
//	Examined counts include candidates in shards that are later abandoned,
//	so they can exceed the sequential count.
func (d *Driver) scanParallel(ctx context.Context, n int) (Outcome, error) {
	s := &shardScan{n: n, total: d.total(n)}
	s.best.Store(math.MaxInt64)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.params.Workers)

	shards := combin.Shards(d.grid.Len(), n)
	for f := 0; f < shards; f++ {
		if int64(f) > s.best.Load() || gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return d.scanShard(gctx, s, f)
		})
	}
	err := g.Wait()

	examined := s.examined.Load()
	if err != nil {
		return Outcome{Examined: examined}, cancelled("scan", n, err)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{Examined: examined}, cancelled("scan", n, err)
	}
	if s.hit == nil {
		return Outcome{Examined: examined}, nil
	}
	return Outcome{
		Found:    true,
		Subset:   d.subset(s.hit),
		Examined: examined,
	}, nil
}

// scanShard walks one prefix shard until a hit, exhaustion, cancellation,
// or a hit in a lower shard.
func (d *Driver) scanShard(ctx context.Context, s *shardScan, first int) error {
	size := d.grid.Len()
	cursor := combin.NewCursorWithPrefix(size, s.n, first)
	buf := make([]geometry.Point, s.n)
	pred := d.params.Predicate
	interval := d.params.ProgressInterval
	shard := int64(first)

	var local, flushed uint64
	defer func() { d.metrics.addExamined(local - flushed) }()

	for cursor.Next() {
		local++
		if local&checkMask == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if shard > s.best.Load() {
				d.logShardAbandoned(s.n, first, local)
				return nil
			}
			d.metrics.addExamined(local - flushed)
			flushed = local
		}

		examined := s.examined.Add(1)
		combin.CheckTuple(cursor.Indices(), size, s.n)
		points := d.grid.Select(cursor.Indices(), buf)
		if !HasForbiddenQuadruple(points, pred) {
			s.record(shard, cursor.Indices())
			return nil
		}
		if examined%interval == 0 {
			d.shardProgress(s, examined)
		}
	}
	return nil
}

// shardProgress reports every tick up to examined that has not been
// reported yet, in increasing order. A worker that reaches the lock late
// finds its tick already reported and emits nothing.
func (d *Driver) shardProgress(s *shardScan, examined uint64) {
	interval := d.params.ProgressInterval
	d.reportMu.Lock()
	defer d.reportMu.Unlock()
	for tick := s.ticks + 1; tick <= examined/interval; tick++ {
		s.ticks = tick
		d.reporter.Progress(d.progressEvent(s.n, tick*interval, s.total))
	}
}

func (d *Driver) logShardAbandoned(n, first int, examined uint64) {
	size, _ := combin.ShardSize(d.grid.Len(), n, first)
	d.logger.Debug("shard abandoned after a hit in a lower shard",
		slog.Int("n", n),
		slog.Int("shard", first),
		slog.Uint64("examined", examined),
		slog.Uint64("shard_size", size),
	)
}

// record keeps the hit of the smallest shard.
func (s *shardScan) record(shard int64, indices []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if shard < s.best.Load() {
		s.best.Store(shard)
		s.hit = slices.Clone(indices)
	}
}
