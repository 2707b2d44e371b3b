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
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "nocircle"
	metricsSubsystem = "search"
)

// Scan outcome label values.
const (
	outcomeFound     = "found"
	outcomeNotFound  = "not_found"
	outcomeCancelled = "cancelled"
)

// Metrics holds the Prometheus collectors of the search driver.
//
// Description:
//
//	Collectors are registered on the Registerer passed to NewMetrics. A nil
//	*Metrics is valid and records nothing, which is the driver default.
//
//	Label n is the subset size. Its cardinality is bounded by the size
//	range of a run (at most the number of grid points).
//
// Thread Safety: Safe for concurrent use.
type Metrics struct {
	examined     prometheus.Counter
	scans        *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	currentSize  prometheus.Gauge
}

// NewMetrics creates the search collectors and registers them on reg.
//
// Inputs:
//   - reg: Registry to register on. nil creates unregistered collectors.
//
// Outputs:
//   - *Metrics: The collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		examined: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "combinations_examined_total",
			Help:      "Total candidate subsets checked for concyclic quadruples",
		}),
		scans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "scans_total",
			Help:      "Completed subset-size scans by size and outcome",
		}, []string{"n", "outcome"}),
		scanDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of one subset-size scan",
			Buckets:   prometheus.ExponentialBuckets(0.001, 10, 9),
		}, []string{"outcome"}),
		currentSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "current_subset_size",
			Help:      "Subset size currently being scanned",
		}),
	}
}

func (m *Metrics) addExamined(delta uint64) {
	if m == nil || delta == 0 {
		return
	}
	m.examined.Add(float64(delta))
}

func (m *Metrics) scanStarted(n int) {
	if m == nil {
		return
	}
	m.currentSize.Set(float64(n))
}

func (m *Metrics) scanFinished(n int, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(strconv.Itoa(n), outcome).Inc()
	m.scanDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
