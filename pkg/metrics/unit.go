// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// UnitDurationHistogram records the wall clock time of one unit, lock wait included.
	UnitDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lockwait",
			Subsystem: "unit",
			Name:      "duration_seconds",
			Help:      "Bucketed histogram of the wall clock time (s) of a locking transaction.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"outcome"})

	// UnitCounter records finished units by outcome.
	UnitCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lockwait",
			Subsystem: "unit",
			Name:      "total",
			Help:      "Total count of finished locking transactions.",
		}, []string{"outcome"})

	// UnitInFlightGauge records units that have started but not returned.
	UnitInFlightGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lockwait",
			Subsystem: "unit",
			Name:      "in_flight",
			Help:      "Count of locking transactions waiting for or holding the row lock.",
		})
)

func initUnitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(UnitDurationHistogram)
	registry.MustRegister(UnitCounter)
	registry.MustRegister(UnitInFlightGauge)
}

// UnitStarted marks one more unit in flight.
func UnitStarted() {
	UnitInFlightGauge.Inc()
}

// ObserveUnit records a finished unit. A failed unit is counted separately
// but its elapsed time is observed all the same.
func ObserveUnit(elapsed time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	UnitInFlightGauge.Dec()
	UnitDurationHistogram.WithLabelValues(outcome).Observe(elapsed.Seconds())
	UnitCounter.WithLabelValues(outcome).Inc()
}
