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

package workload

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"
)

// histogramMax bounds the recorded latency; longer units are clamped.
var histogramMax = int64(time.Hour / time.Microsecond)

// Summary condenses a run into the numbers worth logging.
type Summary struct {
	Units  int
	Failed int
	// Total is the wall clock time from releasing the first unit to the
	// last unit returning.
	Total time.Duration

	Mean time.Duration
	P50  time.Duration
	P95  time.Duration
	P99  time.Duration
	Max  time.Duration

	// SerializationRatio is Total / (Units * hold). Close to 1 means the
	// row lock made the units run strictly one after another.
	SerializationRatio float64
}

// Summarize builds a Summary of results.
func Summarize(results []Result, hold, total time.Duration) Summary {
	s := Summary{Units: len(results), Total: total}
	if len(results) == 0 {
		return s
	}

	hist := hdrhistogram.New(1, histogramMax, 3)
	for _, res := range results {
		if res.Err != nil {
			s.Failed++
		}
		micros := res.Elapsed.Microseconds()
		if micros <= 0 {
			micros = 1
		}
		if err := hist.RecordValue(micros); err != nil {
			_ = hist.RecordValue(hist.HighestTrackableValue())
		}
	}
	s.Mean = microsToDuration(int64(hist.Mean()))
	s.P50 = microsToDuration(hist.ValueAtQuantile(50))
	s.P95 = microsToDuration(hist.ValueAtQuantile(95))
	s.P99 = microsToDuration(hist.ValueAtQuantile(99))
	s.Max = microsToDuration(hist.Max())

	if hold > 0 {
		s.SerializationRatio = float64(total) / (float64(len(results)) * float64(hold))
	}
	return s
}

// Fields renders the summary as log fields.
func (s Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("units", s.Units),
		zap.Int("failed", s.Failed),
		zap.Duration("total", s.Total),
		zap.Duration("mean", s.Mean),
		zap.Duration("p50", s.P50),
		zap.Duration("p95", s.P95),
		zap.Duration("p99", s.P99),
		zap.Duration("max", s.Max),
		zap.Float64("serializationRatio", s.SerializationRatio),
	}
}

func microsToDuration(value int64) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Microsecond
}
