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
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"lockwait/pkg/executor"
	"lockwait/pkg/metrics"
	"lockwait/pkg/txn"
)

// Result is the outcome of one unit of work.
type Result struct {
	ID      int
	Elapsed time.Duration
	// Err is kept for metrics and logs only, a failed unit is reported like
	// any other.
	Err error
}

// Runner fires a fixed number of identical transactions at the same row.
type Runner struct {
	concurrency int
	script      txn.Script
	exec        executor.Executor
	runID       string
}

// NewRunner creates a Runner. concurrency must be at least 1.
func NewRunner(concurrency int, script txn.Script, exec executor.Executor) *Runner {
	return &Runner{
		concurrency: concurrency,
		script:      script,
		exec:        exec,
		runID:       uuid.NewString(),
	}
}

// RunID identifies this runner in the logs.
func (r *Runner) RunID() string {
	return r.runID
}

// Run starts every unit at once, waits for all of them and returns one
// result per unit ordered by ID.
func (r *Runner) Run(ctx context.Context) []Result {
	log.Info("start lock contention workload",
		zap.String("runID", r.runID),
		zap.Int("concurrency", r.concurrency),
		zap.Duration("hold", r.script.Hold),
		zap.String("row", r.script.Target.RowKey()))

	resultCh := make(chan Result, r.concurrency)
	start := make(chan struct{})

	var g errgroup.Group
	for id := 1; id <= r.concurrency; id++ {
		id := id
		g.Go(func() error {
			<-start
			resultCh <- r.runUnit(ctx, id)
			return nil
		})
	}

	began := time.Now()
	close(start)
	// units never return an error, Wait is only the barrier.
	_ = g.Wait()
	total := time.Since(began)
	close(resultCh)

	results := make([]Result, r.concurrency)
	for res := range resultCh {
		results[res.ID-1] = res
	}

	summary := Summarize(results, r.script.Hold, total)
	log.Info("lock contention workload finished",
		append([]zap.Field{zap.String("runID", r.runID)}, summary.Fields()...)...)
	return results
}

// runUnit times a single transaction. Errors are swallowed so that a failed
// unit still reports how long it ran.
func (r *Runner) runUnit(ctx context.Context, id int) Result {
	metrics.UnitStarted()
	start := time.Now()
	err := r.exec.Execute(ctx, r.script)
	elapsed := time.Since(start)
	metrics.ObserveUnit(elapsed, err)

	if err != nil {
		log.Debug("unit finished with error",
			zap.String("runID", r.runID),
			zap.Int("unit", id),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
	} else {
		log.Debug("unit finished",
			zap.String("runID", r.runID),
			zap.Int("unit", id),
			zap.Duration("elapsed", elapsed))
	}
	return Result{ID: id, Elapsed: elapsed, Err: err}
}
