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
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"lockwait/pkg/executor"
	"lockwait/pkg/txn"
)

// funcExecutor adapts a function to executor.Executor.
type funcExecutor func(ctx context.Context, script txn.Script) error

func (f funcExecutor) Execute(ctx context.Context, script txn.Script) error { return f(ctx, script) }
func (f funcExecutor) Close() error                                         { return nil }

func testScript(hold time.Duration) txn.Script {
	return txn.Script{Dialect: txn.DialectPostgres, Target: txn.DefaultTarget(), Hold: hold}
}

func requireOneResultPerUnit(t *testing.T, results []Result, n int) {
	t.Helper()
	require.Len(t, results, n)
	for i, res := range results {
		require.Equal(t, i+1, res.ID)
		require.GreaterOrEqual(t, res.Elapsed, time.Duration(0))
	}
}

func TestRunnerReturnsEveryUnit(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 20, 64} {
		var calls atomic.Int64
		exec := funcExecutor(func(ctx context.Context, script txn.Script) error {
			calls.Add(1)
			return nil
		})
		results := NewRunner(n, testScript(0), exec).Run(context.Background())
		requireOneResultPerUnit(t, results, n)
		require.Equal(t, int64(n), calls.Load())
	}
}

func TestRunnerSerializesOnRowLock(t *testing.T) {
	t.Parallel()

	const (
		units = 6
		hold  = 30 * time.Millisecond
	)
	mem := executor.NewMemoryExecutor(1000)
	runner := NewRunner(units, testScript(hold), mem)

	start := time.Now()
	results := runner.Run(context.Background())
	total := time.Since(start)

	requireOneResultPerUnit(t, results, units)
	require.GreaterOrEqual(t, total, units*hold)
	// Units hold the row one after another, nothing more.
	require.Less(t, total, units*hold+3*hold)
	require.Equal(t, int64(1000-units), mem.Balance(txn.DefaultTarget()))

	// The k-th finisher waited for k-1 holders before holding the row itself.
	// Units start a few microseconds apart, hence the slack.
	elapsed := make([]time.Duration, 0, units)
	for _, res := range results {
		require.NoError(t, res.Err)
		elapsed = append(elapsed, res.Elapsed)
	}
	sort.Slice(elapsed, func(i, j int) bool { return elapsed[i] < elapsed[j] })
	for k, d := range elapsed {
		require.GreaterOrEqual(t, d, time.Duration(k+1)*hold-hold/2)
	}
}

func TestRunnerRecordsFailedUnits(t *testing.T) {
	t.Parallel()

	exec := funcExecutor(func(ctx context.Context, script txn.Script) error {
		time.Sleep(5 * time.Millisecond)
		return errors.New("psql: error: connection to server failed")
	})
	results := NewRunner(4, testScript(0), exec).Run(context.Background())

	requireOneResultPerUnit(t, results, 4)
	for _, res := range results {
		require.Error(t, res.Err)
		require.GreaterOrEqual(t, res.Elapsed, 5*time.Millisecond)
	}
}

func TestRunnerPassesScriptAndContext(t *testing.T) {
	t.Parallel()

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	script := testScript(250 * time.Millisecond)

	var seen atomic.Int64
	exec := funcExecutor(func(got context.Context, s txn.Script) error {
		if got.Value(ctxKey{}) == "v" && s == script {
			seen.Add(1)
		}
		return nil
	})
	runner := NewRunner(3, script, exec)
	require.NotEmpty(t, runner.RunID())
	runner.Run(ctx)
	require.Equal(t, int64(3), seen.Load())
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		s := Summarize(nil, time.Second, 0)
		require.Equal(t, Summary{}, s)
	})

	t.Run("serialized", func(t *testing.T) {
		results := []Result{
			{ID: 1, Elapsed: 500 * time.Millisecond},
			{ID: 2, Elapsed: 1000 * time.Millisecond},
			{ID: 3, Elapsed: 1500 * time.Millisecond, Err: errors.New("boom")},
			{ID: 4, Elapsed: 2000 * time.Millisecond},
		}
		s := Summarize(results, 500*time.Millisecond, 2*time.Second)
		require.Equal(t, 4, s.Units)
		require.Equal(t, 1, s.Failed)
		require.Equal(t, 2*time.Second, s.Total)
		require.InDelta(t, 1.0, s.SerializationRatio, 1e-9)
		// hdrhistogram keeps three significant digits.
		require.InDelta(t, float64(1250*time.Millisecond), float64(s.Mean), float64(5*time.Millisecond))
		require.InDelta(t, float64(2*time.Second), float64(s.Max), float64(5*time.Millisecond))
		require.LessOrEqual(t, s.P50, s.P95)
		require.LessOrEqual(t, s.P95, s.P99)
		require.Len(t, s.Fields(), 9)
	})

	t.Run("zero hold", func(t *testing.T) {
		s := Summarize([]Result{{ID: 1}}, 0, time.Millisecond)
		require.Zero(t, s.SerializationRatio)
		require.Equal(t, time.Microsecond, s.Max)
	})
}
