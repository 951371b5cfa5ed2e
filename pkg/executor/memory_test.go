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

package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
	"lockwait/pkg/config"
	"lockwait/pkg/txn"
)

func TestMemoryExecutor_SerializesSameRow(t *testing.T) {
	t.Parallel()

	const (
		units = 5
		hold  = 20 * time.Millisecond
	)
	e := NewMemoryExecutor(100)
	script := txn.Script{Dialect: txn.DialectPostgres, Target: txn.DefaultTarget(), Hold: hold}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(units)
	for i := 0; i < units; i++ {
		go func() {
			defer wg.Done()
			require.NoError(t, e.Execute(context.Background(), script))
		}()
	}
	wg.Wait()

	require.GreaterOrEqual(t, time.Since(start), units*hold)
	require.Equal(t, int64(100-units), e.Balance(script.Target))
}

func TestMemoryExecutor_DifferentRowsDoNotBlock(t *testing.T) {
	t.Parallel()

	e := NewMemoryExecutor(0)
	hold := 50 * time.Millisecond
	first := txn.Script{Target: txn.DefaultTarget(), Hold: hold}
	second := first
	second.Target.Key = 2

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(2)
	for _, s := range []txn.Script{first, second} {
		s := s
		go func() {
			defer wg.Done()
			require.NoError(t, e.Execute(context.Background(), s))
		}()
	}
	wg.Wait()

	require.Less(t, time.Since(start), 2*hold)
	require.Equal(t, int64(-1), e.Balance(first.Target))
	require.Equal(t, int64(-1), e.Balance(second.Target))
}

func TestMemoryExecutor_Cancelled(t *testing.T) {
	t.Parallel()

	e := NewMemoryExecutor(10)
	script := txn.Script{Target: txn.DefaultTarget(), Hold: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, context.Canceled, errors.Cause(e.Execute(ctx, script)))
	require.Equal(t, int64(10), e.Balance(script.Target))

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, e.Execute(ctx, script))
	require.Equal(t, int64(10), e.Balance(script.Target))
}

func TestNew(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	e, err := New(cfg)
	require.NoError(t, err)
	require.IsType(t, &CommandExecutor{}, e)

	cfg.Executor = config.ExecutorMemory
	e, err = New(cfg)
	require.NoError(t, err)
	require.IsType(t, &MemoryExecutor{}, e)

	// sql.Open does not dial, so this works without a server.
	cfg.Executor = config.ExecutorSQL
	e, err = New(cfg)
	require.NoError(t, err)
	require.IsType(t, &SQLExecutor{}, e)
	require.NoError(t, e.Close())

	cfg.Executor = "carrier-pigeon"
	_, err = New(cfg)
	require.Error(t, err)
	require.True(t, config.ErrInvalidConfig.Equal(err))
}
