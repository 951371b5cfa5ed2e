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
	"time"

	"github.com/fishy/rowlock"
	"github.com/pingcap/errors"
	"lockwait/pkg/txn"
)

// MemoryExecutor simulates the row lock in process. The transaction locks the
// target row, holds it for script.Hold, then applies the decrement.
type MemoryExecutor struct {
	locks *rowlock.RowLock

	initialBalance int64
	mu             sync.Mutex
	balances       map[string]int64
}

// NewMemoryExecutor creates a MemoryExecutor whose rows start at initialBalance.
func NewMemoryExecutor(initialBalance int64) *MemoryExecutor {
	return &MemoryExecutor{
		locks:          rowlock.NewRowLock(rowlock.MutexNewLocker),
		initialBalance: initialBalance,
		balances:       make(map[string]int64),
	}
}

// Execute blocks until the row is free, holds it, then updates it. A
// cancelled context releases the lock without applying the update.
func (e *MemoryExecutor) Execute(ctx context.Context, script txn.Script) error {
	key := script.Target.RowKey()
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}

	timer := time.NewTimer(script.Hold)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	case <-timer.C:
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	balance, ok := e.balances[key]
	if !ok {
		balance = e.initialBalance
	}
	e.balances[key] = balance - script.Target.Decrement
	return nil
}

// Balance returns the current balance of the target row.
func (e *MemoryExecutor) Balance(target txn.Target) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if balance, ok := e.balances[target.RowKey()]; ok {
		return balance
	}
	return e.initialBalance
}

// Close is a no-op.
func (e *MemoryExecutor) Close() error {
	return nil
}
