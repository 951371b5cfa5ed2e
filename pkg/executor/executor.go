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

	"lockwait/pkg/config"
	"lockwait/pkg/txn"
)

// Executor runs one locking transaction against the database.
// Execute must be safe for concurrent use; every unit calls it from its own
// goroutine and expects it to block for as long as the row is locked.
type Executor interface {
	Execute(ctx context.Context, script txn.Script) error
	Close() error
}

// New builds the executor selected by cfg.Executor.
func New(cfg *config.Config) (Executor, error) {
	switch cfg.Executor {
	case config.ExecutorDocker:
		return NewCommandExecutor(cfg.Docker), nil
	case config.ExecutorSQL:
		e, err := OpenSQLExecutor(cfg.SQL, cfg.Concurrency)
		if err != nil {
			return nil, err
		}
		return e, nil
	case config.ExecutorMemory:
		return NewMemoryExecutor(cfg.Memory.InitialBalance), nil
	default:
		return nil, config.ErrInvalidConfig.GenWithStackByArgs("unsupported executor: " + cfg.Executor)
	}
}
