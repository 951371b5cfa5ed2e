// Copyright 2025 PingCAP, Inc.
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
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"lockwait/pkg/config"
	"lockwait/pkg/txn"
)

// SQLExecutor runs the transaction over database/sql. Every call takes its own
// connection so that the units queue on the row lock and not on the pool.
type SQLExecutor struct {
	db *sql.DB
}

// OpenSQLExecutor opens the database described by cfg, sized for concurrency
// simultaneous transactions.
func OpenSQLExecutor(cfg config.SQLConfig, concurrency int) (*SQLExecutor, error) {
	log.Info("create db connection",
		zap.String("driver", cfg.Driver),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database))
	db, err := sql.Open(cfg.Driver, cfg.DataSourceName())
	if err != nil {
		return nil, errors.Annotate(err, "create the sql client failed")
	}
	configureDBConnection(db, concurrency)
	return NewSQLExecutor(db), nil
}

// NewSQLExecutor wraps an already opened database.
func NewSQLExecutor(db *sql.DB) *SQLExecutor {
	return &SQLExecutor{db: db}
}

// configureDBConnection keeps one connection per unit alive for the whole run.
func configureDBConnection(db *sql.DB, concurrency int) {
	db.SetMaxOpenConns(concurrency)
	db.SetMaxIdleConns(concurrency)
	db.SetConnMaxLifetime(time.Minute)
}

// Execute runs BEGIN, the script body and COMMIT on a dedicated connection,
// rolling back when any statement fails.
func (e *SQLExecutor) Execute(ctx context.Context, script txn.Script) error {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return errors.Annotate(err, "get connection failed")
	}
	defer conn.Close()

	if err := beginTransaction(ctx, conn); err != nil {
		return err
	}
	for _, stmt := range script.Body() {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			log.Debug("statement failed", zap.String("sql", stmt), zap.Error(err))
			rollbackTransaction(conn)
			return errors.Trace(err)
		}
	}
	if err := commitTransaction(ctx, conn); err != nil {
		rollbackTransaction(conn)
		return err
	}
	return nil
}

// Close closes the underlying database.
func (e *SQLExecutor) Close() error {
	return errors.Trace(e.db.Close())
}

func beginTransaction(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, "BEGIN")
	if err != nil {
		log.Debug("begin transaction failed", zap.Error(err))
	}
	return errors.Trace(err)
}

func commitTransaction(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, "COMMIT")
	if err != nil {
		log.Debug("commit transaction failed", zap.Error(err))
	}
	return errors.Trace(err)
}

// rollbackTransaction uses a fresh context so a cancelled unit still releases its lock.
func rollbackTransaction(conn *sql.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		log.Debug("rollback transaction failed", zap.Error(err))
	}
}
