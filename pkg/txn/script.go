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

package txn

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pingcap/errors"
)

// Dialect selects the SQL flavour of the sleep statement.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// ParseDialect accepts the dialect names used in the config file.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case DialectPostgres:
		return DialectPostgres, nil
	case DialectMySQL:
		return DialectMySQL, nil
	default:
		return "", errors.Errorf("unsupported sql dialect: %s", s)
	}
}

// Target is the single row every unit competes for.
type Target struct {
	Table         TableName
	KeyColumn     string
	Key           int64
	BalanceColumn string
	Decrement     int64
}

// DefaultTarget is the loans row used by the demo database.
func DefaultTarget() Target {
	return Target{
		Table:         TableName{Schema: "operational", Name: "loans"},
		KeyColumn:     "loan_id",
		Key:           1,
		BalanceColumn: "outstanding_balance",
		Decrement:     1,
	}
}

// RowKey identifies the target row independent of dialect.
func (t Target) RowKey() string {
	return fmt.Sprintf("%s/%s=%d", t.Table, t.KeyColumn, t.Key)
}

// Script is the fixed lock, hold, update transaction.
type Script struct {
	Dialect Dialect
	Target  Target
	Hold    time.Duration
}

// Body returns the statements executed between BEGIN and COMMIT.
func (s Script) Body() []string {
	t := s.Target
	return []string{
		fmt.Sprintf("SELECT * FROM %s WHERE %s = %d FOR UPDATE", t.Table, t.KeyColumn, t.Key),
		s.sleepStatement(),
		fmt.Sprintf("UPDATE %s SET %s = %s - %d WHERE %s = %d",
			t.Table, t.BalanceColumn, t.BalanceColumn, t.Decrement, t.KeyColumn, t.Key),
	}
}

// Statements returns the whole transaction, one statement per element.
func (s Script) Statements() []string {
	stmts := make([]string, 0, 5)
	stmts = append(stmts, "BEGIN")
	stmts = append(stmts, s.Body()...)
	return append(stmts, "COMMIT")
}

// Text renders the transaction the way it is handed to a command line client.
func (s Script) Text() string {
	var b strings.Builder
	for _, stmt := range s.Statements() {
		b.WriteString(stmt)
		b.WriteString(";\n")
	}
	return b.String()
}

func (s Script) sleepStatement() string {
	secs := strconv.FormatFloat(s.Hold.Seconds(), 'f', -1, 64)
	if s.Dialect == DialectMySQL {
		return fmt.Sprintf("SELECT SLEEP(%s)", secs)
	}
	return fmt.Sprintf("SELECT pg_sleep(%s)", secs)
}
