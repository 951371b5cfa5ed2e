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
	"regexp"
	"strings"

	"github.com/pingcap/errors"
)

// identifiers end up verbatim in the generated SQL, so only plain names are accepted.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TableName is an optionally schema-qualified table.
type TableName struct {
	Schema string
	Name   string
}

// ParseTableName parses "schema.table" or "table". A bare table name takes
// defaultSchema, which may be empty.
func ParseTableName(raw string, defaultSchema string) (TableName, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TableName{}, errors.New("table name is empty")
	}

	var table TableName
	parts := strings.Split(raw, ".")
	switch len(parts) {
	case 1:
		table = TableName{Schema: strings.TrimSpace(defaultSchema), Name: strings.TrimSpace(parts[0])}
	case 2:
		table = TableName{Schema: strings.TrimSpace(parts[0]), Name: strings.TrimSpace(parts[1])}
		if table.Schema == "" {
			return TableName{}, errors.Errorf("invalid table name: %s", raw)
		}
	default:
		return TableName{}, errors.Errorf("invalid table name: %s", raw)
	}

	if err := ValidateIdent(table.Name); err != nil {
		return TableName{}, errors.Annotatef(err, "invalid table name: %s", raw)
	}
	if table.Schema != "" {
		if err := ValidateIdent(table.Schema); err != nil {
			return TableName{}, errors.Annotatef(err, "invalid table name: %s", raw)
		}
	}
	return table, nil
}

// ValidateIdent checks that name is a plain SQL identifier.
func ValidateIdent(name string) error {
	if !identPattern.MatchString(name) {
		return errors.Errorf("identifier %q must match %s", name, identPattern.String())
	}
	return nil
}

func (t TableName) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return fmt.Sprintf("%s.%s", t.Schema, t.Name)
}
