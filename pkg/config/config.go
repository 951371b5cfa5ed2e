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

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
	"lockwait/pkg/txn"
)

const (
	// DefaultConcurrency is the number of transactions fired at the row.
	DefaultConcurrency = 20
	// DefaultHold is how long every transaction keeps the row locked.
	DefaultHold = 500 * time.Millisecond
	// DefaultBarWidth is the length of the longest bar in the chart.
	DefaultBarWidth = 50
)

const (
	ExecutorDocker = "docker"
	ExecutorSQL    = "sql"
	ExecutorMemory = "memory"
)

// ErrInvalidConfig is returned for every config value that fails validation.
var ErrInvalidConfig = errors.Normalize("invalid config: %s", errors.RFCCodeText("LockWait:ErrInvalidConfig"))

// Duration decodes TOML strings like "500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the lockwait configuration.
type Config struct {
	Concurrency int      `toml:"concurrency"`
	Hold        Duration `toml:"hold"`
	BarWidth    int      `toml:"bar-width"`
	Executor    string   `toml:"executor"`

	LogLevel    string `toml:"log-level"`
	LogFile     string `toml:"log-file"`
	MetricsAddr string `toml:"metrics-addr"`

	Target TargetConfig `toml:"target"`
	Docker DockerConfig `toml:"docker"`
	SQL    SQLConfig    `toml:"sql"`
	Memory MemoryConfig `toml:"memory"`
}

// TargetConfig names the contended row.
type TargetConfig struct {
	Table         string `toml:"table"`
	KeyColumn     string `toml:"key-column"`
	Key           int64  `toml:"key"`
	BalanceColumn string `toml:"balance-column"`
	Decrement     int64  `toml:"decrement"`
}

// DockerConfig drives the command line client, optionally inside a container.
type DockerConfig struct {
	Binary    string `toml:"binary"`
	Container string `toml:"container"`
	// Client is psql or mysql.
	Client   string `toml:"client"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Database string `toml:"database"`
}

// SQLConfig is used by the in-process database/sql executor.
type SQLConfig struct {
	Driver   string `toml:"driver"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	// DSN overrides every field above except Driver.
	DSN string `toml:"dsn"`
}

// MemoryConfig is used by the simulated executor.
type MemoryConfig struct {
	InitialBalance int64 `toml:"initial-balance"`
}

// NewDefaultConfig returns twenty psql clients in the eds_postgres_primary
// container, all hitting loan 1.
func NewDefaultConfig() *Config {
	target := txn.DefaultTarget()
	return &Config{
		Concurrency: DefaultConcurrency,
		Hold:        Duration{DefaultHold},
		BarWidth:    DefaultBarWidth,
		Executor:    ExecutorDocker,
		LogLevel:    "info",
		Target: TargetConfig{
			Table:         target.Table.String(),
			KeyColumn:     target.KeyColumn,
			Key:           target.Key,
			BalanceColumn: target.BalanceColumn,
			Decrement:     target.Decrement,
		},
		Docker: DockerConfig{
			Binary:    "docker",
			Container: "eds_postgres_primary",
			Client:    "psql",
			User:      "postgres",
			Database:  "loans_db",
		},
		SQL: SQLConfig{
			Driver:   "postgres",
			Host:     "127.0.0.1",
			User:     "postgres",
			Database: "loans_db",
		},
		Memory: MemoryConfig{
			InitialBalance: 1000,
		},
	}
}

// LoadConfig decodes path over the defaults. Unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config path is empty")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.Errorf("config file does not exist: %s", path)
	}

	cfg := NewDefaultConfig()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Annotate(err, "decode config failed")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, errors.Errorf("unknown keys in config %s: %s", path, strings.Join(keys, ", "))
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize trims and lower-cases the enum-like fields and fills in
// driver-specific ports.
func (c *Config) Normalize() {
	c.Executor = strings.ToLower(strings.TrimSpace(c.Executor))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Docker.Client = strings.ToLower(strings.TrimSpace(c.Docker.Client))
	c.SQL.Driver = strings.ToLower(strings.TrimSpace(c.SQL.Driver))
	c.Target.Table = strings.TrimSpace(c.Target.Table)
	c.Target.KeyColumn = strings.TrimSpace(c.Target.KeyColumn)
	c.Target.BalanceColumn = strings.TrimSpace(c.Target.BalanceColumn)

	if c.SQL.Port == 0 {
		switch c.SQL.Driver {
		case "postgres":
			c.SQL.Port = 5432
		case "mysql":
			c.SQL.Port = 3306
		}
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return ErrInvalidConfig.GenWithStackByArgs(fmt.Sprintf("concurrency must be >= 1, got %d", c.Concurrency))
	}
	if c.Hold.Duration < 0 {
		return ErrInvalidConfig.GenWithStackByArgs(fmt.Sprintf("hold must be >= 0, got %s", c.Hold))
	}
	if c.BarWidth < 1 {
		return ErrInvalidConfig.GenWithStackByArgs(fmt.Sprintf("bar-width must be >= 1, got %d", c.BarWidth))
	}

	if _, err := c.BuildTarget(); err != nil {
		return ErrInvalidConfig.GenWithStackByArgs(fmt.Sprintf("target: %v", err))
	}

	switch c.Executor {
	case ExecutorDocker:
		if c.Docker.Binary == "" {
			return ErrInvalidConfig.GenWithStackByArgs("docker.binary is required")
		}
		if _, err := txn.ParseDialect(clientDialect(c.Docker.Client)); err != nil {
			return ErrInvalidConfig.GenWithStackByArgs(fmt.Sprintf("unsupported docker.client: %s", c.Docker.Client))
		}
	case ExecutorSQL:
		if _, err := txn.ParseDialect(c.SQL.Driver); err != nil {
			return ErrInvalidConfig.GenWithStackByArgs(fmt.Sprintf("unsupported sql.driver: %s", c.SQL.Driver))
		}
		if c.SQL.DSN == "" && c.SQL.Host == "" {
			return ErrInvalidConfig.GenWithStackByArgs("sql.host or sql.dsn is required")
		}
	case ExecutorMemory:
	default:
		return ErrInvalidConfig.GenWithStackByArgs(fmt.Sprintf("unsupported executor: %q", c.Executor))
	}
	return nil
}

// BuildTarget turns the target section into a txn.Target.
func (c *Config) BuildTarget() (txn.Target, error) {
	table, err := txn.ParseTableName(c.Target.Table, "")
	if err != nil {
		return txn.Target{}, err
	}
	if err := txn.ValidateIdent(c.Target.KeyColumn); err != nil {
		return txn.Target{}, errors.Annotate(err, "key-column")
	}
	if err := txn.ValidateIdent(c.Target.BalanceColumn); err != nil {
		return txn.Target{}, errors.Annotate(err, "balance-column")
	}
	return txn.Target{
		Table:         table,
		KeyColumn:     c.Target.KeyColumn,
		Key:           c.Target.Key,
		BalanceColumn: c.Target.BalanceColumn,
		Decrement:     c.Target.Decrement,
	}, nil
}

// Dialect is the SQL flavour spoken by the configured executor.
func (c *Config) Dialect() txn.Dialect {
	var name string
	switch c.Executor {
	case ExecutorDocker:
		name = clientDialect(c.Docker.Client)
	case ExecutorSQL:
		name = c.SQL.Driver
	}
	d, err := txn.ParseDialect(name)
	if err != nil {
		return txn.DialectPostgres
	}
	return d
}

// BuildScript assembles the transaction every unit runs.
func (c *Config) BuildScript() (txn.Script, error) {
	target, err := c.BuildTarget()
	if err != nil {
		return txn.Script{}, errors.Trace(err)
	}
	return txn.Script{
		Dialect: c.Dialect(),
		Target:  target,
		Hold:    c.Hold.Duration,
	}, nil
}

// Backend is a human readable name of what actually holds the row lock.
func (c *Config) Backend() string {
	if c.Executor == ExecutorMemory {
		return "the in-process row lock"
	}
	if c.Dialect() == txn.DialectMySQL {
		return "MySQL"
	}
	return "PostgreSQL"
}

// DataSourceName returns the connection string for the sql executor.
func (c SQLConfig) DataSourceName() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Driver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.Database)
	}
	userinfo := c.User
	if c.Password != "" {
		userinfo = c.User + ":" + c.Password
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=disable", userinfo, c.Host, c.Port, c.Database)
}

func clientDialect(client string) string {
	if client == "psql" {
		return string(txn.DialectPostgres)
	}
	return client
}
