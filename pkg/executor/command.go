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
	"os/exec"
	"strconv"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"lockwait/pkg/config"
	"lockwait/pkg/txn"
)

// CommandExecutor hands the script to a command line client, one process per
// transaction. Client output is discarded; only the exit status is reported.
type CommandExecutor struct {
	cfg config.DockerConfig
}

// NewCommandExecutor creates a CommandExecutor.
func NewCommandExecutor(cfg config.DockerConfig) *CommandExecutor {
	return &CommandExecutor{cfg: cfg}
}

// Execute runs the client and waits for it to exit.
func (e *CommandExecutor) Execute(ctx context.Context, script txn.Script) error {
	name, args := e.command(script)
	cmd := exec.CommandContext(ctx, name, args...)
	// nil Stdout/Stderr are connected to the null device.
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		log.Debug("database client exited with error",
			zap.String("binary", name),
			zap.String("container", e.cfg.Container),
			zap.Error(err))
		return errors.Annotatef(err, "run %s", name)
	}
	return nil
}

// Close is a no-op; every transaction owns its own process.
func (e *CommandExecutor) Close() error {
	return nil
}

// command builds the argv. With a container configured the client runs
// through `<binary> exec -i <container>`, otherwise the client is started
// directly.
func (e *CommandExecutor) command(script txn.Script) (string, []string) {
	clientArgs := e.clientArgs(script)
	if e.cfg.Container == "" {
		return e.cfg.Client, clientArgs
	}
	args := make([]string, 0, len(clientArgs)+4)
	args = append(args, "exec", "-i", e.cfg.Container, e.cfg.Client)
	return e.cfg.Binary, append(args, clientArgs...)
}

func (e *CommandExecutor) clientArgs(script txn.Script) []string {
	var args []string
	if script.Dialect == txn.DialectMySQL {
		if e.cfg.Host != "" {
			args = append(args, "-h", e.cfg.Host)
		}
		if e.cfg.Port != 0 {
			args = append(args, "-P", strconv.Itoa(e.cfg.Port))
		}
		args = append(args, "-u", e.cfg.User)
		if e.cfg.Database != "" {
			args = append(args, "-D", e.cfg.Database)
		}
		return append(args, "-e", script.Text())
	}

	if e.cfg.Host != "" {
		args = append(args, "-h", e.cfg.Host)
	}
	if e.cfg.Port != 0 {
		args = append(args, "-p", strconv.Itoa(e.cfg.Port))
	}
	args = append(args, "-U", e.cfg.User)
	if e.cfg.Database != "" {
		args = append(args, "-d", e.cfg.Database)
	}
	return append(args, "-c", script.Text())
}
