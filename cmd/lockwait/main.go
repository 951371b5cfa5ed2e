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

package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"lockwait/pkg/config"
	"lockwait/pkg/executor"
	"lockwait/pkg/metrics"
	"lockwait/pkg/report"
	"lockwait/pkg/workload"
)

const (
	ExitCodeExecuteFailed      = 1
	ExitCodeInvalidConfig      = 2
	ExitCodeDecodeConfigFailed = 3
)

const (
	FlagConfig      = "config"
	FlagConcurrency = "concurrency"
	FlagHold        = "hold"
	FlagBarWidth    = "bar-width"
	FlagExecutor    = "executor"
	FlagLogLevel    = "log-level"
	FlagMetricsAddr = "metrics-addr"
)

// ExitError carries the process exit code for err.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeFromError extracts the code of the first ExitError in the chain.
func exitCodeFromError(err error, fallback int) int {
	var ee *ExitError
	if stderrors.As(err, &ee) {
		return ee.Code
	}
	return fallback
}

type options struct {
	configPath  string
	concurrency int
	hold        time.Duration
	barWidth    int
	executor    string
	logLevel    string
	metricsAddr string
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFromError(err, ExitCodeExecuteFailed))
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "lockwait",
		Short: "Show how concurrent transactions queue on a single row lock",
		Long: "lockwait starts many identical transactions at once, each locking the same row, " +
			"holding it for a while and decrementing it, then charts how long every transaction waited.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, opts)
			if err != nil {
				return err
			}
			if err := initLogger(cfg, cmd.ErrOrStderr()); err != nil {
				return &ExitError{Code: ExitCodeInvalidConfig, Err: err}
			}
			out := cmd.OutOrStdout()
			colored := out == io.Writer(os.Stdout) && !color.NoColor
			return run(context.Background(), cfg, out, colored)
		},
	}

	defaults := config.NewDefaultConfig()
	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, FlagConfig, "c", "", "configuration file path")
	flags.IntVar(&opts.concurrency, FlagConcurrency, defaults.Concurrency, "number of concurrent transactions")
	flags.DurationVar(&opts.hold, FlagHold, defaults.Hold.Duration, "how long each transaction holds the row lock")
	flags.IntVar(&opts.barWidth, FlagBarWidth, defaults.BarWidth, "bar length of the slowest transaction")
	flags.StringVar(&opts.executor, FlagExecutor, defaults.Executor, "executor to use: docker, sql or memory")
	flags.StringVar(&opts.logLevel, FlagLogLevel, defaults.LogLevel, "log level")
	flags.StringVar(&opts.metricsAddr, FlagMetricsAddr, "", "serve prometheus metrics on this address during the run")
	return cmd
}

// buildConfig loads the config file, if any, and applies the flags that were
// set explicitly on top of it.
func buildConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			if config.ErrInvalidConfig.Equal(err) {
				return nil, &ExitError{Code: ExitCodeInvalidConfig, Err: err}
			}
			return nil, &ExitError{Code: ExitCodeDecodeConfigFailed, Err: err}
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed(FlagConcurrency) {
		cfg.Concurrency = opts.concurrency
	}
	if flags.Changed(FlagHold) {
		cfg.Hold.Duration = opts.hold
	}
	if flags.Changed(FlagBarWidth) {
		cfg.BarWidth = opts.barWidth
	}
	if flags.Changed(FlagExecutor) {
		cfg.Executor = opts.executor
	}
	if flags.Changed(FlagLogLevel) {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed(FlagMetricsAddr) {
		cfg.MetricsAddr = opts.metricsAddr
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, &ExitError{Code: ExitCodeInvalidConfig, Err: err}
	}
	return cfg, nil
}

// initLogger writes logs to the configured file, or to errOut when there is
// none. Stdout only carries the report.
func initLogger(cfg *config.Config, errOut io.Writer) error {
	logCfg := &log.Config{
		Level: cfg.LogLevel,
		File:  log.FileLogConfig{Filename: cfg.LogFile},
	}
	var (
		logger *zap.Logger
		props  *log.ZapProperties
		err    error
	)
	if cfg.LogFile != "" {
		logger, props, err = log.InitLogger(logCfg)
	} else {
		sink := zapcore.Lock(zapcore.AddSync(errOut))
		logger, props, err = log.InitLoggerWithWriteSyncer(logCfg, sink, sink)
	}
	if err != nil {
		return errors.Annotate(err, "init logger failed")
	}
	log.ReplaceGlobals(logger, props)
	return nil
}

func run(ctx context.Context, cfg *config.Config, out io.Writer, colored bool) error {
	script, err := cfg.BuildScript()
	if err != nil {
		return &ExitError{Code: ExitCodeInvalidConfig, Err: err}
	}

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Serve(cfg.MetricsAddr)
		if err != nil {
			return &ExitError{Code: ExitCodeExecuteFailed, Err: err}
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Close(closeCtx); err != nil {
				log.Warn("close metrics server failed", zap.Error(err))
			}
		}()
	}

	exec, err := executor.New(cfg)
	if err != nil {
		if config.ErrInvalidConfig.Equal(err) {
			return &ExitError{Code: ExitCodeInvalidConfig, Err: err}
		}
		return &ExitError{Code: ExitCodeExecuteFailed, Err: err}
	}
	defer func() {
		if err := exec.Close(); err != nil {
			log.Warn("close executor failed", zap.String("executor", cfg.Executor), zap.Error(err))
		}
	}()

	printf := func(format string, args ...any) error {
		if _, err := fmt.Fprintf(out, format, args...); err != nil {
			return &ExitError{Code: ExitCodeExecuteFailed, Err: errors.Annotate(err, "write report failed")}
		}
		return nil
	}

	if err := printf("Starting %d concurrent transactions competing for the SAME row lock...\n", cfg.Concurrency); err != nil {
		return err
	}
	results := workload.NewRunner(cfg.Concurrency, script, exec).Run(ctx)

	if err := printf("\nAll %d transactions completed.\n", len(results)); err != nil {
		return err
	}
	if err := printf("Because they all updated the SAME row, %s forced them to wait in a queue (Row-level Locking).\n",
		cfg.Backend()); err != nil {
		return err
	}
	if err := printf("\n--- Concurrency Lock Wait Times Graph ---\n"); err != nil {
		return err
	}

	renderer := &report.Renderer{Width: cfg.BarWidth, Color: colored}
	if err := renderer.Render(out, results); err != nil {
		return &ExitError{Code: ExitCodeExecuteFailed, Err: errors.Annotate(err, "write report failed")}
	}
	return nil
}
