// ════════════════════════════════════════════════════════════════════════════════════════════════
// One-Way Latency Receiver - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: netlatlab
// Component: Receiver Orchestration
//
// Description:
//   Receives timestamped UDP probes and records one sample per probe:
//   receive wall clock minus send wall clock, in nanoseconds.
//
// Phases:
//   - Phase 0: Configuration (defaults, YAML file, env, flags) and logging
//   - Phase 1: Setup - run ledger, socket bind, log file, metrics endpoint
//   - Phase 2: Memory consolidation before capture
//   - Phase 3: Capture until signal, max packets or socket failure
//   - Phase 4: Report - final counters, summary JSON, ledger row
//
// Exit codes: 0 on normal shutdown, 1 on any setup failure or socket error.
// A failed log close or report sink after capture is a warning only.
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	rtdebug "runtime/debug"
	"time"

	"netlatlab/binlog"
	"netlatlab/debug"
	"netlatlab/ingest"
	"netlatlab/metrics"
	"netlatlab/pipeline"
	"netlatlab/runstore"
)

const (
	Version = "0.1.0"
	appName = "netlatlab"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		debug.DropError("FATAL", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	// PHASE 0: configuration and logging
	cli, cfg, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	if cli.ShowVersion {
		fmt.Println(appName, Version)
		return nil
	}

	debug.SetLogger(debug.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat).With(
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	))

	for _, note := range cfg.Normalize() {
		debug.DropWarning("CONFIG", note)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cli.Validate {
		debug.DropMessage("CONFIG", "configuration is valid")
		return nil
	}

	// PHASE 1: setup; every failure here exits 1 before capture starts
	ctx := context.Background()

	var store *runstore.Store
	if cfg.RunStorePath != "" {
		if store, err = runstore.Open(cfg.RunStorePath); err != nil {
			return err
		}
		defer store.Close()
	}
	record := runstore.NewRun(cfg)

	conn, err := ingest.Listen(ctx, cfg.ListenAddr(), cfg.RecvBufferSize)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger, err := binlog.Create(cfg.OutputPath, cfg.LoggerRecords)
	if err != nil {
		return err
	}

	p := pipeline.New(cfg, conn, logger)

	if cfg.MetricsAddr != "" {
		reg, err := metrics.NewRegistry(p)
		if err != nil {
			logger.Close()
			return fmt.Errorf("metrics: register: %w", err)
		}
		srv, err := metrics.Start(cfg.MetricsAddr, reg)
		if err != nil {
			logger.Close()
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				debug.DropWarning("METRICS", "shutdown", "error", err)
			}
		}()
	}

	detach := p.Controller().NotifySignals(ctx)
	defer detach()

	debug.DropMessage("READY", "receiver initialized",
		"run_id", record.ID,
		"listen", conn.LocalAddr().String(),
		"output", cfg.OutputPath)

	// PHASE 2: settle the heap so capture starts from a clean state
	runtime.GC()
	rtdebug.FreeOSMemory()

	// PHASE 3: capture
	snap, runErr := p.Run(ctx)
	closeErr := logger.Close()

	// PHASE 4: report
	record.Stats = snap
	record.EndedAt = time.Now()
	if runErr != nil {
		record.Err = runErr.Error()
	}
	reportErr := report(ctx, cfg.SummaryPath, store, record)

	return exitError(runErr, closeErr, reportErr)
}
