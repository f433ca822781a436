package main

import (
	"context"
	"errors"

	"netlatlab/debug"
	"netlatlab/export"
	"netlatlab/runstore"
)

// report logs the final counters and persists them where configured. Every
// sink is attempted; failures are joined.
func report(ctx context.Context, summaryPath string, store *runstore.Store, r runstore.Run) error {
	s := r.Stats
	debug.DropMessage("STATS", "capture finished",
		"run_id", r.ID,
		"elapsed", r.EndedAt.Sub(r.StartedAt),
		"received", s.Received,
		"processed", s.Processed,
		"dropped", s.Dropped,
		"malformed", s.Malformed,
		"bad_magic", s.BadMagic,
		"queue_full", s.QueueFull,
		"negative_latency", s.NegativeLatency,
		"mean_latency_ns", s.MeanLatencyNs,
		"min_latency_ns", s.MinLatencyNs,
		"max_latency_ns", s.MaxLatencyNs)
	if !s.Balanced() {
		debug.DropWarning("STATS", "counters do not balance",
			"received", s.Received, "processed", s.Processed, "dropped", s.Dropped)
	}

	var errs []error
	if summaryPath != "" {
		if err := export.WriteJSONFile(summaryPath, s); err != nil {
			errs = append(errs, err)
		} else {
			debug.DropMessage("STATS", "summary written", "path", summaryPath)
		}
	}
	if store != nil {
		if err := store.Record(ctx, r); err != nil {
			errs = append(errs, err)
		} else {
			debug.DropDebug("STATS", "run recorded", "run_id", r.ID)
		}
	}
	return errors.Join(errs...)
}

// exitError decides what a finished capture returns to main. Only the socket
// failure that ended capture is fatal; post-capture close and report errors
// are logged, the run itself completed.
func exitError(runErr, closeErr, reportErr error) error {
	if closeErr != nil {
		debug.DropWarning("SHUTDOWN", "latency log close failed", "error", closeErr)
	}
	if reportErr != nil {
		debug.DropWarning("STATS", "report incomplete", "error", reportErr)
	}
	return runErr
}
