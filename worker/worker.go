// ════════════════════════════════════════════════════════════════════════════
// PROCESSING WORKER
// ────────────────────────────────────────────────────────────────────────────
// Sole consumer of the hand-off ring. Each accepted probe becomes one latency
// sample: recv - send, signed, written to the binary log and folded into the
// shared counters.
//
// Polling:
//   - Drains up to Batch entries per pass
//   - Empty pass while the controller is hot: spin again immediately
//   - Empty pass after cooldown: cpu relax per miss, yield every SpinBudget
//
// Exit:
//   The worker leaves only once ingestion has closed (CloseIngest) and the
//   ring is empty, then flushes the log. Entries enqueued before the stop are
//   therefore always processed and persisted.
// ════════════════════════════════════════════════════════════════════════════

package worker

import (
	"runtime"
	"time"

	"netlatlab/binlog"
	"netlatlab/constants"
	"netlatlab/control"
	"netlatlab/debug"
	"netlatlab/ring"
	"netlatlab/sched"
	"netlatlab/stats"
	"netlatlab/wire"
)

// Options tunes the worker.
type Options struct {
	Batch    int           // entries drained per pass
	CPU      int           // core to pin to; negative disables
	Priority int           // SCHED_FIFO priority; zero skips
	Delay    time.Duration // synthetic busy-wait per entry
}

// Worker turns queued entries into persisted latency samples.
type Worker struct {
	queue *ring.Queue[wire.Entry]
	log   *binlog.Logger
	stats *stats.Stats
	ctl   *control.Controller
	opts  Options
}

// New builds a worker. q may be nil when the worker is only used through
// Process (single-thread mode).
func New(q *ring.Queue[wire.Entry], log *binlog.Logger, st *stats.Stats, ctl *control.Controller, opts Options) *Worker {
	if opts.Batch < 1 {
		opts.Batch = constants.DefaultWorkerBatch
	}
	return &Worker{queue: q, log: log, stats: st, ctl: ctl, opts: opts}
}

// Process handles one entry: optional synthetic delay, magic check, latency,
// persistence, counters. A bad magic is counted as a drop and never logged.
func (w *Worker) Process(e *wire.Entry) {
	if w.opts.Delay > 0 {
		sched.SpinFor(w.opts.Delay)
	}
	if !e.Valid() {
		w.stats.RejectBadMagic()
		return
	}
	lat := wire.Latency(e.SendTimestampNs, e.ReceiveNs)
	w.log.Log(binlog.Entry{
		Sequence:  e.Sequence,
		SendNs:    e.SendTimestampNs,
		ReceiveNs: e.ReceiveNs,
		LatencyNs: lat,
	})
	w.stats.RecordLatency(lat)
}

// Drain processes up to max queued entries in FIFO order and returns how
// many it took.
func (w *Worker) Drain(max int) int {
	n := 0
	for n < max {
		e, ok := w.queue.Front()
		if !ok {
			break
		}
		w.Process(e)
		w.queue.Pop()
		n++
	}
	return n
}

// Start runs the worker on a new goroutine. The returned channel is closed
// after the final flush.
func (w *Worker) Start() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run()
	}()
	return done
}

// Run consumes until ingestion is closed and the ring is empty. It locks the
// calling goroutine to its thread and applies the configured placement.
func (w *Worker) Run() {
	pinErr, prioErr := sched.Place(w.opts.CPU, w.opts.Priority)
	if pinErr != nil {
		debug.DropWarning("WORKER", "core pinning failed", "cpu", w.opts.CPU, "error", pinErr)
	}
	if prioErr != nil {
		debug.DropWarning("WORKER", "realtime priority unavailable", "priority", w.opts.Priority, "error", prioErr)
	}

	var miss int
	for {
		if w.Drain(w.opts.Batch) > 0 {
			miss = 0
			continue
		}

		// CloseIngest happens after the producer's last Commit, so once it
		// is visible a final sweep sees everything.
		if w.ctl.IngestClosed() {
			for w.Drain(w.opts.Batch) > 0 {
			}
			break
		}

		w.ctl.PollCooldown()
		if w.ctl.Hot() {
			continue
		}
		sched.Relax()
		if miss++; miss >= constants.SpinBudget {
			miss = 0
			runtime.Gosched()
		}
	}

	tail := w.log.Buffered()
	w.log.Flush()
	debug.DropDebug("WORKER", "drained", "processed", w.stats.Processed(), "final_flush_records", tail)
}
