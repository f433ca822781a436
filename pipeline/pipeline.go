// pipeline.go — Receiver assembly
//
// A Pipeline wires one socket, one hand-off ring, one worker and one log
// together under a single Controller:
//
//	socket ─► ingest (calling goroutine) ─► ring ─► worker (own goroutine) ─► binlog
//	                    │                                  │
//	                    └──────────── stats ◄──────────────┘
//
// In single-thread mode there is no ring and no worker goroutine: ingestion
// calls the worker's Process inline, which is the baseline the two-thread
// layout is measured against.
//
// Nothing here is global. Two pipelines on two sockets can run in one
// process without interfering.

package pipeline

import (
	"context"
	"net"

	"netlatlab/binlog"
	"netlatlab/config"
	"netlatlab/constants"
	"netlatlab/control"
	"netlatlab/debug"
	"netlatlab/ingest"
	"netlatlab/ring"
	"netlatlab/stats"
	"netlatlab/wire"
	"netlatlab/worker"
)

// Pipeline is one receiver instance.
type Pipeline struct {
	cfg    config.Config
	conn   *net.UDPConn
	log    *binlog.Logger
	stats  *stats.Stats
	ctl    *control.Controller
	queue  *ring.Queue[wire.Entry]
	worker *worker.Worker
	ingest *ingest.Ingester
}

// New assembles a pipeline over an already bound socket and an open log.
// cfg should have passed Normalize and Validate. The caller keeps ownership
// of conn and log and closes them after Run returns.
func New(cfg config.Config, conn *net.UDPConn, log *binlog.Logger) *Pipeline {
	p := &Pipeline{
		cfg:   cfg,
		conn:  conn,
		log:   log,
		stats: stats.New(),
		ctl:   control.New(constants.HotCooldown),
	}

	wopts := worker.Options{
		Batch:    cfg.WorkerBatch,
		CPU:      cfg.WorkerCPU,
		Priority: cfg.RealtimePriority,
		Delay:    cfg.ProcessingDelay,
	}
	iopts := ingest.Options{
		BatchSize:  cfg.BatchSize,
		Timeout:    cfg.ReceiveTimeout,
		MaxPackets: cfg.MaxPackets,
		CPU:        cfg.IngestCPU,
		Priority:   cfg.RealtimePriority,
	}

	if cfg.SingleThread {
		p.worker = worker.New(nil, log, p.stats, p.ctl, wopts)
		p.ingest = ingest.NewInline(conn, p.worker.Process, p.stats, p.ctl, iopts)
		return p
	}
	p.queue = ring.New[wire.Entry](cfg.QueueCapacity)
	p.worker = worker.New(p.queue, log, p.stats, p.ctl, wopts)
	p.ingest = ingest.New(conn, p.queue, p.stats, p.ctl, iopts)
	return p
}

// Stats is the live counter set.
func (p *Pipeline) Stats() *stats.Stats { return p.stats }

// Controller exposes the lifecycle flags, e.g. for signal hookup.
func (p *Pipeline) Controller() *control.Controller { return p.ctl }

// QueueLen is the current ring depth, 0 in single-thread mode.
func (p *Pipeline) QueueLen() int {
	if p.queue == nil {
		return 0
	}
	return p.queue.Len()
}

// Logger is the persistence log the worker writes to.
func (p *Pipeline) Logger() *binlog.Logger { return p.log }

// Stop requests shutdown. Run returns once everything queued is persisted.
func (p *Pipeline) Stop() { p.ctl.Shutdown() }

// Run receives on the calling goroutine until Stop, ctx cancellation,
// MaxPackets or a socket failure, then waits for the worker to drain and the
// log to flush. The returned snapshot is final: Processed + Dropped equals
// Received. The error is non-nil only for an unexpected socket failure.
func (p *Pipeline) Run(ctx context.Context) (stats.Snapshot, error) {
	go func() {
		select {
		case <-ctx.Done():
			p.ctl.Shutdown()
		case <-p.ctl.Done():
		}
	}()

	mode := "two-thread"
	if p.cfg.SingleThread {
		mode = "single-thread"
	}
	debug.DropMessage("PIPELINE", "receiving",
		"addr", p.conn.LocalAddr().String(),
		"mode", mode,
		"batch", p.ingest.BatchSize(),
		"queue", p.cfg.QueueCapacity,
		"log_records", p.log.Capacity())

	if p.cfg.SingleThread {
		err := p.ingest.Run()
		p.log.Flush()
		return p.stats.Snapshot(), err
	}

	done := p.worker.Start()
	err := p.ingest.Run()
	p.ctl.CloseIngest()
	<-done
	return p.stats.Snapshot(), err
}
