// ingest.go — Socket ingestion loop
//
// The ingestion loop is the only producer of the hand-off ring. It runs on
// its own locked, pinned OS thread and does as little as possible per
// datagram: stamp arrival, decode the header, reject what is unusable and
// move the rest into ring storage. Nothing here waits except the socket read,
// and that is bounded by a deadline so the stop flag is polled at least once
// per Timeout.
//
// Two receive modes:
//   single   one read syscall per datagram
//   batched  ipv4.PacketConn.ReadBatch, recvmmsg on Linux, up to BatchSize
//            datagrams per syscall sharing one arrival stamp
//
// Per datagram accounting (every datagram ends in exactly one bucket):
//   short header -> Malformed
//   wrong magic  -> BadMagic
//   ring full    -> QueueFull
//   otherwise    -> enqueued (Processed later by the worker)

package ingest

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"

	"netlatlab/constants"
	"netlatlab/control"
	"netlatlab/debug"
	"netlatlab/ring"
	"netlatlab/sched"
	"netlatlab/stats"
	"netlatlab/wire"
)

// Options tunes one ingestion loop.
type Options struct {
	// BatchSize is the datagrams read per syscall. 1 selects single mode.
	// Values above constants.MaxBatch are clamped.
	BatchSize int
	// Timeout bounds each receive so the stop flag gets polled.
	Timeout time.Duration
	// MaxPackets stops the pipeline once this many datagrams were received.
	// Zero means unlimited.
	MaxPackets uint64
	// CPU pins the loop's thread; negative disables pinning.
	CPU int
	// Priority is the SCHED_FIFO priority requested; zero skips the request.
	Priority int
}

// Ingester owns the socket side of a pipeline. Run must be called from
// exactly one goroutine.
type Ingester struct {
	conn  *net.UDPConn
	pc    *ipv4.PacketConn
	queue *ring.Queue[wire.Entry]
	sink  func(*wire.Entry)
	stats *stats.Stats
	ctl   *control.Controller
	opts  Options

	msgs    []ipv4.Message
	single  []byte
	scratch wire.Entry
}

// New returns an ingester that hands accepted probes to q.
func New(conn *net.UDPConn, q *ring.Queue[wire.Entry], st *stats.Stats, ctl *control.Controller, opts Options) *Ingester {
	in := newIngester(conn, st, ctl, opts)
	in.queue = q
	return in
}

// NewInline returns an ingester that calls sink for every accepted probe on
// the receiving thread instead of queueing it. The entry pointer is only
// valid during the call.
func NewInline(conn *net.UDPConn, sink func(*wire.Entry), st *stats.Stats, ctl *control.Controller, opts Options) *Ingester {
	in := newIngester(conn, st, ctl, opts)
	in.sink = sink
	return in
}

func newIngester(conn *net.UDPConn, st *stats.Stats, ctl *control.Controller, opts Options) *Ingester {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.BatchSize > constants.MaxBatch {
		debug.DropWarning("INGEST", "batch size clamped",
			"requested", opts.BatchSize, "max", constants.MaxBatch)
		opts.BatchSize = constants.MaxBatch
	}
	if opts.Timeout <= 0 {
		opts.Timeout = constants.ReceiveTimeout
	}

	in := &Ingester{
		conn:   conn,
		stats:  st,
		ctl:    ctl,
		opts:   opts,
		single: make([]byte, constants.MaxDatagram),
	}
	if opts.BatchSize > 1 {
		in.pc = ipv4.NewPacketConn(conn)
		in.msgs = make([]ipv4.Message, constants.MaxBatch)
		for i := range in.msgs {
			in.msgs[i].Buffers = [][]byte{make([]byte, constants.MaxDatagram)}
		}
	}
	return in
}

// BatchSize is the effective per-syscall bound after clamping.
func (in *Ingester) BatchSize() int { return in.opts.BatchSize }

// Run places the calling goroutine on its configured core and receives until
// the controller stops. A nil return is an orderly stop. Any other error is
// an unexpected socket failure. Either way the controller is shut down when
// Run returns. The goroutine stays locked to its thread.
func (in *Ingester) Run() error {
	pinErr, prioErr := sched.Place(in.opts.CPU, in.opts.Priority)
	if pinErr != nil {
		debug.DropWarning("INGEST", "core pinning failed", "cpu", in.opts.CPU, "error", pinErr)
	}
	if prioErr != nil {
		debug.DropWarning("INGEST", "realtime priority unavailable", "priority", in.opts.Priority, "error", prioErr)
	}
	debug.DropDebug("INGEST", "loop started", "batch", in.opts.BatchSize, "cpu", in.opts.CPU)

	var err error
	if in.opts.BatchSize == 1 {
		err = in.runSingle()
	} else {
		err = in.runBatched()
	}
	if err != nil {
		debug.DropError("INGEST", err)
	}
	in.ctl.Shutdown()
	return err
}

func (in *Ingester) runSingle() error {
	for !in.ctl.Stopping() {
		_ = in.conn.SetReadDeadline(time.Now().Add(in.opts.Timeout))
		n, err := in.conn.Read(in.single)
		rx := uint64(time.Now().UnixNano())
		if err != nil {
			if done, ferr := classify(err); done {
				return ferr
			}
			continue
		}

		in.ctl.SignalActivity()
		in.stats.AddReceived(1)
		in.accept(in.single[:n], rx)
		in.checkLimit()
	}
	return nil
}

func (in *Ingester) runBatched() error {
	msgs := in.msgs[:in.opts.BatchSize]
	for !in.ctl.Stopping() {
		_ = in.conn.SetReadDeadline(time.Now().Add(in.opts.Timeout))
		n, err := in.pc.ReadBatch(msgs, 0)
		rx := uint64(time.Now().UnixNano())
		if err != nil {
			if done, ferr := classify(err); done {
				return ferr
			}
			continue
		}
		if n == 0 {
			continue
		}

		in.ctl.SignalActivity()
		in.stats.AddReceived(uint64(n))
		for i := 0; i < n; i++ {
			in.accept(msgs[i].Buffers[0][:msgs[i].N], rx)
		}
		in.checkLimit()
	}
	return nil
}

// accept decodes one datagram and either hands it on or counts why not.
func (in *Ingester) accept(b []byte, rx uint64) {
	e := &in.scratch
	if err := wire.DecodeInto(&e.Header, b); err != nil {
		in.stats.DropMalformed()
		return
	}
	if !e.Valid() {
		in.stats.DropBadMagic()
		return
	}
	e.ReceiveNs = rx

	if in.sink != nil {
		in.sink(e)
		return
	}
	slot, ok := in.queue.TryAlloc()
	if !ok {
		in.stats.DropQueueFull()
		return
	}
	*slot = *e
	in.queue.Commit()
}

func (in *Ingester) checkLimit() {
	if in.opts.MaxPackets > 0 && in.stats.Received() >= in.opts.MaxPackets {
		in.ctl.Shutdown()
	}
}

// classify sorts a receive error. done reports whether the loop must exit;
// err is nil for an orderly exit (socket closed underneath us).
func classify(err error) (done bool, ferr error) {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return false, nil
	case errors.Is(err, syscall.EINTR), errors.Is(err, syscall.EAGAIN):
		return false, nil
	case errors.Is(err, net.ErrClosed):
		return true, nil
	}
	return true, fmt.Errorf("ingest: receive: %w", err)
}
