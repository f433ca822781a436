// stats.go — Process-lifetime pipeline counters
//
// Counters are grouped by writer: ingestion bumps the receive/drop group,
// the worker bumps the latency group. The groups sit on separate cache lines
// so the two pinned threads never share a written line. Every update is a
// single atomic add; there is no ordering between different counters, only
// eventually consistent totals, which is all a shutdown snapshot needs.

package stats

import "sync/atomic"

// Stats is shared by pointer between the ingestion loop, the worker and any
// reader (metrics, shutdown report). The zero value is ready to use.
type Stats struct {
	_ [64]byte

	// written by ingestion
	received  atomic.Uint64
	dropped   atomic.Uint64
	malformed atomic.Uint64
	badMagic  atomic.Uint64
	queueFull atomic.Uint64
	_         [24]byte

	// written by the worker
	processed    atomic.Uint64
	accumulated  atomic.Int64
	negative     atomic.Uint64
	rejected     atomic.Uint64
	minLatency   atomic.Int64
	maxLatency   atomic.Int64
	latencyValid atomic.Bool
	_            [8]byte
}

// New returns a zeroed Stats.
func New() *Stats {
	return &Stats{}
}

// ============================================================================
// INGESTION SIDE
// ============================================================================

// AddReceived counts n datagrams taken off the socket.
func (s *Stats) AddReceived(n uint64) {
	s.received.Add(n)
}

// DropMalformed counts a datagram shorter than a probe header.
func (s *Stats) DropMalformed() {
	s.malformed.Add(1)
	s.dropped.Add(1)
}

// DropBadMagic counts a probe whose sentinel did not match at ingestion.
func (s *Stats) DropBadMagic() {
	s.badMagic.Add(1)
	s.dropped.Add(1)
}

// DropQueueFull counts a probe discarded because the hand-off ring was full.
func (s *Stats) DropQueueFull() {
	s.queueFull.Add(1)
	s.dropped.Add(1)
}

// ============================================================================
// WORKER SIDE
// ============================================================================

// RejectBadMagic is the worker's DropBadMagic. It lands in the worker group;
// Snapshot folds it into BadMagic and Dropped.
func (s *Stats) RejectBadMagic() {
	s.rejected.Add(1)
}

// RecordLatency counts one processed probe with the given signed latency.
// Min and max have a single writer, so load-then-store is sufficient.
func (s *Stats) RecordLatency(ns int64) {
	s.processed.Add(1)
	s.accumulated.Add(ns)
	if ns < 0 {
		s.negative.Add(1)
	}
	if !s.latencyValid.Load() {
		s.minLatency.Store(ns)
		s.maxLatency.Store(ns)
		s.latencyValid.Store(true)
		return
	}
	if ns < s.minLatency.Load() {
		s.minLatency.Store(ns)
	}
	if ns > s.maxLatency.Load() {
		s.maxLatency.Store(ns)
	}
}

// ============================================================================
// READERS
// ============================================================================

func (s *Stats) Received() uint64  { return s.received.Load() }
func (s *Stats) Processed() uint64 { return s.processed.Load() }
func (s *Stats) Dropped() uint64   { return s.dropped.Load() + s.rejected.Load() }

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Received             uint64  `json:"received"`
	Processed            uint64  `json:"processed"`
	Dropped              uint64  `json:"dropped"`
	Malformed            uint64  `json:"malformed"`
	BadMagic             uint64  `json:"bad_magic"`
	QueueFull            uint64  `json:"queue_full"`
	AccumulatedLatencyNs int64   `json:"accumulated_latency_ns"`
	NegativeLatency      uint64  `json:"negative_latency"`
	MinLatencyNs         int64   `json:"min_latency_ns"`
	MaxLatencyNs         int64   `json:"max_latency_ns"`
	MeanLatencyNs        float64 `json:"mean_latency_ns"`
}

// Snapshot reads all counters. Taken while the pipeline runs, the fields
// may be mutually inconsistent by a few in-flight probes.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		Received:             s.received.Load(),
		Processed:            s.processed.Load(),
		Dropped:              s.Dropped(),
		Malformed:            s.malformed.Load(),
		BadMagic:             s.badMagic.Load() + s.rejected.Load(),
		QueueFull:            s.queueFull.Load(),
		AccumulatedLatencyNs: s.accumulated.Load(),
		NegativeLatency:      s.negative.Load(),
	}
	if s.latencyValid.Load() {
		snap.MinLatencyNs = s.minLatency.Load()
		snap.MaxLatencyNs = s.maxLatency.Load()
	}
	if snap.Processed > 0 {
		snap.MeanLatencyNs = float64(snap.AccumulatedLatencyNs) / float64(snap.Processed)
	}
	return snap
}

// Balanced reports whether every received datagram is accounted for as
// either processed or dropped. It only holds once the queue is drained.
func (s Snapshot) Balanced() bool {
	return s.Processed+s.Dropped == s.Received
}
