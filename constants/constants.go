// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — Probe wire constants & receiver tunables
//
// Purpose:
//   - Defines the probe protocol sentinel and the fixed record sizes.
//   - Holds the default sizing for the hand-off ring, batch buffers and the
//     persistence buffer.
//
// Notes:
//   - Anything that is an operator choice (ports, cores, batch bounds) only
//     has its DEFAULT here; the live value comes from config.Config.
//   - Capacities are powers of two so index wrap stays a mask.
//
// ⚠️ No runtime logic here, all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

import "time"

// ───────────────────────────── Probe protocol ─────────────────────────────

const (
	// ProbeMagic is the sentinel carried in the first two bytes of every probe.
	ProbeMagic uint16 = 0x6584

	// ProbeVersion is the only header revision emitted by the sender.
	ProbeVersion uint8 = 1

	// MsgTypeData marks an ordinary latency probe.
	MsgTypeData uint8 = 0

	// HeaderSize is the fixed on-wire probe header length in bytes.
	HeaderSize = 16

	// LogEntrySize is the fixed persisted record length in bytes.
	LogEntrySize = 28
)

// ───────────────────────────── Receiver defaults ──────────────────────────

const (
	// DefaultPort matches the sender's default destination port.
	DefaultPort = 49200

	// DefaultQueueCapacity is the hand-off ring size (N-1 usable slots).
	DefaultQueueCapacity = 4096

	// MaxBatch bounds a single batched receive call. Batch buffers are
	// preallocated to this size once, whatever the configured batch is.
	MaxBatch = 1024

	// DefaultBatch is the default per-call receive bound.
	DefaultBatch = 32

	// DefaultWorkerBatch is how many entries the worker drains per pass.
	DefaultWorkerBatch = 32

	// MaxDatagram is the per-slot receive buffer. Probes may carry padding
	// after the header; anything past the header is ignored.
	MaxDatagram = 2048

	// ReceiveTimeout bounds every socket receive so loops can observe stop.
	ReceiveTimeout = 100 * time.Millisecond

	// LoggerBufferBytes is the persistence buffer budget before a bulk write.
	LoggerBufferBytes = 64 << 10

	// DefaultIngestCPU and DefaultWorkerCPU are the default core assignments.
	DefaultIngestCPU = 3
	DefaultWorkerCPU = 2

	// RealtimePriority is the SCHED_FIFO priority requested by pinned loops.
	RealtimePriority = 90
)

// ───────────────────────────── Spin tuning ────────────────────────────────

const (
	// SpinBudget is the number of empty polls before a cold worker yields.
	SpinBudget = 256

	// HotCooldown is how long after the last datagram the worker stays in
	// hot spin.
	HotCooldown = 1 * time.Second
)

// ───────────────────────────── Sender defaults ────────────────────────────

const (
	DefaultRatePPS   = 1000
	DefaultDuration  = 10 * time.Second
	DefaultSenderCPU = 1

	// SleepThreshold is the remaining wait above which the sender sleeps
	// instead of spinning; SleepSlack is how early it wakes.
	SleepThreshold = time.Millisecond
	SleepSlack     = 200 * time.Microsecond
)
