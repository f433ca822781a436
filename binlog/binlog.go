// binlog.go — Buffered binary latency log
//
// Records are fixed 28-byte rows in host byte order with no framing:
//
//	sequence u32 | send_ns u64 | receive_ns u64 | latency_ns i64
//
// The file is a local artifact read back by export on the same machine, so
// native order is kept to avoid a swap per record on the worker.
//
// The Logger accumulates records in one preallocated buffer and issues a
// single Write when it fills. A failed or short write is reported and the
// unwritten part is discarded: the worker never waits on the disk twice.

package binlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"netlatlab/constants"
	"netlatlab/debug"
)

// EntrySize is the persisted record length.
const EntrySize = constants.LogEntrySize

// DefaultCapacity is how many records fit in the default buffer budget.
const DefaultCapacity = constants.LoggerBufferBytes / EntrySize

// ErrTruncatedLog marks a log whose length is not a multiple of EntrySize.
var ErrTruncatedLog = errors.New("binlog: truncated record")

// Entry is one persisted latency sample.
type Entry struct {
	Sequence  uint32
	SendNs    uint64
	ReceiveNs uint64
	LatencyNs int64
}

// PutBytes writes e into b (at least EntrySize bytes) in host order.
func (e *Entry) PutBytes(b []byte) {
	_ = b[EntrySize-1]
	binary.NativeEndian.PutUint32(b[0:4], e.Sequence)
	binary.NativeEndian.PutUint64(b[4:12], e.SendNs)
	binary.NativeEndian.PutUint64(b[12:20], e.ReceiveNs)
	binary.NativeEndian.PutUint64(b[20:28], uint64(e.LatencyNs))
}

// ParseEntry decodes a record previously written by PutBytes.
func ParseEntry(b []byte) Entry {
	_ = b[EntrySize-1]
	return Entry{
		Sequence:  binary.NativeEndian.Uint32(b[0:4]),
		SendNs:    binary.NativeEndian.Uint64(b[4:12]),
		ReceiveNs: binary.NativeEndian.Uint64(b[12:20]),
		LatencyNs: int64(binary.NativeEndian.Uint64(b[20:28])),
	}
}

// ============================================================================
// LOGGER
// ============================================================================

// Logger buffers entries and writes them in bulk. Log, Flush and Close must
// be called from a single goroutine (the worker). The write counters may be
// read from anywhere.
type Logger struct {
	w      io.Writer
	closer io.Closer
	buf    []byte
	n      int

	writes       atomic.Uint64
	bytesWritten atomic.Uint64
	writeErrors  atomic.Uint64
	logged       atomic.Uint64
}

// NewLogger buffers up to capacity records before each write to w. A
// capacity below 1 selects DefaultCapacity.
func NewLogger(w io.Writer, capacity int) *Logger {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	l := &Logger{
		w:   w,
		buf: make([]byte, capacity*EntrySize),
	}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}
	return l
}

// Create opens path for writing (truncating it and creating parent
// directories) and returns a Logger that owns the file.
func Create(path string, capacity int) (*Logger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("binlog: create directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("binlog: open %s: %w", path, err)
	}
	return NewLogger(f, capacity), nil
}

// Log appends e, writing the whole buffer out when it becomes full.
func (l *Logger) Log(e Entry) {
	e.PutBytes(l.buf[l.n : l.n+EntrySize])
	l.n += EntrySize
	l.logged.Add(1)
	if l.n == len(l.buf) {
		l.Flush()
	}
}

// Flush writes any buffered records in one call and clears the buffer,
// whether or not the write succeeded.
func (l *Logger) Flush() {
	if l.n == 0 {
		return
	}
	pending := l.n
	l.n = 0

	written, err := l.w.Write(l.buf[:pending])
	l.writes.Add(1)
	if written > 0 {
		l.bytesWritten.Add(uint64(written))
	}
	if err != nil || written < pending {
		l.writeErrors.Add(1)
		debug.DropWarning("FLUSH", "latency log write incomplete, records lost",
			"wanted", pending, "written", written, "error", err)
	}
}

// Close flushes and closes the underlying writer if it is an io.Closer.
func (l *Logger) Close() error {
	l.Flush()
	if l.closer == nil {
		return nil
	}
	if err := l.closer.Close(); err != nil {
		return fmt.Errorf("binlog: close: %w", err)
	}
	return nil
}

// Capacity is the number of records buffered per write.
func (l *Logger) Capacity() int { return len(l.buf) / EntrySize }

// Buffered is the number of records waiting for the next write.
func (l *Logger) Buffered() int { return l.n / EntrySize }

func (l *Logger) Writes() uint64       { return l.writes.Load() }
func (l *Logger) BytesWritten() uint64 { return l.bytesWritten.Load() }
func (l *Logger) WriteErrors() uint64  { return l.writeErrors.Load() }
func (l *Logger) Logged() uint64       { return l.logged.Load() }
