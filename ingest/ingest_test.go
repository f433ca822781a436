package ingest

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netlatlab/constants"
	"netlatlab/control"
	"netlatlab/ring"
	"netlatlab/stats"
	"netlatlab/wire"
)

type harness struct {
	conn  *net.UDPConn
	tx    *net.UDPConn
	queue *ring.Queue[wire.Entry]
	stats *stats.Stats
	ctl   *control.Controller
}

func newHarness(t *testing.T, ringSize int) *harness {
	t.Helper()
	conn, err := Listen(context.Background(), "127.0.0.1:0", 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	tx, err := net.DialUDP("udp4", nil, conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Close() })

	return &harness{
		conn:  conn,
		tx:    tx,
		queue: ring.New[wire.Entry](ringSize),
		stats: stats.New(),
		ctl:   control.New(constants.HotCooldown),
	}
}

func (h *harness) send(t *testing.T, b []byte) {
	t.Helper()
	_, err := h.tx.Write(b)
	require.NoError(t, err)
}

func (h *harness) sendProbe(t *testing.T, seq uint32) {
	t.Helper()
	b := wire.Encode(wire.NewProbe(seq, uint64(time.Now().UnixNano())))
	h.send(t, b[:])
}

// start runs in on its own goroutine and returns a channel carrying Run's
// result.
func start(in *Ingester) <-chan error {
	done := make(chan error, 1)
	go func() { done <- in.Run() }()
	return done
}

func waitReceived(t *testing.T, st *stats.Stats, n uint64) {
	t.Helper()
	require.Eventually(t, func() bool { return st.Received() >= n },
		5*time.Second, time.Millisecond, "received %d of %d", st.Received(), n)
}

func stopAndWait(t *testing.T, ctl *control.Controller, done <-chan error) {
	t.Helper()
	ctl.Shutdown()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ingestion did not stop")
	}
}

func opts(batch int) Options {
	return Options{BatchSize: batch, Timeout: 10 * time.Millisecond, CPU: -1}
}

func TestIngestModes(t *testing.T) {
	for name, batch := range map[string]int{"single": 1, "batched": 16} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, 256)
			done := start(New(h.conn, h.queue, h.stats, h.ctl, opts(batch)))

			const probes = 50
			for i := 0; i < probes; i++ {
				h.sendProbe(t, uint32(i))
			}
			h.send(t, []byte{0x65, 0x84, 0x01})
			bad := wire.Encode(wire.Header{Magic: 0xBEEF, Sequence: 999})
			h.send(t, bad[:])

			waitReceived(t, h.stats, probes+2)
			stopAndWait(t, h.ctl, done)

			snap := h.stats.Snapshot()
			assert.Equal(t, uint64(probes+2), snap.Received)
			assert.Equal(t, uint64(1), snap.Malformed)
			assert.Equal(t, uint64(1), snap.BadMagic)
			assert.Equal(t, uint64(2), snap.Dropped)
			require.Equal(t, probes, h.queue.Len())

			for i := 0; i < probes; i++ {
				e, ok := h.queue.Front()
				require.True(t, ok)
				assert.Equal(t, uint32(i), e.Sequence, "loopback preserves order")
				assert.True(t, e.Valid())
				assert.NotZero(t, e.ReceiveNs)
				h.queue.Pop()
			}
		})
	}
}

// TestArrivalStamp brackets the receive stamp between the send and the
// moment the entry is observed.
func TestArrivalStamp(t *testing.T) {
	h := newHarness(t, 16)
	done := start(New(h.conn, h.queue, h.stats, h.ctl, opts(1)))

	before := uint64(time.Now().UnixNano())
	h.sendProbe(t, 1)
	waitReceived(t, h.stats, 1)
	after := uint64(time.Now().UnixNano())
	stopAndWait(t, h.ctl, done)

	e, ok := h.queue.Front()
	require.True(t, ok)
	assert.GreaterOrEqual(t, e.ReceiveNs, before)
	assert.LessOrEqual(t, e.ReceiveNs, after)
	assert.GreaterOrEqual(t, wire.Latency(e.SendTimestampNs, e.ReceiveNs), int64(0))
}

func TestQueueFullDrops(t *testing.T) {
	h := newHarness(t, 4) // 3 usable slots
	done := start(New(h.conn, h.queue, h.stats, h.ctl, opts(1)))

	for i := 0; i < 10; i++ {
		h.sendProbe(t, uint32(i))
	}
	waitReceived(t, h.stats, 10)
	stopAndWait(t, h.ctl, done)

	snap := h.stats.Snapshot()
	assert.Equal(t, uint64(7), snap.QueueFull)
	assert.Equal(t, uint64(7), snap.Dropped)
	assert.Equal(t, 3, h.queue.Len())
	assert.Equal(t, snap.Received, snap.Dropped+uint64(h.queue.Len()))
}

func TestInlineSink(t *testing.T) {
	h := newHarness(t, 2)
	var seqs []uint32
	sink := func(e *wire.Entry) { seqs = append(seqs, e.Sequence) }
	done := start(NewInline(h.conn, sink, h.stats, h.ctl, opts(1)))

	for i := 0; i < 5; i++ {
		h.sendProbe(t, uint32(i))
	}
	waitReceived(t, h.stats, 5)
	stopAndWait(t, h.ctl, done)

	assert.Equal(t, []uint32{0, 1, 2, 3, 4}, seqs)
	assert.Zero(t, h.queue.Len())
	assert.Zero(t, h.stats.Dropped())
}

func TestMaxPacketsStops(t *testing.T) {
	h := newHarness(t, 64)
	o := opts(1)
	o.MaxPackets = 5
	done := start(New(h.conn, h.queue, h.stats, h.ctl, o))

	for i := 0; i < 5; i++ {
		h.sendProbe(t, uint32(i))
	}
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("max packets did not stop ingestion")
	}
	assert.True(t, h.ctl.Stopping())
	assert.Equal(t, uint64(5), h.stats.Received())
}

// TestNothingEnqueuedAfterStop sends into the still-open socket once the loop
// has seen the stop flag; the datagrams must stay in the kernel buffer.
func TestNothingEnqueuedAfterStop(t *testing.T) {
	for name, batch := range map[string]int{"single": 1, "batched": 16} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, 64)
			o := opts(batch)
			done := start(New(h.conn, h.queue, h.stats, h.ctl, o))

			for i := 0; i < 5; i++ {
				h.sendProbe(t, uint32(i))
			}
			waitReceived(t, h.stats, 5)
			stopAndWait(t, h.ctl, done)

			received, depth := h.stats.Received(), h.queue.Len()
			require.Equal(t, uint64(5), received)
			require.Equal(t, 5, depth)

			for i := 5; i < 15; i++ {
				h.sendProbe(t, uint32(i))
			}
			time.Sleep(5 * o.Timeout)

			assert.Equal(t, received, h.stats.Received())
			assert.Equal(t, depth, h.queue.Len())
			assert.False(t, h.ctl.IngestClosed(), "only the pipeline closes ingestion")

			// the post-stop datagrams were delivered, just never consumed
			buf := make([]byte, constants.MaxDatagram)
			require.NoError(t, h.conn.SetReadDeadline(time.Now().Add(time.Second)))
			n, err := h.conn.Read(buf)
			require.NoError(t, err)
			hdr, err := wire.Decode(buf[:n])
			require.NoError(t, err)
			assert.Equal(t, uint32(5), hdr.Sequence)
		})
	}
}

func TestStopWithoutTraffic(t *testing.T) {
	h := newHarness(t, 16)
	done := start(New(h.conn, h.queue, h.stats, h.ctl, opts(8)))
	time.Sleep(30 * time.Millisecond)
	stopAndWait(t, h.ctl, done)
	assert.Zero(t, h.stats.Received())
	assert.False(t, h.ctl.Hot())
}

func TestClosedSocketIsOrderlyExit(t *testing.T) {
	h := newHarness(t, 16)
	done := start(New(h.conn, h.queue, h.stats, h.ctl, opts(1)))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, h.conn.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ingestion did not notice the closed socket")
	}
	assert.True(t, h.ctl.Stopping())
}

func TestBatchClamp(t *testing.T) {
	h := newHarness(t, 16)
	in := New(h.conn, h.queue, h.stats, h.ctl, Options{BatchSize: constants.MaxBatch * 4, CPU: -1})
	assert.Equal(t, constants.MaxBatch, in.BatchSize())
	in = New(h.conn, h.queue, h.stats, h.ctl, Options{BatchSize: 0, CPU: -1})
	assert.Equal(t, 1, in.BatchSize())
}

func TestListenRejectsInvalidAddress(t *testing.T) {
	_, err := Listen(context.Background(), "256.0.0.1:0", 0)
	require.Error(t, err)
}
