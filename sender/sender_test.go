package sender

import (
	"context"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netlatlab/wire"
)

// sink collects probes arriving on a loopback socket.
func sink(t *testing.T) (*net.UDPConn, func(n int, wait time.Duration) []wire.Header) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	require.NoError(t, conn.SetReadBuffer(4<<20))
	t.Cleanup(func() { _ = conn.Close() })

	collect := func(n int, wait time.Duration) []wire.Header {
		var out []wire.Header
		buf := make([]byte, 2048)
		deadline := time.Now().Add(wait)
		for len(out) < n {
			_ = conn.SetReadDeadline(deadline)
			m, err := conn.Read(buf)
			if err != nil {
				break
			}
			h, err := wire.Decode(buf[:m])
			require.NoError(t, err)
			out = append(out, h)
		}
		return out
	}
	return conn, collect
}

func testOptions(dest string) Options {
	o := DefaultOptions()
	o.Dest = dest
	o.CPU = -1
	return o
}

func TestCountSteady(t *testing.T) {
	conn, collect := sink(t)
	o := testOptions(conn.LocalAddr().String())
	o.RatePPS = 20000
	o.Duration = 0
	o.Count = 200

	s, err := Dial(context.Background(), o)
	require.NoError(t, err)
	defer s.Close()
	res := s.Run(context.Background())
	assert.Equal(t, uint64(200), res.Sent)
	assert.Zero(t, res.SendErrors)

	got := collect(200, 2*time.Second)
	require.Len(t, got, 200)
	for i, h := range got {
		assert.True(t, h.Valid())
		assert.Equal(t, uint32(i), h.Sequence)
		assert.NotZero(t, h.SendTimestampNs)
	}
}

// TestRatePacing checks the schedule: 100 probes at 2000 pps take about
// 50 ms, never much less.
func TestRatePacing(t *testing.T) {
	conn, _ := sink(t)
	o := testOptions(conn.LocalAddr().String())
	o.RatePPS = 2000
	o.Duration = 0
	o.Count = 100

	s, err := Dial(context.Background(), o)
	require.NoError(t, err)
	defer s.Close()
	res := s.Run(context.Background())
	assert.Equal(t, uint64(100), res.Sent)
	assert.GreaterOrEqual(t, res.Elapsed, 45*time.Millisecond)
}

func TestBurstMode(t *testing.T) {
	conn, collect := sink(t)
	o := testOptions(conn.LocalAddr().String())
	o.Mode = Burst
	o.Burst = 10
	o.RatePPS = 1000
	o.Duration = 0
	o.Count = 50
	o.Payload = 64

	s, err := Dial(context.Background(), o)
	require.NoError(t, err)
	defer s.Close()
	start := time.Now()
	res := s.Run(context.Background())
	assert.Equal(t, uint64(50), res.Sent)
	// 5 ticks, each advancing 10 ms
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)

	got := collect(50, 2*time.Second)
	require.Len(t, got, 50)
	assert.Equal(t, uint32(49), got[49].Sequence)
}

func TestDurationStops(t *testing.T) {
	conn, _ := sink(t)
	o := testOptions(conn.LocalAddr().String())
	o.RatePPS = 1000
	o.Duration = 40 * time.Millisecond

	s, err := Dial(context.Background(), o)
	require.NoError(t, err)
	defer s.Close()
	res := s.Run(context.Background())
	assert.InDelta(t, 40, float64(res.Sent), 10)
	assert.Less(t, res.Elapsed, time.Second)
}

func TestCancelStops(t *testing.T) {
	conn, _ := sink(t)
	o := testOptions(conn.LocalAddr().String())
	o.RatePPS = 100
	o.Duration = time.Hour

	s, err := Dial(context.Background(), o)
	require.NoError(t, err)
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan Result, 1)
	go func() { done <- s.Run(ctx) }()
	select {
	case res := <-done:
		assert.Positive(t, res.Sent)
	case <-time.After(5 * time.Second):
		t.Fatal("sender ignored cancellation")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Options){
		"no dest":      func(o *Options) { o.Dest = "" },
		"zero rate":    func(o *Options) { o.RatePPS = 0 },
		"bad mode":     func(o *Options) { o.Mode = "sawtooth" },
		"zero burst":   func(o *Options) { o.Mode = Burst; o.Burst = 0 },
		"no stop":      func(o *Options) { o.Duration = 0; o.Count = 0 },
		"tiny payload": func(o *Options) { o.Payload = 8 },
		"huge payload": func(o *Options) { o.Payload = 1 << 20 },
		"count wraps":  func(o *Options) { o.Count = math.MaxUint32 + 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			o := DefaultOptions()
			mutate(&o)
			err := o.Validate()
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
	o := DefaultOptions()
	assert.NoError(t, o.Validate())
	o.Count = math.MaxUint32
	assert.NoError(t, o.Validate())
}
