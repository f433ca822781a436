// sender.go — Scheduled probe emitter
//
// Emits probes at a fixed rate against a monotonic schedule. Each tick sends
// one probe (steady) or Burst back-to-back probes (burst); the next tick is
// advanced by interval × probes sent, so a burst does not raise the average
// rate. Waiting is hybrid: sleep while more than SleepThreshold remains, then
// spin, so ticks land within a few microseconds without burning a core for
// low rates.
//
// The send timestamp is the wall clock read immediately before each write;
// the receiver compares it against its own wall clock.

package sender

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync/atomic"
	"time"

	"netlatlab/constants"
	"netlatlab/debug"
	"netlatlab/sched"
	"netlatlab/wire"
)

// Mode selects the emission pattern.
type Mode string

const (
	Steady Mode = "steady"
	Burst  Mode = "burst"
)

// ErrInvalid wraps every options validation failure.
var ErrInvalid = errors.New("sender: invalid options")

// Options describes one sending run.
type Options struct {
	Dest     string        // host:port
	RatePPS  int           // average probes per second
	Mode     Mode          // steady or burst
	Burst    int           // probes per tick in burst mode
	Duration time.Duration // stop after this long; zero means until Count or cancel
	Count    uint64        // stop after this many probes; zero means unlimited, at most MaxUint32
	Payload  int           // datagram size, at least the header size
	CPU      int           // core to pin to; negative disables
}

// DefaultOptions mirrors the receiver defaults on localhost.
func DefaultOptions() Options {
	return Options{
		Dest:     net.JoinHostPort("127.0.0.1", fmt.Sprint(constants.DefaultPort)),
		RatePPS:  constants.DefaultRatePPS,
		Mode:     Steady,
		Burst:    1,
		Duration: constants.DefaultDuration,
		Payload:  constants.HeaderSize,
		CPU:      constants.DefaultSenderCPU,
	}
}

// Validate rejects options the schedule cannot honor.
func (o *Options) Validate() error {
	switch {
	case o.Dest == "":
		return fmt.Errorf("%w: empty destination", ErrInvalid)
	case o.RatePPS < 1:
		return fmt.Errorf("%w: rate %d pps", ErrInvalid, o.RatePPS)
	case o.Mode != Steady && o.Mode != Burst:
		return fmt.Errorf("%w: mode %q", ErrInvalid, o.Mode)
	case o.Mode == Burst && o.Burst < 1:
		return fmt.Errorf("%w: burst size %d", ErrInvalid, o.Burst)
	case o.Duration < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalid)
	case o.Count > math.MaxUint32:
		return fmt.Errorf("%w: count %d exceeds the u32 sequence space", ErrInvalid, o.Count)
	case o.Duration == 0 && o.Count == 0:
		return fmt.Errorf("%w: need a duration or a count", ErrInvalid)
	case o.Payload < constants.HeaderSize || o.Payload > constants.MaxDatagram:
		return fmt.Errorf("%w: payload %d outside %d..%d", ErrInvalid, o.Payload, constants.HeaderSize, constants.MaxDatagram)
	}
	return nil
}

// Result summarises a finished run.
type Result struct {
	Sent       uint64        `json:"sent"`
	SendErrors uint64        `json:"send_errors"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// Sender owns one connected UDP socket.
type Sender struct {
	conn *net.UDPConn
	opts Options
	buf  []byte

	sent    atomic.Uint64
	sendErr atomic.Uint64
}

// Dial validates opts and connects to the destination.
func Dial(ctx context.Context, opts Options) (*Sender, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	var d net.Dialer
	c, err := d.DialContext(ctx, "udp4", opts.Dest)
	if err != nil {
		return nil, fmt.Errorf("sender: dial %s: %w", opts.Dest, err)
	}
	return &Sender{
		conn: c.(*net.UDPConn),
		opts: opts,
		buf:  make([]byte, opts.Payload),
	}, nil
}

// Sent is the number of probes written so far.
func (s *Sender) Sent() uint64 { return s.sent.Load() }

// Close releases the socket.
func (s *Sender) Close() error { return s.conn.Close() }

// Run emits probes until Duration elapses, Count probes have been attempted
// or ctx is cancelled. Write failures are counted, not fatal: a receiver
// that is not up yet yields ECONNREFUSED on a connected UDP socket.
func (s *Sender) Run(ctx context.Context) Result {
	if pinErr, _ := sched.Place(s.opts.CPU, 0); pinErr != nil {
		debug.DropWarning("SENDER", "core pinning failed", "cpu", s.opts.CPU, "error", pinErr)
	}

	perTick := 1
	if s.opts.Mode == Burst {
		perTick = s.opts.Burst
	}
	interval := time.Second / time.Duration(s.opts.RatePPS)

	start := time.Now()
	var end time.Time
	if s.opts.Duration > 0 {
		end = start.Add(s.opts.Duration)
	}
	next := start
	var seq uint32

	debug.DropMessage("SENDER", "sending",
		"dest", s.opts.Dest, "rate_pps", s.opts.RatePPS, "mode", string(s.opts.Mode),
		"burst", perTick, "duration", s.opts.Duration)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}
		if !end.IsZero() && !time.Now().Before(end) {
			break
		}

		sched.SleepUntil(next, constants.SleepThreshold, constants.SleepSlack)
		for i := 0; i < perTick; i++ {
			if s.opts.Count > 0 && uint64(seq) >= s.opts.Count {
				break loop
			}
			h := wire.NewProbe(seq, uint64(time.Now().UnixNano()))
			h.MarshalTo(s.buf)
			if _, err := s.conn.Write(s.buf); err != nil {
				s.sendErr.Add(1)
			} else {
				s.sent.Add(1)
			}
			seq++
		}
		next = next.Add(interval * time.Duration(perTick))
	}

	res := Result{Sent: s.sent.Load(), SendErrors: s.sendErr.Load(), Elapsed: time.Since(start)}
	debug.DropMessage("SENDER", "finished", "sent", res.Sent, "errors", res.SendErrors, "elapsed", res.Elapsed)
	return res
}
