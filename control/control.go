// control.go — Stop and activity flags shared by the two pinned loops
// ============================================================================
// PIPELINE LIFECYCLE COORDINATION
// ============================================================================
//
// A Controller is the only lifecycle state the ingestion loop and the worker
// share. It is passed to each loop explicitly, so independent pipelines can
// run side by side in one process.
//
// Flags:
//   • stop   – set once by Shutdown (signal, context, max-packets, error)
//   • closed – set once by CloseIngest after the producer has left its loop
//   • hot    – set by ingestion on traffic, cleared by PollCooldown
//
// Shutdown contract:
//   Ingestion     polls Stopping() once per timed-out receive and returns
//   Pipeline      calls CloseIngest() after ingestion returned
//   Worker        keeps draining until IngestClosed() and the ring is empty
//
// The worker waits for CloseIngest rather than Stopping so that a batch the
// producer was already enqueueing when stop was raised is still drained.

package control

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Controller coordinates shutdown and hot/cold spinning.
type Controller struct {
	stop     atomic.Uint32
	closed   atomic.Uint32
	_        [56]byte
	hot      atomic.Uint32
	lastHot  atomic.Int64
	cooldown int64

	once sync.Once
	done chan struct{}
}

// New returns a running controller whose hot flag clears cooldown after the
// last SignalActivity.
func New(cooldown time.Duration) *Controller {
	return &Controller{
		cooldown: int64(cooldown),
		done:     make(chan struct{}),
	}
}

// ============================================================================
// ACTIVITY SIGNALING (INGESTION SIDE)
// ============================================================================

// SignalActivity marks the pipeline hot and records when. Called by the
// ingestion loop after every non-empty receive.
func (c *Controller) SignalActivity() {
	c.lastHot.Store(time.Now().UnixNano())
	if c.hot.Load() == 0 {
		c.hot.Store(1)
	}
}

// PollCooldown clears the hot flag once cooldown has elapsed since the last
// activity. Called by the worker from its idle path.
func (c *Controller) PollCooldown() {
	if c.hot.Load() == 1 && time.Now().UnixNano()-c.lastHot.Load() > c.cooldown {
		c.hot.Store(0)
	}
}

// Hot reports whether traffic was seen within the cooldown window.
func (c *Controller) Hot() bool {
	return c.hot.Load() != 0
}

// ============================================================================
// SHUTDOWN
// ============================================================================

// Shutdown raises the stop flag. Safe to call any number of times from any
// goroutine, including a signal handler goroutine.
func (c *Controller) Shutdown() {
	c.once.Do(func() {
		c.stop.Store(1)
		close(c.done)
	})
}

// Stopping reports whether Shutdown has been called.
func (c *Controller) Stopping() bool {
	return c.stop.Load() != 0
}

// Done is closed by the first Shutdown.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// CloseIngest records that the producer will enqueue nothing more.
func (c *Controller) CloseIngest() {
	c.closed.Store(1)
}

// IngestClosed reports whether CloseIngest has been called.
func (c *Controller) IngestClosed() bool {
	return c.closed.Load() != 0
}

// ============================================================================
// SIGNALS
// ============================================================================

// NotifySignals calls Shutdown on SIGINT or SIGTERM, or when ctx ends. The
// returned func detaches the handler.
func (c *Controller) NotifySignals(ctx context.Context) (stop func()) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	quit := make(chan struct{})

	go func() {
		select {
		case <-sig:
			c.Shutdown()
		case <-ctx.Done():
			c.Shutdown()
		case <-c.done:
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sig)
			close(quit)
		})
	}
}
