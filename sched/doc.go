// Package sched holds the thread-placement helpers used by the receiver's
// two pinned loops and the probe sender: CPU affinity, a SCHED_FIFO request,
// and a spin-wait relax hint.
//
// Every helper degrades to a no-op (or a returned error the caller logs as a
// warning) where the platform or privileges do not allow it. Pinning is only
// meaningful after runtime.LockOSThread.
package sched

import "errors"

// ErrUnsupported is returned where the host offers no affinity or
// real-time scheduling control.
var ErrUnsupported = errors.New("sched: not supported on this platform")
