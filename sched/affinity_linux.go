//go:build linux

// affinity_linux.go
//
// Linux binding for sched_setaffinity(2) that pins the calling OS thread to
// one logical CPU. pid 0 addresses the calling thread, so the goroutine must
// already be locked with runtime.LockOSThread.

package sched

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// PinToCore pins the calling thread to cpu. A negative cpu leaves the
// affinity untouched.
func PinToCore(cpu int) error {
	if cpu < 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched: pin to core %d: %w", cpu, err)
	}
	return nil
}
