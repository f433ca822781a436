//go:build linux

package sched

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SetRealtimePriority moves the calling thread to SCHED_FIFO at prio.
// Without CAP_SYS_NICE this fails with EPERM; callers treat that as a
// warning and carry on best-effort.
func SetRealtimePriority(prio int) error {
	if prio <= 0 {
		return nil
	}
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(prio),
	}
	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		return fmt.Errorf("sched: SCHED_FIFO priority %d: %w", prio, err)
	}
	return nil
}
