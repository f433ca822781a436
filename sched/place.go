package sched

import "runtime"

// Place locks the calling goroutine to its OS thread, pins that thread to
// cpu and asks for SCHED_FIFO at prio. The thread stays locked whatever
// happens; the two errors are returned for the caller to report, since a
// loop that could not be placed still runs, only with more jitter.
func Place(cpu, prio int) (pinErr, prioErr error) {
	runtime.LockOSThread()
	return PinToCore(cpu), SetRealtimePriority(prio)
}
