package sched

import "time"

// SpinFor busy-waits for d without yielding the thread. It is used for
// synthetic per-packet work and for the last stretch of sender pacing, where
// a sleep would overshoot.
func SpinFor(d time.Duration) {
	if d <= 0 {
		return
	}
	start := time.Now()
	for time.Since(start) < d {
		Relax()
	}
}

// SleepUntil waits until deadline: it sleeps while more than threshold
// remains (waking slack early) and spins the rest.
func SleepUntil(deadline time.Time, threshold, slack time.Duration) {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		if remaining > threshold {
			time.Sleep(remaining - slack)
			continue
		}
		Relax()
	}
}
