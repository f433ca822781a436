//go:build !linux

package sched

// SetRealtimePriority is unavailable off Linux.
func SetRealtimePriority(prio int) error {
	if prio <= 0 {
		return nil
	}
	return ErrUnsupported
}
