//go:build !linux

package sched

// PinToCore is unavailable off Linux; a negative cpu is still a no-op.
func PinToCore(cpu int) error {
	if cpu < 0 {
		return nil
	}
	return ErrUnsupported
}
