//go:build !linux && !darwin && !freebsd

package ingest

import "syscall"

// socketControl is a no-op where the unix socket options are unavailable.
func socketControl(int) func(network, address string, c syscall.RawConn) error {
	return nil
}
