//go:build linux || darwin || freebsd

package ingest

import (
	"syscall"

	"golang.org/x/sys/unix"

	"netlatlab/debug"
)

// socketControl applies socket options before bind. Option failures are
// reported and ignored: the socket is still usable without them.
func socketControl(rcvBuf int) func(network, address string, c syscall.RawConn) error {
	return func(_, address string, c syscall.RawConn) error {
		return c.Control(func(fd uintptr) {
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
				debug.DropWarning("SOCKOPT", "SO_REUSEADDR failed", "addr", address, "error", err)
			}
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
				debug.DropWarning("SOCKOPT", "SO_REUSEPORT failed", "addr", address, "error", err)
			}
			if rcvBuf > 0 {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, rcvBuf); err != nil {
					debug.DropWarning("SOCKOPT", "SO_RCVBUF failed", "addr", address, "bytes", rcvBuf, "error", err)
				}
			}
		})
	}
}
