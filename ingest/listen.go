package ingest

import (
	"context"
	"fmt"
	"net"
)

// Listen binds a UDP4 socket on addr with address/port reuse enabled and,
// when rcvBuf > 0, a larger kernel receive buffer. A failure here is a
// setup failure; the receiver exits with status 1.
func Listen(ctx context.Context, addr string, rcvBuf int) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: socketControl(rcvBuf)}
	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("ingest: bind %s: %w", addr, err)
	}
	return pc.(*net.UDPConn), nil
}
